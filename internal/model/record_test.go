package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPopulation(t *testing.T) {
	t.Parallel()

	t.Run("known count", func(t *testing.T) {
		t.Parallel()
		p := CountOf(10040000)
		assert.True(t, p.Known)
		assert.Equal(t, "10040000", p.String())
		assert.Equal(t, int64(10040000), p.Value())
	})

	t.Run("known zero is still a count", func(t *testing.T) {
		t.Parallel()
		p := CountOf(0)
		assert.Equal(t, "0", p.String())
		assert.Equal(t, int64(0), p.Value())
	})

	t.Run("sentinel", func(t *testing.T) {
		t.Parallel()
		p := Missing(PopulationNotFound)
		assert.False(t, p.Known)
		assert.Equal(t, "Population Not Found", p.String())
		assert.Equal(t, "Population Not Found", p.Value())
	})
}

func TestRecordJSON(t *testing.T) {
	t.Parallel()

	rec := Record{
		State:        "California",
		County:       "Los Angeles",
		Population:   CountOf(10040000),
		CenterName:   "The UPS Store",
		Address:      "1 Main St inside: Ralphs",
		Contact:      ContactPlaceholder,
		AccessPoints: 3,
	}
	data, err := json.Marshal(rec)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"population":10040000`)

	rec.Population = Missing(PopulationDataNotFound)
	data, err = json.Marshal(rec)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"population":"Population Data Not Found"`)
}

func TestVisitChild(t *testing.T) {
	t.Parallel()

	parent := Visit{
		Level:      LevelCounties,
		URL:        "https://example.com/ca/",
		State:      "California",
		County:     "Orange",
		Population: CountOf(3186989),
	}
	child := parent.Child("https://example.com/ca/orange/")

	assert.Equal(t, LevelLocations, child.Level)
	assert.Equal(t, "https://example.com/ca/orange/", child.URL)
	assert.Equal(t, "California", child.State)
	assert.Equal(t, "Orange", child.County)
	assert.Equal(t, parent.Population, child.Population)
}

func TestLevelString(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "states", LevelStates.String())
	assert.Equal(t, "counties", LevelCounties.String())
	assert.Equal(t, "locations", LevelLocations.String())
	assert.Equal(t, "unknown", Level(0).String())
}
