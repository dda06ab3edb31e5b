package census

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFIPS(t *testing.T) {
	tests := []struct {
		state string
		code  string
		ok    bool
	}{
		{"California", "06", true},
		{"  Texas ", "48", true},
		{"Wyoming", "56", true},
		{"District of Columbia", "", false},
		{"california", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		code, ok := FIPS(tt.state)
		assert.Equal(t, tt.ok, ok, tt.state)
		assert.Equal(t, tt.code, code, tt.state)
	}
}

func TestStates(t *testing.T) {
	states := States()
	assert.Len(t, states, 50)
	assert.Equal(t, "Alabama", states[0])
	assert.Equal(t, "Wyoming", states[49])
	assert.IsIncreasing(t, states)
}

func TestNormalizeFIPSState(t *testing.T) {
	assert.Equal(t, "06", NormalizeFIPSState("6"))
	assert.Equal(t, "06", NormalizeFIPSState(" 06 "))
	assert.Equal(t, "48", NormalizeFIPSState("48"))
	assert.Equal(t, "", NormalizeFIPSState(""))
}

func TestStateName(t *testing.T) {
	name, ok := StateName("6")
	assert.True(t, ok)
	assert.Equal(t, "California", name)

	name, ok = StateName("48")
	assert.True(t, ok)
	assert.Equal(t, "Texas", name)

	_, ok = StateName("11")
	assert.False(t, ok)
}
