package fetcher

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func collectRows(t *testing.T, rowCh <-chan []string, errCh <-chan error) ([][]string, error) {
	t.Helper()
	var rows [][]string
	for row := range rowCh {
		rows = append(rows, row)
	}
	for err := range errCh {
		if err != nil {
			return rows, err
		}
	}
	return rows, nil
}

func TestStreamCSV_Basic(t *testing.T) {
	input := "NAME,P1_001N\n\"Los Angeles County, California\",10014009\n"
	rowCh, errCh := StreamCSV(context.Background(), strings.NewReader(input), CSVOptions{})
	rows, err := collectRows(t, rowCh, errCh)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, []string{"NAME", "P1_001N"}, rows[0])
	assert.Equal(t, []string{"Los Angeles County, California", "10014009"}, rows[1])
}

func TestStreamCSV_HeaderWithBOM(t *testing.T) {
	input := "\ufeffNAME,P1_001N\nKing County,2269675\nPierce County,921130\n"
	headerCh := make(chan []string, 1)

	rowCh, errCh := StreamCSV(context.Background(), strings.NewReader(input), CSVOptions{
		HasHeader: true,
		HeaderCh:  headerCh,
	})
	rows, err := collectRows(t, rowCh, errCh)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, []string{"NAME", "P1_001N"}, <-headerCh)
	assert.Equal(t, "Pierce County", rows[1][0])
}

func TestStreamCSV_TrimSpaceAndDelimiter(t *testing.T) {
	input := " a | b \n 1 | 2 \n"
	rowCh, errCh := StreamCSV(context.Background(), strings.NewReader(input), CSVOptions{
		Delimiter: '|',
		TrimSpace: true,
	})
	rows, err := collectRows(t, rowCh, errCh)
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"a", "b"}, {"1", "2"}}, rows)
}

func TestStreamCSV_VariableFields(t *testing.T) {
	input := "a,b,c\n1\n"
	rowCh, errCh := StreamCSV(context.Background(), strings.NewReader(input), CSVOptions{})
	rows, err := collectRows(t, rowCh, errCh)
	require.NoError(t, err)
	assert.Len(t, rows[1], 1)
}

func TestStreamCSV_MalformedQuote(t *testing.T) {
	input := "a,\"b\nc"
	rowCh, errCh := StreamCSV(context.Background(), strings.NewReader(input), CSVOptions{})
	_, err := collectRows(t, rowCh, errCh)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "csv: read row")
}

func TestStreamCSV_ContextCancelled(t *testing.T) {
	var sb strings.Builder
	for range 1000 {
		sb.WriteString("x,y\n")
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	rowCh, errCh := StreamCSV(ctx, strings.NewReader(sb.String()), CSVOptions{})
	_, err := collectRows(t, rowCh, errCh)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "context cancelled")
}

func TestColumnIndex(t *testing.T) {
	idx, err := ColumnIndex([]string{"GEO_ID", " name ", "P1_001N"}, "NAME", "P1_001N")
	require.NoError(t, err)
	assert.Equal(t, 1, idx["NAME"])
	assert.Equal(t, 2, idx["P1_001N"])

	_, err = ColumnIndex([]string{"NAME"}, "NAME", "P1_001N")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing columns: P1_001N")
}
