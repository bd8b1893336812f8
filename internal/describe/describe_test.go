package describe

import (
	"encoding/json"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"potability/internal/data"
)

const sample = `a,b,label
1,10,0
2,,1
3,30,0
4,40,1
`

func readSample(t *testing.T) *data.Table {
	t.Helper()
	table, err := data.ReadCSV(strings.NewReader(sample))
	require.NoError(t, err)
	return table
}

func TestSummarize(t *testing.T) {
	table := readSample(t)
	summaries, err := Summarize(table, []string{"a", "b"})
	require.NoError(t, err)
	require.Len(t, summaries, 2)

	a := summaries[0]
	assert.Equal(t, 4, a.Count)
	assert.InDelta(t, 2.5, a.Mean, 1e-12)
	assert.InDelta(t, math.Sqrt(5.0/3.0), a.Std, 1e-12)
	assert.Equal(t, 1.0, a.Min)
	assert.InDelta(t, 1.75, a.Q25, 1e-12)
	assert.InDelta(t, 2.5, a.Median, 1e-12)
	assert.InDelta(t, 3.25, a.Q75, 1e-12)
	assert.Equal(t, 4.0, a.Max)

	b := summaries[1]
	assert.Equal(t, 3, b.Count)
	assert.InDelta(t, 30.0, b.Median, 1e-12)

	_, err = Summarize(table, []string{"missing"})
	assert.ErrorIs(t, err, data.ErrSchemaMismatch)
}

func TestSummarizeDoesNotMutate(t *testing.T) {
	table := readSample(t)
	before := table.Clone()
	_, err := Summarize(table, []string{"a", "b"})
	require.NoError(t, err)
	_ = Correlation(table)
	assert.Equal(t, before, table)
}

func TestInfo(t *testing.T) {
	info := Info(readSample(t))
	require.Len(t, info, 3)

	assert.Equal(t, ColumnInfo{Column: "a", NonNull: 4, Missing: 0, Unique: 4, Dtype: "int64"}, info[0])
	assert.Equal(t, ColumnInfo{Column: "b", NonNull: 3, Missing: 1, Unique: 3, Dtype: "float64"}, info[1])
	assert.Equal(t, 2, info[2].Unique)
}

func TestCorrelation(t *testing.T) {
	table, err := data.ReadCSV(strings.NewReader("x,y,z\n1,2,5\n2,4,3\n3,6,1\n4,8,7\n"))
	require.NoError(t, err)

	m := Correlation(table)
	xy, err := m.At("x", "y")
	require.NoError(t, err)
	assert.InDelta(t, 1.0, xy, 1e-12)

	for i := range m.Columns {
		assert.Equal(t, 1.0, m.Values[i][i])
		for j := range m.Columns {
			assert.Equal(t, m.Values[i][j], m.Values[j][i])
		}
	}

	_, err = m.At("x", "nope")
	assert.Error(t, err)
}

func TestHistograms(t *testing.T) {
	table, err := data.ReadCSV(strings.NewReader("v\n0\n1\n2\n3\n4\n5\n6\n7\n8\n9\n10\n"))
	require.NoError(t, err)

	hists, err := Histograms(table, []string{"v"}, 5)
	require.NoError(t, err)
	require.Len(t, hists, 1)

	h := hists[0]
	assert.Equal(t, []float64{0, 2, 4, 6, 8, 10}, h.Edges)
	assert.Equal(t, []float64{2, 2, 2, 2, 3}, h.Counts)
}

func TestHistogramConstantColumn(t *testing.T) {
	h := histogram("c", []float64{3, 3, 3}, 2)
	assert.Equal(t, []float64{2.5, 3, 3.5}, h.Edges)
	assert.Equal(t, 3.0, h.Counts[0]+h.Counts[1])
}

func TestUndefinedStatisticsEncodeAsNull(t *testing.T) {
	table, err := data.ReadCSV(strings.NewReader("x,c,s\n1,5,\n2,5,\n3,5,7\n"))
	require.NoError(t, err)

	summaries, err := Summarize(table, []string{"x", "s"})
	require.NoError(t, err)
	require.True(t, math.IsNaN(summaries[1].Std))

	b, err := json.Marshal(summaries)
	require.NoError(t, err)
	var decoded []map[string]any
	require.NoError(t, json.Unmarshal(b, &decoded))
	assert.Equal(t, 2.0, decoded[0]["mean"])
	assert.Nil(t, decoded[1]["std"])
	assert.Equal(t, 7.0, decoded[1]["max"])

	m := Correlation(table)
	c, err := m.At("x", "c")
	require.NoError(t, err)
	require.True(t, math.IsNaN(c))

	b, err = json.Marshal(m)
	require.NoError(t, err)
	var matrix struct {
		Columns []string     `json:"columns"`
		Values  [][]*float64 `json:"values"`
	}
	require.NoError(t, json.Unmarshal(b, &matrix))
	assert.Equal(t, m.Columns, matrix.Columns)
	require.NotNil(t, matrix.Values[0][0])
	assert.Equal(t, 1.0, *matrix.Values[0][0])
	assert.Nil(t, matrix.Values[0][1])
}
