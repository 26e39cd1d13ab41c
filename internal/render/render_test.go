package render

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mswcd/fieldkit/internal/survey"
)

func sampleProjection(t *testing.T) survey.Projection {
	t.Helper()
	proj, err := survey.Project([]survey.Leg{
		{From: "A", To: "B", Distance: 10, Azimuth: 0, Left: 2, Right: 3},
		{From: "B", To: "C", Distance: 6, Azimuth: 90, Left: 1, Right: 1},
	}, survey.Options{Scale: 1})
	require.NoError(t, err)
	return proj
}

func TestSquareWindow(t *testing.T) {
	lo, hi, ok := squareWindow(sampleProjection(t))
	require.True(t, ok)
	assert.InDelta(t, hi.X-lo.X, hi.Y-lo.Y, 1e-9)

	lo, hi, ok = squareWindow(survey.Projection{})
	assert.False(t, ok)
	assert.Equal(t, survey.Point{X: -1, Y: -1}, lo)
	assert.Equal(t, survey.Point{X: 1, Y: 1}, hi)
}

func TestNewPlotLegend(t *testing.T) {
	p, err := NewPlot(sampleProjection(t), PlotOptions{Title: "Gua", Labels: true})
	require.NoError(t, err)
	assert.Equal(t, "Gua", p.Title.Text)
	assert.Less(t, p.X.Min, -2.0)
}

func TestWritePlotPNG(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WritePlot(&buf, sampleProjection(t), "png", PlotOptions{WidthInches: 2, HeightInches: 2}))
	assert.True(t, bytes.HasPrefix(buf.Bytes(), []byte("\x89PNG")))
}

func TestWritePlotSVG(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WritePlot(&buf, sampleProjection(t), "SVG", PlotOptions{}))
	assert.Contains(t, buf.String(), "<svg")
}

func TestWritePlotEmptyAndBadFormat(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WritePlot(&buf, survey.Projection{}, "png", PlotOptions{}))
	assert.NotZero(t, buf.Len())

	assert.Error(t, WritePlot(&buf, survey.Projection{}, "gif", PlotOptions{}))
}

func TestSavePlot(t *testing.T) {
	path := filepath.Join(t.TempDir(), "survey.svg")
	require.NoError(t, SavePlot(path, sampleProjection(t), PlotOptions{}))
	assert.FileExists(t, path)
}

func TestWriteChart(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteChart(&buf, sampleProjection(t), ChartOptions{Title: "Gua Pindul"}))
	html := buf.String()
	assert.Contains(t, html, "Gua Pindul")
	assert.Contains(t, html, "centerline")
	assert.Contains(t, html, "walls")
}

func TestWriteChartEmpty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteChart(&buf, survey.Projection{}, ChartOptions{Title: "empty survey"}))
	assert.Contains(t, buf.String(), "empty survey")
}
