// Package render draws projected surveys: static PNG/SVG plots through
// gonum/plot and an interactive HTML chart through go-echarts.
package render

import (
	"fmt"
	"image/color"
	"io"
	"math"
	"strings"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/mswcd/fieldkit/internal/survey"
)

var (
	wallColor       = color.RGBA{R: 0x20, G: 0x20, B: 0x20, A: 0xff}
	centerlineColor = color.RGBA{R: 0xd0, G: 0x30, B: 0x30, A: 0xff}
)

const (
	wallWidth       = 1.5
	centerlineWidth = 1.0
)

// PlotOptions controls static plot output.
type PlotOptions struct {
	Title        string
	WidthInches  float64
	HeightInches float64
	// Labels draws the destination station name at each leg end.
	Labels bool
}

func (o PlotOptions) size() (vg.Length, vg.Length) {
	w, h := o.WidthInches, o.HeightInches
	if w <= 0 {
		w = 6
	}
	if h <= 0 {
		h = 6
	}
	return vg.Length(w) * vg.Inch, vg.Length(h) * vg.Inch
}

func xy(p survey.Point) plotter.XY { return plotter.XY{X: p.X, Y: p.Y} }

// NewPlot builds a plot with one solid line per wall span and a dashed line
// per centerline segment. Axes are padded to a square window so the plan
// is not distorted.
func NewPlot(proj survey.Projection, opts PlotOptions) (*plot.Plot, error) {
	p := plot.New()
	p.Title.Text = opts.Title
	p.X.Label.Text = "X"
	p.Y.Label.Text = "Y"
	p.Add(plotter.NewGrid())

	for i, st := range proj.Stations {
		wall, err := plotter.NewLine(plotter.XYs{xy(st.WallLeft), xy(st.WallRight)})
		if err != nil {
			return nil, fmt.Errorf("wall %d: %w", i, err)
		}
		wall.Color = wallColor
		wall.Width = vg.Points(wallWidth)

		center, err := plotter.NewLine(plotter.XYs{xy(st.Start), xy(st.End)})
		if err != nil {
			return nil, fmt.Errorf("centerline %d: %w", i, err)
		}
		center.Color = centerlineColor
		center.Width = vg.Points(centerlineWidth)
		center.Dashes = []vg.Length{vg.Points(4), vg.Points(3)}

		p.Add(wall, center)
		if i == 0 {
			p.Legend.Add("walls", wall)
			p.Legend.Add("centerline", center)
		}
	}

	if opts.Labels && len(proj.Stations) > 0 {
		labels := plotter.XYLabels{
			XYs:    make(plotter.XYs, len(proj.Stations)),
			Labels: make([]string, len(proj.Stations)),
		}
		for i, st := range proj.Stations {
			labels.XYs[i] = xy(st.End)
			labels.Labels[i] = st.To
		}
		l, err := plotter.NewLabels(labels)
		if err != nil {
			return nil, fmt.Errorf("labels: %w", err)
		}
		p.Add(l)
	}

	lo, hi, ok := squareWindow(proj)
	p.X.Min, p.X.Max = lo.X, hi.X
	p.Y.Min, p.Y.Max = lo.Y, hi.Y
	if !ok {
		p.Title.Text = strings.TrimSpace(p.Title.Text + " (no legs)")
	}
	p.Legend.Top = true
	p.Legend.Left = false
	return p, nil
}

// squareWindow returns equal-span axis ranges around the projection with a
// 5% margin, or a unit window when there is nothing to draw.
func squareWindow(proj survey.Projection) (lo, hi survey.Point, ok bool) {
	lo, hi, ok = proj.Bounds()
	if !ok {
		return survey.Point{X: -1, Y: -1}, survey.Point{X: 1, Y: 1}, false
	}
	span := math.Max(hi.X-lo.X, hi.Y-lo.Y)
	if span == 0 {
		span = 1
	}
	half := span * 1.05 / 2
	cx, cy := (lo.X+hi.X)/2, (lo.Y+hi.Y)/2
	return survey.Point{X: cx - half, Y: cy - half}, survey.Point{X: cx + half, Y: cy + half}, true
}

// WritePlot renders the projection in format ("png" or "svg") to w.
func WritePlot(w io.Writer, proj survey.Projection, format string, opts PlotOptions) error {
	format = strings.ToLower(format)
	if format != "png" && format != "svg" {
		return fmt.Errorf("unsupported plot format %q", format)
	}
	p, err := NewPlot(proj, opts)
	if err != nil {
		return err
	}
	width, height := opts.size()
	wt, err := p.WriterTo(width, height, format)
	if err != nil {
		return fmt.Errorf("failed to render %s: %w", format, err)
	}
	_, err = wt.WriteTo(w)
	return err
}

// SavePlot writes the projection to path; the format follows the extension.
func SavePlot(path string, proj survey.Projection, opts PlotOptions) error {
	p, err := NewPlot(proj, opts)
	if err != nil {
		return err
	}
	width, height := opts.size()
	if err := p.Save(width, height, path); err != nil {
		return fmt.Errorf("failed to save plot %s: %w", path, err)
	}
	return nil
}
