package render

import (
	"fmt"
	"io"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/mswcd/fieldkit/internal/survey"
)

// ChartOptions controls the HTML chart.
type ChartOptions struct {
	Title    string
	Subtitle string
}

func lineXY(p survey.Point) opts.LineData {
	return opts.LineData{Value: []interface{}{p.X, p.Y}}
}

// NewChart builds an interactive line chart: the centerline as one dashed
// polyline and every wall span as its own solid series.
func NewChart(proj survey.Projection, o ChartOptions) *charts.Line {
	lo, hi, _ := squareWindow(proj)

	subtitle := o.Subtitle
	if subtitle == "" {
		subtitle = fmt.Sprintf("legs=%d rejected=%d length=%.1f", len(proj.Stations), len(proj.Rejected), proj.HorizontalLength())
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: o.Title, Theme: "dark", Width: "900px", Height: "900px"}),
		charts.WithTitleOpts(opts.Title{Title: o.Title, Subtitle: subtitle}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Type: "value", Min: lo.X, Max: hi.X, Name: "X", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Type: "value", Min: lo.Y, Max: hi.Y, Name: "Y", NameLocation: "middle", NameGap: 30}),
	)

	if len(proj.Stations) == 0 {
		line.AddSeries("centerline", []opts.LineData{})
		return line
	}

	center := make([]opts.LineData, 0, len(proj.Stations)+1)
	center = append(center, lineXY(proj.Stations[0].Start))
	for _, st := range proj.Stations {
		center = append(center, lineXY(st.End))
	}
	line.AddSeries("centerline", center,
		charts.WithLineStyleOpts(opts.LineStyle{Type: "dashed", Width: centerlineWidth, Color: "#d03030"}),
	)

	for _, st := range proj.Stations {
		line.AddSeries("walls", []opts.LineData{lineXY(st.WallLeft), lineXY(st.WallRight)},
			charts.WithLineStyleOpts(opts.LineStyle{Width: wallWidth, Color: "#e0e0e0"}),
		)
	}
	return line
}

// WriteChart renders the chart page as HTML to w.
func WriteChart(w io.Writer, proj survey.Projection, o ChartOptions) error {
	return NewChart(proj, o).Render(w)
}
