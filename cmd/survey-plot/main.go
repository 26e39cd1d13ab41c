// Command survey-plot projects a saved survey file and renders it without
// running the service.
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/mswcd/fieldkit/internal/fsutil"
	"github.com/mswcd/fieldkit/internal/render"
	"github.com/mswcd/fieldkit/internal/survey"
	"github.com/mswcd/fieldkit/internal/surveyfile"
	"github.com/mswcd/fieldkit/internal/units"
	"github.com/mswcd/fieldkit/internal/version"
)

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		log.Fatalf("survey-plot: %v", err)
	}
}

type options struct {
	input       string
	output      string
	scale       float64
	originX     float64
	originY     float64
	policy      string
	title       string
	lengthUnits string
	labels      bool
	version     bool
}

func parseFlags(args []string, out io.Writer) (options, error) {
	var o options
	fs := flag.NewFlagSet("survey-plot", flag.ContinueOnError)
	fs.SetOutput(out)
	fs.StringVar(&o.input, "in", surveyfile.SurveyFileName, "Survey file to read")
	fs.StringVar(&o.output, "out", "survey.png", "Output file; .png, .svg or .html")
	fs.Float64Var(&o.scale, "scale", survey.DefaultScale, "Plotting units per metre")
	fs.Float64Var(&o.originX, "origin-x", 0, "X coordinate of the first station")
	fs.Float64Var(&o.originY, "origin-y", 0, "Y coordinate of the first station")
	fs.StringVar(&o.policy, "policy", "skip", "Invalid leg policy: skip or abort")
	fs.StringVar(&o.title, "title", "", "Plot title (default: input file name)")
	fs.StringVar(&o.lengthUnits, "units", "m", "Length units for the summary: m or ft")
	fs.BoolVar(&o.labels, "labels", true, "Label stations on PNG/SVG output")
	fs.BoolVar(&o.version, "version", false, "Print version information and exit")
	if err := fs.Parse(args); err != nil {
		return o, err
	}
	if fs.NArg() > 0 {
		o.input = fs.Arg(0)
	}
	if !units.IsValidLength(o.lengthUnits) {
		return o, fmt.Errorf("invalid units %q", o.lengthUnits)
	}
	if o.title == "" {
		o.title = strings.TrimSuffix(filepath.Base(o.input), filepath.Ext(o.input))
	}
	return o, nil
}

func run(args []string, out io.Writer) error {
	o, err := parseFlags(args, out)
	if err != nil {
		return err
	}
	if o.version {
		fmt.Fprintln(out, version.String("survey-plot"))
		return nil
	}
	policy, err := survey.ParsePolicy(o.policy)
	if err != nil {
		return err
	}

	records, err := surveyfile.ReadSurvey(fsutil.OSFileSystem{}, o.input)
	if err != nil {
		return err
	}

	// every station comes from a record that parsed; the others are
	// reported through proj.Rejected
	projected := make(map[int]survey.Leg, len(records))
	for i, rec := range records {
		if leg, err := rec.Leg(); err == nil {
			projected[i] = leg
		}
	}

	proj, err := survey.ProjectRecords(records, survey.Options{
		Origin: survey.Point{X: o.originX, Y: o.originY},
		Scale:  o.scale,
		Policy: policy,
	})
	if err != nil && !errors.Is(err, survey.ErrInvalidLegData) {
		return err
	}
	aborted := err

	for _, st := range proj.Stations {
		fmt.Fprintln(out, survey.LogLine(projected[st.Index]))
	}
	for _, r := range proj.Rejected {
		fmt.Fprintf(out, "rejected: %v\n", r)
	}
	if aborted != nil {
		fmt.Fprintf(out, "stopped: %v\n", aborted)
	}
	length := units.ConvertLength(proj.HorizontalLength()/o.scale, o.lengthUnits)
	fmt.Fprintf(out, "%d stations, horizontal length %.2f%s\n", len(proj.Stations), length, o.lengthUnits)

	if err := write(o, proj); err != nil {
		return err
	}
	fmt.Fprintf(out, "wrote %s\n", o.output)
	return nil
}

func write(o options, proj survey.Projection) error {
	switch strings.ToLower(filepath.Ext(o.output)) {
	case ".png", ".svg":
		return render.SavePlot(o.output, proj, render.PlotOptions{Title: o.title, Labels: o.labels})
	case ".html":
		f, err := os.Create(o.output)
		if err != nil {
			return err
		}
		if err := render.WriteChart(f, proj, render.ChartOptions{Title: o.title}); err != nil {
			f.Close()
			return err
		}
		return f.Close()
	default:
		return fmt.Errorf("unsupported output %q: use .png, .svg or .html", o.output)
	}
}
