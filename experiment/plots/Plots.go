// Package plots saves learning curves and value functions as images
package plots

import (
	"image/color"

	"github.com/pkg/errors"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/samuelfneumann/rltrain/agent"
)

// Size of saved plots
const (
	Width  = 8 * vg.Inch
	Height = 5 * vg.Inch
)

// Line is a named series of y values plotted against their index
type Line struct {
	Name string
	Y    []float64
}

// Labels holds the text of a plot
type Labels struct {
	Title, X, Y string
}

var palette = []color.Color{
	color.RGBA{R: 31, G: 119, B: 180, A: 255},
	color.RGBA{R: 255, G: 127, B: 14, A: 255},
	color.RGBA{R: 44, G: 160, B: 44, A: 255},
	color.RGBA{R: 214, G: 39, B: 40, A: 255},
}

// Lines saves a plot of lines to filename. The image format is
// determined by the extension of filename, e.g. .png or .svg.
func Lines(filename string, labels Labels, lines ...Line) error {
	if len(lines) == 0 {
		return agent.NewConfigurationError("lines", "nothing to plot")
	}

	p := plot.New()
	p.Title.Text = labels.Title
	p.X.Label.Text = labels.X
	p.Y.Label.Text = labels.Y
	p.Legend.Top = true

	for i, l := range lines {
		pts := make(plotter.XYs, len(l.Y))
		for j, y := range l.Y {
			pts[j].X = float64(j)
			pts[j].Y = y
		}

		line, err := plotter.NewLine(pts)
		if err != nil {
			return errors.Wrapf(err, "lines: could not plot %v", l.Name)
		}
		line.Color = palette[i%len(palette)]

		p.Add(line)
		p.Legend.Add(l.Name, line)
	}

	if err := p.Save(Width, Height, filename); err != nil {
		return errors.Wrap(err, "lines: could not save plot")
	}
	return nil
}

// LearningCurve saves a plot of episodic returns along with their
// running mean
func LearningCurve(filename, title string, returns []float64) error {
	return Lines(
		filename,
		Labels{Title: title, X: "Episode", Y: "Return"},
		Line{Name: "Return", Y: returns},
		Line{Name: "Mean return", Y: RunningMean(returns)},
	)
}

// RunningMean returns the mean of the first i+1 values for each i
func RunningMean(values []float64) []float64 {
	means := make([]float64, len(values))

	var sum float64
	for i, v := range values {
		sum += v
		means[i] = sum / float64(i+1)
	}
	return means
}
