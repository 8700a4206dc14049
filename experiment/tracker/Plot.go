package tracker

import (
	"fmt"
	"sort"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
)

// Plot draws one line per named series against its index and saves
// the figure to filename. The image format is chosen by the filename
// extension, e.g. .png or .svg.
func Plot(filename, title, xLabel, yLabel string,
	series map[string][]float64) error {
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = xLabel
	p.Y.Label.Text = yLabel

	names := make([]string, 0, len(series))
	for name := range series {
		names = append(names, name)
	}
	sort.Strings(names)

	for i, name := range names {
		data := series[name]
		points := make(plotter.XYs, len(data))
		for j, y := range data {
			points[j].X = float64(j)
			points[j].Y = y
		}

		line, err := plotter.NewLine(points)
		if err != nil {
			return fmt.Errorf("plot: could not plot %v: %v", name, err)
		}
		line.Color = plotutil.Color(i)
		p.Add(line)
		p.Legend.Add(name, line)
	}

	if err := p.Save(8*vg.Inch, 6*vg.Inch, filename); err != nil {
		return fmt.Errorf("plot: could not save %v: %v", filename, err)
	}
	return nil
}
