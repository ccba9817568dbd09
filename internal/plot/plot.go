// Package plot renders the equivalent currents of each chamber over the run.
package plot

import (
	"fmt"
	"image/color"
	"os"
	"path/filepath"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/gemdqm/hvlumi"
)

var (
	monColor = color.RGBA{R: 31, G: 119, B: 180, A: 255}
	setColor = color.RGBA{R: 255, G: 127, B: 14, A: 255}
	badColor = color.RGBA{R: 214, G: 39, B: 40, A: 255}
)

// Path returns the plot file of chamber inside dir.
func Path(dir, chamber string) string {
	return filepath.Join(dir, chamber+".png")
}

// Chamber draws the monitored and set currents of res against grid, with the grid
// points inside a bad interval highlighted, and saves it as a PNG.
func Chamber(dir string, grid []int64, res hvlumi.ChamberResult) (string, error) {
	if !res.Valid {
		return "", fmt.Errorf("chamber %s has no currents to plot", res.ID)
	}
	if len(grid) != len(res.Currents.Mon) || len(grid) != len(res.Currents.Set) {
		return "", fmt.Errorf("chamber %s: %d grid points, %d/%d currents",
			res.ID, len(grid), len(res.Currents.Mon), len(res.Currents.Set))
	}

	p := plot.New()
	p.Title.Text = fmt.Sprintf("%s equivalent divider current", res.ID)
	p.X.Label.Text = "Time since run start (s)"
	p.Y.Label.Text = "Current (uA)"

	monPts := make(plotter.XYs, len(grid))
	setPts := make(plotter.XYs, len(grid))
	badPts := make(plotter.XYs, 0)
	for i, t := range grid {
		x := float64(t-grid[0]) / 1000
		monPts[i] = plotter.XY{X: x, Y: res.Currents.Mon[i]}
		setPts[i] = plotter.XY{X: x, Y: res.Currents.Set[i]}
		if inIntervals(t, res.Intervals) {
			badPts = append(badPts, monPts[i])
		}
	}

	monLine, err := plotter.NewLine(monPts)
	if err != nil {
		return "", err
	}
	monLine.Color = monColor
	monLine.Width = vg.Points(1)

	setLine, err := plotter.NewLine(setPts)
	if err != nil {
		return "", err
	}
	setLine.Color = setColor
	setLine.Width = vg.Points(1)
	setLine.Dashes = []vg.Length{vg.Points(4), vg.Points(2)}

	p.Add(monLine, setLine)
	p.Legend.Add(hvlumi.Mon.String(), monLine)
	p.Legend.Add(hvlumi.Set.String(), setLine)

	if len(badPts) > 0 {
		bad, err := plotter.NewScatter(badPts)
		if err != nil {
			return "", err
		}
		bad.GlyphStyle.Color = badColor
		bad.GlyphStyle.Radius = vg.Points(2)
		p.Add(bad)
		p.Legend.Add("bad HV", bad)
	}

	p.Legend.Top = true
	p.Legend.Left = false
	p.Legend.XOffs = -10
	p.Legend.YOffs = -10

	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create plot dir: %w", err)
	}
	path := Path(dir, res.ID)
	if err := p.Save(14*vg.Inch, 6*vg.Inch, path); err != nil {
		return "", fmt.Errorf("save plot of %s: %w", res.ID, err)
	}
	return path, nil
}

// Run plots every valid chamber of report and returns the written files.
func Run(dir string, grid []int64, report *hvlumi.Report) ([]string, error) {
	var files []string
	for _, res := range report.Results {
		if !res.Valid {
			continue
		}
		path, err := Chamber(dir, grid, res)
		if err != nil {
			return files, err
		}
		files = append(files, path)
	}
	return files, nil
}

func inIntervals(t int64, intervals []hvlumi.BadInterval) bool {
	for _, iv := range intervals {
		if t >= iv.Start && t <= iv.End {
			return true
		}
	}
	return false
}
