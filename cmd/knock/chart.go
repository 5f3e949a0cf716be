package main

import (
	"fmt"
	"image/color"
	"math"
	"path/filepath"
	"strings"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/cwbudde/algo-knock/measure/ripeness"
	"github.com/cwbudde/algo-knock/session"
)

var boundaryColor = color.RGBA{R: 160, G: 160, B: 160, A: 255}

// writeChart saves the peak history to path. When the readout carries a
// tap verdict with a spectrum, the spectrum of the strongest frame is
// saved next to it with a "_verdict" suffix.
func writeChart(path string, ro session.Readout) error {
	p := plot.New()
	p.Title.Text = "Knock peak history"
	p.X.Label.Text = "Time (s)"
	p.Y.Label.Text = "Peak frequency (Hz)"

	pts := make(plotter.XYs, 0, len(ro.History))
	for _, s := range ro.History {
		if s.IsFloor() {
			continue
		}
		pts = append(pts, plotter.XY{X: s.Timestamp, Y: s.Frequency})
	}

	if len(pts) > 0 {
		line, err := plotter.NewLine(pts)
		if err != nil {
			return err
		}
		line.Color = color.RGBA{G: 128, A: 255}
		line.Width = vg.Points(1)
		p.Add(line)
		p.Legend.Add("peak", line)

		x0, x1 := pts[0].X, pts[len(pts)-1].X
		if x1 == x0 {
			x1 = x0 + 1
		}
		for _, c := range ripeness.Categories[1:] {
			lo, _ := ripeness.Bounds(c)
			b, err := plotter.NewLine(plotter.XYs{{X: x0, Y: lo}, {X: x1, Y: lo}})
			if err != nil {
				return err
			}
			b.Color = boundaryColor
			b.Width = vg.Points(0.5)
			b.Dashes = []vg.Length{vg.Points(4), vg.Points(2)}
			p.Add(b)
			p.Legend.Add(fmt.Sprintf("%s >= %.0f Hz", c, lo), b)
		}
	}

	if err := p.Save(14*vg.Inch, 6*vg.Inch, path); err != nil {
		return err
	}

	if v := ro.Verdict; v != nil && v.Found && len(v.Levels) > 0 && ro.SampleRate > 0 {
		return writeVerdictChart(verdictPath(path), ro)
	}
	return nil
}

func writeVerdictChart(path string, ro session.Readout) error {
	v := ro.Verdict
	p := plot.New()
	p.Title.Text = fmt.Sprintf("Strongest frame: %.1f Hz, %.1f dB, %s", v.Peak.Frequency, v.Peak.Amplitude, v.Category)
	p.X.Label.Text = "Frequency (Hz)"
	p.Y.Label.Text = "Level (dB)"

	binHz := ro.SampleRate / float64(2*len(v.Levels))
	pts := make(plotter.XYs, 0, len(v.Levels))
	for i, l := range v.Levels {
		pts = append(pts, plotter.XY{X: float64(i) * binHz, Y: math.Max(l, -100)})
	}
	line, err := plotter.NewLine(pts)
	if err != nil {
		return err
	}
	line.Color = color.RGBA{G: 128, A: 255}
	line.Width = vg.Points(1)
	p.Add(line)

	return p.Save(14*vg.Inch, 6*vg.Inch, path)
}

func verdictPath(path string) string {
	ext := filepath.Ext(path)
	return strings.TrimSuffix(path, ext) + "_verdict" + ext
}
