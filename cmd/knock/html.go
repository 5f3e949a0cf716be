package main

import (
	"fmt"
	"os"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/cwbudde/algo-knock/measure/ripeness"
	"github.com/cwbudde/algo-knock/session"
)

// writeHTMLChart saves an interactive scatter of the peak history, one
// series per ripeness category.
func writeHTMLChart(path string, ro session.Readout) error {
	series := make(map[ripeness.Category][]opts.ScatterData, len(ripeness.Categories))
	n := 0
	for _, s := range ro.History {
		if s.IsFloor() {
			continue
		}
		c := ripeness.Classify(s.Frequency)
		series[c] = append(series[c], opts.ScatterData{Value: []interface{}{s.Timestamp, s.Frequency, s.Amplitude}})
		n++
	}

	scatter := charts.NewScatter()
	scatter.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Knock history", Width: "1200px", Height: "600px"}),
		charts.WithTitleOpts(opts.Title{Title: "Knock peak history", Subtitle: fmt.Sprintf("session=%s peaks=%d", ro.SessionID, n)}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Name: "Time (s)", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Name: "Peak (Hz)", NameLocation: "middle", NameGap: 40}),
	)
	for _, c := range ripeness.Categories {
		scatter.AddSeries(c.String(), series[c], charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 6}))
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := scatter.Render(f); err != nil {
		_ = f.Close()
		return fmt.Errorf("render chart: %w", err)
	}
	return f.Close()
}
