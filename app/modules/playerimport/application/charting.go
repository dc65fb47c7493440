package importservice

import (
	"bytes"

	importdomain "github.com/Black-And-White-Club/casino-ops/app/modules/playerimport/domain"
	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"
)

var (
	chartBackground = drawing.ColorFromHex("101418")
	chartText       = drawing.ColorFromHex("E6E1D6")
	outcomeColors   = map[string]drawing.Color{
		"Created":   drawing.ColorFromHex("3FA34D"),
		"Linked":    drawing.ColorFromHex("2F6FB2"),
		"Conflicts": drawing.ColorFromHex("D98E04"),
		"Skipped":   drawing.ColorFromHex("7A7F87"),
	}
)

// RenderExecutionChart draws the outcome counts of an execution report as a PNG bar chart.
func RenderExecutionChart(report *importdomain.ExecutionReport) ([]byte, error) {
	counts := []struct {
		label string
		value int
	}{
		{"Created", report.Created},
		{"Linked", report.Linked},
		{"Conflicts", report.Conflicts},
		{"Skipped", len(report.Skipped)},
	}

	total := 0
	bars := make([]chart.Value, 0, len(counts))
	for _, c := range counts {
		total += c.value
		bars = append(bars, chart.Value{
			Label: c.label,
			Value: float64(c.value),
			Style: chart.Style{
				FillColor:   outcomeColors[c.label],
				StrokeColor: outcomeColors[c.label],
			},
		})
	}
	if total == 0 {
		return renderNoDataPlaceholder("No rows were executed")
	}

	graph := chart.BarChart{
		Title:      "Import outcomes",
		TitleStyle: chart.Style{FontColor: chartText},
		Width:      640,
		Height:     360,
		BarWidth:   80,
		Background: chart.Style{FillColor: chartBackground, Padding: chart.Box{Top: 40}},
		Canvas:     chart.Style{FillColor: chartBackground},
		XAxis:      chart.Style{FontColor: chartText},
		YAxis: chart.YAxis{
			Style: chart.Style{FontColor: chartText},
			Range: &chart.ContinuousRange{Min: 0, Max: float64(maxCount(bars))},
		},
		Bars: bars,
	}

	var buf bytes.Buffer
	if err := graph.Render(chart.PNG, &buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func maxCount(bars []chart.Value) int {
	m := 1
	for _, b := range bars {
		if int(b.Value) > m {
			m = int(b.Value)
		}
	}
	return m
}

func renderNoDataPlaceholder(msg string) ([]byte, error) {
	graph := chart.Chart{
		Width:      400,
		Height:     200,
		Background: chart.Style{FillColor: chartBackground},
		Canvas:     chart.Style{FillColor: chartBackground},
		Elements: []chart.Renderable{
			func(r chart.Renderer, cb chart.Box, _ chart.Style) {
				r.SetFontColor(chartText)
				r.SetFontSize(12.0)
				tb := r.MeasureText(msg)
				r.Text(msg, (cb.Width()-tb.Width())/2, (cb.Height()+tb.Height())/2)
			},
		},
	}
	var buf bytes.Buffer
	if err := graph.Render(chart.PNG, &buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
