package report

import (
	"fmt"
	"io"
	"math"
	"strconv"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/Sumatoshi-tech/defectlab/pkg/evaluate"
)

const (
	chartWidth   = "1200px"
	chartHeight  = "560px"
	labelRotate  = 60
	fullZoomPct  = 100
	labelFont    = 9
	missingValue = "-"
)

// WriteChart renders an HTML page with the mean metrics of every
// configuration and the per-release AUC of the best configuration of each
// classifier.
func WriteChart(w io.Writer, res *evaluate.Results) error {
	page := components.NewPage()
	page.PageTitle = res.Project + " defect prediction"
	page.AddCharts(meansChart(res), walkForwardChart(res))

	err := page.Render(w)
	if err != nil {
		return fmt.Errorf("render chart: %w", err)
	}

	return nil
}

func meansChart(res *evaluate.Results) *charts.Bar {
	means := res.Means()
	labels := make([]string, len(means))

	for i, r := range means {
		labels[i] = r.Configuration.String()
	}

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: chartWidth, Height: chartHeight}),
		charts.WithTitleOpts(opts.Title{Title: "Mean metrics per configuration", Subtitle: res.Project}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true), Top: "5%"}),
		charts.WithDataZoomOpts(opts.DataZoom{Type: "slider", Start: 0, End: fullZoomPct}, opts.DataZoom{Type: "inside"}),
		charts.WithXAxisOpts(opts.XAxis{AxisLabel: &opts.AxisLabel{Rotate: labelRotate, Interval: "0", FontSize: labelFont}}),
		charts.WithYAxisOpts(opts.YAxis{Name: "score"}),
		charts.WithGridOpts(opts.Grid{Bottom: "30%", ContainLabel: opts.Bool(true)}),
	)
	bar.SetXAxis(labels)

	series := []struct {
		name  string
		value func(evaluate.Result) float64
	}{
		{"precision", func(r evaluate.Result) float64 { return r.Precision }},
		{"recall", func(r evaluate.Result) float64 { return r.Recall }},
		{"AUC", func(r evaluate.Result) float64 { return r.AUC }},
		{"kappa", func(r evaluate.Result) float64 { return r.Kappa }},
	}

	for _, s := range series {
		data := make([]opts.BarData, len(means))

		for i, r := range means {
			data[i] = opts.BarData{Value: chartValue(s.value(r))}
		}

		bar.AddSeries(s.name, data)
	}

	return bar
}

func walkForwardChart(res *evaluate.Results) *charts.Line {
	best := bestPerClassifier(res)

	maxOrdinal := 0

	for _, r := range res.Rows {
		maxOrdinal = max(maxOrdinal, r.Ordinal)
	}

	var labels []string

	for ord := 2; ord <= maxOrdinal; ord++ {
		labels = append(labels, strconv.Itoa(ord))
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: chartWidth, Height: chartHeight}),
		charts.WithTitleOpts(opts.Title{Title: "AUC per tested release", Subtitle: "best configuration of each classifier"}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true), Type: "scroll", Top: "5%"}),
		charts.WithXAxisOpts(opts.XAxis{Name: "release"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "AUC"}),
	)
	line.SetXAxis(labels)

	for _, cfg := range best {
		data := make([]opts.LineData, len(labels))
		for i := range data {
			data[i] = opts.LineData{Value: missingValue}
		}

		for _, r := range res.Rows {
			if r.Configuration == cfg && r.Ordinal >= 2 && r.Status == evaluate.StatusOK {
				data[r.Ordinal-2] = opts.LineData{Value: chartValue(r.AUC)}
			}
		}

		line.AddSeries(cfg.String(), data)
	}

	return line
}

// bestPerClassifier picks, per classifier, the configuration with the highest
// mean AUC. The best classifier comes first.
func bestPerClassifier(res *evaluate.Results) []evaluate.Configuration {
	var (
		order []evaluate.Classifier
		best  = map[evaluate.Classifier]evaluate.Configuration{}
	)

	for _, r := range RankByAUC(res.Means()) {
		if _, seen := best[r.Classifier]; seen {
			continue
		}

		best[r.Classifier] = r.Configuration
		order = append(order, r.Classifier)
	}

	out := make([]evaluate.Configuration, len(order))
	for i, c := range order {
		out[i] = best[c]
	}

	return out
}

func chartValue(v float64) any {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return missingValue
	}

	return math.Round(v*1000) / 1000
}
