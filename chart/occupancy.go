// Package chart renders session summaries as standalone HTML charts.
package chart

import (
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/justapithecus/hbframe/types"
)

// ErrNoSessions is returned when there is nothing to chart.
var ErrNoSessions = errors.New("no sessions to chart")

// Options controls page rendering.
type Options struct {
	// Title is the page title. Empty selects "hbframe occupancy".
	Title string
	// AssetsHost overrides where echarts.min.js is loaded from.
	// Empty keeps the go-echarts default CDN.
	AssetsHost string
	// Height of each chart, CSS units.
	Height string
}

func (o Options) withDefaults() Options {
	if o.Title == "" {
		o.Title = "hbframe occupancy"
	}
	if o.Height == "" {
		o.Height = "480px"
	}
	return o
}

// Occupancy builds a stacked bar chart of hit and empty heartbeat frames
// per time frame for one session.
func Occupancy(sum types.SessionSummary, o Options) *charts.Bar {
	o = o.withDefaults()

	x := make([]string, 0, len(sum.Occupancy))
	hit := make([]opts.BarData, 0, len(sum.Occupancy))
	empty := make([]opts.BarData, 0, len(sum.Occupancy))
	for _, occ := range sum.Occupancy {
		x = append(x, strconv.FormatInt(occ.TimeFrame, 10))
		hit = append(hit, opts.BarData{Value: occ.Hit})
		empty = append(empty, opts.BarData{Value: occ.Empty})
	}

	init := opts.Initialization{Width: "100%", Height: o.Height}
	if o.AssetsHost != "" {
		init.AssetsHost = o.AssetsHost
	}

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(init),
		charts.WithTitleOpts(opts.Title{
			Title:    label(sum),
			Subtitle: fmt.Sprintf("frames=%d empty=%d tf=%d", sum.FramesOpened, sum.EmptyFrames, sum.TimeFrames),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true), Right: "10%"}),
		charts.WithXAxisOpts(opts.XAxis{Name: "TF", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Name: "HBF", NameLocation: "middle", NameGap: 30}),
	)
	bar.SetXAxis(x).
		AddSeries("hit", hit, charts.WithBarChartOpts(opts.BarChart{Stack: "hbf"})).
		AddSeries("empty", empty, charts.WithBarChartOpts(opts.BarChart{Stack: "hbf"}))
	return bar
}

// Render writes one page holding an occupancy chart per session.
func Render(w io.Writer, sums []types.SessionSummary, o Options) error {
	if len(sums) == 0 {
		return ErrNoSessions
	}
	o = o.withDefaults()

	page := components.NewPage()
	page.PageTitle = o.Title
	if o.AssetsHost != "" {
		page.SetAssetsHost(o.AssetsHost)
	}
	for _, sum := range sums {
		page.AddCharts(Occupancy(sum, o))
	}
	if err := page.Render(w); err != nil {
		return fmt.Errorf("render occupancy: %w", err)
	}
	return nil
}

func label(sum types.SessionSummary) string {
	switch {
	case sum.Detector != "" && sum.Link != "":
		return sum.Detector + "/" + sum.Link
	case sum.Link != "":
		return sum.Link
	case sum.SessionID != "":
		return sum.SessionID
	default:
		return "session"
	}
}
