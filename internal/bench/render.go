package bench

import (
	"fmt"
	"io"
	"math"
	"slices"
	"strconv"

	"github.com/dustin/go-humanize"
	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

const (
	chartWidth  = "100%"
	chartHeight = "500px"
	boundSeries = "2·log2(n+1)"
)

// RenderTable writes results as a box-drawn table.
func RenderTable(w io.Writer, results []Result) {
	tbl := table.NewWriter()
	tbl.SetOutputMirror(w)
	tbl.SetStyle(table.StyleLight)
	tbl.AppendHeader(table.Row{
		"Order", "Size", "Height", "Bound", "Rotations", "Swaps", "Repositions",
		"Insert/op", "Get/op", "Delete/op", "Spread", "Footprint",
	})
	tbl.SetColumnConfigs([]table.ColumnConfig{
		{Number: 2, Align: text.AlignRight},
		{Number: 3, Align: text.AlignRight},
		{Number: 4, Align: text.AlignRight},
		{Number: 5, Align: text.AlignRight},
	})

	for _, res := range results {
		tbl.AppendRow(table.Row{
			res.Order,
			humanize.Comma(int64(res.Size)),
			res.Height,
			fmt.Sprintf("%.1f", res.Bound),
			humanize.Comma(int64(res.Rotations)), //nolint:gosec // counts stay far below MaxInt64.
			res.Swaps,
			res.Repositions,
			res.Insert,
			res.Get,
			res.Delete,
			fmt.Sprintf("±%.0f%%", res.Spread*100),
			humanize.IBytes(res.Footprint),
		})
	}

	tbl.AppendFooter(table.Row{fmt.Sprintf("Total: %d runs", len(results))})
	tbl.Render()
}

// RenderHeightChart writes an HTML page plotting tree height against size,
// one series per insertion order plus the theoretical bound.
func RenderHeightChart(w io.Writer, results []Result) error {
	sizes := distinctSizes(results)

	labels := make([]string, len(sizes))
	for idx, size := range sizes {
		labels[idx] = strconv.Itoa(size)
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: chartWidth, Height: chartHeight}),
		charts.WithTitleOpts(opts.Title{Title: "Red-black tree height", Subtitle: "edges on the longest path", Left: "center"}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true), Top: "10%", Left: "center"}),
		charts.WithXAxisOpts(opts.XAxis{Name: "Size"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "Height"}),
	)
	line.SetXAxis(labels)

	for _, order := range distinctOrders(results) {
		data := make([]opts.LineData, len(sizes))

		for _, res := range results {
			if res.Order == order {
				data[slices.Index(sizes, res.Size)] = opts.LineData{Value: res.Height}
			}
		}

		line.AddSeries(order, data)
	}

	bound := make([]opts.LineData, len(sizes))
	for idx, size := range sizes {
		bound[idx] = opts.LineData{Value: math.Round(HeightBound(size)*100) / 100}
	}

	line.AddSeries(boundSeries, bound,
		charts.WithLineStyleOpts(opts.LineStyle{Type: "dashed"}),
	)

	err := line.Render(w)
	if err != nil {
		return fmt.Errorf("render height chart: %w", err)
	}

	return nil
}

func distinctSizes(results []Result) []int {
	sizes := make([]int, 0, len(results))
	for _, res := range results {
		sizes = append(sizes, res.Size)
	}

	slices.Sort(sizes)

	return slices.Compact(sizes)
}

func distinctOrders(results []Result) []string {
	var orders []string

	for _, res := range results {
		if !slices.Contains(orders, res.Order) {
			orders = append(orders, res.Order)
		}
	}

	return orders
}
