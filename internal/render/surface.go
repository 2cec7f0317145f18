package render

import (
	"fmt"
	"io"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
	"github.com/go-echarts/go-echarts/v2/types"

	"github.com/rjboer/GoFMCW/internal/fmcw"
)

// AssetsHost is where rendered HTML pages load echarts from.
var AssetsHost = "https://go-echarts.github.io/go-echarts-assets/assets/"

// RangeDopplerSurface writes an interactive HTML page with |map| as a 3D
// surface over the integer (column, row) grid.
func RangeDopplerSurface(m fmcw.RangeDopplerMap, w io.Writer) error {
	if m.Rows == 0 || m.Cols == 0 {
		return ErrNoData
	}

	mag := m.Magnitude()
	data := make([]opts.Chart3DData, 0, m.Rows*m.Cols)
	var peak float64
	for r, row := range mag {
		for c, v := range row {
			if v > peak {
				peak = v
			}
			data = append(data, opts.Chart3DData{Value: []interface{}{c, r, v}})
		}
	}

	surface := charts.NewSurface3D()
	surface.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Range-Doppler Map", Theme: "dark", Width: "1000px", Height: "800px", AssetsHost: AssetsHost}),
		charts.WithTitleOpts(opts.Title{Title: "3D Range-Doppler Map", Subtitle: fmt.Sprintf("rows=%d cols=%d peak=%.3g", m.Rows, m.Cols, peak)}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxis3DOpts(opts.XAxis3D{Name: "Sample bin", Type: "value"}),
		charts.WithYAxis3DOpts(opts.YAxis3D{Name: "Target row", Type: "value"}),
		charts.WithZAxis3DOpts(opts.ZAxis3D{Name: "|X|", Type: "value"}),
		charts.WithVisualMapOpts(opts.VisualMap{
			Show:       opts.Bool(true),
			Calculable: opts.Bool(true),
			Min:        0,
			Max:        float32(peak),
			InRange:    &opts.VisualMapInRange{Color: []string{"#000080", "#0000ff", "#00ffff", "#ffff00", "#ff0000", "#800000"}},
		}),
	)
	surface.AddSeries("magnitude", data)
	// AddSeries registers a scatter3D series; draw it as a surface instead
	surface.MultiSeries[0].Type = types.ChartSurface3D

	return surface.Render(w)
}
