// Package render draws spectra and range-Doppler maps for offline review.
package render

import (
	"errors"
	"fmt"
	"image/color"
	"io"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"github.com/rjboer/GoFMCW/internal/dsp"
)

// ErrNoData is returned when there is nothing to draw.
var ErrNoData = errors.New("render: no data")

var palette = []color.Color{
	color.RGBA{R: 31, G: 119, B: 180, A: 255},
	color.RGBA{R: 255, G: 127, B: 14, A: 255},
	color.RGBA{R: 44, G: 160, B: 44, A: 255},
	color.RGBA{R: 214, G: 39, B: 40, A: 255},
}

const (
	plotWidth  = 10 * vg.Inch
	plotHeight = 4 * vg.Inch
)

// SpectrumPlot writes a PNG of |X(f)| against frequency with DC in the
// centre. Bins set in mask are marked.
func SpectrumPlot(spec dsp.Spectrum, mask []bool, w io.Writer) error {
	n := spec.Len()
	if n == 0 {
		return ErrNoData
	}
	if mask != nil && len(mask) != n {
		return fmt.Errorf("%w: mask %d bins, spectrum %d", dsp.ErrLengthMismatch, len(mask), n)
	}

	mag := spec.Magnitude()
	line := make(plotter.XYs, 0, n)
	var hits plotter.XYs
	// walk bins in fftshift order so the line is monotonic in frequency
	for k := 0; k < n; k++ {
		i := (k + (n+1)/2) % n
		line = append(line, plotter.XY{X: spec.Freqs[i], Y: mag[i]})
		if mask != nil && mask[i] {
			hits = append(hits, plotter.XY{X: spec.Freqs[i], Y: mag[i]})
		}
	}

	p := plot.New()
	p.Title.Text = "Beat spectrum"
	p.X.Label.Text = "Frequency (Hz)"
	p.Y.Label.Text = "|X(f)|"

	l, err := plotter.NewLine(line)
	if err != nil {
		return err
	}
	l.Color = palette[0]
	l.Width = vg.Points(1)
	p.Add(l)
	p.Legend.Add("magnitude", l)

	if len(hits) > 0 {
		sc, err := plotter.NewScatter(hits)
		if err != nil {
			return err
		}
		sc.GlyphStyle.Color = palette[3]
		sc.GlyphStyle.Shape = draw.CircleGlyph{}
		sc.GlyphStyle.Radius = vg.Points(3)
		p.Add(sc)
		p.Legend.Add("CFAR detection", sc)
	}
	p.Legend.Top = true

	return writePNG(p, w)
}

// Series is one named complex signal for TimePlot.
type Series struct {
	Name   string
	Values []complex128
}

// TimePlot writes a PNG of the real part of each series against times.
func TimePlot(times []float64, w io.Writer, series ...Series) error {
	if len(times) == 0 || len(series) == 0 {
		return ErrNoData
	}

	p := plot.New()
	p.Title.Text = "Signals"
	p.X.Label.Text = "Time (s)"
	p.Y.Label.Text = "Amplitude"

	for i, s := range series {
		if len(s.Values) != len(times) {
			return fmt.Errorf("%w: series %q has %d samples, want %d", dsp.ErrLengthMismatch, s.Name, len(s.Values), len(times))
		}
		pts := make(plotter.XYs, len(times))
		for j, v := range s.Values {
			pts[j] = plotter.XY{X: times[j], Y: real(v)}
		}
		l, err := plotter.NewLine(pts)
		if err != nil {
			return err
		}
		l.Color = palette[i%len(palette)]
		l.Width = vg.Points(1)
		p.Add(l)
		p.Legend.Add(s.Name, l)
	}
	p.Legend.Top = true

	return writePNG(p, w)
}

func writePNG(p *plot.Plot, w io.Writer) error {
	wt, err := p.WriterTo(plotWidth, plotHeight, "png")
	if err != nil {
		return err
	}
	_, err = wt.WriteTo(w)
	return err
}
