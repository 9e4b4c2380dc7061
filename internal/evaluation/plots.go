package evaluation

import (
	"bytes"
	"fmt"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/palette"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
)

const (
	plotWidth  = 6 * vg.Inch
	plotHeight = 5 * vg.Inch
)

// RenderPRCurves draws every class curve and the dashed micro curve as PNG
func RenderPRCurves(curves []PRCurve, micro PRCurve) ([]byte, error) {
	p := plot.New()
	p.Title.Text = "Precision-Recall"
	p.X.Label.Text = "Recall"
	p.Y.Label.Text = "Precision"
	p.X.Min, p.X.Max = 0, 1
	p.Y.Min, p.Y.Max = 0, 1.05
	p.Legend.Top = false
	p.Legend.Left = true

	for i, c := range append(append([]PRCurve(nil), curves...), micro) {
		line, err := plotter.NewLine(curvePoints(c))
		if err != nil {
			return nil, fmt.Errorf("curve %s: %w", c.Label, err)
		}
		line.LineStyle.Width = vg.Points(1.5)
		line.LineStyle.Color = plotutil.Color(i)
		if i == len(curves) {
			line.LineStyle.Dashes = []vg.Length{vg.Points(4), vg.Points(4)}
		}
		p.Add(line)
		p.Legend.Add(fmt.Sprintf("%s (AP=%.2f)", c.Label, c.AveragePrecision), line)
	}
	return encodePNG(p)
}

func curvePoints(c PRCurve) plotter.XYs {
	pts := make(plotter.XYs, len(c.Recall))
	for i := range c.Recall {
		pts[i].X = c.Recall[i]
		pts[i].Y = c.Precision[i]
	}
	return pts
}

// RenderConfusion draws a row-normalised confusion matrix as a heat map
func RenderConfusion(m *mat.Dense, labels []string) ([]byte, error) {
	g := confusionGrid{m: m}
	h := plotter.NewHeatMap(g, palette.Heat(12, 1))
	h.Min, h.Max = 0, 1

	p := plot.New()
	p.Title.Text = "Confusion matrix (row-normalised)"
	p.X.Label.Text = "Predicted"
	p.Y.Label.Text = "True"
	p.Add(h)

	ticks := make(plot.ConstantTicks, len(labels))
	for i, l := range labels {
		ticks[i] = plot.Tick{Value: float64(i), Label: l}
	}
	p.X.Tick.Marker = ticks
	p.Y.Tick.Marker = ticks
	return encodePNG(p)
}

// confusionGrid adapts a square matrix to plotter.GridXYZ. Column c is the
// predicted class and row r the true class.
type confusionGrid struct {
	m *mat.Dense
}

func (g confusionGrid) Dims() (c, r int) {
	rows, cols := g.m.Dims()
	return cols, rows
}

func (g confusionGrid) Z(c, r int) float64 { return g.m.At(r, c) }

func (g confusionGrid) X(c int) float64 { return float64(c) }

func (g confusionGrid) Y(r int) float64 { return float64(r) }

func encodePNG(p *plot.Plot) ([]byte, error) {
	w, err := p.WriterTo(plotWidth, plotHeight, "png")
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if _, err := w.WriteTo(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
