package monitor

import (
	"fmt"
	"image/color"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/simplify"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/roti-lab/auroral.report/internal/oval/l4clusters"
	"github.com/roti-lab/auroral.report/internal/oval/pipeline"
)

const (
	plotWidth  = 9 * vg.Inch
	plotHeight = 7 * vg.Inch
)

var (
	contourColor  = color.RGBA{R: 90, G: 90, B: 90, A: 255}
	interiorColor = color.RGBA{R: 46, G: 160, B: 67, A: 110}
)

// roleColor picks a ring color per boundary role.
func roleColor(role l4clusters.Role) color.Color {
	switch role {
	case l4clusters.RolePoleward:
		return color.RGBA{R: 31, G: 119, B: 180, A: 255}
	case l4clusters.RoleEquatorward:
		return color.RGBA{R: 255, G: 127, B: 14, A: 255}
	default:
		return color.RGBA{R: 148, G: 103, B: 189, A: 255}
	}
}

// EpochFileName returns the plot file name for an epoch.
func EpochFileName(res pipeline.EpochResult) string {
	return fmt.Sprintf("epoch_%s.png", res.Time.UTC().Format("1504"))
}

// simplifyRing reduces a ring with Douglas-Peucker. Rings that would
// degenerate are returned unchanged.
func (r *Reporter) simplifyRing(ring orb.Ring) orb.Ring {
	if r.tolerance < 0 {
		return ring
	}
	out, ok := simplify.DouglasPeucker(r.tolerance).Simplify(ring.Clone()).(orb.Ring)
	if !ok || len(out) < 4 {
		return ring
	}
	return out
}

func ringXYs(ring orb.Ring) plotter.XYs {
	xys := make(plotter.XYs, len(ring))
	for i, p := range ring {
		xys[i] = plotter.XY{X: p[0], Y: p[1]}
	}
	return xys
}

// EpochPlot builds the plot for one epoch without writing it.
func (r *Reporter) EpochPlot(res pipeline.EpochResult) (*plot.Plot, error) {
	region := res.Region
	if len(res.Contour) == 0 && (region == nil || len(region.Polygons) == 0) {
		return nil, ErrNothingToPlot
	}

	p := plot.New()
	p.Title.Text = fmt.Sprintf("Auroral oval %s (%s)", res.Time.UTC().Format("2006-01-02 15:04"), res.Kind())
	p.X.Label.Text = "Longitude (°)"
	p.Y.Label.Text = "Latitude (°)"
	p.Legend.Top = true
	p.Legend.Left = false
	p.Legend.XOffs = -10
	p.Legend.YOffs = -10

	if region != nil {
		for i, poly := range region.Interior {
			fill, err := plotter.NewPolygon(ringXYs(poly[0]))
			if err != nil {
				return nil, fmt.Errorf("interior polygon: %w", err)
			}
			fill.Color = interiorColor
			fill.LineStyle.Width = 0
			p.Add(fill)
			if i == 0 {
				p.Legend.Add("interior", fill)
			}
		}
	}

	if len(res.Contour) > 0 {
		xys := make(plotter.XYs, len(res.Contour))
		for i, pt := range res.Contour {
			xys[i] = plotter.XY{X: pt.Lon, Y: pt.Lat}
		}
		sc, err := plotter.NewScatter(xys)
		if err != nil {
			return nil, fmt.Errorf("contour scatter: %w", err)
		}
		sc.GlyphStyle.Color = contourColor
		sc.GlyphStyle.Radius = vg.Points(1.5)
		p.Add(sc)
		p.Legend.Add("contour", sc)
	}

	if region != nil {
		for i, poly := range region.Polygons {
			line, err := plotter.NewLine(ringXYs(r.simplifyRing(poly[0])))
			if err != nil {
				return nil, fmt.Errorf("polygon ring: %w", err)
			}
			line.Color = roleColor(region.Roles[i])
			line.Width = vg.Points(1.5)
			p.Add(line)
			p.Legend.Add(region.Roles[i].String(), line)
		}
	}
	return p, nil
}

// PlotEpoch writes the epoch's PNG into its day directory and returns the
// path written.
func (r *Reporter) PlotEpoch(res pipeline.EpochResult) (string, error) {
	p, err := r.EpochPlot(res)
	if err != nil {
		return "", err
	}
	path, err := r.dayPath(res.Time, EpochFileName(res))
	if err != nil {
		return "", err
	}

	wt, err := p.WriterTo(plotWidth, plotHeight, "png")
	if err != nil {
		return "", fmt.Errorf("render epoch plot: %w", err)
	}
	f, err := r.fs.Create(path)
	if err != nil {
		return "", fmt.Errorf("create %s: %w", path, err)
	}
	if _, err := wt.WriteTo(f); err != nil {
		f.Close()
		return "", fmt.Errorf("write %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("close %s: %w", path, err)
	}
	return path, nil
}
