package monitor

import (
	"bytes"
	"fmt"
	"image/color"
	"net/http"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"github.com/banshee-data/lidarsynth/internal/httputil"
	"github.com/banshee-data/lidarsynth/internal/lidar/l4perception"
	"github.com/banshee-data/lidarsynth/internal/lidar/l5tracks"
)

// scene is what both plots draw: the last rotation's cluster points and
// the live objects, on a square of half-width extent centred on the sensor.
type scene struct {
	points  []l4perception.Point
	objects []l5tracks.TrackedObject
	extent  float64
}

func (s *Server) scene() scene {
	clusters := s.tracker.Clusters()
	var points []l4perception.Point
	for _, c := range clusters {
		points = append(points, c.Points...)
	}
	extent := s.tracker.Config().MaxDistance * 1.05
	if extent <= 0 {
		extent = 1
	}
	return scene{points: points, objects: s.tracker.Objects(), extent: extent}
}

// handlePlot renders an interactive scatter (HTML) of cluster points and
// tracked objects using go-echarts. Each object is coloured by its channel.
func (s *Server) handlePlot(w http.ResponseWriter, r *http.Request) {
	sc := s.scene()

	pointData := make([]opts.ScatterData, 0, len(sc.points))
	for _, p := range sc.points {
		pointData = append(pointData, opts.ScatterData{Value: []interface{}{p.X, p.Y}})
	}

	scatter := charts.NewScatter()
	scatter.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "LiDAR tracked objects", Theme: "dark", Width: "800px", Height: "800px"}),
		charts.WithTitleOpts(opts.Title{Title: "Tracked objects", Subtitle: fmt.Sprintf("points=%d objects=%d", len(sc.points), len(sc.objects))}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Min: -sc.extent, Max: sc.extent, Name: "X (cm)", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Min: -sc.extent, Max: sc.extent, Name: "Y (cm)", NameLocation: "middle", NameGap: 30}),
	)
	scatter.AddSeries("points", pointData,
		charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 3}),
		charts.WithItemStyleOpts(opts.ItemStyle{Color: "#888888"}))
	scatter.AddSeries("sensor", []opts.ScatterData{{Name: "sensor", Value: []interface{}{0, 0}, Symbol: "diamond"}},
		charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 10}),
		charts.WithItemStyleOpts(opts.ItemStyle{Color: "#ffffff"}))
	for _, o := range sc.objects {
		scatter.AddSeries(fmt.Sprintf("ch%d", o.Channel), []opts.ScatterData{{
			Name:  fmt.Sprintf("%s note %d mod %d", o.ID, o.CurrentNote, o.Modulation),
			Value: []interface{}{o.X, o.Y},
		}},
			charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 14}),
			charts.WithItemStyleOpts(opts.ItemStyle{Color: hexColor(channelColor(o.Channel))}))
	}

	var buf bytes.Buffer
	if err := scatter.Render(&buf); err != nil {
		httputil.WriteJSONError(w, http.StatusInternalServerError, fmt.Sprintf("failed to render chart: %v", err))
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}

// handlePlotPNG renders the same scene as a static PNG with gonum/plot.
func (s *Server) handlePlotPNG(w http.ResponseWriter, r *http.Request) {
	sc := s.scene()

	p := plot.New()
	p.Title.Text = fmt.Sprintf("Tracked objects (%d)", len(sc.objects))
	p.X.Label.Text = "X (cm)"
	p.Y.Label.Text = "Y (cm)"
	p.X.Min, p.X.Max = -sc.extent, sc.extent
	p.Y.Min, p.Y.Max = -sc.extent, sc.extent
	p.Add(plotter.NewGrid())

	if len(sc.points) > 0 {
		xys := make(plotter.XYs, len(sc.points))
		for i, pt := range sc.points {
			xys[i] = plotter.XY{X: pt.X, Y: pt.Y}
		}
		pts, err := plotter.NewScatter(xys)
		if err != nil {
			httputil.WriteJSONError(w, http.StatusInternalServerError, err.Error())
			return
		}
		pts.GlyphStyle.Color = color.Gray{Y: 120}
		pts.GlyphStyle.Radius = vg.Points(1)
		p.Add(pts)
	}

	for _, o := range sc.objects {
		obj, err := plotter.NewScatter(plotter.XYs{{X: o.X, Y: o.Y}})
		if err != nil {
			httputil.WriteJSONError(w, http.StatusInternalServerError, err.Error())
			return
		}
		obj.GlyphStyle.Color = channelColor(o.Channel)
		obj.GlyphStyle.Radius = vg.Points(5)
		obj.GlyphStyle.Shape = draw.CircleGlyph{}
		p.Add(obj)
		p.Legend.Add(fmt.Sprintf("ch%d note %d", o.Channel, o.CurrentNote), obj)
	}
	p.Legend.Top = true

	wt, err := p.WriterTo(6*vg.Inch, 6*vg.Inch, "png")
	if err != nil {
		httputil.WriteJSONError(w, http.StatusInternalServerError, fmt.Sprintf("failed to render plot: %v", err))
		return
	}
	var buf bytes.Buffer
	if _, err := wt.WriteTo(&buf); err != nil {
		httputil.WriteJSONError(w, http.StatusInternalServerError, fmt.Sprintf("failed to render plot: %v", err))
		return
	}
	w.Header().Set("Content-Type", "image/png")
	_, _ = w.Write(buf.Bytes())
}

// channelColor spreads the 16 channels around the hue circle.
func channelColor(ch uint8) color.RGBA {
	r, g, b := hslToRGB(float64(ch%16)/16, 0.7, 0.5)
	return color.RGBA{R: r, G: g, B: b, A: 255}
}

func hexColor(c color.RGBA) string {
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}

// hslToRGB converts HSL to RGB (0-255 range)
func hslToRGB(h, s, l float64) (r, g, b uint8) {
	if s == 0 {
		v := uint8(l * 255)
		return v, v, v
	}
	q := l + s - l*s
	if l < 0.5 {
		q = l * (1 + s)
	}
	p := 2*l - q
	return uint8(hueToRGB(p, q, h+1.0/3.0) * 255), uint8(hueToRGB(p, q, h) * 255), uint8(hueToRGB(p, q, h-1.0/3.0) * 255)
}

func hueToRGB(p, q, t float64) float64 {
	if t < 0 {
		t += 1
	}
	if t > 1 {
		t -= 1
	}
	switch {
	case t < 1.0/6.0:
		return p + (q-p)*6*t
	case t < 1.0/2.0:
		return q
	case t < 2.0/3.0:
		return p + (q-p)*(2.0/3.0-t)*6
	}
	return p
}
