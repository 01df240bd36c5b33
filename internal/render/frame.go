package render

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"io"
	"math"
	"os"
	"time"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/verte-zerg/sensorview/internal/minimap"
	"github.com/verte-zerg/sensorview/internal/viewport"
)

const (
	gridRows     = 5
	gridCols     = 6
	markerSize   = 4
	handleWidth  = 3
	labelPad     = 3
	dashLength   = 4
	minimapInset = 3
)

var (
	colorBackground = color.RGBA{R: 24, G: 26, B: 31, A: 255}
	colorPlot       = color.RGBA{R: 32, G: 35, B: 42, A: 255}
	colorGrid       = color.RGBA{R: 58, G: 62, B: 72, A: 255}
	colorAxisText   = color.RGBA{R: 160, G: 166, B: 178, A: 255}
	colorLine       = color.RGBA{R: 86, G: 182, B: 194, A: 255}
	colorOverview   = color.RGBA{R: 86, G: 130, B: 150, A: 255}
	colorWindow     = color.NRGBA{R: 230, G: 230, B: 230, A: 48}
	colorWindowEdge = color.RGBA{R: 230, G: 230, B: 230, A: 255}
	colorResult     = color.NRGBA{R: 120, G: 200, B: 120, A: 56}
	colorResultText = color.RGBA{R: 150, G: 220, B: 150, A: 255}
	colorPending    = color.RGBA{R: 150, G: 220, B: 150, A: 255}
	colorPhase      = color.NRGBA{R: 140, G: 120, B: 220, A: 40}
	colorPhaseText  = color.RGBA{R: 180, G: 165, B: 240, A: 255}
	colorMarker     = color.RGBA{R: 220, G: 110, B: 200, A: 255}
	colorDragging   = color.RGBA{R: 255, G: 190, B: 80, A: 255}
	colorGuide      = color.RGBA{R: 240, G: 200, B: 90, A: 255}
	colorBox        = color.NRGBA{R: 0, G: 0, B: 0, A: 200}
	colorText       = color.RGBA{R: 255, G: 255, B: 255, A: 255}
)

// Frame draws the scene into a new RGBA image of the given size. The scene
// layout should come from ImageLayout with the same size.
func Frame(s Scene, width, height int) *image.RGBA {
	if !s.Y.Valid() {
		s.Y = viewport.YRange{Min: viewport.DefaultYMin, Max: viewport.DefaultYMax}
	}
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	fill(img, img.Bounds(), colorBackground)

	f := s.Frame()
	plot := toRect(s.Layout.Plot)
	fill(img, plot, colorPlot)

	drawGrid(img, s, f)
	drawPhases(img, s, f)
	drawResults(img, s, f)
	drawSeries(img, s, f)
	if s.Pending != nil && inWindow(s.Pending.Time, s.Start, s.End) {
		x := int(math.Round(f.TimeToPixel(s.Pending.Time)))
		dashedVLine(img, x, plot.Min.Y, plot.Max.Y, colorPending)
	}
	drawMarkers(img, s, f)
	drawGuide(img, s, f)
	drawMinimap(img, s)

	header := s.Title
	if s.Channel.Name != "" {
		if header != "" {
			header += "  "
		}
		header += s.Channel.Name
		if s.Unit != "" {
			header += " (" + s.Unit + ")"
		}
	}
	drawText(img, plot.Min.X, plot.Min.Y-6, header, colorText)
	if s.Status != "" {
		drawTextRight(img, plot.Max.X, plot.Min.Y-6, s.Status, colorAxisText)
	}
	return img
}

func drawGrid(img *image.RGBA, s Scene, f viewport.Frame) {
	plot := toRect(s.Layout.Plot)
	y := s.Y
	for i := 0; i <= gridRows; i++ {
		v := y.Min + (y.Max-y.Min)*float64(i)/gridRows
		py := int(math.Round(f.ValueToPixel(v)))
		hline(img, plot.Min.X, plot.Max.X, py, colorGrid)
		label := formatValue(v)
		drawTextRight(img, plot.Min.X-labelPad-2, py+4, label, colorAxisText)
	}
	span := s.End.Sub(s.Start)
	for i := 0; i <= gridCols; i++ {
		t := s.Start.Add(time.Duration(float64(span) * float64(i) / gridCols))
		px := int(math.Round(f.TimeToPixel(t)))
		vline(img, px, plot.Min.Y, plot.Max.Y, colorGrid)
		label := t.Format("15:04:05")
		lx := px - measure(label)/2
		if i == 0 {
			lx = px
		}
		if i == gridCols {
			lx = px - measure(label)
		}
		drawText(img, lx, plot.Max.Y+14, label, colorAxisText)
	}
}

func drawPhases(img *image.RGBA, s Scene, f viewport.Frame) {
	plot := toRect(s.Layout.Plot)
	for _, ph := range s.Phases {
		if ph.End.Before(s.Start) || ph.Start.After(s.End) {
			continue
		}
		x0 := int(math.Round(f.TimeToPixel(ph.Start)))
		x1 := int(math.Round(f.TimeToPixel(ph.End)))
		blend(img, image.Rect(x0, plot.Min.Y, x1+1, plot.Max.Y), colorPhase)
		drawText(img, x0+labelPad, plot.Max.Y-labelPad-2, ph.Name, colorPhaseText)
	}
}

func drawResults(img *image.RGBA, s Scene, f viewport.Frame) {
	plot := toRect(s.Layout.Plot)
	for _, r := range s.Results {
		if r.End.Before(s.Start) || r.Start.After(s.End) {
			continue
		}
		x0 := int(math.Round(f.TimeToPixel(r.Start)))
		x1 := int(math.Round(f.TimeToPixel(r.End)))
		blend(img, image.Rect(x0, plot.Min.Y, x1+1, plot.Max.Y), colorResult)
		hline(img, x0, x1, int(math.Round(f.ValueToPixel(r.Max))), colorResultText)
		hline(img, x0, x1, int(math.Round(f.ValueToPixel(r.Min))), colorResultText)
		drawText(img, x0+labelPad, plot.Min.Y+34, "d="+formatValue(r.Diff), colorResultText)
	}
}

// drawSeries reduces the visible readings to one min/max span per pixel
// column when they outnumber the columns.
func drawSeries(img *image.RGBA, s Scene, f viewport.Frame) {
	plot := toRect(s.Layout.Plot)
	pts := s.Visible()
	if len(pts) == 0 {
		return
	}
	clip := func(x, y int) {
		if image.Pt(x, y).In(plot) {
			img.SetRGBA(x, y, colorLine)
		}
	}
	if len(pts) > 2*plot.Dx() {
		cols := plot.Dx()
		type span struct {
			lo, hi float64
			ok     bool
		}
		spans := make([]span, cols)
		for _, p := range pts {
			c := int(f.TimeToPixel(p.Time)) - plot.Min.X
			if c < 0 || c >= cols {
				continue
			}
			sp := &spans[c]
			if !sp.ok {
				sp.lo, sp.hi, sp.ok = p.Value, p.Value, true
				continue
			}
			sp.lo = math.Min(sp.lo, p.Value)
			sp.hi = math.Max(sp.hi, p.Value)
		}
		prev := -1
		for c, sp := range spans {
			if !sp.ok {
				continue
			}
			top := int(math.Round(f.ValueToPixel(sp.hi)))
			bottom := int(math.Round(f.ValueToPixel(sp.lo)))
			x := plot.Min.X + c
			if prev >= 0 {
				drawLine(x-1, prev, x, (top+bottom)/2, clip)
			}
			drawLine(x, top, x, bottom, clip)
			prev = (top + bottom) / 2
		}
		return
	}
	prev := f.PointToPixel(pts[0])
	clip(int(math.Round(prev.X)), int(math.Round(prev.Y)))
	for _, p := range pts[1:] {
		cur := f.PointToPixel(p)
		drawLine(int(math.Round(prev.X)), int(math.Round(prev.Y)), int(math.Round(cur.X)), int(math.Round(cur.Y)), clip)
		prev = cur
	}
}

func drawMarkers(img *image.RGBA, s Scene, f viewport.Frame) {
	for _, m := range s.Markers {
		if !inWindow(m.Point.Time, s.Start, s.End) {
			continue
		}
		c := colorMarker
		if m.Label == s.Dragging {
			c = colorDragging
		}
		pos := f.PointToPixel(m.Point)
		x, y := int(math.Round(pos.X)), int(math.Round(pos.Y))
		for dx := -markerSize; dx <= markerSize; dx++ {
			for dy := -markerSize; dy <= markerSize; dy++ {
				if dx*dx+dy*dy <= markerSize*markerSize {
					img.SetRGBA(x+dx, y+dy, c)
				}
			}
		}
		drawText(img, x-measure(m.Label)/2, y-markerSize-labelPad, m.Label, c)
	}
}

func drawGuide(img *image.RGBA, s Scene, f viewport.Frame) {
	if s.Guide == nil || !inWindow(s.Guide.Point.Time, s.Start, s.End) {
		return
	}
	plot := toRect(s.Layout.Plot)
	pos := f.PointToPixel(s.Guide.Point)
	x, y := int(math.Round(pos.X)), int(math.Round(pos.Y))
	vline(img, x, plot.Min.Y, plot.Max.Y, colorGuide)
	fill(img, image.Rect(x-2, y-2, x+3, y+3), colorGuide)

	box := toRect(s.Guide.Box)
	blend(img, box, colorBox)
	drawText(img, box.Min.X+labelPad+1, box.Max.Y-labelPad-3, s.Guide.Text, colorText)
}

func drawMinimap(img *image.RGBA, s Scene) {
	strip := toRect(s.Layout.Minimap)
	if strip.Empty() {
		return
	}
	fill(img, strip, colorPlot)
	cols := strip.Dx()
	buckets := minimap.Overview(s.Series, s.Full, cols)
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, b := range buckets {
		if b.Count > 0 {
			lo = math.Min(lo, b.Min)
			hi = math.Max(hi, b.Max)
		}
	}
	if !math.IsInf(lo, 1) {
		overview := viewport.Frame{
			Start: s.Full.Min,
			End:   s.Full.Max,
			Plot: viewport.Rect{
				X: s.Layout.Minimap.X,
				Y: s.Layout.Minimap.Y + minimapInset,
				W: s.Layout.Minimap.W,
				H: s.Layout.Minimap.H - 2*minimapInset,
			},
			Y: viewport.YRange{Min: lo, Max: hi},
		}
		if hi-lo < 1e-9 {
			overview.Y = viewport.YRange{Min: lo - 1, Max: hi + 1}
		}
		for c, b := range buckets {
			if b.Count == 0 {
				continue
			}
			top := int(math.Round(overview.ValueToPixel(b.Max)))
			bottom := int(math.Round(overview.ValueToPixel(b.Min)))
			vline(img, strip.Min.X+c, top, bottom, colorOverview)
		}
	}

	span := s.Full.Span()
	if span <= 0 {
		return
	}
	x0 := strip.Min.X + int(math.Round(float64(s.Start.Sub(s.Full.Min))/float64(span)*float64(cols)))
	x1 := strip.Min.X + int(math.Round(float64(s.End.Sub(s.Full.Min))/float64(span)*float64(cols)))
	win := image.Rect(x0, strip.Min.Y, x1, strip.Max.Y)
	blend(img, win, colorWindow)
	hline(img, x0, x1, strip.Min.Y, colorWindowEdge)
	hline(img, x0, x1, strip.Max.Y-1, colorWindowEdge)
	fill(img, image.Rect(x0, strip.Min.Y, x0+handleWidth, strip.Max.Y), colorWindowEdge)
	fill(img, image.Rect(x1-handleWidth, strip.Min.Y, x1, strip.Max.Y), colorWindowEdge)
}

// WritePNG encodes img as PNG.
func WritePNG(w io.Writer, img image.Image) error {
	if err := png.Encode(w, img); err != nil {
		return fmt.Errorf("failed to encode png: %w", err)
	}
	return nil
}

// SavePNG writes img to path.
func SavePNG(path string, img image.Image) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("failed to close %s: %w", path, cerr)
		}
	}()
	return WritePNG(f, img)
}

func toRect(r viewport.Rect) image.Rectangle {
	return image.Rect(
		int(math.Round(r.X)),
		int(math.Round(r.Y)),
		int(math.Round(r.X+r.W)),
		int(math.Round(r.Y+r.H)),
	)
}

func fill(img *image.RGBA, r image.Rectangle, c color.Color) {
	draw.Draw(img, r, image.NewUniform(c), image.Point{}, draw.Src)
}

func blend(img *image.RGBA, r image.Rectangle, c color.Color) {
	draw.Draw(img, r, image.NewUniform(c), image.Point{}, draw.Over)
}

func hline(img *image.RGBA, x0, x1, y int, c color.RGBA) {
	if x1 < x0 {
		x0, x1 = x1, x0
	}
	for x := x0; x <= x1; x++ {
		img.SetRGBA(x, y, c)
	}
}

func vline(img *image.RGBA, x, y0, y1 int, c color.RGBA) {
	if y1 < y0 {
		y0, y1 = y1, y0
	}
	for y := y0; y <= y1; y++ {
		img.SetRGBA(x, y, c)
	}
}

func dashedVLine(img *image.RGBA, x, y0, y1 int, c color.RGBA) {
	for y := y0; y <= y1; y++ {
		if (y-y0)/dashLength%2 == 0 {
			img.SetRGBA(x, y, c)
		}
	}
}

func drawText(img *image.RGBA, x, y int, text string, c color.RGBA) {
	if text == "" {
		return
	}
	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(c),
		Face: basicfont.Face7x13,
		Dot:  fixed.Point26_6{X: fixed.I(x), Y: fixed.I(y)},
	}
	d.DrawString(text)
}

func drawTextRight(img *image.RGBA, right, y int, text string, c color.RGBA) {
	drawText(img, right-measure(text), y, text, c)
}

func measure(text string) int {
	d := &font.Drawer{Face: basicfont.Face7x13}
	return d.MeasureString(text).Ceil()
}

func formatValue(v float64) string {
	if v == 0 {
		return "0"
	}
	av := math.Abs(v)
	switch {
	case av >= 1000:
		return fmt.Sprintf("%.0f", v)
	case av >= 100:
		return fmt.Sprintf("%.1f", v)
	default:
		return fmt.Sprintf("%.2f", v)
	}
}
