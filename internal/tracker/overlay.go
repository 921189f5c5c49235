package tracker

import (
	"fmt"
	"image"
	"image/color"
	"math"

	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
	"golang.org/x/image/vector"
)

var (
	markerColor = color.RGBA{G: 255, A: 255}
	arrowColor  = color.RGBA{R: 255, A: 255}
	labelColor  = color.RGBA{R: 255, G: 255, B: 255, A: 255}
)

const (
	markerRadius   = 5
	arrowHalfWidth = 1
	circleSegments = 24
)

// RenderOverlay copies frame and draws the stabilized nose tip marker, an
// arrow from it to the focus point and the offset label. A nil stabilized
// point renders a no-face label only. The input frame is not modified.
func RenderOverlay(frame image.Image, stabilized *image.Point, focus image.Point) *image.RGBA {
	b := frame.Bounds()
	dst := image.NewRGBA(b)
	draw.Draw(dst, b, frame, b.Min, draw.Src)

	label := "no face"
	if stabilized != nil {
		p := *stabilized
		drawArrow(dst, p, focus, arrowColor)
		fillCircle(dst, p, markerRadius, markerColor)
		label = fmt.Sprintf("dx=%d dy=%d", focus.X-p.X, focus.Y-p.Y)
	}

	d := font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(labelColor),
		Face: basicfont.Face7x13,
		Dot:  fixed.P(b.Min.X+4, b.Max.Y-4),
	}
	d.DrawString(label)
	return dst
}

func newRasterizer(dst *image.RGBA) *vector.Rasterizer {
	b := dst.Bounds()
	z := vector.NewRasterizer(b.Dx(), b.Dy())
	z.DrawOp = draw.Over
	return z
}

func fillCircle(dst *image.RGBA, c image.Point, r float64, col color.Color) {
	b := dst.Bounds()
	cx, cy := float64(c.X-b.Min.X), float64(c.Y-b.Min.Y)
	z := newRasterizer(dst)
	for i := 0; i <= circleSegments; i++ {
		a := 2 * math.Pi * float64(i) / circleSegments
		x, y := float32(cx+r*math.Cos(a)), float32(cy+r*math.Sin(a))
		if i == 0 {
			z.MoveTo(x, y)
		} else {
			z.LineTo(x, y)
		}
	}
	z.ClosePath()
	z.Draw(dst, b, image.NewUniform(col), image.Point{})
}

func drawArrow(dst *image.RGBA, from, to image.Point, col color.Color) {
	b := dst.Bounds()
	x0, y0 := float64(from.X-b.Min.X), float64(from.Y-b.Min.Y)
	x1, y1 := float64(to.X-b.Min.X), float64(to.Y-b.Min.Y)
	dx, dy := x1-x0, y1-y0
	length := math.Hypot(dx, dy)
	if length < 1 {
		return
	}
	ux, uy := dx/length, dy/length
	nx, ny := -uy*arrowHalfWidth, ux*arrowHalfWidth

	z := newRasterizer(dst)
	z.MoveTo(float32(x0+nx), float32(y0+ny))
	z.LineTo(float32(x1+nx), float32(y1+ny))
	z.LineTo(float32(x1-nx), float32(y1-ny))
	z.LineTo(float32(x0-nx), float32(y0-ny))
	z.ClosePath()
	z.Draw(dst, b, image.NewUniform(col), image.Point{})

	head := math.Max(6, 0.05*length)
	bx, by := x1-ux*head, y1-uy*head
	z = newRasterizer(dst)
	z.MoveTo(float32(x1), float32(y1))
	z.LineTo(float32(bx-uy*head/2), float32(by+ux*head/2))
	z.LineTo(float32(bx+uy*head/2), float32(by-ux*head/2))
	z.ClosePath()

	z.Draw(dst, b, image.NewUniform(col), image.Point{})
}
