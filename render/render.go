// SPDX-License-Identifier: Unlicense OR MIT

package render

import (
	"fmt"
	"image"
	"image/draw"
	"os"

	_ "image/jpeg"
	_ "image/png"

	"golang.org/x/image/bmp"
)

// GraphicKind selects which primitive a DrawSpec renders.
type GraphicKind int

const (
	GraphicBar GraphicKind = iota
	GraphicGauge
	GraphicMultiBar
)

// DrawSpec is one graphic overlay drawn on top of the icon/background,
// already resolved to concrete pixel coordinates and colors by the
// caller (page/controller.go), which knows the button's pixel size.
type DrawSpec struct {
	Kind                   GraphicKind
	X, Y, W, H             int
	Value, Min, Max        float64
	Values                 []float64 // GraphicMultiBar only
	Color                  color
	Colors                 []color // GraphicMultiBar only
	Segments               int
	Spacing                int
	Direction              Direction
}

// ButtonSpec is everything needed to render one button's bitmap,
// already substituted (dynamic params resolved) by the caller.
type ButtonSpec struct {
	IconPath     string
	Background   *color
	Draws        []DrawSpec
	Text         string
	TextColor    color
	OutlineColor *color
	FontSize     float64
}

// Render composites background, icon, graphics and text, in that order,
// onto canvas. It returns only an error; the cache key comes from
// spec.Fingerprint, which callers pass to Cache.ShouldRender before
// bothering to call Render at all.
func Render(canvas *image.RGBA, spec ButtonSpec) error {
	w, h := canvas.Bounds().Dx(), canvas.Bounds().Dy()

	if spec.Background != nil {
		fillRect(canvas, 0, 0, w, h, *spec.Background)
	}

	if spec.IconPath != "" {
		icon, err := loadImage(spec.IconPath)
		if err != nil {
			return fmt.Errorf("render: load icon %s: %w", spec.IconPath, err)
		}
		draw.Draw(canvas, canvas.Bounds(), icon, icon.Bounds().Min, draw.Over)
	}

	for _, d := range spec.Draws {
		switch d.Kind {
		case GraphicBar:
			Bar(canvas, d.X, d.Y, d.W, d.H, d.Value, d.Min, d.Max, d.Color, d.Segments, d.Direction)
		case GraphicGauge:
			Gauge(canvas, d.X, d.Y, d.W, d.H, d.Value, d.Min, d.Max, d.Color)
		case GraphicMultiBar:
			MultiBar(canvas, d.X, d.Y, d.W, d.H, d.Values, d.Min, d.Max, d.Colors, d.Spacing, d.Segments, d.Direction)
		}
	}

	if spec.Text != "" {
		Text(canvas, canvas.Bounds(), spec.Text, spec.FontSize, spec.TextColor, spec.OutlineColor)
	}

	return nil
}

// Fingerprint derives a cache key from a ButtonSpec's rendered inputs.
func (b ButtonSpec) Fingerprint() string {
	parts := []string{b.IconPath, b.Text, fmt.Sprintf("%v", b.Background), fmt.Sprintf("%v", b.TextColor), fmt.Sprintf("%v", b.OutlineColor), fmt.Sprintf("%v", b.Draws), fmt.Sprintf("%.2f", b.FontSize)}
	return Fingerprint(parts...)
}

func loadImage(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	img, _, err := image.Decode(f)
	if err != nil {
		return nil, err
	}
	return img, nil
}

// EncodeBMP is a small convenience wrapper for callers that need a
// BMP-encoded byte stream rather than an image.Image. The device
// implementations call bmp.Encode directly.
func EncodeBMP(w *os.File, img image.Image) error {
	return bmp.Encode(w, img)
}
