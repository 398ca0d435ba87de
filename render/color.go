// SPDX-License-Identifier: Unlicense OR MIT

// Package render turns a button's config (icon, background, draw,
// text) into the bitmap a device's SetButtonImage expects, caching the
// result so an unchanged button is never re-rendered.
package render

import (
	"fmt"
	"strconv"
	"strings"
)

// color is the RGBA carrier used throughout this package. It is kept
// distinct from image/color.RGBA so callers (config/page) can build one
// from parsed config without an extra import, while rgbaColor below
// adapts it to image/color.Color wherever the standard draw package
// needs one.
type color struct {
	R, G, B, A uint8
}

// namedColors covers the small palette config authors reach for most,
// matching CSS's basic keyword set rather than its full extended list.
var namedColors = map[string]color{
	"black":       {0, 0, 0, 255},
	"white":       {255, 255, 255, 255},
	"red":         {255, 0, 0, 255},
	"green":       {0, 128, 0, 255},
	"blue":        {0, 0, 255, 255},
	"yellow":      {255, 255, 0, 255},
	"cyan":        {0, 255, 255, 255},
	"magenta":     {255, 0, 255, 255},
	"gray":        {128, 128, 128, 255},
	"grey":        {128, 128, 128, 255},
	"orange":      {255, 165, 0, 255},
	"purple":      {128, 0, 128, 255},
	"transparent": {0, 0, 0, 0},
}

// ParseColor resolves a color string in any of the three forms the
// config accepts: a named color, "#RRGGBB"/"0xRRGGBB", or
// "0xAARRGGBB" with the alpha channel premultiplied against black so a
// half-transparent color drawn over an opaque canvas looks right
// without the renderer needing a separate alpha-compositing pass.
func ParseColor(s string) (color, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return color{}, fmt.Errorf("empty color")
	}
	if c, ok := namedColors[strings.ToLower(s)]; ok {
		return c, nil
	}

	hex := s
	hex = strings.TrimPrefix(hex, "#")
	hex = strings.TrimPrefix(hex, "0x")
	hex = strings.TrimPrefix(hex, "0X")

	switch len(hex) {
	case 6:
		v, err := strconv.ParseUint(hex, 16, 32)
		if err != nil {
			return color{}, fmt.Errorf("invalid color %q: %w", s, err)
		}
		return color{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: 255}, nil
	case 8:
		v, err := strconv.ParseUint(hex, 16, 32)
		if err != nil {
			return color{}, fmt.Errorf("invalid color %q: %w", s, err)
		}
		a := uint8(v >> 24)
		r := premultiply(uint8(v>>16), a)
		g := premultiply(uint8(v>>8), a)
		b := premultiply(uint8(v), a)
		return color{R: r, G: g, B: b, A: a}, nil
	default:
		return color{}, fmt.Errorf("invalid color format: %q", s)
	}
}

// premultiply blends c against a black backdrop by alpha a, so
// "0x80FFFFFF" (50% white) renders as mid-gray rather than pure white
// at reduced opacity, matching how the button canvas is always opaque.
func premultiply(c, a uint8) uint8 {
	return uint8((uint32(c) * uint32(a)) / 255)
}

// Stop is one entry in a color map: at Percent of the value's range,
// the color is Color. FromMap blends linearly between adjacent stops.
type Stop struct {
	Percent float64
	Color   color
}

// InterpolateColor linearly blends between a and b by factor, clamped
// to [0,1].
func InterpolateColor(a, b color, factor float64) color {
	if factor < 0 {
		factor = 0
	} else if factor > 1 {
		factor = 1
	}
	lerp := func(x, y uint8) uint8 {
		return uint8(float64(x) + (float64(y)-float64(x))*factor)
	}
	return color{
		R: lerp(a.R, b.R),
		G: lerp(a.G, b.G),
		B: lerp(a.B, b.B),
		A: lerp(a.A, b.A),
	}
}

// FromMap resolves the color for percent (expected in [0,100]) against
// a piecewise-linear color map, sorted ascending by Percent. An empty
// map yields white; a single-stop map yields that stop's color
// unconditionally; a percent outside the map's range clamps to the
// nearest end.
func FromMap(percent float64, stops []Stop) color {
	if len(stops) == 0 {
		return color{255, 255, 255, 255}
	}
	if len(stops) == 1 {
		return stops[0].Color
	}
	if percent < stops[0].Percent {
		return stops[0].Color
	}
	for i := 0; i < len(stops)-1; i++ {
		lo, hi := stops[i], stops[i+1]
		if percent >= lo.Percent && percent <= hi.Percent {
			rng := hi.Percent - lo.Percent
			if rng <= 0 {
				return lo.Color
			}
			factor := (percent - lo.Percent) / rng
			return InterpolateColor(lo.Color, hi.Color, factor)
		}
	}
	return stops[len(stops)-1].Color
}
