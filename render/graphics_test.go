// SPDX-License-Identifier: Unlicense OR MIT

package render

import (
	"image"
	stdcolor "image/color"
	"testing"
)

func TestBarContinuousLeftToRight(t *testing.T) {
	canvas := image.NewRGBA(image.Rect(0, 0, 10, 4))
	Bar(canvas, 0, 0, 10, 4, 50, 0, 100, color{255, 0, 0, 255}, 0, LeftToRight)

	if canvas.RGBAAt(4, 0) == (stdcolor.RGBA{}) {
		t.Fatal("expected pixel at x=4 to be filled for 50% bar")
	}
	if canvas.RGBAAt(9, 0).A != 0 {
		t.Fatal("expected pixel at x=9 to remain unfilled for 50% bar")
	}
}

func TestBarRightToLeft(t *testing.T) {
	canvas := image.NewRGBA(image.Rect(0, 0, 10, 4))
	Bar(canvas, 0, 0, 10, 4, 50, 0, 100, color{0, 255, 0, 255}, 0, RightToLeft)
	if canvas.RGBAAt(0, 0).A != 0 {
		t.Fatal("expected left edge unfilled for right-to-left 50% bar")
	}
	if canvas.RGBAAt(9, 0).A == 0 {
		t.Fatal("expected right edge filled for right-to-left 50% bar")
	}
}

func TestFromMapSingleStop(t *testing.T) {
	stops := []Stop{{Percent: 0, Color: color{1, 2, 3, 255}}}
	got := FromMap(77, stops)
	if got != stops[0].Color {
		t.Fatalf("FromMap single stop = %v, want %v", got, stops[0].Color)
	}
}

func TestFromMapInterpolates(t *testing.T) {
	stops := []Stop{
		{Percent: 0, Color: color{0, 0, 0, 255}},
		{Percent: 100, Color: color{200, 0, 0, 255}},
	}
	got := FromMap(50, stops)
	if got.R < 90 || got.R > 110 {
		t.Fatalf("FromMap midpoint R = %d, want ~100", got.R)
	}
}

func TestParseColorForms(t *testing.T) {
	cases := map[string]color{
		"red":        {255, 0, 0, 255},
		"#00FF00":    {0, 255, 0, 255},
		"0x0000FF":   {0, 0, 255, 255},
		"0xFFFFFFFF": {255, 255, 255, 255},
	}
	for in, want := range cases {
		got, err := ParseColor(in)
		if err != nil {
			t.Fatalf("ParseColor(%q): %v", in, err)
		}
		if got != want {
			t.Errorf("ParseColor(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestParseColorInvalid(t *testing.T) {
	if _, err := ParseColor("not-a-color"); err == nil {
		t.Fatal("expected error for invalid color")
	}
}
