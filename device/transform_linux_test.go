// SPDX-License-Identifier: Unlicense OR MIT

//go:build linux

package device

import (
	"image"
	"image/color"
	"testing"
)

func solid2x1(topLeft, topRight color.Color) image.Image {
	img := image.NewNRGBA(image.Rect(0, 0, 2, 1))
	img.Set(0, 0, topLeft)
	img.Set(1, 0, topRight)
	return img
}

func TestMirrorX(t *testing.T) {
	red := color.NRGBA{R: 255, A: 255}
	blue := color.NRGBA{B: 255, A: 255}
	img := solid2x1(red, blue)

	out := mirror(img, MirrorX)
	r, g, b, a := out.At(0, 0).RGBA()
	_, _, _, _ = r, g, b, a
	if !sameColor(out.At(0, 0), blue) || !sameColor(out.At(1, 0), red) {
		t.Fatalf("MirrorX did not swap columns: (0,0)=%v (1,0)=%v", out.At(0, 0), out.At(1, 0))
	}
}

func TestRotate90Dimensions(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 4, 2))
	out := rotate(img, Rot90)
	b := out.Bounds()
	if b.Dx() != 2 || b.Dy() != 4 {
		t.Fatalf("Rot90 bounds = %v, want 2x4", b)
	}
}

func TestRotate0IsIdentity(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 3, 3))
	if rotate(img, Rot0) != image.Image(img) {
		t.Fatal("Rot0 should return the same image value")
	}
}

func sameColor(a, b color.Color) bool {
	ar, ag, ab, aa := a.RGBA()
	br, bg, bb, ba := b.RGBA()
	return ar == br && ag == bg && ab == bb && aa == ba
}
