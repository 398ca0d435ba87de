// SPDX-License-Identifier: Unlicense OR MIT

package render

import (
	"image"
	"testing"
)

func TestIsEmoji(t *testing.T) {
	if !isEmoji('\U0001F600') {
		t.Error("grinning face should be classified as emoji")
	}
	if isEmoji('a') {
		t.Error("'a' should not be classified as emoji")
	}
}

func TestBuildSpansSplitsEmoji(t *testing.T) {
	spans := buildSpans("hi \U0001F600 there")
	if len(spans) < 3 {
		t.Fatalf("expected at least 3 spans, got %d: %#v", len(spans), spans)
	}
	foundEmoji := false
	for _, sp := range spans {
		if sp.emoji {
			foundEmoji = true
		}
	}
	if !foundEmoji {
		t.Error("expected one span marked emoji")
	}
}

func TestBuildSpansPlainText(t *testing.T) {
	spans := buildSpans("plain")
	if len(spans) != 1 || spans[0].emoji || spans[0].wide {
		t.Fatalf("plain ascii text should be a single plain span, got %#v", spans)
	}
}

func TestTextRendersWithoutPanicking(t *testing.T) {
	canvas := image.NewRGBA(image.Rect(0, 0, 72, 72))
	white := color{255, 255, 255, 255}
	black := color{0, 0, 0, 255}
	Text(canvas, canvas.Bounds(), "Hi", 0, white, &black)

	var any bool
	for _, px := range canvas.Pix {
		if px != 0 {
			any = true
			break
		}
	}
	if !any {
		t.Error("expected Text to paint at least one non-zero pixel")
	}
}

func TestTextEmptyStringNoop(t *testing.T) {
	canvas := image.NewRGBA(image.Rect(0, 0, 10, 10))
	Text(canvas, canvas.Bounds(), "", 12, color{255, 255, 255, 255}, nil)
	for _, px := range canvas.Pix {
		if px != 0 {
			t.Fatal("expected empty text to leave canvas untouched")
		}
	}
}
