// SPDX-License-Identifier: Unlicense OR MIT

package render

import (
	"image"
	"image/draw"
	"math"
)

// Direction is which way a bar or multibar fills.
type Direction int

const (
	LeftToRight Direction = iota
	RightToLeft
	TopToBottom
	BottomToTop
)

func horizontal(d Direction) bool { return d == LeftToRight || d == RightToLeft }

// clampPercent maps value within [min,max] to a fill fraction in [0,1].
func clampPercent(value, min, max float64) float64 {
	if value < min {
		value = min
	} else if value > max {
		value = max
	}
	if max <= min {
		return 0
	}
	return (value - min) / (max - min)
}

func fillRect(canvas draw.Image, x, y, w, h int, c color) {
	if w <= 0 || h <= 0 {
		return
	}
	rect := image.Rect(x, y, x+w, y+h)
	draw.Draw(canvas, rect, &image.Uniform{C: rgbaColor(c)}, image.Point{}, draw.Over)
}

// Bar draws a continuous or segmented progress bar in one of the four
// cardinal directions. segments<=0 means continuous.
func Bar(canvas draw.Image, x, y, w, h int, value, min, max float64, c color, segments int, dir Direction) {
	percent := clampPercent(value, min, max)

	if horizontal(dir) {
		if segments > 0 {
			const spacing = 2
			total := (segments-1)*spacing
			segW := (w - total) / segments
			if segW <= 0 {
				return
			}
			used := segments*segW + total
			offsetX := (w - used) / 2
			filled := int(math.Floor(percent * float64(segments)))
			for i := 0; i < filled; i++ {
				var segX int
				if dir == LeftToRight {
					segX = x + offsetX + i*(segW+spacing)
				} else {
					segX = x + (w - offsetX - (i+1)*(segW+spacing))
				}
				fillRect(canvas, segX, y, segW, h, c)
			}
			return
		}
		filledW := int(float64(w) * percent)
		if filledW <= 0 {
			return
		}
		barX := x
		if dir == RightToLeft {
			barX = x + (w - filledW)
		}
		fillRect(canvas, barX, y, filledW, h, c)
		return
	}

	// Vertical.
	if segments > 0 {
		const spacing = 2
		total := (segments-1)*spacing
		segH := (h - total) / segments
		if segH <= 0 {
			return
		}
		used := segments*segH + total
		offsetY := (h - used) / 2
		filled := int(math.Floor(percent * float64(segments)))
		for i := 0; i < filled; i++ {
			var segY int
			if dir == BottomToTop {
				segY = y + (h - offsetY - (i+1)*(segH+spacing))
			} else {
				segY = y + offsetY + i*(segH+spacing)
			}
			fillRect(canvas, x, segY, w, segH, c)
		}
		return
	}
	filledH := int(float64(h) * percent)
	if filledH <= 0 {
		return
	}
	barY := y
	if dir == BottomToTop {
		barY = y + (h - filledH)
	}
	fillRect(canvas, x, barY, w, filledH, c)
}

// fillCircle stamps a filled disc of the given radius centered at
// (cx, cy), used by Gauge to build a thick arc out of overlapping
// circles the same way the original does.
func fillCircle(canvas draw.Image, cx, cy, radius int, c color) {
	for dy := -radius; dy <= radius; dy++ {
		for dx := -radius; dx <= radius; dx++ {
			if dx*dx+dy*dy <= radius*radius {
				canvas.Set(cx+dx, cy+dy, rgbaColor(c))
			}
		}
	}
}

// Gauge draws a circular arc gauge, sweeping 270 degrees clockwise from
// the 7:30 position (bottom-left) to the 4:30 position (bottom-right)
// at 100%, matching a car-dashboard-style dial.
func Gauge(canvas draw.Image, x, y, w, h int, value, min, max float64, c color) {
	percent := clampPercent(value, min, max)

	cx := x + w/2
	cy := y + h/2
	radius := w
	if h < radius {
		radius = h
	}
	radius = radius/2 - 5
	if radius < 0 {
		radius = 0
	}

	const startAngle = 135.0 * math.Pi / 180.0
	const arcRange = 270.0 * math.Pi / 180.0
	endAngle := startAngle + arcRange*percent

	thickness := radius / 4
	if thickness < 3 {
		thickness = 3
	}
	steps := radius * 2
	if steps <= 0 {
		return
	}
	for step := 0; step < steps; step++ {
		angle := startAngle + (endAngle-startAngle)*(float64(step)/float64(steps))
		px := cx + int(float64(radius)*math.Cos(angle))
		py := cy + int(float64(radius)*math.Sin(angle))
		fillCircle(canvas, px, py, thickness, c)
	}
}

// MultiBar draws one bar per value, stacked along the axis perpendicular
// to dir (horizontal bars stack vertically, vertical bars stack side by
// side). A value with no corresponding color falls back to white.
func MultiBar(canvas draw.Image, x, y, w, h int, values []float64, min, max float64, colors []color, spacing int, segments int, dir Direction) {
	n := len(values)
	if n == 0 {
		return
	}
	colorFor := func(i int) color {
		if i < len(colors) {
			return colors[i]
		}
		return color{255, 255, 255, 255}
	}

	if horizontal(dir) {
		total := (n - 1) * spacing
		barH := (h - total) / n
		if barH <= 0 {
			return
		}
		for i, v := range values {
			barY := y + i*(barH+spacing)
			Bar(canvas, x, barY, w, barH, v, min, max, colorFor(i), segments, dir)
		}
		return
	}
	total := (n - 1) * spacing
	barW := (w - total) / n
	if barW <= 0 {
		return
	}
	for i, v := range values {
		barX := x + i*(barW+spacing)
		Bar(canvas, barX, y, barW, h, v, min, max, colorFor(i), segments, dir)
	}
}
