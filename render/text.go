// SPDX-License-Identifier: Unlicense OR MIT

package render

import (
	"image"
	"image/draw"
	"os"
	"strings"
	"sync"

	notoSansArabicRegular "eliasnaur.com/font/noto/sans/arabic/regular"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"

	"github.com/go-text/typesetting/fontscan"
)

const (
	// autoSizePadding leaves this fraction of each dimension as margin
	// when binary-searching for the largest font size that fits.
	autoSizePadding = 0.1
	// lineSpacingFactor is the baseline-to-baseline distance as a
	// multiple of font size.
	lineSpacingFactor = 1.3
	// defaultFontSize is used when a button's config specifies none.
	defaultFontSize = 28.0
)

// emojiFontCandidates are tried in order; the first one present on the
// system's font map wins. This list is platform-agnostic since KeyDeck
// targets Linux desktops exclusively.
var emojiFontCandidates = []string{
	"Noto Color Emoji",
	"Twitter Color Emoji",
	"Twemoji",
	"JoyPixels",
	"OpenMoji",
	"Blobmoji",
	"Symbola",
}

// isEmoji reports whether r falls in one of the Unicode ranges the
// original classifies as emoji-like, broad enough to also catch
// dingbats and variation selectors that commonly appear adjacent to an
// emoji codepoint.
func isEmoji(r rune) bool {
	switch {
	case r >= 0x1F300 && r <= 0x1F9FF:
		return true
	case r >= 0x2600 && r <= 0x26FF:
		return true
	case r >= 0x2700 && r <= 0x27BF:
		return true
	case r >= 0xFE00 && r <= 0xFE0F:
		return true
	case r >= 0x1F1E6 && r <= 0x1F1FF:
		return true
	default:
		return false
	}
}

// span is a maximal run of text that shares the same face classification.
type span struct {
	text  string
	emoji bool
	// wide marks a run of runes above U+024F (past Latin Extended-B, so
	// Greek, Cyrillic, Arabic and the like) that is drawn with the
	// bundled Unicode-coverage fallback face instead.
	wide bool
}

func classify(r rune) (emoji, wide bool) {
	if isEmoji(r) {
		return true, false
	}
	return false, r > 0x024F
}

// buildSpans partitions text into emoji/wide/plain runs, mirroring
// build_rich_text_spans's emoji-span splitting and extending it with a
// fallback-coverage classification of its own.
func buildSpans(text string) []span {
	var spans []span
	runes := []rune(text)
	if len(runes) == 0 {
		return []span{{text: text}}
	}
	start := 0
	curEmoji, curWide := classify(runes[0])
	for i := 1; i < len(runes); i++ {
		e, w := classify(runes[i])
		if e != curEmoji || w != curWide {
			spans = append(spans, span{text: string(runes[start:i]), emoji: curEmoji, wide: curWide})
			start = i
			curEmoji, curWide = e, w
		}
	}
	spans = append(spans, span{text: string(runes[start:]), emoji: curEmoji, wide: curWide})
	return spans
}

// fontSet bundles the regular body face and (optionally) a discovered
// system emoji face, both shaped via golang.org/x/image/font/opentype
// so the same font.Drawer rasterization path handles both.
type fontSet struct {
	body     *opentype.Font
	emoji    *opentype.Font // nil if no system emoji font is available
	fallback *opentype.Font // bundled wide-Unicode coverage face
}

var (
	fontSetOnce sync.Once
	sharedFonts *fontSet
	fontMap     *fontscan.FontMap
)

// defaultFonts lazily parses the bundled fallback face and probes the
// system font map for a color emoji family. Parsing happens once per
// process; every render call reuses the same immutable faces.
func defaultFonts() *fontSet {
	fontSetOnce.Do(func() {
		body, err := opentype.Parse(goregular.TTF)
		if err != nil {
			// goregular.TTF is a compiled-in constant; a parse failure
			// here means the toolchain's copy is corrupt, not a
			// runtime condition callers can recover from.
			panic("render: failed to parse bundled goregular font: " + err.Error())
		}
		sharedFonts = &fontSet{body: body}

		if fb, ferr := opentype.Parse(notoSansArabicRegular.TTF); ferr == nil {
			sharedFonts.fallback = fb
		}

		fontMap = fontscan.NewFontMap(nil)
		if err := fontMap.UseSystemFonts(""); err == nil {
			for _, name := range emojiFontCandidates {
				fontMap.SetQuery(fontscan.Query{Families: []string{name}})
				if face := fontMap.ResolveFace('\U0001F600'); face != nil {
					loc := fontMap.FontLocation(face.Font)
					if data, rerr := os.ReadFile(loc.File); rerr == nil {
						if ef, ferr := opentype.Parse(data); ferr == nil {
							sharedFonts.emoji = ef
						}
					}
					break
				}
			}
		}
	})
	return sharedFonts
}

// faceForSize builds a scaled font.Face from a parsed opentype.Font.
func faceForSize(f *opentype.Font, size float64) (font.Face, error) {
	return opentype.NewFace(f, &opentype.FaceOptions{
		Size:    size,
		DPI:     72,
		Hinting: font.HintingFull,
	})
}

// measureLine returns the pixel width text would occupy at the given
// font size, honoring emoji spans by measuring with the emoji face
// where available (falling back to the body face otherwise).
func measureLine(fonts *fontSet, text string, size float64) fixed.Int26_6 {
	bodyFace, emojiFace, fallbackFace := openFaces(fonts, size)
	if bodyFace == nil {
		return 0
	}
	defer bodyFace.Close()
	if emojiFace != nil {
		defer emojiFace.Close()
	}
	if fallbackFace != nil {
		defer fallbackFace.Close()
	}

	var width fixed.Int26_6
	for _, sp := range buildSpans(text) {
		width += font.MeasureString(selectFace(sp, bodyFace, emojiFace, fallbackFace), sp.text)
	}
	return width
}

// openFaces builds the body/emoji/fallback faces at size, skipping any
// whose underlying parsed font is unavailable.
func openFaces(fonts *fontSet, size float64) (body, emoji, fallback font.Face) {
	b, err := faceForSize(fonts.body, size)
	if err != nil {
		return nil, nil, nil
	}
	body = b
	if fonts.emoji != nil {
		if ef, err := faceForSize(fonts.emoji, size); err == nil {
			emoji = ef
		}
	}
	if fonts.fallback != nil {
		if ff, err := faceForSize(fonts.fallback, size); err == nil {
			fallback = ff
		}
	}
	return body, emoji, fallback
}

// selectFace picks the face a span should be drawn/measured with.
func selectFace(sp span, body, emoji, fallback font.Face) font.Face {
	switch {
	case sp.emoji && emoji != nil:
		return emoji
	case sp.wide && fallback != nil:
		return fallback
	default:
		return body
	}
}

// calculateOptimalFontSize binary-searches for the largest size in
// [6, preferred] at which every line fits within width/height, leaving
// autoSizePadding of margin on each axis.
func calculateOptimalFontSize(fonts *fontSet, lines []string, width, height int, preferred float64) float64 {
	targetWidth := float64(width) * (1 - autoSizePadding)
	targetHeight := float64(height) * (1 - autoSizePadding)

	longest := lines[0]
	maxWidth := fixed.I(0)
	for _, line := range lines {
		w := measureLine(fonts, line, 16)
		if w > maxWidth {
			maxWidth = w
			longest = line
		}
	}

	minSize, maxSize := 6.0, preferred
	best := minSize
	for maxSize-minSize > 0.5 {
		testSize := (minSize + maxSize) / 2
		lineHeight := testSize * lineSpacingFactor
		totalHeight := float64(len(lines)) * lineHeight
		if totalHeight > targetHeight {
			maxSize = testSize
			continue
		}
		lineWidth := float64(measureLine(fonts, longest, testSize)) / 64
		if lineWidth <= targetWidth {
			best = testSize
			minSize = testSize
		} else {
			maxSize = testSize
		}
	}
	return best
}

// Text draws text onto canvas, auto-sizing to fit, centering the block
// of lines vertically and each line horizontally, and optionally
// stamping a 4-direction outline before the main glyph pass.
func Text(canvas draw.Image, bounds image.Rectangle, text string, preferredSize float64, textColor color, outlineColor *color) {
	width := bounds.Dx()
	height := bounds.Dy()
	if width <= 0 || height <= 0 || text == "" {
		return
	}
	if preferredSize <= 0 {
		preferredSize = defaultFontSize
	}

	fonts := defaultFonts()
	lines := strings.Split(text, "\n")
	size := calculateOptimalFontSize(fonts, lines, width, height, preferredSize)

	lineHeight := size * lineSpacingFactor
	totalHeight := float64(len(lines)) * lineHeight
	yOffset := (float64(height) - totalHeight) / 2
	if yOffset < 0 {
		yOffset = 0
	}

	bodyFace, emojiFace, fallbackFace := openFaces(fonts, size)
	if bodyFace == nil {
		return
	}
	defer bodyFace.Close()
	if emojiFace != nil {
		defer emojiFace.Close()
	}
	if fallbackFace != nil {
		defer fallbackFace.Close()
	}

	for _, line := range lines {
		lineWidth := measureLine(fonts, line, size)
		x := bounds.Min.X + (width-int(lineWidth>>6))/2
		baseline := bounds.Min.Y + int(yOffset+size)

		if outlineColor != nil {
			offsets := [4][2]int{{0, -1}, {0, 1}, {-1, 0}, {1, 0}}
			for _, off := range offsets {
				drawLine(canvas, bodyFace, emojiFace, fallbackFace, line, x+off[0], baseline+off[1], *outlineColor)
			}
		}
		drawLine(canvas, bodyFace, emojiFace, fallbackFace, line, x, baseline, textColor)
		yOffset += lineHeight
	}
}

func drawLine(dst draw.Image, bodyFace, emojiFace, fallbackFace font.Face, line string, x, baseline int, c color) {
	d := &font.Drawer{
		Dst:  dst,
		Src:  &image.Uniform{C: rgbaColor(c)},
		Face: bodyFace,
		Dot:  fixed.P(x, baseline),
	}
	for _, sp := range buildSpans(line) {
		d.Face = selectFace(sp, bodyFace, emojiFace, fallbackFace)
		d.DrawString(sp.text)
	}
}

func rgbaColor(c color) *uniformColor {
	return &uniformColor{c}
}

// uniformColor adapts our local color type to image/color.Color without
// a separate conversion allocation per pixel.
type uniformColor struct{ c color }

func (u *uniformColor) RGBA() (r, g, b, a uint32) {
	r = uint32(u.c.R) * 0x101
	g = uint32(u.c.G) * 0x101
	b = uint32(u.c.B) * 0x101
	a = uint32(u.c.A) * 0x101
	return
}
