package services

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"strings"
	"unicode"

	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var (
	gradientTop    = color.RGBA{0x66, 0x7e, 0xea, 0xff}
	gradientBottom = color.RGBA{0x76, 0x4b, 0xa2, 0xff}
)

// maxPlaceholderKeywords caps the keyword lines drawn under the label.
const maxPlaceholderKeywords = 4

// PlaceholderService draws the offline fallback image for a scene: a
// vertical gradient, a few translucent shapes, the scene number and the
// prompt's main keywords.
type PlaceholderService struct{}

func NewPlaceholderService() *PlaceholderService {
	return &PlaceholderService{}
}

// Render returns a PNG for the 0-based sceneIndex. lang selects the label
// wording ("es" gives "Escena 3", anything else "Scene 3").
func (s *PlaceholderService) Render(sceneIndex int, prompt, lang string, width, height int) ([]byte, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("invalid placeholder size %dx%d", width, height)
	}

	img := image.NewRGBA(image.Rect(0, 0, width, height))
	fillGradient(img, gradientTop, gradientBottom)
	drawDecorations(img, sceneIndex)

	label := "Scene"
	if lang == "es" {
		label = "Escena"
	}
	unit := width / 90
	if unit < 1 {
		unit = 1
	}

	drawTextCentered(img, fmt.Sprintf("%s %d", label, sceneIndex+1), height/3, unit*2, color.White)

	titler := cases.Title(language.Make(lang))
	y := height / 2
	for _, kw := range ExtractKeywords(prompt, maxPlaceholderKeywords) {
		drawTextCentered(img, titler.String(kw), y, unit, color.RGBA{0xff, 0xff, 0xff, 0xe0})
		y += 13*unit + unit*4
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("failed to encode placeholder: %w", err)
	}
	return buf.Bytes(), nil
}

func fillGradient(img *image.RGBA, top, bottom color.RGBA) {
	b := img.Bounds()
	h := b.Dy()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		t := float64(y-b.Min.Y) / float64(max(h-1, 1))
		c := color.RGBA{
			R: lerp(top.R, bottom.R, t),
			G: lerp(top.G, bottom.G, t),
			B: lerp(top.B, bottom.B, t),
			A: 0xff,
		}
		draw.Draw(img, image.Rect(b.Min.X, y, b.Max.X, y+1), image.NewUniform(c), image.Point{}, draw.Src)
	}
}

func lerp(a, b uint8, t float64) uint8 {
	return uint8(float64(a) + (float64(b)-float64(a))*t + 0.5)
}

// drawDecorations adds translucent circles and bars. Positions shift with the
// scene index so consecutive placeholders don't look identical.
func drawDecorations(img *image.RGBA, sceneIndex int) {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	soft := image.NewUniform(color.NRGBA{0xff, 0xff, 0xff, 0x26})

	shift := (sceneIndex % 4) * w / 10
	circles := []circle{
		{image.Pt(w/5+shift, h/8), w / 4},
		{image.Pt(w-w/6-shift, h-h/6), w / 3},
		{image.Pt(w/2, h-h/3+shift/2), w / 8},
	}
	for _, c := range circles {
		draw.DrawMask(img, c.Bounds(), soft, image.Point{}, &c, c.Bounds().Min, draw.Over)
	}

	bar := h / 60
	if bar < 2 {
		bar = 2
	}
	for i, y := range []int{h / 4, h - h/4} {
		x0 := w / 10
		if i == 1 {
			x0 = w / 3
		}
		r := image.Rect(x0, y, x0+w/2, y+bar)
		draw.Draw(img, r, soft, image.Point{}, draw.Over)
	}
}

// circle is an alpha mask for a filled disc.
type circle struct {
	p image.Point
	r int
}

func (c *circle) ColorModel() color.Model { return color.AlphaModel }

func (c *circle) Bounds() image.Rectangle {
	return image.Rect(c.p.X-c.r, c.p.Y-c.r, c.p.X+c.r, c.p.Y+c.r)
}

func (c *circle) At(x, y int) color.Color {
	dx, dy := x-c.p.X, y-c.p.Y
	if dx*dx+dy*dy < c.r*c.r {
		return color.Alpha{0xff}
	}
	return color.Alpha{0}
}

// drawTextCentered renders text with the 7x13 bitmap face into a small
// buffer and scales it by factor onto img, centred horizontally around row y.
func drawTextCentered(img *image.RGBA, text string, y, factor int, col color.Color) {
	text = asciiOnly(text)
	face := basicfont.Face7x13

	width := font.MeasureString(face, text).Ceil()
	if width == 0 {
		return
	}
	small := image.NewRGBA(image.Rect(0, 0, width, 13))
	d := &font.Drawer{
		Dst:  small,
		Src:  image.NewUniform(col),
		Face: face,
		Dot:  fixed.P(0, 11),
	}
	d.DrawString(text)

	b := img.Bounds()
	maxW := b.Dx() * 9 / 10
	for factor > 1 && width*factor > maxW {
		factor--
	}

	dw, dh := width*factor, 13*factor
	x := (b.Dx() - dw) / 2
	dst := image.Rect(x, y-dh/2, x+dw, y-dh/2+dh)
	xdraw.NearestNeighbor.Scale(img, dst, small, small.Bounds(), xdraw.Over, nil)
}

// asciiOnly keeps the glyphs covered by the bitmap face, folding accented
// letters to their base form and preserving case.
func asciiOnly(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= 0x20 && r < 0x7f {
			b.WriteRune(r)
			continue
		}
		f := FoldAccents(string(r))
		if len(f) != 1 || f[0] < 0x20 || f[0] >= 0x7f {
			continue
		}
		if unicode.IsUpper(r) {
			f = strings.ToUpper(f)
		}
		b.WriteString(f)
	}
	return b.String()
}
