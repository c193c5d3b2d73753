package imagepkg

import (
	"bytes"
	"fmt"
	"image"
	"image/color"

	"github.com/disintegration/imaging"

	"github.com/youruser/itemart/internal/config"
)

type Policy int

const (
	// PolicyMaxDimension bounds the foreground's larger side by 70% of the
	// background's smaller side, optionally growing small foregrounds.
	PolicyMaxDimension Policy = iota
	// PolicyFitBox always fits the foreground into 80% of the background.
	PolicyFitBox
)

// ParsePolicy maps a config policy name to a Policy.
func ParsePolicy(name string) (Policy, error) {
	switch name {
	case config.PolicyMaxDimension, "":
		return PolicyMaxDimension, nil
	case config.PolicyFitBox:
		return PolicyFitBox, nil
	}
	return 0, fmt.Errorf("unknown compose policy %q", name)
}

// Placement is where and at what size the foreground lands on the background.
type Placement struct {
	Width, Height int
	X, Y          int
	Resize        bool
}

// Compositor centers an item image over a background.
type Compositor struct {
	Policy       Policy
	UpscaleSmall bool
}

// Layout computes the foreground's target size and centered offset.
func (c Compositor) Layout(bgW, bgH, fgW, fgH int) Placement {
	w, h, resize := fgW, fgH, false
	if fgW > 0 && fgH > 0 {
		switch c.Policy {
		case PolicyFitBox:
			w, h = fitBox(bgW, bgH, fgW, fgH)
			resize = true
		default:
			w, h, resize = c.maxDimension(bgW, bgH, fgW, fgH)
		}
	}
	return Placement{
		Width:  w,
		Height: h,
		X:      floorDiv(bgW-w, 2),
		Y:      floorDiv(bgH-h, 2),
		Resize: resize,
	}
}

func (c Compositor) maxDimension(bgW, bgH, fgW, fgH int) (int, int, bool) {
	target := 0.7 * float64(min(bgW, bgH))
	fw, fh := float64(fgW), float64(fgH)
	longest := float64(max(fgW, fgH))

	switch {
	case fw > target || fh > target:
		s := target / longest
		return clampDim(fw * s), clampDim(fh * s), true
	case c.UpscaleSmall && fw < target*0.5 && fh < target*0.5:
		s := target * 0.6 / longest
		w, h := clampDim(fw*s), clampDim(fh*s)
		if w > fgW || h > fgH {
			return w, h, true
		}
	}
	return fgW, fgH, false
}

func fitBox(bgW, bgH, fgW, fgH int) (int, int) {
	tw, th := 0.8*float64(bgW), 0.8*float64(bgH)
	r := float64(fgW) / float64(fgH)
	if th == 0 {
		return clampDim(tw), clampDim(tw / r)
	}
	if r > tw/th {
		return clampDim(tw), clampDim(tw / r)
	}
	return clampDim(th * r), clampDim(th)
}

// clampDim truncates a scaled dimension; it never drops below one pixel.
func clampDim(v float64) int {
	if v < 1 {
		return 1
	}
	return int(v)
}

func floorDiv(a, b int) int {
	q := a / b
	if a%b != 0 && (a < 0) != (b < 0) {
		q--
	}
	return q
}

// Compose places fg centered on a transparent layer the size of bg, then
// alpha-composites that layer over bg. The result has bg's dimensions.
func (c Compositor) Compose(bg, fg image.Image) *image.NRGBA {
	base := imaging.Clone(bg)
	bw, bh := base.Bounds().Dx(), base.Bounds().Dy()
	fb := fg.Bounds()

	p := c.Layout(bw, bh, fb.Dx(), fb.Dy())
	item := fg
	if p.Resize {
		item = imaging.Resize(fg, p.Width, p.Height, imaging.Lanczos)
	}

	layer := imaging.New(bw, bh, color.NRGBA{})
	layer = imaging.Paste(layer, item, image.Pt(p.X, p.Y))
	return imaging.Overlay(base, layer, image.Pt(0, 0), 1.0)
}

// EncodePNG encodes img losslessly.
func EncodePNG(img image.Image) ([]byte, error) {
	buf := new(bytes.Buffer)
	if err := imaging.Encode(buf, img, imaging.PNG); err != nil {
		return nil, fmt.Errorf("encoding png: %w", err)
	}
	return buf.Bytes(), nil
}
