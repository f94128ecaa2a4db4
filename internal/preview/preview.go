// Package preview rasterizes a graphic into a PNG thumbnail so the input of
// a job can be checked without running the engine.
package preview

import (
	"errors"
	"fmt"
	"image"
	"image/draw"
	"image/png"
	"io"
	"math"
	"os"
	"strings"

	"github.com/srwiley/oksvg"
	"github.com/srwiley/rasterx"

	"github.com/ivlev/concept2video/internal/system"
)

// DefaultWidth is used when no width is requested.
const DefaultWidth = 480

// MaxDimension bounds both sides of a preview.
const MaxDimension = 2048

var ErrEmptyViewBox = errors.New("graphic has no drawable area")

// Render draws svg scaled to width pixels, keeping the aspect ratio, on a
// white background. Neither side exceeds MaxDimension. The returned image
// comes from the shared pool; callers that are done with it may hand it
// back with system.PutImage.
func Render(svg string, width int) (*image.RGBA, error) {
	icon, err := oksvg.ReadIconStream(strings.NewReader(svg), oksvg.IgnoreErrorMode)
	if err != nil {
		return nil, fmt.Errorf("parse graphic: %w", err)
	}
	vb := icon.ViewBox
	if vb.W <= 0 || vb.H <= 0 {
		return nil, ErrEmptyViewBox
	}
	width, height := size(vb.W, vb.H, width)

	img := system.GetImage(image.Rect(0, 0, width, height))
	draw.Draw(img, img.Bounds(), image.White, image.Point{}, draw.Src)

	icon.SetTarget(0, 0, float64(width), float64(height))
	scanner := rasterx.NewScannerGV(width, height, img, img.Bounds())
	icon.Draw(rasterx.NewDasher(width, height, scanner), 1.0)
	return img, nil
}

// size scales the view box to width pixels. When the other side would
// exceed MaxDimension the image shrinks to fit, keeping the aspect ratio.
func size(vbW, vbH float64, width int) (int, int) {
	if width <= 0 {
		width = DefaultWidth
	}
	w := math.Min(float64(width), MaxDimension)
	h := w * vbH / vbW
	if h > MaxDimension {
		h = MaxDimension
		w = h * vbW / vbH
	}
	return int(math.Max(1, math.Round(w))), int(math.Max(1, math.Round(h)))
}

// Encode renders svg and writes it to w as PNG.
func Encode(w io.Writer, svg string, width int) error {
	img, err := Render(svg, width)
	if err != nil {
		return err
	}
	defer system.PutImage(img)
	return png.Encode(w, img)
}

// WriteFile renders svg into a PNG file at path.
func WriteFile(path, svg string, width int) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := Encode(f, svg, width); err != nil {
		f.Close()
		os.Remove(path)
		return err
	}
	return f.Close()
}
