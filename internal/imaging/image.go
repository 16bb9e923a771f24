// Package imaging provides image loading, normalization and pixel-level
// helpers shared by the face pipelines. Decoded images are plain RGB byte
// arrays so the quality checks can run without going through image.Image.
package imaging

import (
	"image"

	"golang.org/x/image/draw"
)

// Image is a decoded 8-bit RGB pixel array (row-major, interleaved channels).
type Image struct {
	Pix    []uint8 // len = Width*Height*3
	Width  int
	Height int
}

// FromImage converts any image.Image into an RGB Image.
func FromImage(src image.Image) *Image {
	bounds := src.Bounds()
	w, h := bounds.Dx(), bounds.Dy()

	rgba, ok := src.(*image.RGBA)
	if !ok {
		rgba = image.NewRGBA(image.Rect(0, 0, w, h))
		draw.Draw(rgba, rgba.Bounds(), src, bounds.Min, draw.Src)
	}

	img := &Image{
		Pix:    make([]uint8, w*h*3),
		Width:  w,
		Height: h,
	}
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			si := rgba.PixOffset(rgba.Bounds().Min.X+x, rgba.Bounds().Min.Y+y)
			di := (y*w + x) * 3
			img.Pix[di] = rgba.Pix[si]
			img.Pix[di+1] = rgba.Pix[si+1]
			img.Pix[di+2] = rgba.Pix[si+2]
		}
	}
	return img
}

// ToRGBA converts the Image back to an *image.RGBA for resampling and encoding.
func (img *Image) ToRGBA() *image.RGBA {
	rgba := image.NewRGBA(image.Rect(0, 0, img.Width, img.Height))
	for y := 0; y < img.Height; y++ {
		for x := 0; x < img.Width; x++ {
			si := (y*img.Width + x) * 3
			di := rgba.PixOffset(x, y)
			rgba.Pix[di] = img.Pix[si]
			rgba.Pix[di+1] = img.Pix[si+1]
			rgba.Pix[di+2] = img.Pix[si+2]
			rgba.Pix[di+3] = 0xFF
		}
	}
	return rgba
}

// RGB returns the pixel at (x, y). Coordinates must be within bounds.
func (img *Image) RGB(x, y int) (r, g, b uint8) {
	i := (y*img.Width + x) * 3
	return img.Pix[i], img.Pix[i+1], img.Pix[i+2]
}

// Crop returns a copy of the region described by box. The box is clamped to
// the image bounds first; a degenerate region yields nil.
func (img *Image) Crop(box Box) *Image {
	box = box.Clamp(img.Width, img.Height)
	w, h := box.Width(), box.Height()
	if w <= 0 || h <= 0 {
		return nil
	}

	out := &Image{
		Pix:    make([]uint8, w*h*3),
		Width:  w,
		Height: h,
	}
	for y := 0; y < h; y++ {
		srcOff := ((box.Y1+y)*img.Width + box.X1) * 3
		dstOff := y * w * 3
		copy(out.Pix[dstOff:dstOff+w*3], img.Pix[srcOff:srcOff+w*3])
	}
	return out
}

// Resize scales the image to exactly width x height using bilinear sampling.
func (img *Image) Resize(width, height int) *Image {
	if width <= 0 || height <= 0 {
		return nil
	}
	if width == img.Width && height == img.Height {
		return img
	}
	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.BiLinear.Scale(dst, dst.Bounds(), img.ToRGBA(), image.Rect(0, 0, img.Width, img.Height), draw.Over, nil)
	return FromImage(dst)
}

// Box is a pixel-coordinate bounding box [x1, y1) x [x2, y2).
type Box struct {
	X1, Y1, X2, Y2 int
}

// Clamp restricts the box to the bounds of a width x height image.
func (b Box) Clamp(width, height int) Box {
	return Box{
		X1: max(0, b.X1),
		Y1: max(0, b.Y1),
		X2: min(width, b.X2),
		Y2: min(height, b.Y2),
	}
}

// Width returns the box width in pixels.
func (b Box) Width() int { return b.X2 - b.X1 }

// Height returns the box height in pixels.
func (b Box) Height() int { return b.Y2 - b.Y1 }

// Floats returns the box as [x1, y1, x2, y2] for storage.
func (b Box) Floats() []float64 {
	return []float64{float64(b.X1), float64(b.Y1), float64(b.X2), float64(b.Y2)}
}
