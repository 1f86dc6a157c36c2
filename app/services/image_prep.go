package services

import (
	"bytes"
	"image"
	"image/color"
	imagedraw "image/draw"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"

	xdraw "golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

// prepareImage down-scales images whose longest side exceeds maxDim and
// re-encodes them as JPEG. Content that is not a decodable image, or that is
// already small enough, is returned untouched.
func prepareImage(content []byte, contentType string, maxDim, quality int) ([]byte, string, bool) {
	if maxDim <= 0 {
		return content, contentType, false
	}
	src, _, err := image.Decode(bytes.NewReader(content))
	if err != nil {
		return content, contentType, false
	}
	b := src.Bounds()
	if b.Dx() <= maxDim && b.Dy() <= maxDim {
		return content, contentType, false
	}

	dst := resizeImage(src, maxDim)
	if quality <= 0 || quality > 100 {
		quality = 85
	}
	buf := &bytes.Buffer{}
	if err := jpeg.Encode(buf, dst, &jpeg.Options{Quality: quality}); err != nil {
		return content, contentType, false
	}
	return buf.Bytes(), "image/jpeg", true
}

// resizeImage fits src into a maxDim square keeping its aspect ratio, on a white background
func resizeImage(src image.Image, maxDim int) image.Image {
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	if w <= maxDim && h <= maxDim {
		return src
	}

	var nw, nh int
	if w >= h {
		nw = maxDim
		nh = max(1, int(float64(h)*float64(maxDim)/float64(w)))
	} else {
		nh = maxDim
		nw = max(1, int(float64(w)*float64(maxDim)/float64(h)))
	}

	dst := image.NewRGBA(image.Rect(0, 0, nw, nh))
	imagedraw.Draw(dst, dst.Bounds(), &image.Uniform{C: color.White}, image.Point{}, imagedraw.Src)
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), src, b, xdraw.Over, nil)
	return dst
}
