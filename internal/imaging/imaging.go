// Package imaging inspects and resizes user-supplied images.
package imaging

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"  // register GIF decoding
	_ "image/jpeg" // register JPEG decoding
	"image/png"
	"net/http"
	"os"

	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp" // register WebP decoding

	"github.com/example/go-genstudio/internal/provider"
)

// Load reads an image file and sniffs its MIME type.
func Load(path string) (provider.Image, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return provider.Image{}, err
	}
	return FromBytes(data), nil
}

// FromBytes wraps data with a sniffed MIME type.
func FromBytes(data []byte) provider.Image {
	return provider.Image{Data: data, MIMEType: http.DetectContentType(data)}
}

// Dimensions decodes only the image header.
func Dimensions(data []byte) (width, height int, err error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return 0, 0, fmt.Errorf("decode image header: %w", err)
	}
	return cfg.Width, cfg.Height, nil
}

// AspectRatio returns the supported ratio closest to the image's shape.
func AspectRatio(data []byte) (provider.AspectRatio, error) {
	w, h, err := Dimensions(data)
	if err != nil {
		return provider.AspectSquare, err
	}
	return provider.ClosestAspectRatio(w, h), nil
}

// FitWithin scales img down so neither side exceeds maxSide, keeping its
// shape, and re-encodes it as PNG. Images already within bounds are
// returned unchanged.
func FitWithin(img provider.Image, maxSide int) (provider.Image, error) {
	w, h, err := Dimensions(img.Data)
	if err != nil {
		return provider.Image{}, err
	}
	if maxSide <= 0 || (w <= maxSide && h <= maxSide) {
		return img, nil
	}

	nw, nh := maxSide, maxSide
	if w > h {
		nh = max(1, h*maxSide/w)
	} else {
		nw = max(1, w*maxSide/h)
	}

	src, _, err := image.Decode(bytes.NewReader(img.Data))
	if err != nil {
		return provider.Image{}, fmt.Errorf("decode image: %w", err)
	}

	dst := image.NewRGBA(image.Rect(0, 0, nw, nh))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Over, nil)

	var buf bytes.Buffer
	if err := png.Encode(&buf, dst); err != nil {
		return provider.Image{}, fmt.Errorf("encode resized image: %w", err)
	}
	return provider.Image{Data: buf.Bytes(), MIMEType: "image/png"}, nil
}
