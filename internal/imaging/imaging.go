// Package imaging normalizes uploaded item photos into a display image and
// a listing thumbnail.
package imaging

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"io"
	"net/http"

	"golang.org/x/image/draw"
	"golang.org/x/image/webp"
)

const (
	// MaxDimension bounds the width and height of the stored photo.
	MaxDimension = 1280
	// ThumbDimension bounds the width and height of the thumbnail.
	ThumbDimension = 320
	// JPEGQuality is used for both encodings.
	JPEGQuality = 82
)

var (
	ErrUnsupported = errors.New("unsupported image format")
	ErrTooLarge    = errors.New("image too large")
)

// accepted maps sniffed MIME types to decoders.
var accepted = map[string]func(io.Reader) (image.Image, error){
	"image/jpeg": jpeg.Decode,
	"image/png":  png.Decode,
	"image/webp": webp.Decode,
}

// Photo is a processed upload. Both encodings are JPEG.
type Photo struct {
	Full  []byte
	Thumb []byte
	MIME  string
}

// Process reads at most maxBytes from r, checks the format by sniffing the
// content, and re-encodes it as a bounded photo plus thumbnail.
func Process(r io.Reader, maxBytes int64) (*Photo, error) {
	data, err := io.ReadAll(io.LimitReader(r, maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("reading image data: %w", err)
	}
	if int64(len(data)) > maxBytes {
		return nil, fmt.Errorf("%w: limit is %d bytes", ErrTooLarge, maxBytes)
	}

	detected := http.DetectContentType(data)
	decode, ok := accepted[detected]
	if !ok {
		return nil, fmt.Errorf("%w: %s (JPEG, PNG or WebP accepted)", ErrUnsupported, detected)
	}

	img, err := decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: decoding %s: %v", ErrUnsupported, detected, err)
	}

	full, err := encode(fit(img, MaxDimension, draw.CatmullRom))
	if err != nil {
		return nil, err
	}
	thumb, err := encode(fit(img, ThumbDimension, draw.ApproxBiLinear))
	if err != nil {
		return nil, err
	}

	return &Photo{Full: full, Thumb: thumb, MIME: "image/jpeg"}, nil
}

func encode(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: JPEGQuality}); err != nil {
		return nil, fmt.Errorf("encoding JPEG: %w", err)
	}
	return buf.Bytes(), nil
}

// fit scales img down so neither side exceeds maxDim, keeping the aspect
// ratio. Smaller images are flattened onto an opaque canvas unscaled.
func fit(img image.Image, maxDim int, scaler draw.Scaler) image.Image {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()

	if w > maxDim || h > maxDim {
		if w >= h {
			h = max(1, h*maxDim/w)
			w = maxDim
		} else {
			w = max(1, w*maxDim/h)
			h = maxDim
		}
	}

	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(dst, dst.Bounds(), image.White, image.Point{}, draw.Src)
	if w == b.Dx() && h == b.Dy() {
		draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Over)
		return dst
	}
	scaler.Scale(dst, dst.Bounds(), img, b, draw.Over, nil)
	return dst
}
