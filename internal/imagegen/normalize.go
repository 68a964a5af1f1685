package imagegen

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"

	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

// Normalize returns a PNG of exactly width x height. The source is scaled to
// cover the target and center-cropped. A PNG that already matches is
// returned unchanged.
func Normalize(raw []byte, width, height int) ([]byte, error) {
	if len(raw) == 0 {
		return nil, errors.New("empty image")
	}
	cfg, format, err := image.DecodeConfig(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("decode image config: %w", err)
	}
	if width <= 0 || height <= 0 {
		width, height = cfg.Width, cfg.Height
	}
	if format == "png" && cfg.Width == width && cfg.Height == height {
		return raw, nil
	}

	src, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("decode %s image: %w", format, err)
	}
	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, coverRect(src.Bounds(), width, height), draw.Src, nil)

	var buf bytes.Buffer
	if err := png.Encode(&buf, dst); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}

// coverRect is the centered region of b with the target aspect ratio.
func coverRect(b image.Rectangle, width, height int) image.Rectangle {
	sw, sh := b.Dx(), b.Dy()
	// Compare sw/sh against width/height without floats.
	if sw*height > sh*width {
		cw := sh * width / height
		x0 := b.Min.X + (sw-cw)/2
		return image.Rect(x0, b.Min.Y, x0+cw, b.Max.Y)
	}
	ch := sw * height / width
	y0 := b.Min.Y + (sh-ch)/2
	return image.Rect(b.Min.X, y0, b.Max.X, y0+ch)
}
