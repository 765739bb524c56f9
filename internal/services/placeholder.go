package services

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/png"
)

// PlaceholderPNG renders the neutral fallback frame stored for a scene when
// every image provider failed. A dark vertical gradient at the output frame
// size, so the compositor treats it like any generated image.
func PlaceholderPNG(width, height int) ([]byte, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("invalid placeholder dimensions %dx%d", width, height)
	}

	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		shade := uint8(16 + 28*y/height)
		row := color.RGBA{R: shade, G: shade, B: shade + 10, A: 255}
		for x := 0; x < width; x++ {
			img.SetRGBA(x, y, row)
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("failed to encode placeholder image: %w", err)
	}
	return buf.Bytes(), nil
}
