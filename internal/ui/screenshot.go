package ui

import (
	"fmt"
	"image"
	"image/png"
	"os"
	"time"
)

// writeScreenshotPNG writes a pre-expanded 160x144 RGBA8 buffer (see
// ExpandRGBA) to a timestamped PNG file in the current directory.
func writeScreenshotPNG(rgba []byte) error {
	img := &image.RGBA{Pix: rgba, Stride: 4 * 160, Rect: image.Rect(0, 0, 160, 144)}
	name := fmt.Sprintf("screenshot_%s.png", time.Now().Format("20060102_150405"))
	f, err := os.Create(name)
	if err != nil {
		return err
	}
	defer f.Close()
	return png.Encode(f, img)
}
