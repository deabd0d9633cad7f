package integrations

import (
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"

	_ "golang.org/x/image/webp"
)

// Size is the pixel dimension of a page image.
type Size struct {
	Width  int
	Height int
}

func (s Size) Valid() bool {
	return s.Width > 0 && s.Height > 0
}

// Measure reads the dimensions from an image header without decoding the
// pixels. It returns a zero Size for unreadable or unknown formats.
func Measure(path string) Size {
	f, err := os.Open(path)
	if err != nil {
		return Size{}
	}
	defer f.Close()

	cfg, _, err := image.DecodeConfig(f)
	if err != nil {
		return Size{}
	}
	return Size{Width: cfg.Width, Height: cfg.Height}
}

// sizeOf returns the known size of asset i, measuring the file when the job
// carries none.
func sizeOf(job Job, i int) Size {
	if i < len(job.Sizes) && job.Sizes[i].Valid() {
		return job.Sizes[i]
	}
	return Measure(job.Assets[i])
}
