//go:build !unix

package romfile

import (
	"fmt"
	"os"
)

// Load reads path into memory and parses its header. Platforms without
// unix.Mmap get a plain copy instead of a mapping; the caller's prior
// state is untouched if it returns an error.
func Load(path string) (*Image, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("romfile: open %s: %w", path, err)
	}
	if len(data) < HeaderSize {
		return nil, fmt.Errorf("romfile: %s is %d bytes, smaller than the %d-byte header", path, len(data), HeaderSize)
	}

	img := &Image{data: data}
	if err := img.parseHeader(); err != nil {
		return nil, err
	}
	return img, nil
}

func munmap(data []byte) error {
	return nil
}
