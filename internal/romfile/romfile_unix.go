//go:build unix

package romfile

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// Load mmaps path read-only and parses its header. The caller's prior
// state is untouched if it returns an error.
func Load(path string) (*Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("romfile: open %s: %w", path, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("romfile: stat %s: %w", path, err)
	}
	if info.Size() < HeaderSize {
		return nil, fmt.Errorf("romfile: %s is %d bytes, smaller than the %d-byte header", path, info.Size(), HeaderSize)
	}

	data, err := unix.Mmap(int(f.Fd()), 0, int(info.Size()), unix.PROT_READ, unix.MAP_PRIVATE)
	if err != nil {
		return nil, fmt.Errorf("romfile: mmap %s: %w", path, err)
	}

	img := &Image{data: data, mapped: true}
	if err := img.parseHeader(); err != nil {
		unix.Munmap(data)
		return nil, err
	}
	return img, nil
}

func munmap(data []byte) error {
	return unix.Munmap(data)
}
