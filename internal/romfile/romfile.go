// Package romfile loads and validates DS cartridge ROM images.
//
// Grounded on _examples/IntuitionAmiga-IntuitionEngine/file_io.go's loader
// discipline (resolve to an absolute path, distinguish not-found from
// permission from malformed-content failures, return typed results rather
// than panicking) and on DESIGN.md's dependency ledger: large ROM images
// (up to 512 MiB) are mapped read-only via golang.org/x/sys/unix on
// platforms that support it, falling back to a plain os.ReadFile copy
// elsewhere (see romfile_unix.go and romfile_other.go).
package romfile

import (
	"encoding/binary"
	"fmt"
)

const HeaderSize = 512

// CoreInfo describes one CPU's boot image location within the cartridge.
type CoreInfo struct {
	RomOffset uint32
	EntryAddr uint32
	LoadAddr  uint32
	Size      uint32
}

// Header is the parsed 512-byte DS ROM header.
type Header struct {
	GameCode  string
	GameTitle string
	ARM9      CoreInfo
	ARM7      CoreInfo

	FNTOffset, FNTSize uint32
	FATOffset, FATSize uint32

	IconBannerOffset uint32
	SecureAreaCRC    uint16
	HeaderCRC        uint16

	// GameCodeID is the 4-byte game code read as a big-endian integer, the
	// form the cartridge's KEY1 key schedule is seeded with.
	GameCodeID uint32
}

// Image is a ROM file's bytes (memory-mapped where supported) plus its
// parsed header.
type Image struct {
	data   []byte
	mapped bool
	Header Header
}

// Close releases the image's backing storage. On platforms where Load
// memory-mapped the file, this unmaps it; otherwise it is a no-op, since
// the fallback loader's bytes are an ordinary Go slice for the GC to
// collect.
func (img *Image) Close() error {
	if !img.mapped {
		return nil
	}
	img.mapped = false
	return munmap(img.data)
}

// LoadBytes builds an Image from an in-memory ROM image (used by tests and
// by hosts that already have the bytes, e.g. from an archive extractor
// upstream of the core). It still validates the header the same way.
func LoadBytes(data []byte) (*Image, error) {
	if len(data) < HeaderSize {
		return nil, fmt.Errorf("romfile: image is %d bytes, smaller than the %d-byte header", len(data), HeaderSize)
	}
	img := &Image{data: data}
	if err := img.parseHeader(); err != nil {
		return nil, err
	}
	return img, nil
}

func (img *Image) parseHeader() error {
	h := img.data[:HeaderSize]

	computed := CRC16(h[:0x15E])
	stored := binary.LittleEndian.Uint16(h[0x15E:0x160])
	if computed != stored {
		return fmt.Errorf("romfile: header CRC mismatch (computed %#04x, stored %#04x)", computed, stored)
	}

	img.Header = Header{
		GameCode:  string(h[0x0C:0x10]),
		GameTitle: cString(h[0x00:0x0C]),
		ARM9: CoreInfo{
			EntryAddr: binary.LittleEndian.Uint32(h[0x24:0x28]),
			RomOffset: binary.LittleEndian.Uint32(h[0x20:0x24]),
			LoadAddr:  binary.LittleEndian.Uint32(h[0x28:0x2C]),
			Size:      binary.LittleEndian.Uint32(h[0x2C:0x30]),
		},
		ARM7: CoreInfo{
			RomOffset: binary.LittleEndian.Uint32(h[0x30:0x34]),
			EntryAddr: binary.LittleEndian.Uint32(h[0x34:0x38]),
			LoadAddr:  binary.LittleEndian.Uint32(h[0x38:0x3C]),
			Size:      binary.LittleEndian.Uint32(h[0x3C:0x40]),
		},
		FNTOffset:        binary.LittleEndian.Uint32(h[0x40:0x44]),
		FNTSize:          binary.LittleEndian.Uint32(h[0x44:0x48]),
		FATOffset:        binary.LittleEndian.Uint32(h[0x48:0x4C]),
		FATSize:          binary.LittleEndian.Uint32(h[0x4C:0x50]),
		IconBannerOffset: binary.LittleEndian.Uint32(h[0x68:0x6C]),
		SecureAreaCRC:    binary.LittleEndian.Uint16(h[0x6C:0x6E]),
		HeaderCRC:        stored,
		GameCodeID:       binary.BigEndian.Uint32(h[0x0C:0x10]),
	}
	return nil
}

func cString(b []byte) string {
	for i, c := range b {
		if c == 0 {
			return string(b[:i])
		}
	}
	return string(b)
}

// ReadAt returns n bytes starting at offset off within the ROM image,
// clamped to the image's extent (used by the cartridge interface's
// transparent-read command).
func (img *Image) ReadAt(off, n uint32) []byte {
	if int(off) >= len(img.data) {
		return nil
	}
	end := int(off) + int(n)
	if end > len(img.data) {
		end = len(img.data)
	}
	return img.data[off:end]
}

// Size returns the full image length in bytes.
func (img *Image) Size() uint32 { return uint32(len(img.data)) }

// CRC16 computes the reflected CRC-16 (poly 0xA001) used by both the DS
// ROM header and the firmware user-settings block - despite the firmware
// side's conventional "CRC16-CCITT" label, the real console uses this
// same reflected-poly algorithm for both.
func CRC16(data []byte) uint16 {
	var crc uint16 = 0xFFFF
	for _, b := range data {
		crc ^= uint16(b)
		for i := 0; i < 8; i++ {
			if crc&1 != 0 {
				crc = (crc >> 1) ^ 0xA001
			} else {
				crc >>= 1
			}
		}
	}
	return crc
}
