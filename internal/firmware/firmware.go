// Package firmware parses the DS firmware image and its user-settings
// block.
//
// Grounded on the same loader discipline as internal/romfile (typed
// errors, no partial mutation of prior state on failure), from
// _examples/IntuitionAmiga-IntuitionEngine/file_io.go.
package firmware

import (
	"encoding/binary"
	"fmt"

	"github.com/intuitionamiga/ndscore/internal/romfile"
)

const (
	Size128KiB = 128 * 1024
	Size256KiB = 256 * 1024

	userSettingsOffset128 = 0x1FE00
	userSettingsOffset256 = 0x3FF00
	userSettingsCRCLen    = 0x70
)

// UserSettings is the subset of the firmware user-settings block the core
// needs: the console owner's name/touch calibration live here on real
// hardware, but only the fields that affect boot and RTC seeding are
// modeled; a full settings UI is out of scope.
type UserSettings struct {
	TouchCalibration [6]int16 // ADC/screen coordinate pairs for the two calibration points
	Language         uint8
}

// Image holds the raw firmware bytes and the parsed settings block.
type Image struct {
	data     []byte
	Settings UserSettings
}

// Load validates size and the settings block's CRC, then parses it.
func Load(data []byte) (*Image, error) {
	var settingsOff int
	switch len(data) {
	case Size128KiB:
		settingsOff = userSettingsOffset128
	case Size256KiB:
		settingsOff = userSettingsOffset256
	default:
		return nil, fmt.Errorf("firmware: image is %d bytes, want %d or %d", len(data), Size128KiB, Size256KiB)
	}

	block := data[settingsOff : settingsOff+userSettingsCRCLen]
	computed := romfile.CRC16(block)
	stored := binary.LittleEndian.Uint16(data[settingsOff+userSettingsCRCLen : settingsOff+userSettingsCRCLen+2])
	if computed != stored {
		return nil, fmt.Errorf("firmware: user-settings CRC mismatch (computed %#04x, stored %#04x)", computed, stored)
	}

	img := &Image{data: data}
	img.Settings.Language = block[0x02] & 0x7
	for i := 0; i < 6; i++ {
		img.Settings.TouchCalibration[i] = int16(binary.LittleEndian.Uint16(block[0x08+i*2 : 0x0A+i*2]))
	}
	return img, nil
}

// KEY1Seed returns the ARM7 BIOS bytes at offsets 0x0030..0x1078 used to
// seed the cartridge's KEY1 Blowfish key schedule. This lives here rather
// than in romfile since the seed is read from the BIOS image, not the
// cartridge.
func KEY1Seed(arm7BIOS []byte) ([]byte, error) {
	const start, end = 0x0030, 0x1078
	if len(arm7BIOS) < end {
		return nil, fmt.Errorf("firmware: ARM7 BIOS is %d bytes, need at least %d for the KEY1 seed", len(arm7BIOS), end)
	}
	return arm7BIOS[start:end], nil
}
