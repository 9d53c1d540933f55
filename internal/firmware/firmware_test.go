package firmware

import (
	"encoding/binary"
	"testing"

	"github.com/intuitionamiga/ndscore/internal/romfile"
)

func build128() []byte {
	data := make([]byte, Size128KiB)
	block := data[userSettingsOffset128 : userSettingsOffset128+userSettingsCRCLen]
	block[0x02] = 0x2 // language
	binary.LittleEndian.PutUint16(block[0x08:0x0A], 100)
	crc := romfile.CRC16(block)
	binary.LittleEndian.PutUint16(data[userSettingsOffset128+userSettingsCRCLen:], crc)
	return data
}

func TestLoadParsesValidSettingsBlock(t *testing.T) {
	img, err := Load(build128())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if img.Settings.Language != 2 {
		t.Fatalf("Language = %d, want 2", img.Settings.Language)
	}
	if img.Settings.TouchCalibration[0] != 100 {
		t.Fatalf("TouchCalibration[0] = %d, want 100", img.Settings.TouchCalibration[0])
	}
}

func TestLoadRejectsBadSize(t *testing.T) {
	if _, err := Load(make([]byte, 1000)); err == nil {
		t.Fatalf("expected error for wrong-sized image")
	}
}

func TestLoadRejectsBadCRC(t *testing.T) {
	data := build128()
	data[userSettingsOffset128] ^= 0xFF
	if _, err := Load(data); err == nil {
		t.Fatalf("expected CRC mismatch error")
	}
}

func TestKEY1SeedRequiresMinimumBIOSLength(t *testing.T) {
	if _, err := KEY1Seed(make([]byte, 0x100)); err == nil {
		t.Fatalf("expected error for truncated ARM7 BIOS")
	}
	seed, err := KEY1Seed(make([]byte, 0x2000))
	if err != nil {
		t.Fatalf("KEY1Seed: %v", err)
	}
	if len(seed) != 0x1078-0x0030 {
		t.Fatalf("seed length = %d, want %d", len(seed), 0x1078-0x0030)
	}
}
