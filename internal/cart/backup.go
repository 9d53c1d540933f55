// Backup memory modeling: EEPROM and FLASH chip types behind an SPI-style
// command set, with a dirty-region tracker.
//
// Grounded on _examples/IntuitionAmiga-IntuitionEngine/file_io.go's
// sanitized, typed-error file I/O discipline, applied here to save-data
// size detection instead of path handling.
package cart

import "fmt"

// BackupType identifies the chip family and size a save image implies.
type BackupType int

const (
	BackupNone BackupType = iota
	BackupEEPROM512B
	BackupEEPROM8KiB
	BackupEEPROM64KiB
	BackupEEPROM128KiB
	BackupFLASH256KiB
	BackupFLASH512KiB
	BackupFLASH1MiB
	BackupFLASH8MiB
)

var backupSizes = map[BackupType]int{
	BackupEEPROM512B:   512,
	BackupEEPROM8KiB:   8 * 1024,
	BackupEEPROM64KiB:  64 * 1024,
	BackupEEPROM128KiB: 128 * 1024,
	BackupFLASH256KiB:  256 * 1024,
	BackupFLASH512KiB:  512 * 1024,
	BackupFLASH1MiB:    1024 * 1024,
	BackupFLASH8MiB:    8 * 1024 * 1024,
}

// DetectBackupType applies the save-size heuristic games rely on: backup
// images carry no type header, so a raw dump's byte length alone
// determines its chip type.
func DetectBackupType(size int) (BackupType, error) {
	for t, sz := range backupSizes {
		if sz == size {
			return t, nil
		}
	}
	return BackupNone, fmt.Errorf("cart: %d bytes does not match any known backup memory size", size)
}

// AddressBits returns how many address bits this type's SPI commands
// carry: 8 for 512-byte EEPROM, 16 for 8 KiB and 64 KiB EEPROM, and 24
// for every larger type.
func (t BackupType) AddressBits() int {
	switch t {
	case BackupEEPROM512B:
		return 8
	case BackupEEPROM8KiB, BackupEEPROM64KiB:
		return 16
	default:
		return 24
	}
}

// DirtyRange is a half-open byte range [Offset, Offset+Len) that changed
// since the last flush, reported to the host via save_dirty.
type DirtyRange struct {
	Offset, Len uint32
}

// Backup owns a save image's bytes, its write-enable latch, and the
// pending dirty-region queue the host callback debounces and drains.
type Backup struct {
	Type         BackupType
	data         []byte
	writeEnabled bool
	dirty        []DirtyRange
}

// NewBackup wraps an existing save dump, inferring its type from its
// length.
func NewBackup(data []byte) (*Backup, error) {
	t, err := DetectBackupType(len(data))
	if err != nil {
		return nil, err
	}
	return &Backup{Type: t, data: data}, nil
}

// SetWriteEnable implements the SPI write-enable-latch command (WREN):
// a write only takes effect while this latch is set, and every write
// clears it again, matching real EEPROM/FLASH SPI semantics.
func (b *Backup) SetWriteEnable(on bool) { b.writeEnabled = on }

// ReadAt returns n bytes from offset, clamped to the backup's extent.
func (b *Backup) ReadAt(offset, n uint32) []byte {
	if int(offset) >= len(b.data) {
		return make([]byte, n)
	}
	end := int(offset) + int(n)
	if end > len(b.data) {
		end = len(b.data)
	}
	out := make([]byte, n)
	copy(out, b.data[offset:end])
	return out
}

// WriteAt writes val at offset if the write-enable latch is set, records
// the touched range as dirty, and clears the latch. A write while the
// latch is clear is silently ignored, matching hardware.
func (b *Backup) WriteAt(offset uint32, val []byte) {
	if !b.writeEnabled {
		return
	}
	end := int(offset) + len(val)
	if end > len(b.data) {
		end = len(b.data)
	}
	n := copy(b.data[offset:end], val)
	if n > 0 {
		b.dirty = append(b.dirty, DirtyRange{Offset: offset, Len: uint32(n)})
	}
	b.writeEnabled = false
}

// DrainDirty returns and clears the pending dirty-region list, for the
// core to forward through save_dirty, debounced at the core boundary so
// a burst of small writes doesn't trigger a flush per byte.
func (b *Backup) DrainDirty() []DirtyRange {
	d := b.dirty
	b.dirty = nil
	return d
}

// Bytes exposes the raw backing store for save-file persistence.
func (b *Backup) Bytes() []byte { return b.data }
