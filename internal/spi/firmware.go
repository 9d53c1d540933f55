package spi

// Firmware models the firmware EEPROM as a standard SPI-flash-style
// command set (read, write-enable/disable, JEDEC ID) over a byte image,
// grounded on original_source/SPI.cpp's firmware chip emulation and on
// internal/cart/backup.go's write-enable-latch discipline.
type Firmware struct {
	data         []byte
	writeEnabled bool

	state   firmwareState
	addr    uint32
	addrLeft int
	idIndex int
}

type firmwareState int

const (
	fwIdle firmwareState = iota
	fwCollectAddr
	fwStreamRead
	fwStreamID
)

// NewFirmware wraps a firmware image byte slice for SPI access.
func NewFirmware(data []byte) *Firmware { return &Firmware{data: data} }

func (f *Firmware) Select() { f.state = fwIdle }

func (f *Firmware) Transfer(out byte) byte {
	switch f.state {
	case fwIdle:
		switch out {
		case 0x03: // READ
			f.state, f.addrLeft, f.addr = fwCollectAddr, 3, 0
		case 0x06: // WREN
			f.writeEnabled = true
		case 0x04: // WRDI
			f.writeEnabled = false
		case 0x9F: // RDID
			f.state, f.idIndex = fwStreamID, 0
		}
		return 0xFF
	case fwCollectAddr:
		f.addr = f.addr<<8 | uint32(out)
		f.addrLeft--
		if f.addrLeft == 0 {
			f.state = fwStreamRead
		}
		return 0xFF
	case fwStreamRead:
		var b byte
		if int(f.addr) < len(f.data) {
			b = f.data[f.addr]
		}
		f.addr++
		return b
	case fwStreamID:
		ids := [3]byte{0x20, 0x40, 0x12} // representative manufacturer/device/capacity bytes
		b := ids[f.idIndex%3]
		f.idIndex++
		return b
	default:
		return 0xFF
	}
}

// Bytes exposes the underlying image, e.g. for re-parsing via
// internal/firmware after a write.
func (f *Firmware) Bytes() []byte { return f.data }
