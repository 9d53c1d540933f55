package spi

import "github.com/intuitionamiga/ndscore/internal/rtc"

// rtcDevice adapts internal/rtc's BCD register file to the shared SPI
// protocol: a command byte selects status (0x60 read / 0x61 write) or a
// streamed date+time read (0x62), matching the register groups the real
// DS RTC chip exposes (exact command byte values are representative - no
// corpus file specifies the wire encoding).
type rtcDevice struct {
	clock *rtc.Clock

	state cmdState
	cmd   byte
	idx   int
}

type cmdState int

const (
	rtcIdle cmdState = iota
	rtcReply
)

// NewRTCDevice wraps a rtc.Clock for SPI access.
func NewRTCDevice(clock *rtc.Clock) Peripheral {
	return &rtcDevice{clock: clock}
}

func (d *rtcDevice) Select() { d.state = rtcIdle; d.idx = 0 }

func (d *rtcDevice) Transfer(out byte) byte {
	if d.state == rtcIdle {
		d.cmd = out
		d.idx = 0
		d.state = rtcReply
		return 0xFF
	}

	switch d.cmd {
	case 0x60: // status read
		d.state = rtcIdle
		return d.clock.Registers().Status
	case 0x61: // status write
		d.clock.WriteStatus(out)
		d.state = rtcIdle
		return 0xFF
	case 0x62: // date+time stream read (year, month, day, dow, hour, min, sec)
		regs := d.clock.Registers()
		bytes := [7]byte{regs.Year, regs.Month, regs.Day, regs.DayOfWeek, regs.Hour, regs.Minute, regs.Second}
		b := bytes[d.idx]
		d.idx++
		if d.idx >= len(bytes) {
			d.state = rtcIdle
		}
		return b
	default:
		d.state = rtcIdle
		return 0xFF
	}
}
