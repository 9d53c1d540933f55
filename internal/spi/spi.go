// Package spi implements the shared SPI bus that multiplexes the RTC,
// firmware EEPROM, touch-screen ADC, and power-management devices behind
// one SPICNT-selected chip-select line, generalizing the cartridge
// command FSM's single-peripheral shape to more than one SPI device.
//
// Grounded on original_source/SPI.cpp's single-controller, device-select
// multiplexing shape, and on _examples/IntuitionAmiga-IntuitionEngine/
// machine_bus.go's IOHandler pattern: each device here implements the same
// byte-in/byte-out Transfer shape a bus register block would, rather than
// exposing its internals directly to the Bus.
package spi

import "github.com/intuitionamiga/ndscore/internal/rtc"

// Device identifies which peripheral SPICNT's device-select bits have
// connected the two-bit-wide shared bus to.
type Device uint8

const (
	DevicePowerManagement Device = iota
	DeviceFirmware
	DeviceTouchscreen
	DeviceRTC
)

// Peripheral is one device hanging off the shared bus: Select resets its
// internal command-parse state at the start of a transaction (chip select
// falling edge), Transfer shifts one byte in and one byte out.
type Peripheral interface {
	Select()
	Transfer(out byte) (in byte)
}

// Bus is the shared SPI controller. Only the selected device's Transfer is
// ever driven; the others never observe bytes meant for their peers,
// matching real hardware's per-device chip-select behavior.
type Bus struct {
	selected   Device
	devices    [4]Peripheral
	chipSelect bool
}

// New wires the four SPI peripherals into one bus.
func New(power *PowerManagement, firmware *Firmware, touch *Touchscreen, clock *rtc.Clock) *Bus {
	return &Bus{devices: [4]Peripheral{
		DevicePowerManagement: power,
		DeviceFirmware:        firmware,
		DeviceTouchscreen:     touch,
		DeviceRTC:             NewRTCDevice(clock),
	}}
}

// SelectDevice applies SPICNT's device-select bits. Real hardware latches
// this continuously; callers write it on every SPICNT update.
func (b *Bus) SelectDevice(d Device) { b.selected = d }

// BeginTransaction asserts chip-select, resetting the selected device's
// command-parse state - the SPI equivalent of the cartridge FSM's command
// byte starting a new sequence.
func (b *Bus) BeginTransaction() {
	b.chipSelect = true
	if d := b.devices[b.selected]; d != nil {
		d.Select()
	}
}

// EndTransaction deasserts chip-select.
func (b *Bus) EndTransaction() { b.chipSelect = false }

// Transfer shifts one byte through the currently selected device. Outside
// a transaction (chip-select not asserted) it is a no-op returning 0xFF,
// matching an idle MISO line.
func (b *Bus) Transfer(out byte) byte {
	if !b.chipSelect {
		return 0xFF
	}
	d := b.devices[b.selected]
	if d == nil {
		return 0xFF
	}
	return d.Transfer(out)
}
