package spi

import (
	"testing"

	"github.com/intuitionamiga/ndscore/internal/irqctl"
	"github.com/intuitionamiga/ndscore/internal/rtc"
	"github.com/intuitionamiga/ndscore/internal/sched"
)

func newTestBus() (*Bus, *Touchscreen, *PowerManagement, *rtc.Clock) {
	fw := NewFirmware([]byte{0xAA, 0xBB, 0xCC, 0xDD})
	touch := NewTouchscreen()
	power := NewPowerManagement()
	clock := rtc.New(sched.New(), irqctl.New())
	bus := New(power, fw, touch, clock)
	return bus, touch, power, clock
}

func TestFirmwareReadStreamsBytesFromAddress(t *testing.T) {
	bus, _, _, _ := newTestBus()
	bus.SelectDevice(DeviceFirmware)
	bus.BeginTransaction()
	bus.Transfer(0x03) // READ
	bus.Transfer(0x00)
	bus.Transfer(0x00)
	bus.Transfer(0x02) // address 2
	got := bus.Transfer(0)
	bus.EndTransaction()
	if got != 0xCC {
		t.Fatalf("firmware read at addr 2 = %#02x, want 0xCC", got)
	}
}

func TestDeviceSelectIsolatesTransactionsFromOtherPeripherals(t *testing.T) {
	bus, touch, _, _ := newTestBus()
	touch.Touch(100, 200)

	bus.SelectDevice(DeviceFirmware)
	bus.BeginTransaction()
	bus.Transfer(0x9F) // firmware RDID
	id := bus.Transfer(0)
	bus.EndTransaction()

	if id == 0 {
		t.Fatalf("expected a nonzero firmware ID byte")
	}
	// The touchscreen must not have observed any of these bytes.
	bus.SelectDevice(DeviceTouchscreen)
	bus.BeginTransaction()
	bus.Transfer(byte(chanX) << 4)
	hi := bus.Transfer(0)
	lo := bus.Transfer(0)
	bus.EndTransaction()
	sample := uint16(hi)<<5 | uint16(lo)>>3
	if sample != 100 {
		t.Fatalf("touch X sample = %d, want 100 (untouched by the firmware transaction)", sample)
	}
}

func TestTouchReleaseZeroesSamples(t *testing.T) {
	bus, touch, _, _ := newTestBus()
	touch.Touch(300, 400)
	touch.Release()

	bus.SelectDevice(DeviceTouchscreen)
	bus.BeginTransaction()
	bus.Transfer(byte(chanY) << 4)
	hi := bus.Transfer(0)
	lo := bus.Transfer(0)
	bus.EndTransaction()

	sample := uint16(hi)<<5 | uint16(lo)>>3
	if sample != 0 {
		t.Fatalf("Y sample after release = %d, want 0", sample)
	}
}

func TestPowerManagementRegisterRoundTrips(t *testing.T) {
	bus, _, _, _ := newTestBus()
	bus.SelectDevice(DevicePowerManagement)

	bus.BeginTransaction()
	bus.Transfer(RegBacklight) // write select
	bus.Transfer(0x03)
	bus.EndTransaction()

	bus.BeginTransaction()
	bus.Transfer(RegBacklight | 0x80) // read select
	got := bus.Transfer(0)
	bus.EndTransaction()

	if got != 0x03 {
		t.Fatalf("backlight register = %#02x, want 0x03", got)
	}
}

func TestRTCDateTimeStreamMatchesSeededClock(t *testing.T) {
	bus, _, _, clock := newTestBus()
	clock.Seed(2026, 8, 1, 6, 12, 30, 45)

	bus.SelectDevice(DeviceRTC)
	bus.BeginTransaction()
	bus.Transfer(0x62)
	var got [7]byte
	for i := range got {
		got[i] = bus.Transfer(0)
	}
	bus.EndTransaction()

	want := clock.Registers()
	if got[0] != want.Year || got[4] != want.Hour || got[6] != want.Second {
		t.Fatalf("RTC stream = %+v, want year=%#02x hour=%#02x sec=%#02x", got, want.Year, want.Hour, want.Second)
	}
}

func TestTransferOutsideTransactionReadsIdleLine(t *testing.T) {
	bus, _, _, _ := newTestBus()
	if got := bus.Transfer(0x03); got != 0xFF {
		t.Fatalf("Transfer without BeginTransaction = %#02x, want 0xFF", got)
	}
}
