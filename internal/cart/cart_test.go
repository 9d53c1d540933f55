package cart

import (
	"testing"

	"github.com/intuitionamiga/ndscore/internal/irqctl"
	"github.com/intuitionamiga/ndscore/internal/romfile"
	"github.com/intuitionamiga/ndscore/internal/sched"
)

func buildTestROM(t *testing.T) *romfile.Image {
	t.Helper()
	data := make([]byte, 0x1000)
	copy(data[0x00:0x0C], "TESTGAME")
	copy(data[0x0C:0x10], "TEST")
	crc := romfile.CRC16(data[:0x15E])
	data[0x15E] = byte(crc)
	data[0x15F] = byte(crc >> 8)
	img, err := romfile.LoadBytes(data)
	if err != nil {
		t.Fatalf("LoadBytes: %v", err)
	}
	return img
}

// TestTransparentReadRoundTripsROMBytes covers the cart command FSM's
// round-trip property: a transparent read at address A followed by
// streaming out its length must reproduce exactly the ROM bytes at A,
// word for word.
func TestTransparentReadRoundTripsROMBytes(t *testing.T) {
	rom := buildTestROM(t)
	sc := sched.New()
	irq := irqctl.New()
	ci := New(rom, nil, sc, irq)

	ci.StartCommand(0xB7, 0x400)
	want := rom.ReadAt(0x400, blockLen)

	for i := 0; i < len(want); i += 4 {
		got := ci.ReadDataWord()
		for b := 0; b < 4 && i+b < len(want); b++ {
			gotByte := byte(got >> (8 * b))
			if gotByte != want[i+b] {
				t.Fatalf("byte %d: got %#02x, want %#02x", i+b, gotByte, want[i+b])
			}
		}
	}
}

func TestHeaderCommandReturnsParsedGameCode(t *testing.T) {
	rom := buildTestROM(t)
	sc := sched.New()
	irq := irqctl.New()
	ci := New(rom, nil, sc, irq)

	ci.StartCommand(0x00, 0)
	var header []byte
	for i := 0; i < romfile.HeaderSize; i += 4 {
		w := ci.ReadDataWord()
		header = append(header, byte(w), byte(w>>8), byte(w>>16), byte(w>>24))
	}
	if string(header[0x0C:0x10]) != "TEST" {
		t.Fatalf("header game code = %q, want TEST", header[0x0C:0x10])
	}
}

func TestTransferCompletionRaisesCartIRQAfterDelay(t *testing.T) {
	rom := buildTestROM(t)
	sc := sched.New()
	irq := irqctl.New()
	irq.SetIE(uint32(irqctl.CartDataReady1))
	irq.SetIME(true)
	ci := New(rom, nil, sc, irq)

	ci.StartCommand(0x90, 0)
	if irq.Pending() {
		t.Fatalf("IRQ fired before the transfer's scheduled completion")
	}
	deadline, ok := sc.NextDeadline()
	if !ok {
		t.Fatalf("no completion event scheduled")
	}
	sc.RunUntil(deadline)
	if !irq.Pending() {
		t.Fatalf("expected cart-data-ready IRQ after transfer completion")
	}
}

func TestReadPastTransferEndZeroPads(t *testing.T) {
	rom := buildTestROM(t)
	sc := sched.New()
	irq := irqctl.New()
	ci := New(rom, nil, sc, irq)

	ci.StartCommand(0x00, 0) // romfile.HeaderSize bytes queued
	for i := 0; i < romfile.HeaderSize/4; i++ {
		ci.ReadDataWord()
	}
	if w := ci.ReadDataWord(); w != 0 {
		t.Fatalf("read past transfer end = %#08x, want 0", w)
	}
}

func TestResetClearsKeyScheduleAndPendingTransfer(t *testing.T) {
	rom := buildTestROM(t)
	sc := sched.New()
	irq := irqctl.New()
	ci := New(rom, nil, sc, irq)

	ci.StartCommand(0xB7, 0)
	ci.Reset()
	if ci.KeyEngaged() {
		t.Fatalf("KeyEngaged true after Reset")
	}
	if w := ci.ReadDataWord(); w != 0 {
		t.Fatalf("pending transfer survived Reset: got %#08x", w)
	}
}
