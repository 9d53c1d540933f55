// Package cart implements the cartridge command state machine over the
// ROM/SPI bus: chip-ID, header-read, transparent reads, the KEY1 command
// gate, and backup-memory access.
//
// A command computes the transfer's total length up front and schedules
// one completion event; the data itself is handed out word-by-word from
// a cursor on demand rather than resumed through a coroutine, since the
// real cartridge bus has no notion of suspending mid-transfer. The
// backup-memory SPI side reuses backup.go's write-enable-latch model.
package cart

import (
	"github.com/intuitionamiga/ndscore/internal/firmware"
	"github.com/intuitionamiga/ndscore/internal/irqctl"
	"github.com/intuitionamiga/ndscore/internal/romfile"
	"github.com/intuitionamiga/ndscore/internal/sched"
)

// blockLen is the representative per-command transfer size; real
// hardware's block length is itself configurable via ROMCTRL, but a fixed
// size is enough to exercise the streaming/cursor mechanics without
// modeling every ROMCTRL block-size encoding.
const blockLen = 0x200

// cyclesPerWord models the cartridge bus's configured byte-rate
// representatively rather than cycle-exact.
const cyclesPerWord = 8

// keycodeModulo is the KEY1 key-schedule's keycode-indexing modulo; the
// real console always uses 8 here.
const keycodeModulo = 8

// Interface is one cartridge slot's command processor.
type Interface struct {
	rom    *romfile.Image
	backup *Backup
	sch    *sched.Scheduler
	irq    *irqctl.Controller

	ks *KeySchedule // nil until EngageKey1 succeeds

	pending []byte
	cursor  int
}

// New wires an Interface to its ROM image, backup memory, scheduler, and
// the interrupt controller it raises cart-data-ready on. backup may be
// nil for a cartridge with no save memory.
func New(rom *romfile.Image, backup *Backup, sch *sched.Scheduler, irq *irqctl.Controller) *Interface {
	return &Interface{rom: rom, backup: backup, sch: sch, irq: irq}
}

// EngageKey1 derives the KEY1 key schedule from the ARM7 BIOS's
// cryptographic bytes and the cartridge's game code. It is called once
// per boot when command 0x3C is issued.
func (c *Interface) EngageKey1(arm7BIOS []byte) error {
	seed, err := firmware.KEY1Seed(arm7BIOS)
	if err != nil {
		return err
	}
	ks, err := InitKeySchedule(seed, c.rom.Header.GameCodeID, 2, keycodeModulo)
	if err != nil {
		return err
	}
	c.ks = ks
	return nil
}

// KeyEngaged reports whether EngageKey1 has run.
func (c *Interface) KeyEngaged() bool { return c.ks != nil }

// StartCommand decodes an 8-byte command packet's leading opcode byte and
// queues the resulting data for streaming, covering the minimum command
// set a guest's cartridge driver needs during boot.
func (c *Interface) StartCommand(cmd byte, param uint32) {
	switch cmd {
	case 0x9F: // dummy/reset: returns all-0xFF
		c.pending = make([]byte, blockLen)
		for i := range c.pending {
			c.pending[i] = 0xFF
		}
	case 0x00: // header read
		c.pending = c.rom.ReadAt(0, romfile.HeaderSize)
	case 0x90: // chip ID
		id := []byte{0xC2, 0x00, 0x00, 0x00}
		c.pending = make([]byte, blockLen)
		for i := range c.pending {
			c.pending[i] = id[i%4]
		}
	case 0xB7: // transparent read at the given address
		c.pending = c.rom.ReadAt(param, blockLen)
	default:
		c.pending = nil
	}
	c.cursor = 0
	c.scheduleCompletion()
}

// scheduleCompletion arms a single transfer_done event sized to the
// queued data.
func (c *Interface) scheduleCompletion() {
	words := uint64((len(c.pending) + 3) / 4)
	c.sch.Schedule(sched.KindCartTransferDone, words*cyclesPerWord, 0, func(uint32) {
		c.irq.Raise(irqctl.CartDataReady1)
	})
}

// ReadDataWord pulls the next 4 bytes from the pending transfer, zero-
// padding past its end, and advances the cursor.
func (c *Interface) ReadDataWord() uint32 {
	var b [4]byte
	for i := 0; i < 4; i++ {
		if c.cursor+i < len(c.pending) {
			b[i] = c.pending[c.cursor+i]
		}
	}
	c.cursor += 4
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}

// Backup exposes the cartridge's save memory, or nil if it has none.
func (c *Interface) Backup() *Backup { return c.backup }

// Reset clears command/transfer state but keeps the loaded ROM and save
// image (reset() reboots the console, not the cartridge slot).
func (c *Interface) Reset() {
	c.ks = nil
	c.pending = nil
	c.cursor = 0
}
