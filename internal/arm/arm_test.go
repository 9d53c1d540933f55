package arm

import (
	"testing"

	"github.com/intuitionamiga/ndscore/internal/irqctl"
)

// flatBus is a simple linear-memory test double implementing Bus with a
// fixed per-access cost, enough to drive the interpreter deterministically.
type flatBus struct {
	mem [0x10000]byte
}

func (b *flatBus) Read8(addr uint32) (uint8, uint32)  { return b.mem[addr&0xFFFF], 1 }
func (b *flatBus) Read16(addr uint32) (uint16, uint32) {
	return uint16(b.mem[addr&0xFFFF]) | uint16(b.mem[(addr+1)&0xFFFF])<<8, 1
}
func (b *flatBus) Read32(addr uint32) (uint32, uint32) {
	lo, _ := b.Read16(addr)
	hi, _ := b.Read16(addr + 2)
	return uint32(lo) | uint32(hi)<<16, 1
}
func (b *flatBus) Write8(addr uint32, v uint8) uint32 {
	b.mem[addr&0xFFFF] = v
	return 1
}
func (b *flatBus) Write16(addr uint32, v uint16) uint32 {
	b.mem[addr&0xFFFF] = byte(v)
	b.mem[(addr+1)&0xFFFF] = byte(v >> 8)
	return 1
}
func (b *flatBus) Write32(addr uint32, v uint32) uint32 {
	b.Write16(addr, uint16(v))
	b.Write16(addr+2, uint16(v>>16))
	return 1
}

func (b *flatBus) putARM(addr uint32, instr uint32) {
	b.Write32(addr, instr)
}
func (b *flatBus) putThumb(addr uint32, instr uint16) {
	b.Write16(addr, instr)
}

func newTestCPU() (*CPU, *flatBus) {
	bus := &flatBus{}
	cpu := New(bus, irqctl.New(), nil)
	return cpu, bus
}

func TestMovImmediateSetsRegisterAndFlags(t *testing.T) {
	cpu, bus := newTestCPU()
	cpu.SetDirectBootState(0x1000)
	// MOVS R0, #0 -> 0xE3B00000
	bus.putARM(0x1000, 0xE3B00000)
	cpu.AddCycles(10)
	cpu.Run()

	if cpu.GetReg(0) != 0 {
		t.Fatalf("R0 = %#x, want 0", cpu.GetReg(0))
	}
	if !cpu.Z() {
		t.Fatalf("Z flag not set after MOVS R0, #0")
	}
}

func TestAddWithCarryOutAndOverflow(t *testing.T) {
	cpu, bus := newTestCPU()
	cpu.SetDirectBootState(0x1000)
	cpu.SetReg(1, 0xFFFFFFFF)
	cpu.SetReg(2, 1)
	// ADDS R0, R1, R2 -> 0xE0910002
	bus.putARM(0x1000, 0xE0910002)
	cpu.AddCycles(10)
	cpu.Run()

	if cpu.GetReg(0) != 0 {
		t.Fatalf("R0 = %#x, want 0", cpu.GetReg(0))
	}
	if !cpu.C() {
		t.Fatalf("expected carry out of 0xFFFFFFFF + 1")
	}
	if !cpu.Z() {
		t.Fatalf("expected zero flag")
	}
}

func TestBranchAndLinkSetsLRAndPC(t *testing.T) {
	cpu, bus := newTestCPU()
	cpu.SetDirectBootState(0x1000)
	// BL +8 (branch two instructions ahead): offset = 2 words -> 0xEB000002
	bus.putARM(0x1000, 0xEB000002)
	cpu.AddCycles(1)
	cpu.Run()

	if cpu.GetReg(14) != 0x1004 {
		t.Fatalf("LR = %#x, want 0x1004", cpu.GetReg(14))
	}
	if cpu.PC() != 0x1010 {
		t.Fatalf("PC = %#x, want 0x1010", cpu.PC())
	}
}

func TestSoftwareInterruptEntersSupervisorMode(t *testing.T) {
	cpu, bus := newTestCPU()
	cpu.SetDirectBootState(0x1000)
	// SWI #0 -> 0xEF000000
	bus.putARM(0x1000, 0xEF000000)
	cpu.AddCycles(1)
	cpu.Run()

	if Mode(cpu.CPSR()&0x1F) != ModeSVC {
		t.Fatalf("mode after SWI = %#x, want SVC", cpu.CPSR()&0x1F)
	}
	if cpu.PC() != vecSWI {
		t.Fatalf("PC after SWI = %#x, want vecSWI", cpu.PC())
	}
	if !cpu.IRQDisabled() {
		t.Fatalf("IRQ should be disabled on exception entry")
	}
}

func TestExceptionReturnRestoresCPSRAndMode(t *testing.T) {
	cpu, bus := newTestCPU()
	cpu.SetDirectBootState(0x1000)
	bus.putARM(0x1000, 0xEF000000) // SWI #0
	cpu.AddCycles(10)
	cpu.Run()

	// MOVS PC, LR -> 0xE1B0F00E, restores CPSR from SPSR_svc and returns.
	returnAddr := cpu.PC()
	bus.putARM(returnAddr, 0xE1B0F00E)
	cpu.AddCycles(10)
	cpu.Run()

	if Mode(cpu.CPSR()&0x1F) != ModeSystem {
		t.Fatalf("mode after exception return = %#x, want System (the direct-boot mode)", cpu.CPSR()&0x1F)
	}
}

func TestThumbAddImmediateSetsFlags(t *testing.T) {
	cpu, bus := newTestCPU()
	cpu.SetDirectBootState(0x2000)
	cpu.setFlag(bitT, true)
	cpu.SetReg(0, 5)
	// ADD R0, #1 (format 3, op=2, rd=0, imm=1) -> 0b00110_000_00000001 = 0x3001
	bus.putThumb(0x2000, 0x3001)
	cpu.AddCycles(10)
	cpu.Run()

	if cpu.GetReg(0) != 6 {
		t.Fatalf("R0 = %d, want 6", cpu.GetReg(0))
	}
}

func TestThumbUnconditionalBranch(t *testing.T) {
	cpu, bus := newTestCPU()
	cpu.SetDirectBootState(0x2000)
	cpu.setFlag(bitT, true)
	// B +4 (one instruction ahead, offset in halfwords=2) -> 0b11100_00000000010 = 0xE002
	bus.putThumb(0x2000, 0xE002)
	cpu.AddCycles(1)
	cpu.Run()

	if cpu.PC() != 0x2008 {
		t.Fatalf("PC = %#x, want 0x2008", cpu.PC())
	}
}

func TestHaltWakesOnPendingIRQ(t *testing.T) {
	cpu, _ := newTestCPU()
	irq := irqctl.New()
	cpu.irq = irq
	cpu.Halt()
	cpu.AddCycles(10)
	cpu.Run()
	if !cpu.Halted() {
		t.Fatalf("expected core to remain halted with no pending IRQ")
	}

	irq.SetIE(uint32(irqctl.VBlank))
	irq.Raise(irqctl.VBlank)
	cpu.Run()
	if cpu.Halted() {
		t.Fatalf("expected core to wake on a pending IRQ line")
	}
}

func TestCP15TCMRegisterRoundTrips(t *testing.T) {
	cp15 := NewCP15()
	cp15.MCR(9, 1, 1, 0x02000000|0x0C) // ITCM base 0x02000000, size field
	if cp15.ITCMBase != 0x02000000 {
		t.Fatalf("ITCM base = %#x, want 0x02000000", cp15.ITCMBase)
	}
	if !cp15.InITCM(0x02000100) {
		t.Fatalf("expected 0x02000100 to fall within the configured ITCM window")
	}
}
