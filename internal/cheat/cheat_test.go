package cheat

import "testing"

type fakeBus struct{ m map[uint32]uint32 }

func newFakeBus() *fakeBus { return &fakeBus{m: make(map[uint32]uint32)} }

func (b *fakeBus) Read32(addr uint32) uint32     { return b.m[addr] }
func (b *fakeBus) Write32(addr uint32, v uint32) { b.m[addr] = v }
func (b *fakeBus) Write16(addr uint32, v uint16) { b.m[addr] = uint32(v) }
func (b *fakeBus) Write8(addr uint32, v uint8)   { b.m[addr] = uint32(v) }

func word(op Op, payload uint32) uint32 { return uint32(op)<<24 | payload&0x00FFFFFF }

func TestWrite32AppliesDirectly(t *testing.T) {
	bus := newFakeBus()
	e := New()
	e.Add(Code{Enabled: true, Words: []uint32{word(OpWrite32, 0x020100), 0xDEADBEEF}})
	e.Apply(bus)
	if bus.m[0x020100] != 0xDEADBEEF {
		t.Fatalf("Write32 not applied")
	}
}

func TestDisabledCodeDoesNothing(t *testing.T) {
	bus := newFakeBus()
	e := New()
	e.Add(Code{Enabled: false, Words: []uint32{word(OpWrite32, 0x020100), 0xDEADBEEF}})
	e.Apply(bus)
	if _, ok := bus.m[0x020100]; ok {
		t.Fatalf("disabled code wrote to the bus")
	}
}

func TestIfEqGateSkipsBlockWhenFalse(t *testing.T) {
	bus := newFakeBus()
	bus.m[0x020000] = 1 // condition will be false (want 99)
	e := New()
	e.Add(Code{Enabled: true, Words: []uint32{
		word(OpIfEq32, 0x020000), 99,
		word(OpWrite32, 0x020004), 0x11111111,
		word(OpEnd, 0),
	}})
	e.Apply(bus)
	if _, ok := bus.m[0x020004]; ok {
		t.Fatalf("write inside false If block should not have executed")
	}
}

func TestIfEqGateRunsBlockWhenTrue(t *testing.T) {
	bus := newFakeBus()
	bus.m[0x020000] = 99
	e := New()
	e.Add(Code{Enabled: true, Words: []uint32{
		word(OpIfEq32, 0x020000), 99,
		word(OpWrite32, 0x020004), 0x11111111,
		word(OpEnd, 0),
	}})
	e.Apply(bus)
	if bus.m[0x020004] != 0x11111111 {
		t.Fatalf("write inside true If block did not execute")
	}
}

func TestNestedIfBlocks(t *testing.T) {
	bus := newFakeBus()
	bus.m[0x0200] = 1
	bus.m[0x0204] = 2
	e := New()
	e.Add(Code{Enabled: true, Words: []uint32{
		word(OpIfEq32, 0x0200), 1,
		word(OpIfEq32, 0x0204), 2,
		word(OpWrite32, 0x0208), 0x42,
		word(OpEnd, 0),
		word(OpEnd, 0),
	}})
	e.Apply(bus)
	if bus.m[0x0208] != 0x42 {
		t.Fatalf("nested If blocks did not both pass through to the inner write")
	}
}

func TestLoopRepeatsBodyAndAddToAddressAdvances(t *testing.T) {
	bus := newFakeBus()
	e := New()
	e.Add(Code{Enabled: true, Words: []uint32{
		word(OpLoop, 0), 3,
		word(OpWrite32, 0x1000), 0xAA,
		word(OpAddToAddress, 4),
		word(OpEnd, 0),
	}})
	e.Apply(bus)
	if bus.m[0x1000] != 0xAA || bus.m[0x1004] != 0xAA || bus.m[0x1008] != 0xAA {
		t.Fatalf("loop with add-to-address did not write at 3 advancing addresses, got %v", bus.m)
	}
}

func TestModuleEndStopsExecution(t *testing.T) {
	bus := newFakeBus()
	e := New()
	e.Add(Code{Enabled: true, Words: []uint32{
		word(OpModuleEnd, 0),
		word(OpWrite32, 0x2000), 0x99,
	}})
	e.Apply(bus)
	if _, ok := bus.m[0x2000]; ok {
		t.Fatalf("write after ModuleEnd should not execute")
	}
}

func TestPatchWritesRawBytes(t *testing.T) {
	bus := newFakeBus()
	e := New()
	e.Add(Code{Enabled: true, Words: []uint32{
		word(OpPatch, 5),
		0x3000,
		0x44332211, 0x000000FF,
	}})
	e.Apply(bus)
	want := []byte{0x11, 0x22, 0x33, 0x44, 0xFF}
	for i, w := range want {
		if bus.m[0x3000+uint32(i)] != uint32(w) {
			t.Fatalf("patch byte %d = %#x, want %#x", i, bus.m[0x3000+uint32(i)], w)
		}
	}
}
