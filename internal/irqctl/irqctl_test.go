package irqctl

import "testing"

func TestPendingRequiresEnableStatusAndMaster(t *testing.T) {
	c := New()
	c.Raise(VBlank)
	if c.Pending() {
		t.Fatalf("Pending() true with IE=0")
	}
	c.SetIE(uint32(VBlank))
	if c.Pending() {
		t.Fatalf("Pending() true with IME=false")
	}
	c.SetIME(true)
	if !c.Pending() {
		t.Fatalf("Pending() false, want true with IE, IF and IME all set")
	}
}

func TestWakesHaltIgnoresIME(t *testing.T) {
	c := New()
	c.SetIE(uint32(Timer0))
	c.Raise(Timer0)
	c.SetIME(false)
	if !c.WakesHalt() {
		t.Fatalf("WakesHalt() false, want true regardless of IME")
	}
}

func TestWriteIFClearsOnlySetBits(t *testing.T) {
	c := New()
	c.Raise(VBlank)
	c.Raise(HBlank)
	c.WriteIF(uint32(VBlank))
	if c.IF()&uint32(VBlank) != 0 {
		t.Fatalf("VBlank bit survived write-1-to-clear")
	}
	if c.IF()&uint32(HBlank) == 0 {
		t.Fatalf("HBlank bit incorrectly cleared")
	}
}
