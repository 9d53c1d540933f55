package spi

// Touchscreen models the resistive touch panel's ADC as an ADS7846-style
// SPI device: a command byte selects a channel (X, Y, and the two
// pressure channels Z1/Z2), and the next two transfers shift out a
// 12-bit sample split across the reply bytes. The exact command encoding
// below is representative, not a byte-exact ADS7846 transcription (no
// corpus file specifies one); what matters for the host's touch(x,y)/
// release_touch() contract is that a touch updates the sampled channels
// and a release zeroes them.
type Touchscreen struct {
	x, y, z1, z2 uint16
	touching     bool

	state   touchState
	channel int
	loByte  byte
}

type touchState int

const (
	touchIdle touchState = iota
	touchHiByte
	touchLoByte
)

const (
	chanY = iota
	chanX
	chanZ1
	chanZ2
)

// NewTouchscreen returns a Touchscreen with no contact (an idle panel
// reads all-zero samples, matching release_touch()'s initial state).
func NewTouchscreen() *Touchscreen { return &Touchscreen{} }

// Touch records a press at panel coordinates (x, y), both 0-4095 (12-bit
// ADC range), with representative pressure channel values.
func (t *Touchscreen) Touch(x, y uint16) {
	t.x, t.y = x&0xFFF, y&0xFFF
	t.z1, t.z2 = 0x200, 0xE00 // representative pressure reading for a firm touch
	t.touching = true
}

// Release clears contact; all channels read 0 until the next Touch.
func (t *Touchscreen) Release() {
	t.x, t.y, t.z1, t.z2 = 0, 0, 0, 0
	t.touching = false
}

// Touching reports whether a press is currently recorded.
func (t *Touchscreen) Touching() bool { return t.touching }

func (t *Touchscreen) Select() { t.state = touchIdle }

func (t *Touchscreen) Transfer(out byte) byte {
	switch t.state {
	case touchIdle:
		t.channel = int(out>>4) & 0x7
		t.state = touchHiByte
		return 0xFF
	case touchHiByte:
		sample := t.channelValue()
		t.loByte = byte(sample << 3)
		t.state = touchLoByte
		return byte(sample >> 5)
	case touchLoByte:
		t.state = touchIdle
		return t.loByte
	default:
		return 0xFF
	}
}

func (t *Touchscreen) channelValue() uint16 {
	switch t.channel {
	case chanX:
		return t.x
	case chanY:
		return t.y
	case chanZ1:
		return t.z1
	case chanZ2:
		return t.z2
	default:
		return 0
	}
}
