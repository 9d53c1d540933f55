package spu

// channelState is one channel's register file plus the runtime playback
// state needed to advance it: current byte position within its sample
// region, the ADPCM decoder's running predictor, and the PSG/noise phase
// accumulators. Mirrors the register-plus-runtime split
// _examples/IntuitionAmiga-IntuitionEngine/audio_chip.go's Channel uses
// (hot playback fields separate from configuration fields), without that
// file's envelope/sweep/sync state, none of which the DS hardware channel
// has.
type channelState struct {
	regs ChannelRegs

	samplePos  uint32 // samples played since SAD (PCM) or since the ADPCM header
	totalLen   uint32 // region length in samples, derived from LEN at start()
	phaseAccum uint32 // carries fractional mix-tick/sample-period remainder across ticks

	adpcm   adpcmState
	psgStep uint32 // 0-7, current duty-cycle step (PSG channels)
	noiseSR uint16 // linear-feedback shift register state (noise channels)

	lastRaw int32 // most recent generated sample, pre-volume/pan, for capture feed
}

func newChannelState() channelState {
	return channelState{noiseSR: 0x7FFF}
}

// start (re)initializes playback from the channel's current register
// file: SAD/PNT define where playback (and looping) begins, LEN how long
// the non-looped region is.
func (c *channelState) start() {
	c.samplePos = 0
	c.phaseAccum = 0
	c.psgStep = 0
	c.noiseSR = 0x7FFF
	switch c.regs.Format {
	case FormatPCM8:
		c.totalLen = (uint32(c.regs.PNT) + c.regs.LEN) * 4
	case FormatPCM16:
		c.totalLen = (uint32(c.regs.PNT) + c.regs.LEN) * 2
	case FormatADPCM:
		c.totalLen = (uint32(c.regs.PNT)+c.regs.LEN)*8 - 7 // minus the 4-byte header's implicit first sample slot accounting
		c.adpcm = adpcmState{}                             // seeded from SAD's header lazily, on the first generateOne call
	case FormatPSG:
		c.totalLen = 0 // free-running, no region length
	}
}

// loopStartSample returns the sample index PNT corresponds to, in the
// channel's native sample units.
func (c *channelState) loopStartSample() uint32 {
	switch c.regs.Format {
	case FormatPCM8:
		return uint32(c.regs.PNT) * 4
	case FormatPCM16:
		return uint32(c.regs.PNT) * 2
	case FormatADPCM:
		return uint32(c.regs.PNT) * 8
	default:
		return 0
	}
}

// adpcmLoopNibble converts PNT's loop point (in samples, sample 0 being the
// header's own predictor rather than a decoded nibble) into a nibble-stream
// index, guarding against underflow when PNT is 0.
func (c *channelState) adpcmLoopNibble() uint32 {
	s := c.loopStartSample()
	if s == 0 {
		return 0
	}
	return s - 1
}

// periodCycles is this channel's per-sample period, in the same raw-cycle
// units internal/timer's overflow math uses: 65536-TMR.
func (c *channelState) periodCycles() uint32 {
	p := uint32(0x10000) - uint32(c.regs.TMR)
	if p == 0 {
		p = 1
	}
	return p
}

// advance accounts for ticks worth of elapsed time (normally
// mixTickPeriodCycles) against a persistent phase accumulator, generating
// exactly as many native-rate samples as the channel's own period implies -
// zero on a tick if its period is longer than the elapsed time, more than
// one if shorter. This is the same carry-the-remainder technique
// internal/timer's currentValue uses to reconstruct state between events
// without a per-cycle callback, applied here to decouple each channel's
// native sample rate from the fixed master mix rate.
func (c *channelState) advance(ticks uint32, mem MemReader) {
	period := c.periodCycles()
	c.phaseAccum += ticks
	for c.phaseAccum >= period {
		c.phaseAccum -= period
		c.generateOne(mem)
		if !c.regs.Enabled {
			c.phaseAccum = 0
			return
		}
	}
}

// generateOne produces exactly one native-rate sample and advances the
// channel's playback position, applying loop/stop semantics at the region
// boundary.
func (c *channelState) generateOne(mem MemReader) {
	switch c.regs.Format {
	case FormatPCM8:
		b := mem.Read8(c.regs.SAD + c.samplePos)
		c.lastRaw = int32(int8(b)) << 8
	case FormatPCM16:
		off := c.regs.SAD + c.samplePos*2
		lo := uint16(mem.Read8(off))
		hi := uint16(mem.Read8(off + 1))
		c.lastRaw = int32(int16(lo | hi<<8))
	case FormatADPCM:
		if c.adpcm.mem == nil {
			c.adpcm = newADPCMState(c.regs.SAD, mem, c.adpcmLoopNibble())
		}
		c.lastRaw = int32(c.adpcm.decodeNext(mem))
	case FormatPSG:
		c.lastRaw = c.generatePSGOrNoise()
	}

	c.samplePos++
	if c.regs.Format == FormatPSG {
		return // free-running, no region/loop bookkeeping
	}
	if c.samplePos >= c.totalLen {
		switch c.regs.Repeat {
		case RepeatLoop:
			c.samplePos = c.loopStartSample()
			if c.regs.Format == FormatADPCM {
				c.adpcm.rewindToLoop()
			}
		case RepeatOneShot, RepeatManual:
			c.regs.Enabled = false
		}
	}
}

// generatePSGOrNoise implements channels 8-13's duty-cycle square wave and
// channels 14-15's white-noise generator, the hardware's fixed split of
// which channel slots can run in PSG/noise mode.
func (c *channelState) generatePSGOrNoise() int32 {
	if c.regs.Duty == dutyNoiseSentinel {
		bit := c.noiseSR & 1
		c.noiseSR >>= 1
		if bit != 0 {
			c.noiseSR ^= 0x6000
		}
		if bit != 0 {
			return 0x7FFF
		}
		return -0x8000
	}

	c.psgStep = (c.psgStep + 1) % 8
	dutyWidths := [8]uint32{1, 2, 3, 4, 5, 6, 7, 1} // 12.5% through 87.5%, matching the 3-bit DUTY field's 8 widths
	if c.psgStep < dutyWidths[c.regs.Duty%8] {
		return 0x7FFF
	}
	return -0x8000
}

// dutyNoiseSentinel marks a PSG-format channel as a noise channel
// (channels 14-15); the core sets Duty to this value when wiring those two
// channel slots, since the DS has no separate "noise format" bit - noise
// is simply what channels 14/15 produce when given the PSG format.
const dutyNoiseSentinel = 0xFF

// panMix applies this channel's volume and pan to its last-generated raw
// sample, producing a left/right contribution to the mix: volume is 0-127
// plus a 2-bit divider, pan is 0-127 with 64 as center.
func (c *channelState) panMix() (left, right int32) {
	vol := int32(c.regs.Volume)
	scaled := (c.lastRaw * vol) >> 7
	scaled >>= volumeDivShift[c.regs.VolumeDiv]

	pan := int32(c.regs.Pan)
	left = (scaled * (128 - pan)) >> 7
	right = (scaled * pan) >> 7
	return left, right
}
