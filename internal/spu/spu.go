// Package spu implements the 16-channel audio mixer: one shared register
// file of per-channel SAD/TMR/PNT/LEN/volume/pan controls,
// PCM8/PCM16/IMA-ADPCM/PSG/noise sample generation per channel, a master
// mixer, and two capture units.
//
// Grounded on _examples/IntuitionAmiga-IntuitionEngine/audio_chip.go's
// SoundChip: a fixed array of Channel structs each independently advanced
// and enveloped, mixed into one output stage, with register writes taking
// a lock (a sync.RWMutex there, with sample generation reading under
// RLock; here a plain sync.Mutex, which mixTick also holds while it
// generates samples). The DS's channel set is shaped
// differently (format-selectable PCM/ADPCM/PSG player per channel rather
// than four fixed oscillator types, no software ADSR envelope - the
// hardware applies none), so the per-channel *generation* logic is written
// from the hardware's own behavior rather than adapted from SoundChip's
// oscillator math; what carries over is the architecture: a
// register-write entry point guarded by a lock, scheduler-driven sample
// advance per channel (mirrors internal/timer's "reconstruct from elapsed
// scheduler time" posture rather than a per-host-sample callback), and a
// pull-model output boundary where the audio thread pulls PCM frames from
// a lock-free ring buffer filled by the emulation thread's SPU advance.
package spu

import (
	"sync"

	"github.com/intuitionamiga/ndscore/internal/sched"
)

// NumChannels is the DS SPU's channel count.
const NumChannels = 16

// armClockHz is the ARM7 bus clock every per-channel sample timer period is
// expressed in, the same raw-cycle convention internal/timer's overflow
// math uses (period_cycles = 65536-reload, no prescaler on SPU channels).
const armClockHz = 33513982

// OutputSampleRateHz is the fixed rate the master mixer samples all 16
// channels' current output and pushes one stereo frame to the ring buffer.
// Real hardware mixes continuously (each channel's DAC free-runs at its own
// rate); sampling the mix at a fixed host-facing rate is the representative
// simplification documented in DESIGN.md.
const OutputSampleRateHz = 32768

const mixTickPeriodCycles = armClockHz / OutputSampleRateHz

// Format selects a channel's sample source, per the SPU channel control
// register's format field.
type Format uint8

const (
	FormatPCM8 Format = iota
	FormatPCM16
	FormatADPCM
	FormatPSG // channels 8-13 only: duty-cycle wave; channels 14-15: noise
)

// RepeatMode selects what a channel does when it reaches the end of its
// sample region.
type RepeatMode uint8

const (
	RepeatManual RepeatMode = iota // stop and hold, don't loop
	RepeatLoop
	RepeatOneShot
)

// ChannelRegs mirrors one channel's SOUNDxCNT/SAD/TMR/PNT/LEN register
// group.
type ChannelRegs struct {
	Enabled    bool
	Format     Format
	Repeat     RepeatMode
	Volume     uint8 // 0-127
	VolumeDiv  uint8 // 0-3: output >>= {0,1,2,4}[VolumeDiv]
	Pan        uint8 // 0-127, 64 = center
	Duty       uint8 // PSG channels only: 0-7 selects waveform duty width
	SAD        uint32
	TMR        uint16 // sample period = 65536-TMR cycles
	PNT        uint16 // loop start, in 4-byte words from SAD
	LEN        uint32 // region length, in 4-byte words, counted from PNT
}

var volumeDivShift = [4]uint{0, 1, 2, 4}

// MemReader is the minimal read surface a channel needs to pull PCM/ADPCM
// sample bytes from main memory; internal/bus's View satisfies it directly,
// the same minimal-interface pattern internal/dma's Bus uses.
type MemReader interface {
	Read8(addr uint32) uint8
}

// Mem extends MemReader with the write access the capture units need to
// land captured samples back into memory; internal/bus's View satisfies
// this too.
type Mem interface {
	MemReader
	Write8(addr uint32, val uint8)
}

// MasterRegs mirrors SOUNDCNT/SOUNDBIAS.
type MasterRegs struct {
	Enabled      bool
	MasterVolume uint8 // 0-127
	Bias         uint16
}

// SPU owns all 16 channels, the master mixer stage, and the two capture
// units, plus the host-facing output ring buffer.
type SPU struct {
	mu sync.Mutex

	mem Mem
	ch  [NumChannels]channelState

	master MasterRegs
	cap    [2]captureState

	sch *sched.Scheduler
	out *RingBuffer
}

// New constructs an SPU bound to the given memory reader, scheduler, and
// output ring buffer capacity (in stereo frames), and arms the recurring
// master mix tick immediately - the hardware mixer is always running,
// regardless of whether any channel is enabled. Pass a nil scheduler in
// tests that only exercise channel/mixing math directly.
func New(mem Mem, sch *sched.Scheduler, ringCapacity int) *SPU {
	s := &SPU{mem: mem, sch: sch, out: NewRingBuffer(ringCapacity)}
	for i := range s.ch {
		s.ch[i] = newChannelState()
	}
	if sch != nil {
		s.armMixTick()
	}
	return s
}

// Output returns the ring buffer the host audio thread pulls mixed stereo
// frames from.
func (s *SPU) Output() *RingBuffer { return s.out }

// WriteChannel replaces channel i's register file. A write with Enabled
// true (re)starts playback from SAD/PNT, matching the hardware's
// channel-start semantics; writing Enabled false stops it immediately.
func (s *SPU) WriteChannel(i int, r ChannelRegs) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := &s.ch[i]
	wasEnabled := c.regs.Enabled
	c.regs = r
	if r.Enabled && !wasEnabled {
		c.start()
	} else if !r.Enabled {
		c.regs.Enabled = false
	}
}

// Channel returns a copy of channel i's current register state, for MMIO
// reads.
func (s *SPU) Channel(i int) ChannelRegs {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ch[i].regs
}

// WriteMaster applies new SOUNDCNT/SOUNDBIAS settings.
func (s *SPU) WriteMaster(r MasterRegs) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.master = r
}

// Master returns the current SOUNDCNT/SOUNDBIAS settings.
func (s *SPU) Master() MasterRegs {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.master
}

// Reset silences every channel, both capture units, and clears the output
// ring buffer.
func (s *SPU) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.ch {
		s.ch[i] = newChannelState()
	}
	s.cap = [2]captureState{}
	s.master = MasterRegs{}
	s.out.Reset()
}

func (s *SPU) armMixTick() {
	s.sch.Schedule(sched.KindSPUMixTick, mixTickPeriodCycles, 0, func(uint32) {
		s.mixTick()
		s.armMixTick()
	})
}

// mixTick advances every enabled channel by one mix period, mixes their
// current output into a stereo frame as the master-mix step, and pushes
// it to the output ring buffer, overwriting the oldest unread frame if the
// host hasn't drained the ring - the emulation thread never blocks here; the
// host-facing boundary is responsible for keeping up.
func (s *SPU) mixTick() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.master.Enabled {
		s.out.Push(0, 0)
		return
	}

	var left, right int32
	for i := range s.ch {
		c := &s.ch[i]
		if !c.regs.Enabled {
			continue
		}
		c.advance(mixTickPeriodCycles, s.mem)
		l, r := c.panMix()
		left += l
		right += r
	}

	mv := int32(s.master.MasterVolume)
	left = (left * mv) >> 7
	right = (right * mv) >> 7
	s.processCaptures(left)
	s.out.Push(clampSample(left), clampSample(right))
}

func clampSample(v int32) int16 {
	if v > 32767 {
		return 32767
	}
	if v < -32768 {
		return -32768
	}
	return int16(v)
}
