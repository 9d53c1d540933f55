package spu

// adpcmState is one channel's IMA-ADPCM decoder: the running predictor and
// step-table index. A sample stream is a 4-byte header (16-bit initial
// PCM sample, 16-bit step index) followed by a 4-bit nibble per sample,
// two nibbles per byte. A second predictor/index pair
// is latched the first time playback passes the loop point, so RepeatLoop
// can rewind the decoder exactly rather than replaying from the header (the
// IMA algorithm is stateful: decoding from the header on every loop would
// reintroduce the pre-loop transient instead of continuing it).
type adpcmState struct {
	mem MemReader
	sad uint32

	predictor int32
	index     int32
	nibblePos uint32 // nibble index into the stream following the 4-byte header

	loopNibble    uint32
	loopPredictor int32
	loopIndex     int32
	loopLatched   bool
}

// adpcmStepTable is the standard IMA-ADPCM step size table (89 entries).
var adpcmStepTable = [89]int32{
	7, 8, 9, 10, 11, 12, 13, 14, 16, 17, 19, 21, 23, 25, 28, 31,
	34, 37, 41, 45, 50, 55, 60, 66, 73, 80, 88, 97, 107, 118, 130, 143,
	157, 173, 190, 209, 230, 253, 279, 307, 337, 371, 408, 449, 494, 544, 598, 658,
	724, 796, 876, 963, 1060, 1166, 1282, 1411, 1552, 1707, 1878, 2066, 2272, 2499, 2749, 3024,
	3327, 3660, 4026, 4428, 4871, 5358, 5894, 6484, 7132, 7845, 8630, 9493, 10442, 11487, 12635, 13899,
	15289, 16818, 18500, 20350, 22385, 24623, 27086, 29794, 32767,
}

// adpcmIndexTable adjusts the step-table index by each 4-bit code's
// magnitude bits (bits 0-2); the sign bit (bit 3) only affects the output
// sign, not the index step.
var adpcmIndexTable = [8]int32{-1, -1, -1, -1, 2, 4, 6, 8}

func clampIndex(i int32) int32 {
	if i < 0 {
		return 0
	}
	if i > 88 {
		return 88
	}
	return i
}

func clampPredictor(p int32) int32 {
	if p > 32767 {
		return 32767
	}
	if p < -32768 {
		return -32768
	}
	return p
}

// newADPCMState reads the 4-byte header at sad and seeds the decoder. The
// loop point, in nibbles, is derived and latched automatically the first
// time nibblePos reaches it.
func newADPCMState(sad uint32, mem MemReader, loopNibble uint32) adpcmState {
	lo := uint16(mem.Read8(sad))
	hi := uint16(mem.Read8(sad + 1))
	predictor := int32(int16(lo | hi<<8))
	idxLo := uint16(mem.Read8(sad + 2))
	idxHi := uint16(mem.Read8(sad + 3))
	index := clampIndex(int32(int16(idxLo|idxHi<<8)) & 0x7F)
	return adpcmState{mem: mem, sad: sad, predictor: predictor, index: index, loopNibble: loopNibble}
}

// decodeNext decodes the next 4-bit nibble into a 16-bit PCM sample.
func (a *adpcmState) decodeNext(mem MemReader) int16 {
	if !a.loopLatched && a.nibblePos == a.loopNibble {
		a.loopPredictor, a.loopIndex, a.loopLatched = a.predictor, a.index, true
	}

	byteOff := a.nibblePos / 2
	b := mem.Read8(a.sad + 4 + byteOff)
	var nibble uint8
	if a.nibblePos%2 == 0 {
		nibble = b & 0xF
	} else {
		nibble = b >> 4
	}
	a.nibblePos++

	step := adpcmStepTable[a.index]
	diff := step >> 3
	if nibble&1 != 0 {
		diff += step >> 2
	}
	if nibble&2 != 0 {
		diff += step >> 1
	}
	if nibble&4 != 0 {
		diff += step
	}
	if nibble&8 != 0 {
		a.predictor = clampPredictor(a.predictor - diff)
	} else {
		a.predictor = clampPredictor(a.predictor + diff)
	}
	a.index = clampIndex(a.index + adpcmIndexTable[nibble&7])
	return int16(a.predictor)
}

// rewindToLoop resets the decoder to its latched loop-point state, for
// RepeatLoop's wraparound. With PNT==0 the loop point is the first nibble,
// latched with the header's predictor and index. If no loop point was
// latched, only the nibble position is rewound.
func (a *adpcmState) rewindToLoop() {
	if a.loopLatched {
		a.predictor, a.index, a.nibblePos = a.loopPredictor, a.loopIndex, a.loopNibble
		return
	}
	a.nibblePos = a.loopNibble
}
