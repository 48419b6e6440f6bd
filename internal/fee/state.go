package fee

import "math/big"

// Word is the packed 256-bit pool state. The all-zero word means
// "uninitialized"; initialization always stamps FreqLastUpdate, so any live
// state packs to a non-zero word.
//
// Layout, LSB first:
//
//	bit    0        inCap
//	bits   1..24    baseFeePpm   (24 bits)
//	bits  25..64    lastFeeUpdate (40 bits)
//	bits  65..104   capStart      (40 bits)
//	bits 105..144   freqLastUpdate (40 bits)
//	bits 145..240   freq           (96 bits, 1e18-scaled fixed point)
type Word [32]byte

const (
	freqBits      = 96
	timestampBits = 40
	baseFeeBits   = 24

	shiftBaseFee        = 1
	shiftLastFeeUpdate  = shiftBaseFee + baseFeeBits
	shiftCapStart       = shiftLastFeeUpdate + timestampBits
	shiftFreqLastUpdate = shiftCapStart + timestampBits
	shiftFreq           = shiftFreqLastUpdate + timestampBits
)

var (
	maxFreq      = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), freqBits), big.NewInt(1))
	maxTimestamp = uint64(1)<<timestampBits - 1
	maxBaseFee   = uint32(1)<<baseFeeBits - 1
)

// State is a pool's unpacked controller state.
type State struct {
	// Freq is the decaying cap-event accumulator, scaled by the policy's
	// freq scaling unit. Saturates at 2^96-1, never wraps.
	Freq *big.Int
	// BaseFeePpm is the slow-moving fee component in parts-per-million.
	BaseFeePpm uint32
	// FreqLastUpdate is when decay was last applied to Freq.
	FreqLastUpdate uint64
	// CapStart is when the active cap event began; zero means none.
	CapStart uint64
	// LastFeeUpdate is when the base fee was last recomputed.
	LastFeeUpdate uint64
	// InCap reports whether a cap event is currently active.
	InCap bool
}

// Pack encodes the state into a single word. Each field is clamped to its
// bit-width so packing an extreme but valid state saturates instead of
// bleeding into neighbouring fields.
func (s State) Pack() Word {
	word := new(big.Int)

	if s.InCap {
		word.SetBit(word, 0, 1)
	}

	base := s.BaseFeePpm
	if base > maxBaseFee {
		base = maxBaseFee
	}
	word.Or(word, new(big.Int).Lsh(big.NewInt(int64(base)), shiftBaseFee))
	word.Or(word, new(big.Int).Lsh(new(big.Int).SetUint64(clampTimestamp(s.LastFeeUpdate)), shiftLastFeeUpdate))
	word.Or(word, new(big.Int).Lsh(new(big.Int).SetUint64(clampTimestamp(s.CapStart)), shiftCapStart))
	word.Or(word, new(big.Int).Lsh(new(big.Int).SetUint64(clampTimestamp(s.FreqLastUpdate)), shiftFreqLastUpdate))

	freq := s.Freq
	if freq == nil {
		freq = new(big.Int)
	}
	if freq.Sign() < 0 {
		freq = new(big.Int)
	}
	if freq.Cmp(maxFreq) > 0 {
		freq = maxFreq
	}
	word.Or(word, new(big.Int).Lsh(freq, shiftFreq))

	var out Word
	word.FillBytes(out[:])
	return out
}

// Unpack decodes a packed word. Unpacking the zero word yields the zero
// state, which callers treat as "uninitialized".
func Unpack(w Word) State {
	word := new(big.Int).SetBytes(w[:])

	return State{
		InCap:          word.Bit(0) == 1,
		BaseFeePpm:     uint32(extract(word, shiftBaseFee, baseFeeBits).Uint64()),
		LastFeeUpdate:  extract(word, shiftLastFeeUpdate, timestampBits).Uint64(),
		CapStart:       extract(word, shiftCapStart, timestampBits).Uint64(),
		FreqLastUpdate: extract(word, shiftFreqLastUpdate, timestampBits).Uint64(),
		Freq:           extract(word, shiftFreq, freqBits),
	}
}

// IsZero reports whether the word is the uninitialized sentinel.
func (w Word) IsZero() bool {
	for _, b := range w {
		if b != 0 {
			return false
		}
	}
	return true
}

func extract(word *big.Int, shift, bits uint) *big.Int {
	mask := new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), bits), big.NewInt(1))
	out := new(big.Int).Rsh(word, shift)
	return out.And(out, mask)
}

func clampTimestamp(ts uint64) uint64 {
	if ts > maxTimestamp {
		return maxTimestamp
	}
	return ts
}

// addFreqSaturating adds inc to freq, clamping at the 96-bit maximum.
func addFreqSaturating(freq, inc *big.Int) *big.Int {
	sum := new(big.Int).Add(freq, inc)
	if sum.Cmp(maxFreq) > 0 {
		return new(big.Int).Set(maxFreq)
	}
	return sum
}

// decayFreqLinear scales freq down by elapsed/window, clamping at zero. An
// elapsed span at or beyond the window empties the accumulator.
func decayFreqLinear(freq *big.Int, elapsed, window uint64) *big.Int {
	if window == 0 || elapsed >= window {
		return new(big.Int)
	}
	if elapsed == 0 {
		return new(big.Int).Set(freq)
	}
	remaining := new(big.Int).SetUint64(window - elapsed)
	out := new(big.Int).Mul(freq, remaining)
	return out.Div(out, new(big.Int).SetUint64(window))
}
