package fee

import (
	"math/big"
	"reflect"
	"testing"
)

func TestPackUnpackRoundTrip(t *testing.T) {
	original := State{
		Freq:           big.NewInt(123_456_789_000_000_000),
		BaseFeePpm:     5_000,
		FreqLastUpdate: 1_700_000_000,
		CapStart:       1_699_999_000,
		LastFeeUpdate:  1_700_000_000,
		InCap:          true,
	}

	decoded := Unpack(original.Pack())
	if !reflect.DeepEqual(original, decoded) {
		t.Fatalf("round-trip mismatch: %+v != %+v", original, decoded)
	}
}

func TestPackUnpackFieldBoundaries(t *testing.T) {
	original := State{
		Freq:           new(big.Int).Set(maxFreq),
		BaseFeePpm:     maxBaseFee,
		FreqLastUpdate: maxTimestamp,
		CapStart:       maxTimestamp,
		LastFeeUpdate:  maxTimestamp,
		InCap:          true,
	}

	decoded := Unpack(original.Pack())
	if !reflect.DeepEqual(original, decoded) {
		t.Fatalf("boundary round-trip mismatch: %+v != %+v", original, decoded)
	}
}

func TestPackSaturatesOverwideFields(t *testing.T) {
	over := State{
		Freq:           new(big.Int).Lsh(big.NewInt(1), 120),
		FreqLastUpdate: 1 << 45,
		CapStart:       1 << 50,
		LastFeeUpdate:  1 << 60,
	}

	decoded := Unpack(over.Pack())
	if decoded.Freq.Cmp(maxFreq) != 0 {
		t.Fatalf("freq should clamp to max: %s", decoded.Freq)
	}
	if decoded.FreqLastUpdate != maxTimestamp || decoded.CapStart != maxTimestamp || decoded.LastFeeUpdate != maxTimestamp {
		t.Fatalf("timestamps should clamp to 40-bit max: %+v", decoded)
	}
}

func TestZeroWordIsUninitializedSentinel(t *testing.T) {
	var zero Word
	if !zero.IsZero() {
		t.Fatalf("zero word must report IsZero")
	}

	initialized := State{Freq: new(big.Int), FreqLastUpdate: 1}
	if initialized.Pack().IsZero() {
		t.Fatalf("initialized state must not pack to the zero word")
	}
}

func TestAddFreqSaturates(t *testing.T) {
	nearMax := new(big.Int).Sub(maxFreq, big.NewInt(10))
	increment := big.NewInt(1_000_000)

	sum := addFreqSaturating(nearMax, increment)
	if sum.Cmp(maxFreq) != 0 {
		t.Fatalf("expected saturation at max: %s", sum)
	}

	// Repeated additions at the ceiling never decrease the accumulator.
	for i := 0; i < 5; i++ {
		next := addFreqSaturating(sum, increment)
		if next.Cmp(sum) < 0 {
			t.Fatalf("accumulator decreased: %s -> %s", sum, next)
		}
		sum = next
	}
	if sum.Cmp(maxFreq) != 0 {
		t.Fatalf("accumulator left the ceiling: %s", sum)
	}
}

func TestDecayFreqLinear(t *testing.T) {
	freq := big.NewInt(1_000_000)

	half := decayFreqLinear(freq, 43_200, 86_400)
	if half.Cmp(big.NewInt(500_000)) != 0 {
		t.Fatalf("half-window decay mismatch: %s", half)
	}

	none := decayFreqLinear(freq, 0, 86_400)
	if none.Cmp(freq) != 0 {
		t.Fatalf("zero elapsed must not decay: %s", none)
	}

	full := decayFreqLinear(freq, 86_400, 86_400)
	if full.Sign() != 0 {
		t.Fatalf("full-window decay must empty the accumulator: %s", full)
	}

	beyond := decayFreqLinear(freq, 200_000, 86_400)
	if beyond.Sign() != 0 {
		t.Fatalf("decay must clamp at zero, not go negative: %s", beyond)
	}
}
