package fee

import "testing"

func TestSurgeFullAtCapStart(t *testing.T) {
	got := SurgeFee(1000, 1000, 3600, 5000, 3_000_000)
	if got != 15_000 {
		t.Fatalf("surge at cap start mismatch: %d", got)
	}
}

func TestSurgeZeroCases(t *testing.T) {
	if got := SurgeFee(1000, 0, 3600, 5000, 3_000_000); got != 0 {
		t.Fatalf("no cap event should yield zero surge: %d", got)
	}
	if got := SurgeFee(1000, 1000, 0, 5000, 3_000_000); got != 0 {
		t.Fatalf("zero decay period should yield zero surge: %d", got)
	}
	if got := SurgeFee(4600, 1000, 3600, 5000, 3_000_000); got != 0 {
		t.Fatalf("fully elapsed surge must be exactly zero: %d", got)
	}
	if got := SurgeFee(9999, 1000, 3600, 5000, 3_000_000); got != 0 {
		t.Fatalf("surge must stay zero after decay: %d", got)
	}
}

func TestSurgeHalfLife(t *testing.T) {
	full := SurgeFee(1000, 1000, 3600, 5000, 3_000_000)
	half := SurgeFee(2800, 1000, 3600, 5000, 3_000_000)

	if half != full/2 {
		t.Fatalf("half-decay mismatch: full=%d half=%d", full, half)
	}
}

func TestSurgeMonotonicDecay(t *testing.T) {
	prev := SurgeFee(1000, 1000, 3600, 5000, 3_000_000)
	for ts := uint64(1001); ts <= 4700; ts += 7 {
		cur := SurgeFee(ts, 1000, 3600, 5000, 3_000_000)
		if cur > prev {
			t.Fatalf("surge increased at t=%d: %d > %d", ts, cur, prev)
		}
		prev = cur
	}
	if prev != 0 {
		t.Fatalf("surge must end at zero: %d", prev)
	}
}
