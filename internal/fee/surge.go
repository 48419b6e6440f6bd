package fee

// SurgeFee computes the fast-decaying fee premium at time now. It ramps
// linearly from baseFeePpm*multiplierPpm/1e6 at capStart down to zero at
// capStart+decaySeconds.
func SurgeFee(now, capStart, decaySeconds uint64, baseFeePpm, multiplierPpm uint32) uint32 {
	if capStart == 0 || decaySeconds == 0 || now < capStart {
		return 0
	}
	elapsed := now - capStart
	if elapsed >= decaySeconds {
		return 0
	}

	maxSurge := uint64(baseFeePpm) * uint64(multiplierPpm) / 1_000_000
	remaining := decaySeconds - elapsed
	return uint32(maxSurge * remaining / decaySeconds)
}
