package signature

// #region fuzzy-keys
// FuzzyKeys expands the key of s into its neighbourhood: coherence_bin and urgency_bin each
// range over [bin-tolerance, bin+tolerance] clamped to their valid bins, every other field
// stays exact. The result always has (2*tolerance+1)^2 keys in coherence-major order and
// always contains Project(s, p). Clamping at the range edges repeats keys; callers that
// look keys up should skip repeats.
//
// Only the two most discriminating dimensions are relaxed; relaxing all eight would grow
// the neighbourhood combinatorially. Coarse keys have no bins and yield only the exact key.
func FuzzyKeys(s Signature, tolerance int, p Precision) []Key {
	exact := Project(s, p)
	if p == Coarse || tolerance <= 0 {
		return []Key{exact}
	}

	side := 2*tolerance + 1
	keys := make([]Key, 0, side*side)
	for dc := -tolerance; dc <= tolerance; dc++ {
		for du := -tolerance; du <= tolerance; du++ {
			k := exact
			k.coherenceBin = clampBin(exact.coherenceBin+dc, CoherenceBins)
			k.urgencyBin = clampBin(exact.urgencyBin+du, UrgencyBins)
			keys = append(keys, k)
		}
	}
	return keys
}

// #endregion fuzzy-keys

// #region helpers
func clampBin(bin, bins int) int {
	if bin < 0 {
		return 0
	}
	if bin > bins-1 {
		return bins - 1
	}
	return bin
}

// #endregion helpers
