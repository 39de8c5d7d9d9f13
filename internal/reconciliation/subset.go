package reconciliation

import "math/bits"

// MaxSubsetLines bounds the brute-force search: 2^20 subsets.
const MaxSubsetLines = 20

// subsetSums returns the sum of every subset of cents, indexed by bitmask.
func subsetSums(cents []int64) []int64 {
	sums := make([]int64, 1<<len(cents))
	for mask := 1; mask < len(sums); mask++ {
		low := bits.TrailingZeros(uint(mask))
		sums[mask] = sums[mask&(mask-1)] + cents[low]
	}
	return sums
}

// bestSubset searches the non-empty submasks of allowed for the one whose sum
// is within tol of target. Ties go to the closest sum, then the fewest
// lines, then the lowest mask.
func bestSubset(sums []int64, allowed uint32, target, tol int64) (uint32, bool) {
	var (
		best     uint32
		bestDist int64 = -1
		bestSize int
	)
	for s := allowed; s != 0; s = (s - 1) & allowed {
		dist := sums[s] - target
		if dist < 0 {
			dist = -dist
		}
		if dist > tol {
			continue
		}
		size := bits.OnesCount32(s)
		switch {
		case bestDist < 0,
			dist < bestDist,
			dist == bestDist && size < bestSize,
			dist == bestDist && size == bestSize && s < best:
			best, bestDist, bestSize = s, dist, size
		}
	}
	return best, bestDist >= 0
}
