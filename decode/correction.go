package decode

import (
	lev "github.com/agnivade/levenshtein"
)

const (
	// foldMaxSubjectCount is the highest sample count a callsign may have and
	// still be considered a likely busted copy of a neighbor.
	foldMaxSubjectCount = 1
	// foldMinNeighborCount is how often the candidate neighbor must have been
	// heard on the same band before a fold is trusted.
	foldMinNeighborCount = 5
	// foldMaxDistance bounds how different the two calls may be. Distance 1
	// covers the single-character decode errors FT8 actually produces.
	foldMaxDistance = 1
)

// Fold describes one busted-call correction applied to a record set.
type Fold struct {
	From string // the suspect callsign, heard once
	To   string // the consensus neighbor it was folded into
	Band string
}

// FoldBustedCalls scans per-band callsign sample counts and returns a mapping
// of likely decode errors: a callsign heard exactly once whose edit-distance-1
// neighbor was heard many times on the same band is assumed to be a busted
// copy of that neighbor. When several neighbors qualify, the most-heard one
// wins. Counts map band -> callsign -> number of samples.
func FoldBustedCalls(counts map[string]map[string]int) []Fold {
	var folds []Fold
	for bandName, calls := range counts {
		for subject, n := range calls {
			if n > foldMaxSubjectCount {
				continue
			}
			best := ""
			bestCount := 0
			for candidate, cn := range calls {
				if candidate == subject || cn < foldMinNeighborCount {
					continue
				}
				if lev.ComputeDistance(subject, candidate) > foldMaxDistance {
					continue
				}
				if cn > bestCount {
					best = candidate
					bestCount = cn
				}
			}
			if best != "" {
				folds = append(folds, Fold{From: subject, To: best, Band: bandName})
			}
		}
	}
	return folds
}
