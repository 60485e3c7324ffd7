package optimizer

import (
	"fmt"
	"sort"

	"github.com/cespare/xxhash/v2"
)

// LineupSignature derives the stable identity of a player set. Order in the
// lineup does not matter: two lineups with the same players in different
// slots are the same entry for dedup and duplicate-risk purposes.
func LineupSignature(playerIDs []string) string {
	sorted := make([]string, len(playerIDs))
	copy(sorted, playerIDs)
	sort.Strings(sorted)

	digest := xxhash.New()
	for _, id := range sorted {
		digest.WriteString(id)
		digest.Write([]byte{0})
	}
	return fmt.Sprintf("%016x", digest.Sum64())
}

// canonicalIDs returns the sorted copy used for deterministic tie-breaking
func canonicalIDs(playerIDs []string) []string {
	sorted := make([]string, len(playerIDs))
	copy(sorted, playerIDs)
	sort.Strings(sorted)
	return sorted
}

// lessIDSets compares two sorted id sets lexicographically
func lessIDSets(a, b []string) bool {
	for i := 0; i < len(a) && i < len(b); i++ {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return len(a) < len(b)
}
