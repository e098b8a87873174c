package proto

import (
	"strconv"
	"strings"
)

// CompareVersions parses a and b as dotted-decimal version strings,
// padding whichever has fewer fields with zeros, and returns -1, 0, or 1
// the way strings.Compare does. Non-numeric fields compare as 0.
func CompareVersions(a, b string) int {
	af := splitVersion(a)
	bf := splitVersion(b)

	n := len(af)
	if len(bf) > n {
		n = len(bf)
	}
	for i := 0; i < n; i++ {
		var av, bv int
		if i < len(af) {
			av = af[i]
		}
		if i < len(bf) {
			bv = bf[i]
		}
		if av < bv {
			return -1
		}
		if av > bv {
			return 1
		}
	}
	return 0
}

func splitVersion(v string) []int {
	parts := strings.Split(v, ".")
	fields := make([]int, len(parts))
	for i, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			n = 0
		}
		fields[i] = n
	}
	return fields
}
