package gridenv

import (
	"sort"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// ParseIntRanges parses a string containing a comma- and
// hyphen-separated representation of a collection of positive
// integers (e.g. "1,5-8,12") into a sorted list of unique ints.
func ParseIntRanges(s string) ([]int, error) {
	seen := make(map[int]struct{})

	for _, token := range strings.Split(s, ",") {

		// Plain integers handled here.
		if isDigits(strings.TrimSpace(token)) {
			n, _ := strconv.Atoi(strings.TrimSpace(token))
			seen[n] = struct{}{}
			continue
		}

		// Hyphenated ranges handled here.
		limits := strings.Split(token, "-")
		if len(limits) == 2 && isDigits(strings.TrimSpace(limits[0])) && isDigits(strings.TrimSpace(limits[1])) {
			lo, _ := strconv.Atoi(strings.TrimSpace(limits[0]))
			hi, _ := strconv.Atoi(strings.TrimSpace(limits[1]))
			for n := lo; n <= hi; n++ {
				seen[n] = struct{}{}
			}
			continue
		}

		// Don't understand.
		return nil, errors.Errorf("unparseable range token %q", token)
	}

	result := make([]int, 0, len(seen))
	for n := range seen {
		result = append(result, n)
	}
	sort.Ints(result)
	return result, nil
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}
