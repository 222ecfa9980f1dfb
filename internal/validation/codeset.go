package validation

import (
	"sort"
	"strconv"
)

type codeRange struct {
	lo, hi int
}

// codeSet is a sorted set of disjoint cTribNac ranges. Lookups are a binary
// search, so cost does not grow with the number of listed codes.
type codeSet []codeRange

// newCodeSet builds a set from individual codes, merging numerically
// adjacent codes into ranges.
func newCodeSet(codes ...string) codeSet {
	nums := make([]int, 0, len(codes))
	for _, c := range codes {
		n, err := strconv.Atoi(c)
		if err != nil {
			panic("validation: bad code in table: " + c)
		}
		nums = append(nums, n)
	}
	sort.Ints(nums)

	var set codeSet
	for _, n := range nums {
		if last := len(set) - 1; last >= 0 && n <= set[last].hi+1 {
			if n > set[last].hi {
				set[last].hi = n
			}
			continue
		}
		set = append(set, codeRange{lo: n, hi: n})
	}
	return set
}

// Contains reports whether code falls inside one of the ranges
func (s codeSet) Contains(code string) bool {
	if !IsTaxClassificationCode(code) {
		return false
	}
	n, _ := strconv.Atoi(code)
	i := sort.Search(len(s), func(i int) bool { return s[i].hi >= n })
	return i < len(s) && s[i].lo <= n
}

// rateExceptions lists codes allowed below the 2% ISS floor (LC 116/2003 art. 8-A §1)
var rateExceptions = newCodeSet(
	"042201", "042301", "050901",
	"070201", "070202", "070501", "070502",
	"090201", "090202",
	"100101", "100102", "100103", "100104", "100105",
	"100201", "100202", "100301", "100401", "100402", "100403",
	"100501", "100502", "100601", "100701", "100801", "100901", "101001",
	"150101", "150102", "150103", "150104", "150105",
	"151001", "151002", "151003", "151004", "151005",
	"160101", "160102", "160103", "160104", "160201",
	"170501", "170601",
	"171001", "171002", "171101", "171102", "171201",
	"210101", "250301",
)

// renderingIncidence lists codes taxed where the service is rendered (LC 116/2003 art. 3)
var renderingIncidence = newCodeSet(
	"030401", "030402", "030403", "030501",
	"070201", "070202", "070401", "070501", "070502",
	"070901", "070902", "071001", "071002", "071101", "071102", "071201",
	"071601", "071701", "071801", "071901",
	"110101", "110102", "110201", "110301", "110401", "110402",
	"120101", "120201", "120301", "120401", "120501", "120601", "120701",
	"120801", "120901", "121001", "121101", "121201", "121301", "121401",
	"121501", "121601", "121701",
	"160101", "160102", "160103", "160104", "160201",
	"171001", "171002",
	"220101",
)

// customerIncidence lists codes taxed at the customer's municipality
var customerIncidence = newCodeSet(
	"170501",
)
