package learn

import (
	"sort"
	"strings"
)

// Similarity returns a [0,1] string-similarity ratio between two normalized
// strings. It takes the better of a token-set Jaccard ratio and a
// token-sorted common-subsequence ratio, so word reorderings ("Workshop on
// Machine Learning" vs "Machine Learning Workshop") still score high.
func Similarity(a, b string) float64 {
	if a == "" || b == "" {
		return 0
	}
	if a == b {
		return 1
	}
	j := tokenJaccard(a, b)
	r := matchRatio(tokenSort(a), tokenSort(b))
	if j > r {
		return j
	}
	return r
}

func tokenSort(s string) string {
	fields := strings.Fields(s)
	sort.Strings(fields)
	return strings.Join(fields, " ")
}

func tokenJaccard(a, b string) float64 {
	aSet := map[string]struct{}{}
	for _, t := range strings.Fields(a) {
		aSet[t] = struct{}{}
	}
	bSet := map[string]struct{}{}
	for _, t := range strings.Fields(b) {
		bSet[t] = struct{}{}
	}
	if len(aSet) == 0 && len(bSet) == 0 {
		return 1
	}
	inter := 0
	for t := range aSet {
		if _, ok := bSet[t]; ok {
			inter++
		}
	}
	union := len(aSet) + len(bSet) - inter
	if union == 0 {
		return 0
	}
	return float64(inter) / float64(union)
}

// matchRatio is 2*M/T where M is the length of the longest common
// subsequence and T the total length of both strings.
func matchRatio(a, b string) float64 {
	ar := []rune(a)
	br := []rune(b)
	total := len(ar) + len(br)
	if total == 0 {
		return 1
	}
	prev := make([]int, len(br)+1)
	cur := make([]int, len(br)+1)
	for i := 1; i <= len(ar); i++ {
		for j := 1; j <= len(br); j++ {
			if ar[i-1] == br[j-1] {
				cur[j] = prev[j-1] + 1
			} else if prev[j] >= cur[j-1] {
				cur[j] = prev[j]
			} else {
				cur[j] = cur[j-1]
			}
		}
		prev, cur = cur, prev
	}
	return 2 * float64(prev[len(br)]) / float64(total)
}
