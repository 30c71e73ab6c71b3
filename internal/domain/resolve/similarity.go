package resolve

import "strings"

// tokens splits a normalised string on whitespace and keeps tokens longer
// than minLen.
func tokens(s string, minLen int) map[string]struct{} {
	out := make(map[string]struct{})
	for _, t := range strings.Fields(s) {
		if len([]rune(t)) > minLen {
			out[t] = struct{}{}
		}
	}
	return out
}

// Jaccard returns |a∩b|/|a∪b| over the token sets and the absolute overlap.
// Two empty sets have similarity 0.
func Jaccard(a, b map[string]struct{}) (float64, int) {
	if len(a) == 0 || len(b) == 0 {
		return 0, 0
	}
	inter := 0
	for t := range a {
		if _, ok := b[t]; ok {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	return float64(inter) / float64(union), inter
}

// TokenSimilarity is Jaccard over tokens longer than minLen of two already
// normalised strings.
func TokenSimilarity(a, b string, minLen int) float64 {
	s, _ := Jaccard(tokens(a, minLen), tokens(b, minLen))
	return s
}

// levenshtein computes edit distance (insertion, deletion, substitution cost 1).
func levenshtein(a, b string) int {
	ar := []rune(a)
	br := []rune(b)
	n, m := len(ar), len(br)
	if n == 0 {
		return m
	}
	if m == 0 {
		return n
	}
	dp := make([]int, m+1)
	for j := 0; j <= m; j++ {
		dp[j] = j
	}
	for i := 1; i <= n; i++ {
		prev := dp[0]
		dp[0] = i
		for j := 1; j <= m; j++ {
			tmp := dp[j]
			cost := 0
			if ar[i-1] != br[j-1] {
				cost = 1
			}
			dp[j] = min(dp[j]+1, dp[j-1]+1, prev+cost)
			prev = tmp
		}
	}
	return dp[m]
}

// EditRatio is 1 - distance/maxLen, in [0,1].
func EditRatio(a, b string) float64 {
	la, lb := len([]rune(a)), len([]rune(b))
	longest := max(la, lb)
	if longest == 0 {
		return 1
	}
	return 1 - float64(levenshtein(a, b))/float64(longest)
}

// PartialSimilarity scores loose matches for suggestions: the larger of token
// Jaccard over all tokens and the edit ratio.
func PartialSimilarity(a, b string) float64 {
	return max(TokenSimilarity(a, b, 0), EditRatio(a, b))
}

// lengthRatio scores a containment match by how much of the longer string the
// shorter one covers.
func lengthRatio(a, b string) float64 {
	la, lb := len([]rune(a)), len([]rune(b))
	if la == 0 || lb == 0 {
		return 0
	}
	return float64(min(la, lb)) / float64(max(la, lb))
}
