package normalize

// TitleSimilarity returns 1 - distance/maxLen over the normalized titles,
// so identical headlines score 1 and unrelated ones approach 0.
func TitleSimilarity(a, b string) float64 {
	na, nb := []rune(NormalizeTitle(a)), []rune(NormalizeTitle(b))
	maxLen := max(len(na), len(nb))
	if maxLen == 0 {
		return 1
	}
	return 1 - float64(editDistance(na, nb, -1))/float64(maxLen)
}

// TitlesSimilar reports whether TitleSimilarity(a, b) >= threshold. It stops
// computing the distance as soon as the threshold is out of reach. Two empty
// titles are never similar.
func TitlesSimilar(a, b string, threshold float64) bool {
	na, nb := []rune(NormalizeTitle(a)), []rune(NormalizeTitle(b))
	maxLen := max(len(na), len(nb))
	if maxLen == 0 {
		return false
	}
	maxDist := int((1 - threshold) * float64(maxLen))
	return editDistance(na, nb, maxDist) <= maxDist
}

// LevenshteinDistance calculates the minimum number of single-character edits
// (insertions, deletions, or substitutions) required to change one string into another.
func LevenshteinDistance(a, b string) int {
	if a == b {
		return 0
	}
	return editDistance([]rune(a), []rune(b), -1)
}

// editDistance is the Levenshtein distance of a and b. With maxDist >= 0 it
// returns maxDist+1 as soon as the distance is known to exceed maxDist.
func editDistance(a, b []rune, maxDist int) int {
	bounded := maxDist >= 0
	if d := len(a) - len(b); bounded && (d > maxDist || -d > maxDist) {
		return maxDist + 1
	}
	if len(a) == 0 {
		return len(b)
	}
	if len(b) == 0 {
		return len(a)
	}

	// Two rows are enough.
	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(a); i++ {
		curr[0] = i
		rowMin := curr[0]
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			curr[j] = min(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
			rowMin = min(rowMin, curr[j])
		}
		if bounded && rowMin > maxDist {
			return maxDist + 1
		}
		prev, curr = curr, prev
	}
	return prev[len(b)]
}
