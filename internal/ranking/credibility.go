package ranking

import "strings"

var credibility = map[string]float64{}

func init() {
	for score, names := range map[float64][]string{
		1.0: {"reuters", "bbc", "bbc news", "associated press", "ap", "ap news", "apnews", "nature"},
		0.9: {"bloomberg", "science daily", "sciencedaily"},
		0.8: {"cnn", "techcrunch", "wired"},
	} {
		for _, n := range names {
			credibility[n] = score
		}
	}
}

const defaultCredibility = 0.6

// Credibility returns the editorial trust score for a source, matched by
// display name and then by the first label of its domain.
func Credibility(source, domain string) float64 {
	if s, ok := credibility[strings.ToLower(strings.TrimSpace(source))]; ok {
		return s
	}
	label, _, _ := strings.Cut(strings.ToLower(domain), ".")
	if s, ok := credibility[label]; ok {
		return s
	}
	return defaultCredibility
}
