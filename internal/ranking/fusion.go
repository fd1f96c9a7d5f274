package ranking

import "sort"

// FusedResult holds an article ID and its fused keyword/personal scores.
type FusedResult struct {
	ArticleID     string
	Score         float64
	KeywordScore  float64
	PersonalScore float64
}

// NormalizeScores divides every score by the largest one. Non-positive
// maxima yield all zeros.
func NormalizeScores(scores map[string]float64) map[string]float64 {
	var top float64
	for _, s := range scores {
		if s > top {
			top = s
		}
	}
	normalized := make(map[string]float64, len(scores))
	for id, s := range scores {
		if top > 0 {
			normalized[id] = s / top
		} else {
			normalized[id] = 0
		}
	}
	return normalized
}

// Fuse merges keyword and personal score maps with weights and returns
// results sorted by score desc, then id.
func Fuse(keywordScores, personalScores map[string]float64, keywordWeight, personalWeight float64) []*FusedResult {
	scoreMap := make(map[string]*FusedResult)
	for id, score := range keywordScores {
		scoreMap[id] = &FusedResult{ArticleID: id, KeywordScore: score}
	}
	for id, score := range personalScores {
		if result, exists := scoreMap[id]; exists {
			result.PersonalScore = score
		} else {
			scoreMap[id] = &FusedResult{ArticleID: id, PersonalScore: score}
		}
	}
	results := make([]*FusedResult, 0, len(scoreMap))
	for _, result := range scoreMap {
		result.Score = (keywordWeight * result.KeywordScore) + (personalWeight * result.PersonalScore)
		results = append(results, result)
	}
	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].ArticleID < results[j].ArticleID
	})
	return results
}

// Fuse applies the configured search weights.
func (f *Fuser) Fuse(keywordScores, personalScores map[string]float64) []*FusedResult {
	return Fuse(NormalizeScores(keywordScores), NormalizeScores(personalScores), f.config.KeywordWeight, f.config.PersonalWeight)
}
