package ranking

import (
	"math"

	"github.com/hyperjump/yomu/internal/models"
)

// CategoryCap is the per-page category limit for a page of n items.
func (f *Fuser) CategoryCap(n int) int {
	return max(1, int(math.Floor(f.config.CategoryCapFraction*float64(n))))
}

// Diversify sorts items and reorders them page by page (n items per page)
// so that within a page no category exceeds CategoryCap(n) and no source
// exceeds the source cap while an eligible item remains. Over-cap items are
// deferred to backfill the page only when nothing eligible is left, then
// carried to the next page. The input slice is not modified.
func (f *Fuser) Diversify(items []models.RankedArticle, n int) []models.RankedArticle {
	rest := make([]models.RankedArticle, len(items))
	copy(rest, items)
	SortRanked(rest)
	if n <= 0 || n > len(rest) {
		n = len(rest)
	}
	catCap := f.CategoryCap(n)
	srcCap := f.config.SourceCap

	out := make([]models.RankedArticle, 0, len(rest))
	for len(rest) > 0 {
		cats := make(map[models.Category]int)
		srcs := make(map[string]int)
		page := make([]models.RankedArticle, 0, n)
		var deferred []models.RankedArticle
		for _, it := range rest {
			c, s := it.Article.Category, it.Article.Source
			if len(page) == n || cats[c] >= catCap || (srcCap > 0 && srcs[s] >= srcCap) {
				deferred = append(deferred, it)
				continue
			}
			page = append(page, it)
			cats[c]++
			srcs[s]++
		}
		for len(page) < n && len(deferred) > 0 {
			page = append(page, deferred[0])
			deferred = deferred[1:]
		}
		out = append(out, page...)
		rest = deferred
	}
	return out
}
