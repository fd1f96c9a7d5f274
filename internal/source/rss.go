package source

import (
	"bytes"
	"context"
	"errors"
	"sort"
	"strings"

	"github.com/mmcdole/gofeed"

	"github.com/hyperjump/yomu/internal/extract"
	"github.com/hyperjump/yomu/internal/models"
)

// RSSAdapter reads RSS and Atom feeds configured per canonical category.
type RSSAdapter struct {
	feeds map[models.Category][]string
	opts  httpOptions
}

// NewRSSAdapter creates an adapter over feeds, keyed by category name.
func NewRSSAdapter(feeds map[string][]string, opts ...AdapterOption) *RSSAdapter {
	byCat := make(map[models.Category][]string, len(feeds))
	for k, urls := range feeds {
		byCat[models.Category(strings.ToLower(k))] = urls
	}
	return &RSSAdapter{feeds: byCat, opts: buildOptions(opts)}
}

func (a *RSSAdapter) Name() string { return "rss" }

// Carries implements Carrier.
func (a *RSSAdapter) Carries(category models.Category) bool { return len(a.feeds[category]) > 0 }

// Fetch reads every feed of category in turn until limit items are
// collected. It fails only when all feeds fail.
func (a *RSSAdapter) Fetch(ctx context.Context, category models.Category, limit int) ([]models.RawArticle, error) {
	urls := a.feeds[category]
	if len(urls) == 0 {
		return nil, nil
	}
	var (
		out  []models.RawArticle
		errs []error
	)
	for _, u := range urls {
		items, err := a.fetchFeed(ctx, u, category)
		if err != nil {
			errs = append(errs, err)
			if ctx.Err() != nil {
				break
			}
			continue
		}
		out = append(out, items...)
	}
	if len(out) == 0 && len(errs) > 0 {
		return nil, errs[0]
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].PublishedAt.After(out[j].PublishedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (a *RSSAdapter) fetchFeed(ctx context.Context, url string, category models.Category) ([]models.RawArticle, error) {
	body, err := get(ctx, a.opts.client, a.Name(), url, nil)
	if err != nil {
		return nil, err
	}
	feed, err := gofeed.NewParser().Parse(bytes.NewReader(body))
	if err != nil {
		return nil, &Failure{Source: a.Name(), Kind: FailureMalformed, Err: err}
	}
	if feed == nil {
		return nil, &Failure{Source: a.Name(), Kind: FailureMalformed, Err: errors.New("empty feed")}
	}

	name := strings.TrimSpace(feed.Title)
	if name == "" {
		name = "RSS"
	}
	fetched := a.opts.now().UTC()
	out := make([]models.RawArticle, 0, len(feed.Items))
	for _, it := range feed.Items {
		if it == nil || strings.TrimSpace(it.Title) == "" || it.Link == "" {
			continue
		}
		raw := models.RawArticle{
			Source:           name,
			Provider:         a.Name(),
			Title:            it.Title,
			Summary:          it.Description,
			Body:             it.Content,
			URL:              it.Link,
			ImageURL:         itemImage(it),
			ProviderCategory: string(category),
			FetchedAt:        fetched,
		}
		if len(it.Authors) > 0 && it.Authors[0] != nil {
			raw.Author = it.Authors[0].Name
		}
		switch {
		case it.PublishedParsed != nil:
			raw.PublishedAt = it.PublishedParsed.UTC()
		case it.UpdatedParsed != nil:
			raw.PublishedAt = it.UpdatedParsed.UTC()
		}
		out = append(out, raw)
	}
	return out, nil
}

func itemImage(it *gofeed.Item) string {
	if it.Image != nil && it.Image.URL != "" {
		return it.Image.URL
	}
	for _, e := range it.Enclosures {
		if e != nil && strings.HasPrefix(e.Type, "image/") {
			return e.URL
		}
	}
	if img := extract.FirstImage(it.Content); img != "" {
		return img
	}
	return extract.FirstImage(it.Description)
}
