package source

import (
	"context"
	"net/url"
	"strconv"
	"strings"

	"github.com/hyperjump/yomu/internal/config"
	"github.com/hyperjump/yomu/internal/models"
)

// newsAPICategories are the categories /v2/top-headlines accepts.
var newsAPICategories = map[models.Category]bool{
	models.CategoryGeneral:       true,
	models.CategoryTechnology:    true,
	models.CategoryBusiness:      true,
	models.CategoryHealth:        true,
	models.CategoryScience:       true,
	models.CategorySports:        true,
	models.CategoryEntertainment: true,
}

// NewsAPIAdapter reads top headlines from newsapi.org.
type NewsAPIAdapter struct {
	cfg  config.APISourceConfig
	opts httpOptions
}

// NewNewsAPIAdapter creates a NewsAPI adapter.
func NewNewsAPIAdapter(cfg config.APISourceConfig, opts ...AdapterOption) *NewsAPIAdapter {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://newsapi.org"
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &NewsAPIAdapter{cfg: cfg, opts: buildOptions(opts)}
}

func (a *NewsAPIAdapter) Name() string { return "newsapi" }

type newsAPIResponse struct {
	Status   string `json:"status"`
	Code     string `json:"code"`
	Message  string `json:"message"`
	Articles []struct {
		Source struct {
			Name string `json:"name"`
		} `json:"source"`
		Author      string `json:"author"`
		Title       string `json:"title"`
		Description string `json:"description"`
		URL         string `json:"url"`
		URLToImage  string `json:"urlToImage"`
		PublishedAt string `json:"publishedAt"`
		Content     string `json:"content"`
	} `json:"articles"`
}

// Carries implements Carrier.
func (a *NewsAPIAdapter) Carries(category models.Category) bool { return newsAPICategories[category] }

// Fetch implements Adapter.
func (a *NewsAPIAdapter) Fetch(ctx context.Context, category models.Category, limit int) ([]models.RawArticle, error) {
	if !a.Carries(category) {
		return nil, nil
	}
	q := url.Values{}
	q.Set("apiKey", a.cfg.APIKey)
	q.Set("category", string(category))
	q.Set("pageSize", strconv.Itoa(limit))
	if a.cfg.Country != "" {
		q.Set("country", a.cfg.Country)
	} else if a.cfg.Language != "" {
		q.Set("language", a.cfg.Language)
	}

	var resp newsAPIResponse
	if err := getJSON(ctx, a.opts.client, a.Name(), a.cfg.BaseURL+"/v2/top-headlines?"+q.Encode(), &resp); err != nil {
		return nil, err
	}
	if resp.Status == "error" {
		kind := FailureHTTPStatus
		if resp.Code == "rateLimited" {
			kind = FailureRateLimited
		}
		return nil, &Failure{Source: a.Name(), Kind: kind, Err: apiError(resp.Code, resp.Message)}
	}

	fetched := a.opts.now().UTC()
	out := make([]models.RawArticle, 0, len(resp.Articles))
	for _, it := range resp.Articles {
		if it.Title == "" || it.URL == "" || it.Title == "[Removed]" {
			continue
		}
		name := it.Source.Name
		if name == "" {
			name = "NewsAPI"
		}
		out = append(out, models.RawArticle{
			Source:           name,
			Provider:         a.Name(),
			Title:            it.Title,
			Summary:          it.Description,
			Body:             it.Content,
			URL:              it.URL,
			ImageURL:         it.URLToImage,
			Author:           it.Author,
			ProviderCategory: string(category),
			PublishedAt:      parseTime(it.PublishedAt),
			FetchedAt:        fetched,
		})
		if len(out) == limit {
			break
		}
	}
	return out, nil
}
