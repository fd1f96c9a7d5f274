package source

import (
	"context"
	"errors"
	"net/url"
	"strconv"
	"strings"

	"github.com/hyperjump/yomu/internal/config"
	"github.com/hyperjump/yomu/internal/models"
)

var gnewsCategories = map[models.Category]bool{
	models.CategoryGeneral:       true,
	models.CategoryTechnology:    true,
	models.CategoryBusiness:      true,
	models.CategoryHealth:        true,
	models.CategoryScience:       true,
	models.CategorySports:        true,
	models.CategoryEntertainment: true,
}

// GNewsAdapter reads top headlines from gnews.io.
type GNewsAdapter struct {
	cfg  config.APISourceConfig
	opts httpOptions
}

// NewGNewsAdapter creates a GNews adapter.
func NewGNewsAdapter(cfg config.APISourceConfig, opts ...AdapterOption) *GNewsAdapter {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://gnews.io"
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &GNewsAdapter{cfg: cfg, opts: buildOptions(opts)}
}

func (a *GNewsAdapter) Name() string { return "gnews" }

type gnewsResponse struct {
	TotalArticles int      `json:"totalArticles"`
	Errors        []string `json:"errors"`
	Articles      []struct {
		Title       string `json:"title"`
		Description string `json:"description"`
		Content     string `json:"content"`
		URL         string `json:"url"`
		Image       string `json:"image"`
		PublishedAt string `json:"publishedAt"`
		Source      struct {
			Name string `json:"name"`
			URL  string `json:"url"`
		} `json:"source"`
	} `json:"articles"`
}

// Carries implements Carrier.
func (a *GNewsAdapter) Carries(category models.Category) bool { return gnewsCategories[category] }

// Fetch implements Adapter.
func (a *GNewsAdapter) Fetch(ctx context.Context, category models.Category, limit int) ([]models.RawArticle, error) {
	if !a.Carries(category) {
		return nil, nil
	}
	q := url.Values{}
	q.Set("token", a.cfg.APIKey)
	q.Set("category", string(category))
	q.Set("max", strconv.Itoa(limit))
	if a.cfg.Language != "" {
		q.Set("lang", a.cfg.Language)
	}
	if a.cfg.Country != "" {
		q.Set("country", a.cfg.Country)
	}

	var resp gnewsResponse
	if err := getJSON(ctx, a.opts.client, a.Name(), a.cfg.BaseURL+"/api/v4/top-headlines?"+q.Encode(), &resp); err != nil {
		return nil, err
	}
	if len(resp.Errors) > 0 {
		return nil, &Failure{Source: a.Name(), Kind: FailureHTTPStatus, Err: errors.New(strings.Join(resp.Errors, "; "))}
	}

	fetched := a.opts.now().UTC()
	out := make([]models.RawArticle, 0, len(resp.Articles))
	for _, it := range resp.Articles {
		if it.Title == "" || it.URL == "" {
			continue
		}
		name := it.Source.Name
		if name == "" {
			name = "GNews"
		}
		out = append(out, models.RawArticle{
			Source:           name,
			Provider:         a.Name(),
			Title:            it.Title,
			Summary:          it.Description,
			Body:             it.Content,
			URL:              it.URL,
			ImageURL:         it.Image,
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

func apiError(code, message string) error {
	switch {
	case code != "" && message != "":
		return errors.New(code + ": " + message)
	case message != "":
		return errors.New(message)
	case code != "":
		return errors.New(code)
	}
	return errors.New("unknown provider error")
}
