/*
Package nutrition is a thin proxy in front of the Open Food Facts API.
It offers product search by name and product lookup by barcode, rendered
either as HTML pages or as JSON.
*/
package nutrition

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/rs/zerolog"
)

// --- Open Food Facts API Configuration ---
const (
	searchPath       = "/cgi/search.pl"
	productPathFmt   = "/api/v0/product/%s.json"
	initialBackoff   = 500 * time.Millisecond
	maxErrorBodySize = 512
)

// ErrProductNotFound is returned when Open Food Facts has no product for a barcode.
var ErrProductNotFound = errors.New("product not found")

// Amount is a nutriment value. Open Food Facts encodes some of them as strings.
type Amount float64

// UnmarshalJSON accepts numbers, numeric strings, empty strings and null.
func (a *Amount) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		*a = 0
		return nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		// Free text such as "traces" carries no usable value.
		*a = 0
		return nil
	}
	*a = Amount(f)
	return nil
}

// Nutriments holds the per-100g values shown on the product page.
type Nutriments struct {
	EnergyKcal100g    Amount `json:"energy-kcal_100g,omitempty"`
	Fat100g           Amount `json:"fat_100g,omitempty"`
	SaturatedFat100g  Amount `json:"saturated-fat_100g,omitempty"`
	Carbohydrates100g Amount `json:"carbohydrates_100g,omitempty"`
	Sugars100g        Amount `json:"sugars_100g,omitempty"`
	Fiber100g         Amount `json:"fiber_100g,omitempty"`
	Proteins100g      Amount `json:"proteins_100g,omitempty"`
	Salt100g          Amount `json:"salt_100g,omitempty"`
}

// Product is the subset of an Open Food Facts product the service exposes.
type Product struct {
	Code            string     `json:"code"`
	ProductName     string     `json:"product_name"`
	Brands          string     `json:"brands,omitempty"`
	Quantity        string     `json:"quantity,omitempty"`
	Categories      string     `json:"categories,omitempty"`
	ImageURL        string     `json:"image_url,omitempty"`
	IngredientsText string     `json:"ingredients_text,omitempty"`
	NutriscoreGrade string     `json:"nutriscore_grade,omitempty"`
	NovaGroup       Amount     `json:"nova_group,omitempty"`
	Nutriments      Nutriments `json:"nutriments"`
}

type searchResponse struct {
	Products []Product `json:"products"`
}

type productResponse struct {
	Status  int     `json:"status"`
	Product Product `json:"product"`
}

// Client talks to Open Food Facts. Product lookups are cached by barcode;
// searches are always forwarded.
type Client struct {
	baseURL    string
	userAgent  string
	pageSize   int
	maxRetries int
	http       *http.Client
	cache      *lru.Cache[string, Product]
}

// ClientConfig configures a Client.
type ClientConfig struct {
	BaseURL    string
	UserAgent  string
	PageSize   int
	CacheSize  int
	MaxRetries int
	Timeout    time.Duration
}

// NewClient builds a Client with its own http.Client and product cache.
func NewClient(cfg ClientConfig) (*Client, error) {
	cache, err := lru.New[string, Product](cfg.CacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create product cache: %w", err)
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 1
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		userAgent:  cfg.UserAgent,
		pageSize:   cfg.PageSize,
		maxRetries: cfg.MaxRetries,
		http:       &http.Client{Timeout: cfg.Timeout},
		cache:      cache,
	}, nil
}

// Search returns up to pageSize products matching query. A pageSize of zero
// uses the configured default.
func (c *Client) Search(ctx context.Context, logger *zerolog.Logger, query string, pageSize int) ([]Product, error) {
	if pageSize <= 0 {
		pageSize = c.pageSize
	}

	params := url.Values{}
	params.Set("search_terms", query)
	params.Set("search_simple", "1")
	params.Set("action", "process")
	params.Set("json", "1")
	params.Set("page_size", strconv.Itoa(pageSize))

	var resp searchResponse
	if err := c.getJSON(ctx, logger, c.baseURL+searchPath+"?"+params.Encode(), &resp); err != nil {
		return nil, err
	}
	if resp.Products == nil {
		resp.Products = []Product{}
	}
	return resp.Products, nil
}

// Product returns the product with the given barcode.
func (c *Client) Product(ctx context.Context, logger *zerolog.Logger, barcode string) (Product, error) {
	if p, ok := c.cache.Get(barcode); ok {
		logger.Debug().Str("barcode", barcode).Msg("Product cache hit")
		return p, nil
	}

	var resp productResponse
	target := c.baseURL + fmt.Sprintf(productPathFmt, url.PathEscape(barcode))
	if err := c.getJSON(ctx, logger, target, &resp); err != nil {
		return Product{}, err
	}
	if resp.Status == 0 && resp.Product.Code == "" {
		return Product{}, ErrProductNotFound
	}
	if resp.Product.Code == "" {
		resp.Product.Code = barcode
	}

	c.cache.Add(barcode, resp.Product)
	return resp.Product, nil
}

// getJSON performs a GET with exponential backoff on transport errors and 5xx
// answers. Other non-200 statuses fail immediately.
func (c *Client) getJSON(ctx context.Context, logger *zerolog.Logger, target string, out interface{}) error {
	attempt := 0
	retryable := false

	op := func() error {
		attempt++
		retryable = false

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("failed to create request: %w", err))
		}
		req.Header.Set("Accept", "application/json")
		if c.userAgent != "" {
			req.Header.Set("User-Agent", c.userAgent)
		}

		logger.Debug().Msgf("Attempt %d: Calling Open Food Facts...", attempt)

		resp, err := c.http.Do(req)
		if err != nil {
			err = fmt.Errorf("request failed: %w", err)
			logger.Warn().Err(err).Msgf("Attempt %d failed", attempt)
			retryable = true
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodySize))
			if resp.StatusCode == http.StatusNotFound {
				return backoff.Permanent(ErrProductNotFound)
			}
			err := fmt.Errorf("API returned non-200 status: %s, Body: %s", resp.Status, string(body))
			if resp.StatusCode < http.StatusInternalServerError {
				return backoff.Permanent(err)
			}
			logger.Warn().Err(err).Msgf("Attempt %d failed", attempt)
			retryable = true
			return err
		}

		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return backoff.Permanent(fmt.Errorf("failed to decode response: %w", err))
		}
		return nil
	}

	err := backoff.Retry(op, backoff.WithContext(c.backOff(), ctx))
	if err == nil {
		return nil
	}

	// Retry unwraps permanent errors, so only exhausted retryable ones get the summary.
	if !retryable || ctx.Err() != nil {
		return err
	}
	return fmt.Errorf("failed to call Open Food Facts after %d attempts: %w", attempt, err)
}

// backOff returns the retry schedule: exponential from initialBackoff, at most
// maxRetries attempts in total.
func (c *Client) backOff() backoff.BackOff {
	expo := backoff.NewExponentialBackOff()
	expo.InitialInterval = initialBackoff
	expo.Multiplier = 2
	expo.RandomizationFactor = 0
	expo.MaxElapsedTime = 0
	return backoff.WithMaxRetries(expo, uint64(c.maxRetries-1))
}
