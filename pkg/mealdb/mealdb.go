package mealdb

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	defaultBaseURL       = "https://www.themealdb.com/api/json/v1/1"
	maxResponseSizeBytes = 4 << 20
)

type Config struct {
	BaseURL string        `envconfig:"BASE_URL" split_words:"true" default:"https://www.themealdb.com/api/json/v1/1"`
	Timeout time.Duration `envconfig:"TIMEOUT" split_words:"true" default:"15s"`
}

// Client wraps the public TheMealDB REST endpoints, one method per route.
// HTTP and decode errors are returned to the caller, never swallowed.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

type Option func(*Client)

func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

func NewClient(cfg Config, opts ...Option) (*Client, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	if _, err := url.ParseRequestURI(baseURL); err != nil {
		return nil, fmt.Errorf("invalid mealdb base url: %w", err)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	client := &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(client)
		}
	}
	return client, nil
}

// Meal is the raw recipe payload. Ingredient and measure columns are
// positional in the upstream API (strIngredient1..20), so they are decoded
// from the generic map in Ingredients().
type Meal struct {
	ID           string `json:"idMeal"`
	Name         string `json:"strMeal"`
	Category     string `json:"strCategory"`
	Area         string `json:"strArea"`
	Instructions string `json:"strInstructions"`

	raw map[string]string
}

func (m *Meal) UnmarshalJSON(data []byte) error {
	var generic map[string]any
	if err := json.Unmarshal(data, &generic); err != nil {
		return err
	}
	m.raw = make(map[string]string, len(generic))
	for k, v := range generic {
		if s, ok := v.(string); ok {
			m.raw[k] = s
		}
	}
	m.ID = m.raw["idMeal"]
	m.Name = m.raw["strMeal"]
	m.Category = m.raw["strCategory"]
	m.Area = m.raw["strArea"]
	m.Instructions = m.raw["strInstructions"]
	return nil
}

// IngredientMeasure is one positional ingredient/measure pair of a recipe.
type IngredientMeasure struct {
	Ingredient string
	Measure    string
}

// Ingredients returns the non-empty positional pairs in order.
func (m *Meal) Ingredients() []IngredientMeasure {
	var pairs []IngredientMeasure
	for i := 1; i <= 20; i++ {
		ing := strings.TrimSpace(m.raw[fmt.Sprintf("strIngredient%d", i)])
		if ing == "" {
			continue
		}
		pairs = append(pairs, IngredientMeasure{
			Ingredient: ing,
			Measure:    strings.TrimSpace(m.raw[fmt.Sprintf("strMeasure%d", i)]),
		})
	}
	return pairs
}

type mealsPayload struct {
	Meals []Meal `json:"meals"`
}

type ingredientsPayload struct {
	Meals []IngredientListing `json:"meals"`
}

// IngredientListing is one entry of the upstream ingredient catalogue.
type IngredientListing struct {
	ID          string `json:"idIngredient"`
	Name        string `json:"strIngredient"`
	Description string `json:"strDescription"`
	Type        string `json:"strType"`
}

func (c *Client) SearchMealsByName(ctx context.Context, name string) ([]Meal, error) {
	return c.meals(ctx, "search.php", url.Values{"s": {name}})
}

func (c *Client) SearchMealsByFirstLetter(ctx context.Context, letter string) ([]Meal, error) {
	return c.meals(ctx, "search.php", url.Values{"f": {letter}})
}

func (c *Client) LookupMealByID(ctx context.Context, mealID string) (*Meal, error) {
	meals, err := c.meals(ctx, "lookup.php", url.Values{"i": {mealID}})
	if err != nil {
		return nil, err
	}
	if len(meals) == 0 {
		return nil, nil
	}
	return &meals[0], nil
}

func (c *Client) RandomMeal(ctx context.Context) (*Meal, error) {
	meals, err := c.meals(ctx, "random.php", nil)
	if err != nil {
		return nil, err
	}
	if len(meals) == 0 {
		return nil, nil
	}
	return &meals[0], nil
}

func (c *Client) FilterByIngredient(ctx context.Context, ingredient string) ([]Meal, error) {
	return c.meals(ctx, "filter.php", url.Values{"i": {ingredient}})
}

func (c *Client) FilterByCategory(ctx context.Context, category string) ([]Meal, error) {
	return c.meals(ctx, "filter.php", url.Values{"c": {category}})
}

func (c *Client) FilterByArea(ctx context.Context, area string) ([]Meal, error) {
	return c.meals(ctx, "filter.php", url.Values{"a": {area}})
}

func (c *Client) ListAllIngredients(ctx context.Context) ([]IngredientListing, error) {
	raw, err := c.get(ctx, "list.php", url.Values{"i": {"list"}})
	if err != nil {
		return nil, err
	}
	var payload ingredientsPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, fmt.Errorf("decode ingredient list: %w", err)
	}
	return payload.Meals, nil
}

func (c *Client) meals(ctx context.Context, endpoint string, params url.Values) ([]Meal, error) {
	raw, err := c.get(ctx, endpoint, params)
	if err != nil {
		return nil, err
	}
	var payload mealsPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, fmt.Errorf("decode meals payload: %w", err)
	}
	return payload.Meals, nil
}

func (c *Client) get(ctx context.Context, endpoint string, params url.Values) ([]byte, error) {
	if c == nil || c.httpClient == nil {
		return nil, errors.New("nil mealdb client")
	}

	target := c.baseURL + "/" + endpoint
	if len(params) > 0 {
		target += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("build mealdb request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute mealdb request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSizeBytes))
	if err != nil {
		return nil, fmt.Errorf("read mealdb response: %w", err)
	}
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, fmt.Errorf("mealdb http status=%d body=%s", resp.StatusCode, string(raw))
	}
	return raw, nil
}
