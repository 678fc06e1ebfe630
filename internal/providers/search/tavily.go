package search

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// ErrNoCredentials is returned when the search backend has no API key.
var ErrNoCredentials = errors.New("search api key not configured")

const defaultTavilyURL = "https://api.tavily.com/search"

type Result struct {
	Title   string `json:"title"`
	Content string `json:"content"`
	URL     string `json:"url"`
}

type Response struct {
	Answer  string   `json:"answer,omitempty"`
	Results []Result `json:"results"`
}

// Tavily is a client for the Tavily search REST API.
type Tavily struct {
	APIKey     string
	URL        string
	MaxResults int
	HTTP       *http.Client
}

func (t *Tavily) Search(ctx context.Context, query string) (*Response, error) {
	if t == nil || t.APIKey == "" {
		return nil, ErrNoCredentials
	}
	max := t.MaxResults
	if max <= 0 {
		max = 5
	}
	body, err := json.Marshal(map[string]any{
		"api_key":             t.APIKey,
		"query":               query,
		"search_depth":        "basic",
		"max_results":         max,
		"include_answer":      true,
		"include_raw_content": false,
	})
	if err != nil {
		return nil, err
	}
	url := t.URL
	if url == "" {
		url = defaultTavilyURL
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	hc := t.HTTP
	if hc == nil {
		hc = &http.Client{Timeout: 20 * time.Second}
	}
	res, err := hc.Do(req)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(res.Body, 512))
		return nil, fmt.Errorf("tavily status %d: %s", res.StatusCode, bytes.TrimSpace(msg))
	}
	var out Response
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode tavily response: %w", err)
	}
	return &out, nil
}
