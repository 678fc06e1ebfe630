package search_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/nexa-agent/internal/providers/search"
)

func TestTavilySearch(t *testing.T) {
	tests := map[string]struct {
		apiKey  string
		handler http.HandlerFunc
		expResp *search.Response
		expErr  error
		anyErr  bool
	}{
		"Missing API key should fail without calling the backend": {
			handler: func(w http.ResponseWriter, r *http.Request) {
				t.Fatal("backend should not be called")
			},
			expErr: search.ErrNoCredentials,
		},

		"A successful search should decode answer and results": {
			apiKey: "tvly-key",
			handler: func(w http.ResponseWriter, r *http.Request) {
				var body map[string]any
				require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
				assert.Equal(t, "tvly-key", body["api_key"])
				assert.Equal(t, "ev makers", body["query"])
				assert.Equal(t, true, body["include_answer"])
				_, _ = w.Write([]byte(`{"answer":"Tesla and BYD","results":[{"title":"EVs","content":"c","url":"https://e.com"}]}`))
			},
			expResp: &search.Response{
				Answer:  "Tesla and BYD",
				Results: []search.Result{{Title: "EVs", Content: "c", URL: "https://e.com"}},
			},
		},

		"A non 2xx status should fail": {
			apiKey: "tvly-key",
			handler: func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "quota", http.StatusTooManyRequests)
			},
			anyErr: true,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			srv := httptest.NewServer(test.handler)
			defer srv.Close()

			c := &search.Tavily{APIKey: test.apiKey, URL: srv.URL}
			resp, err := c.Search(context.Background(), "ev makers")
			switch {
			case test.expErr != nil:
				assert.ErrorIs(t, err, test.expErr)
			case test.anyErr:
				assert.Error(t, err)
			default:
				require.NoError(t, err)
				assert.Equal(t, test.expResp, resp)
			}
		})
	}
}
