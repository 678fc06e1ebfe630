package extract_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/nexa-agent/internal/extract"
)

const page = `<html><head><title> EV Makers </title><style>p{}</style></head>
<body><h1>Top makers</h1><p>Tesla   leads.</p><script>var x=1;</script>
<ul><li><a href="/byd">BYD</a></li><li><a href="https://vw.com">VW</a></li><li><a href="#top">top</a></li></ul></body></html>`

func TestHTMLToText(t *testing.T) {
	tests := map[string]struct {
		html    string
		expText string
	}{
		"Empty input should return empty text": {
			html:    "  ",
			expText: "",
		},
		"Hidden elements should be skipped and whitespace compacted": {
			html:    page,
			expText: "Top makers\nTesla leads.\nBYD\nVW\ntop",
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			got, err := extract.HTMLToText(test.html)
			require.NoError(t, err)
			assert.Equal(t, test.expText, got)
		})
	}
}

func TestTitle(t *testing.T) {
	assert.Equal(t, "EV Makers", extract.Title(page))
	assert.Equal(t, "", extract.Title("<p>no title</p>"))
}

func TestLinks(t *testing.T) {
	links, err := extract.Links(page, "https://example.com/list", 10)
	require.NoError(t, err)
	assert.Equal(t, []extract.Link{
		{Href: "https://example.com/byd", Text: "BYD"},
		{Href: "https://vw.com", Text: "VW"},
	}, links)

	links, err = extract.Links(page, "", 1)
	require.NoError(t, err)
	assert.Len(t, links, 1)
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", extract.Truncate("abcdef", 3))
	assert.Equal(t, "abc", extract.Truncate("abc", 10))
	// "é" is two bytes; cutting inside it must back off.
	assert.Equal(t, "a", extract.Truncate("aé", 2))
}

func TestIsPDF(t *testing.T) {
	assert.True(t, extract.IsPDF([]byte("%PDF-1.7 ..."), ""))
	assert.True(t, extract.IsPDF([]byte("x"), "application/pdf"))
	assert.False(t, extract.IsPDF([]byte("<html>"), "text/html"))
}
