package policy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/facet/internal/common"
)

func testSource() *common.SourceConfig {
	return &common.SourceConfig{
		Domain:    "www.example-surfaces.com",
		StartURLs: []string{"https://www.example-surfaces.com/"},
	}
}

func TestIsAllowed_SchemeAndHost(t *testing.T) {
	engine := NewEngine(nil)
	source := testSource()

	assert.True(t, engine.IsAllowed("https://www.example-surfaces.com/materials", source))
	assert.True(t, engine.IsAllowed("http://WWW.EXAMPLE-SURFACES.COM/materials", source))
	assert.False(t, engine.IsAllowed("ftp://www.example-surfaces.com/materials", source))
	assert.False(t, engine.IsAllowed("https://other.example.com/materials", source))
	assert.False(t, engine.IsAllowed("https://sub.example-surfaces.com/materials", source))
}

func TestIsAllowed_DeniedExtensions(t *testing.T) {
	engine := NewEngine(nil)
	source := testSource()

	assert.False(t, engine.IsAllowed("https://www.example-surfaces.com/brochure.pdf", source))
	assert.False(t, engine.IsAllowed("https://www.example-surfaces.com/img/kitchen.JPG", source))
	assert.True(t, engine.IsAllowed("https://www.example-surfaces.com/gallery", source))
}

func TestIsAllowed_DenySubstrings(t *testing.T) {
	engine := NewEngine(nil)
	source := testSource()
	source.DenySubstrings = []string{"/showroom-booking"}

	assert.False(t, engine.IsAllowed("https://www.example-surfaces.com/cart/items", source))
	assert.False(t, engine.IsAllowed("https://www.example-surfaces.com/account", source))
	assert.False(t, engine.IsAllowed("https://www.example-surfaces.com/showroom-booking/new", source))
	assert.True(t, engine.IsAllowed("https://www.example-surfaces.com/showroom", source))
}

func TestIsAllowed_PrefixesInferredFromStartURLs(t *testing.T) {
	engine := NewEngine(nil)
	source := testSource()
	source.StartURLs = []string{"https://www.example-surfaces.com/en/"}

	assert.True(t, engine.IsAllowed("https://www.example-surfaces.com/en/materials", source))
	assert.False(t, engine.IsAllowed("https://www.example-surfaces.com/de/materialien", source))

	// A root start URL opens the whole domain.
	source.StartURLs = []string{"https://www.example-surfaces.com/"}
	assert.True(t, engine.IsAllowed("https://www.example-surfaces.com/de/materialien", source))
}

func TestIsAllowed_ExplicitPrefixesWin(t *testing.T) {
	engine := NewEngine(nil)
	source := testSource()
	source.AllowedPrefixes = []string{"/materials"}

	assert.True(t, engine.IsAllowed("https://www.example-surfaces.com/materials/quartz", source))
	assert.False(t, engine.IsAllowed("https://www.example-surfaces.com/blog/post", source))
}

func TestCanonicalize(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "strips fragment",
			input:    "https://example.com/page#section-2",
			expected: "https://example.com/page",
		},
		{
			name:     "lowercases host",
			input:    "https://Example.COM/Page",
			expected: "https://example.com/Page",
		},
		{
			name:     "removes tracking params",
			input:    "https://example.com/p?utm_source=x&utm_medium=y&gclid=abc&size=60",
			expected: "https://example.com/p?size=60",
		},
		{
			name:     "sorts remaining params",
			input:    "https://example.com/p?b=2&a=1",
			expected: "https://example.com/p?a=1&b=2",
		},
		{
			name:     "adds root slash",
			input:    "https://example.com",
			expected: "https://example.com/",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Canonicalize(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestCanonicalize_Idempotent(t *testing.T) {
	once, err := Canonicalize("https://Example.com/p?utm_source=x&b=2&a=1#frag")
	require.NoError(t, err)

	twice, err := Canonicalize(once)
	require.NoError(t, err)
	assert.Equal(t, once, twice)
}
