package sanitizer

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitize(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "Strips data attributes",
			input:    `<div data-mce-fragment="1" class="desc" data-id='42'>Text</div>`,
			expected: `<div class=&quot;desc&quot;>Text</div>`,
		},
		{
			name:     "Keeps quote escaping inside attributes",
			input:    `<a href="https://example.com/?a=1&b=2">It's</a>`,
			expected: `<a href=&quot;https://example.com/?a=1&b=2&quot;>It&#x27;s</a>`,
		},
		{
			name:     "Restores existing entities",
			input:    `<p>Fish &amp; Chips &lt;3</p>`,
			expected: `<p>Fish &amp; Chips &lt;3</p>`,
		},
		{
			name:     "Collapses whitespace between tags",
			input:    "<ul>\n  <li>One</li>   <li>Two</li>\n</ul>",
			expected: "<ul><li>One</li><li>Two</li></ul>",
		},
		{
			name:     "Spaces span followed by tag",
			input:    `<p><span style="color: red"><strong>Hot</strong></span></p>`,
			expected: `<p><span style=&quot;color: red&quot;> <strong>Hot</strong></span></p>`,
		},
		{
			name:     "Spaces nested spans",
			input:    `<span><span><i>x</i></span></span>`,
			expected: `<span> <span> <i>x</i></span></span>`,
		},
		{
			name:     "Span followed by closing tag is untouched",
			input:    `<p><span class="gap"></span><b>x</b></p>`,
			expected: `<p><span class=&quot;gap&quot;></span><b>x</b></p>`,
		},
		{
			name:     "Span followed by text is untouched",
			input:    `<span>plain</span>`,
			expected: `<span>plain</span>`,
		},
		{
			name:     "Removes newlines inside text",
			input:    "<p>Brushless\n   motor with\r\n  4S LiPo</p>",
			expected: "<p>Brushlessmotor with4S LiPo</p>",
		},
		{
			name:     "Empty input",
			input:    "",
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Sanitize(tt.input))
		})
	}
}

func TestSanitizeOutputProperties(t *testing.T) {
	inputs := []string{
		"<div data-a=\"1\">\n <p data-b='x' id=\"p\">A\n B</p>\n\n <ul>\n<li>1</li>\n</ul></div>",
		"<table data-table-width=\"100\"><tr>\n\t<td>x</td>\n</tr></table>",
		"\n\n<p>lead</p>\n",
	}

	dataAttr := regexp.MustCompile(`\sdata-[\w\-.:]*\s*=`)
	blankBetweenTags := regexp.MustCompile(`>\s+<`)

	for _, in := range inputs {
		out := Sanitize(in)
		assert.False(t, dataAttr.MatchString(out), out)
		assert.False(t, blankBetweenTags.MatchString(out), out)
		assert.NotContains(t, out, "\n")
	}
}

func TestSanitizeIsDeterministic(t *testing.T) {
	in := "<div data-x=\"1\"><span class=\"a\"><em>x</em></span>\n</div>"
	assert.Equal(t, Sanitize(in), Sanitize(in))
}

func TestNewWithCustomPrefix(t *testing.T) {
	s := New("shopify")
	out := s.Sanitize(`<div shopify-section="main" data-keep="1">x</div>`)

	assert.Equal(t, `<div data-keep=&quot;1&quot;>x</div>`, out)
}
