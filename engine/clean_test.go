package engine

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCleanStripsScriptAndStyle(t *testing.T) {
	t.Parallel()

	c := NewCleanerService(nil)
	fragment := `<div>
		<script>var ads = true;</script>
		<style>.x { color: red }</style>
		<p>First paragraph.</p>
		<noscript>enable js</noscript>
		<iframe src="https://ads.example.com"></iframe>
		<p>Second paragraph.</p>
	</div>`

	got := c.Clean(fragment, nil, nil)
	assert.Equal(t, "First paragraph.\n\nSecond paragraph.", got)
}

func TestCleanRemovesConfiguredSelectors(t *testing.T) {
	t.Parallel()

	c := NewCleanerService(nil)
	fragment := `<div>
		<div class="sharedaddy">Share this!</div>
		<p>Chapter text.</p>
		<div id="comments">42 comments</div>
	</div>`

	got := c.Clean(fragment, []string{".sharedaddy", "#comments"}, nil)
	assert.Equal(t, "Chapter text.", got)
}

func TestCleanErasesBoilerplateTails(t *testing.T) {
	t.Parallel()

	c := NewCleanerService(nil)
	fragment := `<div>
		<p>The real story ends here.</p>
		<p>Enhance your reading experience by removing ads for $4.99 a month.</p>
		<p>Excerpt From Shadow Slave. This material may be protected by copyright.</p>
	</div>`

	got := c.Clean(fragment, nil, nil)
	assert.Equal(t, "The real story ends here.", got)
}

func TestCleanAppliesSourcePatterns(t *testing.T) {
	t.Parallel()

	c := NewCleanerService(nil)
	fragment := `<div>
		<p>Prose.</p>
		<p>Traducido por MiguelTrads</p>
	</div>`

	got := c.Clean(fragment, nil, []string{`traducido por [^\n]*`})
	assert.Equal(t, "Prose.", got)

	// Patterns match case-insensitively like the builtins.
	got = c.Clean(fragment, nil, []string{`TRADUCIDO POR [^\n]*`})
	assert.Equal(t, "Prose.", got)
}

func TestCleanIgnoresInvalidPattern(t *testing.T) {
	t.Parallel()

	c := NewCleanerService(nil)

	// A broken pattern is skipped, not fatal, and the rest still apply.
	got := c.Clean("<p>Keep me.</p>", nil, []string{`(`, `drop me`})
	assert.Equal(t, "Keep me.", got)
}

func TestCleanCollapsesBlankRuns(t *testing.T) {
	t.Parallel()

	c := NewCleanerService(nil)
	fragment := "<p>One.</p><p>  </p><p>Two.</p><p></p><p>Three.</p>"

	got := c.Clean(fragment, nil, nil)
	assert.Equal(t, "One.\n\nTwo.\n\nThree.", got)
	assert.False(t, strings.Contains(got, "\n\n\n"))
}
