// Package sanitize provides HTML sanitization for user-generated content.
// Uses bluemonday to strip dangerous HTML (script tags, event handlers,
// javascript: URLs) while preserving safe formatting in descriptions and
// GM-only secret spans.
package sanitize

import (
	"regexp"
	"sync"

	"github.com/microcosm-cc/bluemonday"
)

// policy is the singleton bluemonday policy for sanitizing user-generated HTML.
// Initialized once via sync.Once for thread-safe lazy initialization.
var (
	policy     *bluemonday.Policy
	policyOnce sync.Once
)

// getPolicy returns the shared sanitization policy, initializing it on first call.
func getPolicy() *bluemonday.Policy {
	policyOnce.Do(func() {
		policy = bluemonday.UGCPolicy()

		// Class attributes drive formatting in rich-text descriptions.
		policy.AllowAttrs("class").Globally()

		// Tables are allowed in entity descriptions (stat blocks, inventories).
		policy.AllowElements("table", "thead", "tbody", "tfoot", "tr", "td", "th", "colgroup", "col", "caption")
		policy.AllowAttrs("colspan", "rowspan").OnElements("td", "th")

		// Inline GM-only secrets (<span data-secret>) survive sanitization and
		// are stripped per-role at serialization time.
		policy.AllowAttrs("data-secret").OnElements("span")
	})
	return policy
}

// HTML sanitizes user-generated HTML content by stripping dangerous elements
// (script, iframe, event handlers, javascript: URLs) while preserving safe
// formatting tags.
//
// This MUST be called on all user-provided HTML before storing it in the
// database. The sanitized output is safe for rendering via innerHTML.
func HTML(input string) string {
	if input == "" {
		return ""
	}
	return getPolicy().Sanitize(input)
}

// secretSpanRe matches <span data-secret ...>...</span> non-greedily.
var secretSpanRe = regexp.MustCompile(`<span[^>]*\bdata-secret\b[^>]*>.*?</span>`)

// StripSecretsHTML removes all <span data-secret>...</span> elements from HTML.
// Used to hide GM-only inline secrets from players and observers.
func StripSecretsHTML(html string) string {
	if html == "" {
		return ""
	}
	return secretSpanRe.ReplaceAllString(html, "")
}
