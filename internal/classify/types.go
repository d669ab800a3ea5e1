package classify

import (
	"fmt"
	"regexp"
	"strings"
)

// Category identifies the kind of sensitive information found in a text
// region. User-defined patterns produce "Custom: <name>" categories.
type Category string

const (
	CategoryEmail      Category = "Email"
	CategoryPhone      Category = "Phone"
	CategorySSN        Category = "SSN"
	CategoryCreditCard Category = "Credit Card"
	CategoryAddress    Category = "Address"
)

const customPrefix = "Custom: "

// CustomCategory builds the category for a user-defined pattern
func CustomCategory(name string) Category {
	return Category(customPrefix + name)
}

// IsCustom reports whether a category came from a user-defined pattern
func (c Category) IsCustom() bool {
	return strings.HasPrefix(string(c), customPrefix)
}

// Result is the outcome of classifying one text region
type Result struct {
	Sensitive bool     `json:"sensitive"`
	Category  Category `json:"category,omitempty"`
}

// CustomPattern is a user-defined detection rule. The regular expression is
// compiled once at creation time; matching is always case-insensitive.
type CustomPattern struct {
	Name    string `json:"name"`
	Pattern string `json:"pattern"`
	Enabled bool   `json:"enabled"`

	re *regexp.Regexp
}

// NewCustomPattern validates and compiles a user-supplied pattern. Invalid
// regular expression syntax is rejected here and never reaches matching.
func NewCustomPattern(name, pattern string) (*CustomPattern, error) {
	if name == "" {
		return nil, fmt.Errorf("pattern name is required")
	}
	if pattern == "" {
		return nil, fmt.Errorf("pattern expression is required")
	}

	re, err := regexp.Compile("(?i)" + pattern)
	if err != nil {
		return nil, fmt.Errorf("invalid regex %q: %w", pattern, err)
	}

	return &CustomPattern{
		Name:    name,
		Pattern: pattern,
		Enabled: true,
		re:      re,
	}, nil
}

// matches reports whether the pattern matches text. A pattern that was never
// compiled (zero value) is skipped rather than treated as an error.
func (p *CustomPattern) matches(text string) bool {
	return p.re != nil && p.re.MatchString(text)
}
