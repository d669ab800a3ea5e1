package classify

import (
	"regexp"
	"strings"
)

// builtinRule is one step of the first-match cascade. Later steps never
// override earlier matches, so rule order is load-bearing.
type builtinRule struct {
	Category Category
	Matches  func(text string) bool
}

var (
	emailPattern = regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`)

	ssnExactPattern = regexp.MustCompile(`\b\d{3}-\d{2}-\d{4}\b`)

	creditCardPattern = regexp.MustCompile(`\b\d{4}[\s-]?\d{4}[\s-]?\d{4}[\s-]?\d{4}\b`)

	creditCardFragmentPattern = regexp.MustCompile(`\b\d{4}\s+\d{4}\b`)

	// Ordered from strict to loose. The bare 4-digit and 3-3 fragment rules
	// are intentionally over-broad and will fire on years or short codes;
	// that noise is accepted, not a defect.
	phonePatterns = []*regexp.Regexp{
		regexp.MustCompile(`\b\d{3}[-.\s]?\d{3}[-.\s]?\d{4}\b`),
		regexp.MustCompile(`\(\d{3}\)\s*\d{3}[-.\s]?\d{4}\b`),
		regexp.MustCompile(`\b\d{10,11}\b`),
		regexp.MustCompile(`\+\d{1,3}\s?\d{8,12}\b`),
		regexp.MustCompile(`\(\d{3}\)\s*\d{3}\b`),
		regexp.MustCompile(`\b\d{4}\b`),
		regexp.MustCompile(`\b\d{3}-\d{3}\b`),
	}

	// Standalone partial SSN shapes. Equally over-broad by intent.
	ssnFragmentPatterns = []*regexp.Regexp{
		regexp.MustCompile(`\b\d{3}-\d{2}\b`),
		regexp.MustCompile(`\b\d{2}-\d{4}\b`),
	}

	addressKeywords = []string{
		"street", "st.", "avenue", "ave.", "ave ", "road", "rd.",
		" drive ", "dr.", "boulevard", "blvd.", "blvd ", " lane ", "ln.",
		"apartment", "apt.", " apt ", "suite", "ste.", "court", "ct.",
		"place", "pl.", "circle", "cir.", "parkway", "pkwy",
	}

	addressPatterns = []*regexp.Regexp{
		// street number followed by capitalized name(s)
		regexp.MustCompile(`\b\d{1,5}\s+[A-Z][a-z]+(\s+[A-Z][a-z]+)*\b`),
		// ZIP and ZIP+4
		regexp.MustCompile(`\b\d{5}(-\d{4})?\b`),
		// City, ST 12345
		regexp.MustCompile(`\b[A-Z][a-z]+,\s*[A-Z]{2}\s+\d{5}\b`),
	}
)

func matchAny(patterns []*regexp.Regexp) func(string) bool {
	return func(text string) bool {
		for _, p := range patterns {
			if p.MatchString(text) {
				return true
			}
		}
		return false
	}
}

func matchAddress(text string) bool {
	lower := strings.ToLower(text)
	for _, keyword := range addressKeywords {
		if strings.Contains(lower, keyword) {
			return true
		}
	}
	return matchAny(addressPatterns)(text)
}

// defaultRules returns the built-in cascade. The exact SSN shape and the
// full 16-digit card shape are tested before the phone cascade: the loose
// phone fragments would otherwise swallow both (a bare 4-digit run matches
// inside either). The two-group card fragment stays behind the phone rules,
// so a bare `NNNN NNNN` classifies as Phone.
func defaultRules() []builtinRule {
	return []builtinRule{
		{Category: CategoryEmail, Matches: emailPattern.MatchString},
		{Category: CategorySSN, Matches: ssnExactPattern.MatchString},
		{Category: CategoryCreditCard, Matches: creditCardPattern.MatchString},
		{Category: CategoryPhone, Matches: matchAny(phonePatterns)},
		{Category: CategorySSN, Matches: matchAny(ssnFragmentPatterns)},
		{Category: CategoryCreditCard, Matches: creditCardFragmentPattern.MatchString},
		{Category: CategoryAddress, Matches: matchAddress},
	}
}
