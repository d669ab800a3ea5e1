package classify

import (
	"testing"

	"github.com/smartblur/smartblur/internal/logger"
)

func TestClassifyBuiltinRules(t *testing.T) {
	c := New(logger.NewNop())

	t.Run("Email", func(t *testing.T) {
		for _, text := range []string{
			"john@example.com",
			"contact me at jane.doe+test@mail.example.co.uk today",
			"a_b%c@sub.domain.io",
		} {
			result := c.Classify(text, nil)
			if !result.Sensitive || result.Category != CategoryEmail {
				t.Errorf("Classify(%q) = %+v, want Email", text, result)
			}
		}
	})

	t.Run("SSNBeatsPhone", func(t *testing.T) {
		// The bare 4-digit phone fragment would match inside an SSN; the
		// exact SSN shape must win.
		result := c.Classify("123-45-6789", nil)
		if result.Category != CategorySSN {
			t.Errorf("Classify(SSN) = %+v, want SSN", result)
		}
	})

	t.Run("SSNFragments", func(t *testing.T) {
		for _, text := range []string{"ssn ends 123-45", "last part 12-3456"} {
			result := c.Classify(text, nil)
			if !result.Sensitive {
				t.Errorf("Classify(%q) not sensitive, want SSN-ish match", text)
			}
		}
	})

	t.Run("CreditCard", func(t *testing.T) {
		for _, text := range []string{
			"4111 1111 1111 1111",
			"4111-1111-1111-1111",
			"4111111111111111",
		} {
			result := c.Classify(text, nil)
			if result.Category != CategoryCreditCard {
				t.Errorf("Classify(%q) = %+v, want Credit Card", text, result)
			}
		}
	})

	t.Run("CardFragmentClassifiesAsPhone", func(t *testing.T) {
		// Two bare 4-digit groups reach the phone fragments before the
		// card fragment rule.
		result := c.Classify("1234 5678", nil)
		if result.Category != CategoryPhone {
			t.Errorf("Classify(two 4-digit groups) = %+v, want Phone", result)
		}
	})

	t.Run("Phone", func(t *testing.T) {
		for _, text := range []string{
			"555-123-4567",
			"call (555) 123-4567",
			"5551234567",
			"+1 5551234567",
		} {
			result := c.Classify(text, nil)
			if result.Category != CategoryPhone {
				t.Errorf("Classify(%q) = %+v, want Phone", text, result)
			}
		}
	})

	t.Run("PhoneFragmentNoise", func(t *testing.T) {
		// Bare 4-digit runs are accepted heuristic noise, not a defect.
		result := c.Classify("established 1999", nil)
		if result.Category != CategoryPhone {
			t.Errorf("Classify(year) = %+v, want Phone (documented over-match)", result)
		}
	})

	t.Run("Address", func(t *testing.T) {
		for _, text := range []string{
			"123 Main Street",
			"lives on Elm Avenue",
			"Springfield, IL 62704",
			"90210",
		} {
			result := c.Classify(text, nil)
			if !result.Sensitive {
				t.Errorf("Classify(%q) not sensitive, want a match", text)
			}
		}
	})

	t.Run("SafeText", func(t *testing.T) {
		result := c.Classify("safe text with no patterns", nil)
		if result.Sensitive || result.Category != "" {
			t.Errorf("Classify(safe) = %+v, want not sensitive", result)
		}
	})

	t.Run("Deterministic", func(t *testing.T) {
		a := c.Classify("john@example.com", nil)
		b := c.Classify("john@example.com", nil)
		if a != b {
			t.Errorf("same input gave different results: %+v vs %+v", a, b)
		}
	})
}

func TestCustomPatterns(t *testing.T) {
	c := New(logger.NewNop())

	t.Run("InvalidRegexRejected", func(t *testing.T) {
		if _, err := NewCustomPattern("Broken", "EMP-[\\d"); err == nil {
			t.Fatal("expected error for invalid regex")
		}
	})

	t.Run("EmptyFieldsRejected", func(t *testing.T) {
		if _, err := NewCustomPattern("", "x"); err == nil {
			t.Error("expected error for empty name")
		}
		if _, err := NewCustomPattern("x", ""); err == nil {
			t.Error("expected error for empty expression")
		}
	})

	// Texts below deliberately avoid digit runs that the built-in phone
	// fragments would claim first.
	t.Run("EnabledMatch", func(t *testing.T) {
		p, err := NewCustomPattern("Employee ID", `EMP-[A-Z]{2}\d{2}`)
		if err != nil {
			t.Fatalf("NewCustomPattern: %v", err)
		}

		result := c.Classify("badge emp-ab12", []*CustomPattern{p})
		if !result.Sensitive || result.Category != CustomCategory("Employee ID") {
			t.Errorf("Classify = %+v, want Custom: Employee ID (case-insensitive)", result)
		}
	})

	t.Run("DisabledNeverMatches", func(t *testing.T) {
		p, _ := NewCustomPattern("Employee ID", `EMP-[A-Z]{2}\d{2}`)
		p.Enabled = false

		result := c.Classify("badge EMP-AB12", []*CustomPattern{p})
		if result.Sensitive {
			t.Errorf("disabled pattern matched: %+v", result)
		}

		// Re-enabling reproduces the match on the same text.
		p.Enabled = true
		result = c.Classify("badge EMP-AB12", []*CustomPattern{p})
		if result.Category != CustomCategory("Employee ID") {
			t.Errorf("re-enabled pattern did not match: %+v", result)
		}
	})

	t.Run("InsertionOrderWins", func(t *testing.T) {
		first, _ := NewCustomPattern("First", `token`)
		second, _ := NewCustomPattern("Second", `token`)

		result := c.Classify("a token here", []*CustomPattern{first, second})
		if result.Category != CustomCategory("First") {
			t.Errorf("Classify = %+v, want first inserted pattern", result)
		}
	})

	t.Run("BuiltinBeatsCustom", func(t *testing.T) {
		p, _ := NewCustomPattern("Anything", `.`)
		result := c.Classify("john@example.com", []*CustomPattern{p})
		if result.Category != CategoryEmail {
			t.Errorf("Classify = %+v, want Email before custom", result)
		}
	})
}
