package classify

import (
	"github.com/smartblur/smartblur/internal/logger"
	"go.uber.org/zap"
)

// Classifier decides whether a piece of recognized text contains sensitive
// personal information. Classification is a pure function of the text and
// the active custom pattern set; the same inputs always give the same result.
type Classifier struct {
	rules  []builtinRule
	logger *logger.Logger
}

// New creates a classifier with the built-in rule cascade
func New(log *logger.Logger) *Classifier {
	c := &Classifier{
		rules:  defaultRules(),
		logger: log,
	}

	log.Info("Classifier initialized",
		zap.Int("builtin_rules", len(c.rules)),
	)

	return c
}

// Classify runs the first-match cascade over text. Built-in rules are tested
// in declared order, then enabled custom patterns in insertion order.
func (c *Classifier) Classify(text string, patterns []*CustomPattern) Result {
	for _, rule := range c.rules {
		if rule.Matches(text) {
			c.logger.Debug("Sensitive text detected",
				zap.String("category", string(rule.Category)),
			)
			return Result{Sensitive: true, Category: rule.Category}
		}
	}

	for _, p := range patterns {
		if !p.Enabled {
			continue
		}
		if p.matches(text) {
			c.logger.Debug("Sensitive text detected",
				zap.String("category", string(CustomCategory(p.Name))),
			)
			return Result{Sensitive: true, Category: CustomCategory(p.Name)}
		}
	}

	return Result{}
}
