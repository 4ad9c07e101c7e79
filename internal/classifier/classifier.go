// Package classifier decides what a Jules comment means using
// case-insensitive substring heuristics. It is pure: no I/O, and the
// same comment and clock always produce the same analysis.
package classifier

import (
	"strings"
	"time"

	"github.com/julesqueue/julesq/internal/config"
	"github.com/julesqueue/julesq/internal/domain"
)

// Classifier scores comments against the configured pattern sets.
type Classifier struct {
	cfg config.ClassifierConfig
}

// New creates a Classifier from the given configuration.
func New(cfg config.ClassifierConfig) *Classifier {
	return &Classifier{cfg: cfg}
}

// Classify analyzes a single comment. A nil-bodied or empty comment
// classifies as unknown with zero confidence.
func (c *Classifier) Classify(comment *domain.Comment, now time.Time) domain.CommentAnalysis {
	analysis := domain.CommentAnalysis{
		Classification: domain.ClassUnknown,
		Comment:        comment,
		AgeMinutes:     now.Sub(comment.CreatedAt).Minutes(),
	}

	body := strings.ToLower(comment.Body)
	if body == "" {
		return analysis
	}

	if matched := matchPatterns(body, c.cfg.TaskLimitPatterns); len(matched) > 0 {
		analysis.Classification = domain.ClassTaskLimit
		analysis.Confidence = clamp(c.cfg.TaskLimitBase + c.cfg.TaskLimitPerMatch*float64(len(matched)))
		analysis.PatternsMatched = matched
		return analysis
	}

	if matched := matchPatterns(body, c.cfg.WorkingPatterns); len(matched) > 0 {
		analysis.Classification = domain.ClassWorking
		analysis.Confidence = clamp(c.cfg.WorkingBase + c.cfg.WorkingPerMatch*float64(len(matched)))
		analysis.PatternsMatched = matched
		return analysis
	}

	return analysis
}

// IsStale reports whether an analysis describes a comment too old to
// still reflect the issue's current state.
func (c *Classifier) IsStale(analysis domain.CommentAnalysis) bool {
	return analysis.AgeMinutes > c.cfg.StaleAfterMinutes
}

func matchPatterns(body string, patterns []string) []string {
	var matched []string
	for _, p := range patterns {
		if p == "" {
			continue
		}
		if strings.Contains(body, strings.ToLower(p)) {
			matched = append(matched, p)
		}
	}
	return dropSubsumed(matched)
}

// dropSubsumed removes matched patterns contained in another matched
// pattern, so a phrase and a shorter phrase inside it count as one
// match rather than two.
func dropSubsumed(matched []string) []string {
	if len(matched) < 2 {
		return matched
	}
	kept := make([]string, 0, len(matched))
	for i, p := range matched {
		lp := strings.ToLower(p)
		subsumed := false
		for j, q := range matched {
			if i == j {
				continue
			}
			lq := strings.ToLower(q)
			if lq == lp {
				if j < i {
					subsumed = true
					break
				}
				continue
			}
			if strings.Contains(lq, lp) {
				subsumed = true
				break
			}
		}
		if !subsumed {
			kept = append(kept, p)
		}
	}
	return kept
}

func clamp(v float64) float64 {
	if v > 1 {
		return 1
	}
	if v < 0 {
		return 0
	}
	return v
}
