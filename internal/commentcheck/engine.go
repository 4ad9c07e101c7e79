// Package commentcheck fetches an issue's comments and turns the latest
// Jules signal into an actionable check result. It reads, classifies and
// nothing else; all mutation lives in the workflow processor.
package commentcheck

import (
	"context"
	"log"
	"sort"
	"time"

	"github.com/julesqueue/julesq/internal/classifier"
	"github.com/julesqueue/julesq/internal/config"
	"github.com/julesqueue/julesq/internal/domain"
	"github.com/julesqueue/julesq/internal/github"
)

// Engine runs comment checks against a GitHub client.
type Engine struct {
	gh         github.Client
	classifier *classifier.Classifier
	aliases    []string
	fallback   time.Duration

	// injectable for tests
	now   func() time.Time
	sleep func(time.Duration)
}

// New creates an Engine using the given client and configuration.
func New(gh github.Client, cfg *config.Config) *Engine {
	return &Engine{
		gh:         gh,
		classifier: classifier.New(cfg.Classifier),
		aliases:    cfg.GitHub.BotUsernames,
		fallback:   time.Duration(cfg.Classifier.FallbackWindowMinutes * float64(time.Minute)),
		now:        time.Now,
		sleep:      time.Sleep,
	}
}

// Check fetches the issue's comments (with bounded retries), picks the
// bot comment to trust and classifies it. A total fetch failure is not
// fatal: the result degrades to no_action and the task stays flagged
// for the next sweep to reconsider.
func (e *Engine) Check(ctx context.Context, owner, repo string, issueNumber, maxRetries int, minConfidence float64) domain.CheckResult {
	if maxRetries < 1 {
		maxRetries = 1
	}

	comments, failures := e.fetchWithRetry(ctx, owner, repo, issueNumber, maxRetries)
	if comments == nil {
		return domain.CheckResult{Action: domain.ClassNoAction, RetryCount: failures}
	}

	botComments := e.filterBotComments(comments)
	if len(botComments) == 0 {
		return domain.CheckResult{Action: domain.ClassNoAction, RetryCount: failures}
	}

	now := e.now()
	latest := &botComments[0]
	analysis := e.classifier.Classify(latest, now)

	// An old comment no longer describes the issue's current state,
	// whatever it says.
	if e.classifier.IsStale(analysis) {
		return domain.CheckResult{
			Action:     domain.ClassNoAction,
			Comment:    latest,
			Analysis:   &analysis,
			RetryCount: failures,
		}
	}

	if analysis.Confidence < minConfidence {
		// The latest comment may be a partial or interim message. An
		// earlier clear signal within the same burst is more
		// trustworthy than a vague fresh one.
		if second := e.recentSecond(botComments, now); second != nil {
			secondAnalysis := e.classifier.Classify(second, now)
			if secondAnalysis.Confidence >= minConfidence {
				return domain.CheckResult{
					Action:     secondAnalysis.Classification,
					Comment:    second,
					Analysis:   &secondAnalysis,
					RetryCount: failures,
				}
			}
		}
		return domain.CheckResult{
			Action:     domain.ClassUnknown,
			Comment:    latest,
			Analysis:   &analysis,
			RetryCount: failures,
		}
	}

	return domain.CheckResult{
		Action:     analysis.Classification,
		Comment:    latest,
		Analysis:   &analysis,
		RetryCount: failures,
	}
}

// fetchWithRetry attempts the comment fetch up to maxRetries times with
// exponential backoff (1s, 2s, 4s, ...). Returns nil comments and the
// attempt count when every attempt failed.
func (e *Engine) fetchWithRetry(ctx context.Context, owner, repo string, issueNumber, maxRetries int) ([]domain.Comment, int) {
	for attempt := 0; attempt < maxRetries; attempt++ {
		comments, err := e.gh.ListComments(ctx, owner, repo, issueNumber)
		if err == nil {
			return comments, attempt
		}

		log.Printf("comment fetch %s/%s#%d attempt %d/%d failed: %v",
			owner, repo, issueNumber, attempt+1, maxRetries, err)

		if attempt < maxRetries-1 {
			e.sleep(time.Duration(1<<attempt) * time.Second)
		}
	}
	return nil, maxRetries
}

// filterBotComments keeps comments authored by a known Jules alias,
// newest first.
func (e *Engine) filterBotComments(comments []domain.Comment) []domain.Comment {
	var bot []domain.Comment
	for _, c := range comments {
		if github.IsBotUser(c.Author, e.aliases) {
			bot = append(bot, c)
		}
	}
	sort.Slice(bot, func(i, j int) bool {
		return bot[i].CreatedAt.After(bot[j].CreatedAt)
	})
	return bot
}

// recentSecond returns the second-most-recent bot comment if it falls
// inside the fallback window, else nil.
func (e *Engine) recentSecond(botComments []domain.Comment, now time.Time) *domain.Comment {
	if len(botComments) < 2 {
		return nil
	}
	second := &botComments[1]
	if now.Sub(second.CreatedAt) > e.fallback {
		return nil
	}
	return second
}
