// Package triage scores incoming messages for notification importance.
package triage

import (
	"context"
	"strconv"
	"strings"
	"unicode"

	"go.uber.org/zap"

	"github.com/groupdigest/summary-platform/internal/engine"
	"github.com/groupdigest/summary-platform/internal/prompt"
	"github.com/groupdigest/summary-platform/pkg/logger"
	"github.com/groupdigest/summary-platform/pkg/metrics"
)

const (
	scoreTrivial  = 0.1
	scoreUrgent   = 0.9
	scoreQuestion = 0.7
	scoreAction   = 0.65
	scoreNeutral  = 0.5

	defaultThreshold = 0.6

	aiScoreMaxTokens   = 5
	aiScoreTemperature = 0.1
)

var (
	ackWords = map[string]struct{}{
		"ok": {}, "okay": {}, "k": {}, "kk": {}, "lol": {}, "haha": {},
		"yes": {}, "no": {}, "yep": {}, "nope": {}, "thanks": {}, "thx": {},
		"ty": {}, "sure": {}, "cool": {}, "nice": {}, "done": {},
	}

	urgencyKeywords = []string{"urgent", "asap", "emergency", "immediately", "right now"}

	questionWords = []string{"when", "where", "what", "how", "can you", "could you"}

	actionKeywords = []string{"please", "need", "help", "can we", "should we"}
)

// Engine is the slice of the inference surface the scorer needs.
type Engine interface {
	Generate(ctx context.Context, req *engine.GenerationRequest) (string, error)
	IsModelLoaded() bool
}

// ThresholdSource supplies the notification threshold preference.
type ThresholdSource interface {
	ImportanceThreshold(ctx context.Context) (float64, error)
}

// Scorer classifies message importance: cheap deterministic heuristics
// first, the model only for the ambiguous remainder. It never returns an
// error; every failure collapses to the neutral score.
type Scorer struct {
	engine    Engine
	threshold ThresholdSource
	prompts   *prompt.Builder
	log       *logger.Logger
}

// NewScorer creates a scorer.
func NewScorer(eng Engine, threshold ThresholdSource, prompts *prompt.Builder, log *logger.Logger) *Scorer {
	return &Scorer{engine: eng, threshold: threshold, prompts: prompts, log: log}
}

// Score returns an importance score in [0.0, 1.0] for the message.
func (s *Scorer) Score(ctx context.Context, content, sender string) float64 {
	score := s.score(ctx, content, sender)
	metrics.ImportanceScore.Observe(score)
	return score
}

func (s *Scorer) score(ctx context.Context, content, sender string) float64 {
	trimmed := strings.TrimSpace(content)
	lower := strings.ToLower(trimmed)

	// Heuristic tier: ordered by decreasing urgency, so "asap" outranks
	// the action-keyword match the same message would also hit.
	if len(trimmed) <= 3 || isAck(lower) || isNonTextual(trimmed) {
		return scoreTrivial
	}
	for _, kw := range urgencyKeywords {
		if strings.Contains(lower, kw) {
			return scoreUrgent
		}
	}
	if strings.Contains(trimmed, "?") {
		for _, qw := range questionWords {
			if strings.Contains(lower, qw) {
				return scoreQuestion
			}
		}
	}
	for _, kw := range actionKeywords {
		if strings.Contains(lower, kw) {
			return scoreAction
		}
	}

	return s.aiScore(ctx, content, sender)
}

// ShouldNotify compares the score against the configured threshold.
func (s *Scorer) ShouldNotify(ctx context.Context, content, sender string) bool {
	return s.Score(ctx, content, sender) >= s.Threshold(ctx)
}

// Threshold returns the configured notification threshold, clamped to a
// sane default when the preference is unset or out of range.
func (s *Scorer) Threshold(ctx context.Context) float64 {
	threshold, err := s.threshold.ImportanceThreshold(ctx)
	if err != nil || threshold <= 0 || threshold > 1 {
		return defaultThreshold
	}
	return threshold
}

// aiScore asks the model for a 0-10 rating. Any failure along the way
// yields the neutral score; triage must never block on engine trouble.
func (s *Scorer) aiScore(ctx context.Context, content, sender string) float64 {
	if s.engine == nil || !s.engine.IsModelLoaded() {
		return scoreNeutral
	}

	out, err := s.engine.Generate(ctx, &engine.GenerationRequest{
		Prompt:      s.prompts.Scoring(content, sender),
		MaxTokens:   aiScoreMaxTokens,
		Temperature: aiScoreTemperature,
	})
	if err != nil {
		s.log.Debug("ai scoring failed, using neutral score", zap.Error(err))
		return scoreNeutral
	}

	rating, ok := firstInteger(out)
	if !ok {
		return scoreNeutral
	}
	if rating < 0 {
		rating = 0
	}
	if rating > 10 {
		rating = 10
	}
	return float64(rating) / 10.0
}

// firstInteger extracts the first run of digits from the response.
func firstInteger(s string) (int, bool) {
	start := -1
	for i, r := range s {
		if unicode.IsDigit(r) {
			if start < 0 {
				start = i
			}
			continue
		}
		if start >= 0 {
			n, err := strconv.Atoi(s[start:i])
			return n, err == nil
		}
	}
	if start >= 0 {
		n, err := strconv.Atoi(s[start:])
		return n, err == nil
	}
	return 0, false
}

func isAck(lower string) bool {
	_, ok := ackWords[lower]
	return ok
}

// isNonTextual reports content with no letters or digits at all, which in
// practice means emoji and punctuation reactions.
func isNonTextual(s string) bool {
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return false
		}
	}
	return true
}
