package services

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/otscribe/report-engine/pkg/config"
	"github.com/otscribe/report-engine/pkg/models"
	"github.com/otscribe/report-engine/pkg/repositories"
)

// Tabs the fetch endpoint serves.
const (
	TabFrequent   = "frequent"
	TabContextual = "contextual"
	TabPinned     = "pinned"
)

// Field display sizes, which bound the smart-picks list.
const (
	FieldSizeShort  = "short"
	FieldSizeMedium = "medium"
	FieldSizeLong   = "long"
)

// contextScoreTieBand is the context-score difference below which two
// candidates are considered tied and ordered by usage count instead.
const contextScoreTieBand = 0.1

// FetchQuery describes one suggestion lookup for a focused field.
type FetchQuery struct {
	Category  string
	FieldName string
	// Tab selects the view: frequent (default), contextual, or pinned.
	Tab string
	// AgeMonths is accepted for API compatibility with the report
	// wizard and currently unused.
	AgeMonths int
	// Context maps sibling field names to their current values.
	Context map[string]string
	// Value is the field's in-progress text; when set, Suggestions in
	// the result is the substring-filtered dropdown list.
	Value string
	// FieldSize picks the smart-picks cap (short/medium/long).
	FieldSize string
}

// FetchResult is a ranked suggestion listing.
type FetchResult struct {
	Suggestions []models.ScoredSuggestion `json:"suggestions"`
	SmartPicks  []models.ScoredSuggestion `json:"smartPicks,omitempty"`
}

// ScorerService ranks suggestion candidates for a focused report field,
// blending pinned status, contextual fit, and raw usage frequency.
type ScorerService interface {
	Fetch(ctx context.Context, userID uuid.UUID, q FetchQuery) (*FetchResult, error)
}

type scorerService struct {
	suggestions repositories.SuggestionRepository
	patterns    repositories.PatternRepository
	cfg         config.SuggestionsConfig
	logger      *zap.Logger
}

// NewScorerService creates a ScorerService.
func NewScorerService(
	suggestions repositories.SuggestionRepository,
	patterns repositories.PatternRepository,
	cfg config.SuggestionsConfig,
	logger *zap.Logger,
) ScorerService {
	return &scorerService{
		suggestions: suggestions,
		patterns:    patterns,
		cfg:         cfg,
		logger:      logger,
	}
}

func (s *scorerService) Fetch(ctx context.Context, userID uuid.UUID, q FetchQuery) (*FetchResult, error) {
	switch q.Tab {
	case TabContextual:
		return s.fetchContextual(ctx, userID, q)
	case TabPinned:
		return s.fetchPinned(ctx, userID, q)
	default:
		return s.fetchFrequent(ctx, userID, q)
	}
}

// fetchFrequent builds the main ranked pool: the user's own candidates
// plus read-only system seeds, each annotated with a context score.
func (s *scorerService) fetchFrequent(ctx context.Context, userID uuid.UUID, q FetchQuery) (*FetchResult, error) {
	rows, err := s.suggestions.ListByField(ctx, userID, q.Category, q.FieldName, s.cfg.UsageThreshold)
	if err != nil {
		return nil, fmt.Errorf("failed to list suggestions: %w", err)
	}

	pool := make([]models.ScoredSuggestion, 0, len(rows))
	for _, row := range rows {
		pool = append(pool, models.ScoredSuggestion{
			ID:           row.ID,
			Text:         row.SuggestionText,
			Source:       models.SuggestionSourceUser,
			UsageCount:   row.UsageCount,
			IsPinned:     row.IsPinned,
			ContextScore: s.contextScore(ctx, userID, q, row.SuggestionText),
		})
	}

	// Seed rows fill out sparse pools; user rows win duplicates below
	// because they come first. Seeds carry no pin state and score
	// against the user's own patterns, which for a fresh account means
	// zero.
	seeds, err := s.suggestions.ListByField(ctx, models.SystemUserID, q.Category, q.FieldName, s.cfg.UsageThreshold)
	if err != nil {
		s.logger.Warn("Failed to list system seed suggestions", zap.Error(err))
	} else {
		for _, row := range seeds {
			pool = append(pool, models.ScoredSuggestion{
				ID:           row.ID,
				Text:         row.SuggestionText,
				Source:       models.SuggestionSourceSystem,
				UsageCount:   row.UsageCount,
				ContextScore: s.contextScore(ctx, userID, q, row.SuggestionText),
			})
		}
	}

	pool = dedupeByText(pool)
	sortCandidates(pool)

	result := &FetchResult{
		Suggestions: filterDropdown(pool, q.Value, s.cfg.DropdownLimit),
		SmartPicks:  s.smartPicks(pool, q.FieldSize),
	}
	return result, nil
}

// fetchContextual lists raw pattern hits for the supplied context, most
// frequent first.
func (s *scorerService) fetchContextual(ctx context.Context, userID uuid.UUID, q FetchQuery) (*FetchResult, error) {
	var candidates []models.ScoredSuggestion

	for contextField, contextValue := range q.Context {
		trimmed := strings.TrimSpace(contextValue)
		if trimmed == "" {
			continue
		}

		patterns, err := s.patterns.ListByContext(ctx, userID, q.Category, q.FieldName, contextField, trimmed, 10)
		if err != nil {
			// Missing signal degrades to an empty view, never an error.
			s.logger.Warn("Failed to list contextual patterns",
				zap.String("context_field", contextField),
				zap.Error(err))
			continue
		}

		for _, p := range patterns {
			candidates = append(candidates, models.ScoredSuggestion{
				ID:           p.ID,
				Text:         p.SuggestionText,
				Source:       models.SuggestionSourceContextual,
				UsageCount:   p.Frequency,
				ContextScore: 1.0,
				Context:      fmt.Sprintf("Often with %s=%q", contextField, trimmed),
			})
		}
	}

	candidates = dedupeByText(candidates)
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].UsageCount > candidates[j].UsageCount
	})

	return &FetchResult{Suggestions: candidates}, nil
}

func (s *scorerService) fetchPinned(ctx context.Context, userID uuid.UUID, q FetchQuery) (*FetchResult, error) {
	rows, err := s.suggestions.ListPinned(ctx, userID, q.Category, q.FieldName, models.MaxPinsPerField)
	if err != nil {
		return nil, fmt.Errorf("failed to list pinned suggestions: %w", err)
	}

	candidates := make([]models.ScoredSuggestion, 0, len(rows))
	for _, row := range rows {
		candidates = append(candidates, models.ScoredSuggestion{
			ID:         row.ID,
			Text:       row.SuggestionText,
			Source:     models.SuggestionSourceUser,
			UsageCount: row.UsageCount,
			IsPinned:   true,
		})
	}

	return &FetchResult{Suggestions: candidates}, nil
}

// contextScore computes how well one candidate fits the current sibling
// values. For each matching first-order pattern the candidate earns its
// empirical probability given that context value, weighted by its own
// support; the accumulated score is normalized by the total support and
// clamped to [0, 1]. No context, no matches, or storage trouble all
// yield 0 - scoring degrades to frequency-only ranking rather than
// failing the fetch.
func (s *scorerService) contextScore(ctx context.Context, userID uuid.UUID, q FetchQuery, text string) float64 {
	if len(q.Context) == 0 {
		return 0
	}

	var totalScore, weightedSum float64

	for contextField, contextValue := range q.Context {
		trimmed := strings.TrimSpace(contextValue)
		if trimmed == "" {
			continue
		}

		pattern, err := s.patterns.Find(ctx, repositories.PatternKey{
			UserID:         userID,
			Category:       q.Category,
			TargetField:    q.FieldName,
			ContextField:   contextField,
			ContextValue:   trimmed,
			SuggestionText: text,
		})
		if err != nil {
			s.logger.Warn("Pattern lookup failed during scoring",
				zap.String("context_field", contextField),
				zap.Error(err))
			continue
		}
		if pattern == nil {
			continue
		}

		weight := float64(pattern.Frequency)
		weightedSum += weight

		totalFreq, err := s.patterns.SumFrequency(ctx, userID, q.Category, q.FieldName, contextField, trimmed)
		if err != nil {
			s.logger.Warn("Pattern frequency sum failed during scoring",
				zap.String("context_field", contextField),
				zap.Error(err))
			continue
		}
		if totalFreq < 1 {
			totalFreq = 1
		}

		probability := weight / float64(totalFreq)
		totalScore += probability * weight
	}

	if weightedSum == 0 {
		return 0
	}

	score := totalScore / weightedSum
	if score > 1 {
		score = 1
	}
	return score
}

// smartPicks selects the bounded highlight list: up to three pinned
// candidates, then strongly-contextual ones, then the most used, without
// repeating a text.
func (s *scorerService) smartPicks(pool []models.ScoredSuggestion, fieldSize string) []models.ScoredSuggestion {
	if len(pool) == 0 {
		return nil
	}

	maxPicks := s.cfg.SmartPicksMedium
	switch fieldSize {
	case FieldSizeShort:
		maxPicks = s.cfg.SmartPicksShort
	case FieldSizeLong:
		maxPicks = s.cfg.SmartPicksLong
	}

	var picks []models.ScoredSuggestion
	chosen := make(map[string]bool)

	add := func(c models.ScoredSuggestion) bool {
		if len(picks) >= maxPicks {
			return false
		}
		key := strings.ToLower(c.Text)
		if chosen[key] {
			return true
		}
		chosen[key] = true
		picks = append(picks, c)
		return true
	}

	pinned := 0
	for _, c := range pool {
		if c.IsPinned && pinned < models.MaxPinsPerField {
			pinned++
			if !add(c) {
				return picks
			}
		}
	}

	contextual := filterCandidates(pool, func(c models.ScoredSuggestion) bool {
		return !c.IsPinned && c.ContextScore > s.cfg.ContextHighWater
	})
	sort.SliceStable(contextual, func(i, j int) bool {
		return contextual[i].ContextScore > contextual[j].ContextScore
	})
	for _, c := range contextual {
		if !add(c) {
			return picks
		}
	}

	mostUsed := filterCandidates(pool, func(c models.ScoredSuggestion) bool {
		return !c.IsPinned && c.ContextScore <= s.cfg.ContextHighWater
	})
	sort.SliceStable(mostUsed, func(i, j int) bool {
		return mostUsed[i].UsageCount > mostUsed[j].UsageCount
	})
	for _, c := range mostUsed {
		if !add(c) {
			return picks
		}
	}

	return picks
}

// sortCandidates orders the pool: pinned first; among equals, context
// score decides only when the gap is meaningful, otherwise usage count.
func sortCandidates(pool []models.ScoredSuggestion) {
	sort.SliceStable(pool, func(i, j int) bool {
		a, b := pool[i], pool[j]
		if a.IsPinned != b.IsPinned {
			return a.IsPinned
		}
		diff := a.ContextScore - b.ContextScore
		if diff > contextScoreTieBand {
			return true
		}
		if diff < -contextScoreTieBand {
			return false
		}
		return a.UsageCount > b.UsageCount
	})
}

// dedupeByText collapses case-insensitive duplicate texts, keeping the
// first occurrence.
func dedupeByText(pool []models.ScoredSuggestion) []models.ScoredSuggestion {
	seen := make(map[string]bool, len(pool))
	out := pool[:0]
	for _, c := range pool {
		key := strings.ToLower(c.Text)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, c)
	}
	return out
}

// filterDropdown narrows the pool to the inline dropdown list: a
// case-insensitive substring match against the in-progress text, or the
// head of the pool when the field is still empty.
func filterDropdown(pool []models.ScoredSuggestion, current string, limit int) []models.ScoredSuggestion {
	current = strings.TrimSpace(current)
	if current == "" {
		if len(pool) > limit {
			return pool[:limit]
		}
		return pool
	}

	needle := strings.ToLower(current)
	var out []models.ScoredSuggestion
	for _, c := range pool {
		if strings.Contains(strings.ToLower(c.Text), needle) {
			out = append(out, c)
			if len(out) >= limit {
				break
			}
		}
	}
	return out
}

func filterCandidates(pool []models.ScoredSuggestion, keep func(models.ScoredSuggestion) bool) []models.ScoredSuggestion {
	var out []models.ScoredSuggestion
	for _, c := range pool {
		if keep(c) {
			out = append(out, c)
		}
	}
	return out
}
