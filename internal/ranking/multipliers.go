package ranking

import (
	"strings"

	"github.com/NotDonCitron/birdsearch/internal/models"
)

// ScoringContext carries everything a multiplier needs to score one document.
type ScoringContext struct {
	RawQuery string
	Document *models.Document
}

// Multiplier adjusts a base score based on one document property.
type Multiplier interface {
	Name() string
	Multiply(ctx *ScoringContext, baseScore float64) float64
}

// ExactNameMultiplier boosts documents whose name contains the raw query
// string verbatim, case-insensitive.
type ExactNameMultiplier struct {
	config *Config
}

// NewExactNameMultiplier creates a new ExactNameMultiplier.
func NewExactNameMultiplier(config *Config) *ExactNameMultiplier {
	return &ExactNameMultiplier{config: config}
}

// Name returns the multiplier name.
func (m *ExactNameMultiplier) Name() string {
	return "exact_name"
}

// Multiply applies the exact-name boost to the base score.
func (m *ExactNameMultiplier) Multiply(ctx *ScoringContext, baseScore float64) float64 {
	if baseScore == 0 || ctx.Document == nil || ctx.RawQuery == "" {
		return baseScore
	}
	name := strings.ToLower(ctx.Document.Name)
	query := strings.ToLower(strings.TrimSpace(ctx.RawQuery))
	if query != "" && strings.Contains(name, query) {
		return baseScore * m.config.ExactNameBoost
	}
	return baseScore
}

// FavoriteMultiplier boosts documents the owner marked as favorite.
type FavoriteMultiplier struct {
	config *Config
}

// NewFavoriteMultiplier creates a new FavoriteMultiplier.
func NewFavoriteMultiplier(config *Config) *FavoriteMultiplier {
	return &FavoriteMultiplier{config: config}
}

// Name returns the multiplier name.
func (m *FavoriteMultiplier) Name() string {
	return "favorite"
}

// Multiply applies the favorite boost to the base score.
func (m *FavoriteMultiplier) Multiply(ctx *ScoringContext, baseScore float64) float64 {
	if baseScore == 0 || ctx.Document == nil || !ctx.Document.IsFavorite {
		return baseScore
	}
	return baseScore * m.config.FavoriteBoost
}

// ImportanceMultiplier applies the record's importance prior.
// The 0-100 importance score is normalized to 0-1 before scaling.
type ImportanceMultiplier struct {
	config *Config
}

// NewImportanceMultiplier creates a new ImportanceMultiplier.
func NewImportanceMultiplier(config *Config) *ImportanceMultiplier {
	return &ImportanceMultiplier{config: config}
}

// Name returns the multiplier name.
func (m *ImportanceMultiplier) Name() string {
	return "importance"
}

// Multiply applies the importance prior to the base score.
func (m *ImportanceMultiplier) Multiply(ctx *ScoringContext, baseScore float64) float64 {
	if baseScore == 0 || ctx.Document == nil {
		return baseScore
	}
	importance := ctx.Document.ImportanceScore
	if importance < 0 {
		importance = 0
	}
	if importance > 100 {
		importance = 100
	}
	return baseScore * (1.0 + (importance/100.0)*m.config.ImportanceScale)
}

// CombinedMultiplier applies multiple multipliers in sequence.
type CombinedMultiplier struct {
	multipliers []Multiplier
}

// NewCombinedMultiplier creates a combined multiplier from multiple multipliers.
func NewCombinedMultiplier(multipliers ...Multiplier) *CombinedMultiplier {
	return &CombinedMultiplier{multipliers: multipliers}
}

// Name returns the multiplier name.
func (m *CombinedMultiplier) Name() string {
	return "combined"
}

// Multiply applies all multipliers in sequence.
func (m *CombinedMultiplier) Multiply(ctx *ScoringContext, baseScore float64) float64 {
	score := baseScore
	for _, mult := range m.multipliers {
		score = mult.Multiply(ctx, score)
	}
	return score
}

// DefaultMultipliers returns the standard multiplier chain for config.
func DefaultMultipliers(config *Config) []Multiplier {
	return []Multiplier{
		NewExactNameMultiplier(config),
		NewFavoriteMultiplier(config),
		NewImportanceMultiplier(config),
	}
}

// ApplyMultipliers applies a list of multipliers to a base score.
func ApplyMultipliers(ctx *ScoringContext, baseScore float64, multipliers []Multiplier) float64 {
	score := baseScore
	for _, m := range multipliers {
		score = m.Multiply(ctx, score)
	}
	return score
}
