package ranking

import (
	"sort"

	"github.com/NotDonCitron/birdsearch/internal/models"
)

// Ranker combines lexical relevance with the multiplier chain and produces a
// stable total order over candidates.
type Ranker struct {
	config      *Config
	multipliers []Multiplier
}

// NewRanker creates a Ranker with the given configuration.
func NewRanker(config *Config) *Ranker {
	if config == nil {
		config = DefaultConfig()
	}
	config.ApplyDefaults()
	return &Ranker{
		config:      config,
		multipliers: DefaultMultipliers(config),
	}
}

// WithMultipliers replaces the multiplier chain.
func (r *Ranker) WithMultipliers(multipliers []Multiplier) *Ranker {
	r.multipliers = multipliers
	return r
}

// Score computes the composite rank for one candidate.
func (r *Ranker) Score(rawQuery string, c *models.Candidate) float64 {
	ctx := &ScoringContext{RawQuery: rawQuery, Document: c.Document}
	return ApplyMultipliers(ctx, c.Lexical, r.multipliers)
}

// Rank scores all candidates and sorts them: descending rank, then descending
// importance, then ascending record id for determinism.
func (r *Ranker) Rank(rawQuery string, candidates []*models.Candidate) []*models.Candidate {
	for _, c := range candidates {
		c.Rank = r.Score(rawQuery, c)
	}
	sort.Slice(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.Rank != b.Rank {
			return a.Rank > b.Rank
		}
		if a.Document.ImportanceScore != b.Document.ImportanceScore {
			return a.Document.ImportanceScore > b.Document.ImportanceScore
		}
		return a.Document.RecordID < b.Document.RecordID
	})
	return candidates
}

// GetConfig returns the ranking configuration.
func (r *Ranker) GetConfig() *Config {
	return r.config
}

// Paginate returns a page of results. Offset and limit apply to the fully
// ranked list, never to the raw candidate set.
func Paginate(results []*models.Candidate, offset, limit int) []*models.Candidate {
	if offset >= len(results) {
		return nil
	}
	end := offset + limit
	if end > len(results) {
		end = len(results)
	}
	return results[offset:end]
}
