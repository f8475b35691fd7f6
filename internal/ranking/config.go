// Package ranking computes composite relevance scores for index candidates.
package ranking

// Config holds the tunable ranking weights. The values are empirical; they
// are loaded from the application config so operators can adjust them
// without a redeploy.
type Config struct {
	// NameFieldWeight multiplies lexical relevance contributions from the
	// name field relative to description/tags.
	NameFieldWeight float64
	// ExactNameBoost applies when the document name contains the raw query
	// string verbatim (case-insensitive).
	ExactNameBoost float64
	// FavoriteBoost applies to documents the owner marked as favorite.
	FavoriteBoost float64
	// ImportanceScale scales the 0-1 normalized importance prior:
	// multiplier = 1 + importance * ImportanceScale.
	ImportanceScale float64
}

// DefaultConfig returns the default ranking configuration.
func DefaultConfig() *Config {
	return &Config{
		NameFieldWeight: 2.0,
		ExactNameBoost:  2.0,
		FavoriteBoost:   1.5,
		ImportanceScale: 0.5,
	}
}

// ApplyDefaults fills zero values with defaults.
func (c *Config) ApplyDefaults() {
	d := DefaultConfig()
	if c.NameFieldWeight == 0 {
		c.NameFieldWeight = d.NameFieldWeight
	}
	if c.ExactNameBoost == 0 {
		c.ExactNameBoost = d.ExactNameBoost
	}
	if c.FavoriteBoost == 0 {
		c.FavoriteBoost = d.FavoriteBoost
	}
	if c.ImportanceScale == 0 {
		c.ImportanceScale = d.ImportanceScale
	}
}
