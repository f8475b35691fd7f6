package config

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Storage.DatabasePath == "" {
		cfg.Storage.DatabasePath = "/usr/local/var/birdsearch/data/db/records.db"
	}
	if cfg.Storage.BleveIndexPath == "" {
		cfg.Storage.BleveIndexPath = "/usr/local/var/birdsearch/data/indices/bleve"
	}
	if cfg.Search.DefaultLimit == 0 {
		cfg.Search.DefaultLimit = 20
	}
	if cfg.Search.MaxLimit == 0 {
		cfg.Search.MaxLimit = 200
	}
	if cfg.Search.TopKCandidates == 0 {
		cfg.Search.TopKCandidates = 1000
	}
	if cfg.Search.SnippetLength == 0 {
		cfg.Search.SnippetLength = 200
	}
	if cfg.Search.SuggestDefaultLimit == 0 {
		cfg.Search.SuggestDefaultLimit = 5
	}
	if cfg.Search.SuggestMaxLimit == 0 {
		cfg.Search.SuggestMaxLimit = 20
	}
	if cfg.Search.SuggestCacheSize == 0 {
		cfg.Search.SuggestCacheSize = 1024
	}
	if cfg.Search.PopulateWorkers == 0 {
		cfg.Search.PopulateWorkers = 4
	}
	if cfg.Search.MinQueryLength == 0 {
		cfg.Search.MinQueryLength = 2
	}
	if cfg.Search.StatsScanLimit == 0 {
		cfg.Search.StatsScanLimit = 10000
	}
	if cfg.Search.RebuildBatchSize == 0 {
		cfg.Search.RebuildBatchSize = 500
	}
	if cfg.Search.FallbackScanLimit == 0 {
		cfg.Search.FallbackScanLimit = 1000
	}
	if cfg.Search.SuggestDictScanLimit == 0 {
		cfg.Search.SuggestDictScanLimit = 500
	}
	if cfg.Ranking.NameFieldWeight == 0 {
		cfg.Ranking.NameFieldWeight = 2.0
	}
	if cfg.Ranking.ExactNameBoost == 0 {
		cfg.Ranking.ExactNameBoost = 2.0
	}
	if cfg.Ranking.FavoriteBoost == 0 {
		cfg.Ranking.FavoriteBoost = 1.5
	}
	if cfg.Ranking.ImportanceScale == 0 {
		cfg.Ranking.ImportanceScale = 0.5
	}
}
