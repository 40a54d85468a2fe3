package config

import "errors"

// Configuration validation errors returned by Config.Validate.
var (
	ErrInvalidConcurrency   = errors.New("invalid concurrency: must be positive")
	ErrInvalidBatchSize     = errors.New("invalid batch size: must be positive")
	ErrInvalidTimeout       = errors.New("invalid timeout: must be positive")
	ErrInvalidRatio         = errors.New("invalid timeout ratio: must be positive")
	ErrInvalidStatusCeiling = errors.New("invalid usable status ceiling: must be within 201..600")
	ErrNoFallbackTargets    = errors.New("invalid fallback targets: every protocol needs at least one target URL")
	ErrInvalidFormat        = errors.New("invalid output format: use text, table, json, csv, yaml or markdown")
)
