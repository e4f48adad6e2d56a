package config

import (
	"errors"
	"fmt"
	"github.com/go-playground/validator/v10"
	"github.com/maxaizer/placement-matcher/internal/matching"
	"github.com/robfig/cron/v3"
	"time"
)

type MatchingConfig struct {
	Weights              matching.Weights `mapstructure:"weights"`
	MinSkillMatchPercent float64          `mapstructure:"min_skill_match_percent" validate:"gte=0,lte=100"`
	EnrichTopN           int              `mapstructure:"enrich_top_n" validate:"gte=0"`
	TopMatches           int              `mapstructure:"top_matches" validate:"gte=0"`
	ScoringWorkers       int              `mapstructure:"scoring_workers" validate:"gte=1"`
	EnrichmentWorkers    int              `mapstructure:"enrichment_workers" validate:"gte=1"`
	ActiveJobsPageSize   int              `mapstructure:"active_jobs_page_size" validate:"gte=1"`
	RefreshSchedule      string           `mapstructure:"refresh_schedule" validate:"required"`
	ReasonCacheTTL       time.Duration    `mapstructure:"reason_cache_ttl"`
	PollSchedule         string           `mapstructure:"poll_schedule" validate:"required"`
	PublishRetryAfter    time.Duration    `mapstructure:"publish_retry_after" validate:"gt=0"`
}

func defaultMatchingConfig() MatchingConfig {
	return MatchingConfig{
		Weights:              matching.DefaultWeights(),
		MinSkillMatchPercent: 10,
		EnrichTopN:           50,
		TopMatches:           10,
		ScoringWorkers:       8,
		EnrichmentWorkers:    4,
		ActiveJobsPageSize:   20,
		RefreshSchedule:      "0 */6 * * *",
		ReasonCacheTTL:       24 * time.Hour,
		PollSchedule:         "@every 1m",
		PublishRetryAfter:    10 * time.Minute,
	}
}

func (config MatchingConfig) validate() error {
	var errs []error

	if err := validator.New().Struct(config); err != nil {
		errs = append(errs, err)
	}

	if config.RefreshSchedule != "" {
		if _, err := cron.ParseStandard(config.RefreshSchedule); err != nil {
			errs = append(errs, fmt.Errorf("invalid refresh_schedule: %w", err))
		}
	}
	if config.PollSchedule != "" {
		if _, err := cron.ParseStandard(config.PollSchedule); err != nil {
			errs = append(errs, fmt.Errorf("invalid poll_schedule: %w", err))
		}
	}

	return errors.Join(errs...)
}

func (config MatchingConfig) bindEnvironmentVariables() error {
	return bindAll(map[string]string{
		"matching.min_skill_match_percent": "MIN_SKILL_MATCH_PERCENT",
		"matching.enrich_top_n":            "ENRICH_TOP_N",
		"matching.scoring_workers":         "SCORING_WORKERS",
		"matching.enrichment_workers":      "ENRICHMENT_WORKERS",
		"matching.refresh_schedule":        "REFRESH_SCHEDULE",
		"matching.poll_schedule":           "POLL_SCHEDULE",
	})
}
