package classify

import "github.com/Veraticus/spice-books/internal/model"

// Config tunes classification.
type Config struct {
	DefaultCategory         string  `mapstructure:"default_category" validate:"required"`
	MerchantLookupThreshold float64 `mapstructure:"merchant_lookup_threshold" validate:"gte=0,lte=100"`
	RuleConfidence          int     `mapstructure:"rule_confidence" validate:"gte=0,lte=100"`
}

// DefaultConfig returns the default classification settings.
func DefaultConfig() Config {
	return Config{
		DefaultCategory:         model.UncategorizedCategory,
		MerchantLookupThreshold: 85,
		RuleConfidence:          90,
	}
}
