package feedback

// TierBand maps a minimum accuracy percentage to a confidence boost.
type TierBand struct {
	MinAccuracy float64 `mapstructure:"min_accuracy" validate:"gte=0,lte=100"`
	Boost       int     `mapstructure:"boost" validate:"gte=0,lte=100"`
}

// Config tunes how corrections update registries.
type Config struct {
	// Tiers must be ordered by descending MinAccuracy; the first band whose
	// floor is met wins.
	Tiers         []TierBand `mapstructure:"tiers" validate:"required,min=1,dive"`
	FallbackTier  int        `mapstructure:"fallback_tier" validate:"gte=0,lte=100"`
	MinimumSample int        `mapstructure:"minimum_sample" validate:"gte=1"`
	DisableBelow  float64    `mapstructure:"disable_below" validate:"gte=0,lte=100"`
}

// DefaultConfig returns the default learning settings.
func DefaultConfig() Config {
	return Config{
		Tiers: []TierBand{
			{MinAccuracy: 95, Boost: 30},
			{MinAccuracy: 85, Boost: 25},
			{MinAccuracy: 70, Boost: 15},
		},
		FallbackTier:  5,
		MinimumSample: 10,
		DisableBelow:  50,
	}
}
