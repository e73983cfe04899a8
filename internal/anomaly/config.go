package anomaly

// Config holds the audit-risk thresholds. Benchmarks map a category name to
// its expected share of business expenses; names are matched
// case-insensitively and a share of 0 turns the category's check off.
type Config struct {
	Benchmarks         map[string]float64 `mapstructure:"benchmarks" validate:"dive,gte=0,lte=1"`
	RatioMultiplier    float64            `mapstructure:"ratio_multiplier" validate:"gt=0"`
	IncomeSpikeGrowth  float64            `mapstructure:"income_spike_growth" validate:"gt=0"`
	PersonalRatio      float64            `mapstructure:"personal_ratio" validate:"gt=0,lte=1"`
	ZeroActivityMonths int                `mapstructure:"zero_activity_months" validate:"gte=0"`
}

// DefaultConfig returns the default thresholds.
func DefaultConfig() Config {
	return Config{
		Benchmarks: map[string]float64{
			"Meals":         0.05,
			"Travel":        0.10,
			"Entertainment": 0.02,
			"Gifts":         0.01,
			"Vehicle":       0.10,
			"Home Office":   0.08,
		},
		RatioMultiplier:    3,
		IncomeSpikeGrowth:  0.5,
		PersonalRatio:      0.5,
		ZeroActivityMonths: 6,
	}
}
