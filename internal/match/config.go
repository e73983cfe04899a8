package match

// Config tunes duplicate detection.
type Config struct {
	Threshold         float64 `mapstructure:"threshold" validate:"gte=0,lte=100"`
	WindowDays        int     `mapstructure:"window_days" validate:"gte=0,lte=365"`
	DescriptionWeight float64 `mapstructure:"description_weight" validate:"gte=0,lte=1"`
	AmountWeight      float64 `mapstructure:"amount_weight" validate:"gte=0,lte=1"`
	DateWeight        float64 `mapstructure:"date_weight" validate:"gte=0,lte=1"`
}

// DefaultConfig returns the default duplicate detection settings.
func DefaultConfig() Config {
	return Config{
		Threshold:         85,
		WindowDays:        7,
		DescriptionWeight: 0.5,
		AmountWeight:      0.3,
		DateWeight:        0.2,
	}
}
