package recurring

import "github.com/Veraticus/spice-books/internal/model"

// Band is an inclusive range of mean interval days mapped to a period type.
type Band struct {
	Period  model.PeriodType `mapstructure:"period" validate:"required"`
	MinDays float64          `mapstructure:"min_days" validate:"gte=0"`
	MaxDays float64          `mapstructure:"max_days" validate:"gtefield=MinDays"`
}

// Config tunes recurring pattern inference.
type Config struct {
	Bands           []Band  `mapstructure:"bands" validate:"required,min=1,dive"`
	LookbackMonths  int     `mapstructure:"lookback_months" validate:"gte=1"`
	MinOccurrences  int     `mapstructure:"min_occurrences" validate:"gte=2"`
	VarianceCeiling float64 `mapstructure:"variance_ceiling" validate:"gte=0"`
	GraceDays       int     `mapstructure:"grace_days" validate:"gte=0"`
	AlertAfterDays  int     `mapstructure:"alert_after_days" validate:"gte=1"`
}

// DefaultConfig returns the default recurrence settings.
func DefaultConfig() Config {
	return Config{
		Bands: []Band{
			{Period: model.PeriodDaily, MinDays: 0.5, MaxDays: 1.5},
			{Period: model.PeriodWeekly, MinDays: 6, MaxDays: 8},
			{Period: model.PeriodBiweekly, MinDays: 13, MaxDays: 16},
			{Period: model.PeriodMonthly, MinDays: 28, MaxDays: 31},
			{Period: model.PeriodQuarterly, MinDays: 85, MaxDays: 95},
			{Period: model.PeriodAnnual, MinDays: 350, MaxDays: 380},
		},
		LookbackMonths:  12,
		MinOccurrences:  2,
		VarianceCeiling: 30,
		GraceDays:       7,
		AlertAfterDays:  30,
	}
}
