package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"

	"github.com/Veraticus/spice-books/internal/anomaly"
	"github.com/Veraticus/spice-books/internal/classify"
	"github.com/Veraticus/spice-books/internal/common"
	"github.com/Veraticus/spice-books/internal/feedback"
	"github.com/Veraticus/spice-books/internal/match"
	"github.com/Veraticus/spice-books/internal/recurring"
)

// DefaultDatabasePath is used when database.path is not configured.
const DefaultDatabasePath = "~/.local/share/books/books.db"

// Policy collects every tunable threshold of the analysis components.
type Policy struct {
	Anomaly   anomaly.Config   `mapstructure:"anomaly"`
	Feedback  feedback.Config  `mapstructure:"feedback"`
	Classify  classify.Config  `mapstructure:"classify"`
	Recurring recurring.Config `mapstructure:"recurring"`
	Match     match.Config     `mapstructure:"match"`
}

// Config is the full application configuration.
type Config struct {
	Database DatabaseConfig `mapstructure:"database"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Policy   Policy         `mapstructure:"policy"`
}

// DatabaseConfig locates the SQLite database.
type DatabaseConfig struct {
	Path string `mapstructure:"path" validate:"required"`
}

// LoggingConfig selects the slog level and handler.
type LoggingConfig struct {
	Level  string `mapstructure:"level" validate:"oneof=debug info warn error"`
	Format string `mapstructure:"format" validate:"oneof=console json"`
}

// DefaultPolicy returns every component's default thresholds.
func DefaultPolicy() Policy {
	return Policy{
		Match:     match.DefaultConfig(),
		Classify:  classify.DefaultConfig(),
		Feedback:  feedback.DefaultConfig(),
		Recurring: recurring.DefaultConfig(),
		Anomaly:   anomaly.DefaultConfig(),
	}
}

// Default returns the configuration used when nothing is set.
func Default() Config {
	return Config{
		Database: DatabaseConfig{Path: DefaultDatabasePath},
		Logging:  LoggingConfig{Level: "info", Format: "console"},
		Policy:   DefaultPolicy(),
	}
}

// Load reads the configuration from v over the defaults, expands the
// database path and validates the result.
func Load(v *viper.Viper) (*Config, error) {
	cfg := Default()
	clearConfiguredMaps(v, "policy.", &cfg.Policy)
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrInvalidConfig, err)
	}
	cfg.Database.Path = ExpandPath(cfg.Database.Path)
	cfg.Logging.Level = strings.ToLower(cfg.Logging.Level)

	if err := validate.Struct(cfg); err != nil {
		return nil, describe(err)
	}
	if err := ValidatePolicy(cfg.Policy); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadPolicy unmarshals the policy key from v over the defaults and validates it.
func LoadPolicy(v *viper.Viper) (Policy, error) {
	policy := DefaultPolicy()
	clearConfiguredMaps(v, "policy.", &policy)
	if err := v.UnmarshalKey("policy", &policy); err != nil {
		return Policy{}, fmt.Errorf("%w: %w", common.ErrInvalidConfig, err)
	}
	if err := ValidatePolicy(policy); err != nil {
		return Policy{}, err
	}
	return policy, nil
}

// clearConfiguredMaps empties default maps that v sets, so a configured map
// replaces the default one instead of merging into it.
func clearConfiguredMaps(v *viper.Viper, prefix string, p *Policy) {
	if v.IsSet(prefix + "anomaly.benchmarks") {
		p.Anomaly.Benchmarks = nil
	}
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// ValidatePolicy checks field ranges and the cross-field constraints the tags
// cannot express.
func ValidatePolicy(p Policy) error {
	if err := validate.Struct(p); err != nil {
		return describe(err)
	}

	weights := p.Match.DescriptionWeight + p.Match.AmountWeight + p.Match.DateWeight
	if weights < 0.999 || weights > 1.001 {
		return fmt.Errorf("%w: match weights sum to %.3f, want 1", common.ErrInvalidConfig, weights)
	}

	for i := 1; i < len(p.Feedback.Tiers); i++ {
		if p.Feedback.Tiers[i].MinAccuracy >= p.Feedback.Tiers[i-1].MinAccuracy {
			return fmt.Errorf("%w: feedback tiers must be ordered by descending min_accuracy", common.ErrInvalidConfig)
		}
	}

	for _, band := range p.Recurring.Bands {
		if !band.Period.Valid() {
			return fmt.Errorf("%w: unknown period %q", common.ErrInvalidConfig, band.Period)
		}
	}

	return nil
}

func describe(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("%w: %w", common.ErrInvalidConfig, err)
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s failed %s", fe.Namespace(), fe.Tag()))
	}
	return fmt.Errorf("%w: %s", common.ErrInvalidConfig, strings.Join(msgs, "; "))
}
