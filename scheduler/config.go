package scheduler

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/schedora/schedora/scheduler/recurrence"
)

// Config holds the engine tunables.
type Config struct {
	// MaxForwardHops bounds cross-server mountpoint/forwarding resolution.
	MaxForwardHops int `env:"SCHEDORA_MAX_FORWARD_HOPS"       envDefault:"8"`

	// Pending-send deduplication table.
	PendingSendCap      int           `env:"SCHEDORA_PENDING_SEND_CAP"      envDefault:"5"`
	PendingPollInterval time.Duration `env:"SCHEDORA_PENDING_POLL_INTERVAL" envDefault:"500ms"`
	PendingPollCeiling  time.Duration `env:"SCHEDORA_PENDING_POLL_CEILING"  envDefault:"4s"`

	// Recurrence bounding horizons per rule frequency.
	HorizonDays       int `env:"SCHEDORA_RECUR_HORIZON_DAYS"        envDefault:"730"`
	HorizonWeeks      int `env:"SCHEDORA_RECUR_HORIZON_WEEKS"       envDefault:"520"`
	HorizonMonths     int `env:"SCHEDORA_RECUR_HORIZON_MONTHS"      envDefault:"360"`
	HorizonYears      int `env:"SCHEDORA_RECUR_HORIZON_YEARS"       envDefault:"100"`
	HorizonOtherYears int `env:"SCHEDORA_RECUR_HORIZON_OTHER_YEARS" envDefault:"1"`
}

// ParseConfig reads the configuration from the environment.
func ParseConfig() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse scheduler config: %w", err)
	}
	return cfg, nil
}

// DefaultConfig returns the stock tunables without consulting the
// environment.
func DefaultConfig() Config {
	return Config{
		MaxForwardHops:      8,
		PendingSendCap:      5,
		PendingPollInterval: 500 * time.Millisecond,
		PendingPollCeiling:  4 * time.Second,
		HorizonDays:         730,
		HorizonWeeks:        520,
		HorizonMonths:       360,
		HorizonYears:        100,
		HorizonOtherYears:   1,
	}
}

func (c Config) horizons() recurrence.Horizons {
	return recurrence.Horizons{
		MaxDays:           c.HorizonDays,
		MaxWeeks:          c.HorizonWeeks,
		MaxMonths:         c.HorizonMonths,
		MaxYears:          c.HorizonYears,
		MaxYearsOtherFreq: c.HorizonOtherYears,
	}
}
