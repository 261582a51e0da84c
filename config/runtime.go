package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

// Runtime is the configuration of a running game.
type Runtime struct {
	// Addr is the listen address of the HTTP API. Empty disables it.
	Addr string
	// DBPath is the hall-of-fame database. Empty disables recording.
	DBPath string
	// DBKind is "bunt" or "sqlite".
	DBKind string
	// Station is a preset name or the path of a station file.
	Station string
	Player  string

	// Tick is the simulated time per step.
	Tick time.Duration
	// Speedup is simulated time per wall-clock time.
	Speedup float64
	// Frequency is the arrival rate in trains per second.
	Frequency  float64
	GameLength time.Duration
	Seed       int64
}

// LoadRuntime reads the configuration from the environment, after loading an optional
// .env file in the working directory.
func LoadRuntime() (Runtime, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return Runtime{}, fmt.Errorf("load .env: %w", err)
	}
	var errs []error
	rc := Runtime{
		Addr:       getEnv("SHINGO_ADDR", "127.0.0.1:8001"),
		DBPath:     getEnv("SHINGO_DB", "hof.db"),
		DBKind:     getEnv("SHINGO_DB_KIND", "bunt"),
		Station:    getEnv("SHINGO_STATION", "kita"),
		Player:     getEnv("SHINGO_PLAYER", os.Getenv("USER")),
		Tick:       getEnvDuration("SHINGO_TICK", 100*time.Millisecond, &errs),
		Speedup:    getEnvFloat("SHINGO_SPEEDUP", 1, &errs),
		Frequency:  getEnvFloat("SHINGO_FREQUENCY", 1.0/120, &errs),
		GameLength: getEnvDuration("SHINGO_GAME_LENGTH", 30*time.Minute, &errs),
		Seed:       getEnvInt("SHINGO_SEED", time.Now().UnixNano(), &errs),
	}
	if len(errs) > 0 {
		return Runtime{}, errs[0]
	}
	return rc, rc.Validate()
}

func (rc Runtime) Validate() error {
	if rc.Tick <= 0 {
		return fmt.Errorf("tick must be positive, got %s", rc.Tick)
	}
	if rc.Speedup <= 0 {
		return fmt.Errorf("speedup must be positive, got %g", rc.Speedup)
	}
	if rc.Frequency < 0 {
		return fmt.Errorf("frequency must not be negative, got %g", rc.Frequency)
	}
	switch rc.DBKind {
	case "bunt", "sqlite":
	default:
		return fmt.Errorf("unknown database kind %q", rc.DBKind)
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int64, errs *[]error) int64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	i, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: %w", key, err))
		return defaultValue
	}
	return i
}

func getEnvFloat(key string, defaultValue float64, errs *[]error) float64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: %w", key, err))
		return defaultValue
	}
	return f
}

func getEnvDuration(key string, defaultValue time.Duration, errs *[]error) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: %w", key, err))
		return defaultValue
	}
	return d
}

// Log writes the configuration to the global logger.
func (rc Runtime) Log() {
	zap.S().Infow("runtime configuration",
		"addr", rc.Addr,
		"db", rc.DBPath,
		"dbKind", rc.DBKind,
		"station", rc.Station,
		"player", rc.Player,
		"tick", rc.Tick,
		"speedup", rc.Speedup,
		"frequency", rc.Frequency,
		"gameLength", rc.GameLength,
		"seed", rc.Seed,
	)
}
