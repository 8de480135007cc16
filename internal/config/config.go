package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/spf13/pflag"
)

type Config struct {
	HTTPAddr string
	GRPCAddr string // "" disables the health endpoint

	// DB
	Env      string // "dev" | "prod"
	DBPath   string // e.g. "./data/labaccess.db"
	SeedFile string // dev only; empty uses the built-in seed

	// Timezone names the calendar used for penalty days and the monthly
	// reset window.  Location is resolved from it by Load.
	Timezone string
	Location *time.Location

	CORSOrigins []string

	// Reconciliation workers.  An interval of 0 disables the worker.
	AutoCheckoutInterval  time.Duration
	AutoCheckoutThreshold time.Duration
	PenaltyInterval       time.Duration
	ResetInterval         time.Duration

	// DoorPulseHold keeps the open latch set this long before releasing it.
	DoorPulseHold time.Duration
}

func FromEnv() Config {
	env := strings.ToLower(getenvDefault("LABACCESS_ENV", "dev"))
	if env != "dev" && env != "prod" {
		// fail-soft: treat unknown as dev
		env = "dev"
	}

	return Config{
		HTTPAddr: getenvDefault("LABACCESS_HTTP_ADDR", ":8080"),
		GRPCAddr: os.Getenv("LABACCESS_GRPC_ADDR"),

		Env:      env,
		DBPath:   getenvDefault("LABACCESS_DB_PATH", "./data/labaccess.db"),
		SeedFile: os.Getenv("LABACCESS_SEED_FILE"),

		Timezone:    getenvDefault("LABACCESS_TIMEZONE", "Local"),
		CORSOrigins: splitCSV(os.Getenv("LABACCESS_CORS_ORIGINS")),

		AutoCheckoutInterval:  getenvDuration("LABACCESS_AUTO_CHECKOUT_INTERVAL", 15*time.Minute),
		AutoCheckoutThreshold: getenvDuration("LABACCESS_AUTO_CHECKOUT_THRESHOLD", 4*time.Hour),
		PenaltyInterval:       getenvDuration("LABACCESS_PENALTY_INTERVAL", 24*time.Hour),
		ResetInterval:         getenvDuration("LABACCESS_RESET_INTERVAL", 30*time.Minute),

		DoorPulseHold: getenvDuration("LABACCESS_DOOR_PULSE_HOLD", 0),
	}
}

// Load reads the environment, then applies command-line overrides from
// args (without the program name).  It returns pflag.ErrHelp for -h.
func Load(args []string) (Config, error) {
	cfg := FromEnv()

	fs := pflag.NewFlagSet("labaccess-server", pflag.ContinueOnError)
	fs.StringVar(&cfg.HTTPAddr, "http-addr", cfg.HTTPAddr, "HTTP listen address")
	fs.StringVar(&cfg.GRPCAddr, "grpc-addr", cfg.GRPCAddr, "gRPC health listen address (empty disables)")
	fs.StringVar(&cfg.Env, "env", cfg.Env, "environment: dev or prod")
	fs.StringVar(&cfg.DBPath, "db-path", cfg.DBPath, "SQLite database file")
	fs.StringVar(&cfg.SeedFile, "seed-file", cfg.SeedFile, "YAML dev seed file (dev only)")
	fs.StringVar(&cfg.Timezone, "timezone", cfg.Timezone, "IANA timezone for penalty days and the monthly reset")
	fs.StringSliceVar(&cfg.CORSOrigins, "cors-origins", cfg.CORSOrigins, "allowed CORS origins for admin clients")
	fs.DurationVar(&cfg.AutoCheckoutInterval, "auto-checkout-interval", cfg.AutoCheckoutInterval, "auto-checkout pass interval (0 disables)")
	fs.DurationVar(&cfg.AutoCheckoutThreshold, "auto-checkout-threshold", cfg.AutoCheckoutThreshold, "session age at which auto-checkout closes it")
	fs.DurationVar(&cfg.PenaltyInterval, "penalty-interval", cfg.PenaltyInterval, "deadline penalty pass interval (0 disables)")
	fs.DurationVar(&cfg.ResetInterval, "reset-interval", cfg.ResetInterval, "monthly reset check interval (0 disables)")
	fs.DurationVar(&cfg.DoorPulseHold, "door-pulse-hold", cfg.DoorPulseHold, "how long the door latch stays open per pulse")

	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}
	if fs.NArg() > 0 {
		return Config{}, fmt.Errorf("unexpected argument: %s", fs.Arg(0))
	}

	cfg.Env = strings.ToLower(cfg.Env)
	if cfg.Env != "dev" && cfg.Env != "prod" {
		return Config{}, fmt.Errorf("env must be dev or prod, got %q", cfg.Env)
	}
	if cfg.AutoCheckoutThreshold <= 0 {
		return Config{}, fmt.Errorf("auto-checkout-threshold must be positive")
	}

	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return Config{}, fmt.Errorf("timezone %q: %w", cfg.Timezone, err)
	}
	cfg.Location = loc
	return cfg, nil
}

func getenvDefault(key, def string) string {
	v := os.Getenv(key)
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}

func getenvInt(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return def
	}
	return n
}

// getenvDuration accepts Go durations ("15m") or a bare number of seconds.
func getenvDuration(key string, def time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	if d, err := time.ParseDuration(v); err == nil && d >= 0 {
		return d
	}
	if n := getenvInt(key, -1); n >= 0 {
		return time.Duration(n) * time.Second
	}
	return def
}

func splitCSV(v string) []string {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
