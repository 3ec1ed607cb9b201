package main

import (
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds every tunable of the server. Defaults match the reference game:
// a 30x30 grid with a one-cell boundary, peer states every 50ms and a food
// check every 10s keeping at least 3 items.
type Config struct {
	Addr string

	GridWidth  int
	GridHeight int
	Boundary   int

	PeerInterval      time.Duration
	ReplenishInterval time.Duration
	FoodFloor         int
	InitialFood       int
	Seed              uint64

	SendBuffer     int
	MessageRate    float64 // inbound messages per second per connection, 0 = unlimited
	MessageBurst   int
	MaxConns       int
	MaxConnsPerIP  int
	AllowedOrigins []string // empty allows any origin

	DBPath            string
	AdminPasswordHash string
	AdminSecret       string
}

// DefaultConfig returns the documented defaults
func DefaultConfig() Config {
	return Config{
		Addr:              ":8080",
		GridWidth:         30,
		GridHeight:        30,
		Boundary:          1,
		PeerInterval:      50 * time.Millisecond,
		ReplenishInterval: 10 * time.Second,
		FoodFloor:         3,
		InitialFood:       1,
		SendBuffer:        256,
		MessageRate:       60,
		MessageBurst:      120,
		MaxConns:          1000,
		MaxConnsPerIP:     20,
	}
}

// World returns the food placement bounds
func (c Config) World() WorldConfig {
	return WorldConfig{Width: c.GridWidth, Height: c.GridHeight, Boundary: c.Boundary}
}

// LoadConfig builds a Config from defaults, the .env file named by
// ARENA_ENV_FILE (default ".env"), ARENA_* environment variables and
// finally command-line flags.
func LoadConfig(args []string) (Config, error) {
	envFile := os.Getenv("ARENA_ENV_FILE")
	if envFile == "" {
		envFile = ".env"
	}
	if err := loadDotEnv(envFile); err != nil {
		return Config{}, err
	}
	return parseConfig(args, os.Getenv)
}

// loadDotEnv loads path into the process environment. A missing file is not an error.
// Variables already set take precedence over the file.
func loadDotEnv(path string) error {
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

func parseConfig(args []string, getenv func(string) string) (Config, error) {
	cfg := DefaultConfig()
	if err := applyEnv(&cfg, getenv); err != nil {
		return Config{}, err
	}

	fset := flag.NewFlagSet("arena-sync-server", flag.ContinueOnError)
	fset.StringVar(&cfg.Addr, "addr", cfg.Addr, "websocket listen address")
	fset.IntVar(&cfg.GridWidth, "grid-width", cfg.GridWidth, "playfield width in cells")
	fset.IntVar(&cfg.GridHeight, "grid-height", cfg.GridHeight, "playfield height in cells")
	fset.IntVar(&cfg.Boundary, "boundary", cfg.Boundary, "boundary margin in cells")
	fset.DurationVar(&cfg.PeerInterval, "peer-interval", cfg.PeerInterval, "player_states broadcast period")
	fset.DurationVar(&cfg.ReplenishInterval, "replenish-interval", cfg.ReplenishInterval, "food replenishment period")
	fset.IntVar(&cfg.FoodFloor, "food-floor", cfg.FoodFloor, "minimum food count kept by replenishment")
	fset.IntVar(&cfg.InitialFood, "initial-food", cfg.InitialFood, "food items spawned at start")
	fset.Uint64Var(&cfg.Seed, "seed", cfg.Seed, "food placement seed, 0 for random")
	fset.IntVar(&cfg.SendBuffer, "send-buffer", cfg.SendBuffer, "queued outbound frames per connection")
	fset.Float64Var(&cfg.MessageRate, "message-rate", cfg.MessageRate, "inbound messages per second per connection, 0 for unlimited")
	fset.IntVar(&cfg.MessageBurst, "message-burst", cfg.MessageBurst, "inbound message burst per connection")
	fset.IntVar(&cfg.MaxConns, "max-conns", cfg.MaxConns, "maximum open connections, 0 for unlimited")
	fset.IntVar(&cfg.MaxConnsPerIP, "max-conns-per-ip", cfg.MaxConnsPerIP, "maximum open connections per IP, 0 for unlimited")
	fset.StringVar(&cfg.DBPath, "db", cfg.DBPath, "SQLite event journal path, empty to disable")
	origins := fset.String("origins", strings.Join(cfg.AllowedOrigins, ","), "comma separated allowed Origin hosts, empty allows any")
	if err := fset.Parse(args); err != nil {
		return Config{}, err
	}
	cfg.AllowedOrigins = splitList(*origins)

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config, getenv func(string) string) error {
	var errs []error
	str := func(key string, dst *string) {
		if v := getenv(key); v != "" {
			*dst = v
		}
	}
	integer := func(key string, dst *int) {
		if v := getenv(key); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = n
		}
	}
	duration := func(key string, dst *time.Duration) {
		if v := getenv(key); v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = d
		}
	}

	str("ARENA_ADDR", &cfg.Addr)
	integer("ARENA_GRID_WIDTH", &cfg.GridWidth)
	integer("ARENA_GRID_HEIGHT", &cfg.GridHeight)
	integer("ARENA_BOUNDARY", &cfg.Boundary)
	duration("ARENA_PEER_INTERVAL", &cfg.PeerInterval)
	duration("ARENA_REPLENISH_INTERVAL", &cfg.ReplenishInterval)
	integer("ARENA_FOOD_FLOOR", &cfg.FoodFloor)
	integer("ARENA_INITIAL_FOOD", &cfg.InitialFood)
	integer("ARENA_SEND_BUFFER", &cfg.SendBuffer)
	integer("ARENA_MESSAGE_BURST", &cfg.MessageBurst)
	integer("ARENA_MAX_CONNS", &cfg.MaxConns)
	integer("ARENA_MAX_CONNS_PER_IP", &cfg.MaxConnsPerIP)
	str("ARENA_DB", &cfg.DBPath)
	str("ARENA_ADMIN_PASSWORD_HASH", &cfg.AdminPasswordHash)
	str("ARENA_ADMIN_SECRET", &cfg.AdminSecret)

	if v := getenv("ARENA_MESSAGE_RATE"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			errs = append(errs, fmt.Errorf("ARENA_MESSAGE_RATE: %w", err))
		} else {
			cfg.MessageRate = f
		}
	}
	if v := getenv("ARENA_SEED"); v != "" {
		n, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			errs = append(errs, fmt.Errorf("ARENA_SEED: %w", err))
		} else {
			cfg.Seed = n
		}
	}
	if v := getenv("ARENA_ORIGINS"); v != "" {
		cfg.AllowedOrigins = splitList(v)
	}
	return errors.Join(errs...)
}

func (c Config) validate() error {
	var errs []error
	if c.GridWidth <= 0 || c.GridHeight <= 0 {
		errs = append(errs, fmt.Errorf("grid must be positive, got %dx%d", c.GridWidth, c.GridHeight))
	}
	if c.Boundary < 0 {
		errs = append(errs, fmt.Errorf("boundary must not be negative, got %d", c.Boundary))
	}
	if c.PeerInterval <= 0 || c.ReplenishInterval <= 0 {
		errs = append(errs, errors.New("tick intervals must be positive"))
	}
	if c.InitialFood < 1 {
		errs = append(errs, fmt.Errorf("initial food must be at least 1, got %d", c.InitialFood))
	}
	if c.FoodFloor < 0 {
		errs = append(errs, fmt.Errorf("food floor must not be negative, got %d", c.FoodFloor))
	}
	if c.SendBuffer < 1 {
		errs = append(errs, fmt.Errorf("send buffer must be at least 1, got %d", c.SendBuffer))
	}
	if c.MessageRate < 0 || c.MessageBurst < 0 {
		errs = append(errs, errors.New("message rate and burst must not be negative"))
	}
	if c.MessageRate > 0 && c.MessageBurst < 1 {
		errs = append(errs, errors.New("message burst must be at least 1 when a rate is set"))
	}
	return errors.Join(errs...)
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
