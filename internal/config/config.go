package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

var ErrInvalid = errors.New("invalid config")

// Transport names.
const (
	TransportBus   = "bus"
	TransportUDP   = "udp"
	TransportRelay = "relay"
)

type Config struct {
	Nick    string
	DataDir string

	StoreBackend string
	// StoreDSN overrides the derived store location (file, directory, DSN or address).
	StoreDSN string

	Transport   string
	Channel     string
	UDPBindHost string
	Port        int
	PortSpan    int
	UDPTargets  []string
	RelayURL    string
	RelayListen string

	WebPort int

	HeartbeatInterval time.Duration
	SweepInterval     time.Duration
	LivenessTimeout   time.Duration
	MonotonicLastSeen bool

	SeedDemo       bool
	DiscordWebhook string

	LogFile  string
	LogLevel string
	Headless bool
}

func Default() Config {
	return Config{
		DataDir:           ".",
		StoreBackend:      "sqlite",
		Transport:         TransportUDP,
		Channel:           "meshaid-p2p-v1",
		UDPBindHost:       "0.0.0.0",
		Port:              9000,
		PortSpan:          6,
		UDPTargets:        []string{"127.0.0.1", "255.255.255.255"},
		RelayURL:          "ws://127.0.0.1:7070/ws",
		RelayListen:       ":7070",
		WebPort:           8080,
		HeartbeatInterval: 5 * time.Second,
		SweepInterval:     10 * time.Second,
		LivenessTimeout:   15 * time.Second,
		MonotonicLastSeen: true,
		SeedDemo:          true,
		LogFile:           "meshaid.log",
		LogLevel:          "info",
	}
}

// Load returns the defaults overlaid with envFile (when it exists) and then
// with MESHAID_* variables from the process environment. Variables already
// set in the environment win over the file.
func Load(envFile string) (Config, error) {
	cfg := Default()
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return cfg, fmt.Errorf("failed to load %s: %w", envFile, err)
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	str := func(key string, dst *string) {
		if v, ok := os.LookupEnv("MESHAID_" + key); ok {
			*dst = v
		}
	}
	var errs []error
	num := func(key string, dst *int) {
		if v, ok := os.LookupEnv("MESHAID_" + key); ok {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("MESHAID_%s: %w", key, err))
				return
			}
			*dst = n
		}
	}
	dur := func(key string, dst *time.Duration) {
		if v, ok := os.LookupEnv("MESHAID_" + key); ok {
			d, err := time.ParseDuration(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("MESHAID_%s: %w", key, err))
				return
			}
			*dst = d
		}
	}
	flag := func(key string, dst *bool) {
		if v, ok := os.LookupEnv("MESHAID_" + key); ok {
			b, err := strconv.ParseBool(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("MESHAID_%s: %w", key, err))
				return
			}
			*dst = b
		}
	}

	str("NICK", &c.Nick)
	str("DATA_DIR", &c.DataDir)
	str("STORE", &c.StoreBackend)
	str("STORE_DSN", &c.StoreDSN)
	str("TRANSPORT", &c.Transport)
	str("CHANNEL", &c.Channel)
	str("UDP_BIND", &c.UDPBindHost)
	num("PORT", &c.Port)
	num("PORT_SPAN", &c.PortSpan)
	if v, ok := os.LookupEnv("MESHAID_UDP_TARGETS"); ok {
		c.UDPTargets = SplitList(v)
	}
	str("RELAY_URL", &c.RelayURL)
	str("RELAY_LISTEN", &c.RelayListen)
	num("WEB_PORT", &c.WebPort)
	dur("HEARTBEAT_INTERVAL", &c.HeartbeatInterval)
	dur("SWEEP_INTERVAL", &c.SweepInterval)
	dur("LIVENESS_TIMEOUT", &c.LivenessTimeout)
	flag("MONOTONIC_LAST_SEEN", &c.MonotonicLastSeen)
	flag("SEED_DEMO", &c.SeedDemo)
	str("DISCORD_WEBHOOK", &c.DiscordWebhook)
	str("LOG_FILE", &c.LogFile)
	str("LOG_LEVEL", &c.LogLevel)
	flag("HEADLESS", &c.Headless)

	return errors.Join(errs...)
}

// Validate checks the combinations the mesh depends on.
func (c Config) Validate() error {
	switch {
	case c.HeartbeatInterval <= 0 || c.SweepInterval <= 0 || c.LivenessTimeout <= 0:
		return fmt.Errorf("%w: heartbeat, sweep and liveness durations must be positive", ErrInvalid)
	case c.LivenessTimeout < c.HeartbeatInterval:
		return fmt.Errorf("%w: liveness timeout %s shorter than heartbeat interval %s", ErrInvalid, c.LivenessTimeout, c.HeartbeatInterval)
	case c.Channel == "":
		return fmt.Errorf("%w: channel name is empty", ErrInvalid)
	}

	switch c.Transport {
	case TransportBus, TransportRelay:
	case TransportUDP:
		if c.Port <= 0 || c.Port > 65535 || c.PortSpan <= 0 || c.Port+c.PortSpan-1 > 65535 {
			return fmt.Errorf("%w: udp port range %d+%d", ErrInvalid, c.Port, c.PortSpan)
		}
	default:
		return fmt.Errorf("%w: unknown transport %q", ErrInvalid, c.Transport)
	}

	switch c.StoreBackend {
	case "sqlite", "badger", "consul", "memory":
	case "mysql":
		if c.StoreDSN == "" {
			return fmt.Errorf("%w: mysql store needs a DSN", ErrInvalid)
		}
	default:
		return fmt.Errorf("%w: unknown store backend %q", ErrInvalid, c.StoreBackend)
	}
	return nil
}

// StoreLocation resolves where the configured backend keeps its data. Files
// are suffixed with the port so several peers can share a data dir.
func (c Config) StoreLocation() string {
	if c.StoreDSN != "" {
		return c.StoreDSN
	}
	switch c.StoreBackend {
	case "sqlite":
		return filepath.Join(c.DataDir, fmt.Sprintf("meshaid_%d.db", c.Port))
	case "badger":
		return filepath.Join(c.DataDir, fmt.Sprintf("meshaid_%d.badger", c.Port))
	}
	return ""
}

// SplitList splits a comma separated list, dropping blanks.
func SplitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
