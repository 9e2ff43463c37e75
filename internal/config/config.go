package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"fleetd/internal/common/fsutil"
)

const (
	OnlinePush = "push"
	OnlinePull = "pull"
)

// Config holds runtime parameters for the coordinator and the agent.
// Zero values mean "unspecified" and are replaced by Defaults in Merge.
type Config struct {
	Addr      string `json:"addr" yaml:"addr" toml:"addr"`
	DBPath    string `json:"db_path" yaml:"db_path" toml:"db_path"`
	LogLevel  string `json:"log_level" yaml:"log_level" toml:"log_level"`
	LogFormat string `json:"log_format" yaml:"log_format" toml:"log_format"`

	// OnlineMode is "push" (heartbeat age) or "pull" (probe agents).
	OnlineMode       string   `json:"online_mode" yaml:"online_mode" toml:"online_mode"`
	HeartbeatTimeout Duration `json:"heartbeat_timeout" yaml:"heartbeat_timeout" toml:"heartbeat_timeout"`
	PullTimeout      Duration `json:"pull_timeout" yaml:"pull_timeout" toml:"pull_timeout"`
	PullConcurrency  int      `json:"pull_concurrency" yaml:"pull_concurrency" toml:"pull_concurrency"`
	StatsInterval    Duration `json:"stats_interval" yaml:"stats_interval" toml:"stats_interval"`

	// Admins lists login names allowed to see every node.
	Admins       []string `json:"admins" yaml:"admins" toml:"admins"`
	MaxBodyBytes int64    `json:"max_body_bytes" yaml:"max_body_bytes" toml:"max_body_bytes"`
	CORS         CORS     `json:"cors" yaml:"cors" toml:"cors"`

	Agent Agent `json:"agent" yaml:"agent" toml:"agent"`
}

type CORS struct {
	Enabled bool     `json:"enabled" yaml:"enabled" toml:"enabled"`
	Origins []string `json:"origins" yaml:"origins" toml:"origins"`
	Methods []string `json:"methods" yaml:"methods" toml:"methods"`
	Headers []string `json:"headers" yaml:"headers" toml:"headers"`
}

// Agent configures `fleetd agent`.
type Agent struct {
	Coordinator  string   `json:"coordinator" yaml:"coordinator" toml:"coordinator"`
	Listen       string   `json:"listen" yaml:"listen" toml:"listen"`
	LoginName    string   `json:"login_name" yaml:"login_name" toml:"login_name"`
	MinerName    string   `json:"miner_name" yaml:"miner_name" toml:"miner_name"`
	WorkerName   string   `json:"worker_name" yaml:"worker_name" toml:"worker_name"`
	Interval     Duration `json:"interval" yaml:"interval" toml:"interval"`
	ClientIDFile string   `json:"client_id_file" yaml:"client_id_file" toml:"client_id_file"`
}

// Defaults returns the configuration used when nothing else is specified.
func Defaults() Config {
	return Config{
		Addr:             ":3339",
		DBPath:           "~/.fleetd/fleetd.db",
		LogLevel:         "info",
		LogFormat:        "console",
		OnlineMode:       OnlinePush,
		HeartbeatTimeout: Duration(3 * time.Minute),
		PullTimeout:      Duration(3 * time.Second),
		PullConcurrency:  16,
		StatsInterval:    Duration(30 * time.Second),
		MaxBodyBytes:     1 << 20,
		CORS: CORS{
			Methods: []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			Headers: []string{"Accept", "Authorization", "Content-Type", "X-Fleet-Login"},
		},
		Agent: Agent{
			Coordinator:  "http://127.0.0.1:3339",
			Listen:       ":3336",
			Interval:     Duration(20 * time.Second),
			ClientIDFile: "~/.fleetd/client-id",
		},
	}
}

// Merge fills every unspecified field of c from d.
func (c Config) Merge(d Config) Config {
	str := func(dst *string, v string) {
		if *dst == "" {
			*dst = v
		}
	}
	dur := func(dst *Duration, v Duration) {
		if *dst <= 0 {
			*dst = v
		}
	}
	str(&c.Addr, d.Addr)
	str(&c.DBPath, d.DBPath)
	str(&c.LogLevel, d.LogLevel)
	str(&c.LogFormat, d.LogFormat)
	str(&c.OnlineMode, d.OnlineMode)
	dur(&c.HeartbeatTimeout, d.HeartbeatTimeout)
	dur(&c.PullTimeout, d.PullTimeout)
	dur(&c.StatsInterval, d.StatsInterval)
	if c.PullConcurrency <= 0 {
		c.PullConcurrency = d.PullConcurrency
	}
	if c.MaxBodyBytes <= 0 {
		c.MaxBodyBytes = d.MaxBodyBytes
	}
	if len(c.Admins) == 0 {
		c.Admins = d.Admins
	}
	if len(c.CORS.Origins) == 0 {
		c.CORS.Origins = d.CORS.Origins
	}
	if len(c.CORS.Methods) == 0 {
		c.CORS.Methods = d.CORS.Methods
	}
	if len(c.CORS.Headers) == 0 {
		c.CORS.Headers = d.CORS.Headers
	}
	str(&c.Agent.Coordinator, d.Agent.Coordinator)
	str(&c.Agent.Listen, d.Agent.Listen)
	str(&c.Agent.LoginName, d.Agent.LoginName)
	str(&c.Agent.MinerName, d.Agent.MinerName)
	str(&c.Agent.WorkerName, d.Agent.WorkerName)
	str(&c.Agent.ClientIDFile, d.Agent.ClientIDFile)
	dur(&c.Agent.Interval, d.Agent.Interval)
	return c
}

// ApplyEnv overrides fields from FLEETD_* variables read through getenv.
func (c *Config) ApplyEnv(getenv func(string) string) {
	if v := getenv("FLEETD_ADDR"); v != "" {
		c.Addr = v
	}
	if v := getenv("FLEETD_DB"); v != "" {
		c.DBPath = v
	}
	if v := getenv("FLEETD_LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
	if v := getenv("FLEETD_ONLINE_MODE"); v != "" {
		c.OnlineMode = v
	}
	if v := getenv("FLEETD_ADMINS"); v != "" {
		c.Admins = splitList(v)
	}
	if v := getenv("FLEETD_COORDINATOR"); v != "" {
		c.Agent.Coordinator = v
	}
}

// ExpandPaths resolves a leading '~' in every path field.
func (c *Config) ExpandPaths() error {
	for _, p := range []*string{&c.DBPath, &c.Agent.ClientIDFile} {
		v, err := fsutil.ExpandHome(*p)
		if err != nil {
			return err
		}
		*p = v
	}
	return nil
}

// Validate rejects values the coordinator cannot run with.
func (c Config) Validate() error {
	switch c.OnlineMode {
	case OnlinePush, OnlinePull:
	default:
		return fmt.Errorf("online_mode must be %q or %q, got %q", OnlinePush, OnlinePull, c.OnlineMode)
	}
	if c.PullConcurrency < 0 {
		return fmt.Errorf("pull_concurrency must not be negative")
	}
	return nil
}

// IsAdmin reports whether login is listed in Admins.
func (c Config) IsAdmin(login string) bool {
	for _, a := range c.Admins {
		if a == login {
			return true
		}
	}
	return false
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Duration is a time.Duration read from strings such as "3m" or "20s".
// A bare number is taken as seconds.
type Duration time.Duration

func (d Duration) Std() time.Duration { return time.Duration(d) }

func (d Duration) String() string { return time.Duration(d).String() }

func (d Duration) MarshalText() ([]byte, error) { return []byte(d.String()), nil }

func (d *Duration) UnmarshalText(b []byte) error {
	s := strings.TrimSpace(string(b))
	if s == "" {
		*d = 0
		return nil
	}
	if secs, err := strconv.ParseFloat(s, 64); err == nil {
		*d = Duration(secs * float64(time.Second))
		return nil
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q", s)
	}
	*d = Duration(v)
	return nil
}

func (d *Duration) UnmarshalYAML(n *yaml.Node) error {
	return d.UnmarshalText([]byte(n.Value))
}
