// Package ops loads the runtime configuration of the ingest binaries.
package ops

import (
	"fmt"
	"os"
	"strings"
	"time"

	"marketfeed/internal/chaos"
	"marketfeed/internal/ingest"
	"marketfeed/internal/ingest/skyblock"
	"marketfeed/pkg/conn"

	"github.com/bytedance/sonic"
	"github.com/yanun0323/errors"
)

const (
	defaultMetricsAddr = ":9105"
	defaultProfileApp  = "marketfeed.ingest"
)

// Duration decodes from a Go duration string ("1.5s") or from milliseconds.
type Duration time.Duration

func (d *Duration) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(b))
	if s == "null" || s == `""` {
		*d = 0
		return nil
	}
	if strings.HasPrefix(s, `"`) {
		parsed, err := time.ParseDuration(strings.Trim(s, `"`))
		if err != nil {
			return err
		}
		*d = Duration(parsed)
		return nil
	}
	var ms int64
	if err := sonic.UnmarshalString(s, &ms); err != nil {
		return fmt.Errorf("duration must be a string or milliseconds: %s", s)
	}
	*d = Duration(time.Duration(ms) * time.Millisecond)
	return nil
}

func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// FileConfig mirrors the JSON config layout.
type FileConfig struct {
	Store      StoreConfig      `json:"store"`
	DeadLetter DeadLetterConfig `json:"deadLetter"`
	Feed       FeedConfig       `json:"feed"`
	Pipeline   PipelineConfig   `json:"pipeline"`
	Metrics    MetricsConfig    `json:"metrics"`
	Profiling  ProfilingConfig  `json:"profiling"`
	Chaos      ChaosConfig      `json:"chaos"`
}

// StoreConfig selects and addresses the database.
type StoreConfig struct {
	Driver     string            `json:"driver"`
	Host       string            `json:"host"`
	Port       int               `json:"port"`
	User       string            `json:"user"`
	Password   string            `json:"password"`
	Database   string            `json:"database"`
	SSLMode    string            `json:"sslMode"`
	Params     map[string]string `json:"params"`
	ConnString string            `json:"connString"`
	BatchSize  int               `json:"batchSize"`
}

// DeadLetterConfig locates the dead-letter set. An empty dir keeps it in memory.
type DeadLetterConfig struct {
	Disabled bool   `json:"disabled"`
	Dir      string `json:"dir"`
}

// FeedConfig addresses the Skyblock API.
type FeedConfig struct {
	BaseURL         string   `json:"baseUrl"`
	APIKey          string   `json:"apiKey"`
	BazaarInterval  Duration `json:"bazaarInterval"`
	AuctionInterval Duration `json:"auctionInterval"`
	Timeout         Duration `json:"timeout"`
	Retries         uint     `json:"retries"`
	RetryDelay      Duration `json:"retryDelay"`
}

// PipelineConfig tunes the coordinator.
type PipelineConfig struct {
	PollInterval Duration `json:"pollInterval"`
	MaxAttempts  int      `json:"maxAttempts"`
	QuitToken    string   `json:"quitToken"`
}

// MetricsConfig controls the prometheus endpoint. An empty addr uses the default,
// "-" disables it.
type MetricsConfig struct {
	Addr string `json:"addr"`
}

// ProfilingConfig controls continuous profiling.
type ProfilingConfig struct {
	ServerAddress   string `json:"serverAddress"`
	ApplicationName string `json:"applicationName"`
}

// ChaosConfig injects store faults for drills.
type ChaosConfig struct {
	Seed            int64    `json:"seed"`
	UnavailableRate float64  `json:"unavailableRate"`
	RejectRate      float64  `json:"rejectRate"`
	MaxDelay        Duration `json:"maxDelay"`
}

// Loaded is the resolved configuration ready for use.
type Loaded struct {
	Store       conn.Option
	BatchSize   int
	DeadLetter  DeadLetterConfig
	Feed        skyblock.ClientOption
	Intervals   Intervals
	Pipeline    ingest.Options
	MetricsAddr string
	Profiling   ProfilingConfig
	Chaos       chaos.Config
}

// Intervals are the resolved producer poll intervals.
type Intervals struct {
	Bazaar  time.Duration
	Auction time.Duration
}

// Load reads a JSON config file and resolves it. An empty path yields the
// defaults.
func Load(path string) (Loaded, error) {
	var cfg FileConfig
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Loaded{}, errors.Wrap(err, "read config")
		}
		if err := sonic.Unmarshal(data, &cfg); err != nil {
			return Loaded{}, errors.Wrap(err, "unmarshal config")
		}
	}
	return Resolve(cfg)
}

// Resolve validates cfg and fills in defaults.
func Resolve(cfg FileConfig) (Loaded, error) {
	store, err := resolveStore(cfg.Store)
	if err != nil {
		return Loaded{}, err
	}
	if cfg.Store.BatchSize < 0 {
		return Loaded{}, fmt.Errorf("store batchSize must be >= 0")
	}

	feed, intervals, err := resolveFeed(cfg.Feed)
	if err != nil {
		return Loaded{}, err
	}

	pipeline, err := resolvePipeline(cfg.Pipeline)
	if err != nil {
		return Loaded{}, err
	}

	chaosCfg := chaos.Config{
		Seed:            cfg.Chaos.Seed,
		UnavailableRate: cfg.Chaos.UnavailableRate,
		RejectRate:      cfg.Chaos.RejectRate,
		MaxDelay:        cfg.Chaos.MaxDelay.Std(),
	}
	if err := chaosCfg.Validate(); err != nil {
		return Loaded{}, fmt.Errorf("invalid chaos config: %w", err)
	}

	metricsAddr := strings.TrimSpace(cfg.Metrics.Addr)
	switch metricsAddr {
	case "":
		metricsAddr = defaultMetricsAddr
	case "-":
		metricsAddr = ""
	}

	profiling := cfg.Profiling
	if profiling.ServerAddress != "" && profiling.ApplicationName == "" {
		profiling.ApplicationName = defaultProfileApp
	}

	return Loaded{
		Store:       store,
		BatchSize:   cfg.Store.BatchSize,
		DeadLetter:  cfg.DeadLetter,
		Feed:        feed,
		Intervals:   intervals,
		Pipeline:    pipeline,
		MetricsAddr: metricsAddr,
		Profiling:   profiling,
		Chaos:       chaosCfg,
	}, nil
}

func resolveStore(cfg StoreConfig) (conn.Option, error) {
	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	switch driver {
	case "":
		driver = conn.DriverSQLite
	case conn.DriverSQLite, conn.DriverPostgres:
	default:
		return conn.Option{}, fmt.Errorf("store driver not supported: %s", cfg.Driver)
	}
	if cfg.Port < 0 {
		return conn.Option{}, fmt.Errorf("store port must be >= 0")
	}
	return conn.Option{
		Driver:     driver,
		Host:       cfg.Host,
		Port:       cfg.Port,
		User:       cfg.User,
		Password:   cfg.Password,
		Database:   cfg.Database,
		SSLMode:    cfg.SSLMode,
		Params:     cfg.Params,
		ConnString: cfg.ConnString,
	}, nil
}

func resolveFeed(cfg FeedConfig) (skyblock.ClientOption, Intervals, error) {
	if cfg.BazaarInterval < 0 || cfg.AuctionInterval < 0 {
		return skyblock.ClientOption{}, Intervals{}, fmt.Errorf("feed intervals must be >= 0")
	}
	if cfg.Timeout < 0 || cfg.RetryDelay < 0 {
		return skyblock.ClientOption{}, Intervals{}, fmt.Errorf("feed timeout and retryDelay must be >= 0")
	}

	apiKey := cfg.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("HYPIXEL_API_KEY")
	}

	intervals := Intervals{
		Bazaar:  cfg.BazaarInterval.Std(),
		Auction: cfg.AuctionInterval.Std(),
	}
	if intervals.Bazaar == 0 {
		intervals.Bazaar = skyblock.DefaultBazaarInterval
	}
	if intervals.Auction == 0 {
		intervals.Auction = skyblock.DefaultAuctionInterval
	}

	return skyblock.ClientOption{
		BaseURL:    cfg.BaseURL,
		APIKey:     apiKey,
		Timeout:    cfg.Timeout.Std(),
		Retries:    cfg.Retries,
		RetryDelay: cfg.RetryDelay.Std(),
	}, intervals, nil
}

func resolvePipeline(cfg PipelineConfig) (ingest.Options, error) {
	if cfg.PollInterval < 0 {
		return ingest.Options{}, fmt.Errorf("pipeline pollInterval must be >= 0")
	}
	if cfg.MaxAttempts < 0 {
		return ingest.Options{}, fmt.Errorf("pipeline maxAttempts must be >= 0")
	}

	opt := ingest.Options{
		PollInterval: cfg.PollInterval.Std(),
		MaxAttempts:  cfg.MaxAttempts,
		QuitToken:    strings.TrimSpace(cfg.QuitToken),
	}
	if opt.PollInterval == 0 {
		opt.PollInterval = ingest.DefaultPollInterval
	}
	if opt.MaxAttempts == 0 {
		opt.MaxAttempts = ingest.DefaultMaxAttempts
	}
	if opt.QuitToken == "" {
		opt.QuitToken = ingest.DefaultQuitToken
	}
	return opt, nil
}
