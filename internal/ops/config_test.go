package ops

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"marketfeed/internal/ingest"
	"marketfeed/internal/ingest/skyblock"
	"marketfeed/pkg/conn"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("HYPIXEL_API_KEY", "")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, conn.DriverSQLite, cfg.Store.Driver)
	assert.Equal(t, ingest.DefaultPollInterval, cfg.Pipeline.PollInterval)
	assert.Equal(t, ingest.DefaultMaxAttempts, cfg.Pipeline.MaxAttempts)
	assert.Equal(t, ingest.DefaultQuitToken, cfg.Pipeline.QuitToken)
	assert.Equal(t, skyblock.DefaultBazaarInterval, cfg.Intervals.Bazaar)
	assert.Equal(t, skyblock.DefaultAuctionInterval, cfg.Intervals.Auction)
	assert.Equal(t, defaultMetricsAddr, cfg.MetricsAddr)
	assert.False(t, cfg.Chaos.Enabled())
	assert.Empty(t, cfg.Profiling.ApplicationName)
}

func TestLoadFile(t *testing.T) {
	path := writeConfig(t, `{
		"store": {"driver": "postgres", "host": "db", "port": 6543, "user": "feed", "database": "market", "batchSize": 100},
		"deadLetter": {"dir": "/var/lib/marketfeed/dead"},
		"feed": {"apiKey": "k", "bazaarInterval": "30s", "auctionInterval": 45000, "retries": 5},
		"pipeline": {"pollInterval": "250ms", "maxAttempts": 7, "quitToken": " exit "},
		"metrics": {"addr": "-"},
		"profiling": {"serverAddress": "http://pyroscope:4040"},
		"chaos": {"seed": 3, "unavailableRate": 0.1}
	}`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, conn.DriverPostgres, cfg.Store.Driver)
	assert.Equal(t, "db", cfg.Store.Host)
	assert.Equal(t, 6543, cfg.Store.Port)
	assert.Equal(t, 100, cfg.BatchSize)
	assert.Equal(t, "/var/lib/marketfeed/dead", cfg.DeadLetter.Dir)
	assert.Equal(t, "k", cfg.Feed.APIKey)
	assert.Equal(t, uint(5), cfg.Feed.Retries)
	assert.Equal(t, 30*time.Second, cfg.Intervals.Bazaar)
	assert.Equal(t, 45*time.Second, cfg.Intervals.Auction)
	assert.Equal(t, 250*time.Millisecond, cfg.Pipeline.PollInterval)
	assert.Equal(t, 7, cfg.Pipeline.MaxAttempts)
	assert.Equal(t, "exit", cfg.Pipeline.QuitToken)
	assert.Empty(t, cfg.MetricsAddr)
	assert.Equal(t, defaultProfileApp, cfg.Profiling.ApplicationName)
	assert.True(t, cfg.Chaos.Enabled())
	assert.Equal(t, int64(3), cfg.Chaos.Seed)
}

func TestAPIKeyFromEnv(t *testing.T) {
	t.Setenv("HYPIXEL_API_KEY", "from-env")
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.Feed.APIKey)
}

func TestResolveRejectsInvalid(t *testing.T) {
	testCases := []struct {
		desc string
		cfg  FileConfig
	}{
		{desc: "driver", cfg: FileConfig{Store: StoreConfig{Driver: "mysql"}}},
		{desc: "port", cfg: FileConfig{Store: StoreConfig{Port: -1}}},
		{desc: "batch size", cfg: FileConfig{Store: StoreConfig{BatchSize: -1}}},
		{desc: "interval", cfg: FileConfig{Feed: FeedConfig{BazaarInterval: -1}}},
		{desc: "poll interval", cfg: FileConfig{Pipeline: PipelineConfig{PollInterval: -1}}},
		{desc: "max attempts", cfg: FileConfig{Pipeline: PipelineConfig{MaxAttempts: -2}}},
		{desc: "chaos", cfg: FileConfig{Chaos: ChaosConfig{RejectRate: 2}}},
	}

	for _, tc := range testCases {
		t.Run(tc.desc, func(t *testing.T) {
			_, err := Resolve(tc.cfg)
			assert.Error(t, err)
		})
	}
}

func TestLoadBadDuration(t *testing.T) {
	path := writeConfig(t, `{"pipeline": {"pollInterval": "soon"}}`)
	_, err := Load(path)
	assert.Error(t, err)
}
