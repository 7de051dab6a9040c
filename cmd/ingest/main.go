package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"marketfeed/internal/chaos"
	"marketfeed/internal/deadletter"
	"marketfeed/internal/ingest"
	"marketfeed/internal/ingest/skyblock"
	"marketfeed/internal/model/enum"
	"marketfeed/internal/obs"
	"marketfeed/internal/ops"
	"marketfeed/internal/store"
	"marketfeed/pkg/conn"

	pyroscope "github.com/grafana/pyroscope-go"
	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"
)

func main() {
	if err := run(); err != nil {
		logs.Errorf("ingest: %+v", err)
		os.Exit(1)
	}
}

func run() error {
	configFlag := flag.String("config", "", "JSON config file (optional)")
	dbFlag := flag.String("db", "", "sqlite database path, overrides store config")
	deadLetterFlag := flag.String("dead-letter-dir", "", "dead-letter directory, overrides config")
	metricsFlag := flag.String("metrics-addr", "", "metrics listen address, \"-\" disables")
	flag.Parse()

	cfg, err := ops.Load(strings.TrimSpace(*configFlag))
	if err != nil {
		return err
	}
	if db := strings.TrimSpace(*dbFlag); db != "" {
		cfg.Store = conn.Option{Driver: conn.DriverSQLite, Database: db}
	}
	if dir := strings.TrimSpace(*deadLetterFlag); dir != "" {
		cfg.DeadLetter.Dir = dir
	}
	switch addr := strings.TrimSpace(*metricsFlag); addr {
	case "":
	case "-":
		cfg.MetricsAddr = ""
	default:
		cfg.MetricsAddr = addr
	}

	if cfg.Profiling.ServerAddress != "" {
		profiler, err := pyroscope.Start(pyroscope.Config{
			ApplicationName: cfg.Profiling.ApplicationName,
			ServerAddress:   cfg.Profiling.ServerAddress,
			ProfileTypes: []pyroscope.ProfileType{
				pyroscope.ProfileCPU,
				pyroscope.ProfileAllocObjects,
				pyroscope.ProfileAllocSpace,
				pyroscope.ProfileInuseObjects,
				pyroscope.ProfileInuseSpace,
			},
		})
		if err != nil {
			return errors.Wrap(err, "start pyroscope")
		}
		defer func() {
			_ = profiler.Stop()
		}()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var (
		companions []store.Companion
		deadLetter ingest.DeadLetter
	)
	if !cfg.DeadLetter.Disabled {
		dl, err := deadletter.Open(deadletter.Options{Dir: cfg.DeadLetter.Dir})
		if err != nil {
			return errors.Wrap(err, "open dead letters")
		}
		companions = append(companions, dl)
		deadLetter = dl
	}

	client, err := conn.New(cfg.Store)
	if err != nil {
		for _, c := range companions {
			_ = c.Close()
		}
		return errors.Wrap(err, "connect store")
	}

	if err := client.Ping(); err != nil {
		_ = client.Close()
		for _, c := range companions {
			_ = c.Close()
		}
		return errors.Wrapf(err, "ping %s store", client.Driver())
	}
	logs.Infof("store %s connected", client.Driver())

	st, err := store.New(client, store.Options{BatchSize: cfg.BatchSize, Companions: companions})
	if err != nil {
		return err
	}
	// the pipeline closes the store on exit; this covers the early returns
	defer st.Close()

	if err := st.Migrate(ctx); err != nil {
		return err
	}

	metrics := obs.NewMetrics(obs.DefaultPrefix)
	if cfg.MetricsAddr != "" {
		srv := &http.Server{Addr: cfg.MetricsAddr, Handler: metrics.Handler(), ReadHeaderTimeout: 5 * time.Second}
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logs.Errorf("metrics server, err: %+v", err)
			}
		}()
		defer srv.Close()
		logs.Infof("metrics listening on %s", cfg.MetricsAddr)
	}

	engine, err := chaos.NewEngine(cfg.Chaos)
	if err != nil {
		return err
	}
	if !cfg.Chaos.Enabled() {
		engine = nil
	} else {
		logs.Warnf("chaos enabled: unavailable=%.2f reject=%.2f", cfg.Chaos.UnavailableRate, cfg.Chaos.RejectRate)
	}

	feed := skyblock.NewClient(cfg.Feed)
	streams := []ingest.Stream{
		{
			Category: enum.CategoryBazaar,
			Producer: skyblock.NewBazaarProducer(feed, cfg.Intervals.Bazaar),
			Write:    engine.Wrap(st.WriteBazaar),
		},
		{
			Category: enum.CategoryAuction,
			Producer: skyblock.NewAuctionProducer(feed, cfg.Intervals.Auction),
			Write:    engine.Wrap(st.WriteAuctions),
		},
	}

	opt := cfg.Pipeline
	opt.DeadLetter = deadLetter
	opt.Metrics = metrics
	opt.Input = os.Stdin

	shutdown := ingest.NewShutdown()
	pipeline, err := ingest.NewPipeline(streams, st, shutdown, opt)
	if err != nil {
		return err
	}

	logs.Infof("ingesting, type %q and press enter to quit", opt.QuitToken)
	return pipeline.Run(ctx)
}
