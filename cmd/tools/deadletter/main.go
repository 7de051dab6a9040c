package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"marketfeed/internal/deadletter"
	"marketfeed/internal/model/enum"
	"marketfeed/internal/ops"
	"marketfeed/internal/store"
	"marketfeed/pkg/conn"

	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"
)

func main() {
	if err := run(); err != nil {
		logs.Errorf("deadletter: %+v", err)
		os.Exit(1)
	}
}

func run() error {
	configFlag := flag.String("config", "", "JSON config file (optional)")
	dirFlag := flag.String("dir", "", "dead-letter directory, overrides config")
	dbFlag := flag.String("db", "", "sqlite database path for -replay, overrides store config")
	categoryFlag := flag.String("category", "", "only this category (bazaar, auctions)")
	replayFlag := flag.Bool("replay", false, "write dead letters back to the store and delete the ones that persist")
	flag.Parse()

	cfg, err := ops.Load(strings.TrimSpace(*configFlag))
	if err != nil {
		return err
	}
	if dir := strings.TrimSpace(*dirFlag); dir != "" {
		cfg.DeadLetter.Dir = dir
	}
	if cfg.DeadLetter.Dir == "" {
		return errors.New("missing dead-letter directory; use -dir")
	}
	if db := strings.TrimSpace(*dbFlag); db != "" {
		cfg.Store = conn.Option{Driver: conn.DriverSQLite, Database: db}
	}

	categories := enum.Categories()
	if name := strings.TrimSpace(*categoryFlag); name != "" {
		c, ok := enum.ParseCategory(name)
		if !ok {
			return errors.Errorf("unknown category: %s", name)
		}
		categories = []enum.Category{c}
	}

	dl, err := deadletter.Open(deadletter.Options{Dir: cfg.DeadLetter.Dir})
	if err != nil {
		return err
	}

	if !*replayFlag {
		defer dl.Close()
		return list(dl, categories)
	}

	client, err := conn.New(cfg.Store)
	if err != nil {
		_ = dl.Close()
		return errors.Wrap(err, "connect store")
	}
	st, err := store.New(client, store.Options{BatchSize: cfg.BatchSize, Companions: []store.Companion{dl}})
	if err != nil {
		_ = dl.Close()
		return err
	}
	defer st.Close()

	ctx := context.Background()
	if err := st.Migrate(ctx); err != nil {
		return err
	}
	if err := replay(ctx, dl, st, categories); err != nil {
		return err
	}
	return st.Commit()
}

func list(dl *deadletter.Store, categories []enum.Category) error {
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "KEY\tCATEGORY\tTIMESTAMP\tATTEMPTS\tFAILED AT\tREASON")
	for _, c := range categories {
		letters, err := dl.List(c)
		if err != nil {
			return err
		}
		for _, l := range letters {
			fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%s\t%s\n",
				l.Key, l.Category, l.Timestamp, l.Attempts,
				time.UnixMilli(l.FailedAt).UTC().Format(time.RFC3339), l.Reason)
		}
	}
	return w.Flush()
}

func replay(ctx context.Context, dl *deadletter.Store, st *store.Store, categories []enum.Category) error {
	var replayed, failed int
	for _, c := range categories {
		letters, err := dl.List(c)
		if err != nil {
			return err
		}
		for _, l := range letters {
			rec, err := l.Record()
			if err != nil {
				logs.Errorf("[%s] decode %s, err: %+v", c, l.Key, err)
				failed++
				continue
			}
			if err := st.Write(ctx, rec); err != nil {
				logs.Errorf("[%s] replay %s, err: %+v", c, l.Key, err)
				failed++
				continue
			}
			if err := dl.Delete(l.Key); err != nil {
				return err
			}
			replayed++
		}
	}
	logs.Infof("replayed %d, still failing %d", replayed, failed)
	return nil
}
