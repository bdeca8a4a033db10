package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/emrgen/wikistore/cmd"
	"github.com/emrgen/wikistore/internal/config"
	"github.com/emrgen/wikistore/internal/jobs"
	"github.com/emrgen/wikistore/internal/store"
)

func main() {
	// with arguments this binary is the CLI, without it runs the daemon
	if len(os.Args) > 1 {
		cmd.Execute()
		return
	}

	path := os.Getenv("WIKISTORE_CONFIG")
	if path == "" {
		path = "wikistore.toml"
	}

	cfg, err := config.LoadConfig(path)
	if err != nil {
		logrus.Fatalf("loading config: %v", err)
	}

	s, err := store.NewFromConfig(cfg, store.NewMappingRegistry())
	if err != nil {
		logrus.Fatalf("opening store: %v", err)
	}
	defer s.Close()

	if err := s.Migrate(); err != nil {
		logrus.Fatalf("migrating store: %v", err)
	}

	executor := jobs.NewTaskExecutor([]jobs.CronJob{
		jobs.NewLockSweeper(s, cfg.Wikis, cfg.Locks.TTL, cfg.Locks.SweepSchedule),
	})
	executor.Run()
	defer executor.Stop()

	logrus.Infof("wikistore running with %s backend", cfg.Store.Backend)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
}
