package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"shortsguard/backend/global"
	"shortsguard/backend/initialize"
	"shortsguard/backend/server"
)

func main() {
	var (
		cfgPath       = flag.String("config", "config/backend.yaml", "Path to configuration file")
		mintToken     = flag.String("mint-token", "", "Print a session token for the given agent id and exit")
		pruneInterval = flag.Duration("prune-interval", time.Hour, "Block log retention sweep interval")
	)
	flag.Parse()

	app, err := initialize.Build(*cfgPath)
	if err != nil {
		global.Logger.Error().Err(err).Msg("backend build failed")
		os.Exit(1)
	}

	if *mintToken != "" {
		token, err := app.Signer.Sign(*mintToken)
		if err != nil {
			global.Logger.Error().Err(err).Msg("token mint failed")
			os.Exit(1)
		}
		fmt.Println(token)
		return
	}

	srv, err := server.StartProtocolServer(app.Cfg.Addr(), app.Ctrl)
	if err != nil {
		global.Logger.Error().Err(err).Msg("protocol server failed to start")
		os.Exit(1)
	}
	defer srv.Close()
	if app.Watcher != nil {
		defer app.Watcher.Close()
	}

	// Retention sweep, until shutdown.
	stop := make(chan struct{})
	go func() {
		t := time.NewTicker(*pruneInterval)
		defer t.Stop()
		for {
			select {
			case <-stop:
				return
			case <-t.C:
				if err := app.Logs.Prune(); err != nil {
					global.Logger.Error().Err(err).Msg("log prune failed")
				}
			}
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	close(stop)
	global.Logger.Info().Msg("shutting down")
}
