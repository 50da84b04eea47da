// Command twswarm runs a fleet of autonomous characters under one
// process: a swarm manager samples their status, enforces hijack
// leases, optionally shares terrain knowledge across them, and serves
// the REST control plane an operator (or the optional SSH console)
// drives. Grounded on the ocx-backend API's main(): build the
// collaborators, register an http.Server, and shut everything down on
// SIGINT/SIGTERM with a bounded grace period.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/tw2kbot/tw2kbot/internal/botruntime"
	"github.com/tw2kbot/tw2kbot/internal/botsetup"
	"github.com/tw2kbot/tw2kbot/internal/config"
	"github.com/tw2kbot/tw2kbot/internal/console"
	"github.com/tw2kbot/tw2kbot/internal/errs"
	"github.com/tw2kbot/tw2kbot/internal/knowledge"
	"github.com/tw2kbot/tw2kbot/internal/logging"
	"github.com/tw2kbot/tw2kbot/internal/namegen"
	"github.com/tw2kbot/tw2kbot/internal/swarm"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	fs := flag.NewFlagSet("twswarm", flag.ContinueOnError)
	configPath := fs.String("config", "", "path to a JSON config file (defaults applied otherwise)")
	rulesPath := fs.String("rules", "rules.json", "path to the prompt rules document, shared by every bot in the fleet")
	recordDir := fs.String("record-dir", "", "directory to write one session recorder JSON-lines file per bot (disabled if empty)")
	fleetSize := fs.Int("n", 1, "number of characters to launch (overrides multi_character.max_characters when positive)")
	if err := fs.Parse(args); err != nil {
		return errs.ExitUsageError
	}

	cfg, err := botsetup.LoadConfig(*configPath, "TWSWARM")
	if err != nil {
		fmt.Fprintf(os.Stderr, "twswarm: %v\n", err)
		return errs.ExitConfigurationError
	}

	n := cfg.MultiCharacter.MaxCharacters
	if *fleetSize > 0 {
		n = *fleetSize
	}
	if n <= 0 {
		n = 1
	}

	rules, closeRules, err := botsetup.LoadRules(*rulesPath, false)
	if err != nil {
		fmt.Fprintf(os.Stderr, "twswarm: %v\n", err)
		return errs.ExitConfigurationError
	}
	defer closeRules()

	if *recordDir != "" {
		if err := os.MkdirAll(*recordDir, 0o755); err != nil {
			fmt.Fprintf(os.Stderr, "twswarm: create record dir: %v\n", err)
			return errs.ExitConfigurationError
		}
	}

	rootCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	manager := swarm.NewManager(
		time.Duration(cfg.Swarm.HijackLeaseCeilingS)*time.Second,
		time.Duration(cfg.Swarm.SampleIntervalS)*time.Second,
		time.Duration(cfg.Swarm.SweepIntervalS)*time.Second,
	)

	var wg sync.WaitGroup
	var sharedGraph *knowledge.Graph
	if cfg.MultiCharacter.KnowledgeSharing == config.KnowledgeSharingShared {
		sharedGraph = knowledge.NewGraph()
	}

	names := namegen.New(cfg.Character)
	for i := 0; i < n; i++ {
		botID := fmt.Sprintf("bot-%d", i+1)
		rec, closeRec, err := botsetup.OpenRecorder(recordPathFor(*recordDir, botID))
		if err != nil {
			fmt.Fprintf(os.Stderr, "twswarm: %v\n", err)
			return errs.ExitConfigurationError
		}

		botCtx, cancel := context.WithCancel(rootCtx)
		factory, err := botsetup.StrategyFactory(botCtx, cfg, rec)
		if err != nil {
			cancel()
			closeRec()
			fmt.Fprintf(os.Stderr, "twswarm: %v\n", err)
			return errs.ExitConfigurationError
		}

		opts := []botruntime.Option{}
		if sharedGraph != nil {
			opts = append(opts, botruntime.WithGraph(sharedGraph))
		}
		rt := botruntime.New(cfg, rules, rec, names, factory, opts...)
		manager.Register(botID, "swarm", rt, cancel)

		wg.Add(1)
		go func(id string, ctx context.Context, rt *botruntime.Runtime, closeRec func()) {
			defer wg.Done()
			defer closeRec()
			err := rt.Run(ctx)
			if err != nil {
				logging.Error("twswarm: %s exited: %v", id, err)
			} else {
				logging.Info("twswarm: %s exited cleanly", id)
			}
			manager.Unregister(id)
		}(botID, botCtx, rt, closeRec)
	}

	go manager.Start(rootCtx)

	httpServer := &http.Server{Addr: cfg.Swarm.ListenAddr, Handler: swarm.NewRouter(manager)}
	go func() {
		logging.Info("twswarm: REST control plane listening on %s", cfg.Swarm.ListenAddr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logging.Error("twswarm: REST server: %v", err)
		}
	}()

	var consoleServer *console.Server
	if cfg.Console.Enabled {
		client := console.NewClient(cfg.Console.SwarmAPIBaseURL, "console")
		consoleServer, err = console.NewServer(cfg.Console, client)
		if err != nil {
			fmt.Fprintf(os.Stderr, "twswarm: %v\n", err)
			return errs.ExitConfigurationError
		}
		go func() {
			logging.Info("twswarm: operator console listening on %s:%d", cfg.Console.Host, cfg.Console.Port)
			if err := consoleServer.ListenAndServe(); err != nil {
				logging.Error("twswarm: console server: %v", err)
			}
		}()
	}

	<-rootCtx.Done()
	logging.Info("twswarm: shutdown signal received, draining")

	manager.Stop()
	if consoleServer != nil {
		_ = consoleServer.Close()
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logging.Error("twswarm: REST server shutdown: %v", err)
	}

	wg.Wait()
	return errs.ExitSuccess
}

func recordPathFor(dir, botID string) string {
	if dir == "" {
		return ""
	}
	return dir + "/" + botID + ".jsonl"
}
