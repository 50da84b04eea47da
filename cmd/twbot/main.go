// Command twbot runs a single autonomous character against a Trade
// Wars 2002 BBS door, driving one botruntime.Runtime end to end:
// connect, log in, trade turns through a configured Strategy, and
// retire or respawn on death. Flag handling follows cmd/ue's shape
// (plain flag.String, a single required path resolved relative to the
// working directory) rather than a config-file framework.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/tw2kbot/tw2kbot/internal/botruntime"
	"github.com/tw2kbot/tw2kbot/internal/botsetup"
	"github.com/tw2kbot/tw2kbot/internal/errs"
	"github.com/tw2kbot/tw2kbot/internal/logging"
	"github.com/tw2kbot/tw2kbot/internal/namegen"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	fs := flag.NewFlagSet("twbot", flag.ContinueOnError)
	configPath := fs.String("config", "", "path to a JSON config file (defaults applied otherwise)")
	rulesPath := fs.String("rules", "rules.json", "path to the prompt rules document")
	watchRules := fs.Bool("watch-rules", false, "reload rules.json on change instead of loading it once")
	recordPath := fs.String("record", "", "path to append session recorder events as JSON lines (disabled if empty)")
	if err := fs.Parse(args); err != nil {
		return errs.ExitUsageError
	}

	cfg, err := botsetup.LoadConfig(*configPath, "TWBOT")
	if err != nil {
		fmt.Fprintf(os.Stderr, "twbot: %v\n", err)
		return errs.ExitConfigurationError
	}

	rules, closeRules, err := botsetup.LoadRules(*rulesPath, *watchRules)
	if err != nil {
		fmt.Fprintf(os.Stderr, "twbot: %v\n", err)
		return errs.ExitConfigurationError
	}
	defer closeRules()

	rec, closeRec, err := botsetup.OpenRecorder(*recordPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "twbot: %v\n", err)
		return errs.ExitConfigurationError
	}
	defer closeRec()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	factory, err := botsetup.StrategyFactory(ctx, cfg, rec)
	if err != nil {
		fmt.Fprintf(os.Stderr, "twbot: %v\n", err)
		return errs.ExitConfigurationError
	}

	names := namegen.New(cfg.Character)
	rt := botruntime.New(cfg, rules, rec, names, factory)

	logging.Info("twbot: connecting to %s:%d", cfg.Connection.Host, cfg.Connection.Port)
	return botsetup.ExitCodeFor(rt.Run(ctx))
}
