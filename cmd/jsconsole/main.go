// Package main provides the console host binary: a line-oriented console
// with registered commands, where the js command starts an interactive
// JavaScript session backed by the embedded runtime and host bridge.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/chzyer/readline"
	"go.uber.org/zap"

	"github.com/SkyrimScriptingBeta/JavaScriptPapyrusExperiment/internal/config"
	"github.com/SkyrimScriptingBeta/JavaScriptPapyrusExperiment/internal/console"
	"github.com/SkyrimScriptingBeta/JavaScriptPapyrusExperiment/internal/host"
	"github.com/SkyrimScriptingBeta/JavaScriptPapyrusExperiment/internal/observability"
	"github.com/SkyrimScriptingBeta/JavaScriptPapyrusExperiment/internal/repl"
	"github.com/SkyrimScriptingBeta/JavaScriptPapyrusExperiment/internal/server"
)

func main() {
	configPath := flag.String("config", "", "path to configuration file; empty = defaults")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logging)
	if err != nil {
		log.Fatalf("initializing logger: %v", err)
	}
	defer logger.Sync()

	con := console.New(os.Stdout, logger)
	out := console.NewOutputAdapter(con, logger)

	// Host objects reachable from script code through the bridge.
	objects := host.NewRegistry()
	objects.Set("HostName", "jsconsole")
	objects.Set("HostPID", os.Getpid())

	sess := repl.NewSession(con, out, objects.Lookup, cfg.Scripting, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	mustRegister(con, console.Command{
		Name: "js",
		Help: "start an interactive JavaScript session",
		Run: func([]string) {
			if err := sess.Start(); err != nil {
				out.DisplayError(err.Error())
			}
		},
	})
	mustRegister(con, console.Command{
		Name: "help",
		Help: "list available commands",
		Run: func([]string) {
			for _, c := range con.Commands() {
				con.WriteLine(fmt.Sprintf("  %-8s %s", c.Name, c.Help))
			}
		},
	})
	mustRegister(con, console.Command{
		Name: "qqq",
		Help: "quit the console host",
		Run: func([]string) {
			cancel()
		},
	})

	rl, err := readline.New(cfg.Console.Prompt)
	if err != nil {
		logger.Fatal("initializing line reader", zap.Error(err))
	}

	lc := server.NewLifecycle(logger)
	lc.Add("console", &server.FuncService{
		StartFn: func() error {
			con.WriteLine("Type 'js' to start a JavaScript session, 'help' for commands, 'qqq' to quit.")
			for {
				line, err := rl.Readline()
				if err != nil {
					if errors.Is(err, readline.ErrInterrupt) {
						continue
					}
					if errors.Is(err, io.EOF) {
						return nil
					}
					return fmt.Errorf("reading input: %w", err)
				}
				con.Dispatch(line)
			}
		},
		StopFn: func() {
			sess.Stop()
			rl.Close()
		},
	})

	if err := lc.Run(ctx); err != nil {
		os.Exit(1)
	}
}

func mustRegister(c *console.Console, cmd console.Command) {
	if err := c.Register(cmd); err != nil {
		panic(fmt.Sprintf("registering command %q: %v", cmd.Name, err))
	}
}
