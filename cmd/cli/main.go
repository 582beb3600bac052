package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"codearena/internal/cli/command"
	"codearena/internal/cli/config"
	httpclient "codearena/internal/cli/http"
	"codearena/internal/cli/repl"
	"codearena/internal/cli/state"
)

func main() {
	configPath := flag.String("config", "configs/cli.yaml", "path to CLI config file")
	baseURL := flag.String("base", "", "override API base URL")
	timeout := flag.Duration("timeout", 0, "override request timeout")
	token := flag.String("token", "", "override auth token for this session")
	statePath := flag.String("state", "", "override token state file path")
	pretty := flag.Bool("pretty", true, "pretty-print JSON responses")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config failed: %v\n", err)
		os.Exit(1)
	}
	if *baseURL != "" {
		cfg.BaseURL = *baseURL
	}
	if *timeout > 0 {
		cfg.Timeout = *timeout
	}
	if *statePath != "" {
		cfg.TokenStatePath = *statePath
	}
	prettyJSON := *pretty
	if cfg.PrettyJSON != nil && !flagPassed("pretty") {
		prettyJSON = *cfg.PrettyJSON
	}

	tokenState, err := state.Load(cfg.TokenStatePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load token state failed: %v\n", err)
		os.Exit(1)
	}
	if *token != "" {
		tokenState.Token = *token
		tokenState.ExpiresAt = time.Time{}
	}

	client := httpclient.New(cfg.BaseURL, cfg.Timeout, func() string {
		return tokenState.Token
	})

	session, err := repl.New(client, command.Registry(), &tokenState, cfg.TokenStatePath, prettyJSON)
	if err != nil {
		fmt.Fprintf(os.Stderr, "start repl failed: %v\n", err)
		os.Exit(1)
	}
	defer session.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	fmt.Printf("codearena cli, base %s (type help for commands)\n", cfg.BaseURL)
	session.Run(ctx)
}

func flagPassed(name string) bool {
	passed := false
	flag.Visit(func(f *flag.Flag) {
		if f.Name == name {
			passed = true
		}
	})
	return passed
}
