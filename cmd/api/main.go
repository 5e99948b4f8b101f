package main

import (
	"flag"
	"fmt"
	"os"

	_ "github.com/mattn/go-sqlite3" // CGo-based SQLite driver

	"abfahrt.transitboard.org/internal/appconf"
)

func main() {
	var (
		configPath = flag.String("config", "config.yaml", "Path to the YAML configuration file")
		apiKeys    = flag.String("api-keys", "", "Comma-separated API keys (overrides the config file)")
		envFlag    = flag.String("env", "", "Runtime environment: development, test, or production (overrides the config file)")
	)
	flag.Parse()

	cfg, err := appconf.LoadFromFile(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	if *apiKeys != "" {
		cfg.ApiKeys = ParseAPIKeys(*apiKeys)
	}
	if *envFlag != "" {
		cfg.Env = appconf.EnvFlagToEnvironment(*envFlag)
	}

	coreApp, err := BuildApplication(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	srv, api := CreateServer(coreApp, cfg)
	if err := RunServer(coreApp, srv, api); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
