package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/promodash/dash-front/internal"
	"github.com/promodash/dash-front/internal/config"
	"github.com/promodash/dash-front/internal/log"
)

var BuildVersion = "dev"

func generateDefaultConfig(path string) error {
	defaultConfig := map[string]any{
		"version": "v0.0.1-DEV_EDITION_EXPECT_CHANGES",
		"server": map[string]any{
			"addr":    ":8080",
			"baseURL": "https://dash.yourcompany.com",
		},
		"identity": map[string]any{
			"baseURL": map[string]string{"$env": "IDENTITY_BASE_URL"},
		},
		"business": map[string]any{
			"baseURL": map[string]string{"$env": "BUSINESS_BASE_URL"},
		},
		"session": map[string]any{
			"mode":       "cookie",
			"window":     "10h",
			"signingKey": map[string]string{"$env": "SESSION_SIGNING_KEY"},
		},
		"routes": map[string]any{
			"publicEntry":         "/registro",
			"collaboratorRole":    "colaborador",
			"collaboratorLanding": "/colaborador",
			"adminLanding":        "/administrador",
		},
	}

	data, err := json.MarshalIndent(defaultConfig, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

func main() {
	conf := flag.String("config", "", "path to config file (required)")
	version := flag.Bool("version", false, "print version and exit")
	help := flag.Bool("help", false, "print help and exit")
	configInit := flag.String("config-init", "", "generate default config file at specified path")
	validate := flag.Bool("validate", false, "validate config file and exit")
	flag.Parse()
	if *help {
		flag.Usage()
		return
	}
	if *version {
		fmt.Println(BuildVersion)
		return
	}
	if *configInit != "" {
		if err := generateDefaultConfig(*configInit); err != nil {
			log.LogError("Failed to generate config: %v", err)
			os.Exit(1)
		}
		fmt.Printf("Generated default config at: %s\n", *configInit)
		return
	}

	if *conf == "" {
		fmt.Fprintf(os.Stderr, "Error: -config flag is required\n")
		fmt.Fprintf(os.Stderr, "Run with -help for usage information\n")
		os.Exit(1)
	}

	cfg, err := config.Load(*conf)
	if err != nil {
		log.LogError("Failed to load config: %v", err)
		os.Exit(1)
	}

	if *validate {
		fmt.Printf("Validating: %s\nResult: PASS\n", *conf)
		return
	}

	if cfg.Version == "" {
		cfg.Version = BuildVersion
	}

	log.LogInfoWithFields("main", "Starting dash-front", map[string]any{
		"version": cfg.Version,
		"config":  *conf,
	})

	ctx := context.Background()
	dashFront, err := internal.NewDashFront(ctx, cfg)
	if err != nil {
		log.LogError("Failed to create dashboard front: %v", err)
		os.Exit(1)
	}

	err = dashFront.Run()
	if err != nil {
		log.LogError("Failed to start server: %v", err)
		os.Exit(1)
	}
}
