// Command server runs the screener compiler behind the thin HTTP surface
// spec §1/§6 names as an external collaborator: POST /compile and
// GET /health.
package main

import (
	"flag"
	"log/slog"
	"net/http"
	"os"

	"marketscreener/internal/compiler"
	"marketscreener/internal/config"
	"marketscreener/internal/httpapi"
)

func main() {
	var (
		configPath = flag.String("config", "", "path to a screener config YAML file (defaults to the built-in market-data config)")
		listenAddr = flag.String("listen", ":8080", "HTTP listen address")
	)
	flag.Parse()

	log := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

	var cfg *config.Config
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			log.Error("failed to load config", slog.String("error", err.Error()))
			os.Exit(1)
		}
		cfg = loaded
	} else {
		cfg = config.DefaultConfig()
		log.Info("no --config given, using built-in market-data default config")
	}

	c := compiler.New(cfg)

	router := httpapi.NewRouter(c, log)

	log.Info("screener compiler listening", slog.String("addr", *listenAddr))
	if err := http.ListenAndServe(*listenAddr, router); err != nil {
		log.Error("server error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
