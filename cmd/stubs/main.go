// Command stubs serves fixture-backed provider endpoints so the daily
// pipeline can run locally with no credentials: market data closes,
// the earnings calendar with transcripts, and the analyzer.
package main

import (
	"flag"
	"net/http"
	"os"
	"time"

	"github.com/whaleforce/earnings-signals/internal/observ"
	"github.com/whaleforce/earnings-signals/internal/stubs"
)

func main() {
	addr := flag.String("addr", ":8090", "listen address")
	fixtures := flag.String("fixtures", "fixtures/providers.json", "path to fixture file")
	flag.Parse()

	log := observ.NewLogger("info", true)

	f, err := stubs.LoadFixtures(*fixtures)
	if err != nil {
		log.Error().Err(err).Str("path", *fixtures).Msg("load fixtures")
		os.Exit(1)
	}

	srv := &http.Server{
		Addr:              *addr,
		Handler:           stubs.NewProviderServer(f).Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	log.Info().
		Str("addr", *addr).
		Int("events", len(f.Events)).
		Int("prices", len(f.Prices)).
		Msg("provider stub listening")
	if err := srv.ListenAndServe(); err != nil {
		log.Error().Err(err).Msg("provider stub failed")
		os.Exit(1)
	}
}
