// Command rate-stub serves a fixed exchange rate in the collaborator's
// wire format. Used by the integration compose stack and for local
// development without the real rate service.
package main

import (
	"flag"
	"log/slog"
	"net/http"
	"os"
)

func main() {
	var (
		addr string
		rate string
	)

	flag.StringVar(&addr, "addr", ":9090", "listen address")
	flag.StringVar(&rate, "rate", "90", "rate to serve")
	flag.Parse()

	if v := os.Getenv("STUB_RATE"); v != "" {
		rate = v
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/rate", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"rate": "` + rate + `"}`))
	})

	slog.Info("rate stub listening", slog.String("addr", addr), slog.String("rate", rate))
	if err := http.ListenAndServe(addr, mux); err != nil {
		slog.Error("rate stub failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
