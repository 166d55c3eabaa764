package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/picnicd/picnic/internal/archive"
	"github.com/picnicd/picnic/internal/ics"
	"github.com/picnicd/picnic/internal/learn"
	"github.com/picnicd/picnic/internal/oracle"
	"github.com/picnicd/picnic/internal/pipeline"
)

func runServe(args []string) error {
	cfg, rest, err := loadConfig(args)
	if err != nil {
		return err
	}

	addr := ":8080"
	for i := 0; i < len(rest); i++ {
		switch rest[i] {
		case "--addr":
			if i++; i >= len(rest) {
				return fmt.Errorf("--addr requires a value")
			}
			addr = rest[i]
		default:
			return fmt.Errorf("unknown flag: %s", rest[i])
		}
	}

	store := learn.Open(cfg.StorePath, cfg)
	if store.LoadWarning != "" {
		fmt.Fprintf(os.Stderr, "Warning: %s\n", store.LoadWarning)
	}
	arch, err := archive.Open(cfg.ArchivePath)
	if err != nil {
		return err
	}
	defer arch.Close()

	metrics := pipeline.NewMetrics(prometheus.DefaultRegisterer)
	runner, err := pipeline.New(cfg, oracle.NewChatClient(cfg.Oracle), store, arch, metrics)
	if err != nil {
		return err
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/events.json", handleEvents(arch))
	mux.HandleFunc("/calendar.ics", handleCalendar(arch))
	mux.HandleFunc("/parse", handleParse(runner))
	mux.HandleFunc("/healthz", handleHealth(arch))
	mux.Handle("/metrics", promhttp.Handler())

	fmt.Printf("picnic serving on %s\n", addr)
	srv := &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 5 * time.Minute, // a parse batch may wait on the oracle
	}
	return srv.ListenAndServe()
}

func handleEvents(arch *archive.Archive) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		events, err := arch.List(r.Context(), listOptsFromQuery(r))
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		if events == nil {
			w.Write([]byte("[]"))
			return
		}
		json.NewEncoder(w).Encode(events)
	}
}

func handleCalendar(arch *archive.Archive) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		events, err := arch.List(r.Context(), listOptsFromQuery(r))
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
		fmt.Fprint(w, ics.Generate(events, time.Now()))
	}
}

func handleParse(runner *pipeline.Runner) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		var emails []pipeline.Email
		if err := json.NewDecoder(r.Body).Decode(&emails); err != nil {
			http.Error(w, fmt.Sprintf("decoding request: %v", err), http.StatusBadRequest)
			return
		}
		report, err := runner.Run(r.Context(), emails)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(report)
	}
}

func handleHealth(arch *archive.Archive) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, err := arch.Count(r.Context()); err != nil {
			http.Error(w, fmt.Sprintf("archive: %v", err), http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte("ok\n"))
	}
}

func listOptsFromQuery(r *http.Request) archive.ListOpts {
	q := r.URL.Query()
	opts := archive.ListOpts{
		Since:    q.Get("since"),
		Until:    q.Get("until"),
		Category: q.Get("category"),
		FreeOnly: q.Get("free") == "1" || q.Get("free") == "true",
		Limit:    200,
	}
	if v := q.Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 1000 {
			opts.Limit = n
		}
	}
	return opts
}
