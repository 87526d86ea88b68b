package commands

import (
	"context"
	"encoding/json"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/whaleforce/earnings-signals/internal/scheduler"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the daily pipeline on a cron schedule",
	Long: `Start the long-running daemon: the daily pipeline fires on the
configured cron schedule (default 17:30 ET on weekdays, after close
prices settle), and a small admin HTTP server exposes health, metrics,
active alerts, and job history. Non-trading days are skipped by the
pipeline itself.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := loadApp()
		if err != nil {
			return err
		}
		if err := a.buildRunner(false); err != nil {
			return err
		}

		sched, err := scheduler.New(a.log, a.cfg.Schedule.Timezone, 2*time.Hour)
		if err != nil {
			return err
		}
		if err := sched.AddJob(a.cfg.Schedule.CronSpec, &dailyJob{app: a}); err != nil {
			return err
		}

		mux := http.NewServeMux()
		mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte("ok"))
		})
		mux.Handle("/metrics", a.metrics.Handler())
		mux.HandleFunc("/alerts", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, a.alerts.Active())
		})
		mux.HandleFunc("/jobs", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, sched.History())
		})
		mux.HandleFunc("/orders/stats", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, a.book.Statistics())
		})

		srv := &http.Server{Addr: serveAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		go func() {
			a.log.Info().Str("addr", serveAddr).Msg("admin server listening")
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				a.log.Error().Err(err).Msg("admin server failed")
			}
		}()

		sched.Start()
		a.log.Info().Str("schedule", a.cfg.Schedule.CronSpec).Str("timezone", a.cfg.Schedule.Timezone).Msg("daemon started")

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		<-ctx.Done()

		a.log.Info().Msg("shutting down")
		sched.Stop()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	},
}

// dailyJob runs the pipeline for the date the cron fired on.
type dailyJob struct {
	app *app
}

func (j *dailyJob) Name() string { return "daily-pipeline" }

func (j *dailyJob) Run(ctx context.Context) error {
	result, err := j.app.runner.RunDaily(ctx, time.Now())
	if err != nil {
		return err
	}
	j.app.log.Info().
		Str("run_id", result.RunID).
		Str("status", result.Status).
		Msg("scheduled run finished")
	return nil
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", ":8085", "admin HTTP listen address")
	rootCmd.AddCommand(serveCmd)
}
