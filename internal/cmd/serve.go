package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/3leaps/jobmon/internal/observability"
	"github.com/3leaps/jobmon/internal/server"
	"github.com/3leaps/jobmon/pkg/jobmetrics"
	"github.com/3leaps/jobmon/pkg/jobmon"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the job tracking HTTP server",
	Long: `Run an HTTP server that starts, tracks, and reaps background jobs.

Jobs are started by kind with a JSON payload, report live status while
running, and keep their final outcome until cleanup removes them.

Example:
  jobmon serve
  jobmon serve --config jobmon.yaml
  JOBMON_SERVER_PORT=9000 jobmon serve`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	logger := observability.CLILogger

	spawner, pool := buildSpawner()
	if pool != nil {
		defer pool.Close()
	}

	registry := jobmon.NewRegistry[string](
		jobmon.WithSpawner(spawner),
		jobmon.WithLogger(logger),
	)

	defs := server.NewDefinitions()
	registerBuiltinKinds(defs, viper.GetBool("jobs.allow_exec"))
	logger.Debug("registered job kinds", zap.Strings("kinds", defs.Names()))

	srv := server.New(registry, defs, server.Config{
		StartRatePerSecond: viper.GetFloat64("server.start_rate_limit"),
		Version:            versionInfo.Version,
		Logger:             logger,
	})

	router := srv.Router()
	if viper.GetBool("metrics.enabled") {
		promReg := prometheus.NewRegistry()
		promReg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
			jobmetrics.NewCollector(viper.GetString("metrics.namespace"), registry),
		)
		router.Handle("/metrics", promhttp.HandlerFor(promReg, promhttp.HandlerOpts{}))
	}

	addr := fmt.Sprintf("%s:%d", viper.GetString("server.host"), viper.GetInt("server.port"))
	httpSrv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  viper.GetDuration("server.read_timeout"),
		WriteTimeout: viper.GetDuration("server.write_timeout"),
		IdleTimeout:  viper.GetDuration("server.idle_timeout"),
	}

	janitorDone := make(chan struct{})
	go runJanitor(registry, logger, janitorDone)

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening", zap.String("addr", addr))
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		close(janitorDone)
		return fmt.Errorf("serve: %w", err)
	case sig := <-stop:
		logger.Info("shutting down", zap.String("signal", sig.String()))
	}
	close(janitorDone)

	shutdownCtx, cancel := context.WithTimeout(context.Background(),
		viper.GetDuration("server.shutdown_timeout"))
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}

	logger.Info("server stopped", zap.Int("jobs_tracked", registry.Len()))
	return nil
}

// buildSpawner returns the configured spawner. With jobs.workers > 0 a
// bounded pool is used and the caller must Close it; otherwise jobs run
// on dedicated goroutines and the pool return is nil.
func buildSpawner() (jobmon.Spawner, *jobmon.Pool) {
	workers := viper.GetInt("jobs.workers")
	if workers <= 0 {
		return jobmon.Go(), nil
	}
	pool := jobmon.NewPool(workers, viper.GetInt("jobs.queue"))
	return pool, pool
}

func runJanitor(registry *jobmon.Registry[string], logger *zap.Logger, done <-chan struct{}) {
	interval := viper.GetDuration("jobs.cleanup_interval")
	if interval <= 0 {
		return
	}
	maxAge := viper.GetDuration("jobs.max_age")

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			if removed := registry.Cleanup(maxAge); removed > 0 {
				logger.Debug("removed finished jobs",
					zap.Int("count", removed),
					zap.Duration("max_age", maxAge))
			}
		}
	}
}

type sleepParams struct {
	Duration string `json:"duration"`
	Message  string `json:"message"`
	Fail     bool   `json:"fail"`
}

type commandParams struct {
	Command string   `json:"command"`
	Args    []string `json:"args"`
	Dir     string   `json:"dir"`
}

func registerBuiltinKinds(defs *server.Definitions, allowExec bool) {
	server.Register(defs, server.NewDefinition("sleep", runSleep))

	// Arbitrary command execution stays off unless explicitly enabled.
	if allowExec {
		server.Register(defs, server.NewDefinition("command", runCommand))
	}
}

func runSleep(mon *jobmon.Monitor, p sleepParams) any {
	d := time.Second
	if p.Duration != "" {
		parsed, err := time.ParseDuration(p.Duration)
		if err != nil {
			return fmt.Errorf("bad duration %q: %w", p.Duration, err)
		}
		d = parsed
	}

	mon.Reportf("Sleeping for %s", d)
	time.Sleep(d)

	if p.Fail {
		return jobmon.ReturnStatus{Success: false, Message: p.Message}
	}
	if p.Message != "" {
		return p.Message
	}
	return nil
}

func runCommand(mon *jobmon.Monitor, p commandParams) any {
	if p.Command == "" {
		return errors.New("command is required")
	}

	mon.Reportf("Running %s", p.Command)
	c := exec.Command(p.Command, p.Args...)
	c.Dir = p.Dir
	if err := c.Run(); err != nil {
		return err
	}
	return c.ProcessState
}
