package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi"
	"github.com/spf13/cobra"

	"github.com/frahmantamala/order-assistant/internal/transport/rest"
)

var withScheduler bool

var httpServerCmd = &cobra.Command{
	Use:   "server",
	Short: "Start HTTP server",
	Long:  `Start the HTTP server for the staff API and chat webhooks`,
	Run: func(cmd *cobra.Command, args []string) {
		startHTTPServer()
	},
}

func init() {
	httpServerCmd.Flags().BoolVar(&withScheduler, "with-scheduler", false, "also run the daily reminder loop in this process")
}

func startHTTPServer() {
	cfg, err := loadConfig(configDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	deps, err := initializeDependencies(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize dependencies: %v\n", err)
		os.Exit(1)
	}
	lg := deps.Logger

	router := chi.NewRouter()
	rest.RegisterAllRoutes(router, deps.RouterDeps())

	deps.Proofs.Start()

	runCtx, stopRunner := context.WithCancel(context.Background())
	runnerDone := make(chan struct{})
	if withScheduler {
		go func() {
			defer close(runnerDone)
			if err := deps.Runner.Run(runCtx); err != nil {
				lg.Error("reminder runner stopped", "error", err)
			}
		}()
	} else {
		close(runnerDone)
	}

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	lg.Info("starting HTTP server", "address", addr, "with_scheduler", withScheduler)

	server := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout,
		ReadTimeout:       cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	serverErrChan := make(chan error, 1)
	go func() {
		serverErrChan <- server.ListenAndServe()
	}()

	exitCode := 0
	select {
	case sig := <-sigChan:
		lg.Info("received signal, shutting down", "signal", sig)
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			lg.Error("server shutdown error", "error", err)
		}
	case err := <-serverErrChan:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			lg.Error("server failed to start", "error", err)
			exitCode = 1
		}
	}

	stopRunner()
	<-runnerDone
	deps.Proofs.Shutdown()
	deps.Close()

	lg.Info("server stopped")
	if exitCode != 0 {
		os.Exit(exitCode)
	}
}
