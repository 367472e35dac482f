package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	_ "inferd/docs"
	"inferd/internal/common/fsutil"
	"inferd/internal/config"
	"inferd/internal/engine"
	"inferd/internal/httpapi"
	"inferd/internal/worker"
	"inferd/pkg/types"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var (
		cfgPath    string
		addr       string
		modelsRoot string
		logLevel   string
	)
	cmd := &cobra.Command{
		Use:           "inferd",
		Short:         "Inference-serving gateway for a local LLM runtime",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cfgPath, addr, modelsRoot, logLevel)
		},
	}
	cmd.Flags().StringVar(&cfgPath, "config", "assets/configs/default.toml", "Path to the config file (.toml/.yaml/.json)")
	cmd.Flags().StringVar(&addr, "addr", "", "HTTP listen address, overrides the config listen section")
	cmd.Flags().StringVar(&modelsRoot, "models-root", "", "Sandbox root for model, state, and adapter files")
	cmd.Flags().StringVar(&logLevel, "log-level", "info", "Log level: debug|info|warn|error")
	return cmd
}

func run(cfgPath, addr, modelsRoot, logLevel string) error {
	log := newLogger(logLevel)

	cfg, err := config.Load(cfgPath)
	switch {
	case err == nil:
	case errors.Is(err, os.ErrNotExist):
		log.Warn().Str("path", cfgPath).Msg("config file not found, using defaults")
		cfgPath = ""
	default:
		return fmt.Errorf("load config: %w", err)
	}
	cfg.Normalize()
	if modelsRoot != "" {
		cfg.ModelsRoot = modelsRoot
	}
	if addr == "" {
		addr = cfg.Addr()
	}
	root, err := fsutil.ExpandHome(cfg.ModelsRoot)
	if err != nil {
		return fmt.Errorf("models root: %w", err)
	}

	w := worker.New(engine.NewEngine(), log)
	go w.Run()

	if cfg.Model.ModelPath != "" {
		bootReload(w, cfg, root, log)
	}

	httpapi.SetCORSOptions(true,
		[]string{"*"},
		[]string{"GET", "POST", "OPTIONS"},
		[]string{"Accept", "Content-Type"},
	)
	srv := httpapi.NewServer(w, root, cfgPath, log)
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           srv.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info().Str("addr", addr).Str("root", root).Msg("inferd listening")
		var err error
		if lis := cfg.Model.Listen; lis != nil && lis.TLS && lis.CertPath != "" && lis.KeyPath != "" {
			err = httpServer.ListenAndServeTLS(lis.CertPath, lis.KeyPath)
		} else {
			err = httpServer.ListenAndServe()
		}
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	})
	g.Go(func() error {
		<-ctx.Done()
		log.Info().Msg("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.Warn().Err(err).Msg("http shutdown")
		}
		w.Close()
		select {
		case <-w.Done():
		case <-time.After(10 * time.Second):
			log.Warn().Msg("worker did not drain in time")
		}
		return nil
	})
	return g.Wait()
}

// bootReload submits the config's model as the first command on the queue.
// The daemon comes up regardless; the outcome is only logged.
func bootReload(w *worker.Worker, cfg config.Config, root string, log zerolog.Logger) {
	req := cfg.Model
	req.Lora = append([]types.LoraSpec(nil), cfg.Model.Lora...)
	req.State = append([]types.StateSpec(nil), cfg.Model.State...)
	p, err := fsutil.BuildPath(root, req.ModelPath)
	if err != nil {
		log.Error().Str("model", req.ModelPath).Msg("boot model path escapes the models root")
		return
	}
	req.ModelPath = p
	for i := range req.Lora {
		orig := req.Lora[i].Path
		if req.Lora[i].Path, err = fsutil.BuildPath(root, orig); err != nil {
			log.Error().Str("lora", orig).Msg("boot adapter path escapes the models root")
			return
		}
	}
	for i := range req.State {
		orig := req.State[i].Path
		if req.State[i].Path, err = fsutil.BuildPath(root, orig); err != nil {
			log.Error().Str("state", orig).Msg("boot state path escapes the models root")
			return
		}
	}
	res := make(chan error, 1)
	if err := w.Submit(worker.ReloadCommand{Request: &req, Result: res}); err != nil {
		log.Error().Err(err).Msg("boot reload rejected")
		return
	}
	go func() {
		if err, ok := <-res; !ok || err != nil {
			log.Error().Err(err).Str("model", req.ModelPath).Msg("boot reload failed")
			return
		}
		log.Info().Str("model", req.ModelPath).Msg("boot reload complete")
	}()
}

func newLogger(level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
		Level(lvl).
		With().Timestamp().Logger()
}
