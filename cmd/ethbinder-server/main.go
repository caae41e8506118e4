package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/pendergraft/ethbinder/internal/binding/domain"
	"github.com/pendergraft/ethbinder/internal/config"
	"github.com/pendergraft/ethbinder/internal/observability/metrics"
	"github.com/pendergraft/ethbinder/internal/server"
	"github.com/pendergraft/ethbinder/pkg/client"
)

var version = "dev"

// errNotVerified makes verify and check exit non-zero for failed bindings
var errNotVerified = errors.New("binding not verified")

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	rootCmd := &cobra.Command{
		Use:           "ethbinder-server",
		Short:         "ethbinder - GitHub handle to Ethereum address binding badges",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", os.Getenv("CONFIG_FILE"), "config file (.toml, .yaml or .yml)")

	// Default behavior (no subcommand) is to serve
	rootCmd.RunE = func(cmd *cobra.Command, args []string) error {
		return runServe(configPath)
	}

	rootCmd.AddCommand(newServeCmd(&configPath))
	rootCmd.AddCommand(newVerifyCmd(&configPath))
	rootCmd.AddCommand(newCheckCmd())

	return rootCmd
}

func newServeCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(*configPath)
		},
	}
}

func newVerifyCmd(configPath *string) *cobra.Command {
	var req domain.Request

	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Verify a binding locally and print the badge",
		Long: `Run the verification pipeline once against the GitHub API, without
starting a server, and print the badge that would be served.

The GitHub token is read from GITHUB_API_KEY (or GITHUB_TOKEN) or the
config file. The command exits non-zero unless the binding is verified.

EXAMPLES:
  ethbinder-server verify --handle thejonanshow
  ethbinder-server verify --handle bob --repo proofs --debug
  ethbinder-server verify --referer https://github.com/bob/ethbinder
`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runVerify(cmd.Context(), cmd.OutOrStdout(), *configPath, req)
		},
	}

	cmd.Flags().StringVar(&req.Handle, "handle", "", "GitHub handle to verify")
	cmd.Flags().StringVar(&req.Repo, "repo", "", "repository holding the proof issue (default from config)")
	cmd.Flags().StringVar(&req.Referer, "referer", "", "resolve the handle from this URL when --handle is empty")
	cmd.Flags().BoolVar(&req.Debug, "debug", false, "include the verification trace")

	return cmd
}

func newCheckCmd() *cobra.Command {
	var serverURL string
	var req client.Request

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Fetch a badge from a running server",
		Long: `Query a running ethbinder server and print the badge it serves.

EXAMPLES:
  ethbinder-server check --server https://badge.example.com --handle bob
`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheck(cmd.Context(), cmd.OutOrStdout(), serverURL, req)
		},
	}

	cmd.Flags().StringVar(&serverURL, "server", "http://localhost:8080", "ethbinder server URL")
	cmd.Flags().StringVar(&req.Handle, "handle", "", "GitHub handle to check")
	cmd.Flags().StringVar(&req.Repo, "repo", "", "repository holding the proof issue")
	cmd.Flags().BoolVar(&req.Debug, "debug", false, "include the verification trace")

	return cmd
}

func runVerify(ctx context.Context, out io.Writer, configPath string, req domain.Request) error {
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, err := config.LoadFile(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	if req.Debug {
		logger = setupLogger(cfg, os.Stderr)
	}

	svc := domain.LoggingMiddleware(logger)(domain.NewService(server.NewGitHubClient(cfg), server.ServiceOptions(cfg)))
	res := svc.Verify(ctx, req)
	resp := server.NewResponder(cfg).Respond(res)

	if err := printJSON(out, resp.Body); err != nil {
		return err
	}
	if !res.Verified() {
		return fmt.Errorf("%w: %s", errNotVerified, resp.Body.Message)
	}
	return nil
}

func runCheck(ctx context.Context, out io.Writer, serverURL string, req client.Request) error {
	if ctx == nil {
		ctx = context.Background()
	}

	b, err := client.New(serverURL).GetBadge(ctx, req)
	if err != nil {
		return fmt.Errorf("fetching badge: %w", err)
	}

	if err := printJSON(out, b.Badge); err != nil {
		return err
	}
	if b.OutcomeStatus != http.StatusOK {
		return fmt.Errorf("%w: %s", errNotVerified, b.Message)
	}
	return nil
}

// printJSON indents output for terminals and keeps it on one line for pipes.
func printJSON(out io.Writer, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if isTerminal(out) {
		var buf bytes.Buffer
		if err := json.Indent(&buf, data, "", "  "); err == nil {
			data = buf.Bytes()
		}
	}
	_, err = fmt.Fprintln(out, string(data))
	return err
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// Server command

func runServe(configPath string) error {
	cfg, err := config.LoadFile(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := setupLogger(cfg, os.Stdout)
	logger.Info("starting ethbinder-server", "version", version)

	if cfg.GitHub.Token == "" {
		logger.Warn("GITHUB_API_KEY is not set; every badge will report a missing token")
	}

	metrics.Init(cfg.Metrics.Enabled)

	srv := server.New(cfg, server.NewGitHubClient(cfg), logger)

	httpServer := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      srv.Handler(),
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:  time.Duration(cfg.Server.IdleTimeout) * time.Second,
	}

	errChan := make(chan error, 1)
	go func() {
		logger.Info("server listening", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errChan:
		return fmt.Errorf("server error: %w", err)
	case sig := <-quit:
		logger.Info("shutting down", "signal", sig)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown error: %w", err)
	}

	logger.Info("server stopped")
	return nil
}

func setupLogger(cfg *config.Config, w io.Writer) *slog.Logger {
	var handler slog.Handler

	opts := &slog.HandlerOptions{
		Level: parseLogLevel(cfg.Logging.Level),
	}

	if cfg.Logging.Format == "json" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}

	return slog.New(handler)
}

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
