package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/dwgeddes/PoShOpenAI/insights"
	"github.com/dwgeddes/PoShOpenAI/ledger"
	"github.com/dwgeddes/PoShOpenAI/openai"
	"github.com/dwgeddes/PoShOpenAI/orchestrator"
	"github.com/dwgeddes/PoShOpenAI/router"
	"github.com/dwgeddes/PoShOpenAI/scheduler"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const envAssistantID = "OPENAI_ASSISTANT_ID"

type application struct {
	logger   *zap.Logger
	api      *openai.Client
	insights *insights.Client
	ledger   *ledger.DB
	metrics  *http.Server

	metricsAddr string
}

var (
	app *application

	configPath  string
	envFile     string
	dbPath      string
	metricsAddr string
	verbose     bool
)

var rootCmd = &cobra.Command{
	Use:          "poshopenai",
	Short:        "OpenAI API toolkit",
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApplication()
		if err != nil {
			return err
		}
		app = a
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if app != nil {
			app.stopMetrics()
			_ = app.logger.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "yaml config file")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file holding "+openai.EnvAPIKey)
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", ledger.DefaultDSN, "usage ledger sqlite path, empty to disable")
	rootCmd.PersistentFlags().StringVar(&metricsAddr, "metrics-addr", "", "serve request metrics on this address at /metrics")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")

	rootCmd.AddCommand(promptCmd(), modelsCmd(), usageCmd(), batchCmd())
}

func newApplication() (*application, error) {
	var (
		logger *zap.Logger
		err    error
	)
	if verbose {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		return nil, err
	}

	cfg := openai.DefaultConfig()
	if configPath != "" {
		if cfg, err = openai.LoadConfigFile(configPath); err != nil {
			return nil, err
		}
	}

	creds := openai.NewCredentialStore()
	if !creds.LoadFromEnv(envFile) {
		logger.Warn("no API key found; requests will fail until one is set", zap.String("env", openai.EnvAPIKey))
	}

	a := &application{logger: logger}
	clientOpts := []openai.Option{openai.WithCredentials(creds), openai.WithLogger(logger)}
	if metricsAddr != "" {
		reg := prometheus.NewRegistry()
		clientOpts = append(clientOpts, openai.WithMetrics(openai.NewMetrics(reg)))
		if err := a.startMetrics(metricsAddr, reg); err != nil {
			return nil, err
		}
	}

	api, err := openai.NewClient(cfg, clientOpts...)
	if err != nil {
		return nil, err
	}
	a.api = api

	var opts []insights.Option
	if dbPath != "" {
		db, err := ledger.NewDB(dbPath)
		if err != nil {
			return nil, fmt.Errorf("open ledger: %w", err)
		}
		a.ledger = db
		opts = append(opts, insights.WithRecorder(db))
	}
	a.insights = insights.New(api, opts...)
	return a, nil
}

// startMetrics serves reg at /metrics until stopMetrics. The listener is
// bound before returning so a bad address fails the command.
func (a *application) startMetrics(addr string, reg *prometheus.Registry) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("metrics listener: %w", err)
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	a.metrics = &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	a.metricsAddr = ln.Addr().String()
	go func() {
		if err := a.metrics.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("metrics server stopped", zap.String("addr", a.metricsAddr), zap.Error(err))
		}
	}()
	a.logger.Info("serving metrics", zap.String("addr", a.metricsAddr))
	return nil
}

func (a *application) stopMetrics() {
	if a.metrics == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = a.metrics.Shutdown(ctx)
}

func (a *application) orchestrator() *orchestrator.Orchestrator {
	opts := []orchestrator.Option{
		orchestrator.WithLogger(a.logger),
		orchestrator.WithPriceTable(a.insights.Prices()),
	}
	if a.ledger != nil {
		opts = append(opts, orchestrator.WithRunStore(a.ledger), orchestrator.WithRecorder(a.ledger))
	}
	return orchestrator.New(a.api, opts...)
}

func promptCmd() *cobra.Command {
	var (
		req         router.Request
		typ         string
		assistantID string
	)
	cmd := &cobra.Command{
		Use:   "prompt [text]",
		Short: "Route a prompt to the matching endpoint",
		Args:  cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			req.Text = strings.Join(args, " ")
			if typ != "" {
				t, ok := router.ParseRequestType(typ)
				if !ok {
					return openai.Validationf("unknown type %q", typ)
				}
				req.Type = t
			}
			if assistantID == "" {
				assistantID = os.Getenv(envAssistantID)
			}
			var opts []router.Option
			opts = append(opts, router.WithLogger(app.logger))
			if assistantID != "" {
				opts = append(opts, router.WithAssistant(app.orchestrator(), assistantID))
			}

			resp, err := router.New(app.insights, opts...).Invoke(cmd.Context(), req)
			if resp != nil {
				if perr := printJSON(cmd, resp); perr != nil {
					return perr
				}
			}
			return err
		},
	}
	cmd.Flags().StringSliceVar(&req.ImagePaths, "image", nil, "image file to attach (repeatable)")
	cmd.Flags().StringVar(&req.AudioPath, "audio", "", "audio file to transcribe")
	cmd.Flags().StringVarP(&req.OutputPath, "out", "o", "", "write synthesized speech here")
	cmd.Flags().StringVar(&req.Model, "model", "", "model override")
	cmd.Flags().StringVar(&req.ThreadID, "thread", "", "existing assistant thread")
	cmd.Flags().StringVar(&typ, "type", "", "skip classification: "+typeNames())
	cmd.Flags().StringVar(&assistantID, "assistant", "", "assistant id for image prompts (default $"+envAssistantID+")")
	return cmd
}

func modelsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "models",
		Short: "List available models",
		RunE: func(cmd *cobra.Command, args []string) error {
			list, err := app.api.ListModels(cmd.Context())
			if err != nil {
				return err
			}
			ids := make([]string, 0, len(list.Models))
			for _, m := range list.Models {
				ids = append(ids, m.ID)
			}
			sort.Strings(ids)
			for _, id := range ids {
				caps := insights.ModelCapabilities(id)
				fmt.Fprintf(cmd.OutOrStdout(), "%-40s vision=%t tools=%t json=%t\n", id, caps.Vision, caps.Tools, caps.JSONMode)
			}
			return nil
		},
	}
}

func usageCmd() *cobra.Command {
	var since time.Duration
	cmd := &cobra.Command{
		Use:   "usage",
		Short: "Summarize recorded usage and estimated cost",
		RunE: func(cmd *cobra.Command, args []string) error {
			if app.ledger == nil {
				return openai.Validationf("usage ledger is disabled")
			}
			from := time.Now().Add(-since)
			rows, err := app.ledger.UsageByModel(cmd.Context(), from)
			if err != nil {
				return err
			}
			total, err := app.ledger.TotalCost(cmd.Context(), from)
			if err != nil {
				return err
			}
			return printJSON(cmd, map[string]any{"since": from, "models": rows, "total_cost": total})
		},
	}
	cmd.Flags().DurationVar(&since, "since", 24*time.Hour, "look back this far")
	return cmd
}

func batchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "batch",
		Short: "Inspect batch jobs",
	}
	var interval time.Duration
	watch := &cobra.Command{
		Use:   "watch <batch-id>",
		Short: "Poll a batch until it finishes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			w, err := scheduler.NewWatcher(app.api, app.logger)
			if err != nil {
				return err
			}
			defer func() { _ = w.Shutdown() }()

			done := make(chan openai.Batch, 1)
			if err := w.Watch(args[0], interval, func(b openai.Batch) { done <- b }); err != nil {
				return err
			}
			select {
			case b := <-done:
				return printJSON(cmd, b)
			case <-cmd.Context().Done():
				w.Stop(args[0])
				return cmd.Context().Err()
			}
		},
	}
	watch.Flags().DurationVar(&interval, "interval", 30*time.Second, "poll interval")
	cmd.AddCommand(watch)
	return cmd
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func typeNames() string {
	names := make([]string, len(router.AllTypes))
	for i, t := range router.AllTypes {
		names[i] = string(t)
	}
	return strings.Join(names, "|")
}
