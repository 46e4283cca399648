package main

import (
	"context"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/cobra"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"

	"github.com/tsamsiyu/k8schema/internal/app"
	"github.com/tsamsiyu/k8schema/internal/config"
)

// Set at build time via ldflags.
var version = "dev"

type flags struct {
	host     string
	port     int
	kubeFile string
	interval int
	context  string
	logLevel string
}

func main() {
	if err := newRootCommand(run).Execute(); err != nil {
		os.Exit(1)
	}
}

// newRootCommand builds the command line. Flags override the matching
// environment variables; run receives the merged, validated configuration.
func newRootCommand(run func(cmd *cobra.Command, cfg *config.Config) error) *cobra.Command {
	var f flags

	cmd := &cobra.Command{
		Use:   "k8schema",
		Short: "Serve the JSON schemas of a Kubernetes cluster",
		Long: `k8schema periodically downloads the OpenAPI v3 documents of a Kubernetes
API server, turns them into JSON Schema definitions and serves them over HTTP
as /all.json and /_definitions.json.`,
		Version:      version,
		SilenceUsage: true,
		Args:         cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			applyFlags(cmd, &f, cfg)
			if err := cfg.Validate(validator.New()); err != nil {
				return err
			}
			return run(cmd, cfg)
		},
	}

	fs := cmd.Flags()
	fs.StringVarP(&f.host, "host", "h", "", "address to listen on (env SERVER_HOST)")
	fs.IntVarP(&f.port, "port", "p", 0, "port to listen on (env SERVER_PORT)")
	fs.StringVarP(&f.kubeFile, "kube-file", "k", "", "kubeconfig file (env KUBE_CONFIG)")
	fs.IntVarP(&f.interval, "interval", "i", 0, "refresh interval in seconds (env REFRESH_INTERVAL)")
	fs.StringVar(&f.context, "context", "", "kubeconfig context, defaults to current-context (env KUBE_CONTEXT)")
	fs.StringVar(&f.logLevel, "log-level", "", "debug, info, warn or error (env LOGGING_LEVEL)")
	// -h is the host shorthand, so help is registered without one.
	fs.Bool("help", false, "help for k8schema")

	return cmd
}

func applyFlags(cmd *cobra.Command, f *flags, cfg *config.Config) {
	fs := cmd.Flags()
	if fs.Changed("host") {
		cfg.Server.Host = f.host
	}
	if fs.Changed("port") {
		cfg.Server.Port = f.port
	}
	if fs.Changed("kube-file") {
		cfg.Kube.File = f.kubeFile
	}
	if fs.Changed("interval") {
		cfg.Refresh.Interval = time.Duration(f.interval) * time.Second
	}
	if fs.Changed("context") {
		cfg.Kube.Context = f.context
	}
	if fs.Changed("log-level") {
		cfg.Logging.Level = f.logLevel
	}
}

func run(cmd *cobra.Command, cfg *config.Config) error {
	fxApp := fx.New(
		fx.Supply(cfg),
		app.Module,
		fx.WithLogger(func(logger *zap.Logger) fxevent.Logger {
			return &fxevent.ZapLogger{Logger: logger}
		}),
	)

	startCtx, cancel := context.WithTimeout(cmd.Context(), fxApp.StartTimeout())
	defer cancel()
	if err := fxApp.Start(startCtx); err != nil {
		return err
	}

	sig := <-fxApp.Wait()

	stopCtx, cancel := context.WithTimeout(context.Background(), fxApp.StopTimeout())
	defer cancel()
	if err := fxApp.Stop(stopCtx); err != nil {
		return err
	}

	if sig.ExitCode != 0 {
		os.Exit(sig.ExitCode)
	}
	return nil
}
