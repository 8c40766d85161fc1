package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/j-veylop/antigravity-quota-history/internal/config"
	"github.com/j-veylop/antigravity-quota-history/internal/logger"
	"github.com/j-veylop/antigravity-quota-history/internal/scheduler"
	"github.com/j-veylop/antigravity-quota-history/internal/services"
	"github.com/j-veylop/antigravity-quota-history/internal/ui/components"
	"github.com/j-veylop/antigravity-quota-history/internal/version"
)

// loadConfig is replaced in tests.
var loadConfig = config.Load

type app struct {
	out     io.Writer
	cfg     *config.Config
	verbose bool
}

func newRootCmd(out io.Writer) *cobra.Command {
	a := &app{out: out}

	root := &cobra.Command{
		Use:   "agq",
		Short: "Sample Antigravity quota and chart its consumption over time",
		Long: `agq samples the remaining quota of every configured Antigravity account,
keeps a rolling seven day history of snapshots and turns it into a
consumption chart.

Configuration is read from the environment and the first .env file found in
the current directory, ~/.config/antigravity-quota or ~/.antigravity.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Name() == "version" {
				return nil
			}
			return a.setup()
		},
	}
	root.SetOut(out)
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "Enable debug logging")

	root.AddCommand(
		a.runCmd(),
		a.onceCmd(),
		a.chartCmd(),
		a.projectionsCmd(),
		a.accountsCmd(),
		a.mergeCmd(),
		versionCmd(out),
	)
	return root
}

func (a *app) setup() error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	a.cfg = cfg

	level := cfg.LogLevel
	if a.verbose {
		level = "debug"
	}
	logger.Setup(os.Stderr, cfg.LogFormat, level)
	return nil
}

// withManager runs fn with a manager that is closed afterwards.
func (a *app) withManager(fn func(*services.Manager) error) error {
	mgr, err := services.NewManager(a.cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize services: %w", err)
	}
	defer func() {
		if closeErr := mgr.Close(); closeErr != nil {
			logger.Warn("error closing services", "error", closeErr)
		}
	}()
	return fn(mgr)
}

func (a *app) runCmd() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the sampler until interrupted",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !cmd.Flags().Changed("http") {
				addr = a.cfg.HTTPAddr
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return a.withManager(func(mgr *services.Manager) error {
				logger.Info("sampler started",
					"accounts", mgr.Accounts().Count(),
					"history", a.cfg.HistoryPath,
					"http", addr,
				)
				return mgr.Run(ctx, addr)
			})
		},
	}
	cmd.Flags().StringVar(&addr, "http", "", "Serve the chart API on this address (default from HTTP_ADDR)")
	return cmd
}

func (a *app) onceCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "once",
		Short: "Fetch every account and record one snapshot",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withManager(func(mgr *services.Manager) error {
				result, err := mgr.RunOnce(cmd.Context())
				if errors.Is(err, scheduler.ErrNoAccounts) {
					fmt.Fprintf(a.out, "No accounts in %s\n", a.cfg.AccountsPath)
					return nil
				}
				if err != nil {
					return err
				}

				fmt.Fprintf(a.out, "Fetched %d, failed %d, recorded: %t\n\n", result.Fetched, result.Failed, result.Recorded)
				fmt.Fprintln(a.out, components.RenderAccountQuotas(mgr.Accounts().List(), 80, time.Now()))
				return nil
			})
		},
	}
}

func (a *app) chartCmd() *cobra.Command {
	var (
		display, bucket int64
		asJSON          bool
		width, height   int
	)

	cmd := &cobra.Command{
		Use:   "chart",
		Short: "Print the consumption chart",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !cmd.Flags().Changed("display") {
				display = a.cfg.ChartDisplayMinutes
			}
			if !cmd.Flags().Changed("bucket") {
				bucket = a.cfg.ChartBucketMinutes
			}

			return a.withManager(func(mgr *services.Manager) error {
				data := mgr.Charts().Chart(display, bucket)
				if asJSON {
					enc := json.NewEncoder(a.out)
					enc.SetIndent("", "  ")
					return enc.Encode(data)
				}
				fmt.Fprintln(a.out, components.RenderChart(data, width, height, time.Local))
				return nil
			})
		},
	}
	cmd.Flags().Int64Var(&display, "display", 24*60, "Window width in minutes")
	cmd.Flags().Int64Var(&bucket, "bucket", 30, "Bucket width in minutes")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the chart data as JSON")
	cmd.Flags().IntVar(&width, "width", 80, "Chart width in cells")
	cmd.Flags().IntVar(&height, "height", 8, "Height of the totals line")
	return cmd
}

func (a *app) projectionsCmd() *cobra.Command {
	var (
		asJSON bool
		width  int
	)

	cmd := &cobra.Command{
		Use:   "projections",
		Short: "Estimate whether each quota lasts until its reset",
		RunE: func(_ *cobra.Command, _ []string) error {
			return a.withManager(func(mgr *services.Manager) error {
				projs := mgr.Projections().Projections()
				if asJSON {
					enc := json.NewEncoder(a.out)
					enc.SetIndent("", "  ")
					return enc.Encode(projs)
				}
				fmt.Fprintln(a.out, components.RenderProjections(projs, width))
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the projections as JSON")
	cmd.Flags().IntVar(&width, "width", 100, "Output width in cells")
	return cmd
}

func (a *app) mergeCmd() *cobra.Command {
	var buffer string

	cmd := &cobra.Command{
		Use:   "merge",
		Short: "Fold an external snapshot buffer into the history",
		RunE: func(_ *cobra.Command, _ []string) error {
			return a.withManager(func(mgr *services.Manager) error {
				added, err := mgr.Merge(buffer)
				if err != nil {
					return err
				}
				fmt.Fprintf(a.out, "Merged %d snapshots\n", added)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&buffer, "buffer", "", "Buffer file (default from BUFFER_PATH)")
	return cmd
}

func versionCmd(out io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(_ *cobra.Command, _ []string) {
			fmt.Fprintln(out, version.Info())
		},
	}
}
