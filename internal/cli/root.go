// Package cli implements the assetmanifest command line.
package cli

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"assetmanifest/internal/host"
	"assetmanifest/internal/state"
)

type runState struct {
	started bool
	logger  *zap.Logger
}

func newLogger(verbose bool, stderr io.Writer) *zap.Logger {
	cfg := zap.NewProductionEncoderConfig()
	cfg.EncodeTime = zapcore.ISO8601TimeEncoder
	level := zapcore.InfoLevel
	if verbose {
		level = zapcore.DebugLevel
	}
	core := zapcore.NewCore(zapcore.NewJSONEncoder(cfg), zapcore.AddSync(stderr), level)
	return zap.New(core)
}

func newRootCommand(stdout, stderr io.Writer) (*cobra.Command, *runState) {
	var g globalOptions
	st := &runState{}

	root := &cobra.Command{
		Use:           "assetmanifest",
		Short:         "Write a manifest of build assets from bundler stats",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			st.started = true
			st.logger = newLogger(g.verbose, stderr)
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if st.logger != nil {
				_ = st.logger.Sync()
			}
		},
	}
	root.SetOut(stdout)
	root.SetErr(stderr)
	root.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return invalidInvocationf("%v", err)
	})
	g.register(root.PersistentFlags())

	root.AddCommand(
		newBuildCommand(&g, st, stdout),
		newWatchCommand(&g, st, stdout),
		newHistoryCommand(&g, stdout),
	)
	return root, st
}

// prepare resolves the working directory, configuration, targets and
// builder for build and watch.
func prepare(cmd *cobra.Command, g *globalOptions, b *buildFlags, log *zap.Logger) (*host.Builder, error) {
	workDir, err := g.resolveWorkDir()
	if err != nil {
		return nil, err
	}
	cfg, err := g.loadConfig(workDir)
	if err != nil {
		return nil, err
	}
	b.apply(cmd.Flags(), cfg, workDir)

	targets, err := b.targets(cfg, workDir)
	if err != nil {
		return nil, err
	}
	opts, err := b.hostOptions(cfg, workDir)
	if err != nil {
		return nil, err
	}
	opts.Logger = log
	return host.NewBuilder(targets, opts)
}

func newBuildCommand(g *globalOptions, st *runState, stdout io.Writer) *cobra.Command {
	var b buildFlags
	cmd := &cobra.Command{
		Use:   "build",
		Short: "Merge the stats of every pass into one manifest",
		Example: `  assetmanifest build --stats dist/stats.json
  assetmanifest build --stats web=dist/web/stats.json --stats ssr=dist/ssr/stats.json --base-path /app/`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			builder, err := prepare(cmd, g, &b, st.logger)
			if err != nil {
				return err
			}
			res, err := builder.Build(cmd.Context())
			if err != nil {
				return err
			}
			return report(stdout, res)
		},
	}
	b.register(cmd.Flags())
	return cmd
}

func newWatchCommand(g *globalOptions, st *runState, stdout io.Writer) *cobra.Command {
	var b buildFlags
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Rebuild the manifest whenever a stats file changes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			builder, err := prepare(cmd, g, &b, st.logger)
			if err != nil {
				return err
			}
			w := host.NewWatcher(builder, b.debounce, st.logger)
			w.OnBuild = func(res *host.Result, err error) {
				if err != nil {
					fmt.Fprintf(stdout, "build failed: %v\n", err)
					return
				}
				_ = report(stdout, res)
			}
			return w.Run(cmd.Context())
		},
	}
	b.register(cmd.Flags())
	cmd.Flags().DurationVar(&b.debounce, "debounce", host.DefaultDebounce, "Quiet period after a change before rebuilding")
	return cmd
}

func newHistoryCommand(g *globalOptions, stdout io.Writer) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recorded rounds, oldest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			workDir, err := g.resolveWorkDir()
			if err != nil {
				return err
			}
			store, err := state.NewStore(workDir)
			if err != nil {
				return err
			}
			rounds, err := store.ListRounds()
			if err != nil {
				return err
			}
			if limit > 0 && len(rounds) > limit {
				rounds = rounds[len(rounds)-limit:]
			}
			for _, r := range rounds {
				line := fmt.Sprintf("%s\t%s\t%s", r.RoundID, r.StartTime.Format(time.RFC3339), r.Status)
				switch r.Status {
				case state.RoundStatusComplete:
					line += "\t" + r.ManifestFile + "\t" + r.ManifestHash
				case state.RoundStatusFailed:
					if f, err := store.LoadFailure(r.RoundID); err == nil {
						line += "\t" + f.ErrorCode + "\t" + f.ErrorMessage
					}
				}
				fmt.Fprintln(stdout, line)
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "Show only the most recent N rounds")
	return cmd
}

func report(w io.Writer, res *host.Result) error {
	if !res.Written {
		_, err := w.Write(res.Manifest)
		return err
	}
	_, err := fmt.Fprintf(w, "wrote %s (round %s, %d bytes)\n", res.ManifestPath, res.RoundID, len(res.Manifest))
	return err
}

// Main runs the CLI against the process streams and returns the exit
// code.
func Main(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	res, err := Run(ctx, args, stdout, stderr)
	if err != nil {
		fmt.Fprintln(stderr, err)
	}
	return res.ExitCode
}
