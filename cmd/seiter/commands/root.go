// Package commands defines the Cobra CLI commands for the seiter binary.
package commands

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/nevindra/seiter"
	"github.com/nevindra/seiter/internal/config"
	"github.com/nevindra/seiter/observer"
)

var (
	configPath   string
	mode         string
	resume       bool
	cleanRestart bool
	validateOnly bool
)

// NewRootCmd constructs the root Cobra command: running it with no
// subcommand validates the configured plan and, unless --validate-only is
// set, drives the scheduler through every configured iteration (§6 CLI).
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "seiter",
		Short: "Iterative agent orchestration engine for SWE-agent trajectory pooling",
		Long: `seiter drives an external agent runner across a declarative strategy of
iterations, accumulating compressed trajectories and predictions per
instance into a trajectory pool, and runs operators between iterations
that synthesize per-instance guidance from that pool.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       Version,
		RunE:          runRoot,
	}

	root.Flags().StringVar(&configPath, "config", "se_config.yaml", "Path to the SE config YAML file")
	root.Flags().StringVar(&mode, "mode", "execute", "demo (skip subprocess) or execute")
	root.Flags().BoolVar(&resume, "resume", false, "Resume from the last completed iteration")
	root.Flags().BoolVar(&cleanRestart, "clean-restart", false, "Delete the existing workspace and start over")
	root.Flags().BoolVar(&validateOnly, "validate-only", false, "Validate the config and exit without running")

	root.AddCommand(NewVersionCmd(), NewPoolStatsCmd())
	return root
}

func runRoot(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	schedMode := seiter.ModeExecute
	if mode == string(seiter.ModeDemo) {
		schedMode = seiter.ModeDemo
	}
	opts := []seiter.Option{seiter.WithMode(schedMode), seiter.WithRunnerConfig(cfg.RunnerConfig())}

	if cfg.Observer.Enabled {
		instruments, shutdown, err := observer.Init(cmd.Context(), cfg.Observer.Pricing)
		if err != nil {
			fmt.Fprintf(os.Stderr, "seiter: observability init failed, continuing without it: %v\n", err)
		} else {
			defer shutdown(cmd.Context())
			opts = append(opts, seiter.WithTracer(observer.NewTracer()), seiter.WithMetrics(observer.NewMetrics(instruments)))
		}
	}

	workspaceRoot := seiter.ResolveWorkspace(cfg.OutputDir, time.Now())
	sched := seiter.NewScheduler(cfg.SEConfig, workspaceRoot, opts...)

	if validateOnly {
		errs := sched.Validate()
		if len(errs) == 0 {
			fmt.Println("config valid")
			return nil
		}
		for _, e := range errs {
			fmt.Fprintln(os.Stderr, e)
		}
		return fmt.Errorf("%d validation error(s)", len(errs))
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return sched.Run(ctx, resume, cleanRestart)
}
