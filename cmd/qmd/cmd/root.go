// Package cmd provides the CLI commands for qmd.
package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/quickmd/qmd/internal/config"
	"github.com/quickmd/qmd/internal/logging"
	"github.com/quickmd/qmd/internal/profiling"
	"github.com/quickmd/qmd/internal/store"
	"github.com/quickmd/qmd/pkg/version"
)

// appEnv carries the paths every subcommand needs. Flags fill it before
// any RunE executes.
type appEnv struct {
	configPath string
	dbPath     string
	debug      bool
	cpuProfile string
	memProfile string

	loggingCleanup func()
	profileStop    func()
}

func (a *appEnv) loadConfig() (*config.Config, error) {
	if a.configPath == "" {
		a.configPath = config.DefaultPath()
	}
	return config.Load(a.configPath)
}

func (a *appEnv) saveConfig(cfg *config.Config) error {
	return cfg.Save(a.configPath)
}

func (a *appEnv) openStore() (*store.Store, error) {
	if a.dbPath == "" {
		a.dbPath = store.DefaultPath()
	}
	return store.Open(a.dbPath)
}

// NewRootCmd creates the root command for the qmd CLI.
func NewRootCmd() *cobra.Command {
	env := &appEnv{}

	cmd := &cobra.Command{
		Use:   "qmd",
		Short: "Local document index with keyword, semantic, and hybrid search",
		Long: `qmd indexes collections of local documents into a single SQLite
database and searches them three ways: BM25 keyword search, vector
similarity search, and hybrid search fusing both.

Getting started:
  qmd collection add notes ~/notes
  qmd index
  qmd query "that thing I wrote about deployment"`,
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			logCfg := logging.DefaultConfig()
			if env.debug {
				logCfg = logging.DebugConfig()
			}
			if cleanup, err := logging.SetupDefault(logCfg); err == nil {
				env.loggingCleanup = cleanup
			} else {
				fmt.Fprintf(os.Stderr, "warning: logging disabled: %v\n", err)
			}
			if env.cpuProfile != "" {
				if stop, err := profiling.StartCPU(env.cpuProfile); err == nil {
					env.profileStop = stop
				} else {
					fmt.Fprintf(os.Stderr, "warning: %v\n", err)
				}
			}
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if env.profileStop != nil {
				env.profileStop()
			}
			if env.memProfile != "" {
				if err := profiling.WriteHeap(env.memProfile); err != nil {
					fmt.Fprintf(os.Stderr, "warning: %v\n", err)
				}
			}
			if env.loggingCleanup != nil {
				env.loggingCleanup()
			}
		},
	}

	cmd.SetVersionTemplate("qmd version {{.Version}}\n")

	cmd.PersistentFlags().StringVar(&env.configPath, "config", "", "Config file (default ~/.config/qmd/index.yaml)")
	cmd.PersistentFlags().StringVar(&env.dbPath, "db", "", "Index database (default ~/.qmd/index.db)")
	cmd.PersistentFlags().BoolVar(&env.debug, "debug", false, "Enable debug logging")
	cmd.PersistentFlags().StringVar(&env.cpuProfile, "cpuprofile", "", "Write a CPU profile to this file")
	cmd.PersistentFlags().StringVar(&env.memProfile, "memprofile", "", "Write a heap profile to this file on exit")

	cmd.AddCommand(newCollectionCmd(env))
	cmd.AddCommand(newIndexCmd(env))
	cmd.AddCommand(newSearchCmd(env))
	cmd.AddCommand(newVSearchCmd(env))
	cmd.AddCommand(newQueryCmd(env))
	cmd.AddCommand(newGetCmd(env))
	cmd.AddCommand(newEmbedCmd(env))
	cmd.AddCommand(newStatusCmd(env))
	cmd.AddCommand(newCacheCmd(env))
	cmd.AddCommand(newVacuumCmd(env))
	cmd.AddCommand(newWatchCmd(env))
	cmd.AddCommand(newDoctorCmd(env))
	cmd.AddCommand(newVersionCmd())

	return cmd
}

// Execute runs the root command. Ctrl-C cancels the command context so
// long-running commands (index, embed, watch) shut down cleanly.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return NewRootCmd().ExecuteContext(ctx)
}
