// Command stockpulse serves the stock analytics API and runs one-off
// analyses and cache maintenance from the command line.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"stockpulse/internal/config"
	"stockpulse/internal/infrastructure"
	"stockpulse/pkg/contracts"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// cliState is shared by every subcommand once PersistentPreRunE has run
type cliState struct {
	configFile string
	envFile    string
	logLevel   string
	cfg        *config.Config
}

func newRootCmd() *cobra.Command {
	state := &cliState{}

	root := &cobra.Command{
		Use:           config.AppName,
		Short:         "Stock analytics engine with a persistent result cache",
		Version:       config.AppVersion,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return state.load()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			_ = infrastructure.CloseLogFile()
		},
	}

	root.SetVersionTemplate(contracts.GetFullVersionString() + "\n")
	root.PersistentFlags().StringVar(&state.configFile, "config", "", "YAML config file (env "+config.EnvPrefix+"_CONFIG)")
	root.PersistentFlags().StringVar(&state.envFile, "env-file", ".env", "dotenv file loaded before the environment is read")
	root.PersistentFlags().StringVar(&state.logLevel, "log-level", "", "log level override (debug, info, warn, error)")

	root.AddCommand(
		newServeCmd(state),
		newAnalyzeCmd(state),
		newCacheCmd(state),
	)
	return root
}

func (s *cliState) load() error {
	// A missing dotenv file is normal outside development
	if _, err := os.Stat(s.envFile); err == nil {
		if err := godotenv.Load(s.envFile); err != nil {
			return fmt.Errorf("failed to load %s: %w", s.envFile, err)
		}
	}

	var (
		cfg *config.Config
		err error
	)
	if s.configFile != "" {
		cfg, err = config.LoadFile(s.configFile)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if s.logLevel != "" {
		cfg.Logging.Level = s.logLevel
	}
	s.cfg = cfg

	if _, err := infrastructure.InitializeLogger(cfg.Logging); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	return nil
}
