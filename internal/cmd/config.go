package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/agent-autonomy-kit/watchdog/internal/config"
)

func newConfigCmd(o *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show or initialise .watchdog/config.toml",
	}

	show := &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration with defaults filled in",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			eff := effectiveConfig(o.cfg)
			return render(cmd.OutOrStdout(), o.format, eff, func(w io.Writer) error {
				data, err := config.Encode(eff)
				if err != nil {
					return err
				}
				_, err = w.Write(data)
				return err
			})
		},
	}

	var force bool
	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Write a config file holding the defaults",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := config.Path(o.workDir)
			if _, err := os.Stat(path); err == nil && !force {
				return usageError(fmt.Errorf("%s already exists (use --force to overwrite)", path))
			} else if err != nil && !errors.Is(err, os.ErrNotExist) {
				return err
			}
			if err := config.Save(path, config.Default()); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", path)
			return nil
		},
	}
	initCmd.Flags().BoolVar(&force, "force", false, "overwrite an existing config file")

	cmd.AddCommand(show, initCmd)
	return cmd
}

// effectiveConfig returns cfg with every unset field replaced by its default.
func effectiveConfig(cfg *config.Config) *config.Config {
	activeMinutes := cfg.Sessions.GetActiveMinutes()
	concurrency := cfg.Sessions.GetConcurrency()
	fsNotify := cfg.Watch.GetFSNotify()
	retain := cfg.History.GetRetain()

	historyPath := cfg.History.Path
	if historyPath == "" {
		historyPath = config.DefaultHistoryPath
	}
	queuePath := cfg.Queue.Path
	if queuePath == "" {
		queuePath = config.DefaultQueuePath
	}

	return &config.Config{
		Sessions: config.SessionsConfig{
			Command:       cfg.Sessions.GetCommand(),
			ActiveMinutes: &activeMinutes,
			Concurrency:   &concurrency,
			Kinds:         cfg.Sessions.Kinds,
		},
		Watch: config.WatchConfig{
			Interval: cfg.Watch.GetInterval().String(),
			FSNotify: &fsNotify,
		},
		Queue: config.QueueConfig{
			Path:   queuePath,
			MaxAge: cfg.Queue.GetMaxAge().String(),
		},
		Logging: config.LoggingConfig{
			Level:  cfg.Logging.GetLevel(),
			Format: cfg.Logging.GetFormat(),
		},
		History: config.HistoryConfig{
			Enabled: cfg.History.Enabled,
			Path:    historyPath,
			Retain:  &retain,
		},
		Repos: cfg.Repos,
	}
}
