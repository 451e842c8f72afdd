package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-timetable/pkg/config"
	"github.com/noah-isme/sma-timetable/pkg/logger"
)

// cli carries state shared by every subcommand.
type cli struct {
	v       *viper.Viper
	cfgPath string
}

func newRootCmd() *cobra.Command {
	app := &cli{v: viper.New()}
	root := &cobra.Command{
		Use:           "timetable",
		Short:         "Assign weekly course blocks to rooms and export the timetable",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&app.cfgPath, "config", "c", ".env", "env-style configuration file")
	root.AddCommand(newAssignCmd(app), newRoomsCmd(app))
	return root
}

// flagBinding maps a command-line flag onto a configuration key.
type flagBinding struct {
	key  string
	flag string
}

// load binds the running command's flags over env and file values, then reads the configuration.
func (a *cli) load(flags *pflag.FlagSet, bindings []flagBinding) (*config.Config, *zap.Logger, error) {
	for _, b := range bindings {
		if err := a.v.BindPFlag(b.key, flags.Lookup(b.flag)); err != nil {
			return nil, nil, fmt.Errorf("bind flag %s: %w", b.flag, err)
		}
	}
	cfg, err := config.LoadFrom(a.v, a.cfgPath)
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	if os.Getenv("LOG_FORMAT") == "" {
		cfg.Log.Format = "console"
	}
	logr, err := logger.New(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("init logger: %w", err)
	}
	return cfg, logr, nil
}
