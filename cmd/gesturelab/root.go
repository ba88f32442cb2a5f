package main

import (
	"fmt"

	"github.com/Ankur3509/GestureLab/internal/config"
	"github.com/Ankur3509/GestureLab/internal/logger"
	"github.com/spf13/cobra"
)

// Version is the application version.
const Version = "0.1.0"

var (
	configPath string
	cfg        *config.Config
)

var rootCmd = &cobra.Command{
	Use:           "gesturelab",
	Short:         "Hand landmark relay for gesture-driven visualizations",
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: false,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		if err := logger.Init(cfg.Log.Level, cfg.Log.Format, nil); err != nil {
			return err
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to a YAML config file")
}
