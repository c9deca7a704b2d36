package main

import (
	"fmt"
	"os"

	"perfbot/internal/config"
	"perfbot/internal/logger"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "perfbot",
	Short: "PerfBurger customer support chatbot backend",
	Long: `perfbot answers customer questions about the PerfBurger menu, delivery and
policies, and turns chat conversations into tracked orders.`,
	SilenceUsage: true,
	RunE:         runServe,
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (yaml or json)")
	rootCmd.PersistentFlags().String("knowledge_base_path", "", "directory holding menu.json, faqs.yaml and policies.json")
	rootCmd.PersistentFlags().String("log_level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log_format", "", "log format (json or console)")

	viper.BindPFlag("KNOWLEDGE_BASE_PATH", rootCmd.PersistentFlags().Lookup("knowledge_base_path"))
	viper.BindPFlag("LOG_LEVEL", rootCmd.PersistentFlags().Lookup("log_level"))
	viper.BindPFlag("LOG_FORMAT", rootCmd.PersistentFlags().Lookup("log_format"))

	rootCmd.AddCommand(serveCmd, migrateCmd, menuCmd)
}

func initConfig() {
	if cfgFile == "" {
		return
	}
	viper.SetConfigFile(cfgFile)
	if err := viper.ReadInConfig(); err != nil {
		fmt.Fprintf(os.Stderr, "Error reading config file %s: %v\n", cfgFile, err)
		os.Exit(1)
	}
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadConfig resolves configuration and builds the logger every command uses
func loadConfig() (*config.Config, *logger.Logger, error) {
	cfg, err := config.Load(viper.GetViper())
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	log, err := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		return nil, nil, err
	}
	for _, w := range cfg.Warnings {
		log.Warn("Configuration warning", "detail", w)
	}
	return cfg, log, nil
}
