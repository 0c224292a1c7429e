package cmd

import (
	"os"
	"time"

	coreconfig "github.com/evobridge/evobridge/core/config"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var rootCmd = &cobra.Command{
	Use:   "evobridge",
	Short: "WhatsApp gateway webhook bridge",
	Long: `evobridge ingests Evolution API webhook events into messages,
contacts and conversations, and delivers outbound messages through the
gateway instances it provisions.`,
}

var (
	flagPort  string
	flagDebug bool
)

func init() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	time.Local = time.UTC

	rootCmd.CompletionOptions.DisableDefaultCmd = true

	rootCmd.PersistentFlags().StringVarP(&flagPort, "port", "p", "", "listen port, overrides APP_PORT | example: --port=8080")
	rootCmd.PersistentFlags().BoolVarP(&flagDebug, "debug", "d", false, "verbose logging | example: --debug=true")

	cobra.OnInitialize(initEnvConfig)
}

// initEnvConfig loads the structured configuration and applies viper env
// overrides plus command-line flags on top.
func initEnvConfig() {
	viper.AutomaticEnv()

	cfg, err := coreconfig.LoadConfig()
	if err != nil {
		logrus.Fatalf("failed to load configuration: %v", err)
	}

	if flagPort != "" {
		cfg.App.Port = flagPort
	}
	if flagDebug {
		cfg.App.Debug = true
	}

	if cfg.App.Debug {
		logrus.SetLevel(logrus.DebugLevel)
	}
	logrus.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
