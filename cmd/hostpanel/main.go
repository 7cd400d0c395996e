package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/panelkit/hostpanel/internal/api"
	"github.com/panelkit/hostpanel/internal/app"
	"github.com/panelkit/hostpanel/internal/config"
)

var version = "0.1.0"

var (
	configPath string
	devMode    bool
)

var rootCmd = &cobra.Command{
	Use:           "hostpanel",
	Short:         "Hosting control panel",
	Long:          "Provision sites, databases, FTP accounts, cron jobs and DNS zones on a single server.",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if devMode {
			os.Setenv(config.EnvDevMode, "1")
		}
		slog.SetDefault(newLogger(config.IsDevMode()))
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to configuration file (default: OS-appropriate path)")
	rootCmd.PersistentFlags().BoolVar(&devMode, "dev", false, "Enable development mode")
	rootCmd.Version = version
	api.Version = version
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// newLogger returns a JSON logger, or a debug text logger in dev mode
func newLogger(dev bool) *slog.Logger {
	if dev {
		return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
}

// loadApp reads the configuration and builds the application
func loadApp() (*app.App, error) {
	cfgPath := configPath
	if cfgPath == "" {
		cfgPath = config.DefaultConfigPath()
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return app.New(cfg, slog.Default())
}

// withApp runs fn against a freshly built application
func withApp(fn func(a *app.App) error) error {
	a, err := loadApp()
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(a)
}
