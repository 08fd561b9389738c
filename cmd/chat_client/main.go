package main

import (
	"fmt"
	"os"
	"path/filepath"

	"direct_chat_service/internal/client/api"
	"direct_chat_service/pkg/config"
	"direct_chat_service/pkg/logger"

	"github.com/spf13/cobra"
)

var (
	serverFlag string
	debugFlag  bool
)

func init() {
	rootCmd.PersistentFlags().StringVar(&serverFlag, "server", "", "chat service url, overrides server.url")
	rootCmd.PersistentFlags().BoolVar(&debugFlag, "debug", false, "write debug lines to the client log")
}

var rootCmd = &cobra.Command{
	Use:           "chat_client",
	Short:         "Direct chat terminal client",
	Long:          "Log in, list conversations and chat in realtime with another member of the direct chat service.",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return initLogger()
	},
}

// initLogger 只寫檔案, 不能跟終端畫面搶 stdout
func initLogger() error {
	logDir := config.EnvConfig.ChatClientLogPath
	if logDir == "" {
		dir, err := configDir()
		if err != nil {
			return err
		}
		logDir = filepath.Join(dir, "logs")
	}
	logger.Log = logger.InitializeFile(config.EnvConfig.ChatClient, logDir)
	logger.Log.SetDebugMode(debugFlag)
	return nil
}

// newClient api client for the configured (or flagged) server
func newClient(cfg *Config) *api.Client {
	url := cfg.ServerURL()
	if serverFlag != "" {
		url = serverFlag
	}
	return api.New(url, api.WithToken(cfg.Auth.Token))
}

// authedClient load the config and fail when nobody is logged in
func authedClient() (*Config, *api.Client, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}
	if cfg.Auth.Token == "" || cfg.Auth.MemberID == "" {
		return nil, nil, fmt.Errorf("not logged in, run 'chat_client login' first")
	}
	return cfg, newClient(cfg), nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
