package main

import (
	"fmt"

	"direct_chat_service/internal/client/api"

	"github.com/spf13/cobra"
)

var (
	nameFlag     string
	emailFlag    string
	passwordFlag string
)

func init() {
	for _, c := range []*cobra.Command{loginCmd, registerCmd} {
		c.Flags().StringVar(&emailFlag, "email", "", "account email")
		c.Flags().StringVar(&passwordFlag, "password", "", "account password")
		_ = c.MarkFlagRequired("email")
		_ = c.MarkFlagRequired("password")
	}
	registerCmd.Flags().StringVar(&nameFlag, "name", "", "display name")
	_ = registerCmd.MarkFlagRequired("name")

	rootCmd.AddCommand(loginCmd, registerCmd, logoutCmd, whoamiCmd)
}

var registerCmd = &cobra.Command{
	Use:   "register",
	Short: "Create an account and log in",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		client := newClient(cfg)
		res, err := client.Register(cmd.Context(), nameFlag, emailFlag, passwordFlag)
		if err != nil {
			return err
		}
		return saveLogin(cmd, cfg, client, res)
	},
}

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Log in and store the token in ~/.direct_chat/config.toml",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		client := newClient(cfg)
		res, err := client.Login(cmd.Context(), emailFlag, passwordFlag)
		if err != nil {
			return err
		}
		return saveLogin(cmd, cfg, client, res)
	},
}

func saveLogin(cmd *cobra.Command, cfg *Config, client *api.Client, res *api.AuthResult) error {
	cfg.Server.URL = client.BaseURL()
	cfg.Auth = ConfigAuth{
		Token:    res.Token,
		MemberID: res.User.ID,
		Name:     res.User.Name,
		Email:    res.User.Email,
	}
	if err := saveConfig(cfg); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Logged in as %s (%s)\n", res.User.Name, res.User.ID)
	return nil
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "End the server session and forget the token",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, client, err := authedClient()
		if err != nil {
			return err
		}
		if err := client.Logout(cmd.Context()); err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "server logout failed: %v\n", err)
		}
		cfg.Auth = ConfigAuth{}
		if err := saveConfig(cfg); err != nil {
			return fmt.Errorf("failed to save config: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Logged out")
		return nil
	},
}

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the logged in member",
	RunE: func(cmd *cobra.Command, args []string) error {
		_, client, err := authedClient()
		if err != nil {
			return err
		}
		me, err := client.Me(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s <%s> id=%s\n", me.Name, me.Email, me.ID)
		if me.Avatar != "" {
			fmt.Fprintf(cmd.OutOrStdout(), "avatar: %s\n", me.Avatar)
		}
		return nil
	},
}
