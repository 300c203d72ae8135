package main

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/twistedatrocity/swgaide/internal/auth"
	"github.com/twistedatrocity/swgaide/internal/config"
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Store the token for the remote catalog",
	Long:  `Stores an API token for catalog.url. Without --token the token is read from stdin.`,
	RunE:  runLogin,
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Forget the token for the remote catalog",
	RunE:  runLogout,
}

var (
	loginToken string
	loginUser  string
)

func init() {
	loginCmd.Flags().StringVar(&loginToken, "token", "", "API token")
	loginCmd.Flags().StringVar(&loginUser, "user", "", "Catalog username, for display")
	rootCmd.AddCommand(loginCmd, logoutCmd)
}

func catalogURL() (string, error) {
	if cfg.Catalog.URL == "" {
		return "", errors.New("catalog.url is not set")
	}
	return cfg.Catalog.URL, nil
}

func runLogin(cmd *cobra.Command, args []string) error {
	url, err := catalogURL()
	if err != nil {
		return err
	}
	token := loginToken
	if token == "" {
		fmt.Fprint(cmd.OutOrStdout(), "Token: ")
		line, err := bufio.NewReader(os.Stdin).ReadString('\n')
		if err != nil && line == "" {
			return fmt.Errorf("read token: %w", err)
		}
		token = strings.TrimSpace(line)
	}

	m, err := auth.NewManager(config.DataDir())
	if err != nil {
		return err
	}
	if err := m.Login(url, token, loginUser); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Token stored for %s\n", url)
	return nil
}

func runLogout(cmd *cobra.Command, args []string) error {
	url, err := catalogURL()
	if err != nil {
		return err
	}
	m, err := auth.NewManager(config.DataDir())
	if err != nil {
		return err
	}
	if err := m.Logout(url); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Logged out of %s\n", url)
	return nil
}
