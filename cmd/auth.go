package cmd

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/marcus/pos/internal/apiclient"
	"github.com/marcus/pos/internal/output"
	"github.com/marcus/pos/internal/syncconfig"
	"github.com/spf13/cobra"
)

var authCmd = &cobra.Command{
	Use:     "auth",
	Short:   "Manage server credentials",
	GroupID: "sync",
}

var authLoginCmd = &cobra.Command{
	Use:   "login",
	Short: "Store an API key for the sync server",
	RunE: func(cmd *cobra.Command, args []string) error {
		serverURL, _ := cmd.Flags().GetString("server")
		if serverURL == "" {
			serverURL = syncconfig.GetServerURL()
		}

		apiKey, _ := cmd.Flags().GetString("key")
		adminID, _ := cmd.Flags().GetString("admin")
		if apiKey == "" {
			form := huh.NewForm(huh.NewGroup(
				huh.NewInput().
					Title("API key").
					EchoMode(huh.EchoModePassword).
					Value(&apiKey).
					Validate(func(v string) error {
						if strings.TrimSpace(v) == "" {
							return fmt.Errorf("API key is required")
						}
						return nil
					}),
				huh.NewInput().
					Title("Admin ID").
					Value(&adminID),
			))
			if err := form.Run(); err != nil {
				return err
			}
		}

		client := apiclient.New(serverURL, apiKey, adminID)
		if _, err := client.HealthCheck(); err != nil {
			output.Error("cannot reach %s: %v", serverURL, err)
			return err
		}

		deviceID, err := syncconfig.GetDeviceID()
		if err != nil {
			output.Error("%v", err)
			return err
		}
		creds := &syncconfig.AuthCredentials{
			APIKey:    apiKey,
			AdminID:   adminID,
			ServerURL: serverURL,
			DeviceID:  deviceID,
		}
		if err := syncconfig.SaveAuth(creds); err != nil {
			output.Error("%v", err)
			return err
		}

		output.Success("Logged in to %s", serverURL)
		return nil
	},
}

var authLogoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Forget the stored credentials",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := syncconfig.ClearAuth(); err != nil {
			output.Error("%v", err)
			return err
		}
		output.Success("Logged out")
		return nil
	},
}

var authStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the current login and server",
	RunE: func(cmd *cobra.Command, args []string) error {
		if !syncconfig.IsAuthenticated() {
			output.Info("Not logged in. Sync commands will refuse to run.")
			return nil
		}
		output.Info("Server: %s", syncconfig.GetServerURL())
		if id := syncconfig.GetAdminID(); id != "" {
			output.Info("Admin: %s", id)
		}

		client := newAPIClient()
		if _, err := client.HealthCheck(); err != nil {
			output.Warning("server unreachable: %v", err)
			return nil
		}
		output.Success("Server reachable")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(authCmd)
	authCmd.AddCommand(authLoginCmd, authLogoutCmd, authStatusCmd)

	authLoginCmd.Flags().String("server", "", "Sync server URL")
	authLoginCmd.Flags().String("key", "", "API key (prompted if omitted)")
	authLoginCmd.Flags().String("admin", "", "Admin identity")
}
