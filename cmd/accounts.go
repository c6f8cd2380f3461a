package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/teemow/mailhub/internal/config"
)

func newAccountsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "accounts",
		Short: "Inspect the configured accounts",
	}

	cmd.AddCommand(newAccountsListCmd())

	return cmd
}

func newAccountsListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the accounts from the config file",
		RunE: func(cmd *cobra.Command, args []string) error {
			configPath, _ := cmd.Flags().GetString("config")
			registry, err := config.LoadRegistry(configPath)
			if err != nil {
				return fmt.Errorf("failed to load account configuration: %w", err)
			}

			all := registry.GetAll()
			if len(all) == 0 {
				fmt.Println("No accounts configured.")
				fmt.Printf("Create %s to get started.\n", config.DefaultConfigPath())
				return nil
			}

			for _, account := range all {
				state := "enabled"
				if !account.Enabled {
					state = "disabled"
				}
				domains := "-"
				if len(account.Domains) > 0 {
					domains = strings.Join(account.Domains, ", ")
				}
				name := account.DisplayName
				if name == "" {
					name = "-"
				}
				fmt.Printf("%-20s %-14s %-8s %-24s %s\n", account.ID, account.Provider, state, name, domains)
			}

			return nil
		},
	}

	return cmd
}
