package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

// rootCmd represents the base command for the mailhub application
var rootCmd = &cobra.Command{
	Use:   "mailhub",
	Short: "Multi-account mail and calendar broker for AI assistants",
	Long: `mailhub brokers mail and calendar access across multiple accounts on
different providers (Microsoft 365, Outlook.com, Google Workspace).

It runs as an MCP (Model Context Protocol) server exposing a unified
tool surface, and provides CLI commands to enroll accounts and inspect
their credential state.`,
	SilenceUsage: true,
}

// version will be set by main
var version = "dev"

// SetVersion sets the version for the root command
func SetVersion(v string) {
	version = v
	rootCmd.Version = v
}

// Execute is the main entry point for the CLI application
func Execute() {
	rootCmd.SetVersionTemplate(`{{printf "mailhub version %s\n" .Version}}`)

	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "Path to the configuration file (default: ~/.config/mailhub/config.yaml)")

	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newAuthCmd())
	rootCmd.AddCommand(newAccountsCmd())
	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newGenerateDocsCmd())
}
