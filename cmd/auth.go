package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/teemow/mailhub/internal/accounts"
	"github.com/teemow/mailhub/internal/auth/google"
	"github.com/teemow/mailhub/internal/auth/microsoft"
	"github.com/teemow/mailhub/internal/config"
	"github.com/teemow/mailhub/internal/provider"
)

func newAuthCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Enroll accounts and inspect credential state",
		Long: `Manage the cached credentials that the MCP server uses.

Each configured account holds its own credential cache under
~/.config/mailhub/. Enrollment is a one-time interactive step per
account; afterwards the server refreshes tokens silently.`,
	}

	cmd.AddCommand(newAuthLoginCmd())
	cmd.AddCommand(newAuthStatusCmd())

	return cmd
}

func newAuthLoginCmd() *cobra.Command {
	var (
		accountID  string
		deviceCode bool
	)

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Interactively enroll one account",
		Long: `Run the interactive authentication flow for one configured account and
persist the resulting credential in the account's cache.

By default a browser-based flow is used. On a headless machine pass
--device to use the device code flow instead: the command prints a URL
and a code to enter on another device.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			configPath, _ := cmd.Flags().GetString("config")
			registry, err := config.LoadRegistry(configPath)
			if err != nil {
				return fmt.Errorf("failed to load account configuration: %w", err)
			}

			account := registry.GetByID(accountID)
			if account == nil {
				return fmt.Errorf("unknown account %q (configured: %s)", accountID, configuredIDs(registry.GetAll()))
			}

			ctx, cancel := signal.NotifyContext(context.Background(),
				os.Interrupt, syscall.SIGTERM)
			defer cancel()

			return runAuthLogin(ctx, account, deviceCode)
		},
	}

	cmd.Flags().StringVar(&accountID, "account", "", "Account id from the config file (required)")
	cmd.Flags().BoolVar(&deviceCode, "device", false, "Use the device code flow instead of opening a browser")
	_ = cmd.MarkFlagRequired("account")

	return cmd
}

func runAuthLogin(ctx context.Context, account *accounts.AccountInfo, deviceCode bool) error {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	scopes := provider.ScopesFor(account)

	switch {
	case account.Provider.IsMicrosoft():
		tenantID, ok := account.Config("tenantId")
		if !ok {
			return fmt.Errorf("account %q is missing tenantId in providerConfig", account.ID)
		}
		clientID, ok := account.Config("clientId")
		if !ok {
			return fmt.Errorf("account %q is missing clientId in providerConfig", account.ID)
		}

		svc, err := microsoft.NewService(microsoft.WithLogger(logger))
		if err != nil {
			return fmt.Errorf("failed to create Microsoft auth service: %w", err)
		}

		var enrolled microsoft.EnrollmentResult
		if deviceCode {
			enrolled, err = svc.AuthenticateWithDeviceCode(ctx, tenantID, clientID, scopes, account.ID, func(message string) {
				fmt.Println(message)
			})
		} else {
			enrolled, err = svc.AuthenticateInteractive(ctx, tenantID, clientID, scopes, account.ID)
		}
		if err != nil {
			return fmt.Errorf("authentication failed for account %q: %w", account.ID, err)
		}

		fmt.Printf("Signed in to account %q as %s\n", account.ID, enrolled.Username)
		fmt.Printf("Credential cached at %s\n", svc.CachePath(account.ID))
		return nil

	case account.Provider == accounts.ProviderGoogle:
		clientID, ok := account.Config("clientId")
		if !ok {
			return fmt.Errorf("account %q is missing clientId in providerConfig", account.ID)
		}
		clientSecret, ok := account.Config("clientSecret")
		if !ok {
			return fmt.Errorf("account %q is missing clientSecret in providerConfig", account.ID)
		}

		svc, err := google.NewService(google.WithLogger(logger))
		if err != nil {
			return fmt.Errorf("failed to create Google auth service: %w", err)
		}

		if deviceCode {
			err = svc.AuthenticateWithDeviceCode(ctx, clientID, clientSecret, scopes, account.ID, func(verificationURL, userCode string) {
				fmt.Printf("To sign in, open %s and enter the code: %s\n", verificationURL, userCode)
			})
		} else {
			err = svc.AuthenticateInteractive(ctx, clientID, clientSecret, scopes, account.ID)
		}
		if err != nil {
			return fmt.Errorf("authentication failed for account %q: %w", account.ID, err)
		}

		fmt.Printf("Signed in to account %q\n", account.ID)
		return nil

	default:
		return fmt.Errorf("account %q has unsupported provider %q", account.ID, account.Provider)
	}
}

func newAuthStatusCmd() *cobra.Command {
	var accountID string

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show credential state for configured accounts",
		Long: `Probe the credential cache of each configured account without
triggering any interactive flow.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			configPath, _ := cmd.Flags().GetString("config")
			registry, err := config.LoadRegistry(configPath)
			if err != nil {
				return fmt.Errorf("failed to load account configuration: %w", err)
			}

			ctx, cancel := signal.NotifyContext(context.Background(),
				os.Interrupt, syscall.SIGTERM)
			defer cancel()

			return runAuthStatus(ctx, registry, accountID)
		},
	}

	cmd.Flags().StringVar(&accountID, "account", "", "Limit the probe to one account id")

	return cmd
}

func runAuthStatus(ctx context.Context, registry *accounts.Registry, accountID string) error {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))

	msService, err := microsoft.NewService(microsoft.WithLogger(logger))
	if err != nil {
		return fmt.Errorf("failed to create Microsoft auth service: %w", err)
	}
	gService, err := google.NewService(google.WithLogger(logger))
	if err != nil {
		return fmt.Errorf("failed to create Google auth service: %w", err)
	}
	check := newCredentialChecker(msService, gService)

	var targets []*accounts.AccountInfo
	if accountID != "" {
		account := registry.GetByID(accountID)
		if account == nil {
			return fmt.Errorf("unknown account %q (configured: %s)", accountID, configuredIDs(registry.GetAll()))
		}
		targets = []*accounts.AccountInfo{account}
	} else {
		targets = registry.GetAll()
	}

	if len(targets) == 0 {
		fmt.Println("No accounts configured.")
		fmt.Printf("Create %s to get started.\n", config.DefaultConfigPath())
		return nil
	}

	for _, account := range targets {
		state := "no credential"
		if check(ctx, account) {
			state = "signed in"
		}
		disabled := ""
		if !account.Enabled {
			disabled = " [disabled]"
		}
		fmt.Printf("%-20s %-14s %s%s\n", account.ID, account.Provider, state, disabled)
		if state == "no credential" {
			fmt.Printf("%-20s %-14s run: mailhub auth login --account %s\n", "", "", account.ID)
		}
	}

	return nil
}

func configuredIDs(all []*accounts.AccountInfo) string {
	if len(all) == 0 {
		return "none"
	}
	ids := make([]string, 0, len(all))
	for _, a := range all {
		ids = append(ids, a.ID)
	}
	return strings.Join(ids, ", ")
}
