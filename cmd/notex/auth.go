package main

import (
	"fmt"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"notex/pkg/auth"
	"notex/pkg/ui"
)

const defaultProvider = "openrouter"

var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Manage converter API keys",
	Long: `Store, inspect and remove API keys for conversion providers.

Keys are kept in the system keychain when one is available, falling back to
an encrypted file. The environment variable always takes precedence when
set, which suits CI and one-off runs.`,
}

var authSetCmd = &cobra.Command{
	Use:   "set [provider]",
	Short: "Store an API key",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		provider := defaultProvider
		if len(args) == 1 {
			provider = args[0]
		}

		fmt.Printf("API key for %s: ", provider)
		raw, err := term.ReadPassword(int(syscall.Stdin))
		fmt.Println()
		if err != nil {
			return fmt.Errorf("failed to read API key: %w", err)
		}
		apiKey := strings.TrimSpace(string(raw))
		if apiKey == "" {
			return fmt.Errorf("API key cannot be empty")
		}

		mgr, err := auth.NewManager("")
		if err != nil {
			return err
		}
		if err := mgr.Store(&auth.Credential{
			Provider:     provider,
			APIKey:       apiKey,
			LastModified: time.Now(),
		}); err != nil {
			ui.PrintError("Failed to store API key", err.Error())
			return err
		}
		ui.PrintSuccess(fmt.Sprintf("API key stored for %s (%s)", provider, auth.MaskKey(apiKey)))
		return nil
	},
}

var authShowCmd = &cobra.Command{
	Use:   "show [provider]",
	Short: "Show the stored API key, masked",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		provider := defaultProvider
		if len(args) == 1 {
			provider = args[0]
		}

		mgr, err := auth.NewManager("")
		if err != nil {
			return err
		}
		cred, err := mgr.Retrieve(provider)
		if err != nil {
			ui.PrintError("No API key found", err.Error())
			return err
		}
		ui.PrintInfo("Provider", cred.Provider)
		ui.PrintInfo("Key", auth.MaskKey(cred.APIKey))
		if !cred.LastModified.IsZero() {
			ui.PrintInfo("Stored", cred.LastModified.Format("2006-01-02 15:04:05"))
		}
		return nil
	},
}

var authRemoveCmd = &cobra.Command{
	Use:   "remove [provider]",
	Short: "Remove a stored API key",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		provider := defaultProvider
		if len(args) == 1 {
			provider = args[0]
		}

		mgr, err := auth.NewManager("")
		if err != nil {
			return err
		}
		if err := mgr.Delete(provider); err != nil {
			ui.PrintError("Failed to remove API key", err.Error())
			return err
		}
		ui.PrintSuccess(fmt.Sprintf("API key removed for %s", provider))
		return nil
	},
}

func init() {
	authCmd.AddCommand(authSetCmd)
	authCmd.AddCommand(authShowCmd)
	authCmd.AddCommand(authRemoveCmd)
	rootCmd.AddCommand(authCmd)
}
