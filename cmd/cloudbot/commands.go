package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kalambet/cloudbot/internal/config"
	"github.com/kalambet/cloudbot/internal/state"
	"github.com/kalambet/cloudbot/internal/storage"
)

// --- config ---

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or update configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		for _, k := range config.ShowAll(cfg) {
			fmt.Fprintf(cmd.OutOrStdout(), "  %s = %s\n", colorize(colorBold, k.Key), k.Value)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "\nSecrets (%s) are read from the environment or the secret store.\n",
			strings.Join(config.SecretKeys(), ", "))
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Long:  "Set a configuration value. Valid keys:\n  " + strings.Join(config.ValidKeys(), "\n  "),
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, value := args[0], args[1]

		if err := config.SetKey(key, value); err != nil {
			return err
		}

		printSuccess("Set %s = %s", key, value)
		return nil
	},
}

var configUnsetCmd = &cobra.Command{
	Use:   "unset <key>",
	Short: "Remove a configuration value so its default applies",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := config.UnsetKey(args[0]); err != nil {
			return err
		}
		printSuccess("Unset %s", args[0])
		return nil
	},
}

var configSetSecretCmd = &cobra.Command{
	Use:   "set-secret <key> <value>",
	Short: "Store a secret in the platform secret store",
	Long:  "Store a secret in the platform secret store. Secret keys:\n  " + strings.Join(config.SecretKeys(), "\n  "),
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := config.SetSecret(args[0], args[1]); err != nil {
			return err
		}
		printSuccess("Stored %s", args[0])
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configUnsetCmd)
	configCmd.AddCommand(configSetSecretCmd)
}

// --- state ---

var stateCmd = &cobra.Command{
	Use:   "state",
	Short: "Inspect the processed-thread set",
}

var stateShowCmd = &cobra.Command{
	Use:   "show",
	Short: "List ids of threads already handled",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		store := state.New(cfg.StateFile())
		if _, err := store.Load(); err != nil {
			return err
		}

		ids := store.IDs()
		if len(ids) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No threads processed yet.")
			return nil
		}
		for _, id := range ids {
			fmt.Fprintln(cmd.OutOrStdout(), id)
		}
		printStatus("Total", "%d in %s", len(ids), store.Path())
		return nil
	},
}

func init() {
	stateCmd.AddCommand(stateShowCmd)
}

// --- history ---

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recent publications",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		cfg, err := config.Load()
		if err != nil {
			return err
		}

		store, err := storage.Open(cfg.Storage.DataDir)
		if err != nil {
			return fmt.Errorf("opening storage: %w", err)
		}
		defer store.Close()

		pubs, err := store.ListPublications(limit)
		if err != nil {
			return err
		}
		if len(pubs) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No publications yet.")
			return nil
		}
		for _, p := range pubs {
			fmt.Fprintln(cmd.OutOrStdout(), formatPublication(p))
		}
		return nil
	},
}

func init() {
	historyCmd.Flags().Int("limit", 20, "maximum number of publications to list")
}

func formatPublication(p storage.Publication) string {
	subject := p.ItemID
	if p.Mode == storage.ModeUser {
		subject = "u/" + p.ItemID
	}
	line := fmt.Sprintf("%s  %s  %-4s  %-14s  %4d comments  %s",
		colorize(colorCyan, shortID(p.ID)),
		p.CreatedAt.Local().Format("2006-01-02 15:04"),
		p.Mode,
		subject,
		p.CommentCount,
		p.ImageURL,
	)
	if p.SkippedCount > 0 {
		line += colorize(colorYellow, fmt.Sprintf("  (%d skipped)", p.SkippedCount))
	}
	return line
}
