package main

import (
	"os"

	"github.com/spf13/cobra"
)

var version = "dev"

var noColor bool

var rootCmd = &cobra.Command{
	Use:   "cloudbot",
	Short: "Reply to Reddit threads with word clouds of their comments",
	Long: `cloudbot watches hot threads and replies to each one with a word cloud
built from all of its comments. It can also draw a single cloud from one
user's comment history.

Examples:
  cloudbot hot
  cloudbot user-hist spez https://www.reddit.com/r/x/comments/abc/title/def/
  cloudbot config set poll.scope pics`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable coloured output")

	rootCmd.AddCommand(hotCmd)
	rootCmd.AddCommand(userHistCmd)
	rootCmd.AddCommand(stopCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(stateCmd)
	rootCmd.AddCommand(historyCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		printError("%v", err)
		os.Exit(1)
	}
}
