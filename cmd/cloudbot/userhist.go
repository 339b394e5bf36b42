package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/kalambet/cloudbot/internal/storage"
)

var userHistCmd = &cobra.Command{
	Use:   "user-hist <username> <reply-url>",
	Short: "Reply to a comment with a word cloud of a user's history",
	Long: `Fetch up to 1000 recent comments of <username>, draw a word cloud of them
and reply to the comment at <reply-url>.

Examples:
  cloudbot user-hist spez https://www.reddit.com/r/x/comments/abc/title/def/
  cloudbot user-hist spez https://www.reddit.com/r/x/comments/abc/title/def/ --font fonts/bold.ttf`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		font, _ := cmd.Flags().GetString("font")
		return runUserHist(args[0], args[1], font)
	},
}

func init() {
	userHistCmd.Flags().String("font", "", "font file to draw with (default render.user_font)")
}

func runUserHist(username, replyURL, font string) error {
	cfg, err := loadRuntimeConfig()
	if err != nil {
		return err
	}
	if font == "" {
		font = cfg.Render.UserFont
	}
	if _, err := os.Stat(font); err != nil {
		return fmt.Errorf("font %s: %w", font, err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	client, err := loginFeed(ctx, cfg)
	if err != nil {
		return err
	}

	printStep("Resolving %s", replyURL)
	target, err := client.ResolveComment(ctx, replyURL)
	if err != nil {
		return fmt.Errorf("invalid reply target: %w", err)
	}

	history, err := storage.Open(cfg.Storage.DataDir)
	if err != nil {
		return fmt.Errorf("opening storage: %w", err)
	}
	defer history.Close()

	printStep("Drawing u/%s", username)
	pub, err := newPublisher(cfg, client, history).PublishUserHistory(ctx, username, target, font)
	if err != nil {
		return err
	}

	printSuccess("Replied to %s with %s (%d comments)", target, pub.ImageURL, pub.CommentCount)
	return nil
}
