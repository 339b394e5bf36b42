package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/kalambet/cloudbot/internal/api"
	"github.com/kalambet/cloudbot/internal/config"
	"github.com/kalambet/cloudbot/internal/feed"
	"github.com/kalambet/cloudbot/internal/imghost"
	"github.com/kalambet/cloudbot/internal/poll"
	"github.com/kalambet/cloudbot/internal/publish"
	"github.com/kalambet/cloudbot/internal/render"
	"github.com/kalambet/cloudbot/internal/state"
	"github.com/kalambet/cloudbot/internal/storage"
)

var hotCmd = &cobra.Command{
	Use:   "hot",
	Short: "Reply to hot threads until stopped (foreground)",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runHot()
	},
}

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop a running hot loop",
	RunE: func(cmd *cobra.Command, args []string) error {
		return stopHot()
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the status of a running hot loop",
	RunE: func(cmd *cobra.Command, args []string) error {
		return showStatus(cmd.Context())
	},
}

func pidFilePath(dataDir string) string {
	return filepath.Join(dataDir, "cloudbot.pid")
}

func writePIDFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())), 0o644)
}

func readPIDFile(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(strings.TrimSpace(string(data)))
}

func removePIDFile(path string) {
	os.Remove(path)
}

// loadRuntimeConfig loads and validates config and installs the default logger.
func loadRuntimeConfig() (config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return config.Config{}, err
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.SlogLevel()})))
	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

// loginFeed builds the Reddit client and authenticates it. A rejected login
// comes back as *feed.AuthError.
func loginFeed(ctx context.Context, cfg config.Config) (*feed.Client, error) {
	client := feed.New(feed.Config{
		UserAgent:    cfg.Reddit.UserAgent,
		ClientID:     cfg.Reddit.ClientID,
		ClientSecret: cfg.Reddit.ClientSecret,
		Username:     cfg.Reddit.Username,
		Password:     cfg.Reddit.Password,
	})
	if err := client.Login(ctx); err != nil {
		return nil, err
	}
	return client, nil
}

func newPublisher(cfg config.Config, f publish.Feed, history publish.History) *publish.Publisher {
	return publish.New(
		render.New(),
		imghost.New(imghost.DefaultBaseURL, cfg.Imgur.ClientID),
		f,
		history,
		publish.Options{
			FontsDir:  cfg.Render.FontsDir,
			Render:    renderOptions(cfg),
			Signature: cfg.Reply.Signature,
		},
	)
}

func renderOptions(cfg config.Config) render.Options {
	return render.Options{
		Size:     cfg.Render.Size,
		Scale:    cfg.Render.Scale,
		MaxWords: cfg.Render.MaxWords,
	}
}

func loopOptions(cfg config.Config) (poll.Options, error) {
	policy, err := poll.ParseClaimPolicy(cfg.Poll.ClaimPolicy)
	if err != nil {
		return poll.Options{}, err
	}
	pause := cfg.Poll.ReplyPause
	if pause == 0 {
		pause = -1 // explicitly configured as none
	}
	return poll.Options{
		Scope:       cfg.Poll.Scope,
		BatchSize:   cfg.Poll.BatchSize,
		ReplyPause:  pause,
		ClaimPolicy: policy,
	}, nil
}

func runHot() error {
	fmt.Fprintf(os.Stderr, "cloudbot version %s\n", version)

	cfg, err := loadRuntimeConfig()
	if err != nil {
		return err
	}
	opts, err := loopOptions(cfg)
	if err != nil {
		return err
	}

	pidPath := pidFilePath(cfg.Storage.DataDir)
	if pid, err := readPIDFile(pidPath); err == nil && processAlive(pid) {
		printWarning("cloudbot is already running (PID %d)", pid)
		return fmt.Errorf("already running (PID %d)", pid)
	}
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("writing PID file: %w", err)
	}
	defer removePIDFile(pidPath)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// A corrupt processed set would make the bot reply twice; refuse to start.
	if err := os.MkdirAll(filepath.Dir(cfg.StateFile()), 0o755); err != nil {
		return fmt.Errorf("creating state dir: %w", err)
	}
	processed := state.New(cfg.StateFile())
	set, err := processed.Load()
	if err != nil {
		return err
	}
	slog.Info("loaded processed set", "path", processed.Path(), "ids", len(set))

	client, err := loginFeed(ctx, cfg)
	if err != nil {
		return err
	}
	slog.Info("logged in", "username", cfg.Reddit.Username)

	history, err := storage.Open(cfg.Storage.DataDir)
	if err != nil {
		return fmt.Errorf("opening storage: %w", err)
	}
	defer func() {
		if err := history.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "warning: closing storage: %v\n", err)
		}
	}()

	loop := poll.New(client, processed, newPublisher(cfg, client, history), opts)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return loop.Run(gctx)
	})

	if cfg.Server.Port != 0 {
		addr := fmt.Sprintf("127.0.0.1:%d", cfg.Server.Port)
		srv := &http.Server{
			Addr: addr,
			Handler: api.NewStatusHandler(api.StatusDeps{
				Loop:      loop,
				Processed: processed,
				History:   history,
				Token:     cfg.Server.Token,
			}),
		}
		g.Go(func() error {
			slog.Info("status server listening", "addr", addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("status server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	err = g.Wait()
	fmt.Fprintln(os.Stderr, "shut down")
	return err
}

// processAlive reports whether a process with pid still exists.
func processAlive(pid int) bool {
	p, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	return p.Signal(syscall.Signal(0)) == nil
}

func stopHot() error {
	cfg, err := config.Load()
	if err != nil {
		printError("could not load config: %v", err)
		return err
	}

	pidPath := pidFilePath(cfg.Storage.DataDir)
	pid, err := readPIDFile(pidPath)
	if err != nil {
		printError("cloudbot is not running (no PID file)")
		return fmt.Errorf("not running: %w", err)
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		printError("could not find process %d", pid)
		return err
	}

	if err := process.Signal(syscall.SIGTERM); err != nil {
		printError("could not stop cloudbot (PID %d): %v", pid, err)
		removePIDFile(pidPath)
		return err
	}

	printSuccess("Sent stop signal to cloudbot (PID %d)", pid)
	return nil
}

func showStatus(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		printError("config error: %v", err)
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}

	if cfg.Server.Port == 0 {
		printStatus("Server", "disabled (server.port = 0)")
	} else {
		reportStatus(ctx, newAPIClient(cfg))
	}

	printStatus("Scope", "r/%s", cfg.Poll.Scope)
	printStatus("State file", "%s", cfg.StateFile())
	printStatus("Data dir", "%s", cfg.Storage.DataDir)
	return nil
}

// reportStatus prints what the status server says about the loop.
func reportStatus(ctx context.Context, client *apiClient) {
	resp, err := client.get(ctx, "/health")
	if err != nil {
		printStatus("Server", "stopped")
		return
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		printStatus("Server", "error (HTTP %d)", resp.StatusCode)
		return
	}
	printStatus("Server", "running at %s", client.baseURL)

	resp, err = client.get(ctx, "/stats")
	if err != nil {
		printWarning("could not read stats: %v", err)
		return
	}
	var st api.StatusResponse
	if err := decodeJSON(resp, &st); err != nil {
		printWarning("could not read stats: %v", err)
		return
	}

	if st.Loop != nil {
		printStatus("Loop", "%s after %d cycles", st.Loop.State, st.Loop.Cycles)
		printStatus("Replied", "%d (failed %d, empty %d)", st.Loop.Processed, st.Loop.Failed, st.Loop.Empty)
		if st.Loop.FetchFailures > 0 {
			printStatus("Fetch failures", "%d", st.Loop.FetchFailures)
		}
		if !st.Loop.LastCycle.IsZero() {
			printStatus("Last cycle", "%s", st.Loop.LastCycle.Local().Format(time.DateTime))
		}
	}
	printStatus("Processed ids", "%d", st.ProcessedIDs)
	printStatus("Publications", "%d hot, %d user", st.Publications[storage.ModeHot], st.Publications[storage.ModeUser])
}
