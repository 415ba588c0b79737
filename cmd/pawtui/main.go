package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/matheus3301/pawchat/internal/logging"
	"github.com/matheus3301/pawchat/internal/profile"
	"github.com/matheus3301/pawchat/internal/tui"
	"github.com/matheus3301/pawchat/internal/tui/client"
	"github.com/matheus3301/pawchat/internal/tui/model"
)

func main() {
	profileFlag := flag.String("profile", "", "profile name (overrides config default)")
	withFlag := flag.String("with", "", "open a chat with this identity or invite link on start")
	flag.Parse()

	profileName := profile.Resolve(*profileFlag)
	if err := profile.ValidateName(profileName); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	cfg, err := profile.LoadConfig(profileName)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	self, err := cfg.CurrentIdentity()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v (run: pawctl --profile %s init <email>)\n", err, profileName)
		os.Exit(1)
	}

	socketPath := profile.SocketPath(profileName)

	// Probe daemon health; auto-start if needed.
	if !probeDaemon(socketPath) {
		fmt.Fprintf(os.Stderr, "daemon not running for profile %q, starting...\n", profileName)
		if err := startDaemon(profileName); err != nil {
			fmt.Fprintf(os.Stderr, "failed to start daemon: %v\n", err)
			os.Exit(1)
		}
		if !waitForDaemon(socketPath, 10*time.Second) {
			fmt.Fprintf(os.Stderr, "daemon did not become ready\n")
			os.Exit(1)
		}
	}

	// The terminal belongs to tview, so logs only go to the file.
	logger, err := logging.NewFileOnly(filepath.Join(profile.LogDir(profileName), "tui.log"), profileName)
	if err != nil {
		logger = zap.NewNop()
	}
	defer func() { _ = logger.Sync() }()

	c, err := client.New(socketPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "connect to daemon: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = c.Close() }()
	c.Viewer = self.Identity

	settings := model.ChatSettings{
		PageSize:            cfg.Chat.PageSize,
		ResubscribeAttempts: cfg.Chat.ResubscribeAttempts,
		OutboxSize:          cfg.Chat.OutboxSize,
	}
	app := tui.NewApp(c, profileName, self, settings, logger)
	if *withFlag != "" {
		counterpart, err := tui.ParseInvite(*withFlag)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		app.OpenOnStart(counterpart)
	}
	if err := app.Run(); err != nil {
		logger.Error("tui exited", zap.Error(err))
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// probeDaemon checks if a daemon is running and reports SERVING.
func probeDaemon(socketPath string) bool {
	c, err := client.New(socketPath)
	if err != nil {
		return false
	}
	defer func() { _ = c.Close() }()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	return c.Healthy(ctx)
}

func startDaemon(profileName string) error {
	executable, err := os.Executable()
	if err != nil {
		return err
	}
	daemonBin := filepath.Join(filepath.Dir(executable), "pawchatd")

	if _, err := os.Stat(daemonBin); err != nil {
		daemonBin = "pawchatd"
	}

	cmd := exec.Command(daemonBin, "--profile", profileName)
	// Inherit stderr so daemon startup errors are visible.
	cmd.Stderr = os.Stderr
	return cmd.Start()
}

// waitForDaemon polls the daemon's health service until it is serving.
func waitForDaemon(socketPath string, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if probeDaemon(socketPath) {
			return true
		}
		time.Sleep(300 * time.Millisecond)
	}
	return false
}
