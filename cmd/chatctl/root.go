package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ieraasyl/ChatGateway/internal/session"
	"github.com/ieraasyl/ChatGateway/pkg/config"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var (
	version = "dev"
	commit  = "unknown"
)

// app holds the global flags and the lazily opened session store.
type app struct {
	sessionFile string
	ephemeral   bool
	gatewayURL  string
	tokenURL    string
	verifyURL   string
	timeout     time.Duration
	verbose     bool

	store session.Store
	input *bufio.Reader
}

func newRootCmd() *cobra.Command {
	a := &app{}

	rootCmd := &cobra.Command{
		Use:   "chatctl",
		Short: "Chat with the UBE assistant from the terminal",
		Long: `chatctl signs in with your university credentials and chats with the
UBE assistant through the chat gateway.

The session (tokens, profile and theme) is kept in a YAML file, so it
survives between runs the way the web app keeps it in the browser.

Quick Start:
  chatctl login -u estudiante          # Sign in
  chatctl chat                         # Interactive chat
  chatctl chat -m "¿Cuándo son las matrículas?"
  chatctl history                      # Previous conversations
  chatctl logout`,
		Version:       fmt.Sprintf("%s (commit: %s)", version, commit),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			level := zerolog.WarnLevel
			if a.verbose {
				level = zerolog.DebugLevel
			}
			log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: cmd.ErrOrStderr(), TimeFormat: time.Kitchen}).
				Level(level).With().Timestamp().Logger()
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&a.sessionFile, "session-file", "", "Session file (default $XDG_CONFIG_HOME/chatctl/session.yaml)")
	flags.BoolVar(&a.ephemeral, "ephemeral", false, "Keep the session in memory only")
	flags.StringVar(&a.gatewayURL, "gateway", envOr("CHATCTL_GATEWAY_URL", "http://localhost:8080"), "Chat gateway base URL")
	flags.StringVar(&a.tokenURL, "token-url", envOr("LOCAL_TOKEN_URL", config.DefaultLocalTokenURL), "University token endpoint")
	flags.StringVar(&a.verifyURL, "verify-url", envOr("LOCAL_VERIFY_URL", config.DefaultLocalVerifyURL), "University verify endpoint")
	flags.DurationVar(&a.timeout, "timeout", 30*time.Second, "Request timeout")
	flags.BoolVarP(&a.verbose, "verbose", "v", false, "Enable verbose logging")

	rootCmd.SetVersionTemplate(`{{printf "%s\n" .Version}}`)

	rootCmd.AddCommand(
		newLoginCmd(a),
		newChatCmd(a),
		newHistoryCmd(a),
		newQuickActionsCmd(a),
		newLogoutCmd(a),
	)
	return rootCmd
}

// openStore returns the session store selected by the flags.
func (a *app) openStore() (session.Store, error) {
	if a.store != nil {
		return a.store, nil
	}

	if a.ephemeral {
		a.store = session.NewMemoryStore()
		return a.store, nil
	}

	path := a.sessionFile
	if path == "" {
		dir, err := os.UserConfigDir()
		if err != nil {
			return nil, fmt.Errorf("failed to locate config directory: %w", err)
		}
		path = filepath.Join(dir, "chatctl", "session.yaml")
	}

	store, err := session.OpenFileStore(path)
	if err != nil {
		return nil, err
	}
	log.Debug().Str("path", path).Msg("Opened session file")
	a.store = store
	return store, nil
}

// readLine reads one line from the command's input.
func (a *app) readLine(cmd *cobra.Command) (string, error) {
	if a.input == nil {
		a.input = bufio.NewReader(cmd.InOrStdin())
	}
	line, err := a.input.ReadString('\n')
	if err != nil && (err != io.EOF || line == "") {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// readPassword reads a password without echo when input is a terminal.
func (a *app) readPassword(cmd *cobra.Command) (string, error) {
	if f, ok := cmd.InOrStdin().(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		data, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(cmd.OutOrStdout())
		if err != nil {
			return "", fmt.Errorf("failed to read password: %w", err)
		}
		return string(data), nil
	}
	return a.readLine(cmd)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
