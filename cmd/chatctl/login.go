package main

import (
	"fmt"
	"strings"
	"sync"

	"github.com/ieraasyl/ChatGateway/internal/models"
	"github.com/ieraasyl/ChatGateway/internal/services"
	"github.com/ieraasyl/ChatGateway/internal/session"
	"github.com/ieraasyl/ChatGateway/pkg/config"
	"github.com/spf13/cobra"
)

// terminalNavigator records where the session flow wants to go; the
// commands decide what that means in a terminal.
type terminalNavigator struct {
	mu     sync.Mutex
	target string
}

func (n *terminalNavigator) Push(path string)    { n.set(path) }
func (n *terminalNavigator) Replace(path string) { n.set(path) }

func (n *terminalNavigator) set(path string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.target = path
}

func (n *terminalNavigator) Target() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.target
}

func newLoginCmd(a *app) *cobra.Command {
	var username string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in with university credentials",
		Long: `Exchange your university username and password for tokens and store
the session locally. The password is read without echo from a terminal,
or as one line from standard input otherwise.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := a.openStore()
			if err != nil {
				return err
			}

			theme, _ := session.Theme(cmd.Context(), store)
			r := newRenderer(cmd.OutOrStdout(), theme)

			sess, err := a.login(cmd, store, username)
			if err != nil {
				return err
			}

			view := models.NewUserProfileView(sess.User, sess.Provider)
			r.notice("¡Bienvenido, "+view.FirstName()+"!", view.Email())
			return nil
		},
	}

	cmd.Flags().StringVarP(&username, "username", "u", "", "University username (prompted when empty)")
	return cmd
}

// login prompts for missing credentials and signs in with the local
// provider, writing the session to store.
func (a *app) login(cmd *cobra.Command, store session.Store, username string) (*models.Session, error) {
	out := cmd.OutOrStdout()

	if strings.TrimSpace(username) == "" {
		fmt.Fprint(out, "Usuario: ")
		line, err := a.readLine(cmd)
		if err != nil {
			return nil, fmt.Errorf("failed to read username: %w", err)
		}
		username = line
	}

	fmt.Fprint(out, "Contraseña: ")
	password, err := a.readPassword(cmd)
	if err != nil {
		return nil, err
	}

	auth := services.NewAuthService()
	auth.Register(models.ProviderLocal, services.NewLocalAuthenticator(&config.IdentityConfig{
		TokenURL:  a.tokenURL,
		VerifyURL: a.verifyURL,
	}, a.timeout))

	nav := &terminalNavigator{}
	sess, err := auth.Authenticate(cmd.Context(), store, nav, models.ProviderLocal, services.Credentials{
		Username: strings.TrimSpace(username),
		Password: password,
	})
	if err != nil {
		return nil, err
	}
	return sess, nil
}

func newLogoutCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Remove the stored session",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := a.openStore()
			if err != nil {
				return err
			}

			if err := services.NewAuthService().Logout(cmd.Context(), store); err != nil {
				return err
			}

			theme, _ := session.Theme(cmd.Context(), store)
			newRenderer(cmd.OutOrStdout(), theme).notice("Sesión cerrada", "")
			return nil
		},
	}
}
