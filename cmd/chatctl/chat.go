package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/ieraasyl/ChatGateway/internal/chat"
	"github.com/ieraasyl/ChatGateway/internal/models"
	"github.com/ieraasyl/ChatGateway/internal/session"
	"github.com/spf13/cobra"
)

const replHelp = `Comandos:
  /new            Nueva conversación
  /history        Conversaciones anteriores
  /actions        Acciones rápidas
  /action N       Enviar la acción rápida N
  /theme light|dark
  /quit`

// chatSession bundles what the chat commands share.
type chatSession struct {
	ctrl     *chat.Controller
	store    session.Store
	renderer *renderer
	nav      *terminalNavigator
}

// startChat opens the store and starts a controller. Without a session
// the user is asked to sign in first.
func (a *app) startChat(cmd *cobra.Command) (*chatSession, error) {
	ctx := cmd.Context()

	store, err := a.openStore()
	if err != nil {
		return nil, err
	}

	theme, err := session.Theme(ctx, store)
	if err != nil {
		return nil, err
	}

	r := newRenderer(cmd.OutOrStdout(), theme)
	nav := &terminalNavigator{}
	guard := session.NewGuard(store, nav, terminalNotifier{r: r}, 0)
	ctrl := chat.NewController(chat.NewGatewayClient(a.gatewayURL, a.timeout), guard)

	if err := ctrl.Start(ctx); err != nil {
		if !errors.Is(err, session.ErrNoSession) && !errors.Is(err, session.ErrSessionExpired) {
			return nil, err
		}
		r.notice("Inicia sesión para continuar", "")
		if _, err := a.login(cmd, store, ""); err != nil {
			return nil, err
		}
		if err := ctrl.Start(ctx); err != nil {
			return nil, err
		}
		nav.set("")
	}

	return &chatSession{ctrl: ctrl, store: store, renderer: r, nav: nav}, nil
}

func newChatCmd(a *app) *cobra.Command {
	var message string

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Chat with the assistant",
		Long: `Start an interactive conversation, or send a single message with -m.
Type /help inside the conversation for the available commands.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cs, err := a.startChat(cmd)
			if err != nil {
				return err
			}

			if message != "" {
				return cs.send(cmd.Context(), message)
			}

			view, _ := cs.ctrl.Profile()
			cs.renderer.notice("Hola, "+view.FirstName(), "Escribe tu pregunta o /help.")
			return a.repl(cmd, cs)
		},
	}

	cmd.Flags().StringVarP(&message, "message", "m", "", "Send one message and exit")
	return cmd
}

// send sends text and prints the messages it produced.
func (cs *chatSession) send(ctx context.Context, text string) error {
	before := len(cs.ctrl.Messages())

	err := cs.ctrl.SendMessage(ctx, text)
	if errors.Is(err, chat.ErrEmptyMessage) {
		return nil
	}

	messages := cs.ctrl.Messages()
	if before <= len(messages) {
		for _, m := range messages[before:] {
			if m.Sender == models.SenderBot {
				cs.renderer.message(m)
			}
		}
	}
	return err
}

func (a *app) repl(cmd *cobra.Command, cs *chatSession) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	for {
		fmt.Fprint(out, "> ")
		line, err := a.readLine(cmd)
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}

		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, "/") {
			if err := cs.send(ctx, line); err != nil {
				return err
			}
			continue
		}

		command, arg, _ := strings.Cut(line, " ")
		switch command {
		case "/quit", "/exit":
			return nil
		case "/help":
			fmt.Fprintln(out, replHelp)
		case "/new":
			cs.ctrl.NewChat()
			cs.renderer.notice("Nueva conversación", "")
		case "/history":
			items, err := cs.ctrl.History(ctx)
			if err != nil {
				cs.renderer.notice("No se pudo cargar el historial", err.Error())
				continue
			}
			if cs.nav.Target() == session.PathAuth {
				return session.ErrSessionExpired
			}
			cs.renderer.history(items)
		case "/actions":
			cs.renderer.quickActions(cs.ctrl.QuickActions())
		case "/action":
			actions := cs.ctrl.QuickActions()
			n, err := strconv.Atoi(strings.TrimSpace(arg))
			if err != nil || n < 1 || n > len(actions) {
				cs.renderer.notice("Acción no válida", fmt.Sprintf("Elige un número entre 1 y %d.", len(actions)))
				continue
			}
			before := len(cs.ctrl.Messages())
			if err := cs.ctrl.QuickAction(ctx, actions[n-1].Query); err != nil {
				return err
			}
			for _, m := range cs.ctrl.Messages()[before:] {
				cs.renderer.message(m)
			}
		case "/theme":
			theme := strings.TrimSpace(arg)
			if err := session.SetTheme(ctx, cs.store, theme); err != nil {
				cs.renderer.notice("Tema no válido", "Usa light o dark.")
				continue
			}
			cs.renderer.setTheme(theme)
		default:
			cs.renderer.notice("Comando desconocido", replHelp)
		}
	}
}

func newHistoryCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "history",
		Short: "List previous conversations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cs, err := a.startChat(cmd)
			if err != nil {
				return err
			}

			items, err := cs.ctrl.History(cmd.Context())
			if err != nil {
				return err
			}
			if cs.nav.Target() == session.PathAuth {
				return session.ErrSessionExpired
			}
			cs.renderer.history(items)
			return nil
		},
	}
}

func newQuickActionsCmd(a *app) *cobra.Command {
	var provider string

	cmd := &cobra.Command{
		Use:   "quick-actions",
		Short: "Show suggested questions",
		Long: `Show the quick action catalog. Without --provider the catalog of the
signed-in session is shown, or the student catalog when signed out.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := a.openStore()
			if err != nil {
				return err
			}

			p := models.ProviderLocal
			if provider != "" {
				var ok bool
				if p, ok = models.LookupProvider(provider); !ok {
					return fmt.Errorf("unknown provider %q", provider)
				}
			} else if sess, err := session.Load(cmd.Context(), store); err == nil && sess.Authenticated() {
				p = sess.Provider
			}

			theme, _ := session.Theme(cmd.Context(), store)
			newRenderer(cmd.OutOrStdout(), theme).quickActions(models.QuickActionsFor(p))
			return nil
		},
	}

	cmd.Flags().StringVar(&provider, "provider", "", "local, google or facebook")
	return cmd
}
