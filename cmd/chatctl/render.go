package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/ieraasyl/ChatGateway/internal/models"
	"github.com/ieraasyl/ChatGateway/internal/session"
)

type palette struct {
	user    lipgloss.Style
	bot     lipgloss.Style
	content lipgloss.Style
	notice  lipgloss.Style
	muted   lipgloss.Style
	title   lipgloss.Style
}

func newPalette(theme string) palette {
	fg, muted, accent := lipgloss.Color("236"), lipgloss.Color("244"), lipgloss.Color("25")
	if theme == session.ThemeDark {
		fg, muted, accent = lipgloss.Color("252"), lipgloss.Color("243"), lipgloss.Color("39")
	}

	return palette{
		user: lipgloss.NewStyle().
			Foreground(accent).
			Bold(true),
		bot: lipgloss.NewStyle().
			Foreground(lipgloss.Color("135")).
			Bold(true),
		content: lipgloss.NewStyle().
			Foreground(fg).
			PaddingLeft(2),
		notice: lipgloss.NewStyle().
			Foreground(lipgloss.Color("214")).
			Bold(true),
		muted: lipgloss.NewStyle().
			Foreground(muted).
			Italic(true),
		title: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("212")),
	}
}

// renderer prints conversation output with the user's theme.
type renderer struct {
	out    io.Writer
	styles palette
}

func newRenderer(out io.Writer, theme string) *renderer {
	return &renderer{out: out, styles: newPalette(theme)}
}

func (r *renderer) setTheme(theme string) {
	r.styles = newPalette(theme)
}

func (r *renderer) message(m models.Message) {
	label := r.styles.bot.Render("Asistente UBE")
	if m.Sender == models.SenderUser {
		name := m.Name
		if name == "" {
			name = "Tú"
		}
		label = r.styles.user.Render(name)
	}

	fmt.Fprintf(r.out, "%s %s\n", label, r.styles.muted.Render(m.Timestamp.Format("15:04")))
	fmt.Fprintln(r.out, r.styles.content.Render(strings.TrimSpace(m.Text)))
}

func (r *renderer) notice(title, body string) {
	fmt.Fprintln(r.out, r.styles.notice.Render(title))
	if body != "" {
		fmt.Fprintln(r.out, r.styles.content.Render(body))
	}
}

func (r *renderer) history(items []models.HistoryItem) {
	if len(items) == 0 {
		fmt.Fprintln(r.out, r.styles.muted.Render("No hay conversaciones anteriores."))
		return
	}
	fmt.Fprintln(r.out, r.styles.title.Render("Conversaciones"))
	for _, item := range items {
		fmt.Fprintf(r.out, "  %s %s\n", r.styles.muted.Render(item.ID.String()), item.Title)
	}
}

func (r *renderer) quickActions(actions []models.QuickAction) {
	fmt.Fprintln(r.out, r.styles.title.Render("Acciones rápidas"))
	for i, action := range actions {
		fmt.Fprintf(r.out, "  %d. %s %s %s\n", i+1, action.Emoji, action.Label, r.styles.muted.Render(action.Description))
	}
}

// terminalNotifier tells the user the session ended.
type terminalNotifier struct {
	r *renderer
}

func (n terminalNotifier) SessionExpired() {
	n.r.notice("Sesión expirada", "Tu sesión ha expirado. Serás redirigido al inicio de sesión.")
}
