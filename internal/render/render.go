// Package render formats a chat feed for a line-oriented terminal.
package render

import (
	"hash/fnv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/vovakirdan/potchat/internal/chat"
)

var (
	colorGreen  = lipgloss.Color("#9ece6a")
	colorYellow = lipgloss.Color("#e0af68")
	colorRed    = lipgloss.Color("#f7768e")
	colorGray   = lipgloss.Color("#565f89")
	colorWhite  = lipgloss.Color("#c0caf5")

	senderPalette = []lipgloss.Color{
		lipgloss.Color("#7aa2f7"),
		lipgloss.Color("#bb9af7"),
		lipgloss.Color("#7dcfff"),
		lipgloss.Color("#ff9e64"),
		lipgloss.Color("#73daca"),
	}
)

var (
	timeStyle    = lipgloss.NewStyle().Foreground(colorGray)
	ownStyle     = lipgloss.NewStyle().Foreground(colorGreen).Bold(true)
	bodyStyle    = lipgloss.NewStyle().Foreground(colorWhite)
	enterStyle   = lipgloss.NewStyle().Foreground(colorGray).Italic(true)
	pendingStyle = lipgloss.NewStyle().Foreground(colorYellow).Faint(true)
	failedStyle  = lipgloss.NewStyle().Foreground(colorRed).Bold(true)
	stateStyle   = lipgloss.NewStyle().Foreground(colorYellow)
)

// Renderer turns feed updates into printable lines.
type Renderer struct {
	localUser string
	loc       *time.Location
}

// New creates a renderer that highlights localUser's messages and prints times in loc.
func New(localUser string, loc *time.Location) *Renderer {
	if loc == nil {
		loc = time.Local
	}
	return &Renderer{localUser: localUser, loc: loc}
}

// Message renders one feed entry.
func (r *Renderer) Message(m chat.Message) string {
	var b strings.Builder
	b.WriteString(timeStyle.Render(m.SentAt.In(r.loc).Format("15:04:05")))
	b.WriteString(" ")

	if m.Kind == chat.KindEnter {
		body := strings.TrimSpace(m.Body)
		if body == "" {
			body = m.Sender + " entered"
		}
		b.WriteString(enterStyle.Render("* " + body))
		return b.String()
	}

	sender := "[" + m.Sender + "]"
	if m.Sender == r.localUser {
		b.WriteString(ownStyle.Render(sender))
	} else {
		b.WriteString(lipgloss.NewStyle().Foreground(colorFor(m.Sender)).Render(sender))
	}
	b.WriteString(" ")
	b.WriteString(bodyStyle.Render(m.Body))

	switch m.Status {
	case chat.StatusPending:
		b.WriteString(" ")
		b.WriteString(pendingStyle.Render("(sending)"))
	case chat.StatusFailed:
		b.WriteString(" ")
		b.WriteString(failedStyle.Render("(not sent)"))
	}
	return b.String()
}

// State renders a lifecycle change.
func (r *Renderer) State(state chat.State, reconnecting bool) string {
	switch {
	case state == chat.StateLive && reconnecting:
		return stateStyle.Render("-- connection lost, reconnecting --")
	case state == chat.StateLive:
		return stateStyle.Render("-- connected --")
	case state == chat.StateLoadingHistory:
		return stateStyle.Render("-- connecting --")
	case state == chat.StateClosed:
		return stateStyle.Render("-- chat closed --")
	default:
		return ""
	}
}

// Update returns the lines to print for u. A reset reprints the whole feed under a divider.
// Confirmations print nothing; only failures are reported again.
func (r *Renderer) Update(u chat.Update) []string {
	switch u.Kind {
	case chat.UpdateAppend:
		return []string{r.Message(u.Message)}
	case chat.UpdateReset:
		lines := make([]string, 0, len(u.Feed)+1)
		lines = append(lines, timeStyle.Render("-- history --"))
		for _, m := range u.Feed {
			lines = append(lines, r.Message(m))
		}
		return lines
	case chat.UpdateStatus:
		if u.Message.Status == chat.StatusFailed {
			return []string{r.Message(u.Message)}
		}
		return nil
	case chat.UpdateState:
		if line := r.State(u.State, u.Reconnecting); line != "" {
			return []string{line}
		}
		return nil
	default:
		return nil
	}
}

func colorFor(s string) lipgloss.Color {
	h := fnv.New32a()
	_, _ = h.Write([]byte(s))
	return senderPalette[h.Sum32()%uint32(len(senderPalette))]
}
