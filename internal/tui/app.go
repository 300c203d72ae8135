// Package tui is the interactive front end of a batch: it shows progress and
// answers the questions the engine asks through a prompt.Broker.
package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/twistedatrocity/swgaide/internal/batch"
	"github.com/twistedatrocity/swgaide/internal/notes"
	"github.com/twistedatrocity/swgaide/internal/prompt"
	"github.com/twistedatrocity/swgaide/internal/submit"
)

// maxLog bounds the progress lines kept on screen.
const maxLog = 200

// App is the bubbletea model of a running batch.
type App struct {
	title    string
	requests <-chan *prompt.Request
	events   <-chan batch.Event

	current    *prompt.Request
	editing    bool
	input      textinput.Model
	candidates list.Model
	viewport   viewport.Model

	log    []string
	width  int
	height int

	done bool
	err  error
}

// New creates the model. events may be nil when the caller drives the work
// synchronously; the app then runs until interrupted.
func New(title string, broker *prompt.Broker, events <-chan batch.Event) *App {
	ti := textinput.New()
	ti.Placeholder = "replacement line"
	ti.CharLimit = 256
	ti.Width = 80

	l := list.New(nil, list.NewDefaultDelegate(), 60, 10)
	l.SetShowStatusBar(false)
	l.SetShowHelp(false)
	l.SetFilteringEnabled(false)
	l.KeyMap.Quit.SetEnabled(false)
	l.Styles.Title = listTitle

	return &App{
		title:      title,
		requests:   broker.Requests(),
		events:     events,
		input:      ti,
		candidates: l,
		viewport:   viewport.New(80, 12),
	}
}

// Run shows the app until the batch finishes, the user quits or ctx ends.
// It returns the error carried by the final batch event.
func (a *App) Run(ctx context.Context) error {
	p := tea.NewProgram(a, tea.WithAltScreen())
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			p.Quit()
		case <-stop:
		}
	}()
	if _, err := p.Run(); err != nil {
		return err
	}
	return a.err
}

// Err returns the failure reported by the batch, if any.
func (a *App) Err() error { return a.err }

type requestMsg struct{ req *prompt.Request }

type eventMsg struct{ ev batch.Event }

type eventsClosedMsg struct{}

func (a *App) waitRequest() tea.Cmd {
	return func() tea.Msg {
		return requestMsg{<-a.requests}
	}
}

func (a *App) waitEvent() tea.Cmd {
	if a.events == nil {
		return nil
	}
	return func() tea.Msg {
		ev, ok := <-a.events
		if !ok {
			return eventsClosedMsg{}
		}
		return eventMsg{ev}
	}
}

// Init implements tea.Model
func (a *App) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, a.waitRequest(), a.waitEvent())
}

// Update implements tea.Model
func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			a.cancelCurrent()
			return a, tea.Quit
		}
		if a.current == nil {
			if a.done && (msg.String() == "q" || msg.String() == "enter") {
				return a, tea.Quit
			}
			var cmd tea.Cmd
			a.viewport, cmd = a.viewport.Update(msg)
			return a, cmd
		}
		return a, a.answerKey(msg)

	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		a.input.Width = msg.Width - 6
		a.viewport.Width = msg.Width
		a.viewport.Height = max(3, msg.Height-16)
		a.candidates.SetSize(msg.Width-4, 8)

	case requestMsg:
		a.show(msg.req)

	case eventMsg:
		a.addEvent(msg.ev)
		if msg.ev.Done {
			a.done = true
			a.err = msg.ev.Err
			if a.current == nil {
				return a, tea.Quit
			}
		}
		return a, a.waitEvent()

	case eventsClosedMsg:
		a.done = true
		if a.current == nil {
			return a, tea.Quit
		}
	}
	return a, nil
}

func (a *App) show(req *prompt.Request) {
	a.current = req
	a.editing = false
	if req.Kind == prompt.KindCollision {
		items := make([]list.Item, len(req.Collision.Candidates))
		for i, name := range req.Collision.Candidates {
			items[i] = candidate(name)
		}
		a.candidates.SetItems(items)
		a.candidates.Select(0)
		a.candidates.Title = "Did you mean"
	}
}

// answerKey maps a key to an answer for the current request. Keys that do
// not answer are passed to the active widget.
func (a *App) answerKey(msg tea.KeyMsg) tea.Cmd {
	req := a.current
	key := msg.String()

	switch req.Kind {
	case prompt.KindLineError:
		if a.editing {
			switch key {
			case "enter":
				return a.reply(prompt.Answer{Line: notes.Decision{Action: notes.Edit, Replacement: a.input.Value()}})
			case "esc":
				a.editing = false
				a.input.Blur()
				return nil
			}
			var cmd tea.Cmd
			a.input, cmd = a.input.Update(msg)
			return cmd
		}
		switch key {
		case "a":
			return a.reply(prompt.Answer{Line: notes.Decision{Action: notes.Abort}})
		case "s":
			return a.reply(prompt.Answer{Line: notes.Decision{Action: notes.Skip}})
		case "e":
			a.editing = true
			a.input.SetValue(req.LineError.Text)
			a.input.CursorEnd()
			return a.input.Focus()
		}

	case prompt.KindStale, prompt.KindAutoDelete:
		switch key {
		case "y":
			return a.reply(prompt.Answer{Confirm: true})
		case "n", "esc":
			return a.reply(prompt.Answer{Confirm: false})
		}

	case prompt.KindExisting:
		switch key {
		case "enter", "o":
			return a.reply(prompt.Answer{})
		case "s":
			if req.OfferSuppress {
				return a.reply(prompt.Answer{Suppress: true})
			}
		}

	case prompt.KindCollision:
		switch key {
		case "enter":
			if item, ok := a.candidates.SelectedItem().(candidate); ok {
				return a.reply(prompt.Answer{Collision: submit.CollisionDecision{Use: string(item)}})
			}
			return nil
		case "f":
			return a.reply(prompt.Answer{Collision: submit.CollisionDecision{Force: true}})
		case "s", "esc":
			return a.reply(prompt.Answer{})
		}
		var cmd tea.Cmd
		a.candidates, cmd = a.candidates.Update(msg)
		return cmd
	}
	return nil
}

func (a *App) reply(ans prompt.Answer) tea.Cmd {
	a.current.Reply(ans)
	a.logf("%s %s", mutedText.Render("answered"), a.current.Title())
	a.current = nil
	a.editing = false
	a.input.Blur()
	a.input.SetValue("")
	if a.done {
		return tea.Quit
	}
	return a.waitRequest()
}

// cancelCurrent answers the open question with its most conservative reply.
func (a *App) cancelCurrent() {
	if a.current == nil {
		return
	}
	a.current.Reply(prompt.Answer{Line: notes.Decision{Action: notes.Abort}})
	a.current = nil
}

func (a *App) addEvent(ev batch.Event) {
	switch {
	case ev.Done && ev.Err != nil:
		a.logf("%s %s", failStyle.Render("✗ failed"), ev.Err.Error())
	case ev.Done:
		a.logf("%s %s", okStyle.Render("✓ done"), ev.Message)
	default:
		a.logf("%s %s", stepStyle.Render(fmt.Sprintf("%-8s", ev.Step)), ev.Message)
	}
}

func (a *App) logf(format string, args ...interface{}) {
	line := fmt.Sprintf("%s  %s", time.Now().Format("15:04:05"), fmt.Sprintf(format, args...))
	a.log = append(a.log, line)
	if len(a.log) > maxLog {
		a.log = a.log[len(a.log)-maxLog:]
	}
	a.viewport.SetContent(strings.Join(a.log, "\n"))
	a.viewport.GotoBottom()
}

// View implements tea.Model
func (a *App) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("SWGAide · " + a.title))
	b.WriteString("\n\n")
	b.WriteString(a.viewport.View())
	b.WriteString("\n")

	if a.current != nil {
		b.WriteString(panelStyle.Render(a.renderRequest()))
		b.WriteString("\n")
	} else if !a.done {
		b.WriteString(helpStyle.Render("Questions appear here when the batch needs a decision.") + "\n")
	}

	b.WriteString(statusBarStyle.Width(a.width).Render(a.statusLine()))
	return b.String()
}

func (a *App) renderRequest() string {
	req := a.current
	var b strings.Builder
	b.WriteString(titleStyle.Render(req.Title()))
	b.WriteString("\n")

	switch req.Kind {
	case prompt.KindLineError:
		b.WriteString(fmt.Sprintf("%s\n%s\n", req.LineError.Msg, mutedText.Render(req.LineError.Text)))
		if a.editing {
			b.WriteString(inputBoxStyle.Render(a.input.View()))
		}
	case prompt.KindStale:
		b.WriteString("Continue with outdated data?")
	case prompt.KindExisting:
		b.WriteString(fmt.Sprintf("%s (%s) was not submitted again.", req.Wrapper.Name(), req.Wrapper.Class()))
	case prompt.KindCollision:
		b.WriteString(a.candidates.View())
	case prompt.KindAutoDelete:
		b.WriteString("All lines were consumed. Erase the notes file?")
	}
	return b.String()
}

func (a *App) statusLine() string {
	if a.current == nil {
		if a.done {
			return " Finished | Enter/q:quit"
		}
		return " Working... | ↑↓:scroll | Ctrl+C:quit"
	}
	switch a.current.Kind {
	case prompt.KindLineError:
		if a.editing {
			return " Enter:submit edit | Esc:back"
		}
		return " a:abort | e:edit | s:skip"
	case prompt.KindExisting:
		if a.current.OfferSuppress {
			return " Enter:ok | s:ok, don't show again"
		}
		return " Enter:ok"
	case prompt.KindCollision:
		return " ↑↓:select | Enter:use selected | f:submit as new | s:skip"
	default:
		return " y:yes | n:no"
	}
}

// candidate is a catalog name offered for a colliding resource.
type candidate string

func (c candidate) FilterValue() string { return string(c) }
func (c candidate) Title() string       { return string(c) }
func (c candidate) Description() string { return "existing resource" }
