package ui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	"github.com/fableweaver/fableweaver/internal/api"
	"github.com/fableweaver/fableweaver/internal/game"
	"github.com/fableweaver/fableweaver/internal/prefetch"
	"github.com/fableweaver/fableweaver/internal/session"
	"github.com/fableweaver/fableweaver/internal/text"
	"github.com/fableweaver/fableweaver/internal/util"
)

const (
	viewMainMenu  = "main_menu"
	viewCharacter = "character"
	viewScene     = "scene"
	viewHistory   = "history"
	viewJournal   = "journal"
	viewHelp      = "help"
)

var portraitPresets = map[game.BuildType]string{
	game.BuildWarrior: "https://assets.fableweaver.app/portraits/warrior.png",
	game.BuildMage:    "https://assets.fableweaver.app/portraits/mage.png",
	game.BuildRogue:   "https://assets.fableweaver.app/portraits/rogue.png",
	game.BuildRanger:  "https://assets.fableweaver.app/portraits/ranger.png",
}

type opDoneMsg struct{ err error }
type tickMsg time.Time

type model struct {
	ctx     context.Context
	store   *session.Store
	pre     *prefetch.Pregenerator
	version string

	view      string
	width     int
	height    int
	themeName string
	st        styles
	density   text.Density

	busy   bool
	status string

	// character creation
	nameInput string
	genderIdx int
	buildIdx  int

	// rendered scene cache, keyed by scene id + density
	renderedFor string
	rendered    string

	historyIndex int
	scrollOffset int
	maxScroll    int
}

func initialModel(ctx context.Context, st *session.Store, pre *prefetch.Pregenerator, cfg util.Config, version string) model {
	m := model{
		ctx:       ctx,
		store:     st,
		pre:       pre,
		version:   version,
		view:      viewMainMenu,
		themeName: cfg.Theme,
		density:   text.ParseDensity(cfg.TextDensity),
	}
	m.st = newStyles(paletteFor(m.themeName))
	return m
}

func (m model) buildCharacter() game.Character {
	build := game.AllBuildTypes[m.buildIdx%len(game.AllBuildTypes)]
	return game.Character{
		Name:        strings.TrimSpace(m.nameInput),
		Gender:      game.AllGenders[m.genderIdx%len(game.AllGenders)],
		BuildType:   build,
		PortraitURL: portraitPresets[build],
		Stats:       game.DefaultStats(),
	}
}

// Commands --------------------------------------------------------------------

func (m model) startCmd(ch game.Character) tea.Cmd {
	return func() tea.Msg { return opDoneMsg{err: m.store.StartNewGame(m.ctx, ch)} }
}

func (m model) restoreCmd() tea.Cmd {
	return func() tea.Msg { return opDoneMsg{err: m.store.Restore(m.ctx)} }
}

func (m model) chooseCmd(choiceID string) tea.Cmd {
	return func() tea.Msg { return opDoneMsg{err: m.store.SelectChoice(m.ctx, choiceID)} }
}

func (m model) retryCmd() tea.Cmd {
	return func() tea.Msg { return opDoneMsg{err: m.store.Retry(m.ctx)} }
}

func (m model) goBackCmd(index int) tea.Cmd {
	return func() tea.Msg { return opDoneMsg{err: m.store.GoBack(m.ctx, index)} }
}

func tick() tea.Cmd {
	return tea.Tick(400*time.Millisecond, func(t time.Time) tea.Msg { return tickMsg(t) })
}

// tea.Model -------------------------------------------------------------------

func (m model) Init() tea.Cmd { return tick() }

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.renderedFor = "" // re-wrap at the new width
		return m, nil
	case tickMsg:
		// periodic refresh keeps the readiness markers live while branches resolve
		return m, tick()
	case opDoneMsg:
		m.busy = false
		m.status = ""
		if msg.err != nil {
			if errors.Is(msg.err, session.ErrNoSnapshot) {
				m.status = "No saved adventure to continue."
				m.view = viewMainMenu
				return m, nil
			}
			m.status = errorText(msg.err)
		}
		m.scrollOffset = 0
		if m.store.State() == session.StateIdle {
			m.view = viewMainMenu
		} else {
			m.view = viewScene
		}
		return m, nil
	case tea.KeyMsg:
		return m.handleKey(msg.String())
	}
	return m, nil
}

func (m model) handleKey(k string) (tea.Model, tea.Cmd) {
	if k == "ctrl+c" {
		return m, tea.Quit
	}
	if m.busy {
		return m, nil
	}

	switch m.view {
	case viewMainMenu:
		switch k {
		case "1":
			m.nameInput = ""
			m.genderIdx = 0
			m.buildIdx = 0
			m.view = viewCharacter
		case "2":
			m.busy = true
			m.status = "Loading your adventure..."
			return m, m.restoreCmd()
		case "3":
			m.view = viewHelp
		case "q":
			return m, tea.Quit
		}
		return m, nil

	case viewCharacter:
		switch {
		case k == "esc":
			m.view = viewMainMenu
		case k == "tab":
			m.genderIdx = (m.genderIdx + 1) % len(game.AllGenders)
		case k == "up":
			m.buildIdx = (m.buildIdx + len(game.AllBuildTypes) - 1) % len(game.AllBuildTypes)
		case k == "down":
			m.buildIdx = (m.buildIdx + 1) % len(game.AllBuildTypes)
		case k == "enter":
			ch := m.buildCharacter()
			if ch.Name == "" {
				m.status = "Name your hero first."
				return m, nil
			}
			m.busy = true
			m.status = "Weaving your opening scene..."
			return m, m.startCmd(ch)
		case k == "backspace":
			if len(m.nameInput) > 0 {
				m.nameInput = m.nameInput[:len(m.nameInput)-1]
			}
		case isRuneInput(k):
			if len(m.nameInput) < 24 {
				m.nameInput += k
			}
		}
		return m, nil

	case viewHistory:
		scenes := m.store.History()
		switch k {
		case "up", "k":
			if m.historyIndex > 0 {
				m.historyIndex--
			}
		case "down", "j":
			if m.historyIndex < len(scenes)-1 {
				m.historyIndex++
			}
		case "enter":
			if m.historyIndex < len(scenes)-1 {
				m.busy = true
				m.status = "Rewinding..."
				return m, m.goBackCmd(m.historyIndex)
			}
			m.view = viewScene
		case "esc", "q":
			m.view = viewScene
		}
		return m, nil

	case viewJournal, viewHelp:
		if k == "esc" || k == "q" {
			if m.store.State() == session.StateIdle {
				m.view = viewMainMenu
			} else {
				m.view = viewScene
			}
		}
		return m, nil
	}

	// scene view
	state := m.store.State()
	switch k {
	case "q":
		return m, tea.Quit
	case "m":
		m.view = viewMainMenu
		return m, nil
	case "h":
		m.historyIndex = len(m.store.History()) - 1
		m.view = viewHistory
		return m, nil
	case "j":
		m.view = viewJournal
		return m, nil
	case "?":
		m.view = viewHelp
		return m, nil
	case "d":
		m.density = m.density.Cycle()
		m.renderedFor = ""
		return m, nil
	case "[":
		m.themeName = nextThemeName(m.themeName, -1)
		m.st = newStyles(paletteFor(m.themeName))
		return m, nil
	case "]":
		m.themeName = nextThemeName(m.themeName, 1)
		m.st = newStyles(paletteFor(m.themeName))
		return m, nil
	case "r":
		if state == session.StateErrored {
			m.busy = true
			m.status = "Retrying..."
			return m, m.retryCmd()
		}
		return m, nil
	case "pgdown", "ctrl+f":
		m.scrollOffset += 8
		return m, nil
	case "pgup", "ctrl+b":
		m.scrollOffset -= 8
		if m.scrollOffset < 0 {
			m.scrollOffset = 0
		}
		return m, nil
	}
	if state == session.StateActive && len(k) == 1 && k[0] >= '1' && k[0] <= '9' {
		scene, ok := m.store.CurrentScene()
		if !ok {
			return m, nil
		}
		idx := int(k[0] - '1')
		if idx < len(scene.Choices) {
			m.busy = true
			m.status = "The story turns..."
			return m, m.chooseCmd(scene.Choices[idx].ID)
		}
	}
	return m, nil
}

// Rendering -------------------------------------------------------------------

func (m model) View() string {
	switch m.view {
	case viewMainMenu:
		return m.renderMainMenu()
	case viewCharacter:
		return m.renderCharacter()
	case viewHistory:
		return m.renderHistory()
	case viewJournal:
		return m.renderJournal()
	case viewHelp:
		return m.renderHelp()
	default:
		return m.renderScene()
	}
}

func (m model) renderMainMenu() string {
	content := "FABLEWEAVER — MAIN MENU\n\n[1] New Adventure\n[2] Continue\n[3] About\n\nQ Quit"
	if m.status != "" {
		content += "\n\n" + m.status
	}
	return m.st.box.Render(content)
}

func (m model) renderCharacter() string {
	gender := game.AllGenders[m.genderIdx%len(game.AllGenders)]
	var b strings.Builder
	b.WriteString("CREATE YOUR HERO\n\n")
	b.WriteString(fmt.Sprintf("Name:   %s_\n", m.nameInput))
	b.WriteString(fmt.Sprintf("Gender: %s (Tab)\n", gender))
	b.WriteString("Build:  (Up/Down)\n")
	for i, bt := range game.AllBuildTypes {
		cursor := "  "
		if i == m.buildIdx%len(game.AllBuildTypes) {
			cursor = "> "
		}
		b.WriteString(fmt.Sprintf("  %s%s\n", cursor, bt))
	}
	b.WriteString("\nEnter begin  Esc back")
	if m.status != "" {
		b.WriteString("\n\n" + m.status)
	}
	return m.st.box.Render(b.String())
}

func (m *model) renderedScene(scene game.Scene) string {
	key := scene.ID + "|" + string(m.density)
	if m.renderedFor == key && m.rendered != "" {
		return m.rendered
	}
	md := text.SceneMarkdown(scene, m.density)
	width := m.width - 4
	if width < 20 || width > 100 {
		width = 80
	}
	renderer, err := glamour.NewTermRenderer(glamour.WithAutoStyle(), glamour.WithWordWrap(width))
	if err != nil {
		return md
	}
	out, err := renderer.Render(md)
	if err != nil {
		return md
	}
	m.renderedFor = key
	m.rendered = out
	return out
}

func (m model) renderScene() string {
	state := m.store.State()
	if state == session.StateErrored {
		return m.renderError()
	}
	scene, ok := m.store.CurrentScene()
	if !ok {
		return m.st.box.Render("No adventure in progress.\n\n[m] menu")
	}

	top := m.renderTopBar(state)
	body := m.renderedScene(scene)
	if scene.ImageURL != "" {
		body += m.st.muted.Render("illustration: "+scene.ImageURL) + "\n"
	}
	if state == session.StateActive {
		body += "\n" + strings.Join(m.choiceLines(scene), "\n") + "\n"
	}

	lines := strings.Split(body, "\n")
	offset := m.scrollOffset
	avail := m.height - 4
	if avail > 5 && len(lines) > avail {
		if offset > len(lines)-avail {
			offset = len(lines) - avail
		}
		lines = lines[offset : offset+avail]
	}
	bottom := m.renderBottomBar(state)
	return lipgloss.JoinVertical(lipgloss.Left, top, strings.Join(lines, "\n"), bottom)
}

// choiceLines renders the numbered choices with a readiness marker: a filled
// dot when the branch behind the choice has already resolved.
func (m model) choiceLines(scene game.Scene) []string {
	progress := map[string]bool{}
	if m.pre != nil {
		progress = m.pre.Progress()
	}
	out := make([]string, 0, len(scene.Choices))
	for i, c := range scene.Choices {
		marker := m.st.muted.Render("○")
		if progress[c.ID] {
			marker = m.st.ready.Render("●")
		}
		out = append(out, fmt.Sprintf("%s [%d] %s", marker, i+1, m.st.choice.Render(c.Text)))
	}
	return out
}

func (m model) renderTopBar(state session.State) string {
	ch := m.store.Character()
	left := strings.Join([]string{"FABLEWEAVER", ch.Name, string(ch.BuildType)}, " • ")
	right := string(state)
	if state == session.StateEnded {
		right = "the end"
	}
	w := m.width
	if w <= 0 {
		w = 100
	}
	gap := w - len(left) - len(right)
	if gap < 1 {
		gap = 1
	}
	return m.st.bar.Render(left + strings.Repeat(" ", gap) + right)
}

func (m model) renderBottomBar(state session.State) string {
	keys := "[1-4] choose  [h] history  [j] journal  [d] density  [[/]] theme  [m] menu  [?] about  [q] quit"
	if state == session.StateEnded {
		keys = "[h] history  [j] journal  [m] menu  [q] quit"
	}
	line := m.st.muted.Render(keys)
	if m.busy && m.status != "" {
		line += "\n" + m.st.title.Render(m.status)
	}
	return line
}

func (m model) renderError() string {
	msg := m.status
	if msg == "" {
		msg = errorText(m.store.Err())
	}
	content := "SOMETHING WENT WRONG\n\n" + msg + "\n\n[r] retry  [m] menu  [q] quit"
	return m.st.errBox.Render(content)
}

func (m model) renderHistory() string {
	scenes := m.store.History()
	var b strings.Builder
	b.WriteString(m.st.title.Render("YOUR PATH SO FAR") + "  (Up/Down, Enter rewind, Esc back)\n\n")
	for i, sc := range scenes {
		cursor := "  "
		if i == m.historyIndex {
			cursor = "> "
		}
		label := text.Recap(sc.Narration)
		if i == len(scenes)-1 {
			label += m.st.muted.Render("  (current)")
		}
		b.WriteString(fmt.Sprintf("%s%2d. %s\n", cursor, i+1, label))
	}
	if len(scenes) == 0 {
		b.WriteString("(nothing yet)\n")
	}
	b.WriteString(m.st.muted.Render("\nRewinding discards everything after the chosen scene."))
	return b.String()
}

func (m model) renderJournal() string {
	recs := m.store.Choices()
	var b strings.Builder
	b.WriteString(m.st.title.Render("CHOICE JOURNAL") + "  (Esc back)\n\n")
	for i, r := range recs {
		b.WriteString(fmt.Sprintf("%2d. %s  %s\n", i+1, r.At.Format("15:04:05"), r.ChoiceText))
	}
	if len(recs) == 0 {
		b.WriteString("(no choices made)\n")
	}
	return b.String()
}

func (m model) renderHelp() string {
	return m.st.box.Render(fmt.Sprintf(
		"FABLEWEAVER %s\n\nAn AI-woven choose-your-own-adventure. Create a hero, read each scene and pick a path."+
			" Branches behind every choice are prepared while you read; a filled dot marks a path that will open instantly."+
			" Your adventure saves itself after every turn and [2] Continue picks it back up.\n\nEsc back", m.version))
}

func isRuneInput(s string) bool {
	runes := []rune(s)
	return len(runes) == 1 && runes[0] >= 32 && runes[0] < 127
}

func errorText(err error) string {
	if err == nil {
		return ""
	}
	var ae *api.Error
	if errors.As(err, &ae) {
		return ae.Message()
	}
	return err.Error()
}
