// Copyright (c) 2024-2025 Nyarch Linux contributors
// SPDX-License-Identifier: GPL-3.0-or-later

package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	"github.com/nyarchlinux/nyarcher/internal/detect"
	"github.com/nyarchlinux/nyarcher/internal/pipeline"
	"github.com/nyarchlinux/nyarcher/internal/release"
)

// =============================================================================
// STYLES
// =============================================================================

var (
	brandPrimary = lipgloss.Color("#F472B6") // Pink
	brandAccent  = lipgloss.Color("#A78BFA") // Violet
	brandSuccess = lipgloss.Color("#34D399") // Emerald
	brandWarning = lipgloss.Color("#FBBF24") // Amber
	brandError   = lipgloss.Color("#F87171") // Red
	textMuted    = lipgloss.Color("#9CA3AF") // Gray

	titleStyle = lipgloss.NewStyle().
			Foreground(brandPrimary).
			Bold(true).
			MarginBottom(1)

	subtitleStyle = lipgloss.NewStyle().
			Foreground(textMuted).
			Italic(true)

	successStyle = lipgloss.NewStyle().
			Foreground(brandSuccess).
			Bold(true)

	errorStyle = lipgloss.NewStyle().
			Foreground(brandError).
			Bold(true)

	warningStyle = lipgloss.NewStyle().
			Foreground(brandWarning)

	highlightStyle = lipgloss.NewStyle().
			Foreground(brandAccent).
			Bold(true)

	dimStyle = lipgloss.NewStyle().
			Foreground(textMuted)

	selectedStyle = lipgloss.NewStyle().
			Foreground(brandPrimary).
			Bold(true)

	unselectedStyle = lipgloss.NewStyle().
			Foreground(textMuted)

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(brandPrimary).
			Padding(1, 2)
)

const logo = `
    ███╗   ██╗██╗   ██╗ █████╗ ██████╗  ██████╗██╗  ██╗
    ████╗  ██║╚██╗ ██╔╝██╔══██╗██╔══██╗██╔════╝██║  ██║
    ██╔██╗ ██║ ╚████╔╝ ███████║██████╔╝██║     ███████║
    ██║╚██╗██║  ╚██╔╝  ██╔══██║██╔══██╗██║     ██╔══██║
    ██║ ╚████║   ██║   ██║  ██║██║  ██║╚██████╗██║  ██║
    ╚═╝  ╚═══╝   ╚═╝   ╚═╝  ╚═╝╚═╝  ╚═╝ ╚═════╝╚═╝  ╚═╝
`

const tagline = "Make your Linux desktop kawaii"

// =============================================================================
// MODEL
// =============================================================================

// phase is the installer screen currently shown.
type phase int

const (
	phaseWelcome phase = iota
	phaseConfirm
	phaseSystemCheck
	phaseMenu
	phaseDownload
	phaseRunning
	phaseReport
)

// installer is the bubbletea model driving the guided install.
type installer struct {
	app   *app
	phase phase

	width  int
	height int

	spinner  spinner.Model
	progress progress.Model

	// Welcome
	rel        release.Release
	relErr     error
	notes      string
	relFetched bool

	// System check
	check     detect.SystemCheck
	checkDone bool

	// Menu
	cursor   int
	selected map[string]bool

	// Download
	downloaded int64
	total      int64

	// Running
	bundleDir string
	events    chan pipeline.Event
	current   string
	results   []pipeline.MutationResult

	// Report
	report pipeline.Report
	runErr error
}

func newInstaller(a *app) *installer {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(brandPrimary)

	selected := make(map[string]bool)
	// The full theming bundle is the reason people run this; preselect it.
	for _, g := range a.catalog.Groups {
		selected[g.ID] = !g.System
	}

	return &installer{
		app:      a,
		phase:    phaseWelcome,
		spinner:  s,
		progress: progress.New(progress.WithDefaultGradient()),
		selected: selected,
	}
}

func (m *installer) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.fetchRelease())
}

// =============================================================================
// MESSAGES AND COMMANDS
// =============================================================================

type releaseMsg struct {
	rel   release.Release
	notes string
	err   error
}

type checkMsg struct {
	check detect.SystemCheck
}

type downloadMsg struct {
	downloaded, total int64
}

type bundleMsg struct {
	dir string
	err error
}

type eventMsg struct {
	event pipeline.Event
	open  bool
}

type doneMsg struct {
	report pipeline.Report
	err    error
}

func (m *installer) fetchRelease() tea.Cmd {
	return func() tea.Msg {
		rel, err := m.app.resolveRelease(context.Background())
		if err != nil {
			return releaseMsg{err: err}
		}

		notes := ""
		if rel.Notes != "" {
			r, rerr := glamour.NewTermRenderer(glamour.WithAutoStyle(), glamour.WithWordWrap(70))
			if rerr == nil {
				if out, rerr := r.Render(rel.Notes); rerr == nil {
					notes = out
				}
			}
		}
		return releaseMsg{rel: rel, notes: notes}
	}
}

func (m *installer) runSystemCheck() tea.Cmd {
	return func() tea.Msg {
		return checkMsg{check: m.app.systemCheck(context.Background())}
	}
}

func (m *installer) downloadBundle() tea.Cmd {
	prog := make(chan downloadMsg, 16)

	fetch := func() tea.Msg {
		dir, err := m.app.ensureBundle(context.Background(), m.rel, func(downloaded, total int64) {
			select {
			case prog <- downloadMsg{downloaded: downloaded, total: total}:
			default:
			}
		})
		close(prog)
		return bundleMsg{dir: dir, err: err}
	}

	return tea.Batch(fetch, m.pollDownload(prog))
}

func (m *installer) pollDownload(prog chan downloadMsg) tea.Cmd {
	return func() tea.Msg {
		msg, ok := <-prog
		if !ok {
			return nil
		}
		return pollMsg{msg: msg, prog: prog}
	}
}

type pollMsg struct {
	msg  downloadMsg
	prog chan downloadMsg
}

func (m *installer) startPipeline() tea.Cmd {
	m.events = make(chan pipeline.Event, 16)
	events := m.events

	run := func() tea.Msg {
		rep, err := m.app.runPipeline(context.Background(), m.selection(), m.bundleDir, m.rel.Tag,
			func(e pipeline.Event) { events <- e })
		close(events)
		return doneMsg{report: rep, err: err}
	}
	return tea.Batch(run, m.nextEvent())
}

func (m *installer) nextEvent() tea.Cmd {
	return func() tea.Msg {
		e, ok := <-m.events
		return eventMsg{event: e, open: ok}
	}
}

// selection returns the chosen group IDs in catalog order.
func (m *installer) selection() []string {
	var ids []string
	for _, g := range m.app.catalog.Groups {
		if m.selected[g.ID] {
			ids = append(ids, g.ID)
		}
	}
	return ids
}

// =============================================================================
// UPDATE
// =============================================================================

func (m *installer) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		w := msg.Width - 20
		if w < 20 {
			w = 20
		}
		if w > 80 {
			w = 80
		}
		m.progress.Width = w
		return m, m.spinner.Tick

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case progress.FrameMsg:
		pm, cmd := m.progress.Update(msg)
		m.progress = pm.(progress.Model)
		return m, cmd

	case releaseMsg:
		m.relFetched = true
		m.rel = msg.rel
		m.relErr = msg.err
		m.notes = msg.notes
		return m, nil

	case checkMsg:
		m.check = msg.check
		m.checkDone = true
		return m, nil

	case pollMsg:
		m.downloaded = msg.msg.downloaded
		m.total = msg.msg.total
		var bar tea.Cmd
		if m.total > 0 {
			bar = m.progress.SetPercent(float64(m.downloaded) / float64(m.total))
		}
		return m, tea.Batch(bar, m.pollDownload(msg.prog))

	case bundleMsg:
		if msg.err != nil {
			m.runErr = msg.err
			m.phase = phaseReport
			return m, nil
		}
		m.bundleDir = msg.dir
		m.phase = phaseRunning
		return m, m.startPipeline()

	case eventMsg:
		if !msg.open {
			return m, nil
		}
		if msg.event.Starting != nil {
			m.current = msg.event.Starting.Title
		}
		if msg.event.Result != nil {
			m.results = append(m.results, *msg.event.Result)
		}
		return m, m.nextEvent()

	case doneMsg:
		m.report = msg.report
		m.runErr = msg.err
		m.phase = phaseReport
		return m, nil
	}

	return m, nil
}

func (m *installer) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		return m, tea.Quit
	case "q":
		if m.phase != phaseMenu {
			return m, tea.Quit
		}
	}

	switch m.phase {
	case phaseWelcome:
		if msg.String() == "enter" && m.relFetched {
			if m.relErr != nil {
				return m, tea.Quit
			}
			m.phase = phaseConfirm
		}

	case phaseConfirm:
		// Only an explicit yes proceeds, matching the text-mode prompt.
		switch msg.String() {
		case "y", "Y":
			m.phase = phaseSystemCheck
			return m, m.runSystemCheck()
		case "n", "N", "esc":
			return m, tea.Quit
		}

	case phaseSystemCheck:
		if msg.String() == "enter" && m.checkDone {
			m.phase = phaseMenu
		}

	case phaseMenu:
		groups := m.app.catalog.Groups
		switch msg.String() {
		case "up", "k":
			if m.cursor > 0 {
				m.cursor--
			}
		case "down", "j":
			if m.cursor < len(groups)-1 {
				m.cursor++
			}
		case " ":
			id := groups[m.cursor].ID
			m.selected[id] = !m.selected[id]
		case "enter":
			if len(m.selection()) > 0 {
				m.phase = phaseDownload
				return m, m.downloadBundle()
			}
		case "q":
			return m, tea.Quit
		}

	case phaseReport:
		if msg.String() == "enter" {
			return m, tea.Quit
		}
	}

	return m, nil
}

// =============================================================================
// VIEW
// =============================================================================

func (m *installer) View() string {
	switch m.phase {
	case phaseWelcome:
		return m.viewWelcome()
	case phaseConfirm:
		return m.viewConfirm()
	case phaseSystemCheck:
		return m.viewSystemCheck()
	case phaseMenu:
		return m.viewMenu()
	case phaseDownload:
		return m.viewDownload()
	case phaseRunning:
		return m.viewRunning()
	case phaseReport:
		return m.viewReport()
	}
	return ""
}

func (m *installer) viewWelcome() string {
	var s strings.Builder

	s.WriteString(lipgloss.NewStyle().Foreground(brandPrimary).Bold(true).Render(logo))
	s.WriteString("\n")
	s.WriteString(subtitleStyle.Render("    " + tagline))
	s.WriteString("\n\n")
	s.WriteString(dimStyle.Render(fmt.Sprintf("    Version %s", version)))
	s.WriteString("\n\n")

	switch {
	case !m.relFetched:
		s.WriteString(fmt.Sprintf("  %s Looking up the latest Nyarch release...\n", m.spinner.View()))
	case m.relErr != nil:
		s.WriteString(errorStyle.Render(fmt.Sprintf("  Could not reach GitHub: %v", m.relErr)))
		s.WriteString("\n\n")
		s.WriteString(dimStyle.Render("  Check your connection and try again."))
		s.WriteString("\n\n")
		s.WriteString(highlightStyle.Render("  Press ENTER to exit"))
	default:
		s.WriteString(successStyle.Render(fmt.Sprintf("  Latest release: %s", m.rel.Tag)))
		s.WriteString("\n")
		if m.notes != "" {
			s.WriteString(m.notes)
			s.WriteString("\n")
		}
		s.WriteString("\n")
		s.WriteString(highlightStyle.Render("  Press ENTER to begin"))
		s.WriteString(dimStyle.Render("  |  Q to quit"))
	}

	return s.String()
}

func (m *installer) viewConfirm() string {
	var s strings.Builder

	s.WriteString(titleStyle.Render("  Before We Start"))
	s.WriteString("\n\n")
	s.WriteString("  The theming relies on a few tools being installed already\n")
	s.WriteString("  (pipx, flatpak, kitty, fastfetch - the full list is on the\n")
	s.WriteString("  Nyarch GitHub page).\n\n")
	s.WriteString("  Have you installed all the dependencies?\n\n")
	s.WriteString(highlightStyle.Render("  Press Y to continue"))
	s.WriteString(dimStyle.Render("  |  N to quit"))
	return s.String()
}

func (m *installer) viewSystemCheck() string {
	var s strings.Builder

	s.WriteString(titleStyle.Render("  System Check"))
	s.WriteString("\n\n")

	if !m.checkDone {
		s.WriteString(fmt.Sprintf("  %s Probing the system...\n", m.spinner.View()))
		return s.String()
	}

	s.WriteString(fmt.Sprintf("  %s Desktop: %s\n", successStyle.Render("[OK]"), m.check.Desktop))
	if m.check.OS.PrettyName != "" {
		s.WriteString(fmt.Sprintf("  %s Distribution: %s\n", successStyle.Render("[OK]"), m.check.OS.PrettyName))
	}
	s.WriteString(fmt.Sprintf("  %s Theming for: %s (%s)\n", successStyle.Render("[OK]"), m.check.User.Username, m.check.User.Home))
	if m.check.FreeBytes > 0 {
		s.WriteString(fmt.Sprintf("  %s Free space: %d MiB\n", successStyle.Render("[OK]"), m.check.FreeBytes>>20))
	}

	for _, w := range m.check.Warnings {
		s.WriteString(warningStyle.Render(fmt.Sprintf("  [!!] %s", w)))
		s.WriteString("\n")
	}

	s.WriteString("\n")
	s.WriteString(highlightStyle.Render("  Press ENTER to choose what to install"))
	return s.String()
}

func (m *installer) viewMenu() string {
	var s strings.Builder

	s.WriteString(titleStyle.Render("  Choose Your Customizations"))
	s.WriteString("\n\n")

	for idx, g := range m.app.catalog.Groups {
		cursor := "  "
		style := unselectedStyle
		if idx == m.cursor {
			cursor = "> "
			style = selectedStyle
		}

		mark := "[ ]"
		if m.selected[g.ID] {
			mark = "[x]"
		}

		label := g.Title
		if g.System {
			label += dimStyle.Render("  (needs sudo)")
		}
		s.WriteString(style.Render(fmt.Sprintf("  %s%s %s", cursor, mark, label)))
		s.WriteString("\n")
	}

	s.WriteString("\n")
	if m.app.needsRoot(m.selection()) && !m.app.user.Sudo {
		s.WriteString(warningStyle.Render("  Some selected groups install system-wide tools; rerun with sudo for those."))
		s.WriteString("\n")
	}
	s.WriteString(dimStyle.Render("  Space to toggle, Up/Down to move, ENTER to install, Q to quit"))
	return s.String()
}

func (m *installer) viewDownload() string {
	var s strings.Builder

	s.WriteString(titleStyle.Render("  Downloading Theming Bundle"))
	s.WriteString("\n\n")
	s.WriteString(fmt.Sprintf("  %s Release %s\n\n", m.spinner.View(), m.rel.Tag))
	s.WriteString("  " + m.progress.View())
	s.WriteString("\n\n")
	if m.total > 0 {
		s.WriteString(dimStyle.Render(fmt.Sprintf("  %d / %d MiB", m.downloaded>>20, m.total>>20)))
	} else if m.downloaded > 0 {
		s.WriteString(dimStyle.Render(fmt.Sprintf("  %d MiB", m.downloaded>>20)))
	}
	return s.String()
}

func (m *installer) viewRunning() string {
	var s strings.Builder

	s.WriteString(titleStyle.Render("  Applying Customizations"))
	s.WriteString("\n\n")

	for _, res := range m.results {
		var icon string
		switch res.Status {
		case pipeline.StatusSuccess:
			icon = successStyle.Render("[OK]")
		case pipeline.StatusSkipped:
			icon = dimStyle.Render("[--]")
		case pipeline.StatusFailed:
			icon = errorStyle.Render("[!!]")
		}
		s.WriteString(fmt.Sprintf("  %s %s", icon, res.Title))
		if res.Detail != "" {
			s.WriteString(dimStyle.Render("  " + res.Detail))
		}
		s.WriteString("\n")
	}

	if m.current != "" {
		s.WriteString(fmt.Sprintf("  %s %s\n", m.spinner.View(), m.current))
	}
	return s.String()
}

func (m *installer) viewReport() string {
	var s strings.Builder

	if m.runErr != nil {
		s.WriteString(errorStyle.Render("  Installation failed"))
		s.WriteString("\n\n")
		s.WriteString(fmt.Sprintf("  %v\n\n", m.runErr))
		s.WriteString(highlightStyle.Render("  Press ENTER to exit"))
		return s.String()
	}

	if m.report.Failed() {
		s.WriteString(warningStyle.Render("  Finished with failures"))
	} else {
		s.WriteString(successStyle.Render("  Your desktop is now kawaii!"))
	}
	s.WriteString("\n\n")

	s.WriteString(boxStyle.Render(m.report.Render()))
	s.WriteString("\n\n")
	s.WriteString(dimStyle.Render("  Log out and back in for all theming to take effect."))
	s.WriteString("\n")
	s.WriteString(highlightStyle.Render("  Press ENTER to exit"))
	return s.String()
}
