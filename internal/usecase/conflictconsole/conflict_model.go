package conflictconsole

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"ohsync/internal/bootstrap/logging"
	domainsync "ohsync/internal/domain/sync"
	"ohsync/internal/ports"
	"ohsync/internal/usecase/conflict"
)

const maxActionLines = 8

type Options struct {
	TenantID        string
	ResolverID      string
	RefreshInterval time.Duration
}

type conflictModel struct {
	ctx             context.Context
	service         *conflict.Service
	tenantID        string
	resolverID      string
	refreshInterval time.Duration

	conflicts     []ports.SyncConflict
	selectedIndex int
	status        string
	actionLog     []string
}

type conflictsLoadedMsg struct {
	items []ports.SyncConflict
	err   error
}

type tickMsg struct{}

type resolveDoneMsg struct {
	conflictID string
	resolution domainsync.Resolution
	err        error
}

func NewConflictModel(ctx context.Context, service *conflict.Service, options Options) tea.Model {
	resolverID := strings.TrimSpace(options.ResolverID)
	if resolverID == "" {
		resolverID = "console"
	}
	interval := options.RefreshInterval
	if interval <= 0 {
		interval = 5 * time.Second
	}

	return &conflictModel{
		ctx:             ctx,
		service:         service,
		tenantID:        strings.TrimSpace(options.TenantID),
		resolverID:      resolverID,
		refreshInterval: interval,
		status:          "loading",
	}
}

func (m *conflictModel) Init() tea.Cmd {
	return tea.Batch(m.loadConflictsCmd(), m.tickCmd())
}

func (m *conflictModel) Update(message tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := message.(type) {
	case tickMsg:
		return m, tea.Batch(m.loadConflictsCmd(), m.tickCmd())
	case conflictsLoadedMsg:
		if msg.err != nil {
			m.status = "refresh failed: " + msg.err.Error()
			return m, nil
		}
		m.conflicts = msg.items
		if len(m.conflicts) == 0 {
			m.selectedIndex = 0
			m.status = "no pending conflicts"
			return m, nil
		}
		if m.selectedIndex >= len(m.conflicts) {
			m.selectedIndex = len(m.conflicts) - 1
		}
		if m.selectedIndex < 0 {
			m.selectedIndex = 0
		}
		m.status = fmt.Sprintf("refreshed, %d pending", len(m.conflicts))
		return m, nil
	case resolveDoneMsg:
		if msg.err != nil {
			outcome := msg.err.Error()
			if errors.Is(msg.err, ports.ErrConflictAlreadyResolved) {
				outcome = "already resolved by someone else"
			}
			m.status = fmt.Sprintf("resolve %s failed: %s", msg.resolution, outcome)
			m.appendActionLog(msg.conflictID, msg.resolution, msg.err)
		} else {
			m.status = fmt.Sprintf("resolved %s as %s", msg.conflictID, msg.resolution)
			m.appendActionLog(msg.conflictID, msg.resolution, nil)
		}
		return m, m.loadConflictsCmd()
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "g":
			m.status = "refreshing"
			return m, m.loadConflictsCmd()
		case "up", "k":
			if m.selectedIndex > 0 {
				m.selectedIndex--
			}
			return m, nil
		case "down", "j":
			if m.selectedIndex < len(m.conflicts)-1 {
				m.selectedIndex++
			}
			return m, nil
		case "l":
			return m, m.resolveCmd(domainsync.ConflictResolvedLocal)
		case "r":
			return m, m.resolveCmd(domainsync.ConflictResolvedRemote)
		case "i":
			return m, m.resolveCmd(domainsync.ConflictIgnored)
		}
	}
	return m, nil
}

func (m *conflictModel) View() string {
	titleStyle := lipgloss.NewStyle().Bold(true)
	sectionStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("63"))
	dimStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	selectedStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("229")).Background(lipgloss.Color("62"))

	var builder strings.Builder
	builder.WriteString(titleStyle.Render("Sync Conflicts"))
	builder.WriteString("\n")
	builder.WriteString(dimStyle.Render(fmt.Sprintf(
		"tenant=%s resolver=%s refresh=%s",
		m.tenantID,
		m.resolverID,
		m.refreshInterval,
	)))
	builder.WriteString("\n\n")

	builder.WriteString(sectionStyle.Render("Pending"))
	builder.WriteString("\n")
	if len(m.conflicts) == 0 {
		builder.WriteString(dimStyle.Render("- none"))
		builder.WriteString("\n\n")
	} else {
		for index, item := range m.conflicts {
			line := fmt.Sprintf("%s %s.%s record=%s", item.ID, item.OhTable, item.OhField, item.OhRecordID)
			if index == m.selectedIndex {
				builder.WriteString(selectedStyle.Render("> " + line))
			} else {
				builder.WriteString("  " + line)
			}
			builder.WriteString("\n")
		}
		builder.WriteString("\n")
	}

	builder.WriteString(sectionStyle.Render("Detail"))
	builder.WriteString("\n")
	if selected, ok := m.selectedConflict(); ok {
		builder.WriteString(fmt.Sprintf("Conflict: %s\n", selected.ID))
		builder.WriteString(fmt.Sprintf("Cell: %s.%s (record %s)\n", selected.OhTable, selected.OhField, selected.OhRecordID))
		builder.WriteString(fmt.Sprintf("Base:   %s\n", renderValue(selected.BaseValue)))
		builder.WriteString(fmt.Sprintf("Local:  %s\n", renderValue(selected.LocalValue)))
		builder.WriteString(fmt.Sprintf("Remote: %s\n", renderValue(selected.RemoteValue)))
		builder.WriteString(fmt.Sprintf("Detected: %s\n", selected.CreatedAt))
		builder.WriteString("\n")
	} else {
		builder.WriteString(dimStyle.Render("- no selection"))
		builder.WriteString("\n\n")
	}

	builder.WriteString(sectionStyle.Render("Status"))
	builder.WriteString("\n")
	builder.WriteString("- " + m.status)
	builder.WriteString("\n\n")

	builder.WriteString(sectionStyle.Render("Action Log"))
	builder.WriteString("\n")
	if len(m.actionLog) == 0 {
		builder.WriteString(dimStyle.Render("- no actions"))
		builder.WriteString("\n\n")
	} else {
		for _, line := range m.actionLog {
			builder.WriteString("- " + line)
			builder.WriteString("\n")
		}
		builder.WriteString("\n")
	}

	builder.WriteString(dimStyle.Render("Keys: ↑/k ↓/j move  g refresh  l keep local  r keep remote  i ignore  q quit"))
	return builder.String()
}

func (m *conflictModel) tickCmd() tea.Cmd {
	return tea.Tick(m.refreshInterval, func(time.Time) tea.Msg {
		return tickMsg{}
	})
}

func (m *conflictModel) loadConflictsCmd() tea.Cmd {
	return func() tea.Msg {
		items, err := m.service.ListPending(m.ctx, m.tenantID)
		if err != nil {
			return conflictsLoadedMsg{err: err}
		}
		return conflictsLoadedMsg{items: items}
	}
}

func (m *conflictModel) resolveCmd(resolution domainsync.Resolution) tea.Cmd {
	selected, ok := m.selectedConflict()
	if !ok {
		m.status = "nothing selected"
		return nil
	}
	conflictID := selected.ID
	m.status = fmt.Sprintf("resolving %s as %s...", conflictID, resolution)
	return func() tea.Msg {
		err := m.service.Resolve(m.ctx, conflictID, m.tenantID, resolution, m.resolverID)
		return resolveDoneMsg{conflictID: conflictID, resolution: resolution, err: err}
	}
}

func (m *conflictModel) selectedConflict() (ports.SyncConflict, bool) {
	if len(m.conflicts) == 0 || m.selectedIndex < 0 || m.selectedIndex >= len(m.conflicts) {
		return ports.SyncConflict{}, false
	}
	return m.conflicts[m.selectedIndex], true
}

func (m *conflictModel) appendActionLog(conflictID string, resolution domainsync.Resolution, opErr error) {
	outcome := string(resolution)
	if opErr != nil {
		outcome = "error: " + opErr.Error()
	}

	timestamp := time.Now().UTC().Format(time.RFC3339)
	line := fmt.Sprintf("%s conflict=%s result=%s", timestamp, conflictID, outcome)
	m.actionLog = append([]string{line}, m.actionLog...)
	if len(m.actionLog) > maxActionLines {
		m.actionLog = m.actionLog[:maxActionLines]
	}

	logging.Info(m.ctx, "conflict console action",
		slog.String("conflict_id", conflictID),
		slog.String("resolution", string(resolution)),
		slog.String("result", outcome),
	)
}

func renderValue(value string) string {
	if strings.TrimSpace(value) == "" {
		return "(empty)"
	}
	return value
}
