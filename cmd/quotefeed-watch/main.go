package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"quotefeed/pkg/quotefeed"
)

// Styles.
var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("15")).Background(lipgloss.Color("4"))
	footerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("15")).Background(lipgloss.Color("8"))
	symbolStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	priceStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("15"))
	gainStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	lossStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	synthStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
)

const refreshInterval = 2 * time.Second

// Messages.
type tickMsg time.Time

type quotesMsg struct {
	quotes []quotefeed.Quote
	err    error
}

func tickCmd() tea.Cmd {
	return tea.Tick(refreshInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

type model struct {
	client  *quotefeed.Client
	symbols []string

	quotes   map[string]quotefeed.Quote
	fetchTS  time.Time
	fetchErr error

	viewport      viewport.Model
	ready         bool
	width, height int
	logger        *slog.Logger
}

func initialModel(client *quotefeed.Client, symbols []string, logger *slog.Logger) model {
	return model{
		client:  client,
		symbols: symbols,
		quotes:  make(map[string]quotefeed.Quote),
		logger:  logger,
	}
}

func (m model) Init() tea.Cmd {
	return tea.Batch(m.fetchCmd(), tickCmd())
}

func (m model) fetchCmd() tea.Cmd {
	client := m.client
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), refreshInterval)
		defer cancel()
		quotes, err := client.GetQuotes(ctx)
		return quotesMsg{quotes: quotes, err: err}
	}
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		vpHeight := m.height - 2
		if vpHeight < 1 {
			vpHeight = 1
		}
		if !m.ready {
			m.viewport = viewport.New(m.width, vpHeight)
			m.ready = true
			m.viewport.SetContent(m.renderContent())
		} else {
			m.viewport.Width = m.width
			m.viewport.Height = vpHeight
		}
		return m, nil

	case tickMsg:
		return m, tea.Batch(m.fetchCmd(), tickCmd())

	case quotesMsg:
		m.fetchErr = msg.err
		if msg.err != nil {
			m.logger.Warn("fetching quotes", "error", msg.err)
		} else {
			m.fetchTS = time.Now()
			for _, q := range msg.quotes {
				m.quotes[q.Symbol] = q
			}
		}
		if m.ready {
			m.viewport.SetContent(m.renderContent())
		}
		return m, nil
	}

	if m.ready {
		m.viewport, cmd = m.viewport.Update(msg)
	}
	return m, cmd
}

func (m model) View() string {
	if !m.ready {
		return "Loading..."
	}

	updated := "--:--:--"
	if !m.fetchTS.IsZero() {
		updated = m.fetchTS.Format("15:04:05")
	}
	headerText := fmt.Sprintf(" quotefeed  %d symbols    updated: %s ", len(m.symbols), updated)
	if m.fetchErr != nil {
		headerText = fmt.Sprintf(" quotefeed  %d symbols    fetch error (retrying) ", len(m.symbols))
	}
	headerBar := headerStyle.Render(padOrTrunc(headerText, m.width))

	footerBar := footerStyle.Render(padOrTrunc(" q quit  pgup/dn scroll", m.width))

	return headerBar + "\n" + m.viewport.View() + "\n" + footerBar
}

func (m model) renderContent() string {
	var b strings.Builder

	colLine := fmt.Sprintf("  %-8s %10s %10s %9s %12s %-9s %9s",
		"Symbol", "Price", "Change", "Change%", "Volume", "Origin", "Time")
	b.WriteString(dimStyle.Render(colLine))
	b.WriteString("\n")

	for _, sym := range m.symbols {
		q, ok := m.quotes[sym]
		if !ok {
			b.WriteString(symbolStyle.Render(fmt.Sprintf("  %-8s", sym)))
			b.WriteString(dimStyle.Render(fmt.Sprintf(" %10s %10s %9s %12s %-9s %9s",
				"—", "—", "—", "—", "—", "—")))
			b.WriteString("\n")
			continue
		}

		changeStyle := gainStyle
		if q.Change < 0 {
			changeStyle = lossStyle
		}
		originStyle := dimStyle
		if q.Origin == "synthetic" {
			originStyle = synthStyle
		}

		b.WriteString(symbolStyle.Render(fmt.Sprintf("  %-8s", q.Symbol)))
		b.WriteString(priceStyle.Render(fmt.Sprintf(" %10.2f", q.Price)))
		b.WriteString(changeStyle.Render(fmt.Sprintf(" %+10.2f %+8.2f%%", q.Change, q.ChangePct)))
		b.WriteString(dimStyle.Render(fmt.Sprintf(" %12d", q.Volume)))
		b.WriteString(originStyle.Render(fmt.Sprintf(" %-9s", q.Origin)))
		b.WriteString(dimStyle.Render(fmt.Sprintf(" %9s", q.Time().Format("15:04:05"))))
		b.WriteString("\n")
	}
	return b.String()
}

// padOrTrunc pads s with spaces to width, or truncates if longer.
func padOrTrunc(s string, width int) string {
	n := len(s)
	if n >= width {
		return s[:width]
	}
	return s + strings.Repeat(" ", width-n)
}

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, "usage: quotefeed-watch SYMBOL [SYMBOL...]")
		os.Exit(1)
	}
	symbols := make([]string, 0, len(os.Args)-1)
	for _, s := range os.Args[1:] {
		symbols = append(symbols, strings.ToUpper(s))
	}

	addr := "http://localhost:8080"
	if a := os.Getenv("QUOTEFEED_ADDR"); a != "" {
		addr = a
	}

	logPath := fmt.Sprintf("/tmp/quotefeed-watch-%s.log", time.Now().Format("2006-01-02"))
	logFile, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		fmt.Fprintf(os.Stderr, "opening log file: %v\n", err)
		os.Exit(1)
	}
	defer logFile.Close()
	logger := slog.New(slog.NewTextHandler(logFile, &slog.HandlerOptions{Level: slog.LevelInfo}))

	client := quotefeed.NewClient(addr)

	// Register watches so the server keeps the symbols polling, and release
	// them on exit.
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	for _, sym := range symbols {
		if err := client.Watch(ctx, sym); err != nil {
			cancel()
			fmt.Fprintf(os.Stderr, "watching %s: %v\n", sym, err)
			os.Exit(1)
		}
		logger.Info("watch registered", "symbol", sym)
	}
	cancel()
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		for _, sym := range symbols {
			if err := client.Unwatch(ctx, sym); err != nil {
				logger.Warn("releasing watch", "symbol", sym, "error", err)
			}
		}
	}()

	p := tea.NewProgram(
		initialModel(client, symbols, logger),
		tea.WithAltScreen(),
		tea.WithMouseCellMotion(),
	)
	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
