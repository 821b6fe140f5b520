// Package cliui provides terminal UI helpers (step spinners, prompts, stream
// tables, markdown rendering) for relay CLI commands.
package cliui

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"charm.land/lipgloss/v2"
	"github.com/charmbracelet/glamour"

	"github.com/papercomputeco/streamrelay/pkg/utils"
)

var (
	SuccessMark  = lipgloss.NewStyle().Foreground(lipgloss.Color("82")).Render("✓")
	FailMark     = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Render("✗")
	StepStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	spinnerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("82"))

	UserPrompt      = lipgloss.NewStyle().Foreground(lipgloss.Color("82")).Bold(true).Render("you> ")
	AssistantPrompt = lipgloss.NewStyle().Foreground(lipgloss.Color("245")).Render("assistant> ")
	headerStyle     = lipgloss.NewStyle().Bold(true)

	KeyStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("252")).Bold(true)
	ValueStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("215"))
	DimStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
)

var spinnerFrames = []string{"⣾", "⣽", "⣻", "⢿", "⡿", "⣟", "⣯", "⣷"}

// Step runs fn while animating a spinner next to msg, then overwrites the
// line with a ✓ or ✗ mark and the elapsed time.
func Step(w io.Writer, msg string, fn func() error) error {
	done := make(chan struct{})

	var wg sync.WaitGroup
	wg.Go(func() {
		ticker := time.NewTicker(80 * time.Millisecond)
		defer ticker.Stop()

		for frame := 0; ; frame++ {
			fmt.Fprintf(w, "\r  %s %s", spinnerStyle.Render(spinnerFrames[frame%len(spinnerFrames)]), msg)
			select {
			case <-done:
				return
			case <-ticker.C:
			}
		}
	})

	start := time.Now()
	err := fn()
	elapsed := time.Since(start)

	close(done)
	wg.Wait()

	fmt.Fprintf(w, "\r  %s %s %s\n", Mark(err), msg, StepStyle.Render("("+FormatDuration(elapsed)+")"))
	return err
}

// Mark returns a ✓ for nil errors or ✗ for non-nil errors.
func Mark(err error) string {
	if err != nil {
		return FailMark
	}
	return SuccessMark
}

// FormatDuration formats a duration for display: "12ms", "3.2s", "4m05s" or
// "2h13m".
func FormatDuration(d time.Duration) string {
	switch {
	case d < time.Second:
		return fmt.Sprintf("%dms", d.Milliseconds())
	case d < time.Minute:
		return fmt.Sprintf("%.1fs", d.Seconds())
	case d < time.Hour:
		return fmt.Sprintf("%dm%02ds", int(d.Minutes()), int(d.Seconds())%60)
	default:
		return fmt.Sprintf("%dh%02dm", int(d.Hours()), int(d.Minutes())%60)
	}
}

// StreamRow is one line of an active stream listing.
type StreamRow struct {
	ID        string
	StartedAt time.Time
}

// RenderStreams writes rows as an aligned two column table, ages measured
// against now.
func RenderStreams(w io.Writer, rows []StreamRow, now time.Time) {
	if len(rows) == 0 {
		fmt.Fprintln(w, StepStyle.Render("no active streams"))
		return
	}

	ids := make([]string, len(rows))
	width := len("STREAM")
	for i, r := range rows {
		ids[i] = utils.Truncate(r.ID, maxIDWidth)
		width = max(width, utf8.RuneCountInString(ids[i]))
	}

	fmt.Fprintf(w, "%s  %s\n", headerStyle.Render(pad("STREAM", width)), headerStyle.Render("AGE"))
	for i, r := range rows {
		fmt.Fprintf(w, "%s  %s\n", pad(ids[i], width), FormatDuration(now.Sub(r.StartedAt)))
	}
}

// maxIDWidth caps the STREAM column; longer ids are cut.
const maxIDWidth = 40

func pad(s string, width int) string {
	return s + strings.Repeat(" ", width-utf8.RuneCountInString(s))
}

// RenderMarkdown renders markdown content for terminal display using glamour.
// On failure the input is returned unchanged alongside the error.
func RenderMarkdown(content string) (string, error) {
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(80),
	)
	if err != nil {
		return content, err
	}

	rendered, err := r.Render(content)
	if err != nil {
		return content, err
	}

	return rendered, nil
}
