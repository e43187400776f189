// Package chat is a terminal simulator that plays a customer against the
// assistant pipeline without any messaging platform.
package chat

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// RuntimeInfo is shown in the simulator header.
type RuntimeInfo struct {
	Brand          string
	ConversationID string
	Provider       string
	Store          string
	QuietPeriod    time.Duration
}

// RunInteractive runs the full screen simulator until the user quits.
func RunInteractive(ctx context.Context, session *Session, info RuntimeInfo) error {
	model := newModel(ctx, session, info)
	program := tea.NewProgram(model, tea.WithAltScreen(), tea.WithMouseCellMotion())
	_, err := program.Run()
	if err != nil {
		return err
	}

	fmt.Println(renderGoodbyeBanner(info.Brand))
	return nil
}

// RunPlain reads customer lines from in and prints replies to out as they
// arrive. After in is exhausted it waits until no reply has arrived for
// drain, so the last turn can close.
func RunPlain(ctx context.Context, session *Session, in io.Reader, out io.Writer, drain time.Duration) error {
	if drain <= 0 {
		drain = time.Second
	}

	var (
		mu       sync.Mutex
		lastSeen = time.Now()
		stop     = make(chan struct{})
		done     = make(chan struct{})
	)
	defer func() {
		close(stop)
		<-done
	}()

	go func() {
		defer close(done)
		for {
			select {
			case <-stop:
				return
			case text, ok := <-session.Replies():
				if !ok {
					return
				}
				mu.Lock()
				lastSeen = time.Now()
				fmt.Fprintf(out, "bot> %s\n", text)
				mu.Unlock()
			}
		}
	}()

	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if isExitCommand(line) {
			return nil
		}
		mu.Lock()
		fmt.Fprintf(out, "you> %s\n", line)
		lastSeen = time.Now()
		mu.Unlock()
		session.Send(ctx, line)
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read input: %w", err)
	}

	ticker := time.NewTicker(drain / 4)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-done:
			return nil
		case <-ticker.C:
			mu.Lock()
			idle := time.Since(lastSeen)
			mu.Unlock()
			if idle >= drain {
				return nil
			}
		}
	}
}

func renderGoodbyeBanner(brand string) string {
	style := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("230")).
		Background(lipgloss.Color("24")).
		Padding(1, 2)

	if strings.TrimSpace(brand) == "" {
		brand = "tourdesk"
	}
	return style.Render("🧳 Cảm ơn đã dùng " + brand)
}
