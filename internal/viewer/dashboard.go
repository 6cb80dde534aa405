package viewer

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
)

// dashboardState is the event-derived model behind the TUI, protected by a
// mutex because stream handling and key handling run on different
// goroutines.
type dashboardState struct {
	mu       sync.Mutex
	queued   int64
	active   int64
	etaMS    int64
	states   map[string]string // identifier → last compile state / dirty marker
	lastScan string
}

// genericEvent carries the fields the dashboard cares about from any
// lifecycle event.
type genericEvent struct {
	Type        string `json:"type"`
	ID          string `json:"id"`
	Dirty       *bool  `json:"dirty"`
	State       string `json:"state"`
	Error       string `json:"error"`
	Queued      int64  `json:"queued"`
	Concurrency int64  `json:"concurrency"`
	EtaMS       int64  `json:"eta_ms"`
	Scanned     int    `json:"scanned"`
	Imported    int    `json:"imported"`
	Removed     int    `json:"removed"`
}

func (st *dashboardState) apply(data []byte) {
	var ev genericEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		return
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	switch ev.Type {
	case "CompilerStatus":
		st.queued = ev.Queued
		st.active = ev.Concurrency
		st.etaMS = ev.EtaMS
	case "AssetCompilationStatus":
		if ev.State == "Error" {
			st.states[ev.ID] = "Error: " + ev.Error
		} else {
			st.states[ev.ID] = ev.State
		}
	case "AssetDirtyStatus":
		if _, busy := st.states[ev.ID]; !busy && ev.Dirty != nil {
			if *ev.Dirty {
				st.states[ev.ID] = "Dirty"
			} else {
				st.states[ev.ID] = "Clean"
			}
		}
	case "AssetRemoved":
		delete(st.states, ev.ID)
	case "ScanResults":
		st.lastScan = fmt.Sprintf("scanned %d, imported %d, removed %d",
			ev.Scanned, ev.Imported, ev.Removed)
	}
}

func (st *dashboardState) render(status, table *tview.TextView) {
	st.mu.Lock()
	defer st.mu.Unlock()

	eta := time.Duration(st.etaMS) * time.Millisecond
	status.SetText(fmt.Sprintf(" queued [yellow]%d[-]  running [green]%d[-]  eta [cyan]%s[-]  %s",
		st.queued, st.active, eta.Round(time.Second), st.lastScan))

	ids := make([]string, 0, len(st.states))
	for id := range st.states {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	table.Clear()
	for _, id := range ids {
		state := st.states[id]
		color := "white"
		switch {
		case state == "Compiling":
			color = "green"
		case state == "Queued" || state == "Dirty":
			color = "yellow"
		case state == "Clean" || state == "Compiled":
			color = "gray"
		default:
			color = "red"
		}
		fmt.Fprintf(table, "%s  [%s]%s[-]\n", id, color, state)
	}
}

// RunDashboard renders a live compile dashboard for the server behind
// client. Blocks until the user quits or ctx is done.
func RunDashboard(ctx context.Context, client *Client) error {
	// Suppress logs while the TUI owns the terminal.
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{
		Level: slog.Level(math.MaxInt),
	})))
	defer slog.SetDefault(prev)

	app := tview.NewApplication()
	st := &dashboardState{states: make(map[string]string)}

	status := tview.NewTextView().SetDynamicColors(true)
	status.SetBorder(true).SetTitle(" Compiler ")

	table := tview.NewTextView().SetDynamicColors(true)
	table.SetBorder(true).SetTitle(" Assets ")
	table.SetScrollable(true)

	footer := tview.NewTextView().
		SetTextAlign(tview.AlignLeft).
		SetText(" r refresh library  q quit")

	layout := tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(status, 3, 0, false).
		AddItem(table, 0, 1, true).
		AddItem(footer, 1, 0, false)
	app.SetRoot(layout, true)

	streamCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	app.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		switch {
		case event.Rune() == 'q', event.Key() == tcell.KeyEscape, event.Key() == tcell.KeyCtrlC:
			cancel()
			app.Stop()
			return nil
		case event.Rune() == 'r':
			go func() {
				if _, err := client.Refresh(streamCtx); err != nil {
					st.mu.Lock()
					st.lastScan = "refresh failed: " + err.Error()
					st.mu.Unlock()
				}
			}()
			return nil
		}
		return event
	})

	// Seed the table with the current dirty set so the dashboard is useful
	// before the first event arrives.
	if ids, err := client.DirtyIDs(streamCtx); err == nil {
		st.mu.Lock()
		for _, id := range ids {
			st.states[id.String()] = "Dirty"
		}
		st.mu.Unlock()
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- client.StreamEvents(streamCtx, func(data []byte) {
			st.apply(data)
			app.QueueUpdateDraw(func() { st.render(status, table) })
		})
		app.QueueUpdateDraw(func() {})
		app.Stop()
	}()

	st.render(status, table)
	if err := app.Run(); err != nil {
		return err
	}

	select {
	case err := <-errCh:
		if err != nil && err != context.Canceled {
			return err
		}
	default:
	}
	return nil
}
