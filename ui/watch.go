// Package ui implements the live watch view shown while a comparison session
// runs: session state and antenna on top, recent decodes and live reception
// reports below. Everything rendered here is derived from the session log and
// the live feeds; closing the view loses nothing.
package ui

import (
	"fmt"
	"log"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"antcmp/band"
	"antcmp/decode"
	"antcmp/pskreporter"
	"antcmp/session"
)

const (
	accentTag   = "[#ff69b4]"
	accentReset = "[-]"

	maxDecodeRows = 200
	maxSpotRows   = 200
)

var (
	uiBorderColor = tcell.ColorGray
	uiTitleColor  = tcell.ColorHotPink
)

// Watch is the live session view.
type Watch struct {
	app *tview.Application

	statusView    *tview.TextView
	intervalsView *tview.TextView
	decodesView   *tview.TextView
	spotsView     *tview.TextView

	mu      sync.Mutex
	decodes []string
	spots   []string

	done chan struct{}
}

// NewWatch constructs the watch view.
func NewWatch() *Watch {
	w := &Watch{
		app:  tview.NewApplication(),
		done: make(chan struct{}),
	}
	w.statusView = newBoxedTextView("Session")
	w.intervalsView = newBoxedTextView("Intervals")
	w.intervalsView.SetScrollable(true)
	w.decodesView = newBoxedTextView("Decodes")
	w.decodesView.SetScrollable(true)
	w.spotsView = newBoxedTextView("Heard By (PSKReporter live)")
	w.spotsView.SetScrollable(true)

	columns := tview.NewFlex().
		AddItem(w.decodesView, 0, 1, false).
		AddItem(w.spotsView, 0, 1, false)
	root := tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(w.statusView, 7, 0, false).
		AddItem(w.intervalsView, 9, 0, false).
		AddItem(columns, 0, 1, false).
		AddItem(buildFooter(), 1, 0, false)

	w.app.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		if event.Key() == tcell.KeyEsc || event.Key() == tcell.KeyCtrlC ||
			event.Rune() == 'q' || event.Rune() == 'Q' {
			w.Stop()
			return nil
		}
		return event
	})
	w.app.SetRoot(root, true)
	return w
}

// Run blocks until the view is stopped.
func (w *Watch) Run() error {
	defer close(w.done)
	if err := w.app.Run(); err != nil {
		log.Printf("ui: tview error: %v", err)
		return err
	}
	return nil
}

// Done is closed when the view exits.
func (w *Watch) Done() <-chan struct{} {
	return w.done
}

// Stop terminates the view.
func (w *Watch) Stop() {
	w.app.Stop()
}

// SetStatus refreshes the session panel.
func (w *Watch) SetStatus(st session.Status, solarSummary string, now time.Time) {
	text := statusText(st, solarSummary, now)
	w.app.QueueUpdateDraw(func() {
		w.statusView.SetText(text)
	})
}

// SetIntervals refreshes the intervals panel with per-band decode counts.
func (w *Watch) SetIntervals(tl session.Timeline, counts map[string]map[string]int) {
	text := intervalsText(tl, counts)
	w.app.QueueUpdateDraw(func() {
		w.intervalsView.SetText(text)
	})
}

// AddDecode appends a decode attributed to the active antenna.
func (w *Watch) AddDecode(antennaLabel string, rec decode.Record) {
	line := formatDecodeLine(antennaLabel, rec)
	w.mu.Lock()
	w.decodes = appendBounded(w.decodes, line, maxDecodeRows)
	text := strings.Join(w.decodes, "\n")
	w.mu.Unlock()
	w.app.QueueUpdateDraw(func() {
		w.decodesView.SetText(text)
		w.decodesView.ScrollToEnd()
	})
}

// AddSpot appends a live reception report of our own transmissions.
func (w *Watch) AddSpot(spot pskreporter.Spot) {
	line := formatSpotLine(spot)
	w.mu.Lock()
	w.spots = appendBounded(w.spots, line, maxSpotRows)
	text := strings.Join(w.spots, "\n")
	w.mu.Unlock()
	w.app.QueueUpdateDraw(func() {
		w.spotsView.SetText(text)
		w.spotsView.ScrollToEnd()
	})
}

func appendBounded(lines []string, line string, max int) []string {
	lines = append(lines, line)
	if len(lines) > max {
		lines = lines[len(lines)-max:]
	}
	return lines
}

func statusText(st session.Status, solarSummary string, now time.Time) string {
	if !st.Active {
		return "No active session. Start one with: antcmp start"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Session: %s  started %s  elapsed %s\n",
		st.Name, st.StartTime.Format("15:04 UTC"), st.Elapsed.Round(time.Second))
	if st.Paused {
		b.WriteString("State:   PAUSED\n")
	} else {
		b.WriteString("State:   running\n")
	}
	if st.CurrentAntenna != "" {
		fmt.Fprintf(&b, "Antenna: %s%s%s  (%s on this antenna)",
			accentTag, st.CurrentAntenna, accentReset, st.AntennaElapsed.Round(time.Second))
		if st.CurrentAntennaDesc != "" {
			fmt.Fprintf(&b, "  %s", st.CurrentAntennaDesc)
		}
		b.WriteString("\n")
	} else {
		b.WriteString("Antenna: none selected - use: antcmp use <antenna>\n")
	}
	if solarSummary != "" {
		fmt.Fprintf(&b, "Solar:   %s\n", solarSummary)
	}
	if len(st.Notes) > 0 {
		fmt.Fprintf(&b, "Notes:   %d", len(st.Notes))
	}
	return strings.TrimRight(b.String(), "\n")
}

func intervalsText(tl session.Timeline, counts map[string]map[string]int) string {
	if len(tl.Intervals) == 0 {
		return "No intervals yet."
	}
	var b strings.Builder
	for _, iv := range tl.Intervals {
		end := iv.End.Format("15:04")
		fmt.Fprintf(&b, "%s-%s  %-12s %s\n",
			iv.Start.Format("15:04"), end, iv.Antenna, bandCounts(counts[iv.Antenna]))
	}
	return strings.TrimRight(b.String(), "\n")
}

// bandCounts renders "20m 42, 40m 10" with bands in frequency order.
func bandCounts(counts map[string]int) string {
	if len(counts) == 0 {
		return "no decodes"
	}
	bands := make([]string, 0, len(counts))
	for name := range counts {
		bands = append(bands, name)
	}
	sort.Slice(bands, func(i, j int) bool {
		ki, kj := band.SortKey(bands[i]), band.SortKey(bands[j])
		if ki != kj {
			return ki < kj
		}
		return bands[i] < bands[j]
	})
	parts := make([]string, 0, len(bands))
	for _, name := range bands {
		parts = append(parts, fmt.Sprintf("%s %d", name, counts[name]))
	}
	return strings.Join(parts, ", ")
}

func formatDecodeLine(antennaLabel string, rec decode.Record) string {
	grid := rec.Grid
	if grid == "" {
		grid = "----"
	}
	return fmt.Sprintf("%s %4s %+3d dB  %-10s %-6s [%s]",
		rec.Time.Format("15:04:05"), rec.Band, rec.SNR, rec.Call, grid, antennaLabel)
}

func formatSpotLine(spot pskreporter.Spot) string {
	snr := "  --"
	if spot.SNR != nil {
		snr = fmt.Sprintf("%+3d dB", *spot.SNR)
	}
	grid := spot.ReceiverGrid
	if grid == "" {
		grid = "----"
	}
	return fmt.Sprintf("%s %4s %s  %-10s %s",
		spot.Time.Format("15:04:05"), spot.Band, snr, spot.ReceiverCall, grid)
}

func newBoxedTextView(title string) *tview.TextView {
	tv := tview.NewTextView().SetDynamicColors(true).SetWrap(false)
	tv.SetBorder(true)
	if title != "" {
		tv.SetTitle(accentTag + title + accentReset).SetTitleAlign(tview.AlignLeft)
	}
	tv.SetBorderColor(uiBorderColor)
	tv.SetTitleColor(uiTitleColor)
	return tv
}

func buildFooter() *tview.TextView {
	return tview.NewTextView().SetDynamicColors(true).SetText(
		accentTag + "Q" + accentReset + "Quit  switch antennas from another terminal or the control port",
	)
}
