// Package decode parses the WSJT-X ALL.TXT receive log into structured decode
// records. Most lines in the log are irrelevant (transmissions, other modes,
// malformed rows); those are skipped silently rather than reported as errors.
package decode

import (
	"bufio"
	"io"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// timestampLayout is the compact UTC layout ALL.TXT uses (YYMMDD_HHMMSS).
const timestampLayout = "060102_150405"

// Record is a single successfully received transmission from the local log.
type Record struct {
	Time         time.Time
	FrequencyMHz float64
	Band         string
	SNR          int
	Call         string
	Grid         string // empty when the message carried no locator
	Message      string
	Raw          string // original log line, kept for artifact dumps
}

var (
	// linePattern matches: timestamp freq Rx/Tx mode snr dt audio-offset message
	linePattern = regexp.MustCompile(`^(\d{6}_\d{6})\s+(\d+\.\d+)\s+(Rx|Tx)\s+(\w+)\s+(-?\d+)\s+(-?\d+\.\d+)\s+(\d+)\s+(.+)$`)

	gridPattern    = regexp.MustCompile(`(?i)^[A-R]{2}[0-9]{2}([A-X]{2})?$`)
	gridPrefix     = regexp.MustCompile(`(?i)^[A-R]{2}[0-9]{2}`)
	reportPattern  = regexp.MustCompile(`^[+-]?\d+$`)
	rogerPattern   = regexp.MustCompile(`(?i)^R[+-]?\d+$`)
	callPattern    = regexp.MustCompile(`(?i)^[A-Z0-9]{1,3}[0-9][A-Z0-9]{0,4}(/[A-Z0-9]+)?$`)
	skippedKeyword = map[string]bool{
		"CQ": true, "DE": true, "QRZ": true, "POTA": true, "SOTA": true,
		"RRR": true, "RR73": true, "73": true,
	}
)

// bandFunc maps a frequency in MHz to a band name. Injected so the parser does
// not hard-wire the band table.
type bandFunc func(freqMHz float64) string

// Parser turns ALL.TXT lines into Records for a single target mode.
type Parser struct {
	mode   string
	toBand bandFunc
}

// NewParser returns a parser that keeps only receive rows of the given digital
// mode (typically "FT8").
func NewParser(mode string, toBand func(float64) string) *Parser {
	return &Parser{mode: mode, toBand: toBand}
}

// ParseLine parses one ALL.TXT line. The second return value is false for
// lines that are not a receive decode of the target mode, which is the common
// case and not an error.
func (p *Parser) ParseLine(line string) (Record, bool) {
	m := linePattern.FindStringSubmatch(strings.TrimSpace(line))
	if m == nil {
		return Record{}, false
	}
	if m[3] != "Rx" || m[4] != p.mode {
		return Record{}, false
	}
	// ALL.TXT timestamps are always UTC.
	ts, err := time.ParseInLocation(timestampLayout, m[1], time.UTC)
	if err != nil {
		return Record{}, false
	}
	freq, err := strconv.ParseFloat(m[2], 64)
	if err != nil {
		return Record{}, false
	}
	snr, err := strconv.Atoi(m[5])
	if err != nil {
		return Record{}, false
	}
	message := m[8]
	call, grid := extractStation(message)
	if call == "" {
		return Record{}, false
	}
	return Record{
		Time:         ts,
		FrequencyMHz: freq,
		Band:         p.toBand(freq),
		SNR:          snr,
		Call:         call,
		Grid:         grid,
		Message:      message,
		Raw:          strings.TrimRight(line, "\r\n"),
	}, true
}

// Scan reads the log and calls fn for every decoded record. The reader is
// consumed once; rerunning the parse over a fresh reader yields the same
// records, so callers re-open the file per analysis run.
func (p *Parser) Scan(r io.Reader, fn func(Record)) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		if rec, ok := p.ParseLine(scanner.Text()); ok {
			fn(rec)
		}
	}
	return scanner.Err()
}

// extractStation pulls the transmitting callsign and an optional grid locator
// out of a free-text FT8 message ("CQ CALL GRID", "CALL1 CALL2 RPT", ...).
// The first grid-shaped token wins; the callsign is the first token that looks
// like a call after skipping protocol keywords, grids, and signal reports.
func extractStation(message string) (call, grid string) {
	parts := strings.Fields(message)
	for _, part := range parts {
		if gridPattern.MatchString(part) {
			grid = strings.ToUpper(part)
			break
		}
	}
	for _, part := range parts {
		upper := strings.ToUpper(part)
		if skippedKeyword[upper] {
			continue
		}
		if gridPrefix.MatchString(part) {
			continue
		}
		if reportPattern.MatchString(part) || rogerPattern.MatchString(part) {
			continue
		}
		if callPattern.MatchString(part) {
			return upper, grid
		}
	}
	return "", grid
}
