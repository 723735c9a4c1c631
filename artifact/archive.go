package artifact

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"antcmp/decode"
	"antcmp/pskreporter"
)

// MatchedRecord is one decode record together with the antenna interval it
// was joined to.
type MatchedRecord struct {
	Antenna string
	Record  decode.Record
}

// MatchedSpot is one reception report together with its antenna interval.
type MatchedSpot struct {
	Antenna string
	Spot    pskreporter.Spot
}

// writeArchive stores the matched records of one run in a per-run SQLite
// database so the comparison can be re-analyzed without re-parsing the full
// decode log. One-shot batch insert in a single transaction.
func writeArchive(path string, rx []MatchedRecord, tx []MatchedSpot) error {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return fmt.Errorf("artifact: open archive: %w", err)
	}
	defer db.Close()
	if _, err := db.Exec(`pragma busy_timeout=5000`); err != nil {
		return fmt.Errorf("artifact: archive pragmas: %w", err)
	}
	if err := ensureArchiveSchema(db); err != nil {
		return err
	}

	dbtx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("artifact: begin archive tx: %w", err)
	}
	rxStmt, err := dbtx.Prepare(`insert into rx_records(ts, antenna, band, call, grid, freq, snr, raw) values(?,?,?,?,?,?,?,?)`)
	if err != nil {
		_ = dbtx.Rollback()
		return fmt.Errorf("artifact: prepare rx insert: %w", err)
	}
	for _, m := range rx {
		r := m.Record
		if _, err := rxStmt.Exec(r.Time.UTC().Unix(), m.Antenna, r.Band, r.Call, r.Grid, r.FrequencyMHz, r.SNR, r.Raw); err != nil {
			_ = rxStmt.Close()
			_ = dbtx.Rollback()
			return fmt.Errorf("artifact: insert rx record: %w", err)
		}
	}
	_ = rxStmt.Close()

	txStmt, err := dbtx.Prepare(`insert into tx_spots(ts, antenna, band, receiver, grid, freq, snr, has_snr) values(?,?,?,?,?,?,?,?)`)
	if err != nil {
		_ = dbtx.Rollback()
		return fmt.Errorf("artifact: prepare tx insert: %w", err)
	}
	for _, m := range tx {
		s := m.Spot
		snr, hasSNR := 0, 0
		if s.SNR != nil {
			snr, hasSNR = *s.SNR, 1
		}
		if _, err := txStmt.Exec(s.Time.UTC().Unix(), m.Antenna, s.Band, s.ReceiverCall, s.ReceiverGrid, s.FrequencyMHz, snr, hasSNR); err != nil {
			_ = txStmt.Close()
			_ = dbtx.Rollback()
			return fmt.Errorf("artifact: insert tx spot: %w", err)
		}
	}
	_ = txStmt.Close()

	if err := dbtx.Commit(); err != nil {
		return fmt.Errorf("artifact: commit archive: %w", err)
	}
	return nil
}

// ReadArchive loads a run's matched records back from its archive database,
// ordered by timestamp.
func ReadArchive(path string) ([]MatchedRecord, []MatchedSpot, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, nil, fmt.Errorf("artifact: open archive: %w", err)
	}
	defer db.Close()

	var rx []MatchedRecord
	rows, err := db.Query(`select ts, antenna, band, call, grid, freq, snr, raw from rx_records order by ts`)
	if err != nil {
		return nil, nil, fmt.Errorf("artifact: query rx records: %w", err)
	}
	for rows.Next() {
		var (
			ts                       int64
			antenna, band, call      string
			grid, raw                string
			freq                     float64
			snr                      int
		)
		if err := rows.Scan(&ts, &antenna, &band, &call, &grid, &freq, &snr, &raw); err != nil {
			rows.Close()
			return nil, nil, fmt.Errorf("artifact: scan rx record: %w", err)
		}
		rx = append(rx, MatchedRecord{
			Antenna: antenna,
			Record: decode.Record{
				Time:         time.Unix(ts, 0).UTC(),
				FrequencyMHz: freq,
				Band:         band,
				SNR:          snr,
				Call:         call,
				Grid:         grid,
				Raw:          raw,
			},
		})
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, nil, fmt.Errorf("artifact: iterate rx records: %w", err)
	}
	rows.Close()

	var tx []MatchedSpot
	rows, err = db.Query(`select ts, antenna, band, receiver, grid, freq, snr, has_snr from tx_spots order by ts`)
	if err != nil {
		return nil, nil, fmt.Errorf("artifact: query tx spots: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			ts                      int64
			antenna, band, receiver string
			grid                    string
			freq                    float64
			snr, hasSNR             int
		)
		if err := rows.Scan(&ts, &antenna, &band, &receiver, &grid, &freq, &snr, &hasSNR); err != nil {
			return nil, nil, fmt.Errorf("artifact: scan tx spot: %w", err)
		}
		spot := pskreporter.Spot{
			Time:         time.Unix(ts, 0).UTC(),
			ReceiverCall: receiver,
			ReceiverGrid: grid,
			FrequencyMHz: freq,
			Band:         band,
		}
		if hasSNR > 0 {
			v := snr
			spot.SNR = &v
		}
		tx = append(tx, MatchedSpot{Antenna: antenna, Spot: spot})
	}
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("artifact: iterate tx spots: %w", err)
	}
	return rx, tx, nil
}

func ensureArchiveSchema(db *sql.DB) error {
	schema := `
	create table if not exists rx_records (
		id integer primary key autoincrement,
		ts integer,
		antenna text,
		band text,
		call text,
		grid text,
		freq real,
		snr integer,
		raw text
	);
	create table if not exists tx_spots (
		id integer primary key autoincrement,
		ts integer,
		antenna text,
		band text,
		receiver text,
		grid text,
		freq real,
		snr integer,
		has_snr integer
	);
	create index if not exists idx_rx_band_ant on rx_records(band, antenna);
	create index if not exists idx_tx_band_ant on tx_spots(band, antenna);
	`
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("artifact: archive schema: %w", err)
	}
	return nil
}
