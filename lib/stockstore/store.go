// Package stockstore keeps a local record of every pickup offer seen
// by the monitor so availability over time can be inspected after a
// run.
package stockstore

import (
	"context"
	"database/sql"
	"time"

	_ "embed"

	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var Schema string

type Store struct {
	db *sql.DB
}

func Open(path string) (Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return Store{}, err
	}
	_, err = db.Exec(Schema)
	if err != nil {
		db.Close()
		return Store{}, err
	}
	return Store{db: db}, nil
}

func NewStore(db *sql.DB) Store {
	return Store{db: db}
}

func (s Store) Close() error {
	return s.db.Close()
}

type Observation struct {
	Time        time.Time
	StoreNumber string
	StoreName   string
	PartNumber  string
	Status      string
	Quote       string
}

// Record writes one poll cycle's worth of observations atomically.
func (s Store) Record(ctx context.Context, observations []Observation) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, o := range observations {
		_, err := tx.ExecContext(
			ctx,
			`INSERT INTO offer_log (time, store_number, store_name, part_number, status, quote)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			o.Time.Unix(),
			o.StoreNumber,
			o.StoreName,
			o.PartNumber,
			o.Status,
			o.Quote,
		)
		if err != nil {
			return err
		}
	}

	return tx.Commit()
}

// History returns every observation recorded for a part, oldest first.
func (s Store) History(ctx context.Context, partNumber string) ([]Observation, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT time, store_number, store_name, part_number, status, quote
		 FROM offer_log WHERE part_number = ? ORDER BY time ASC, id ASC`,
		partNumber,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Observation
	for rows.Next() {
		var o Observation
		var unix int64
		err := rows.Scan(&unix, &o.StoreNumber, &o.StoreName, &o.PartNumber, &o.Status, &o.Quote)
		if err != nil {
			return nil, err
		}
		o.Time = time.Unix(unix, 0)
		out = append(out, o)
	}
	return out, rows.Err()
}
