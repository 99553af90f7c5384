package storage

import (
	"database/sql"
	"fmt"
	"strings"
)

// keyChunkSize bounds the IN (...) list when probing for existing keys;
// SQLite's default variable limit is 999.
const keyChunkSize = 500

// UpsertResult reports the outcome of one anti-join upsert
type UpsertResult struct {
	Inserted int `json:"inserted"`
	Skipped  int `json:"skipped"`
}

// Add accumulates another result into this one
func (r *UpsertResult) Add(other UpsertResult) {
	r.Inserted += other.Inserted
	r.Skipped += other.Skipped
}

// UpsertTx merges incoming rows into a table inside an open transaction.
// Only rows whose primary key is absent from the table are inserted; rows
// already present are counted as skipped and left untouched. There are no
// update-on-conflict semantics: committed rows are immutable. With dryRun
// the counts are computed but nothing is inserted.
func UpsertTx(tx *sql.Tx, spec TableSpec, rows []Row, dryRun bool) (UpsertResult, error) {
	var result UpsertResult
	if len(rows) == 0 {
		return result, nil
	}

	// Dedupe within the batch first; a duplicated key inside one batch is
	// equivalent to the row already existing.
	seen := make(map[string]bool, len(rows))
	unique := make([]Row, 0, len(rows))
	for _, row := range rows {
		if seen[row.Key()] {
			result.Skipped++
			continue
		}
		seen[row.Key()] = true
		unique = append(unique, row)
	}

	existing, err := existingKeysTx(tx, spec, unique)
	if err != nil {
		return UpsertResult{}, err
	}

	insertSQL := spec.insertSQL()
	var stmt *sql.Stmt
	if !dryRun {
		stmt, err = tx.Prepare(insertSQL)
		if err != nil {
			return UpsertResult{}, fmt.Errorf("prepare insert for %s: %w", spec.Name, err)
		}
		defer stmt.Close()
	}

	for _, row := range unique {
		if existing[row.Key()] {
			result.Skipped++
			continue
		}
		if !dryRun {
			if _, err := stmt.Exec(row.Args()...); err != nil {
				return UpsertResult{}, fmt.Errorf("insert into %s: %w", spec.Name, err)
			}
		}
		result.Inserted++
	}

	return result, nil
}

// Upsert merges incoming rows into a table in its own transaction.
func (db *DB) Upsert(spec TableSpec, rows []Row, dryRun bool) (UpsertResult, error) {
	var result UpsertResult
	err := db.WithTx(func(tx *sql.Tx) error {
		var txErr error
		result, txErr = UpsertTx(tx, spec, rows, dryRun)
		return txErr
	})
	if err != nil {
		return UpsertResult{}, err
	}
	return result, nil
}

// existingKeysTx probes the table for incoming primary keys that already
// exist, in chunks bounded by SQLite's variable limit.
func existingKeysTx(tx *sql.Tx, spec TableSpec, rows []Row) (map[string]bool, error) {
	existing := make(map[string]bool)

	for start := 0; start < len(rows); start += keyChunkSize {
		end := start + keyChunkSize
		if end > len(rows) {
			end = len(rows)
		}
		chunk := rows[start:end]

		placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(chunk)), ", ")
		query := fmt.Sprintf("SELECT %s FROM %s WHERE %s IN (%s)",
			spec.PrimaryKey, spec.Name, spec.PrimaryKey, placeholders)

		args := make([]interface{}, len(chunk))
		for i, row := range chunk {
			args[i] = row.Key()
		}

		queryRows, err := tx.Query(query, args...)
		if err != nil {
			return nil, fmt.Errorf("probe existing keys in %s: %w", spec.Name, err)
		}
		for queryRows.Next() {
			var key string
			if err := queryRows.Scan(&key); err != nil {
				queryRows.Close()
				return nil, err
			}
			existing[key] = true
		}
		if err := queryRows.Err(); err != nil {
			queryRows.Close()
			return nil, err
		}
		queryRows.Close()
	}

	return existing, nil
}

// Count returns the number of rows in a registered table.
func (db *DB) Count(table string) (int, error) {
	spec, err := Table(table)
	if err != nil {
		return 0, err
	}
	var n int
	if err := db.QueryRow("SELECT COUNT(*) FROM " + spec.Name).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}
