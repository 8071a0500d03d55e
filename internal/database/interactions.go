package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// InteractionRecord is an out-of-band interaction persisted for later review.
type InteractionRecord struct {
	ID            int64     `json:"id"`
	CorrelationID string    `json:"correlation_id"`
	Server        string    `json:"server"`
	Protocol      string    `json:"protocol"`
	UniqueID      string    `json:"unique_id"`
	FullID        string    `json:"full_id"`
	RemoteAddress string    `json:"remote_address"`
	Timestamp     time.Time `json:"timestamp"`

	// Raw is the decrypted interaction payload as received from the provider.
	Raw string `json:"raw"`
}

// InsertInteraction stores record and returns its row ID.
func (idx *Index) InsertInteraction(ctx context.Context, record *InteractionRecord) (int64, error) {
	query := `
	INSERT INTO interactions (correlation_id, server, protocol, unique_id, full_id, remote_address, timestamp, raw)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := idx.db.ExecContext(ctx, query,
		record.CorrelationID,
		record.Server,
		record.Protocol,
		record.UniqueID,
		record.FullID,
		record.RemoteAddress,
		formatTimestamp(record.Timestamp),
		record.Raw,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert interaction: %w", err)
	}
	return result.LastInsertId()
}

// ListInteractions returns recorded interactions in arrival order.
// An empty correlationID lists interactions of every registration.
func (idx *Index) ListInteractions(ctx context.Context, correlationID string) ([]InteractionRecord, error) {
	query := `
	SELECT id, correlation_id, server, protocol, unique_id, full_id, remote_address, timestamp, raw
	FROM interactions
	`
	var args []any
	if correlationID != "" {
		query += " WHERE correlation_id = ?"
		args = append(args, correlationID)
	}
	query += " ORDER BY id"

	rows, err := idx.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list interactions: %w", err)
	}
	defer rows.Close()

	var records []InteractionRecord
	for rows.Next() {
		var (
			record                                  InteractionRecord
			protocol, uniqueID, fullID, remote, raw sql.NullString
			timestamp                               string
		)
		if err := rows.Scan(
			&record.ID,
			&record.CorrelationID,
			&record.Server,
			&protocol,
			&uniqueID,
			&fullID,
			&remote,
			&timestamp,
			&raw,
		); err != nil {
			return nil, fmt.Errorf("failed to scan interaction: %w", err)
		}
		record.Protocol = protocol.String
		record.UniqueID = uniqueID.String
		record.FullID = fullID.String
		record.RemoteAddress = remote.String
		record.Raw = raw.String
		record.Timestamp = parseTimestamp(timestamp)
		records = append(records, record)
	}
	return records, rows.Err()
}
