package stationdb

import (
	"fmt"
	"log/slog"

	"abfahrt.transitboard.org/internal/logging"
)

// TableCounts returns row counts for the known station directory tables.
// Used by the debug UI.
func (c *Client) TableCounts() (map[string]int, error) {
	rows, err := c.DB.Query("SELECT name FROM sqlite_master WHERE type='table' AND name NOT LIKE 'sqlite_%'")
	if err != nil {
		return nil, fmt.Errorf("failed to query table names: %w", err)
	}
	defer logging.SafeCloseWithLogging(rows,
		slog.Default().With(slog.String("component", "debugging")),
		"database_rows")

	var tables []string
	for rows.Next() {
		var tableName string
		if err := rows.Scan(&tableName); err != nil {
			return nil, fmt.Errorf("failed to scan table name: %w", err)
		}
		tables = append(tables, tableName)
	}

	counts := make(map[string]int)

	tableCountQueries := map[string]string{
		"stations":        "SELECT COUNT(*) FROM stations",
		"poles":           "SELECT COUNT(*) FROM poles",
		"import_metadata": "SELECT COUNT(*) FROM import_metadata",
	}

	for _, table := range tables {
		query, ok := tableCountQueries[table]
		if !ok {
			continue
		}

		var count int
		err := c.DB.QueryRow(query).Scan(&count)
		if err != nil {
			return nil, err
		}
		counts[table] = count
	}

	return counts, nil
}
