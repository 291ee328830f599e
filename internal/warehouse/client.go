package warehouse

import (
	"database/sql"
	"fmt"

	"github.com/syrupdata/dqaudit/pkg/logger"
)

// Client implements Probe against a Redshift-compatible warehouse over a
// single shared database/sql connection.
type Client struct {
	db     *sql.DB
	schema string
	logger *logger.Logger
}

func NewClient(db *sql.DB, schema string, log *logger.Logger) *Client {
	return &Client{
		db:     db,
		schema: schema,
		logger: log,
	}
}

// qualifiedTable renders schema.table for interpolation into metadata and
// sampling queries. Identifiers come from config or from model discovery,
// never from generated text.
func (c *Client) qualifiedTable(table string) string {
	return c.schema + "." + table
}

func (c *Client) GetTableMetadata(table string) ([]Column, error) {
	query := `
		SELECT
			column_name,
			data_type,
			is_nullable,
			ordinal_position
		FROM information_schema.columns
		WHERE table_schema = $1 AND table_name = $2
		ORDER BY ordinal_position
	`

	rows, err := c.db.Query(query, c.schema, table)
	if err != nil {
		return nil, fmt.Errorf("failed to query column metadata: %w", err)
	}
	defer rows.Close()

	var columns []Column
	for rows.Next() {
		var col Column
		var isNullable string

		if err := rows.Scan(&col.Name, &col.DataType, &isNullable, &col.Position); err != nil {
			return nil, fmt.Errorf("failed to read column metadata: %w", err)
		}

		col.IsNullable = isNullable == "YES"
		columns = append(columns, col)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read column metadata: %w", err)
	}

	if len(columns) == 0 {
		return nil, fmt.Errorf("%w: %s.%s", ErrTableNotFound, c.schema, table)
	}

	return columns, nil
}

// GetTableStats gathers row, null, and distinct counts. Per-column aggregates
// are expensive on wide tables, so the column set is capped at maxColumns
// (0 disables the cap).
func (c *Client) GetTableStats(table string, maxColumns int) (*TableStats, error) {
	stats := &TableStats{
		NullCounts:     make(map[string]int64),
		DistinctCounts: make(map[string]int64),
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM %s", c.qualifiedTable(table))
	if err := c.db.QueryRow(countQuery).Scan(&stats.RowCount); err != nil {
		return nil, fmt.Errorf("failed to query row count for %s: %w", table, err)
	}

	columns, err := c.GetTableMetadata(table)
	if err != nil {
		return nil, err
	}

	if maxColumns > 0 && len(columns) > maxColumns {
		c.logger.Warnf("table %s has %d columns, computing stats for the first %d only", table, len(columns), maxColumns)
		columns = columns[:maxColumns]
	}

	for _, col := range columns {
		nullQuery := fmt.Sprintf(
			"SELECT COUNT(*) FROM %s WHERE %s IS NULL",
			c.qualifiedTable(table), col.Name,
		)
		var nulls int64
		if err := c.db.QueryRow(nullQuery).Scan(&nulls); err != nil {
			return nil, fmt.Errorf("failed to query null count for %s.%s: %w", table, col.Name, err)
		}
		stats.NullCounts[col.Name] = nulls

		distinctQuery := fmt.Sprintf(
			"SELECT COUNT(DISTINCT %s) FROM %s",
			col.Name, c.qualifiedTable(table),
		)
		var distinct int64
		if err := c.db.QueryRow(distinctQuery).Scan(&distinct); err != nil {
			return nil, fmt.Errorf("failed to query distinct count for %s.%s: %w", table, col.Name, err)
		}
		stats.DistinctCounts[col.Name] = distinct
	}

	return stats, nil
}

func (c *Client) GetSampleData(table string, limit int) ([]Row, error) {
	if limit <= 0 {
		limit = 10
	}

	query := fmt.Sprintf("SELECT * FROM %s LIMIT %d", c.qualifiedTable(table), limit)

	rows, err := c.ExecuteQuery(query)
	if err != nil {
		return nil, fmt.Errorf("failed to get sample data for %s: %w", table, err)
	}

	return rows, nil
}

// ExecuteQuery runs an arbitrary read query and returns its rows. Driver
// failures come back as *QueryError; the query is never retried.
func (c *Client) ExecuteQuery(query string) ([]Row, error) {
	rows, err := c.db.Query(query)
	if err != nil {
		return nil, &QueryError{Query: query, Err: err}
	}
	defer rows.Close()

	result, err := scanRows(rows)
	if err != nil {
		return nil, &QueryError{Query: query, Err: err}
	}

	return result, nil
}

func (c *Client) TestConnection() error {
	var one int
	if err := c.db.QueryRow("SELECT 1").Scan(&one); err != nil {
		return fmt.Errorf("connection test failed: %w", err)
	}
	return nil
}

func scanRows(rows *sql.Rows) ([]Row, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	var result []Row
	for rows.Next() {
		values := make([]any, len(cols))
		pointers := make([]any, len(cols))
		for i := range values {
			pointers[i] = &values[i]
		}

		if err := rows.Scan(pointers...); err != nil {
			return nil, err
		}

		row := Row{
			Columns: cols,
			Values:  make(map[string]any, len(cols)),
		}
		for i, col := range cols {
			val := values[i]
			if b, ok := val.([]byte); ok {
				val = string(b)
			}
			row.Values[col] = val
		}
		result = append(result, row)
	}

	return result, rows.Err()
}
