package database

import (
	"database/sql"
	"fmt"

	"github.com/syrupdata/dqaudit/internal/config"

	_ "github.com/lib/pq"
)

type Connection struct {
	DB     *sql.DB
	Config *config.Config
}

// NewConnection opens the shared warehouse connection. One connection serves
// an entire audit run; callers release it with Close when the run ends.
func NewConnection(cfg *config.Config) (*Connection, error) {
	db, err := sql.Open("postgres", cfg.GetConnectionString())
	if err != nil {
		return nil, fmt.Errorf("failed to open warehouse connection: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("unable to reach warehouse: %w", err)
	}

	return &Connection{
		DB:     db,
		Config: cfg,
	}, nil
}

func (c *Connection) Close() error {
	return c.DB.Close()
}

func (c *Connection) Schema() string {
	return c.Config.Warehouse.Schema
}
