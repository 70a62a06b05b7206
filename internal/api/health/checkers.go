package health

import (
	"context"
	"database/sql"
	"fmt"
	"net"
)

// SQLiteChecker checks SQLite database connectivity.
type SQLiteChecker struct {
	db *sql.DB
}

// NewSQLiteChecker creates a new SQLite health checker.
func NewSQLiteChecker(db *sql.DB) *SQLiteChecker {
	return &SQLiteChecker{db: db}
}

// Name returns the checker name.
func (c *SQLiteChecker) Name() string {
	return "sqlite"
}

// Check verifies the SQLite database is accessible.
func (c *SQLiteChecker) Check(ctx context.Context) error {
	if c.db == nil {
		return fmt.Errorf("database not initialized")
	}
	return c.db.PingContext(ctx)
}

// SMTPChecker checks that the outbound mail relay is reachable. It only
// dials; it does not speak SMTP, so a full mailbox round trip is not part
// of readiness.
type SMTPChecker struct {
	addr string
}

// NewSMTPChecker creates a checker for the given host:port.
func NewSMTPChecker(addr string) *SMTPChecker {
	return &SMTPChecker{addr: addr}
}

// Name returns the checker name.
func (c *SMTPChecker) Name() string {
	return "smtp"
}

// Check verifies a TCP connection to the relay can be established.
func (c *SMTPChecker) Check(ctx context.Context) error {
	if c.addr == "" {
		return fmt.Errorf("smtp relay not configured")
	}
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", c.addr)
	if err != nil {
		return fmt.Errorf("dial smtp relay: %w", err)
	}
	return conn.Close()
}
