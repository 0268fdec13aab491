package database

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
)

const (
	// pingTimeout bounds how long Open waits for the server to answer.
	pingTimeout = 7 * time.Second

	// pingInterval is the delay between ping attempts.
	pingInterval = 500 * time.Millisecond
)

// MySQLDSN builds a MySQL connection string. Timestamps are parsed into time.Time.
func MySQLDSN(username, password, host string, port int, dbName string) string {
	cfg := mysql.NewConfig()
	cfg.User = username
	cfg.Passwd = password
	cfg.Net = "tcp"
	cfg.Addr = net.JoinHostPort(host, strconv.Itoa(port))
	cfg.DBName = dbName
	cfg.ParseTime = true
	cfg.Loc = time.UTC
	return cfg.FormatDSN()
}

// Open connects to MySQL and waits until the server answers a ping.
func Open(ctx context.Context, dsn string) (*sqlx.DB, error) {
	db, err := sqlx.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}

	if err := pingWithRetry(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return db, nil
}

func pingWithRetry(ctx context.Context, db *sqlx.DB) error {
	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	var lastErr error
	for {
		if lastErr = db.PingContext(pingCtx); lastErr == nil {
			return nil
		}

		select {
		case <-ticker.C:
		case <-pingCtx.Done():
			return fmt.Errorf("database did not answer within %s: %w", pingTimeout, lastErr)
		}
	}
}
