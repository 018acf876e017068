package database

import (
	"context"
	"database/sql"
	"fmt"
	"net"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/sirupsen/logrus"
)

// Options describes the MySQL server and the connection pool.
type Options struct {
	User, Pass, Host, Port, Name string

	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	PingTimeout     time.Duration
}

// DSN builds the driver connection string.  DATETIME columns scan into
// time.Time in UTC.
func (o Options) DSN() string {
	c := mysql.NewConfig()
	c.User = o.User
	c.Passwd = o.Pass
	c.Net = "tcp"
	c.Addr = net.JoinHostPort(o.Host, o.Port)
	c.DBName = o.Name
	c.ParseTime = true
	c.Loc = time.UTC
	c.Params = map[string]string{"charset": "utf8mb4"}
	return c.FormatDSN()
}

// Open connects to MySQL, applies the pool limits and verifies the
// connection.
func Open(o Options) (*sql.DB, error) {
	db, err := sql.Open("mysql", o.DSN())
	if err != nil {
		return nil, fmt.Errorf("open mysql: %w", err)
	}
	configurePool(db, o)

	timeout := o.PingTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping mysql %s:%s: %w", o.Host, o.Port, err)
	}
	logrus.WithFields(logrus.Fields{
		"component": "database",
		"host":      o.Host,
		"db":        o.Name,
		"max_open":  o.MaxOpenConns,
	}).Info("connected to mysql")
	return db, nil
}

// configurePool applies the limits; zero values keep database/sql's defaults.
func configurePool(db *sql.DB, o Options) {
	if o.MaxOpenConns > 0 {
		db.SetMaxOpenConns(o.MaxOpenConns)
	}
	if o.MaxIdleConns > 0 {
		db.SetMaxIdleConns(o.MaxIdleConns)
	}
	if o.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(o.ConnMaxLifetime)
	}
}
