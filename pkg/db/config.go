package db

import (
	"database/sql"
	"strings"
	"time"

	"github.com/smallbiznis/semah/internal/config"
)

type Config struct {
	Type            string
	Host            string
	Port            string
	Name            string
	User            string
	Password        string
	SSLMode         string
	MaxIdleConn     int
	MaxOpenConn     int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

func ConfigFrom(cfg config.Config) Config {
	return Config{
		Type:            strings.ToLower(strings.TrimSpace(cfg.DBType)),
		Host:            cfg.DBHost,
		Port:            cfg.DBPort,
		Name:            cfg.DBName,
		User:            cfg.DBUser,
		Password:        cfg.DBPassword,
		SSLMode:         cfg.DBSSLMode,
		MaxIdleConn:     cfg.DBMaxIdleConn,
		MaxOpenConn:     cfg.DBMaxOpenConn,
		ConnMaxLifetime: time.Duration(cfg.DBConnMaxLifetime) * time.Second,
		ConnMaxIdleTime: time.Duration(cfg.DBConnMaxIdleTime) * time.Second,
	}
}

// SerializableTx returns the transaction options for multi-row writes that
// must not interleave. SQLite serializes writers on its own and its drivers
// reject explicit isolation levels, so nil is returned there.
func (c Config) SerializableTx() *sql.TxOptions {
	switch c.Type {
	case "postgres", "mysql":
		return &sql.TxOptions{Isolation: sql.LevelSerializable}
	default:
		return nil
	}
}
