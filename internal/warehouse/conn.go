// Package warehouse owns the Snowflake side of the dashboard: the
// connection pool and the one fixed report query.
package warehouse

import (
	"context"
	"crypto/rsa"
	"crypto/x509"
	"database/sql"
	"encoding/pem"
	"fmt"
	"os"
	"time"

	sf "github.com/snowflakedb/gosnowflake"

	"github.com/pbelov/snowview/internal/config"
)

// Open builds the DSN from configuration and opens the process-wide
// connection pool. Opening a warehouse connection is expensive, so the
// returned *sql.DB is created once at startup and shared by all sessions;
// database/sql handles reuse and serialization underneath.
func Open(ctx context.Context, cfg config.WarehouseConfig) (*sql.DB, error) {
	sfCfg := &sf.Config{
		Account:      cfg.Account,
		User:         cfg.User,
		Warehouse:    cfg.Warehouse,
		Database:     cfg.Database,
		Schema:       cfg.Schema,
		Role:         cfg.Role,
		LoginTimeout: cfg.ConnectTimeout,
	}

	if cfg.PrivateKeyPath != "" {
		key, err := loadPrivateKey(cfg.PrivateKeyPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load private key: %w", err)
		}
		sfCfg.PrivateKey = key
		sfCfg.Authenticator = sf.AuthTypeJwt
	} else {
		sfCfg.Password = cfg.Password
	}

	dsn, err := sf.DSN(sfCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to build DSN: %w", err)
	}

	db, err := sql.Open("snowflake", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open connection: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(10 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect: %w", err)
	}

	return db, nil
}

// loadPrivateKey reads a PKCS#8 PEM file into the RSA key used for
// key-pair (JWT) authentication.
func loadPrivateKey(path string) (*rsa.PrivateKey, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	block, _ := pem.Decode(data)
	if block == nil {
		return nil, fmt.Errorf("no PEM block found in %s", path)
	}

	parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("failed to parse PKCS#8 key: %w", err)
	}

	key, ok := parsed.(*rsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("private key is %T, expected RSA", parsed)
	}
	return key, nil
}
