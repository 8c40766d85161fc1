// Package db reads the Antigravity IDE's global state database.
package db

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/j-veylop/antigravity-quota-history/internal/logger"

	// Import modernc.org/sqlite as a blank import to register the driver
	_ "modernc.org/sqlite"
)

const (
	// agentStateKey holds a base64 protobuf blob that embeds the access token.
	agentStateKey = "jetskiStateSync.agentManagerInitState"
	// currentUserKey is the older plain-text location of the token.
	currentUserKey = "current_user"

	accessTokenPrefix = "ya29."
)

var (
	// ErrStateNotFound is returned when the state database does not exist.
	ErrStateNotFound = errors.New("IDE state database not found")
	// ErrNoSession is returned when the database holds no signed-in token.
	ErrNoSession = errors.New("no active IDE session")
)

// DB wraps a read-only connection to an IDE state database.
type DB struct {
	*sql.DB
	path string
}

// OpenState opens the state database at path read-only.
func OpenState(path string) (*DB, error) {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%s: %w", path, ErrStateNotFound)
		}
		return nil, fmt.Errorf("failed to stat state database: %w", err)
	}

	dsn := "file:" + path + "?mode=ro&_pragma=busy_timeout(1000)"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open state database: %w", err)
	}

	// Test connection
	if err := sqlDB.PingContext(context.Background()); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("failed to connect to state database: %w", err)
	}

	return &DB{DB: sqlDB, path: path}, nil
}

// Path returns the database file path.
func (db *DB) Path() string {
	return db.path
}

// Item returns the value stored under key in ItemTable.
func (db *DB) Item(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := db.QueryRowContext(ctx, "SELECT value FROM ItemTable WHERE key = ?", key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to read %s: %w", key, err)
	}
	return value, true, nil
}

// ActiveToken returns the access token of the account signed in to the IDE.
// The agent state blob is preferred; current_user is the fallback.
func (db *DB) ActiveToken(ctx context.Context) (string, error) {
	blob, ok, err := db.Item(ctx, agentStateKey)
	if err != nil {
		return "", err
	}
	if ok {
		if token := tokenFromAgentState(blob); token != "" {
			return token, nil
		}
	}

	user, ok, err := db.Item(ctx, currentUserKey)
	if err != nil {
		return "", err
	}
	if ok && strings.HasPrefix(user, accessTokenPrefix) {
		return user, nil
	}

	return "", ErrNoSession
}

// tokenFromAgentState decodes the base64 blob and scans it for an access
// token. The token runs until the first byte that cannot be part of it.
func tokenFromAgentState(blob string) string {
	raw, err := base64.StdEncoding.DecodeString(blob)
	if err != nil {
		return ""
	}

	idx := bytes.Index(raw, []byte(accessTokenPrefix))
	if idx < 0 {
		return ""
	}

	rest := raw[idx:]
	end := bytes.IndexFunc(rest, func(r rune) bool { return !isTokenRune(r) })
	if end < 0 {
		end = len(rest)
	}
	return string(rest[:end])
}

func isTokenRune(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		return true
	case r == '.', r == '_', r == '-':
		return true
	}
	return false
}

// StateFile is the path of a state database. Each lookup opens the file
// anew since the IDE keeps writing to it.
type StateFile string

// ActiveToken opens the database, reads the active token and closes it.
func (p StateFile) ActiveToken(ctx context.Context) (string, error) {
	db, err := OpenState(string(p))
	if err != nil {
		return "", err
	}
	defer func() {
		if err := db.Close(); err != nil {
			logger.Warn("failed to close state database", "path", string(p), "error", err)
		}
	}()
	return db.ActiveToken(ctx)
}
