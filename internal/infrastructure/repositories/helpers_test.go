package repositories

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s_%d?mode=memory&cache=shared", t.Name(), time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true})
	require.NoError(t, err, "open sqlite")
	return db
}

func mustExec(t *testing.T, db *gorm.DB, q string, args ...interface{}) {
	t.Helper()
	require.NoError(t, db.Exec(q, args...).Error, "exec failed: query=%s", q)
}

func createUserTable(t *testing.T, db *gorm.DB) {
	mustExec(t, db, `CREATE TABLE users (
		id TEXT PRIMARY KEY,
		discord_id TEXT NOT NULL UNIQUE,
		discord_username TEXT NOT NULL,
		minecraft_username TEXT,
		minecraft_id TEXT,
		is_verified BOOLEAN NOT NULL DEFAULT 0,
		created_at DATETIME,
		updated_at DATETIME
	);`)
}

func createLinkCodeTable(t *testing.T, db *gorm.DB) {
	mustExec(t, db, `CREATE TABLE link_codes (
		id TEXT PRIMARY KEY,
		discord_id TEXT NOT NULL,
		code TEXT NOT NULL,
		status TEXT NOT NULL,
		issued_at DATETIME NOT NULL,
		expires_at DATETIME NOT NULL,
		updated_at DATETIME
	);`)
	mustExec(t, db, `CREATE UNIQUE INDEX idx_link_codes_pending_owner ON link_codes(discord_id) WHERE status = 'pending';`)
}

func createAuditLogTable(t *testing.T, db *gorm.DB) {
	mustExec(t, db, `CREATE TABLE audit_logs (
		id TEXT PRIMARY KEY,
		discord_id TEXT NOT NULL,
		action TEXT NOT NULL,
		details TEXT,
		timestamp DATETIME NOT NULL
	);`)
}

func createBlockBreakTable(t *testing.T, db *gorm.DB) {
	mustExec(t, db, `CREATE TABLE block_breaks (
		id TEXT PRIMARY KEY,
		minecraft_id TEXT NOT NULL,
		block TEXT NOT NULL,
		position_x INTEGER NOT NULL,
		position_y INTEGER NOT NULL,
		position_z INTEGER NOT NULL,
		mined_at DATETIME NOT NULL,
		hash TEXT NOT NULL UNIQUE
	);`)
}

func createLinkingTables(t *testing.T, db *gorm.DB) {
	createUserTable(t, db)
	createLinkCodeTable(t, db)
	createAuditLogTable(t, db)
}

func closeDB(t *testing.T, db *gorm.DB) {
	t.Helper()
	sqlDB, err := db.DB()
	require.NoError(t, err)
	require.NoError(t, sqlDB.Close())
}
