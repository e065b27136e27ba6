package database

import (
	"path/filepath"
	"testing"

	"github.com/bitfantasy/qcs/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/mysql"
)

func TestDialectorUnsupported(t *testing.T) {
	_, err := Dialector(config.DatabaseConfig{Driver: "oracle"})
	assert.Error(t, err)
}

func TestDialectorNames(t *testing.T) {
	for _, driver := range []string{"postgres", "mysql", "sqlite"} {
		d, err := Dialector(config.DatabaseConfig{Driver: driver, Path: "x.db"})
		require.NoError(t, err)
		assert.Equal(t, driver, d.Name())
	}
}

func TestOpenAndMigrateSQLite(t *testing.T) {
	cfg := config.DatabaseConfig{
		Driver:       "sqlite",
		Path:         filepath.Join(t.TempDir(), "qcs.db"),
		LogLevel:     "silent",
		MaxIdleConns: 1,
	}
	db, err := Open(cfg)
	require.NoError(t, err)
	defer Close(db)

	require.NoError(t, Migrate(db))
	for _, table := range []string{"issues", "issue_photos", "issue_comments", "audit_trail", "suppliers", "products", "users"} {
		assert.True(t, db.Migrator().HasTable(table), table)
	}
}

// 已锁定行的重复更新必须计为命中行
func TestMySQLCountsMatchedRows(t *testing.T) {
	d, err := Dialector(config.DatabaseConfig{Driver: "mysql", Host: "db", Port: 3306, User: "qcs", DBName: "qcs"})
	require.NoError(t, err)
	dsn := d.(*mysql.Dialector).DSN
	assert.Contains(t, dsn, "clientFoundRows=true")
	assert.Contains(t, dsn, "parseTime=True")
}
