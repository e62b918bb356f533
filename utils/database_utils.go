// database_utils should be the canonical place to put shared DB utils.
// It should not include:
// 1. Any util that doesn't manipulate DB
// 2. Any util that contains business logic
package utils

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/Luismorlan/pagemux/app_config"
	"github.com/Luismorlan/pagemux/model"
	. "github.com/Luismorlan/pagemux/utils/log"
	"github.com/codeGROOVE-dev/retry"
	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const (
	connectAttempts = 5
	connectDelay    = time.Second
)

// GormTransaction is the callback function used during db.Transaction in Gorm.
type GormTransaction func(tx *gorm.DB) error

// GetDBConnection connects to the postgres database described by config.
// The server may start before the database is reachable, so the connection is
// retried a few times before giving up.
func GetDBConnection(ctx context.Context, c app_config.Config) (*gorm.DB, error) {
	dsn := fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=disable", c.DBHost, c.DBUser, c.DBPass, c.DBName, c.DBPort)

	var db *gorm.DB
	err := retry.Do(
		func() error {
			var err error
			db, err = gorm.Open(postgres.Open(dsn), &gorm.Config{
				Logger: logger.Default.LogMode(logger.Silent),
			})
			if err != nil {
				return err
			}
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		},
		retry.Attempts(connectAttempts),
		retry.Delay(connectDelay),
		retry.Context(ctx),
		retry.OnRetry(func(n uint, err error) {
			Log.WithField("attempt", n).Warn("database not reachable yet: ", err)
		}),
	)
	if err != nil {
		return nil, err
	}
	return db, nil
}

func DatabaseSetupAndMigration(db *gorm.DB) error {
	return db.AutoMigrate(
		&model.Package{},
		&model.User{},
		&model.Fanpage{},
		&model.Post{},
		&model.Comment{},
		&model.Message{},
		&model.Notification{},
	)
}

// CreateTempDB creates an isolated in-memory database for a test case, with
// all tables migrated. The database is gone once the test finishes.
func CreateTempDB(t *testing.T) *gorm.DB {
	t.Helper()
	// Each test gets its own named shared-cache memory DB, so parallel tests
	// never see each other's rows.
	name := strings.ReplaceAll(uuid.New().String(), "-", "")
	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared&_busy_timeout=5000", name)), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("cannot open temp DB: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("cannot get the temp SQL DB: %v", err)
	}
	// A single connection keeps the memory DB alive and serializes writers.
	sqlDB.SetMaxOpenConns(1)
	if err := DatabaseSetupAndMigration(db); err != nil {
		t.Fatalf("cannot migrate temp DB: %v", err)
	}
	t.Cleanup(func() {
		sqlDB.Close()
	})
	return db
}
