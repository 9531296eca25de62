// Package dbtest provides throwaway databases for tests.
package dbtest

import (
	"fmt"
	"testing"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/fairyhunter13/sneaker-customizer-service/internal/db"
)

// SQLite returns a migrated in-memory database private to tb.
func SQLite(tb testing.TB) *gorm.DB {
	tb.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	g, err := db.OpenSQLite(dsn)
	if err != nil {
		tb.Fatalf("open sqlite: %v", err)
	}
	tb.Cleanup(func() { _ = db.Close(g) })
	return g
}
