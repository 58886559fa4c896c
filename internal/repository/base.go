// Package repository provides data access layer implementations for the application.
package repository

import (
	"errors"
	"strings"

	"chainhire/internal/database"

	"gorm.io/gorm"
)

// ErrDuplicate is returned when an insert hits a unique constraint.
var ErrDuplicate = errors.New("duplicate record")

func readDB(primary *gorm.DB) *gorm.DB {
	if db := database.GetReadDB(); db != nil && db != database.DB {
		return db
	}
	return primary
}

func translate(err error) error {
	if database.IsUniqueViolation(err) {
		return ErrDuplicate
	}
	return err
}

func isPostgres(db *gorm.DB) bool {
	return db.Dialector.Name() == "postgres"
}

// containsFold matches rows whose text[] column holds value, ignoring case.
func containsFold(db *gorm.DB, column, value string) *gorm.DB {
	if isPostgres(db) {
		return db.Where("EXISTS (SELECT 1 FROM unnest("+column+") AS t(v) WHERE lower(t.v) = lower(?))", value)
	}
	// Other dialects hold the array literal as text, e.g. {"Go","Rust"}.
	return db.Where("lower("+column+") LIKE ?", `%"`+strings.ToLower(value)+`"%`)
}

// likeFold builds a case-insensitive substring pattern.
func likeFold(q string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + strings.ToLower(r.Replace(q)) + "%"
}
