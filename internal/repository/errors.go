package repository

import (
	"errors"
	"strings"

	"gorm.io/gorm"
)

// ErrDuplicate is returned when a write is rejected by a unique index.
var ErrDuplicate = errors.New("duplicate record")

// ErrCodeAlreadySet is returned when a conditional code write finds a code
// already stored, or the user gone.
var ErrCodeAlreadySet = errors.New("confirmation code already set")

// uniqueViolationMarkers covers drivers that do not implement gorm's
// error translation (Postgres SQLSTATE 23505 text, SQLite constraint text).
var uniqueViolationMarkers = []string{
	"duplicate key value",
	"unique constraint failed",
	"sqlstate 23505",
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range uniqueViolationMarkers {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}

// translate maps store errors onto repository sentinels.
func translate(err error) error {
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	return err
}

// Page is an offset/limit window over an ordered result set.
type Page struct {
	Offset int
	Limit  int
}

func (p Page) apply(db *gorm.DB) *gorm.DB {
	if p.Limit > 0 {
		db = db.Limit(p.Limit)
	}
	if p.Offset > 0 {
		db = db.Offset(p.Offset)
	}
	return db
}

func likePattern(s string) string {
	s = strings.ToLower(s)
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, "%", `\%`)
	s = strings.ReplaceAll(s, "_", `\_`)
	return "%" + s + "%"
}
