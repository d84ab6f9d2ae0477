package engine

import (
	"errors"
	"strings"

	sqlite "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// ResultCode returns the extended SQLite result code carried by err, or 0
// when err does not originate from the driver.
func ResultCode(err error) int {
	var sqlErr *sqlite.Error
	if errors.As(err, &sqlErr) {
		return sqlErr.Code()
	}
	return 0
}

// PrimaryCode strips the extended part of a result code.
func PrimaryCode(code int) int { return code & 0xff }

// IsUniqueViolation reports a UNIQUE or PRIMARY KEY constraint failure.
func IsUniqueViolation(err error) bool {
	switch ResultCode(err) {
	case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
		return true
	case 0:
		return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
	}
	return false
}

// IsNotNullViolation reports a NOT NULL constraint failure.
func IsNotNullViolation(err error) bool {
	switch ResultCode(err) {
	case sqlite3.SQLITE_CONSTRAINT_NOTNULL:
		return true
	case 0:
		return err != nil && strings.Contains(err.Error(), "NOT NULL constraint failed")
	}
	return false
}

// IsConstraintViolation reports any constraint failure.
func IsConstraintViolation(err error) bool {
	if code := ResultCode(err); code != 0 {
		return PrimaryCode(code) == sqlite3.SQLITE_CONSTRAINT
	}
	return err != nil && strings.Contains(err.Error(), "constraint failed")
}
