package database

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"net"

	"github.com/lib/pq"

	"github.com/AnshRaj112/fonoterapia-backend/internal/apperr"
)

const (
	pqUniqueViolation     = "23505"
	pqForeignKeyViolation = "23503"
)

func pqCode(err error) string {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code)
	}
	return ""
}

// IsUniqueViolation reports whether err was raised by a unique constraint.
func IsUniqueViolation(err error) bool {
	return pqCode(err) == pqUniqueViolation
}

// IsDataException reports whether err is a class 22 error, such as a value
// too long for its column.
func IsDataException(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code.Class() == "22"
}

// IsUnavailable reports whether err means the database could not be
// reached or no connection could be acquired in time.
func IsUnavailable(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, driver.ErrBadConn) ||
		errors.Is(err, sql.ErrConnDone) {
		return true
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code.Class() {
		case "08", "53", "57":
			// connection exception, insufficient resources, operator intervention
			return true
		}
		return false
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

// translate turns a driver error into an application error. Errors that
// already carry a kind pass through unchanged.
func translate(err error, message string) error {
	if err == nil {
		return nil
	}
	var appErr *apperr.Error
	if errors.As(err, &appErr) {
		return err
	}
	switch {
	case IsUnavailable(err):
		return apperr.Wrap(apperr.KindStorageUnavailable, "database unavailable", err)
	case IsUniqueViolation(err):
		return apperr.Wrap(apperr.KindConflict, message, err)
	case pqCode(err) == pqForeignKeyViolation:
		return apperr.Wrap(apperr.KindNotFound, message, err)
	case IsDataException(err):
		return apperr.Wrap(apperr.KindValidation, "invalid value", err)
	case errors.Is(err, context.Canceled):
		return apperr.Wrap(apperr.KindUnexpected, "request cancelled", err)
	default:
		return apperr.Wrap(apperr.KindUnexpected, message, err)
	}
}
