package sqlite

import (
	"errors"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/kailas-cloud/kbase/internal/domain"
)

// classify maps driver errors onto the backend error taxonomy. A database
// file that cannot be opened or stays locked is a connection problem.
func classify(detail string, err error) error {
	if err == nil {
		return nil
	}
	if domain.KindOf(err) != nil {
		return err
	}
	var se *sqlite.Error
	if errors.As(err, &se) {
		switch se.Code() & 0xff {
		case sqlite3.SQLITE_CANTOPEN, sqlite3.SQLITE_BUSY, sqlite3.SQLITE_LOCKED, sqlite3.SQLITE_NOTADB:
			return domain.ConnectionError(detail, err)
		}
	}
	return domain.OperationFailed(detail, err)
}
