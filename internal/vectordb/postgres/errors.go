package postgres

import (
	"errors"
	"net"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/kailas-cloud/kbase/internal/domain"
)

const uniqueViolation = "23505"

// classify maps a pgx error into the backend taxonomy. Connection classes
// (08xxx, admin shutdown, dial failures) become ConnectionError.
func classify(detail string, err error) error {
	if err == nil {
		return nil
	}
	if domain.KindOf(err) != nil {
		return err
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if strings.HasPrefix(pgErr.Code, "08") || strings.HasPrefix(pgErr.Code, "57P") {
			return domain.ConnectionError(detail, err)
		}
		return domain.OperationFailed(detail, err)
	}

	var connErr *pgconn.ConnectError
	var netErr net.Error
	if errors.As(err, &connErr) || errors.As(err, &netErr) {
		return domain.ConnectionError(detail, err)
	}
	return domain.OperationFailed(detail, err)
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}
