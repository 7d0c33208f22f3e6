package redis

import (
	"errors"
	"io"
	"net"

	"github.com/redis/rueidis"

	store "github.com/kailas-cloud/kbase/internal/db"
	"github.com/kailas-cloud/kbase/internal/domain"
	"github.com/kailas-cloud/kbase/internal/vectordb"
)

// classify maps store errors into the backend taxonomy. Server replies are
// operation failures; transport failures are connection errors.
func classify(detail string, err error) error {
	if err == nil {
		return nil
	}
	if domain.KindOf(err) != nil {
		return err
	}
	if errors.Is(err, store.ErrTextSearchMissing) {
		return domain.NotImplemented(detail + " without text search")
	}
	if _, ok := rueidis.IsRedisErr(err); ok {
		return domain.OperationFailed(detail, err)
	}

	var netErr net.Error
	if errors.Is(err, rueidis.ErrClosing) || errors.Is(err, io.EOF) ||
		errors.Is(err, io.ErrUnexpectedEOF) || errors.As(err, &netErr) {
		return domain.ConnectionError(detail, err)
	}
	return domain.OperationFailed(detail, err)
}

// writeError maps a failed batch write. A key created by someone else since
// the pre-check is a conflict on its identity.
func writeError(err error, keys, identities []string) error {
	var exists *store.KeyExistsError
	if errors.As(err, &exists) {
		for i, key := range keys {
			if key == exists.Key {
				return vectordb.ConflictError(identities[i])
			}
		}
	}
	if errors.Is(err, store.ErrWriteConflict) {
		return domain.OperationFailed("insert raced with a concurrent write", err)
	}
	return classify("write documents", err)
}
