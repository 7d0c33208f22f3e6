// Package metrics holds the Prometheus collectors shared by the server,
// the vector stores and the embedding providers.
package metrics

import (
	"errors"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	embeddingOnce sync.Once
	vectordbOnce  sync.Once
)

// register adds collectors to the default registerer. A collector that is
// already registered (another process component or a test got there first)
// is left in place.
func register(cs ...prometheus.Collector) {
	for _, c := range cs {
		if err := prometheus.Register(c); err != nil {
			var are prometheus.AlreadyRegisteredError
			if errors.As(err, &are) {
				continue
			}
			panic(err)
		}
	}
}
