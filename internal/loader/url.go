package loader

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"

	"go.uber.org/zap"

	"github.com/kailas-cloud/kbase/internal/domain/knowledge"
)

// URL fetches one page, waiting on the loader's rate limiter first. HTML
// pages go through HTML, text/plain and markdown through Text.
func (l *Loader) URL(ctx context.Context, rawURL string) (*knowledge.KnowledgeBase, error) {
	if err := l.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("fetch %s: %w", rawURL, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", rawURL, err)
	}
	resp, err := l.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", rawURL, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch %s: status %d", rawURL, resp.StatusCode)
	}

	l.logger.Debug("Fetched page",
		zap.String("url", rawURL),
		zap.String("content_type", resp.Header.Get("Content-Type")),
	)

	body := io.LimitReader(resp.Body, maxPageBytes)
	mediaType, _, _ := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	switch mediaType {
	case "text/plain", "text/markdown":
		data, err := io.ReadAll(body)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", rawURL, err)
		}
		return l.Text(rawURL, string(data))
	default:
		return l.HTML(rawURL, body)
	}
}
