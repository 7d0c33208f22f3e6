// Package loader turns text, HTML, directories and web pages into knowledge
// bases of chunked documents.
package loader

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/tmc/langchaingo/textsplitter"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/kailas-cloud/kbase/internal/domain/document"
	"github.com/kailas-cloud/kbase/internal/domain/knowledge"
)

// Metadata keys stamped on every chunk.
const (
	MetaSource = "source"
	MetaChunk  = "chunk"
	MetaTitle  = "title"
)

// Defaults.
const (
	DefaultChunkSize      = 1000
	DefaultRequestsPerSec = 2
	DefaultFetchTimeout   = 30 * time.Second
	maxPageBytes          = 10 << 20
)

// ErrUnsupported is returned for files the loader cannot read.
var ErrUnsupported = errors.New("unsupported file type")

// Config tunes chunking and fetching.
type Config struct {
	ChunkSize      int
	ChunkOverlap   int
	RequestsPerSec float64
	FetchTimeout   time.Duration
	Client         *http.Client // optional, FetchTimeout is ignored when set
	Logger         *zap.Logger
}

// Loader splits sources into documents.
type Loader struct {
	splitter textsplitter.RecursiveCharacter
	client   *http.Client
	limiter  *rate.Limiter
	logger   *zap.Logger
}

// New creates a loader. ChunkOverlap must be smaller than ChunkSize.
func New(cfg Config) (*Loader, error) {
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = DefaultChunkSize
	}
	if cfg.ChunkOverlap < 0 || cfg.ChunkOverlap >= cfg.ChunkSize {
		return nil, fmt.Errorf("chunk overlap %d must be in [0, %d)", cfg.ChunkOverlap, cfg.ChunkSize)
	}
	if cfg.RequestsPerSec <= 0 {
		cfg.RequestsPerSec = DefaultRequestsPerSec
	}
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = DefaultFetchTimeout
	}
	client := cfg.Client
	if client == nil {
		client = &http.Client{Timeout: cfg.FetchTimeout}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Loader{
		splitter: textsplitter.NewRecursiveCharacter(
			textsplitter.WithChunkSize(cfg.ChunkSize),
			textsplitter.WithChunkOverlap(cfg.ChunkOverlap),
		),
		client:  client,
		limiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerSec), 1),
		logger:  logger,
	}, nil
}

// Text chunks plain text. Chunks are named and identified as <source>#<n>.
func (l *Loader) Text(source, text string) (*knowledge.KnowledgeBase, error) {
	kb := knowledge.New(nil)
	if err := l.chunk(kb, source, source, text, nil); err != nil {
		return nil, err
	}
	return kb, nil
}

// chunk appends the chunks of text to kb. name prefixes chunk names, source
// prefixes chunk ids.
func (l *Loader) chunk(kb *knowledge.KnowledgeBase, source, name, text string, meta map[string]any) error {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	parts, err := l.splitter.SplitText(text)
	if err != nil {
		return fmt.Errorf("split %s: %w", source, err)
	}

	n := 0
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		doc := document.New(part,
			document.WithID(fmt.Sprintf("%s#%d", source, n)),
			document.WithName(fmt.Sprintf("%s#%d", name, n)),
		)
		doc.SetMetaValue(MetaSource, source)
		doc.SetMetaValue(MetaChunk, n)
		for k, v := range meta {
			doc.SetMetaValue(k, v)
		}
		kb.AddDocument(doc)
		n++
	}
	return nil
}

// File loads one file, picking the reader by extension.
func (l *Loader) File(path string) (*knowledge.KnowledgeBase, error) {
	return l.file(path, filepath.ToSlash(path))
}

func (l *Loader) file(path, source string) (*knowledge.KnowledgeBase, error) {
	kind, ok := kindOf(path)
	if !ok {
		return nil, fmt.Errorf("%s: %w", path, ErrUnsupported)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	if kind == kindHTML {
		return l.HTML(source, f)
	}
	data, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return l.Text(source, string(data))
}

// Directory walks root in lexical order and loads every supported file into
// one knowledge base. Hidden files and directories are skipped.
func (l *Loader) Directory(ctx context.Context, root string) (*knowledge.KnowledgeBase, error) {
	kb := knowledge.New(nil)
	files := 0

	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if path != root && strings.HasPrefix(d.Name(), ".") {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}
		if _, ok := kindOf(path); !ok {
			l.logger.Debug("Skipping unsupported file", zap.String("path", path))
			return nil
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		part, err := l.file(path, filepath.ToSlash(rel))
		if err != nil {
			return err
		}
		for doc := range part.Documents() {
			kb.AddDocument(doc)
		}
		files++
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", root, err)
	}

	l.logger.Info("Directory loaded",
		zap.String("root", root),
		zap.Int("files", files),
		zap.Int("chunks", kb.Len()),
	)
	return kb, nil
}

// Path loads an http(s) URL, a directory or a single file.
func (l *Loader) Path(ctx context.Context, target string) (*knowledge.KnowledgeBase, error) {
	if strings.HasPrefix(target, "http://") || strings.HasPrefix(target, "https://") {
		return l.URL(ctx, target)
	}
	info, err := os.Stat(target)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", target, err)
	}
	if info.IsDir() {
		return l.Directory(ctx, target)
	}
	return l.File(target)
}

type fileKind int

const (
	kindText fileKind = iota
	kindHTML
)

func kindOf(path string) (fileKind, bool) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".txt", ".md":
		return kindText, true
	case ".html", ".htm":
		return kindHTML, true
	}
	return 0, false
}
