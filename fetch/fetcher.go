package fetch

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-crypt/x/blake2b"
	"github.com/poiesic/finrag/core"
)

// ErrContentDirRequired is returned when a Fetcher is created without a directory.
var ErrContentDirRequired = errors.New("content directory required")

// Fetcher downloads resolved documents into the local content store.
// Files are named after the sanitized document name; a later download of the
// same name replaces the earlier file.
type Fetcher struct {
	client     *http.Client
	contentDir string
	userAgent  string
	maxBytes   int64
	logger     *slog.Logger
}

// Option configures a Fetcher.
type Option func(*Fetcher) error

// WithHTTPClient sets the HTTP client used for downloads.
func WithHTTPClient(client *http.Client) Option {
	return func(f *Fetcher) error {
		if client == nil {
			return errors.New("http client cannot be nil")
		}
		f.client = client
		return nil
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(agent string) Option {
	return func(f *Fetcher) error {
		f.userAgent = agent
		return nil
	}
}

// WithMaxBytes caps the size of a single download. Zero means unlimited.
func WithMaxBytes(n int64) Option {
	return func(f *Fetcher) error {
		if n < 0 {
			return fmt.Errorf("max bytes cannot be negative: %d", n)
		}
		f.maxBytes = n
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(f *Fetcher) error {
		if logger == nil {
			logger = slog.Default()
		}
		f.logger = logger
		return nil
	}
}

// NewFetcher creates a fetcher writing into contentDir, creating it if needed.
func NewFetcher(contentDir string, opts ...Option) (*Fetcher, error) {
	if contentDir == "" {
		return nil, ErrContentDirRequired
	}
	if err := os.MkdirAll(contentDir, 0755); err != nil {
		return nil, err
	}

	f := &Fetcher{
		client:     &http.Client{Timeout: 5 * time.Minute},
		contentDir: contentDir,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(f); err != nil {
			return nil, err
		}
	}
	f.logger = f.logger.With("component", "document-fetcher")
	return f, nil
}

// Path returns the local path a document with the given name is stored at.
func (f *Fetcher) Path(name string) string {
	return filepath.Join(f.contentDir, SanitizeName(name))
}

// Fetch downloads doc and stores it under its sanitized name. Every failure
// wraps core.ErrFetchFailed and leaves any previous file untouched.
func (f *Fetcher) Fetch(ctx context.Context, doc core.ResolvedDocument) (*core.FetchedFile, error) {
	if strings.TrimSpace(doc.Name) == "" {
		return nil, fmt.Errorf("%w: document has no name", core.ErrFetchFailed)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, doc.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: build request: %w", core.ErrFetchFailed, err)
	}
	if f.userAgent != "" {
		req.Header.Set("User-Agent", f.userAgent)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", core.ErrFetchFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: HTTP %d for %s", core.ErrFetchFailed, resp.StatusCode, doc.URL)
	}

	var body io.Reader = resp.Body
	if f.maxBytes > 0 {
		body = io.LimitReader(resp.Body, f.maxBytes+1)
	}

	path := f.Path(doc.Name)
	size, checksum, err := f.writeAtomic(path, body)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", core.ErrFetchFailed, doc.URL, err)
	}

	f.logger.Info("downloaded document", "name", doc.Name, "url", doc.URL, "bytes", size)
	return &core.FetchedFile{
		Document: doc,
		Path:     path,
		Size:     size,
		Checksum: checksum,
	}, nil
}

// writeAtomic streams r into a temporary file next to path and renames it
// into place once the copy succeeds.
func (f *Fetcher) writeAtomic(path string, r io.Reader) (int64, string, error) {
	tmp, err := os.CreateTemp(f.contentDir, ".fetch-*")
	if err != nil {
		return 0, "", err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // no-op after a successful rename

	h, _ := blake2b.New256(nil)
	size, err := io.Copy(io.MultiWriter(tmp, h), r)
	if err != nil {
		tmp.Close()
		return 0, "", err
	}
	if f.maxBytes > 0 && size > f.maxBytes {
		tmp.Close()
		return 0, "", fmt.Errorf("document exceeds %d bytes", f.maxBytes)
	}
	if err := tmp.Close(); err != nil {
		return 0, "", err
	}
	if err := os.Rename(tmpName, path); err != nil {
		return 0, "", err
	}
	return size, hex.EncodeToString(h.Sum(nil)), nil
}

// SanitizeName maps a document name to a file name: path separators and NUL
// become "_", surrounding whitespace is trimmed and ".pdf" is appended when
// the name does not already end with it.
func SanitizeName(name string) string {
	name = strings.TrimSpace(name)
	name = strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', 0:
			return '_'
		}
		return r
	}, name)
	if !strings.HasSuffix(strings.ToLower(name), ".pdf") {
		name += ".pdf"
	}
	return name
}
