package archive

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/couchcryptid/crash-data-etl/internal/domain"
	"github.com/couchcryptid/crash-data-etl/internal/observability"
)

// Index lists the archives available at the source.
type Index interface {
	Discover(ctx context.Context) ([]domain.ArchiveRef, error)
}

// Fetcher streams one archive's bytes.
type Fetcher interface {
	Fetch(ctx context.Context, ref domain.ArchiveRef, w io.Writer) error
}

// Source is both an Index and a Fetcher; portal.Client implements it.
type Source interface {
	Index
	Fetcher
}

// Store keeps local copies of the source archives in one directory.
type Store struct {
	source       Source
	dir          string
	latestMaxAge time.Duration
	logger       *slog.Logger
	metrics      *observability.Metrics
}

// NewStore creates a Store writing into dir. A positive latestMaxAge makes
// the latest archive be fetched again once its local copy is older than that.
func NewStore(source Source, dir string, latestMaxAge time.Duration, logger *slog.Logger, metrics *observability.Metrics) *Store {
	return &Store{
		source:       source,
		dir:          dir,
		latestMaxAge: latestMaxAge,
		logger:       logger,
		metrics:      metrics,
	}
}

// Dir returns the directory archives are stored in.
func (s *Store) Dir() string { return s.dir }

// Path returns the local path for ref.
func (s *Store) Path(ref domain.ArchiveRef) string {
	return filepath.Join(s.dir, ref.Name)
}

// Sync discovers the source archives and makes sure each is stored locally.
// Paths are returned in discovery order.
func (s *Store) Sync(ctx context.Context) ([]string, error) {
	refs, err := s.source.Discover(ctx)
	if err != nil {
		return nil, err
	}
	s.metrics.ArchivesDiscovered.Set(float64(len(refs)))

	paths := make([]string, 0, len(refs))
	for _, ref := range refs {
		p, err := s.EnsureDownloaded(ctx, ref)
		if err != nil {
			return nil, err
		}
		paths = append(paths, p)
	}
	return paths, nil
}

// EnsureDownloaded returns the local path of ref, fetching it first when it
// is not stored yet.
func (s *Store) EnsureDownloaded(ctx context.Context, ref domain.ArchiveRef) (string, error) {
	target := s.Path(ref)

	info, err := os.Stat(target)
	switch {
	case err == nil:
		if !s.stale(ref, info) {
			s.metrics.ArchiveDownloads.WithLabelValues("present").Inc()
			return target, nil
		}
		s.logger.Info("refreshing latest archive", "archive", ref.Name, "age", clock.Since(info.ModTime()))
	case !errors.Is(err, fs.ErrNotExist):
		return "", fmt.Errorf("stat %s: %w", target, err)
	}

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", fmt.Errorf("create archive dir: %w", err)
	}

	start := clock.Now()
	if err := s.download(ctx, ref, target); err != nil {
		s.metrics.ArchiveDownloads.WithLabelValues("error").Inc()
		return "", err
	}

	outcome := "downloaded"
	if info != nil {
		outcome = "refreshed"
	}
	s.metrics.ArchiveDownloads.WithLabelValues(outcome).Inc()
	s.logger.Info("archive downloaded", "archive", ref.Name, "latest", ref.Latest, "duration", clock.Since(start))
	return target, nil
}

func (s *Store) stale(ref domain.ArchiveRef, info fs.FileInfo) bool {
	if !ref.Latest || s.latestMaxAge <= 0 {
		return false
	}
	return clock.Since(info.ModTime()) > s.latestMaxAge
}

// download writes to a temp file and renames it into place so a failed or
// interrupted fetch never leaves a truncated archive behind.
func (s *Store) download(ctx context.Context, ref domain.ArchiveRef, target string) error {
	tmp, err := os.CreateTemp(s.dir, ref.Name+".*.part")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name()) //nolint:errcheck // no-op after a successful rename

	if err := s.source.Fetch(ctx, ref, tmp); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", tmp.Name(), err)
	}
	if err := os.Rename(tmp.Name(), target); err != nil {
		return fmt.Errorf("store %s: %w", ref.Name, err)
	}
	return nil
}
