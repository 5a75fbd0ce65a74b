package scanner

import (
	"bytes"
	"context"
	"crypto/md5"
	"encoding/hex"
	stderrors "errors"
	"fmt"
	"hash"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/util"
	"github.com/opencontainers/go-digest"

	"github.com/input-output-hk/catalyst-forge-libs/assetsync/assettypes"
	"github.com/input-output-hk/catalyst-forge-libs/assetsync/errors"
	"github.com/input-output-hk/catalyst-forge-libs/assetsync/internal/contenttype"
	"github.com/input-output-hk/catalyst-forge-libs/assetsync/internal/metrics"
	"github.com/input-output-hk/catalyst-forge-libs/assetsync/internal/pool"
	"github.com/input-output-hk/catalyst-forge-libs/assetsync/internal/rules"
)

// sniffLen is how much of each file is kept for content sniffing.
const sniffLen = 512

// Stats counts what a scan visited.
type Stats struct {
	// Files is the number of regular files visited
	Files int

	// Included is the number of assets yielded
	Included int

	// Excluded is the number of files dropped by exclude patterns or the ignore file
	Excluded int

	// BelowRules is the number of files no inclusion rule admitted
	BelowRules int

	// Errors is the number of files skipped because they could not be read
	Errors int

	// Bytes is the total size of yielded assets
	Bytes int64

	// MissingRoots lists roots that did not exist
	MissingRoots []string
}

// Scanner walks local roots over a billy filesystem.
// Paths are resolved relative to the filesystem root, which is the scan base.
type Scanner struct {
	filesystem billy.Filesystem
	inclusion  *rules.Inclusion
	matcher    *PatternMatcher
	digest     assettypes.DigestAlgorithm
	logger     *slog.Logger
	metrics    *metrics.Recorder
}

// Option configures a Scanner.
type Option func(*Scanner)

// WithLogger sets the logger used for skipped-file warnings.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Scanner) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithPatternMatcher sets the exclude matcher.
func WithPatternMatcher(pm *PatternMatcher) Option {
	return func(s *Scanner) {
		if pm != nil {
			s.matcher = pm
		}
	}
}

// WithDigest selects the content hash.
func WithDigest(alg assettypes.DigestAlgorithm) Option {
	return func(s *Scanner) {
		if alg != "" {
			s.digest = alg
		}
	}
}

// WithMetrics sets the metrics recorder.
func WithMetrics(r *metrics.Recorder) Option {
	return func(s *Scanner) {
		s.metrics = r
	}
}

// New creates a scanner over filesystem using the given inclusion rules.
func New(filesystem billy.Filesystem, inclusion *rules.Inclusion, opts ...Option) (*Scanner, error) {
	if filesystem == nil {
		return nil, errors.NewError("scanner", errors.ErrInvalidConfig).
			WithMessage("filesystem is required")
	}
	if inclusion == nil {
		return nil, errors.NewError("scanner", errors.ErrInvalidConfig).
			WithMessage("inclusion rules are required")
	}

	s := &Scanner{
		filesystem: filesystem,
		inclusion:  inclusion,
		matcher:    &PatternMatcher{},
		digest:     assettypes.DigestMD5,
		logger:     slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(s)
	}

	if _, err := newHash(s.digest); err != nil {
		return nil, err
	}
	return s, nil
}

// Scan walks every root and returns all included assets in walk order.
func (s *Scanner) Scan(ctx context.Context, roots []assettypes.Root) ([]assettypes.Asset, Stats, error) {
	var assets []assettypes.Asset
	stats, err := s.Walk(ctx, roots, func(a assettypes.Asset) error {
		assets = append(assets, a)
		return nil
	})
	if err != nil {
		return nil, stats, err
	}
	return assets, stats, nil
}

// Walk visits roots in order and calls fn for each included asset.
// Within a root, entries are visited in lexical order. Walking stops when
// fn returns an error or ctx is cancelled.
func (s *Scanner) Walk(ctx context.Context, roots []assettypes.Root, fn func(assettypes.Asset) error) (Stats, error) {
	var stats Stats

	for _, root := range roots {
		rootPath := cleanRoot(root.Path)

		if _, err := s.filesystem.Stat(rootPath); err != nil {
			if isNotExist(err) {
				s.logger.Warn("root does not exist, skipping", "root", root.Path)
				stats.MissingRoots = append(stats.MissingRoots, root.Path)
				continue
			}
			return stats, errors.NewError("scan", fmt.Errorf("%w: %w", errors.ErrScan, err)).
				WithKey(root.Path).
				WithMessage("failed to stat root")
		}

		err := util.Walk(s.filesystem, rootPath, func(p string, info os.FileInfo, err error) error {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			relPath := filepath.ToSlash(p)

			if err != nil {
				s.skip(&stats, relPath, err)
				if info != nil && info.IsDir() {
					return filepath.SkipDir
				}
				return nil
			}

			if info.IsDir() {
				if relPath != rootPath && s.matcher.Excluded(relPath) {
					return filepath.SkipDir
				}
				return nil
			}

			if info.Mode()&os.ModeSymlink != 0 {
				target, statErr := s.filesystem.Stat(p)
				if statErr != nil {
					s.skip(&stats, relPath, statErr)
					return nil
				}
				info = target
			}
			if !info.Mode().IsRegular() {
				return nil
			}
			stats.Files++

			if s.matcher.Excluded(relPath) {
				stats.Excluded++
				return nil
			}

			rule, ok := s.inclusion.Match(relPath, info.Size())
			if !ok {
				stats.BelowRules++
				return nil
			}

			asset, hashErr := s.hashFile(p, relPath)
			if hashErr != nil {
				s.skip(&stats, relPath, hashErr)
				return nil
			}
			asset.Root = root.Path
			asset.Priority = root.Priority
			asset.Rule = rule

			stats.Included++
			stats.Bytes += asset.Size
			s.metrics.FileScanned()
			return fn(asset)
		})
		if err != nil {
			if stderrors.Is(err, context.Canceled) || stderrors.Is(err, context.DeadlineExceeded) {
				return stats, errors.NewError("scan", fmt.Errorf("%w: %w", errors.ErrCancelled, err)).
					WithKey(root.Path)
			}
			return stats, err
		}
	}

	return stats, nil
}

// hashFile streams the file through the digest in pooled chunks.
func (s *Scanner) hashFile(p, relPath string) (assettypes.Asset, error) {
	f, err := s.filesystem.Open(p)
	if err != nil {
		return assettypes.Asset{}, err
	}
	defer func() { _ = f.Close() }()

	h, err := newHash(s.digest)
	if err != nil {
		return assettypes.Asset{}, err
	}

	buf := pool.GetChunk()
	defer pool.PutChunk(buf)

	var (
		size int64
		head []byte
	)
	for {
		n, readErr := f.Read(buf)
		if n > 0 {
			if len(head) < sniffLen {
				head = append(head, buf[:min(n, sniffLen-len(head))]...)
			}
			_, _ = h.Write(buf[:n])
			size += int64(n)
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			return assettypes.Asset{}, readErr
		}
	}

	return assettypes.Asset{
		AbsPath:     p,
		RelPath:     relPath,
		Size:        size,
		Digest:      hex.EncodeToString(h.Sum(nil)),
		ContentType: contenttype.Detect(relPath, bytes.NewReader(head)),
	}, nil
}

func (s *Scanner) skip(stats *Stats, relPath string, err error) {
	stats.Errors++
	s.metrics.ScanError()
	s.logger.Warn("skipping unreadable file",
		"path", relPath,
		"error", errors.NewError("scan", fmt.Errorf("%w: %w", errors.ErrScan, err)).WithKey(relPath))
}

func newHash(alg assettypes.DigestAlgorithm) (hash.Hash, error) {
	switch alg {
	case assettypes.DigestMD5:
		return md5.New(), nil
	case assettypes.DigestSHA256:
		return digest.SHA256.Hash(), nil
	default:
		return nil, errors.NewError("scanner", errors.ErrInvalidConfig).
			WithMessage(fmt.Sprintf("unsupported digest algorithm %q", alg))
	}
}

func cleanRoot(p string) string {
	cleaned := path.Clean(filepath.ToSlash(p))
	return strings.TrimPrefix(cleaned, "./")
}

func isNotExist(err error) bool {
	return stderrors.Is(err, fs.ErrNotExist)
}
