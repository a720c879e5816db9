// SPDX-License-Identifier: MIT

// Package bundle packs the firmware tree into a reproducible zip archive.
package bundle

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"slices"
	"strings"
	"time"

	xglog "github.com/asentry/asentry/internal/log"
	"github.com/asentry/asentry/internal/metrics"
	"github.com/google/renameio/v2"
	"github.com/klauspost/compress/zip"
	"github.com/zeebo/blake3"
)

var (
	// ErrMissingEntry is returned when a required firmware path does not exist.
	ErrMissingEntry = errors.New("bundle: missing entry")
	// ErrUnsupportedFile is returned for symlinks and special files.
	ErrUnsupportedFile = errors.New("bundle: unsupported file type")
	// ErrInvalidEntry is returned for absolute entries or entries leaving the source dir.
	ErrInvalidEntry = errors.New("bundle: invalid entry")
)

// DefaultEntries is the firmware file set.
var DefaultEntries = []string{"code.py", "settings.toml", "lib"}

// ModTime is stamped on every archive member.
var ModTime = time.Date(1980, time.January, 1, 0, 0, 0, 0, time.UTC)

// Options configures Build.
type Options struct {
	SourceDir string
	Output    string
	Entries   []string // defaults to DefaultEntries
}

// Result describes a written archive.
type Result struct {
	Path    string   `json:"path"`
	Entries []string `json:"entries"`
	Size    int64    `json:"size"`
	SHA256  string   `json:"sha256"`
	BLAKE3  string   `json:"blake3"`
}

type member struct {
	name string // slash-separated, relative to the source dir
	path string // on disk
	dir  bool
}

// Build archives Entries from SourceDir into Output. Directories are walked
// recursively. The archive is written atomically; on error Output is untouched.
func Build(ctx context.Context, opts Options) (Result, error) {
	logger := xglog.WithComponentFromContext(ctx, "bundle")

	if opts.SourceDir == "" {
		return Result{}, errors.New("bundle: source dir is required")
	}
	if opts.Output == "" {
		return Result{}, errors.New("bundle: output path is required")
	}
	entries := opts.Entries
	if len(entries) == 0 {
		entries = DefaultEntries
	}

	members, err := collect(ctx, opts.SourceDir, entries)
	if err != nil {
		return Result{}, err
	}

	if dir := filepath.Dir(opts.Output); dir != "" {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return Result{}, fmt.Errorf("bundle: create output dir: %w", err)
		}
	}
	pending, err := renameio.NewPendingFile(opts.Output, renameio.WithPermissions(0o644))
	if err != nil {
		return Result{}, fmt.Errorf("bundle: create pending archive: %w", err)
	}
	defer func() {
		if err := pending.Cleanup(); err != nil {
			logger.Debug().Err(err).Msg("cleanup pending archive")
		}
	}()

	sha := sha256.New()
	b3 := blake3.New()
	counter := &countingWriter{}
	if err := writeZip(ctx, io.MultiWriter(pending, sha, b3, counter), members); err != nil {
		return Result{}, err
	}
	if err := pending.CloseAtomicallyReplace(); err != nil {
		return Result{}, fmt.Errorf("bundle: replace archive: %w", err)
	}

	res := Result{
		Path:    opts.Output,
		Entries: make([]string, 0, len(members)),
		Size:    counter.n,
		SHA256:  hex.EncodeToString(sha.Sum(nil)),
		BLAKE3:  hex.EncodeToString(b3.Sum(nil)),
	}
	for _, m := range members {
		res.Entries = append(res.Entries, m.name)
	}
	metrics.SetBundleSize(res.Size)
	logger.Info().
		Str("event", "bundle.built").
		Str("path", res.Path).
		Int("entries", len(res.Entries)).
		Int64("bytes", res.Size).
		Str("sha256", res.SHA256).
		Msg("firmware archive written")
	return res, nil
}

func collect(ctx context.Context, root string, entries []string) ([]member, error) {
	seen := make(map[string]bool)
	var members []member
	add := func(m member) {
		if !seen[m.name] {
			seen[m.name] = true
			members = append(members, m)
		}
	}

	for _, entry := range entries {
		name, err := cleanEntry(entry)
		if err != nil {
			return nil, err
		}
		full := filepath.Join(root, filepath.FromSlash(name))
		info, err := os.Lstat(full)
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrMissingEntry, name)
		}
		if err != nil {
			return nil, fmt.Errorf("bundle: stat %s: %w", name, err)
		}

		switch {
		case info.Mode().IsRegular():
			add(member{name: name, path: full})
		case info.IsDir():
			err := filepath.WalkDir(full, func(p string, d fs.DirEntry, walkErr error) error {
				if walkErr != nil {
					return walkErr
				}
				if err := ctx.Err(); err != nil {
					return err
				}
				rel, err := filepath.Rel(root, p)
				if err != nil {
					return err
				}
				rel = filepath.ToSlash(rel)
				switch {
				case d.IsDir():
					add(member{name: rel + "/", path: p, dir: true})
				case d.Type().IsRegular():
					add(member{name: rel, path: p})
				default:
					return fmt.Errorf("%w: %s", ErrUnsupportedFile, rel)
				}
				return nil
			})
			if err != nil {
				return nil, err
			}
		default:
			return nil, fmt.Errorf("%w: %s", ErrUnsupportedFile, name)
		}
	}

	slices.SortFunc(members, func(a, b member) int { return strings.Compare(a.name, b.name) })
	return members, nil
}

func cleanEntry(entry string) (string, error) {
	slashed := filepath.ToSlash(entry)
	if entry == "" || path.IsAbs(slashed) || filepath.IsAbs(entry) {
		return "", fmt.Errorf("%w: %q", ErrInvalidEntry, entry)
	}
	name := path.Clean(slashed)
	if name == "." || name == ".." || strings.HasPrefix(name, "../") {
		return "", fmt.Errorf("%w: %q", ErrInvalidEntry, entry)
	}
	return name, nil
}

func writeZip(ctx context.Context, w io.Writer, members []member) error {
	zw := zip.NewWriter(w)
	for _, m := range members {
		if err := ctx.Err(); err != nil {
			return err
		}
		hdr := &zip.FileHeader{Name: m.name, Method: zip.Deflate, Modified: ModTime}
		if m.dir {
			hdr.Method = zip.Store
			hdr.SetMode(fs.ModeDir | 0o755)
		} else {
			hdr.SetMode(0o644)
		}
		dst, err := zw.CreateHeader(hdr)
		if err != nil {
			return fmt.Errorf("bundle: add %s: %w", m.name, err)
		}
		if m.dir {
			continue
		}
		if err := copyFile(dst, m.path); err != nil {
			return fmt.Errorf("bundle: add %s: %w", m.name, err)
		}
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("bundle: finish archive: %w", err)
	}
	return nil
}

func copyFile(dst io.Writer, p string) error {
	f, err := os.Open(p)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()
	_, err = io.Copy(dst, f)
	return err
}

// List returns the member names of the archive at p in archive order.
func List(p string) ([]string, error) {
	r, err := zip.OpenReader(p)
	if err != nil {
		return nil, fmt.Errorf("bundle: open %s: %w", p, err)
	}
	defer func() { _ = r.Close() }()

	names := make([]string, 0, len(r.File))
	for _, f := range r.File {
		names = append(names, f.Name)
	}
	return names, nil
}

// Verify checks that the archive at p holds exactly want.
func Verify(p string, want []string) error {
	got, err := List(p)
	if err != nil {
		return err
	}
	if !slices.Equal(got, want) {
		return fmt.Errorf("bundle: archive %s holds %v, want %v", p, got, want)
	}
	return nil
}

type countingWriter struct{ n int64 }

func (c *countingWriter) Write(p []byte) (int, error) {
	c.n += int64(len(p))
	return len(p), nil
}
