package loader

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"slices"
	"sort"
	"strings"
)

// Source enumerates and reads corpus files. Paths are slash-separated and
// relative to the source root; they become the chunks' source identifier.
type Source interface {
	// List returns the files whose extension is in exts, sorted.
	List(ctx context.Context, exts []string) ([]string, error)
	Read(ctx context.Context, path string) ([]byte, error)
	// Location describes the source for logs.
	Location() string
}

// DirSource reads files below a local directory.
type DirSource struct {
	fsys fs.FS
	root string
}

var _ Source = (*DirSource)(nil)

// NewDirSource returns a Source rooted at dir. The directory must exist.
func NewDirSource(dir string) (*DirSource, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("documents directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("documents directory: %s is not a directory", dir)
	}
	return &DirSource{fsys: os.DirFS(dir), root: dir}, nil
}

func (s *DirSource) Location() string {
	return s.root
}

func (s *DirSource) List(ctx context.Context, exts []string) ([]string, error) {
	var files []string
	err := fs.WalkDir(s.fsys, ".", func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() {
			if p != "." && strings.HasPrefix(d.Name(), ".") {
				return fs.SkipDir
			}
			return nil
		}
		if MatchesExtension(p, exts) {
			files = append(files, p)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", s.root, err)
	}
	sort.Strings(files)
	return files, nil
}

func (s *DirSource) Read(_ context.Context, p string) ([]byte, error) {
	data, err := fs.ReadFile(s.fsys, p)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", filepath.Join(s.root, filepath.FromSlash(p)), err)
	}
	return data, nil
}

// MatchesExtension reports whether name ends in one of exts, case-insensitively.
func MatchesExtension(name string, exts []string) bool {
	return slices.Contains(exts, strings.ToLower(path.Ext(name)))
}
