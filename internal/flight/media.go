package flight

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"example.com/autellog/internal/autelfr"
	"example.com/autellog/internal/common"
)

// SearchPath is one directory scanned for media. It mirrors
// config.MediaSearchPath so this package does not import config.
type SearchPath struct {
	Path      string
	Glob      string
	Recursive bool
}

// LocateMedia fills MediaFile.Path for every media file whose name is
// found under the search paths of its kind. Names match case-insensitively
// and the first hit wins. Missing directories are logged and skipped. It
// returns the number of files resolved.
func (f *Flight) LocateMedia(videos, images []SearchPath) (int, error) {
	index := map[autelfr.Kind]map[string]string{}
	for kind, paths := range map[autelfr.Kind][]SearchPath{autelfr.KindVideo: videos, autelfr.KindImage: images} {
		files, err := indexFiles(paths)
		if err != nil {
			return 0, err
		}
		index[kind] = files
	}
	found := 0
	for i := range f.Media {
		m := &f.Media[i]
		if m.Filename == "" {
			continue
		}
		if p, ok := index[m.Kind][strings.ToUpper(m.Filename)]; ok {
			m.Path = p
			found++
		}
	}
	return found, nil
}

func indexFiles(paths []SearchPath) (map[string]string, error) {
	files := map[string]string{}
	for _, sp := range paths {
		glob := sp.Glob
		if glob == "" {
			glob = "*"
		}
		err := scanDir(sp, func(dir, name string) error {
			ok, err := filepath.Match(glob, name)
			if err != nil {
				return fmt.Errorf("glob %q: %w", glob, err)
			}
			key := strings.ToUpper(name)
			if _, seen := files[key]; ok && !seen {
				files[key] = filepath.Join(dir, name)
			}
			return nil
		})
		if errors.Is(err, fs.ErrNotExist) {
			common.Logf("media search path %s: %v", sp.Path, err)
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("media search path %s: %w", sp.Path, err)
		}
	}
	return files, nil
}

// scanDir calls fn with the directory and name of each regular file under
// sp.
func scanDir(sp SearchPath, fn func(dir, name string) error) error {
	if !sp.Recursive {
		entries, err := os.ReadDir(sp.Path)
		if err != nil {
			return err
		}
		for _, e := range entries {
			if !e.Type().IsRegular() {
				continue
			}
			if err := fn(sp.Path, e.Name()); err != nil {
				return err
			}
		}
		return nil
	}
	return filepath.WalkDir(sp.Path, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}
		return fn(filepath.Dir(path), d.Name())
	})
}
