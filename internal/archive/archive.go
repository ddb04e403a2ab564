// Package archive pulls a scene config out of an uploaded scene bundle (zip, tar, 7z, rar or a
// bare JSON file).
package archive

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"mime/multipart"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/mholt/archives"
	pkgerrors "github.com/pkg/errors"
)

var (
	// ErrNoSceneConfig is returned when a bundle carries no JSON file.
	ErrNoSceneConfig = errors.New("bundle contains no scene config")
	// ErrTooLarge is returned when the scene file exceeds the size limit.
	ErrTooLarge = errors.New("scene config exceeds size limit")
)

// preferredNames rank scene files inside a bundle; any other .json file comes after them.
var preferredNames = []string{"scene.json", "scene-config.json", "scene_config.json", "gallery.json"}

// shouldIgnoreFile reports system and hidden files that bundles pick up from archivers.
func shouldIgnoreFile(name string) bool {
	base := path.Base(name)
	if strings.HasPrefix(base, ".") || strings.HasPrefix(base, "._") {
		return true
	}
	if strings.EqualFold(base, "thumbs.db") {
		return true
	}
	for _, part := range strings.Split(name, "/") {
		if part == "__MACOSX" {
			return true
		}
	}
	return false
}

func rank(name string) int {
	base := strings.ToLower(path.Base(name))
	for i, p := range preferredNames {
		if base == p {
			return i
		}
	}
	return len(preferredNames)
}

// FindSceneConfig opens the bundle at bundlePath and returns the name and contents of the scene
// file it carries. Preferred names win over other JSON files, shallower paths over deeper ones.
func FindSceneConfig(ctx context.Context, bundlePath string, maxSize int64) (string, []byte, error) {
	if strings.EqualFold(filepath.Ext(bundlePath), ".json") {
		f, err := os.Open(bundlePath)
		if err != nil {
			return "", nil, pkgerrors.Wrap(err, "could not open scene file")
		}
		defer f.Close()
		data, err := readLimited(f, maxSize)
		return filepath.Base(bundlePath), data, err
	}

	fsys, err := archives.FileSystem(ctx, bundlePath, nil)
	if err != nil {
		return "", nil, pkgerrors.Wrap(err, "could not open bundle")
	}

	var candidates []string
	err = fs.WalkDir(fsys, ".", func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || shouldIgnoreFile(p) {
			return nil
		}
		if strings.EqualFold(path.Ext(p), ".json") {
			candidates = append(candidates, p)
		}
		return nil
	})
	if err != nil {
		return "", nil, pkgerrors.Wrap(err, "could not read bundle")
	}
	if len(candidates) == 0 {
		return "", nil, ErrNoSceneConfig
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		ri, rj := rank(candidates[i]), rank(candidates[j])
		if ri != rj {
			return ri < rj
		}
		di, dj := strings.Count(candidates[i], "/"), strings.Count(candidates[j], "/")
		if di != dj {
			return di < dj
		}
		return candidates[i] < candidates[j]
	})

	name := candidates[0]
	f, err := fsys.Open(name)
	if err != nil {
		return "", nil, pkgerrors.Wrap(err, "could not open scene file")
	}
	defer f.Close()
	data, err := readLimited(f, maxSize)
	return name, data, err
}

// FindSceneConfigInUpload spools an uploaded bundle to a temporary file, keeping its
// extension so the format can be identified, and runs FindSceneConfig on it.
func FindSceneConfigInUpload(ctx context.Context, fileHeader *multipart.FileHeader, maxSize int64) (string, []byte, error) {
	src, err := fileHeader.Open()
	if err != nil {
		return "", nil, pkgerrors.Wrap(err, "could not open uploaded file")
	}
	defer src.Close()

	tmp, err := os.CreateTemp("", "bundle-*"+filepath.Ext(fileHeader.Filename))
	if err != nil {
		return "", nil, pkgerrors.Wrap(err, "could not create temporary file")
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	_, err = io.Copy(tmp, src)
	tmp.Close()
	if err != nil {
		return "", nil, pkgerrors.Wrap(err, "failed to write uploaded file")
	}
	name, data, err := FindSceneConfig(ctx, tmpPath, maxSize)
	if strings.EqualFold(filepath.Ext(fileHeader.Filename), ".json") {
		name = filepath.Base(fileHeader.Filename)
	}
	return name, data, err
}

func readLimited(r io.Reader, maxSize int64) ([]byte, error) {
	if maxSize <= 0 {
		data, err := io.ReadAll(r)
		if err != nil {
			return nil, pkgerrors.Wrap(err, "could not read scene file")
		}
		return data, nil
	}
	data, err := io.ReadAll(io.LimitReader(r, maxSize+1))
	if err != nil {
		return nil, pkgerrors.Wrap(err, "could not read scene file")
	}
	if int64(len(data)) > maxSize {
		return nil, fmt.Errorf("%w: limit %d bytes", ErrTooLarge, maxSize)
	}
	return data, nil
}
