package assetcompress

import (
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/absfs/absfs"
)

// osFS is an absfs.Filer over the host filesystem. Names may use either
// slash or host separators.
type osFS struct{}

// NewOSFS returns a filer backed by the host filesystem.
func NewOSFS() absfs.Filer {
	return osFS{}
}

func native(name string) string {
	return filepath.FromSlash(name)
}

// OpenFile opens a file with specified flags and permissions
func (osFS) OpenFile(name string, flag int, perm fs.FileMode) (absfs.File, error) {
	f, err := os.OpenFile(native(name), flag, perm)
	if err != nil {
		return nil, err
	}
	return f, nil
}

// Mkdir creates a directory
func (osFS) Mkdir(name string, perm fs.FileMode) error {
	return os.Mkdir(native(name), perm)
}

// MkdirAll creates a directory and any missing parents
func (osFS) MkdirAll(name string, perm fs.FileMode) error {
	return os.MkdirAll(native(name), perm)
}

// Remove removes a file or empty directory
func (osFS) Remove(name string) error {
	return os.Remove(native(name))
}

// Rename renames a file
func (osFS) Rename(oldpath, newpath string) error {
	return os.Rename(native(oldpath), native(newpath))
}

// Stat returns file info
func (osFS) Stat(name string) (fs.FileInfo, error) {
	return os.Stat(native(name))
}

// Chmod changes file permissions
func (osFS) Chmod(name string, mode fs.FileMode) error {
	return os.Chmod(native(name), mode)
}

// Chtimes changes file times
func (osFS) Chtimes(name string, atime time.Time, mtime time.Time) error {
	return os.Chtimes(native(name), atime, mtime)
}

// Chown changes file ownership
func (osFS) Chown(name string, uid, gid int) error {
	return os.Chown(native(name), uid, gid)
}

// ReadDir reads a directory
func (osFS) ReadDir(name string) ([]fs.DirEntry, error) {
	return os.ReadDir(native(name))
}

// ReadFile reads an entire file
func (osFS) ReadFile(name string) ([]byte, error) {
	return os.ReadFile(native(name))
}

// Sub returns a read-only view of the subtree rooted at dir
func (osFS) Sub(dir string) (fs.FS, error) {
	info, err := os.Stat(native(dir))
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, &fs.PathError{Op: "sub", Path: dir, Err: errNotDir}
	}
	return os.DirFS(native(dir)), nil
}

// LoadAssets reads every regular file below dir into a new asset map.
// Asset names are slash separated and relative to dir.
func LoadAssets(fsys absfs.Filer, dir string) (*AssetMap, error) {
	assets := NewAssetMap()
	if err := loadDir(fsys, dir, "", assets); err != nil {
		return nil, err
	}
	return assets, nil
}

func loadDir(fsys absfs.Filer, root, rel string, assets *AssetMap) error {
	entries, err := fsys.ReadDir(path.Join(filepath.ToSlash(root), rel))
	if err != nil {
		return fmt.Errorf("failed to read directory %q: %w", path.Join(root, rel), err)
	}
	for _, e := range entries {
		name := path.Join(rel, e.Name())
		switch {
		case e.IsDir():
			if err := loadDir(fsys, root, name, assets); err != nil {
				return err
			}
		case e.Type().IsRegular():
			data, err := fsys.ReadFile(path.Join(filepath.ToSlash(root), name))
			if err != nil {
				return fmt.Errorf("failed to read asset %q: %w", name, err)
			}
			assets.Set(name, RawSource(data))
		}
	}
	return nil
}

// WriteAssets writes the named assets below dir, creating parent
// directories. Query strings are not part of the file name.
func WriteAssets(fsys absfs.Filer, dir string, assets *AssetMap, names []string) error {
	efs := absfs.ExtendFiler(fsys)
	for _, name := range names {
		src, ok := assets.Get(name)
		if !ok {
			return fmt.Errorf("asset %q: %w", name, fs.ErrNotExist)
		}
		data, err := src.Bytes()
		if err != nil {
			return fmt.Errorf("failed to read asset %q: %w", name, err)
		}

		p, _ := splitName(name)
		target := path.Join(filepath.ToSlash(dir), p)
		if err := efs.MkdirAll(path.Dir(target), 0755); err != nil {
			return fmt.Errorf("failed to create directory for %q: %w", name, err)
		}
		if err := writeFile(fsys, target, data); err != nil {
			return fmt.Errorf("failed to write asset %q: %w", name, err)
		}
	}
	return nil
}

func writeFile(fsys absfs.Filer, name string, data []byte) error {
	f, err := fsys.OpenFile(name, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
