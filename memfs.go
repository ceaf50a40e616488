package assetcompress

import (
	"bytes"
	"errors"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/absfs/absfs"
)

// normalizePath normalizes a path for consistent storage/lookup.
// Paths are slash separated and relative to the filesystem root.
func normalizePath(name string) string {
	name = path.Clean(filepath.ToSlash(name))
	name = strings.TrimPrefix(name, "/")
	if name == "" {
		name = "."
	}
	return name
}

// memFS is an in-memory filesystem. Directories are implicit parents of
// files plus any created with Mkdir.
type memFS struct {
	files map[string]*memNode
	dirs  map[string]time.Time
	mu    sync.RWMutex
}

// memNode is the shared content of a file; handles point at it.
type memNode struct {
	data    []byte
	mode    fs.FileMode
	modTime time.Time
}

// NewMemFS creates a new in-memory filesystem
func NewMemFS() absfs.Filer {
	return &memFS{
		files: make(map[string]*memNode),
		dirs:  map[string]time.Time{".": time.Now()},
	}
}

// isDir reports whether name is a directory. Callers hold mu.
func (mfs *memFS) isDir(name string) bool {
	if _, ok := mfs.dirs[name]; ok {
		return true
	}
	prefix := name + "/"
	for p := range mfs.files {
		if strings.HasPrefix(p, prefix) {
			return true
		}
	}
	return false
}

func (mfs *memFS) OpenFile(name string, flag int, perm fs.FileMode) (absfs.File, error) {
	mfs.mu.Lock()
	defer mfs.mu.Unlock()

	name = normalizePath(name)

	if mfs.isDir(name) {
		if flag&(os.O_WRONLY|os.O_RDWR) != 0 {
			return nil, &fs.PathError{Op: "open", Path: name, Err: errIsDir}
		}
		return &memDir{mfs: mfs, name: name}, nil
	}

	node, exists := mfs.files[name]
	if !exists {
		if flag&os.O_CREATE == 0 {
			return nil, &fs.PathError{Op: "open", Path: name, Err: fs.ErrNotExist}
		}
		if dir := path.Dir(name); !mfs.isDir(dir) {
			return nil, &fs.PathError{Op: "open", Path: name, Err: fs.ErrNotExist}
		}
		node = &memNode{mode: perm, modTime: time.Now()}
		mfs.files[name] = node
	} else if flag&(os.O_CREATE|os.O_EXCL) == os.O_CREATE|os.O_EXCL {
		return nil, &fs.PathError{Op: "open", Path: name, Err: fs.ErrExist}
	}

	if flag&os.O_TRUNC != 0 {
		node.data = nil
		node.modTime = time.Now()
	}

	handle := &memFile{
		name:     name,
		node:     node,
		mfs:      mfs,
		writable: flag&(os.O_WRONLY|os.O_RDWR) != 0,
	}
	if flag&os.O_APPEND != 0 {
		handle.pos = int64(len(node.data))
	}
	return handle, nil
}

var (
	errIsDir  = errors.New("is a directory")
	errNotDir = errors.New("not a directory")
)

func (mfs *memFS) Mkdir(name string, perm fs.FileMode) error {
	mfs.mu.Lock()
	defer mfs.mu.Unlock()

	name = normalizePath(name)
	if mfs.isDir(name) {
		return &fs.PathError{Op: "mkdir", Path: name, Err: fs.ErrExist}
	}
	if _, ok := mfs.files[name]; ok {
		return &fs.PathError{Op: "mkdir", Path: name, Err: fs.ErrExist}
	}
	if !mfs.isDir(path.Dir(name)) {
		return &fs.PathError{Op: "mkdir", Path: name, Err: fs.ErrNotExist}
	}
	mfs.dirs[name] = time.Now()
	return nil
}

// MkdirAll creates name and any missing parents.
func (mfs *memFS) MkdirAll(name string, perm fs.FileMode) error {
	mfs.mu.Lock()
	defer mfs.mu.Unlock()

	name = normalizePath(name)
	for p := name; p != "."; p = path.Dir(p) {
		if _, ok := mfs.files[p]; ok {
			return &fs.PathError{Op: "mkdir", Path: p, Err: errNotDir}
		}
	}
	for p := name; p != "."; p = path.Dir(p) {
		if _, ok := mfs.dirs[p]; !ok {
			mfs.dirs[p] = time.Now()
		}
	}
	return nil
}

func (mfs *memFS) Remove(name string) error {
	mfs.mu.Lock()
	defer mfs.mu.Unlock()

	name = normalizePath(name)
	if _, exists := mfs.files[name]; exists {
		delete(mfs.files, name)
		return nil
	}
	if mfs.isDir(name) {
		if len(mfs.children(name)) > 0 {
			return &fs.PathError{Op: "remove", Path: name, Err: fs.ErrExist}
		}
		delete(mfs.dirs, name)
		return nil
	}
	return &fs.PathError{Op: "remove", Path: name, Err: fs.ErrNotExist}
}

func (mfs *memFS) Stat(name string) (fs.FileInfo, error) {
	mfs.mu.RLock()
	defer mfs.mu.RUnlock()
	return mfs.stat(normalizePath(name))
}

// stat describes a normalized name. Callers hold mu.
func (mfs *memFS) stat(name string) (fs.FileInfo, error) {
	if node, exists := mfs.files[name]; exists {
		return node.info(name), nil
	}
	if mfs.isDir(name) {
		return &memFileInfo{
			name:    path.Base(name),
			mode:    fs.ModeDir | 0755,
			modTime: mfs.dirs[name],
		}, nil
	}
	return nil, &fs.PathError{Op: "stat", Path: name, Err: fs.ErrNotExist}
}

// children returns the sorted entries directly under dir. Callers hold mu.
func (mfs *memFS) children(dir string) []fs.DirEntry {
	seen := make(map[string]bool)
	var entries []fs.DirEntry

	add := func(p string) {
		rel := p
		if dir != "." {
			if !strings.HasPrefix(p, dir+"/") {
				return
			}
			rel = strings.TrimPrefix(p, dir+"/")
		}
		if rel == "." || rel == "" {
			return
		}
		child, _, _ := strings.Cut(rel, "/")
		if seen[child] {
			return
		}
		seen[child] = true
		full := child
		if dir != "." {
			full = dir + "/" + child
		}
		if info, err := mfs.stat(full); err == nil {
			entries = append(entries, fs.FileInfoToDirEntry(info))
		}
	}
	for p := range mfs.files {
		add(p)
	}
	for p := range mfs.dirs {
		add(p)
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})
	return entries
}

func (mfs *memFS) ReadDir(name string) ([]fs.DirEntry, error) {
	mfs.mu.RLock()
	defer mfs.mu.RUnlock()

	name = normalizePath(name)
	if !mfs.isDir(name) {
		return nil, &fs.PathError{Op: "readdir", Path: name, Err: fs.ErrNotExist}
	}
	return mfs.children(name), nil
}

func (mfs *memFS) ReadFile(name string) ([]byte, error) {
	mfs.mu.RLock()
	defer mfs.mu.RUnlock()

	name = normalizePath(name)
	node, exists := mfs.files[name]
	if !exists {
		return nil, &fs.PathError{Op: "read", Path: name, Err: fs.ErrNotExist}
	}
	return bytes.Clone(node.data), nil
}

// Sub returns a read-only view of the subtree rooted at dir.
func (mfs *memFS) Sub(dir string) (fs.FS, error) {
	dir = normalizePath(dir)
	mfs.mu.RLock()
	ok := mfs.isDir(dir)
	mfs.mu.RUnlock()
	if !ok {
		return nil, &fs.PathError{Op: "sub", Path: dir, Err: fs.ErrNotExist}
	}
	return &memSubFS{mfs: mfs, dir: dir}, nil
}

// Rename renames a file
func (mfs *memFS) Rename(oldpath, newpath string) error {
	mfs.mu.Lock()
	defer mfs.mu.Unlock()

	oldpath = normalizePath(oldpath)
	newpath = normalizePath(newpath)

	node, exists := mfs.files[oldpath]
	if !exists {
		return &fs.PathError{Op: "rename", Path: oldpath, Err: fs.ErrNotExist}
	}
	node.modTime = time.Now()
	mfs.files[newpath] = node
	delete(mfs.files, oldpath)
	return nil
}

// Chmod changes file permissions
func (mfs *memFS) Chmod(name string, mode os.FileMode) error {
	mfs.mu.Lock()
	defer mfs.mu.Unlock()

	name = normalizePath(name)
	node, exists := mfs.files[name]
	if !exists {
		return &fs.PathError{Op: "chmod", Path: name, Err: fs.ErrNotExist}
	}
	node.mode = mode
	return nil
}

// Chtimes changes file access and modification times
func (mfs *memFS) Chtimes(name string, atime time.Time, mtime time.Time) error {
	mfs.mu.Lock()
	defer mfs.mu.Unlock()

	name = normalizePath(name)
	node, exists := mfs.files[name]
	if !exists {
		return &fs.PathError{Op: "chtimes", Path: name, Err: fs.ErrNotExist}
	}
	node.modTime = mtime
	return nil
}

// Chown changes file owner (no-op for memFS)
func (mfs *memFS) Chown(name string, uid, gid int) error {
	mfs.mu.RLock()
	defer mfs.mu.RUnlock()

	name = normalizePath(name)
	if _, exists := mfs.files[name]; !exists && !mfs.isDir(name) {
		return &fs.PathError{Op: "chown", Path: name, Err: fs.ErrNotExist}
	}
	return nil
}

func (n *memNode) info(name string) *memFileInfo {
	return &memFileInfo{
		name:    path.Base(name),
		size:    int64(len(n.data)),
		mode:    n.mode,
		modTime: n.modTime,
	}
}

type memFileInfo struct {
	name    string
	size    int64
	mode    fs.FileMode
	modTime time.Time
}

func (fi *memFileInfo) Name() string       { return fi.name }
func (fi *memFileInfo) Size() int64        { return fi.size }
func (fi *memFileInfo) Mode() fs.FileMode  { return fi.mode }
func (fi *memFileInfo) ModTime() time.Time { return fi.modTime }
func (fi *memFileInfo) IsDir() bool        { return fi.mode.IsDir() }
func (fi *memFileInfo) Sys() interface{}   { return nil }

// ============================================================================
// memFile - open file handle
// ============================================================================

type memFile struct {
	name     string
	node     *memNode
	mfs      *memFS
	pos      int64
	writable bool
	closed   bool
}

func (mf *memFile) Name() string {
	return mf.name
}

func (mf *memFile) Read(p []byte) (n int, err error) {
	n, err = mf.ReadAt(p, mf.pos)
	mf.pos += int64(n)
	if err == io.EOF && n > 0 {
		err = nil
	}
	return n, err
}

func (mf *memFile) ReadAt(b []byte, off int64) (n int, err error) {
	mf.mfs.mu.RLock()
	defer mf.mfs.mu.RUnlock()

	if mf.closed {
		return 0, fs.ErrClosed
	}
	if off < 0 {
		return 0, errors.New("negative offset")
	}
	if off >= int64(len(mf.node.data)) {
		return 0, io.EOF
	}
	n = copy(b, mf.node.data[off:])
	if n < len(b) {
		return n, io.EOF
	}
	return n, nil
}

func (mf *memFile) Write(p []byte) (n int, err error) {
	n, err = mf.WriteAt(p, mf.pos)
	mf.pos += int64(n)
	return n, err
}

func (mf *memFile) WriteAt(b []byte, off int64) (n int, err error) {
	mf.mfs.mu.Lock()
	defer mf.mfs.mu.Unlock()

	if mf.closed {
		return 0, fs.ErrClosed
	}
	if !mf.writable {
		return 0, &fs.PathError{Op: "write", Path: mf.name, Err: fs.ErrPermission}
	}
	if off < 0 {
		return 0, errors.New("negative offset")
	}

	end := int(off) + len(b)
	if end > len(mf.node.data) {
		grown := make([]byte, end)
		copy(grown, mf.node.data)
		mf.node.data = grown
	}
	n = copy(mf.node.data[off:], b)
	mf.node.modTime = time.Now()
	return n, nil
}

func (mf *memFile) WriteString(s string) (n int, err error) {
	return mf.Write([]byte(s))
}

func (mf *memFile) Close() error {
	mf.closed = true
	return nil
}

func (mf *memFile) Seek(offset int64, whence int) (int64, error) {
	if mf.closed {
		return 0, fs.ErrClosed
	}

	mf.mfs.mu.RLock()
	size := int64(len(mf.node.data))
	mf.mfs.mu.RUnlock()

	var newPos int64
	switch whence {
	case io.SeekStart:
		newPos = offset
	case io.SeekCurrent:
		newPos = mf.pos + offset
	case io.SeekEnd:
		newPos = size + offset
	default:
		return 0, errors.New("invalid whence")
	}
	if newPos < 0 {
		return 0, errors.New("negative position")
	}
	mf.pos = newPos
	return newPos, nil
}

func (mf *memFile) Stat() (fs.FileInfo, error) {
	mf.mfs.mu.RLock()
	defer mf.mfs.mu.RUnlock()
	return mf.node.info(mf.name), nil
}

func (mf *memFile) Sync() error {
	return nil
}

func (mf *memFile) Truncate(size int64) error {
	mf.mfs.mu.Lock()
	defer mf.mfs.mu.Unlock()

	if mf.closed {
		return fs.ErrClosed
	}
	if size < 0 {
		return errors.New("negative size")
	}
	if size <= int64(len(mf.node.data)) {
		mf.node.data = mf.node.data[:size]
	} else {
		grown := make([]byte, size)
		copy(grown, mf.node.data)
		mf.node.data = grown
	}
	mf.node.modTime = time.Now()
	return nil
}

// Readdir fails: not a directory
func (mf *memFile) Readdir(n int) ([]os.FileInfo, error) {
	return nil, os.ErrInvalid
}

func (mf *memFile) Readdirnames(n int) ([]string, error) {
	return nil, os.ErrInvalid
}

func (mf *memFile) ReadDir(n int) ([]fs.DirEntry, error) {
	return nil, os.ErrInvalid
}

// ============================================================================
// memDir - open directory handle
// ============================================================================

type memDir struct {
	mfs  *memFS
	name string
	read int // entries already returned
}

func (md *memDir) Read(p []byte) (n int, err error) {
	return 0, os.ErrInvalid
}

func (md *memDir) Write(p []byte) (n int, err error) {
	return 0, os.ErrInvalid
}

func (md *memDir) ReadAt(b []byte, off int64) (n int, err error) {
	return 0, os.ErrInvalid
}

func (md *memDir) WriteAt(b []byte, off int64) (n int, err error) {
	return 0, os.ErrInvalid
}

func (md *memDir) WriteString(s string) (n int, err error) {
	return 0, os.ErrInvalid
}

func (md *memDir) Seek(offset int64, whence int) (int64, error) {
	return 0, os.ErrInvalid
}

func (md *memDir) Truncate(size int64) error {
	return os.ErrInvalid
}

func (md *memDir) Close() error {
	return nil
}

func (md *memDir) Sync() error {
	return nil
}

func (md *memDir) Name() string {
	return md.name
}

func (md *memDir) Stat() (fs.FileInfo, error) {
	return md.mfs.Stat(md.name)
}

func (md *memDir) ReadDir(n int) ([]fs.DirEntry, error) {
	md.mfs.mu.RLock()
	entries := md.mfs.children(md.name)
	md.mfs.mu.RUnlock()

	if md.read > len(entries) {
		md.read = len(entries)
	}
	entries = entries[md.read:]
	if n > 0 {
		if len(entries) == 0 {
			return nil, io.EOF
		}
		entries = entries[:min(n, len(entries))]
	}
	md.read += len(entries)
	return entries, nil
}

func (md *memDir) Readdir(n int) ([]os.FileInfo, error) {
	entries, err := md.ReadDir(n)
	infos := make([]os.FileInfo, 0, len(entries))
	for _, e := range entries {
		if info, ierr := e.Info(); ierr == nil {
			infos = append(infos, info)
		}
	}
	return infos, err
}

func (md *memDir) Readdirnames(n int) ([]string, error) {
	entries, err := md.ReadDir(n)
	names := make([]string, len(entries))
	for i, e := range entries {
		names[i] = e.Name()
	}
	return names, err
}

// ============================================================================
// memSubFS - read-only fs.FS view of a subtree
// ============================================================================

type memSubFS struct {
	mfs *memFS
	dir string
}

func (s *memSubFS) full(name string) string {
	if s.dir == "." {
		return name
	}
	return path.Join(s.dir, name)
}

func (s *memSubFS) Open(name string) (fs.File, error) {
	if !fs.ValidPath(name) {
		return nil, &fs.PathError{Op: "open", Path: name, Err: fs.ErrInvalid}
	}
	return s.mfs.OpenFile(s.full(name), os.O_RDONLY, 0)
}

func (s *memSubFS) ReadFile(name string) ([]byte, error) {
	if !fs.ValidPath(name) {
		return nil, &fs.PathError{Op: "readfile", Path: name, Err: fs.ErrInvalid}
	}
	return s.mfs.ReadFile(s.full(name))
}

func (s *memSubFS) ReadDir(name string) ([]fs.DirEntry, error) {
	if !fs.ValidPath(name) {
		return nil, &fs.PathError{Op: "readdir", Path: name, Err: fs.ErrInvalid}
	}
	return s.mfs.ReadDir(s.full(name))
}
