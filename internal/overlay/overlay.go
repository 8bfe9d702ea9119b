// Copyright 2025 scmfs Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package overlay persists materialized inode state to local disk.
//
// Most of a checkout is served straight from content-addressed source
// control storage; only inodes that have been locally modified (or that
// contain modified descendants) are materialized here. Each materialized
// inode is one file at <root>/<shard>/<decimal inode number>, starting
// with a fixed 64-byte header followed by either a serialized directory
// listing or raw file contents.
package overlay

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	billy "github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/gofrs/flock"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"scmfs/internal/common"
)

// RootInode is the inode number of the checkout root directory. Inode 0
// is reserved to mean "not materialized" in directory entries.
const RootInode uint64 = 1

// Overlay is an open overlay store. At most one process holds an
// overlay open at a time; the exclusive lock on the info file is held
// from Open until Close.
//
// Operations on distinct inode numbers are safe to call concurrently.
// Operations on the same inode number are not serialized here; the
// inode layer above provides per-inode exclusion. Directory saves use
// whole-file atomic replace, so concurrent saves of the same inode end
// with one complete listing, never a torn file.
type Overlay struct {
	localDir string
	fs       billy.Filesystem
	lock     *flock.Flock
}

// Open opens the overlay rooted at localDir, formatting it first if it
// does not exist yet. It fails with ErrAlreadyOpen if another process
// holds the overlay, without blocking.
func Open(localDir string) (*Overlay, error) {
	o := &Overlay{
		localDir: localDir,
		fs:       osfs.New(localDir),
	}
	if err := o.initRoot(); err != nil {
		return nil, err
	}

	lock := flock.New(filepath.Join(localDir, infoFile))
	locked, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("locking overlay info file in %s: %w", localDir, err)
	}
	if !locked {
		return nil, fmt.Errorf("%w: %s is locked by another process", common.ErrAlreadyOpen, localDir)
	}
	o.lock = lock

	logrus.WithField("dir", localDir).Debug("overlay opened")
	return o, nil
}

// Close releases the mount lock. The overlay must not be used after
// Close returns.
func (o *Overlay) Close() error {
	if o.lock == nil {
		return nil
	}
	err := o.lock.Unlock()
	o.lock = nil
	logrus.WithField("dir", o.localDir).Debug("overlay closed")
	return err
}

// LocalDir returns the overlay root directory.
func (o *Overlay) LocalDir() string {
	return o.localDir
}

// FilePath returns the on-disk path of the per-inode file for ino. The
// path is stable across processes; no filesystem access is performed.
func (o *Overlay) FilePath(ino uint64) string {
	return filepath.Join(o.localDir, shardName(ino), strconv.FormatUint(ino, 10))
}

// LoadDir reads the directory listing stored for ino. It returns
// (nil, nil) when the inode has no overlay data.
func (o *Overlay) LoadDir(ino uint64) (Dir, error) {
	f, err := o.fs.Open(shardPath(ino))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading overlay file for inode %d: %w", ino, err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("reading overlay file for inode %d: %w", ino, err)
	}

	if _, err := decodeHeader(data, kindDir); err != nil {
		return nil, fmt.Errorf("inode %d: %w", ino, err)
	}
	dir, err := decodeDir(data[headerLength:])
	if err != nil {
		return nil, fmt.Errorf("inode %d: %w", ino, err)
	}
	return dir, nil
}

// SaveDir writes the directory listing for ino, replacing any previous
// per-inode file atomically. The caller must only save materialized
// directories.
func (o *Overlay) SaveDir(ino uint64, dir Dir) error {
	payload, err := encodeDir(dir)
	if err != nil {
		return fmt.Errorf("inode %d: %w", ino, err)
	}

	buf := make([]byte, 0, headerLength+len(payload))
	buf = append(buf, encodeHeader(kindDir, newHeader())...)
	buf = append(buf, payload...)

	if err := o.writeFileAtomic(shardPath(ino), buf, 0o600); err != nil {
		return fmt.Errorf("saving overlay directory for inode %d: %w", ino, err)
	}
	return nil
}

// Remove unlinks the per-inode file for ino. A missing file is not an
// error.
func (o *Overlay) Remove(ino uint64) error {
	if err := o.fs.Remove(shardPath(ino)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("unlinking overlay file for inode %d: %w", ino, err)
	}
	return nil
}

// CreateFile creates the per-inode file for a newly materialized file
// inode and returns a read-write handle positioned just past the
// header. Ownership of the handle transfers to the caller, which reads
// and writes the body directly and is responsible for closing it.
// Fails with ErrExists if the inode already has overlay data.
func (o *Overlay) CreateFile(ino uint64) (billy.File, error) {
	name := shardPath(ino)
	f, err := o.fs.OpenFile(name, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		if os.IsExist(err) {
			return nil, fmt.Errorf("%w: overlay file for inode %d", common.ErrExists, ino)
		}
		return nil, fmt.Errorf("creating overlay file for inode %d: %w", ino, err)
	}

	if _, err := f.Write(encodeHeader(kindFile, newHeader())); err != nil {
		f.Close()
		o.fs.Remove(name)
		return nil, fmt.Errorf("writing header for inode %d: %w", ino, err)
	}
	return f, nil
}

// OpenFile opens an existing per-inode file by path (as returned by
// FilePath), validates its file-kind header, and returns a read-write
// handle positioned just past the header. Ownership of the handle
// transfers to the caller.
func (o *Overlay) OpenFile(path string) (billy.File, error) {
	rel, err := filepath.Rel(o.localDir, path)
	if err != nil {
		return nil, fmt.Errorf("overlay path %s: %w", path, err)
	}

	f, err := o.fs.OpenFile(rel, os.O_RDWR, 0)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: overlay file %s", common.ErrNotFound, path)
		}
		return nil, fmt.Errorf("opening overlay file %s: %w", path, err)
	}

	var hdr [headerLength]byte
	if _, err := io.ReadFull(f, hdr[:]); err != nil {
		f.Close()
		return nil, fmt.Errorf("%w: %s is too short for header", common.ErrCorruptHeader, path)
	}
	if _, err := decodeHeader(hdr[:], kindFile); err != nil {
		f.Close()
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return f, nil
}

// writeFileAtomic writes data to name via a temp file in the same
// directory followed by a rename, so a crash mid-write never leaves a
// partial file at name. The temp suffix keeps the scratch name out of
// the decimal inode namespace the recovery scanner parses.
func (o *Overlay) writeFileAtomic(name string, data []byte, perm os.FileMode) error {
	tmp := name + ".tmp." + uuid.NewString()
	f, err := o.fs.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_EXCL, perm)
	if err != nil {
		return err
	}

	if _, err := f.Write(data); err != nil {
		f.Close()
		o.fs.Remove(tmp)
		return err
	}
	if s, ok := f.(interface{ Sync() error }); ok {
		if err := s.Sync(); err != nil {
			f.Close()
			o.fs.Remove(tmp)
			return err
		}
	}
	if err := f.Close(); err != nil {
		o.fs.Remove(tmp)
		return err
	}

	if err := o.fs.Rename(tmp, name); err != nil {
		o.fs.Remove(tmp)
		return err
	}
	return nil
}
