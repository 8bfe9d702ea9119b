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

package overlay

import (
	"fmt"

	"scmfs/internal/codec"
	"scmfs/internal/common"
)

// Mode bit constants (unix mode layout, as stored in directory entries).
const (
	ModeMask uint32 = 0o170000
	ModeDir  uint32 = 0o040000
	ModeFile uint32 = 0o100000
)

// Entry is one name in a directory listing. Exactly one of Ino and Hash
// is set: a materialized child has an allocated inode number and its
// state lives in the overlay; a non-materialized child delegates to
// source control through its content hash.
type Entry struct {
	Mode uint32
	Ino  uint64
	Hash []byte
}

// IsMaterialized reports whether the entry's state is held by the
// overlay rather than source control.
func (e Entry) IsMaterialized() bool {
	return e.Ino != 0
}

// IsDir reports whether the entry's mode describes a directory.
func (e Entry) IsDir() bool {
	return e.Mode&ModeMask == ModeDir
}

// Dir is a decoded directory listing, a mapping from child name to entry.
// Equality is by mapping contents; on-disk iteration order is not
// significant.
type Dir map[string]Entry

// dirPayloadVersion is the serialization schema version of the directory
// body that follows the entry header.
const dirPayloadVersion = 1

// wireEntry and wireDir define the directory body schema. Integer field
// keys keep the encoding compact and allow new fields without breaking
// old readers. The payload bytes are deterministic CBOR, so the same
// listing always serializes identically.
type wireEntry struct {
	Mode uint32 `cbor:"1,keyasint"`
	Ino  uint64 `cbor:"2,keyasint,omitempty"`
	Hash []byte `cbor:"3,keyasint,omitempty"`
}

type wireDir struct {
	Version uint32               `cbor:"1,keyasint"`
	Entries map[string]wireEntry `cbor:"2,keyasint"`
}

// checkEntry enforces the materialized-xor-hash invariant on a single
// entry.
func checkEntry(name string, ino uint64, hash []byte) error {
	if ino != 0 && len(hash) != 0 {
		return fmt.Errorf("%w: entry %q has both inode %d and a hash", common.ErrCorruptDir, name, ino)
	}
	if ino == 0 && len(hash) == 0 {
		return fmt.Errorf("%w: entry %q has neither inode nor hash", common.ErrCorruptDir, name)
	}
	return nil
}

// encodeDir serializes a directory listing into the on-disk body format.
func encodeDir(dir Dir) ([]byte, error) {
	wire := wireDir{
		Version: dirPayloadVersion,
		Entries: make(map[string]wireEntry, len(dir)),
	}
	for name, ent := range dir {
		if err := checkEntry(name, ent.Ino, ent.Hash); err != nil {
			return nil, err
		}
		we := wireEntry{Mode: ent.Mode}
		if ent.IsMaterialized() {
			we.Ino = ent.Ino
		} else {
			we.Hash = ent.Hash
		}
		wire.Entries[name] = we
	}

	data, err := codec.Marshal(wire)
	if err != nil {
		return nil, fmt.Errorf("serializing directory listing: %w", err)
	}
	return data, nil
}

// decodeDir parses an on-disk directory body. Structural decode errors,
// duplicate names, and entries violating the materialized-xor-hash
// invariant all surface as ErrCorruptDir.
func decodeDir(data []byte) (Dir, error) {
	var wire wireDir
	if err := codec.Unmarshal(data, &wire); err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrCorruptDir, err)
	}
	if wire.Version != dirPayloadVersion {
		return nil, fmt.Errorf("%w: directory payload version %d", common.ErrUnsupportedVersion, wire.Version)
	}

	dir := make(Dir, len(wire.Entries))
	for name, we := range wire.Entries {
		if err := checkEntry(name, we.Ino, we.Hash); err != nil {
			return nil, err
		}
		dir[name] = Entry{Mode: we.Mode, Ino: we.Ino, Hash: we.Hash}
	}
	return dir, nil
}
