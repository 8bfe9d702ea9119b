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
	"encoding/binary"
	"fmt"

	"scmfs/internal/common"
)

// Every per-inode file starts with a fixed 64-byte header: an 8-byte
// kind identifier, a big-endian u32 format version, and three
// {sec u64, nsec u64} big-endian timestamp pairs. The remainder is zero
// padding so the header content can grow without changing the file
// layout. All multi-byte fields are big-endian.
const (
	headerLength  = 64
	headerVersion = 1
)

// identifierDir and identifierFile distinguish serialized directory
// listings from raw file bodies.
var (
	identifierDir  = [8]byte{'O', 'V', 'D', 'R', 0, 0, 0, 0}
	identifierFile = [8]byte{'O', 'V', 'F', 'L', 0, 0, 0, 0}
)

// entryKind selects which identifier a per-inode file carries.
type entryKind int

const (
	kindDir entryKind = iota
	kindFile
)

func (k entryKind) identifier() [8]byte {
	if k == kindDir {
		return identifierDir
	}
	return identifierFile
}

func (k entryKind) String() string {
	if k == kindDir {
		return "directory"
	}
	return "file"
}

// Timespec is a {seconds, nanoseconds} timestamp as stored in the entry
// header. The store writes zero timestamps; the fields are reserved and
// round-trip unchanged.
type Timespec struct {
	Sec  uint64
	Nsec uint64
}

// header is the decoded fixed-length prefix of a per-inode file.
type header struct {
	Version uint32
	Atime   Timespec
	Ctime   Timespec
	Mtime   Timespec
}

// encodeHeader serializes a header of the given kind into exactly
// headerLength bytes.
func encodeHeader(kind entryKind, h header) []byte {
	buf := make([]byte, headerLength)
	id := kind.identifier()
	copy(buf[0:8], id[:])
	binary.BigEndian.PutUint32(buf[8:12], h.Version)
	binary.BigEndian.PutUint64(buf[12:20], h.Atime.Sec)
	binary.BigEndian.PutUint64(buf[20:28], h.Atime.Nsec)
	binary.BigEndian.PutUint64(buf[28:36], h.Ctime.Sec)
	binary.BigEndian.PutUint64(buf[36:44], h.Ctime.Nsec)
	binary.BigEndian.PutUint64(buf[44:52], h.Mtime.Sec)
	binary.BigEndian.PutUint64(buf[52:60], h.Mtime.Nsec)
	// buf[60:64] stays zero padding
	return buf
}

// newHeader returns a current-version header with zero timestamps, the
// form written on every save.
func newHeader() header {
	return header{Version: headerVersion}
}

// decodeHeader parses the fixed-length header at the start of data and
// validates it against the expected kind. The timestamp fields are
// returned as stored, without interpretation.
func decodeHeader(data []byte, expected entryKind) (header, error) {
	if len(data) < headerLength {
		return header{}, fmt.Errorf("%w: %d bytes is too short for header", common.ErrCorruptHeader, len(data))
	}

	var id [8]byte
	copy(id[:], data[0:8])
	if id != expected.identifier() {
		return header{}, fmt.Errorf("%w: identifier %x is not a %s header", common.ErrWrongKind, id, expected)
	}

	h := header{
		Version: binary.BigEndian.Uint32(data[8:12]),
		Atime: Timespec{
			Sec:  binary.BigEndian.Uint64(data[12:20]),
			Nsec: binary.BigEndian.Uint64(data[20:28]),
		},
		Ctime: Timespec{
			Sec:  binary.BigEndian.Uint64(data[28:36]),
			Nsec: binary.BigEndian.Uint64(data[36:44]),
		},
		Mtime: Timespec{
			Sec:  binary.BigEndian.Uint64(data[44:52]),
			Nsec: binary.BigEndian.Uint64(data[52:60]),
		},
	}
	if h.Version != headerVersion {
		return header{}, fmt.Errorf("%w: entry header version %d", common.ErrUnsupportedVersion, h.Version)
	}
	return h, nil
}
