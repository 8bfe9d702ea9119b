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
	"io"
	"os"

	"github.com/sirupsen/logrus"

	"scmfs/internal/common"
)

const (
	// infoFile marks a directory as a formatted overlay root. Its
	// exclusive flock doubles as the mount lock.
	infoFile = "info"

	// legacyTreeDir is the obsolete pre-v1 layout marker. A root that
	// contains it must not be touched.
	legacyTreeDir = "tree"

	infoVersion    = 1
	infoHeaderSize = 8
)

// infoMagic identifies an overlay info file.
var infoMagic = [4]byte{0xed, 0xe0, 0x00, 0x01}

// initRoot prepares the overlay root for use: it rejects legacy
// layouts, validates an existing info file, or formats a brand new
// root (256 shard subdirectories plus the info file).
func (o *Overlay) initRoot() error {
	if _, err := o.fs.Lstat(legacyTreeDir); err == nil {
		return fmt.Errorf("%w: obsolete %q directory present in %s", common.ErrLegacyFormat, legacyTreeDir, o.localDir)
	}

	f, err := o.fs.Open(infoFile)
	if err == nil {
		defer f.Close()
		return readInfoHeader(f, o.localDir)
	}
	if !os.IsNotExist(err) {
		return fmt.Errorf("reading overlay info file in %s: %w", o.localDir, err)
	}

	return o.formatNewRoot()
}

// readInfoHeader validates the magic and format version of an existing
// info file.
func readInfoHeader(r io.Reader, localDir string) error {
	var hdr [infoHeaderSize]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return fmt.Errorf("%w: truncated info file in %s", common.ErrCorruptInfo, localDir)
	}

	var magic [4]byte
	copy(magic[:], hdr[0:4])
	if magic != infoMagic {
		return fmt.Errorf("%w: bad magic %x in %s", common.ErrCorruptInfo, magic, localDir)
	}

	version := binary.BigEndian.Uint32(hdr[4:8])
	if version != infoVersion {
		return fmt.Errorf("%w: overlay format %d in %s", common.ErrUnsupportedVersion, version, localDir)
	}
	return nil
}

// formatNewRoot creates the root directory, all 256 shard
// subdirectories, and the info file. Existing directories are fine;
// presumably the root is simply empty.
func (o *Overlay) formatNewRoot() error {
	logrus.WithField("dir", o.localDir).Debug("formatting new overlay root")

	for n := 0; n < shardCount; n++ {
		if err := o.fs.MkdirAll(shardName(uint64(n)), 0o755); err != nil {
			return fmt.Errorf("creating overlay shard directory %s: %w", shardName(uint64(n)), err)
		}
	}

	var hdr [infoHeaderSize]byte
	copy(hdr[0:4], infoMagic[:])
	binary.BigEndian.PutUint32(hdr[4:8], infoVersion)
	if err := o.writeFileAtomic(infoFile, hdr[:], 0o644); err != nil {
		return fmt.Errorf("writing overlay info file: %w", err)
	}
	return nil
}
