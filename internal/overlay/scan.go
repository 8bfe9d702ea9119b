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
	"os"
	"strconv"

	"github.com/sirupsen/logrus"
)

// MaxRecordedInode returns the largest inode number ever allocated, so
// the inode allocator can resume from max+1 after a mount. The walk has
// two phases: a depth-first traversal of the materialized directory
// tree from the root, then a sweep of the shard subdirectories. The
// sweep catches orphans — files unlinked from their parent listing but
// still present on disk (e.g. unlinked while open).
//
// Missing directory files prune their subtree; corruption errors
// propagate. Shard entries whose names do not parse as decimal inode
// numbers (such as temp files left by an interrupted save) are ignored.
func (o *Overlay) MaxRecordedInode() (uint64, error) {
	maxInode := RootInode

	stack := []uint64{RootInode}
	for len(stack) > 0 {
		ino := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		dir, err := o.LoadDir(ino)
		if err != nil {
			return 0, err
		}
		if dir == nil {
			continue
		}

		for _, ent := range dir {
			if !ent.IsMaterialized() {
				continue
			}
			if ent.Ino > maxInode {
				maxInode = ent.Ino
			}
			if ent.IsDir() {
				stack = append(stack, ent.Ino)
			}
		}
	}

	for n := 0; n < shardCount; n++ {
		name := shardName(uint64(n))
		infos, err := o.fs.ReadDir(name)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return 0, fmt.Errorf("scanning overlay shard %s: %w", name, err)
		}
		for _, fi := range infos {
			ino, err := strconv.ParseUint(fi.Name(), 10, 64)
			if err != nil {
				continue
			}
			if ino > maxInode {
				maxInode = ino
			}
		}
	}

	logrus.WithFields(logrus.Fields{"dir": o.localDir, "max": maxInode}).Debug("overlay inode scan complete")
	return maxInode, nil
}
