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
	"path"
	"strconv"
)

const shardCount = 256

const hexdigits = "0123456789abcdef"

// shardName returns the two-hex-digit subdirectory name for an inode
// number. Per-inode files are sharded across 256 subdirectories by the
// least significant byte; inode numbers are allocated monotonically, so
// the low byte varies fastest and spreads files evenly.
func shardName(ino uint64) string {
	return string([]byte{
		hexdigits[(ino>>4)&0xf],
		hexdigits[ino&0xf],
	})
}

// shardPath returns the root-relative path of the per-inode file for ino.
func shardPath(ino uint64) string {
	return path.Join(shardName(ino), strconv.FormatUint(ino, 10))
}
