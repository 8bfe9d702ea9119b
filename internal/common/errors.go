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

package common

import "errors"

var (
	ErrLegacyFormat       = errors.New("legacy overlay format")
	ErrCorruptInfo        = errors.New("corrupt overlay info file")
	ErrUnsupportedVersion = errors.New("unsupported overlay version")
	ErrCorruptHeader      = errors.New("corrupt overlay header")
	ErrWrongKind          = errors.New("wrong overlay file kind")
	ErrCorruptDir         = errors.New("corrupt overlay directory")
	ErrAlreadyOpen        = errors.New("overlay already open")
	ErrExists             = errors.New("already exists")
	ErrNotFound           = errors.New("not found")
)
