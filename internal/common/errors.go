// Copyright 2024 LatentFS Authors
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
	ErrSpawn             = errors.New("mount helper could not be launched")
	ErrPollTimeout       = errors.New("timed out waiting for mount")
	ErrUnmapFailure      = errors.New("unmap failed")
	ErrAssertion         = errors.New("filesystem assertion failed")
	ErrReadOnlyViolation = errors.New("read-only violation")
	ErrPending           = errors.New("scenario pending")
	ErrInvalidState      = errors.New("invalid session state transition")
	ErrPathInUse         = errors.New("mount path owned by another session")
	ErrUnsupported       = errors.New("not supported on this platform")
)
