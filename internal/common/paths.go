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

import (
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// ArtifactName returns prefix suffixed with a fresh random identifier, so
// repeated and concurrent runs never collide on the same name.
func ArtifactName(prefix string) string {
	return prefix + "_" + uuid.NewString()
}

// NormalizePath cleans a relative path into slash form, removing leading and
// trailing separators.
func NormalizePath(path string) string {
	path = filepath.ToSlash(filepath.Clean(path))
	path = strings.Trim(path, "/")
	if path == "." {
		return ""
	}
	return path
}

// MountKey flattens a mount path into a single file-name-safe token.
// "X:\" becomes "X" and "/mnt/ceph" becomes "mnt_ceph".
func MountKey(mountPath string) string {
	replacer := strings.NewReplacer(`\`, "_", "/", "_", ":", "", " ", "_")
	key := strings.Trim(replacer.Replace(mountPath), "_")
	if key == "" {
		return "root"
	}
	return key
}
