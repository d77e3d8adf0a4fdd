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

// Package volume reads identity and capacity metadata from a mounted volume
// and compares it against expected values.
package volume

import (
	"fmt"
	"strconv"
)

// DefaultMaxComponentLength is the file name component limit reported by the
// filesystem family under test.
const DefaultMaxComponentLength = 256

// Identity is a snapshot of the metadata a mount reports about itself.
type Identity struct {
	Label              string
	FileSystemName     string
	SerialNumber       uint64
	MaxComponentLength uint32
	Flags              uint64
}

// Space holds byte counts for a mounted volume.
type Space struct {
	Capacity  uint64
	Free      uint64
	Available uint64 // Free space available to the caller
}

// Querier reads volume metadata for a mount root.
type Querier interface {
	Identity(root string) (Identity, error)
	Space(root string) (Space, error)
}

// System queries the running operating system.
type System struct{}

var _ Querier = System{}

// Expectation is what a mount is expected to report. Empty Label and
// FileSystemName and a zero Serial are not compared. A zero
// MaxComponentLength means DefaultMaxComponentLength.
type Expectation struct {
	Label              string
	FileSystemName     string
	Serial             uint64
	MaxComponentLength uint32
}

// Mismatch is one field that differs from its expectation.
type Mismatch struct {
	Field string
	Want  string
	Got   string
}

func (m Mismatch) String() string {
	return fmt.Sprintf("%s: want %q, got %q", m.Field, m.Want, m.Got)
}

// Validate compares got against want. Strings compare exactly, numbers by
// integer equality.
func Validate(got Identity, want Expectation) []Mismatch {
	var mismatches []Mismatch

	if want.Label != "" && got.Label != want.Label {
		mismatches = append(mismatches, Mismatch{"label", want.Label, got.Label})
	}
	if want.FileSystemName != "" && got.FileSystemName != want.FileSystemName {
		mismatches = append(mismatches, Mismatch{"filesystem name", want.FileSystemName, got.FileSystemName})
	}
	if want.Serial != 0 && got.SerialNumber != want.Serial {
		mismatches = append(mismatches, Mismatch{
			"serial number",
			strconv.FormatUint(want.Serial, 10),
			strconv.FormatUint(got.SerialNumber, 10),
		})
	}

	maxLen := want.MaxComponentLength
	if maxLen == 0 {
		maxLen = DefaultMaxComponentLength
	}
	if got.MaxComponentLength != maxLen {
		mismatches = append(mismatches, Mismatch{
			"max component length",
			strconv.FormatUint(uint64(maxLen), 10),
			strconv.FormatUint(uint64(got.MaxComponentLength), 10),
		})
	}

	return mismatches
}
