package common

import (
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizePath(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"empty", "", ""},
		{"root", "/", ""},
		{"dot", ".", ""},
		{"simple", "foo", "foo"},
		{"leading_slash", "/foo", "foo"},
		{"trailing_slash", "foo/", "foo"},
		{"nested", "/foo/bar/", "foo/bar"},
		{"dot_middle", "foo/./bar", "foo/bar"},
		{"dotdot_middle", "foo/../bar", "bar"},
		{"double_slash", "foo//bar", "foo/bar"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, NormalizePath(tt.input), "NormalizePath(%q)", tt.input)
		})
	}
}

func TestArtifactName(t *testing.T) {
	t.Parallel()

	name := ArtifactName("test_io")
	require.True(t, strings.HasPrefix(name, "test_io_"), name)

	_, err := uuid.Parse(strings.TrimPrefix(name, "test_io_"))
	assert.NoError(t, err, "suffix should be a uuid")
	assert.NotEqual(t, name, ArtifactName("test_io"), "names must not repeat")
}

func TestMountKey(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input string
		want  string
	}{
		{`X:\`, "X"},
		{`C:\mnt\ceph`, "C_mnt_ceph"},
		{"/mnt/ceph", "mnt_ceph"},
		{"/mnt/ceph/", "mnt_ceph"},
		{"/", "root"},
		{"/tmp/my mount", "tmp_my_mount"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.input, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, MountKey(tt.input))
		})
	}
}
