// Copyright (C) 2025 CardinalHQ, Inc
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, version 3.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <http://www.gnu.org/licenses/>.

package metafile

import (
	"bytes"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/cespare/xxhash/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cardinalhq/commonmeta/internal/footer"
	"github.com/cardinalhq/commonmeta/testhelpers"
)

func readOrdersFooter(t *testing.T, dir string) *footer.Footer {
	t.Helper()
	path := filepath.Join(dir, "orders", "part-0.parquet")
	testhelpers.WriteOrders(t, path, "table", "orders")
	f, err := footer.ReadDataFile(path)
	require.NoError(t, err)
	return f
}

func TestSerializeFraming(t *testing.T) {
	f := readOrdersFooter(t, t.TempDir())

	var buf bytes.Buffer
	length, err := Serialize(&buf, f)
	require.NoError(t, err)

	b := buf.Bytes()
	require.Greater(t, len(b), frameOverhead)
	assert.Equal(t, footer.Magic, string(b[:4]))
	assert.Equal(t, footer.Magic, string(b[len(b)-4:]))
	assert.Equal(t, int64(len(b)-frameOverhead), length)
	assert.Equal(t, uint32(length), binary.LittleEndian.Uint32(b[len(b)-8:len(b)-4]))

	md, err := footer.Decode(b[4 : 4+length])
	require.NoError(t, err)
	assert.Empty(t, md.RowGroups)
	assert.Zero(t, md.NumRows)
	assert.Equal(t, int32(footer.CurrentVersion), md.Version)

	// the caller's footer keeps its row groups
	assert.NotEmpty(t, f.Metadata.RowGroups)
}

func TestWriteReadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	f := readOrdersFooter(t, dir)
	out := filepath.Join(dir, "orders", DefaultFileName)

	stats, err := Write(out, f)
	require.NoError(t, err)

	raw, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, int64(len(raw)), stats.Size)
	assert.Equal(t, int64(len(raw)-frameOverhead), stats.FooterLength)
	assert.Equal(t, xxhash.Sum64(raw), stats.Digest)

	got, err := Read(out)
	require.NoError(t, err)
	assert.Equal(t, out, got.Path)
	assert.Equal(t, f.Metadata.Schema, got.Metadata.Schema)
	assert.Equal(t, f.Metadata.KeyValueMetadata, got.Metadata.KeyValueMetadata)
	assert.Equal(t, f.Metadata.CreatedBy, got.Metadata.CreatedBy)
	assert.Empty(t, got.Metadata.RowGroups)

	digest, err := Digest(out)
	require.NoError(t, err)
	assert.Equal(t, stats.Digest, digest)
}

func TestWriteReplacesExisting(t *testing.T) {
	dir := t.TempDir()
	f := readOrdersFooter(t, dir)
	out := filepath.Join(dir, "orders", DefaultFileName)
	testhelpers.WriteFile(t, out, bytes.Repeat([]byte("x"), 64<<10))

	stats, err := Write(out, f)
	require.NoError(t, err)

	info, err := os.Stat(out)
	require.NoError(t, err)
	assert.Equal(t, stats.Size, info.Size())

	again, err := Write(out, f)
	require.NoError(t, err)
	assert.Equal(t, stats.Digest, again.Digest)
}

func TestReadDataFileFooter(t *testing.T) {
	dir := t.TempDir()
	f := readOrdersFooter(t, dir)

	got, err := Read(f.Path)
	require.NoError(t, err)
	assert.Equal(t, f.Metadata.Schema, got.Metadata.Schema)
	assert.Len(t, got.Metadata.RowGroups, len(f.Metadata.RowGroups))
}

func TestReadRejectsBadFiles(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name    string
		content []byte
		want    error
	}{
		{"tiny", []byte("PAR1"), ErrTruncated},
		{"bad header", []byte("XXXX\x00\x00\x00\x00PAR1"), ErrBadMagic},
		{"bad trailer", []byte("PAR1\x00\x00\x00\x00XXXX"), ErrBadMagic},
		{"length too large", []byte("PAR1\xff\x00\x00\x00PAR1"), ErrTruncated},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(dir, tt.name)
			testhelpers.WriteFile(t, path, tt.content)
			_, err := Read(path)
			require.ErrorIs(t, err, tt.want)
		})
	}
}

func TestRemoveAndExists(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, DefaultFileName)

	require.NoError(t, Remove(path))

	ok, err := Exists(path)
	require.NoError(t, err)
	assert.False(t, ok)

	testhelpers.WriteFile(t, path, []byte("x"))
	ok, err = Exists(path)
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, Remove(path))
	ok, err = Exists(path)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = Exists(dir)
	require.NoError(t, err)
	assert.False(t, ok)
}
