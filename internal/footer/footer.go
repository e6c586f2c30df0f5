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

package footer

import (
	"errors"
	"fmt"
	"os"

	"github.com/parquet-go/parquet-go"
	"github.com/parquet-go/parquet-go/encoding/thrift"
	"github.com/parquet-go/parquet-go/format"
)

// Magic is the byte sequence that opens and closes every Parquet file.
const Magic = "PAR1"

// CurrentVersion is the file metadata version written to common metadata files.
const CurrentVersion = 1

var (
	ErrIncompatibleSchema = errors.New("incompatible schema")
	ErrKeyValueConflict   = errors.New("conflicting key-value metadata")
	ErrNotUnderRoot       = errors.New("footer path is not contained in the root")
	ErrMalformedSchema    = errors.New("malformed schema")
)

// Footer is the decoded file metadata of one Parquet file along with the
// path it was read from.
type Footer struct {
	Path     string
	Metadata *format.FileMetaData
}

// ReadDataFile opens a Parquet data file and returns its decoded footer.
// Page indexes and bloom filters are not loaded.
func ReadDataFile(path string) (*Footer, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = f.Close()
	}()

	stat, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat %s: %w", path, err)
	}

	pf, err := parquet.OpenFile(f, stat.Size(),
		parquet.SkipPageIndex(true),
		parquet.SkipBloomFilters(true),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to open parquet file %s: %w", path, err)
	}

	md := *pf.Metadata()
	return &Footer{Path: path, Metadata: &md}, nil
}

// Encode serializes file metadata with the thrift compact protocol.
func Encode(md *format.FileMetaData) ([]byte, error) {
	return thrift.Marshal(new(thrift.CompactProtocol), md)
}

// Decode parses a thrift compact encoded file metadata block.
func Decode(b []byte) (*format.FileMetaData, error) {
	md := &format.FileMetaData{}
	if err := thrift.Unmarshal(new(thrift.CompactProtocol), b, md); err != nil {
		return nil, err
	}
	return md, nil
}

// CreatedBy returns the writer identification of the footer.
func (f *Footer) CreatedBy() string {
	if f == nil || f.Metadata == nil {
		return ""
	}
	return f.Metadata.CreatedBy
}

// KeyValue looks up a key in the footer's key-value metadata.
func (f *Footer) KeyValue(key string) (string, bool) {
	if f == nil || f.Metadata == nil {
		return "", false
	}
	for _, kv := range f.Metadata.KeyValueMetadata {
		if kv.Key == key {
			return kv.Value, true
		}
	}
	return "", false
}
