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

// Package metafile reads and writes consolidated Parquet common metadata
// files: a footer framed by the Parquet magic with no row groups.
package metafile

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"

	"github.com/cespare/xxhash/v2"
	"github.com/parquet-go/parquet-go/format"

	"github.com/cardinalhq/commonmeta/internal/footer"
)

// DefaultFileName is the conventional name of a common metadata file.
const DefaultFileName = "_common_metadata"

// frameOverhead is the leading magic, the trailing length and the trailing magic.
const frameOverhead = len(footer.Magic) + 4 + len(footer.Magic)

var (
	ErrBadMagic  = errors.New("missing parquet magic")
	ErrTruncated = errors.New("truncated footer")
)

// WriteStats describes a written metadata file.
type WriteStats struct {
	// Size is the total number of bytes written.
	Size int64
	// FooterLength is the encoded metadata length recorded in the trailer.
	FooterLength int64
	// Digest is the xxhash64 of the written bytes.
	Digest uint64
}

// positionWriter tracks how many bytes have gone through it.
type positionWriter struct {
	w   io.Writer
	pos int64
}

func (p *positionWriter) Write(b []byte) (int, error) {
	n, err := p.w.Write(b)
	p.pos += int64(n)
	return n, err
}

// Serialize writes f as a common metadata file: magic, the file metadata
// with its row groups cleared, the little-endian length of that block, and
// the magic again. It returns the encoded metadata length.
func Serialize(w io.Writer, f *footer.Footer) (int64, error) {
	if f == nil || f.Metadata == nil {
		return 0, errors.New("no footer to serialize")
	}
	out := &positionWriter{w: w}

	if _, err := io.WriteString(out, footer.Magic); err != nil {
		return 0, err
	}
	footerIndex := out.pos

	md := *f.Metadata
	md.Version = footer.CurrentVersion
	md.RowGroups = []format.RowGroup{}
	md.NumRows = 0

	b, err := footer.Encode(&md)
	if err != nil {
		return 0, fmt.Errorf("failed to encode footer: %w", err)
	}
	if _, err := out.Write(b); err != nil {
		return 0, err
	}

	length := out.pos - footerIndex

	if _, err := out.Write(binary.LittleEndian.AppendUint32(nil, uint32(length))); err != nil {
		return 0, err
	}
	if _, err := io.WriteString(out, footer.Magic); err != nil {
		return 0, err
	}
	return length, nil
}

// Write replaces the file at path with the serialized footer. An existing
// file is removed first; a missing one is not an error.
func Write(path string, f *footer.Footer) (WriteStats, error) {
	if err := Remove(path); err != nil {
		return WriteStats{}, err
	}

	out, err := os.Create(path)
	if err != nil {
		return WriteStats{}, err
	}

	h := xxhash.New()
	counter := &positionWriter{w: io.MultiWriter(out, h)}
	bw := bufio.NewWriter(counter)

	length, err := Serialize(bw, f)
	if err == nil {
		err = bw.Flush()
	}
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return WriteStats{}, fmt.Errorf("failed to write %s: %w", path, err)
	}

	return WriteStats{
		Size:         counter.pos,
		FooterLength: length,
		Digest:       h.Sum64(),
	}, nil
}

// Remove deletes path if it exists.
func Remove(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to remove %s: %w", path, err)
	}
	return nil
}

// Exists reports whether a regular file is present at path.
func Exists(path string) (bool, error) {
	info, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return !info.IsDir(), nil
}

// Digest returns the xxhash64 of the file at path.
func Digest(path string) (uint64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer func() {
		_ = f.Close()
	}()

	h := xxhash.New()
	if _, err := io.Copy(h, f); err != nil {
		return 0, err
	}
	return h.Sum64(), nil
}

// Read decodes the footer of the Parquet file at path. It works for common
// metadata files and for data files alike since both end in the same
// trailer.
func Read(path string) (*footer.Footer, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = f.Close()
	}()

	stat, err := f.Stat()
	if err != nil {
		return nil, err
	}

	md, err := decodeFrame(f, stat.Size())
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &footer.Footer{Path: path, Metadata: md}, nil
}

func decodeFrame(r io.ReaderAt, size int64) (*format.FileMetaData, error) {
	if size < int64(frameOverhead) {
		return nil, fmt.Errorf("%w: file is only %d bytes", ErrTruncated, size)
	}

	head := make([]byte, len(footer.Magic))
	if _, err := r.ReadAt(head, 0); err != nil {
		return nil, err
	}
	if !bytes.Equal(head, []byte(footer.Magic)) {
		return nil, fmt.Errorf("%w: bad header", ErrBadMagic)
	}

	trailer := make([]byte, 4+len(footer.Magic))
	if _, err := r.ReadAt(trailer, size-int64(len(trailer))); err != nil {
		return nil, err
	}
	if !bytes.Equal(trailer[4:], []byte(footer.Magic)) {
		return nil, fmt.Errorf("%w: bad trailer", ErrBadMagic)
	}

	length := int64(binary.LittleEndian.Uint32(trailer[:4]))
	if length > size-int64(frameOverhead) {
		return nil, fmt.Errorf("%w: footer length %d exceeds file size %d", ErrTruncated, length, size)
	}

	buf := make([]byte, length)
	if _, err := r.ReadAt(buf, size-int64(len(trailer))-length); err != nil {
		return nil, err
	}
	md, err := footer.Decode(buf)
	if err != nil {
		return nil, fmt.Errorf("failed to decode footer: %w", err)
	}
	return md, nil
}
