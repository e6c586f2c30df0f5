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
	"path/filepath"
	"reflect"
	"slices"
	"strings"

	"github.com/parquet-go/parquet-go/format"
)

// KeyValueMergeStrategy decides what happens when footers carry different
// values for the same key-value metadata key.
type KeyValueMergeStrategy string

const (
	// KeyValueStrict fails the merge on any conflicting key.
	KeyValueStrict KeyValueMergeStrategy = "strict"
	// KeyValueFirst keeps the value from the earliest footer.
	KeyValueFirst KeyValueMergeStrategy = "first"
	// KeyValueLast keeps the value from the latest footer.
	KeyValueLast KeyValueMergeStrategy = "last"
)

func ParseKeyValueMergeStrategy(s string) (KeyValueMergeStrategy, error) {
	switch KeyValueMergeStrategy(strings.ToLower(strings.TrimSpace(s))) {
	case KeyValueStrict, "":
		return KeyValueStrict, nil
	case KeyValueFirst:
		return KeyValueFirst, nil
	case KeyValueLast:
		return KeyValueLast, nil
	default:
		return "", fmt.Errorf("unknown key-value merge strategy %q (want strict, first or last)", s)
	}
}

// Merge combines footers that all live beneath root into one footer.
//
// Schemas are unioned by field name, key-value metadata is combined under
// strategy, and every row group is kept with its column chunks pointing at
// the contributing file relative to root. The result's Path is root.
func Merge(root string, strategy KeyValueMergeStrategy, footers ...*Footer) (*Footer, error) {
	if len(footers) == 0 {
		return nil, errors.New("no footers to merge")
	}
	root = filepath.Clean(root)

	var (
		schema    *schemaNode
		kvs       []format.KeyValue
		kvIndex   = map[string]int{}
		createdBy []string
		rowGroups []format.RowGroup
		numRows   int64
	)

	for i, f := range footers {
		if f == nil || f.Metadata == nil {
			return nil, fmt.Errorf("footer %d has no metadata", i)
		}
		rel, err := relativeTo(root, f.Path)
		if err != nil {
			return nil, err
		}

		tree, err := buildSchemaTree(f.Metadata.Schema)
		if err != nil {
			return nil, fmt.Errorf("footer %s: %w", f.Path, err)
		}
		if schema == nil {
			schema = tree.clone()
		} else if err := schema.union(tree, nil, true); err != nil {
			return nil, fmt.Errorf("footer %s: %w", f.Path, err)
		}

		for _, kv := range f.Metadata.KeyValueMetadata {
			idx, seen := kvIndex[kv.Key]
			if !seen {
				kvIndex[kv.Key] = len(kvs)
				kvs = append(kvs, kv)
				continue
			}
			if kvs[idx].Value == kv.Value {
				continue
			}
			switch strategy {
			case KeyValueFirst:
			case KeyValueLast:
				kvs[idx].Value = kv.Value
			default:
				return nil, fmt.Errorf("%w: key %q has values %q and %q", ErrKeyValueConflict, kv.Key, kvs[idx].Value, kv.Value)
			}
		}

		if cb := f.Metadata.CreatedBy; cb != "" && !slices.Contains(createdBy, cb) {
			createdBy = append(createdBy, cb)
		}

		for _, rg := range f.Metadata.RowGroups {
			rg.Columns = append([]format.ColumnChunk(nil), rg.Columns...)
			for c := range rg.Columns {
				rg.Columns[c].FilePath = rel
			}
			rowGroups = append(rowGroups, rg)
			numRows += rg.NumRows
		}
	}

	md := &format.FileMetaData{
		Version:          CurrentVersion,
		Schema:           schema.flatten(nil),
		NumRows:          numRows,
		RowGroups:        rowGroups,
		KeyValueMetadata: kvs,
		CreatedBy:        joinCreatedBy(createdBy),
		ColumnOrders:     mergedColumnOrders(schema.leafCount(), footers),
	}
	return &Footer{Path: root, Metadata: md}, nil
}

func relativeTo(root, path string) (string, error) {
	rel, err := filepath.Rel(root, filepath.Clean(path))
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %s is not beneath %s", ErrNotUnderRoot, path, root)
	}
	return filepath.ToSlash(rel), nil
}

func joinCreatedBy(values []string) string {
	switch len(values) {
	case 0:
		return ""
	case 1:
		return values[0]
	default:
		return "[" + strings.Join(values, ", ") + "]"
	}
}

// mergedColumnOrders keeps the column orders only while every footer
// agrees on them and they still line up with the merged leaf columns.
func mergedColumnOrders(leaves int, footers []*Footer) []format.ColumnOrder {
	orders := footers[0].Metadata.ColumnOrders
	for _, f := range footers[1:] {
		if !reflect.DeepEqual(orders, f.Metadata.ColumnOrders) {
			return nil
		}
	}
	if len(orders) != leaves {
		return nil
	}
	return orders
}
