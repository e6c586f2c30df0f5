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

package testhelpers

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/parquet-go/parquet-go"
	"github.com/stretchr/testify/require"
)

// OrderRow is the row shape used for "orders" fixtures.
type OrderRow struct {
	ID       int64   `parquet:"id"`
	Customer string  `parquet:"customer"`
	Amount   float64 `parquet:"amount"`
}

// RegionalOrderRow adds a region column to OrderRow.
type RegionalOrderRow struct {
	ID       int64   `parquet:"id"`
	Customer string  `parquet:"customer"`
	Amount   float64 `parquet:"amount"`
	Region   string  `parquet:"region"`
}

// RefundRow shares only the id column with OrderRow.
type RefundRow struct {
	ID       int64 `parquet:"id"`
	Refunded bool  `parquet:"refunded"`
}

// MismatchedOrderRow declares id as a string so it cannot be unioned with OrderRow.
type MismatchedOrderRow struct {
	ID string `parquet:"id"`
}

// WriteParquet writes rows to path, creating parent directories as needed.
func WriteParquet[T any](t *testing.T, path string, rows []T, opts ...parquet.WriterOption) {
	t.Helper()

	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	f, err := os.Create(path)
	require.NoError(t, err)

	w := parquet.NewGenericWriter[T](f, opts...)
	_, err = w.Write(rows)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	require.NoError(t, f.Close())
}

// WriteOrders writes a small orders file with optional key-value metadata
// given as alternating keys and values.
func WriteOrders(t *testing.T, path string, kv ...string) {
	t.Helper()

	require.Zero(t, len(kv)%2, "key-value pairs must be even")
	var opts []parquet.WriterOption
	for i := 0; i < len(kv); i += 2 {
		opts = append(opts, parquet.KeyValueMetadata(kv[i], kv[i+1]))
	}
	WriteParquet(t, path, []OrderRow{
		{ID: 1, Customer: "alice", Amount: 10.5},
		{ID: 2, Customer: "bob", Amount: 3.25},
	}, opts...)
}

// WriteFile writes raw bytes to path, creating parent directories as needed.
func WriteFile(t *testing.T, path string, data []byte) {
	t.Helper()

	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, data, 0o644))
}
