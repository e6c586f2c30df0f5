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

package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/cardinalhq/commonmeta/internal/footer"
	"github.com/cardinalhq/commonmeta/internal/metafile"
)

func newInspectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "inspect <file>",
		Short: "Print the footer of a Parquet data file or common metadata file",
		Args:  cobra.ExactArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			c.SilenceUsage = true
			return runInspect(c.OutOrStdout(), args[0])
		},
	}
}

func runInspect(w io.Writer, filename string) error {
	f, err := metafile.Read(filename)
	if err != nil {
		return fmt.Errorf("failed to read footer of %s: %w", filename, err)
	}
	md := f.Metadata

	schema, err := footer.FormatSchema(md)
	if err != nil {
		return fmt.Errorf("failed to format schema of %s: %w", filename, err)
	}

	fmt.Fprintf(w, "file: %s\n", filename)
	fmt.Fprintf(w, "version: %d\n", md.Version)
	fmt.Fprintf(w, "created_by: %s\n", md.CreatedBy)
	fmt.Fprintf(w, "num_rows: %d\n", md.NumRows)
	fmt.Fprintf(w, "row_groups: %d\n", len(md.RowGroups))
	if len(md.KeyValueMetadata) > 0 {
		fmt.Fprintln(w, "key_value_metadata:")
		for _, kv := range md.KeyValueMetadata {
			fmt.Fprintf(w, "  %s: %s\n", kv.Key, kv.Value)
		}
	}
	fmt.Fprint(w, schema)
	return nil
}
