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

package tabletype

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// ErrInvalidTreeStructure means a directory handed to Resolve is not
// beneath the scan root.
var ErrInvalidTreeStructure = errors.New("invalid tree structure")

// Resolve returns the directory directly under scanRoot that contains
// parentDir, or scanRoot itself when parentDir is the scan root. Directory
// identity follows symbolic links.
func Resolve(scanRoot, parentDir string) (string, error) {
	rootInfo, err := os.Stat(scanRoot)
	if err != nil {
		return "", fmt.Errorf("failed to stat scan root %s: %w", scanRoot, err)
	}

	last := filepath.Clean(parentDir)
	for dir := last; ; {
		info, err := os.Stat(dir)
		if err != nil {
			return "", fmt.Errorf("failed to stat %s: %w", dir, err)
		}
		if os.SameFile(info, rootInfo) {
			return last, nil
		}
		last = dir

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("%w: %s is not beneath %s", ErrInvalidTreeStructure, parentDir, scanRoot)
		}
		dir = parent
	}
}

// MetadataPath is where the common metadata file for baseDir lives.
func MetadataPath(baseDir, fileName string) string {
	return filepath.Join(baseDir, fileName)
}
