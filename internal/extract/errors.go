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

package extract

import (
	"errors"
	"fmt"
)

var (
	// ErrCorruptOrUnreadableInput marks a data file or prior metadata file
	// whose footer could not be opened or decoded.
	ErrCorruptOrUnreadableInput = errors.New("corrupt or unreadable input")

	// ErrDuplicateProcessing means a metadata output path was produced twice
	// in one run. It is raised as a panic since only a broken traversal can
	// cause it.
	ErrDuplicateProcessing = errors.New("metadata output already produced in this run")
)

// CorruptInputError carries the path of the file whose footer could not
// be read.
type CorruptInputError struct {
	Path string
	Err  error
}

func (e *CorruptInputError) Error() string {
	return fmt.Sprintf("corrupt or unreadable input %s: %v", e.Path, e.Err)
}

func (e *CorruptInputError) Unwrap() []error {
	return []error{ErrCorruptOrUnreadableInput, e.Err}
}

// ErrorPolicy decides whether a failed extraction ends the run.
type ErrorPolicy string

const (
	// ErrorPolicyAbort stops the scan at the first failure.
	ErrorPolicyAbort ErrorPolicy = "abort"
	// ErrorPolicyContinue logs the failure, keeps scanning, and reports all
	// failures at the end.
	ErrorPolicyContinue ErrorPolicy = "continue"
)

func ParseErrorPolicy(s string) (ErrorPolicy, error) {
	switch ErrorPolicy(s) {
	case ErrorPolicyAbort, "":
		return ErrorPolicyAbort, nil
	case ErrorPolicyContinue:
		return ErrorPolicyContinue, nil
	default:
		return "", fmt.Errorf("unknown error policy %q (want abort or continue)", s)
	}
}
