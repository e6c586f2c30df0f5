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

// Package scanner walks a directory tree depth first, following symbolic
// links, and lets a Visitor steer the walk the way a file tree visitor
// does: continue, skip a subtree, skip the rest of a directory, or stop.
//
// Entries of a directory are visited in lexical order. A directory that is
// reached again through a link while one of its own descendants is being
// walked is reported to VisitFailed as ErrFileSystemLoop and not entered.
package scanner

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// ErrFileSystemLoop reports a symbolic link that leads back to one of the
// directories currently being walked.
var ErrFileSystemLoop = errors.New("file system loop detected")

// Result tells Walk how to proceed after a visitor callback.
type Result int

const (
	// Continue proceeds normally.
	Continue Result = iota
	// SkipSubtree skips the entries of a directory. Only meaningful from
	// PreVisitDirectory; elsewhere it behaves like Continue.
	SkipSubtree
	// SkipSiblings skips the remaining entries of the directory containing
	// the current entry. That directory's PostVisitDirectory still runs.
	SkipSiblings
	// Terminate ends the walk without error.
	Terminate
)

func (r Result) String() string {
	switch r {
	case Continue:
		return "continue"
	case SkipSubtree:
		return "skip-subtree"
	case SkipSiblings:
		return "skip-siblings"
	case Terminate:
		return "terminate"
	default:
		return fmt.Sprintf("result(%d)", int(r))
	}
}

// Visitor receives walk events. A non-nil error from any callback ends the
// walk and is returned by Walk.
type Visitor interface {
	PreVisitDirectory(dir string, info fs.FileInfo) (Result, error)
	VisitFile(path string, info fs.FileInfo) (Result, error)
	VisitFailed(path string, err error) (Result, error)
	// PostVisitDirectory runs after every entry of dir was visited or
	// skipped. err is set when the directory could not be listed.
	PostVisitDirectory(dir string, err error) (Result, error)
}

type walker struct {
	ctx     context.Context
	visitor Visitor
}

// Walk visits the tree rooted at root. When root is not a directory it is
// handed to VisitFile on its own.
func Walk(ctx context.Context, root string, v Visitor) error {
	w := &walker{ctx: ctx, visitor: v}

	info, err := stat(root)
	if err != nil {
		_, err = v.VisitFailed(root, err)
		return err
	}
	if !info.IsDir() {
		_, err = v.VisitFile(root, info)
		return err
	}
	_, err = w.walkDir(root, info, nil)
	return err
}

// stat follows links, falling back to the link itself when it dangles.
func stat(path string) (fs.FileInfo, error) {
	info, err := os.Stat(path)
	if err == nil {
		return info, nil
	}
	if linfo, lerr := os.Lstat(path); lerr == nil {
		return linfo, nil
	}
	return nil, err
}

func (w *walker) walkDir(dir string, info fs.FileInfo, ancestors []fs.FileInfo) (Result, error) {
	for _, a := range ancestors {
		if os.SameFile(a, info) {
			return w.visitor.VisitFailed(dir, fmt.Errorf("%w: %s", ErrFileSystemLoop, dir))
		}
	}

	res, err := w.visitor.PreVisitDirectory(dir, info)
	if err != nil || res != Continue {
		return res, err
	}

	entries, readErr := os.ReadDir(dir)
	ancestors = append(ancestors, info)

entries:
	for _, e := range entries {
		if err := w.ctx.Err(); err != nil {
			return Terminate, err
		}

		path := filepath.Join(dir, e.Name())
		var res Result
		child, err := stat(path)
		switch {
		case err != nil:
			res, err = w.visitor.VisitFailed(path, err)
		case child.IsDir():
			res, err = w.walkDir(path, child, ancestors)
		default:
			res, err = w.visitor.VisitFile(path, child)
		}
		if err != nil {
			return Terminate, err
		}

		switch res {
		case Terminate:
			return Terminate, nil
		case SkipSiblings:
			break entries
		}
	}

	return w.visitor.PostVisitDirectory(dir, readErr)
}
