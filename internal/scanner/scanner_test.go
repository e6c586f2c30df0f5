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

package scanner

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recorder logs every callback relative to root and lets tests pick the
// result returned for a given file.
type recorder struct {
	root       string
	events     []string
	failures   []error
	fileResult func(rel string) Result
	postResult func(rel string) Result
}

func (r *recorder) rel(p string) string {
	rel, err := filepath.Rel(r.root, p)
	if err != nil {
		return p
	}
	return filepath.ToSlash(rel)
}

func (r *recorder) PreVisitDirectory(dir string, _ fs.FileInfo) (Result, error) {
	r.events = append(r.events, "pre "+r.rel(dir))
	return Continue, nil
}

func (r *recorder) VisitFile(path string, _ fs.FileInfo) (Result, error) {
	rel := r.rel(path)
	r.events = append(r.events, "file "+rel)
	if r.fileResult != nil {
		return r.fileResult(rel), nil
	}
	return Continue, nil
}

func (r *recorder) VisitFailed(path string, err error) (Result, error) {
	r.events = append(r.events, "failed "+r.rel(path))
	r.failures = append(r.failures, err)
	return Continue, nil
}

func (r *recorder) PostVisitDirectory(dir string, _ error) (Result, error) {
	rel := r.rel(dir)
	r.events = append(r.events, "post "+rel)
	if r.postResult != nil {
		return r.postResult(rel), nil
	}
	return Continue, nil
}

func touch(t *testing.T, root string, rels ...string) {
	t.Helper()
	for _, rel := range rels {
		p := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, nil, 0o644))
	}
}

func TestWalkOrder(t *testing.T) {
	root := t.TempDir()
	touch(t, root, "b.txt", "a/2.txt", "a/1.txt", "c/d/3.txt")

	r := &recorder{root: root}
	require.NoError(t, Walk(context.Background(), root, r))

	assert.Equal(t, []string{
		"pre .",
		"pre a",
		"file a/1.txt",
		"file a/2.txt",
		"post a",
		"file b.txt",
		"pre c",
		"pre c/d",
		"file c/d/3.txt",
		"post c/d",
		"post c",
		"post .",
	}, r.events)
}

func TestWalkSkipSiblings(t *testing.T) {
	root := t.TempDir()
	touch(t, root,
		"orders/2024/01/part-0.parquet",
		"orders/2024/01/part-1.parquet",
		"orders/2024/01/zz/part-9.parquet",
		"orders/2024/02/part-0.parquet",
	)

	r := &recorder{
		root: root,
		fileResult: func(rel string) Result {
			if strings.HasSuffix(rel, ".parquet") {
				return SkipSiblings
			}
			return Continue
		},
	}
	require.NoError(t, Walk(context.Background(), root, r))

	assert.Equal(t, []string{
		"pre .",
		"pre orders",
		"pre orders/2024",
		"pre orders/2024/01",
		"file orders/2024/01/part-0.parquet",
		"post orders/2024/01",
		"pre orders/2024/02",
		"file orders/2024/02/part-0.parquet",
		"post orders/2024/02",
		"post orders/2024",
		"post orders",
		"post .",
	}, r.events)
}

func TestWalkTerminate(t *testing.T) {
	root := t.TempDir()
	touch(t, root, "a/1.txt", "b/2.txt")

	r := &recorder{
		root: root,
		fileResult: func(rel string) Result {
			if rel == "a/1.txt" {
				return Terminate
			}
			return Continue
		},
	}
	require.NoError(t, Walk(context.Background(), root, r))
	assert.Equal(t, []string{"pre .", "pre a", "file a/1.txt"}, r.events)
}

func TestWalkRootPostVisitTerminates(t *testing.T) {
	root := t.TempDir()
	touch(t, root, "a/1.txt")

	r := &recorder{
		root: root,
		postResult: func(rel string) Result {
			if rel == "." {
				return Terminate
			}
			return Continue
		},
	}
	require.NoError(t, Walk(context.Background(), root, r))
	assert.Equal(t, "post .", r.events[len(r.events)-1])
}

func TestWalkFollowsSymlinks(t *testing.T) {
	base := t.TempDir()
	root := filepath.Join(base, "root")
	elsewhere := filepath.Join(base, "elsewhere")
	touch(t, elsewhere, "x.txt")
	require.NoError(t, os.MkdirAll(root, 0o755))
	require.NoError(t, os.Symlink(elsewhere, filepath.Join(root, "linked")))

	r := &recorder{root: root}
	require.NoError(t, Walk(context.Background(), root, r))
	assert.Equal(t, []string{
		"pre .",
		"pre linked",
		"file linked/x.txt",
		"post linked",
		"post .",
	}, r.events)
}

func TestWalkDetectsLoops(t *testing.T) {
	root := t.TempDir()
	touch(t, root, "a/1.txt")
	require.NoError(t, os.Symlink(root, filepath.Join(root, "a", "up")))

	r := &recorder{root: root}
	require.NoError(t, Walk(context.Background(), root, r))

	assert.Contains(t, r.events, "failed a/up")
	require.Len(t, r.failures, 1)
	assert.ErrorIs(t, r.failures[0], ErrFileSystemLoop)
}

func TestWalkDanglingLinkIsAFile(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.Symlink(filepath.Join(root, "missing"), filepath.Join(root, "dangling.parquet")))

	r := &recorder{root: root}
	require.NoError(t, Walk(context.Background(), root, r))
	assert.Equal(t, []string{"pre .", "file dangling.parquet", "post ."}, r.events)
}

func TestWalkCancelled(t *testing.T) {
	root := t.TempDir()
	touch(t, root, "a.txt")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	r := &recorder{root: root}
	err := Walk(ctx, root, r)
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, []string{"pre ."}, r.events)
}

func TestWalkMissingRoot(t *testing.T) {
	root := filepath.Join(t.TempDir(), "missing")

	r := &recorder{root: root}
	require.NoError(t, Walk(context.Background(), root, r))
	require.Len(t, r.failures, 1)
	assert.ErrorIs(t, r.failures[0], os.ErrNotExist)
}

func TestResultString(t *testing.T) {
	assert.Equal(t, "skip-siblings", SkipSiblings.String())
	assert.Equal(t, "result(42)", Result(42).String())
}
