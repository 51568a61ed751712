package scope

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmptyScopeAllowsEverything(t *testing.T) {
	s, err := New(nil)
	require.NoError(t, err)

	assert.True(t, s.Empty())
	assert.True(t, s.Allows("/etc/passwd"))
	assert.True(t, s.Allows("relative/path"))
	assert.True(t, s.Allows(t.TempDir()))
}

func TestAllowsExactRootAndDescendants(t *testing.T) {
	root := t.TempDir()
	sub := filepath.Join(root, "pkg")
	require.NoError(t, os.MkdirAll(sub, 0o755))

	s, err := New([]string{root})
	require.NoError(t, err)
	require.False(t, s.Empty())

	assert.True(t, s.Allows(root), "root itself")
	assert.True(t, s.Allows(sub), "existing descendant")
	assert.True(t, s.Allows(filepath.Join(root, "not", "yet", "created.go")), "unborn descendant")
}

func TestRejectsOutsidePaths(t *testing.T) {
	root := t.TempDir()
	other := t.TempDir()

	s, err := New([]string{root})
	require.NoError(t, err)

	assert.False(t, s.Allows(other))
	assert.False(t, s.Allows(filepath.Join(other, "file.go")))
	assert.False(t, s.Allows(filepath.Dir(root)), "parent of a root is outside")
}

func TestFilesystemRootAllowsAllDescendants(t *testing.T) {
	s, err := New([]string{string(filepath.Separator)})
	require.NoError(t, err)
	require.False(t, s.Empty())

	assert.True(t, s.Allows(string(filepath.Separator)), "the root itself")
	assert.True(t, s.Allows("/etc"), "direct child of /")
	assert.True(t, s.Allows("/etc/passwd"), "deeper descendant of /")
	assert.True(t, s.Allows(t.TempDir()))
}

func TestSiblingPrefixIsNotDescendant(t *testing.T) {
	base := t.TempDir()
	root := filepath.Join(base, "work")
	sibling := filepath.Join(base, "workspace")
	require.NoError(t, os.MkdirAll(root, 0o755))
	require.NoError(t, os.MkdirAll(sibling, 0o755))

	s, err := New([]string{root})
	require.NoError(t, err)

	assert.False(t, s.Allows(sibling), "name prefix must not count as containment")
}

func TestDotDotEscapeIsResolved(t *testing.T) {
	root := t.TempDir()

	s, err := New([]string{root})
	require.NoError(t, err)

	escape := filepath.Join(root, "..", filepath.Base(root)+"-other", "x")
	assert.False(t, s.Allows(escape))

	reentry := filepath.Join(root, "sub", "..", "file.go")
	assert.True(t, s.Allows(reentry))
}

func TestSymlinkedTargetResolvesToRealLocation(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("symlink semantics differ on windows")
	}

	root := t.TempDir()
	outside := t.TempDir()
	secret := filepath.Join(outside, "secret.txt")
	require.NoError(t, os.WriteFile(secret, []byte("x"), 0o600))

	link := filepath.Join(root, "alias.txt")
	require.NoError(t, os.Symlink(secret, link))

	s, err := New([]string{root})
	require.NoError(t, err)

	assert.False(t, s.Allows(link), "symlink out of scope must be denied")
}

func TestMultipleRoots(t *testing.T) {
	a := t.TempDir()
	b := t.TempDir()

	s, err := New([]string{a, b})
	require.NoError(t, err)

	assert.True(t, s.Allows(filepath.Join(a, "f")))
	assert.True(t, s.Allows(filepath.Join(b, "g")))
	assert.False(t, s.Allows(t.TempDir()))
}

func TestBlankEntriesIgnored(t *testing.T) {
	s, err := New([]string{"", "  "})
	require.NoError(t, err)
	assert.True(t, s.Empty())
}

func TestCanonicalizeNonexistentKeepsSuffix(t *testing.T) {
	root := t.TempDir()
	target := filepath.Join(root, "a", "b", "c.txt")

	got, err := Canonicalize(target)
	require.NoError(t, err)

	resolvedRoot, err := filepath.EvalSymlinks(root)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(resolvedRoot, "a", "b", "c.txt"), got)
}
