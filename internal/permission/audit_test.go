package permission

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseShellCommandsSimple(t *testing.T) {
	cmds, err := ParseShellCommands("go test ./...")
	require.NoError(t, err)
	require.Len(t, cmds, 1)
	assert.Equal(t, "go", cmds[0].Name)
	assert.Equal(t, []string{"test", "./..."}, cmds[0].Args)
}

func TestParseShellCommandsPipeline(t *testing.T) {
	cmds, err := ParseShellCommands("cat main.go | grep func && echo done")
	require.NoError(t, err)
	require.Len(t, cmds, 3)
	assert.Equal(t, "cat", cmds[0].Name)
	assert.Equal(t, "grep", cmds[1].Name)
	assert.Equal(t, "echo", cmds[2].Name)
}

func TestParseShellCommandsQuoting(t *testing.T) {
	cmds, err := ParseShellCommands(`git commit -m "fix: handle empty scope"`)
	require.NoError(t, err)
	require.Len(t, cmds, 1)
	assert.Equal(t, []string{"commit", "-m", "fix: handle empty scope"}, cmds[0].Args)
}

func TestParseShellCommandsSubstitutionMarker(t *testing.T) {
	cmds, err := ParseShellCommands("echo $(whoami) $HOME")
	require.NoError(t, err)
	// whoami appears as its own command from inside the substitution.
	names := make([]string, 0, len(cmds))
	for _, c := range cmds {
		names = append(names, c.Name)
	}
	assert.Contains(t, names, "echo")
	assert.Contains(t, names, "whoami")
}

func TestParseShellCommandsInvalid(t *testing.T) {
	_, err := ParseShellCommands("if then fi ((")
	assert.Error(t, err)
}

func TestAuditBashNeverPanics(t *testing.T) {
	assert.NotPanics(t, func() {
		auditBash(nil)
		auditBash(map[string]any{})
		auditBash(map[string]any{"command": 42})
		auditBash(map[string]any{"command": "(("})
		auditBash(map[string]any{"command": "ls -la"})
	})
}
