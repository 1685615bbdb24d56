package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"
)

const testTopology = `
master: pantry: {
	data: {
		alice: {age: 30, pie: "apple"}
		bob: {age: 25, pie: "pecan"}
	}
}

composite: kitchen: {
	upstream: "pantry"
	select: {prefix: ["alice"]}
}

expression: menu: {
	upstream: "pantry"
	select: {fields: ["pie"]}
}
`

const testScript = `
description: pantry updates
steps:
  - node: pantry
    path: alice/pie
    kind: update
    value: cherry
  - node: pantry
    path: carol
    kind: insert
    value:
      age: 41
      pie: rhubarb
`

func writeTestTopology(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "topology.cue"), []byte(testTopology), 0o644))
	return dir
}

func writeTestScript(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "script.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func executeCommand(t *testing.T, cmd *cobra.Command, args ...string) (string, error) {
	t.Helper()
	buf := &bytes.Buffer{}
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}
