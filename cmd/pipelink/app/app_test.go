package app

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand(t *testing.T) {
	a := New("1.2.3", "abc", "today")
	root := a.rootCommand()

	assert.Equal(t, "pipelink", root.Use)
	assert.Equal(t, "1.2.3", root.Version)

	names := make([]string, 0)
	for _, c := range root.Commands() {
		names = append(names, c.Name())
	}
	assert.Contains(t, names, "attach-products")
}

func TestAttachProductsFlags(t *testing.T) {
	a := New("dev", "", "")
	root := a.rootCommand()

	cmd, _, err := root.Find([]string{"attach-products"})
	require.NoError(t, err)

	for _, name := range []string{"dry-run", "limit", "report", "no-confirm"} {
		assert.NotNil(t, cmd.Flags().Lookup(name), "missing flag %s", name)
	}
	assert.NotNil(t, root.PersistentFlags().Lookup("profile"))
	assert.NotNil(t, root.PersistentFlags().Lookup("env-file"))
}

func TestExecuteHelp(t *testing.T) {
	a := New("dev", "", "")
	root := a.rootCommand()

	var buf bytes.Buffer
	root.SetOut(&buf)
	root.SetArgs([]string{"--help"})
	require.NoError(t, root.ExecuteContext(context.Background()))
	assert.Contains(t, buf.String(), "attach-products")
}
