package cli

import (
	"bytes"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommandTree(t *testing.T) {
	app := New()

	var names []string
	for _, c := range app.rootCmd.Commands() {
		names = append(names, c.Name())
	}

	for _, want := range []string{"build", "up", "down", "status", "logs", "history", "serve", "version"} {
		assert.Contains(t, names, want)
	}
}

func TestVersionCommand(t *testing.T) {
	app := New()
	app.SetVersion("1.2.3")

	var out bytes.Buffer
	app.rootCmd.SetOut(&out)
	app.rootCmd.SetArgs([]string{"version"})

	require.NoError(t, app.Execute())
	assert.Equal(t, "bbdeploy 1.2.3\n", out.String())
}

type closeTrackingReader struct {
	io.Reader
	closed bool
}

func (c *closeTrackingReader) Close() error {
	c.closed = true
	return nil
}

func TestPrintLogs(t *testing.T) {
	logs := &closeTrackingReader{Reader: strings.NewReader("hello from the service\n")}

	var out bytes.Buffer
	require.NoError(t, printLogs(&out, logs))

	assert.Equal(t, "hello from the service\n", out.String())
	assert.True(t, logs.closed, "log stream must be closed after copying")
}

func TestLifecycleCommandsRejectArgs(t *testing.T) {
	for _, name := range []string{"up", "down", "status"} {
		app := New()
		app.rootCmd.SetOut(new(bytes.Buffer))
		app.rootCmd.SetErr(new(bytes.Buffer))
		app.rootCmd.SetArgs([]string{name, "extra"})

		err := app.Execute()
		assert.Error(t, err, "command %s should reject positional args", name)
	}
}
