package cmd

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type echoCommand struct {
	name string
}

func (c *echoCommand) Name() string        { return c.name }
func (c *echoCommand) Description() string { return "Echo the arguments" }
func (c *echoCommand) Usage() string       { return c.name + " [-u] <text>" }

func (c *echoCommand) Execute(ctx context.Context, api API, args *CommandArgs, writer io.Writer) (int, error) {
	text := strings.Join(args.Args, " ")
	if args.Bool("upper") {
		text = strings.ToUpper(text)
	}
	fmt.Fprint(writer, text)
	return 0, nil
}

func (c *echoCommand) GetFlags() *CommandFlagSet {
	return &CommandFlagSet{Flags: map[string]*CommandFlag{
		"upper": {Name: "upper", Short: "u", Type: "bool", Description: "Uppercase the output"},
	}}
}

func TestManager_RegisterAndList(t *testing.T) {
	m := NewManager(nil)

	require.NoError(t, m.Register(&echoCommand{name: "zeta"}))
	require.NoError(t, m.Register(&echoCommand{name: "alpha"}))
	assert.ErrorContains(t, m.Register(&echoCommand{name: "alpha"}), "already registered")
	assert.Error(t, m.Register(nil))
	assert.Error(t, m.Register(&echoCommand{}))

	names := make([]string, 0)
	for _, cmd := range m.List() {
		names = append(names, cmd.Name())
	}
	assert.Equal(t, []string{"alpha", "zeta"}, names)

	require.NoError(t, m.Unregister("zeta"))
	assert.Error(t, m.Unregister("zeta"))
	_, err := m.Get("zeta")
	assert.ErrorContains(t, err, "command not found")
}

func TestManager_Execute(t *testing.T) {
	m := NewManager(nil)
	require.NoError(t, m.Register(&echoCommand{name: "echo"}))

	var out bytes.Buffer
	code, err := m.Execute(t.Context(), &out, "echo", "-u", "hello", "world")
	require.NoError(t, err)
	assert.Equal(t, 0, code)
	assert.Equal(t, "HELLO WORLD", out.String())

	code, err = m.Execute(t.Context(), &out)
	assert.Equal(t, 1, code)
	assert.Error(t, err)

	code, err = m.Execute(t.Context(), &out, "echo", "--nope")
	assert.Equal(t, 1, code)
	assert.ErrorContains(t, err, "parse error")
}

func TestManager_Help(t *testing.T) {
	m := NewManager(nil)
	require.NoError(t, m.Register(&echoCommand{name: "echo"}))

	var out bytes.Buffer
	code, err := m.Execute(t.Context(), &out, "help")
	require.NoError(t, err)
	assert.Equal(t, 0, code)
	assert.Contains(t, out.String(), "echo")
	assert.Contains(t, out.String(), "Echo the arguments")

	out.Reset()
	_, err = m.Execute(t.Context(), &out, "help", "echo")
	require.NoError(t, err)
	assert.Contains(t, out.String(), "Usage: echo [-u] <text>")
	assert.Contains(t, out.String(), "--upper")
}
