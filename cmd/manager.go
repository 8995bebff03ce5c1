package cmd

import (
	"context"
	"fmt"
	"io"
	"slices"
	"strings"
	"sync"
)

// Manager handles command registration, parsing, and execution
type Manager struct {
	mu   sync.RWMutex
	api  API
	cmds map[string]Command
}

func NewManager(api API) *Manager {
	return &Manager{
		api:  api,
		cmds: make(map[string]Command),
	}
}

// Register registers a command
func (m *Manager) Register(cmd Command) error {
	if cmd == nil {
		return fmt.Errorf("command cannot be nil")
	}

	name := cmd.Name()
	if name == "" {
		return fmt.Errorf("command name cannot be empty")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.cmds[name]; exists {
		return fmt.Errorf("command already registered: %s", name)
	}

	m.cmds[name] = cmd
	return nil
}

// Unregister removes a registered command
func (m *Manager) Unregister(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.cmds[name]; !exists {
		return fmt.Errorf("command not found: %s", name)
	}

	delete(m.cmds, name)
	return nil
}

// Get returns a command by name
func (m *Manager) Get(name string) (Command, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	cmd, exists := m.cmds[name]
	if !exists {
		return nil, fmt.Errorf("command not found: %s", name)
	}

	return cmd, nil
}

// List returns all registered commands sorted by name
func (m *Manager) List() []Command {
	m.mu.RLock()
	defer m.mu.RUnlock()

	commands := make([]Command, 0, len(m.cmds))
	for _, cmd := range m.cmds {
		commands = append(commands, cmd)
	}

	slices.SortFunc(commands, func(a, b Command) int {
		return strings.Compare(a.Name(), b.Name())
	})
	return commands
}

// Execute parses and executes a command
func (m *Manager) Execute(ctx context.Context, writer io.Writer, args ...string) (int, error) {
	if len(args) == 0 {
		return 1, fmt.Errorf("no command specified")
	}

	cmdName := args[0]
	cmdArgs := args[1:]

	if cmdName == "help" {
		return m.Help(writer, cmdArgs...)
	}

	cmd, err := m.Get(cmdName)
	if err != nil {
		return 1, err
	}

	flagSet := cmd.GetFlags()
	if flagSet == nil {
		flagSet = &CommandFlagSet{Flags: make(map[string]*CommandFlag)}
	}

	parsedArgs, err := NewParser(flagSet).Parse(cmdArgs)
	if err != nil {
		return 1, fmt.Errorf("parse error: %w", err)
	}

	return cmd.Execute(ctx, m.api, parsedArgs, writer)
}

// Help writes the command overview, or the flags of a single command.
func (m *Manager) Help(writer io.Writer, names ...string) (int, error) {
	if len(names) == 0 {
		fmt.Fprintln(writer, "Commands:")
		for _, cmd := range m.List() {
			fmt.Fprintf(writer, "  %-8s %s\n", cmd.Name(), cmd.Description())
		}
		return 0, nil
	}

	cmd, err := m.Get(names[0])
	if err != nil {
		return 1, err
	}

	fmt.Fprintf(writer, "Usage: %s\n\n%s\n", cmd.Usage(), cmd.Description())
	if flagSet := cmd.GetFlags(); flagSet != nil && len(flagSet.Flags) > 0 {
		names := make([]string, 0, len(flagSet.Flags))
		for name := range flagSet.Flags {
			names = append(names, name)
		}
		slices.Sort(names)

		fmt.Fprintln(writer, "\nFlags:")
		for _, name := range names {
			flag := flagSet.Flags[name]
			short := "   "
			if flag.Short != "" {
				short = "-" + flag.Short + ","
			}
			fmt.Fprintf(writer, "  %s --%-12s %s\n", short, flag.Name, flag.Description)
		}
	}
	return 0, nil
}
