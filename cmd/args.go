package cmd

import "fmt"

// CommandArgs contains parsed command arguments
type CommandArgs struct {
	// Positional arguments (command-specific)
	Args []string

	// Parsed flags
	Flags map[string]any

	// Raw unparsed arguments (for custom parsing)
	Raw []string
}

// CommandFlagSet defines the expected flags for a command
type CommandFlagSet struct {
	Flags map[string]*CommandFlag
}

// CommandFlag represents a single command-line flag
type CommandFlag struct {
	Name        string `json:"name"`              // e.g., "type" or "t"
	Short       string `json:"short"`             // Single-char shorthand (e.g., "t")
	Type        string `json:"type"`              // "string", "bool", "int", "stringSlice"
	Default     any    `json:"default,omitempty"` // Default value
	Required    bool   `json:"required"`          // Must be provided
	Description string `json:"description"`       // Help text
	Multiple    bool   `json:"multiple"`          // Can be specified multiple times
}

func (a *CommandArgs) String(name string) string {
	if v, ok := a.Flags[name].(string); ok {
		return v
	}
	return ""
}

func (a *CommandArgs) Int(name string) int {
	switch v := a.Flags[name].(type) {
	case int64:
		return int(v)
	case int:
		return v
	}
	return 0
}

func (a *CommandArgs) Bool(name string) bool {
	v, _ := a.Flags[name].(bool)
	return v
}

// Strings returns every value of a flag given multiple times.
func (a *CommandArgs) Strings(name string) []string {
	switch v := a.Flags[name].(type) {
	case []string:
		return v
	case string:
		return []string{v}
	}
	return nil
}

// Arg returns the positional argument at i or an error naming it.
func (a *CommandArgs) Arg(i int, name string) (string, error) {
	if i >= len(a.Args) {
		return "", fmt.Errorf("missing argument: %s", name)
	}
	return a.Args[i], nil
}
