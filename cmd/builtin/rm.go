package builtin

import (
	"context"
	"fmt"
	"io"

	"github.com/mwantia/docstore/cmd"
)

type RmCommand struct {
}

func (c *RmCommand) Name() string {
	return "rm"
}

func (c *RmCommand) Description() string {
	return "Delete a file and every file depending on it"
}

func (c *RmCommand) Usage() string {
	return "rm <id>"
}

func (c *RmCommand) Execute(ctx context.Context, api cmd.API, args *cmd.CommandArgs, writer io.Writer) (int, error) {
	id, err := parseId(args)
	if err != nil {
		return 1, err
	}

	if err := api.DeleteFile(ctx, id, allowAll); err != nil {
		return 1, err
	}

	fmt.Fprintf(writer, "removed %s\n", id)
	return 0, nil
}

func (c *RmCommand) GetFlags() *cmd.CommandFlagSet {
	return nil
}
