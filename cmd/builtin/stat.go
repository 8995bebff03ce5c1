package builtin

import (
	"context"
	"fmt"
	"io"

	"github.com/mwantia/docstore/cmd"
)

type StatCommand struct {
}

func (c *StatCommand) Name() string {
	return "stat"
}

func (c *StatCommand) Description() string {
	return "Show the metadata of a file"
}

func (c *StatCommand) Usage() string {
	return "stat <id>"
}

func (c *StatCommand) Execute(ctx context.Context, api cmd.API, args *cmd.CommandArgs, writer io.Writer) (int, error) {
	id, err := parseId(args)
	if err != nil {
		return 1, err
	}

	state, err := api.GetFileState(ctx, id, allowAll)
	if err != nil {
		return 1, err
	}
	if state == nil {
		return 1, fmt.Errorf("file not found: %s", id)
	}

	var size *int
	if state.Content != nil {
		n := len(*state.Content)
		size = &n
	}

	writeMetadata(writer, state.Metadata, size)
	return 0, nil
}

func (c *StatCommand) GetFlags() *cmd.CommandFlagSet {
	return nil
}
