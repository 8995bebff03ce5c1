package builtin

import (
	"context"
	"fmt"
	"io"

	"github.com/mwantia/docstore/cmd"
)

type CatCommand struct {
}

func (c *CatCommand) Name() string {
	return "cat"
}

func (c *CatCommand) Description() string {
	return "Print the content of a file"
}

func (c *CatCommand) Usage() string {
	return "cat <id>"
}

func (c *CatCommand) Execute(ctx context.Context, api cmd.API, args *cmd.CommandArgs, writer io.Writer) (int, error) {
	id, err := parseId(args)
	if err != nil {
		return 1, err
	}

	reader, err := api.OpenReadStream(ctx, id, allowAll)
	if err != nil {
		return 1, err
	}
	if reader == nil {
		return 1, fmt.Errorf("file not found or locked by a writer: %s", id)
	}
	defer reader.Close()

	if _, err := io.Copy(writer, reader); err != nil {
		return 1, err
	}
	return 0, nil
}

func (c *CatCommand) GetFlags() *cmd.CommandFlagSet {
	return nil
}
