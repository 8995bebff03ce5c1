package builtin

import (
	"context"
	"fmt"
	"io"

	"github.com/dustin/go-humanize"

	"github.com/mwantia/docstore/cmd"
)

type ReloadCommand struct {
}

func (c *ReloadCommand) Name() string {
	return "reload"
}

func (c *ReloadCommand) Description() string {
	return "Rebuild the index from the metadata files on disk"
}

func (c *ReloadCommand) Usage() string {
	return "reload"
}

func (c *ReloadCommand) Execute(ctx context.Context, api cmd.API, args *cmd.CommandArgs, writer io.Writer) (int, error) {
	if err := api.LoadEntries(ctx); err != nil {
		return 1, err
	}

	fmt.Fprintf(writer, "loaded %s entries\n", humanize.Comma(int64(api.Stats().Entries)))
	return 0, nil
}

func (c *ReloadCommand) GetFlags() *cmd.CommandFlagSet {
	return nil
}
