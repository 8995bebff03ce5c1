package builtin

import (
	"context"
	"fmt"
	"io"

	"github.com/dustin/go-humanize"

	"github.com/mwantia/docstore/cmd"
	"github.com/mwantia/docstore/data"
)

type StatsCommand struct {
}

func (c *StatsCommand) Name() string {
	return "stats"
}

func (c *StatsCommand) Description() string {
	return "Show entry counts per file type"
}

func (c *StatsCommand) Usage() string {
	return "stats"
}

func (c *StatsCommand) Execute(ctx context.Context, api cmd.API, args *cmd.CommandArgs, writer io.Writer) (int, error) {
	stats := api.Stats()

	t := newTable("TYPE", "COUNT")
	for _, fileType := range data.FileTypes() {
		if count, ok := stats.ByType[fileType]; ok {
			t.Row(fileType.String(), humanize.Comma(int64(count)))
		}
	}
	t.Row("total", humanize.Comma(int64(stats.Entries)))

	fmt.Fprintln(writer, t.String())
	fmt.Fprintf(writer, "open handles: %d\n", stats.OpenHandles)
	return 0, nil
}

func (c *StatsCommand) GetFlags() *cmd.CommandFlagSet {
	return nil
}
