package builtin

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/mwantia/docstore/cmd"
	"github.com/mwantia/docstore/data"
)

var ErrSearchDisabled = errors.New("full-text search is disabled")

type SearchCommand struct {
	Searcher cmd.Searcher
}

func (c *SearchCommand) Name() string {
	return "search"
}

func (c *SearchCommand) Description() string {
	return "Full-text search over names, publishers and facet values"
}

func (c *SearchCommand) Usage() string {
	return "search [-l language] [--take n] <text>"
}

func (c *SearchCommand) Execute(ctx context.Context, api cmd.API, args *cmd.CommandArgs, writer io.Writer) (int, error) {
	if c.Searcher == nil {
		return 1, ErrSearchDisabled
	}

	text := strings.Join(args.Args, " ")
	if strings.TrimSpace(text) == "" {
		return 1, fmt.Errorf("missing argument: text")
	}

	q, err := c.Searcher.Translate(ctx, &data.FileStorageQuery{
		QueryText:  text,
		Language:   args.String("language"),
		MaxResults: args.Int("take"),
	})
	if err != nil {
		return 1, err
	}

	response, err := api.GetFileStates(ctx, q, allowAll)
	if err != nil {
		return 1, err
	}

	writeStates(writer, response.Files, q.Language)
	fmt.Fprintf(writer, "%d of %d matches\n", len(response.Files), response.TotalCount)
	return 0, nil
}

func (c *SearchCommand) GetFlags() *cmd.CommandFlagSet {
	return &cmd.CommandFlagSet{
		Flags: map[string]*cmd.CommandFlag{
			"language": {Name: "language", Short: "l", Type: "string", Description: "Prefer names in this language"},
			"take":     {Name: "take", Type: "int", Default: int64(20), Description: "Return at most n results, 0 for all"},
		},
	}
}
