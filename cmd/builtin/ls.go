package builtin

import (
	"context"
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/mwantia/docstore/cmd"
	"github.com/mwantia/docstore/data"
)

type LsCommand struct {
}

// Name returns the command identifier
func (ls *LsCommand) Name() string {
	return "ls"
}

// Description returns human-readable help text
func (ls *LsCommand) Description() string {
	return "List files matching a query"
}

// Usage returns a usage string for help
func (ls *LsCommand) Usage() string {
	return "ls [-t type] [-p publisher] [-f key=value] [--skip n] [--take n] [--order property]"
}

// Execute runs the command with parsed arguments
// Returns exit code (0 = success) and error message
func (ls *LsCommand) Execute(ctx context.Context, api cmd.API, args *cmd.CommandArgs, writer io.Writer) (int, error) {
	q, err := buildQuery(args)
	if err != nil {
		return 1, err
	}

	response, err := api.GetFileStates(ctx, q, allowAll)
	if err != nil {
		return 1, err
	}

	writeStates(writer, response.Files, q.Language)
	fmt.Fprintf(writer, "%d of %s files\n", len(response.Files), humanize.Comma(int64(response.TotalCount)))
	if args.Bool("facets") {
		writeFacets(writer, response.Facets)
	}
	return 0, nil
}

// GetFlags returns the flag set for this command
func (ls *LsCommand) GetFlags() *cmd.CommandFlagSet {
	return &cmd.CommandFlagSet{
		Flags: map[string]*cmd.CommandFlag{
			"type":      {Name: "type", Short: "t", Type: "string", Multiple: true, Description: "Only files of this type"},
			"publisher": {Name: "publisher", Short: "p", Type: "string", Multiple: true, Description: "Only files of this publisher"},
			"facet":     {Name: "facet", Short: "f", Type: "string", Multiple: true, Description: "Filter on key=value; repeat for OR within a key"},
			"require":   {Name: "require", Type: "string", Multiple: true, Description: "Compute counts for this facet"},
			"language":  {Name: "language", Short: "l", Type: "string", Description: "Language for names and ordering"},
			"order":     {Name: "order", Short: "o", Type: "string", Description: "Order property, prefix with '-' to reverse"},
			"published": {Name: "published", Type: "bool", Description: "Only published files"},
			"facets":    {Name: "facets", Type: "bool", Description: "Print facet counts"},
			"skip":      {Name: "skip", Type: "int", Default: int64(0), Description: "Skip the first n results"},
			"take":      {Name: "take", Type: "int", Default: int64(50), Description: "Return at most n results, 0 for all"},
		},
	}
}

func buildQuery(args *cmd.CommandArgs) (*data.FileStorageQuery, error) {
	q := &data.FileStorageQuery{
		OnlyPublishers: args.Strings("publisher"),
		RequiredFacets: args.Strings("require"),
		OnlyPublished:  args.Bool("published"),
		Language:       args.String("language"),
		SkipResults:    args.Int("skip"),
		MaxResults:     args.Int("take"),
	}

	for _, name := range args.Strings("type") {
		fileType, err := data.ParseFileType(name)
		if err != nil {
			return nil, err
		}
		q.OnlyTypes = append(q.OnlyTypes, fileType)
	}

	for _, pair := range args.Strings("facet") {
		key, value, ok := strings.Cut(pair, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid facet filter '%s', expected key=value", pair)
		}
		if q.AdditionalFilters == nil {
			q.AdditionalFilters = make(map[string][]string)
		}
		q.AdditionalFilters[key] = append(q.AdditionalFilters[key], value)
		q.RequiredFacets = appendMissing(q.RequiredFacets, key)
	}

	if order := args.String("order"); order != "" {
		reverse := strings.HasPrefix(order, "-")
		property, err := data.ParseOrderProperty(strings.TrimPrefix(order, "-"))
		if err != nil {
			return nil, err
		}
		q.OrderDefinitions = []data.OrderDefinition{{Property: property, ReverseOrder: reverse}}
	}

	return q, nil
}

func appendMissing(values []string, value string) []string {
	if slices.Contains(values, value) {
		return values
	}
	return append(values, value)
}
