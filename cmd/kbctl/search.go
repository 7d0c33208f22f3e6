package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"

	"github.com/kailas-cloud/kbase/internal/domain/document"
	"github.com/kailas-cloud/kbase/internal/domain/search/filter"
	"github.com/kailas-cloud/kbase/internal/domain/search/mode"
	"github.com/kailas-cloud/kbase/internal/domain/search/request"
	knowledgeuc "github.com/kailas-cloud/kbase/internal/usecase/knowledge"
)

const snippetLen = 160

func runSearch(ctx context.Context, args []string, stdout io.Writer) error {
	fs := newFlagSet("search", "<query>")
	var common commonFlags
	common.register(fs)
	modeFlag := fs.String("mode", "", "vector, keyword or hybrid (default: backend default)")
	limit := fs.Int("limit", request.DefaultLimit, "maximum results")
	minScore := fs.Float64("min-score", 0, "drop results scoring below this")
	filters := fs.String("filters", "", "JSON filter object")
	asJSON := fs.Bool("json", false, "print documents as JSON lines")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() == 0 {
		fs.Usage()
		return fmt.Errorf("%w: search needs a query", errUsage)
	}

	m, err := mode.Parse(*modeFlag)
	if err != nil {
		return fmt.Errorf("%w: %w", errUsage, err)
	}
	f, err := filter.Parse(*filters)
	if err != nil {
		return fmt.Errorf("%w: %w", errUsage, err)
	}
	req, err := request.New(strings.Join(fs.Args(), " "), m, f, *limit, *minScore)
	if err != nil {
		return fmt.Errorf("%w: %w", errUsage, err)
	}

	_, backend, err := common.open(ctx)
	if err != nil {
		return err
	}
	defer backend.Close()

	res, err := knowledgeuc.New(backend.DB, nil).Search(ctx, req)
	if err != nil {
		return err
	}

	if *asJSON {
		enc := json.NewEncoder(stdout)
		for _, doc := range res.Documents() {
			if err := enc.Encode(doc); err != nil {
				return err
			}
		}
		return nil
	}

	printResults(stdout, res.Mode(), res.Documents(), res.TotalTokens())
	return nil
}

func printResults(w io.Writer, m mode.Mode, docs []document.Document, tokens int) {
	header := color.New(color.FgCyan, color.Bold)
	header.Fprintf(w, "%d results (%s search", len(docs), m)
	if tokens > 0 {
		header.Fprintf(w, ", %d embedding tokens", tokens)
	}
	header.Fprintln(w, ")")

	for i, doc := range docs {
		score := "     -"
		if s, ok := doc.RerankingScore(); ok {
			score = fmt.Sprintf("%6.3f", s)
		}
		fmt.Fprintf(w, "\n%s %s %s\n",
			color.YellowString("%2d.", i+1),
			color.GreenString(score),
			color.New(color.Bold).Sprint(label(doc)))
		fmt.Fprintf(w, "    %s\n", snippet(doc.Content()))
	}
}

func label(doc document.Document) string {
	if name, ok := doc.Name(); ok {
		return name
	}
	if id, ok := doc.ID(); ok {
		return id
	}
	return "(unnamed)"
}

func snippet(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	if r := []rune(s); len(r) > snippetLen {
		return string(r[:snippetLen]) + "…"
	}
	return s
}
