package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
)

// IngestCmd rebuilds the knowledge base from recent deals.
type IngestCmd struct{}

func (c *IngestCmd) Execute(_ []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	a, err := bootstrap(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	report, err := a.Ingest.Run(ctx)
	if err != nil {
		return err
	}
	total, err := a.Index.Count(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stdout, "Ingested %d deals as %d chunks; index holds %d records.\n", report.Deals, report.Chunks, total)
	return nil
}
