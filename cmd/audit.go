package cmd

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"

	auditx "github.com/tanpawarit/Breeze-CRM-Copilot/agent/audit"
	contractx "github.com/tanpawarit/Breeze-CRM-Copilot/agent/contract"
	configx "github.com/tanpawarit/Breeze-CRM-Copilot/pkg/config"
)

// AuditCmd prints the most recent side-effecting tool calls.
// Usage: copilot audit --limit 50
type AuditCmd struct {
	Limit int `short:"n" long:"limit" description:"number of invocations to show" default:"20"`

	out io.Writer
}

type invocationLister interface {
	Recent(ctx context.Context, limit int) ([]contractx.ToolInvocation, error)
}

func (c *AuditCmd) Execute(_ []string) error {
	ctx := context.Background()
	cfg, err := configx.New[auditx.Config]("AUDIT")
	if err != nil {
		return err
	}
	l, err := auditx.Open(ctx, *cfg)
	if err != nil {
		return err
	}
	defer l.Close()

	_, out := streams(nil, c.out)
	return listRecent(ctx, l, out, c.Limit)
}

func listRecent(ctx context.Context, lister invocationLister, out io.Writer, limit int) error {
	invocations, err := lister.Recent(ctx, limit)
	if err != nil {
		return err
	}
	if len(invocations) == 0 {
		fmt.Fprintln(out, "No tool invocations recorded.")
		return nil
	}

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "TOOL\tTARGET\tOUTCOME\tRESULT")
	for _, inv := range invocations {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", inv.Tool, inv.Target, inv.Outcome, inv.Result)
	}
	return tw.Flush()
}
