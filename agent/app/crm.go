package app

import (
	"context"
	"fmt"

	contractx "github.com/tanpawarit/Breeze-CRM-Copilot/agent/contract"
	pipedrivex "github.com/tanpawarit/Breeze-CRM-Copilot/pkg/pipedrive"
)

// PipedriveCRM adapts the Pipedrive REST client to the CRM port. Every
// client failure is reported as ErrCollaborator.
type PipedriveCRM struct {
	client *pipedrivex.Client
}

var _ contractx.CRM = (*PipedriveCRM)(nil)

func NewPipedriveCRM(client *pipedrivex.Client) *PipedriveCRM {
	return &PipedriveCRM{client: client}
}

func (c *PipedriveCRM) ListRecentDeals(ctx context.Context, limit int) ([]contractx.Deal, error) {
	deals, err := c.client.RecentDeals(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: list recent deals: %v", contractx.ErrCollaborator, err)
	}
	out := make([]contractx.Deal, 0, len(deals))
	for _, d := range deals {
		out = append(out, contractx.Deal{
			ID:         d.ID,
			Title:      d.Title,
			Status:     d.Status,
			Value:      d.Value,
			Currency:   d.Currency,
			OwnerName:  d.OwnerName,
			PersonName: d.PersonName,
			OrgName:    d.OrgName,
		})
	}
	return out, nil
}

func (c *PipedriveCRM) CreateNote(ctx context.Context, dealID int64, content string) error {
	if err := c.client.CreateNote(ctx, dealID, content); err != nil {
		return fmt.Errorf("%w: create note on deal %d: %v", contractx.ErrCollaborator, dealID, err)
	}
	return nil
}

func (c *PipedriveCRM) UpdateDealStatus(ctx context.Context, dealID int64, status contractx.DealStatus) error {
	if !status.Valid() {
		return fmt.Errorf("%w: status=%q", contractx.ErrValidation, status)
	}
	if err := c.client.UpdateDealStatus(ctx, dealID, string(status)); err != nil {
		return fmt.Errorf("%w: update deal %d: %v", contractx.ErrCollaborator, dealID, err)
	}
	return nil
}
