package fakes

import (
	"context"
	"sync"

	contractx "github.com/tanpawarit/Breeze-CRM-Copilot/agent/contract"
)

type NoteCall struct {
	DealID  int64
	Content string
}

type StatusCall struct {
	DealID int64
	Status contractx.DealStatus
}

// CRM records mutations and serves a fixed deal list.
type CRM struct {
	mu sync.Mutex

	Deals     []contractx.Deal
	ListErr   error
	NoteErr   error
	StatusErr error

	ListLimits  []int
	NoteCalls   []NoteCall
	StatusCalls []StatusCall
}

var _ contractx.CRM = (*CRM)(nil)

func (c *CRM) ListRecentDeals(ctx context.Context, limit int) ([]contractx.Deal, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ListLimits = append(c.ListLimits, limit)
	if c.ListErr != nil {
		return nil, c.ListErr
	}
	if limit > 0 && limit < len(c.Deals) {
		return append([]contractx.Deal(nil), c.Deals[:limit]...), nil
	}
	return append([]contractx.Deal(nil), c.Deals...), nil
}

func (c *CRM) CreateNote(ctx context.Context, dealID int64, content string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.NoteCalls = append(c.NoteCalls, NoteCall{DealID: dealID, Content: content})
	return c.NoteErr
}

func (c *CRM) UpdateDealStatus(ctx context.Context, dealID int64, status contractx.DealStatus) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.StatusCalls = append(c.StatusCalls, StatusCall{DealID: dealID, Status: status})
	return c.StatusErr
}

func (c *CRM) MutationCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.NoteCalls) + len(c.StatusCalls)
}

// InvocationLog keeps recorded tool invocations in memory.
type InvocationLog struct {
	mu      sync.Mutex
	Entries []contractx.ToolInvocation
	Err     error
}

var _ contractx.InvocationLog = (*InvocationLog)(nil)

func (l *InvocationLog) Record(ctx context.Context, inv contractx.ToolInvocation) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.Entries = append(l.Entries, inv)
	return l.Err
}

// Answerer returns a fixed answer and records questions.
type Answerer struct {
	mu        sync.Mutex
	Reply     string
	Err       error
	Questions []string
}

var _ contractx.Answerer = (*Answerer)(nil)

func (a *Answerer) Answer(ctx context.Context, question string) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.Questions = append(a.Questions, question)
	if a.Err != nil {
		return "", a.Err
	}
	return a.Reply, nil
}
