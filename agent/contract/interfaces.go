package contract

import "context"

// Handler is a domain handler: one request string in, final text out.
type Handler interface {
	Handle(ctx context.Context, request string) (string, error)
}

type Registry interface {
	Sales() Handler
	Marketing() Handler
	Service() Handler
}

// Classifier performs the forced classification of a user message.
type Classifier interface {
	Classify(ctx context.Context, message string) (Route, error)
}

type CRM interface {
	ListRecentDeals(ctx context.Context, limit int) ([]Deal, error)
	CreateNote(ctx context.Context, dealID int64, content string) error
	UpdateDealStatus(ctx context.Context, dealID int64, status DealStatus) error
}

// VectorIndex is a nearest-neighbour store with a dimension fixed at creation.
type VectorIndex interface {
	Dimension() int
	Upsert(ctx context.Context, records []VectorRecord) error
	Query(ctx context.Context, vector []float64, topK int) ([]VectorMatch, error)
}

// Answerer produces grounded answers from indexed CRM records.
type Answerer interface {
	Answer(ctx context.Context, question string) (string, error)
}

type InvocationLog interface {
	Record(ctx context.Context, inv ToolInvocation) error
}
