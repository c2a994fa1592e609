package contract

type AgentType string

const (
	AgentTypeSupervisor AgentType = "supervisor"
	AgentTypeSales      AgentType = "sales"
	AgentTypeMarketing  AgentType = "marketing"
	AgentTypeService    AgentType = "service"
	AgentTypeGenerator  AgentType = "generator"
	AgentTypeRAG        AgentType = "rag"
)

// Route is the closed set of supervisor decisions.
type Route string

const (
	RouteSales     Route = "SalesAgent"
	RouteMarketing Route = "MarketingAgent"
	RouteService   Route = "ServiceAgent"
	RouteFinish    Route = "Finish"
)

var AllRoutes = []Route{RouteSales, RouteMarketing, RouteService, RouteFinish}

func (r Route) Valid() bool {
	switch r {
	case RouteSales, RouteMarketing, RouteService, RouteFinish:
		return true
	default:
		return false
	}
}

// Handler returns the identity a domain handler tags its messages with.
func (r Route) Handler() string {
	switch r {
	case RouteSales:
		return "Sales Agent"
	case RouteMarketing:
		return "Marketing Agent"
	case RouteService:
		return "Service Agent"
	default:
		return ""
	}
}

type DealStatus string

const (
	DealOpen DealStatus = "open"
	DealWon  DealStatus = "won"
	DealLost DealStatus = "lost"
)

var AllDealStatuses = []DealStatus{DealOpen, DealWon, DealLost}

func (s DealStatus) Valid() bool {
	switch s {
	case DealOpen, DealWon, DealLost:
		return true
	default:
		return false
	}
}

type Deal struct {
	ID         int64   `json:"id"`
	Title      string  `json:"title"`
	Status     string  `json:"status"`
	Value      float64 `json:"value"`
	Currency   string  `json:"currency"`
	OwnerName  string  `json:"owner_name"`
	PersonName string  `json:"person_name"`
	OrgName    string  `json:"org_name"`
}

type ToolTarget string

const (
	TargetLookup          ToolTarget = "lookup"
	TargetCreateNote      ToolTarget = "createNote"
	TargetUpdateStatus    ToolTarget = "updateStatus"
	TargetGenerateContent ToolTarget = "generateContent"
)

type InvocationOutcome string

const (
	OutcomeSucceeded         InvocationOutcome = "succeeded"
	OutcomeExtractionFailed  InvocationOutcome = "extraction_failed"
	OutcomeValidationFailed  InvocationOutcome = "validation_failed"
	OutcomeCollaboratorError InvocationOutcome = "collaborator_failed"
)

// ToolInvocation records one attempted CRM write or content draft. Validated
// is nil unless the payload passed both extraction and schema validation.
type ToolInvocation struct {
	Tool       string            `json:"tool"`
	Target     ToolTarget        `json:"target"`
	RawPayload string            `json:"raw_payload"`
	Extracted  map[string]any    `json:"extracted,omitempty"`
	Validated  any               `json:"validated,omitempty"`
	Outcome    InvocationOutcome `json:"outcome"`
	Result     string            `json:"result"`
}

type NoteArgs struct {
	DealID  int64  `json:"deal_id"`
	Content string `json:"content"`
}

type StatusArgs struct {
	DealID int64      `json:"deal_id"`
	Status DealStatus `json:"status"`
}

type VectorRecord struct {
	ID       string         `json:"id"`
	Vector   []float64      `json:"vector"`
	Text     string         `json:"text"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

type VectorMatch struct {
	ID       string         `json:"id"`
	Text     string         `json:"text"`
	Metadata map[string]any `json:"metadata,omitempty"`
	Score    float64        `json:"score"`
}

// RetrievedChunk is one entry of the context handed to the grounded prompt.
// Rank starts at 1.
type RetrievedChunk struct {
	Text     string         `json:"text"`
	Rank     int            `json:"rank"`
	Score    float64        `json:"score"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

type RetrievedContext []RetrievedChunk

func (c RetrievedContext) Texts() []string {
	out := make([]string, 0, len(c))
	for _, chunk := range c {
		out = append(out, chunk.Text)
	}
	return out
}
