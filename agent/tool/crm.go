package tool

import (
	"context"
	"fmt"

	einotool "github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/schema"
	"github.com/rs/zerolog"
	contractx "github.com/tanpawarit/Breeze-CRM-Copilot/agent/contract"
	extractx "github.com/tanpawarit/Breeze-CRM-Copilot/agent/extract"
	logx "github.com/tanpawarit/Breeze-CRM-Copilot/pkg/logger"
)

const (
	ToolCRMLookup        = "CRM_Information_Lookup"
	ToolCreateNote       = "create_crm_note"
	ToolUpdateDealStatus = "update_deal_status"
)

var (
	_ einotool.InvokableTool = (*LookupTool)(nil)
	_ einotool.InvokableTool = (*CreateNoteTool)(nil)
	_ einotool.InvokableTool = (*UpdateStatusTool)(nil)
)

// LookupTool answers CRM questions through the retrieval chain.
type LookupTool struct {
	answerer contractx.Answerer
}

func NewLookupTool(answerer contractx.Answerer) *LookupTool {
	return &LookupTool{answerer: answerer}
}

func (t *LookupTool) Info(context.Context) (*schema.ToolInfo, error) {
	return &schema.ToolInfo{
		Name: ToolCRMLookup,
		Desc: "Use this tool to answer any questions about CRM deals, such as status, value, owner, or contacts. " +
			"The input should be a clear question (e.g., 'What are the details of the deal for Acme Corp?').",
		ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
			"input": {Type: schema.String, Desc: "Question about CRM deals", Required: true},
		}),
	}, nil
}

func (t *LookupTool) InvokableRun(ctx context.Context, input string, _ ...einotool.Option) (string, error) {
	ctx, finish := logx.StartSpan(ctx, "tool", map[string]any{"tool": ToolCRMLookup})

	answer, err := t.answerer.Answer(ctx, plainInput(input))
	finish(err)
	if err != nil {
		return fmt.Sprintf("Error: CRM lookup failed: %v", err), nil
	}
	return answer, nil
}

// CreateNoteTool adds a note to a deal once the payload validates.
type CreateNoteTool struct {
	crm contractx.CRM
	log contractx.InvocationLog
}

func NewCreateNoteTool(crm contractx.CRM, log contractx.InvocationLog) *CreateNoteTool {
	return &CreateNoteTool{crm: crm, log: log}
}

func (t *CreateNoteTool) Info(context.Context) (*schema.ToolInfo, error) {
	return &schema.ToolInfo{
		Name: ToolCreateNote,
		Desc: "Use this tool to add a new note to a specific CRM deal. " +
			"The input to this tool MUST be a single, valid JSON object with two keys: " +
			"'deal_id' (which must be an integer) and 'content' (which must be a string).",
		ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
			"deal_id": {Type: schema.Integer, Desc: "ID of the deal", Required: true},
			"content": {Type: schema.String, Desc: "Text of the note", Required: true},
		}),
	}, nil
}

func (t *CreateNoteTool) InvokableRun(ctx context.Context, input string, _ ...einotool.Option) (string, error) {
	ctx, finish := logx.StartSpan(ctx, "tool", map[string]any{"tool": ToolCreateNote})

	res := extractx.NoteArgs(input)
	inv := newInvocation(ToolCreateNote, contractx.TargetCreateNote, input, res.Extracted)

	if !res.Valid() {
		inv.Outcome = outcomeFor(res.Outcome)
		inv.Result = res.Diagnostic()
		recordInvocation(ctx, t.log, inv)
		finish(res.Err)
		return inv.Result, nil
	}

	args := res.Args
	inv.Validated = args
	err := t.crm.CreateNote(ctx, args.DealID, args.Content)
	if err != nil {
		inv.Outcome = contractx.OutcomeCollaboratorError
		inv.Result = fmt.Sprintf("Failed to create the note on deal ID %d: %v", args.DealID, err)
	} else {
		inv.Outcome = contractx.OutcomeSucceeded
		inv.Result = fmt.Sprintf("Successfully created the note on deal ID %d.", args.DealID)
	}
	recordInvocation(ctx, t.log, inv)
	finish(err)
	return inv.Result, nil
}

// UpdateStatusTool moves a deal to open, won or lost.
type UpdateStatusTool struct {
	crm contractx.CRM
	log contractx.InvocationLog
}

func NewUpdateStatusTool(crm contractx.CRM, log contractx.InvocationLog) *UpdateStatusTool {
	return &UpdateStatusTool{crm: crm, log: log}
}

func (t *UpdateStatusTool) Info(context.Context) (*schema.ToolInfo, error) {
	return &schema.ToolInfo{
		Name: ToolUpdateDealStatus,
		Desc: "Use this tool to update the status of a specific CRM deal. " +
			"The input must be a valid JSON object with 'deal_id' (integer) and 'status' (string: 'open', 'won', or 'lost') as keys.",
		ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
			"deal_id": {Type: schema.Integer, Desc: "ID of the deal", Required: true},
			"status": {
				Type:     schema.String,
				Desc:     "New status of the deal",
				Enum:     []string{string(contractx.DealOpen), string(contractx.DealWon), string(contractx.DealLost)},
				Required: true,
			},
		}),
	}, nil
}

func (t *UpdateStatusTool) InvokableRun(ctx context.Context, input string, _ ...einotool.Option) (string, error) {
	ctx, finish := logx.StartSpan(ctx, "tool", map[string]any{"tool": ToolUpdateDealStatus})

	res := extractx.StatusArgs(input)
	inv := newInvocation(ToolUpdateDealStatus, contractx.TargetUpdateStatus, input, res.Extracted)

	if !res.Valid() {
		inv.Outcome = outcomeFor(res.Outcome)
		inv.Result = res.Diagnostic()
		recordInvocation(ctx, t.log, inv)
		finish(res.Err)
		return inv.Result, nil
	}

	args := res.Args
	inv.Validated = args
	err := t.crm.UpdateDealStatus(ctx, args.DealID, args.Status)
	if err != nil {
		inv.Outcome = contractx.OutcomeCollaboratorError
		inv.Result = fmt.Sprintf("Failed to update status for deal ID %d: %v", args.DealID, err)
	} else {
		inv.Outcome = contractx.OutcomeSucceeded
		inv.Result = fmt.Sprintf("Successfully updated status for deal ID %d to '%s'.", args.DealID, args.Status)
	}
	recordInvocation(ctx, t.log, inv)
	finish(err)
	return inv.Result, nil
}

func newInvocation(name string, target contractx.ToolTarget, raw string, extracted map[string]any) contractx.ToolInvocation {
	return contractx.ToolInvocation{
		Tool:       name,
		Target:     target,
		RawPayload: raw,
		Extracted:  extracted,
	}
}

func outcomeFor(o extractx.Outcome) contractx.InvocationOutcome {
	if o == extractx.OutcomeExtractionFailed {
		return contractx.OutcomeExtractionFailed
	}
	return contractx.OutcomeValidationFailed
}

// recordInvocation never fails the tool; a lost audit entry is only logged.
func recordInvocation(ctx context.Context, log contractx.InvocationLog, inv contractx.ToolInvocation) {
	if log == nil {
		return
	}
	if err := log.Record(ctx, inv); err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Str("tool", inv.Tool).Msg("record tool invocation")
	}
}
