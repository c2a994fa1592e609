package extract

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	contractx "github.com/tanpawarit/Breeze-CRM-Copilot/agent/contract"
	"github.com/xeipuuv/gojsonschema"
)

// deal_id accepts integers and digit-only strings.
const dealIDSchema = `{"type": ["integer", "string"], "minimum": 1, "pattern": "^[0-9]+$"}`

var (
	NoteSchema = MustSchema(`{
		"type": "object",
		"properties": {
			"deal_id": ` + dealIDSchema + `,
			"content": {"type": "string"}
		},
		"required": ["deal_id", "content"]
	}`)

	StatusSchema = MustSchema(`{
		"type": "object",
		"properties": {
			"deal_id": ` + dealIDSchema + `,
			"status": {"type": "string", "enum": ["open", "won", "lost"]}
		},
		"required": ["deal_id", "status"]
	}`)
)

type Schema struct {
	source   string
	compiled *gojsonschema.Schema
}

func NewSchema(source string) (*Schema, error) {
	compiled, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(source))
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	return &Schema{source: source, compiled: compiled}, nil
}

func MustSchema(source string) *Schema {
	s, err := NewSchema(source)
	if err != nil {
		panic(err)
	}
	return s
}

// Raw returns the schema document, used to describe tool parameters.
func (s *Schema) Raw() json.RawMessage {
	return json.RawMessage(s.source)
}

func (s *Schema) Validate(obj map[string]any) error {
	result, err := s.compiled.Validate(gojsonschema.NewGoLoader(obj))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSchema, err)
	}
	if result.Valid() {
		return nil
	}

	msgs := make([]string, 0, len(result.Errors()))
	for _, e := range result.Errors() {
		msgs = append(msgs, e.String())
	}
	return fmt.Errorf("%w: %s", ErrSchema, strings.Join(msgs, "; "))
}

// NoteArgs parses a create_crm_note payload.
func NoteArgs(raw string) Result[contractx.NoteArgs] {
	return Parse(raw, NoteSchema, func(obj map[string]any) (contractx.NoteArgs, error) {
		id, err := dealID(obj["deal_id"])
		if err != nil {
			return contractx.NoteArgs{}, err
		}
		content, _ := obj["content"].(string)
		return contractx.NoteArgs{DealID: id, Content: content}, nil
	})
}

// StatusArgs parses an update_deal_status payload.
func StatusArgs(raw string) Result[contractx.StatusArgs] {
	return Parse(raw, StatusSchema, func(obj map[string]any) (contractx.StatusArgs, error) {
		id, err := dealID(obj["deal_id"])
		if err != nil {
			return contractx.StatusArgs{}, err
		}
		status := contractx.DealStatus(fmt.Sprint(obj["status"]))
		if !status.Valid() {
			return contractx.StatusArgs{}, fmt.Errorf("status %q must be one of %v", status, contractx.AllDealStatuses)
		}
		return contractx.StatusArgs{DealID: id, Status: status}, nil
	})
}

func dealID(v any) (int64, error) {
	var (
		id  int64
		err error
	)
	switch t := v.(type) {
	case json.Number:
		id, err = t.Int64()
	case string:
		id, err = strconv.ParseInt(t, 10, 64)
	case float64:
		if t != float64(int64(t)) {
			return 0, fmt.Errorf("deal_id %v is not an integer", t)
		}
		id = int64(t)
	default:
		return 0, fmt.Errorf("deal_id has unsupported type %T", v)
	}
	if err != nil {
		return 0, fmt.Errorf("deal_id %v is not an integer", v)
	}
	if id <= 0 {
		return 0, errors.New("deal_id must be positive")
	}
	return id, nil
}
