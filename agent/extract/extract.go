// Package extract recovers a single JSON object from model-produced text and
// validates it against a tool schema before any side effect runs.
package extract

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
)

type Outcome string

const (
	OutcomeOK               Outcome = "ok"
	OutcomeExtractionFailed Outcome = "extraction_failed"
	OutcomeValidationFailed Outcome = "validation_failed"
)

var (
	ErrNoObject = errors.New("no JSON object in input")
	ErrDecode   = errors.New("could not decode JSON object")
	ErrSchema   = errors.New("arguments do not match schema")
)

// Result is the tagged outcome of one extraction. Extracted is set once the
// object decoded; Args is the zero value unless Outcome is OutcomeOK.
type Result[T any] struct {
	Outcome   Outcome
	Raw       string
	Extracted map[string]any
	Args      T
	Err       error
}

func (r Result[T]) Valid() bool {
	return r.Outcome == OutcomeOK
}

// Diagnostic is the text handed back to the reasoning loop on failure.
func (r Result[T]) Diagnostic() string {
	switch r.Outcome {
	case OutcomeOK:
		return ""
	case OutcomeExtractionFailed:
		return fmt.Sprintf("Error: %v. Received: '%s'", r.Err, r.Raw)
	default:
		parsed, _ := json.Marshal(r.Extracted)
		return fmt.Sprintf("Error: %v. Parsed: %s", r.Err, parsed)
	}
}

// Candidate returns the substring from the first '{' to the last '}'.
func Candidate(raw string) (string, error) {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start < 0 || end < start {
		return "", fmt.Errorf("%w: could not find a '{' ... '}' pair (missing braces)", ErrNoObject)
	}
	return raw[start : end+1], nil
}

// Object runs candidate selection, a direct decode and then a double-decode
// pass that treats the candidate as the body of an escaped JSON string.
func Object(raw string) (map[string]any, error) {
	candidate, err := Candidate(raw)
	if err != nil {
		return nil, err
	}

	obj, directErr := decodeStrict(candidate)
	if directErr == nil {
		return obj, nil
	}

	inner, err := unquote(candidate)
	if err != nil {
		return nil, fmt.Errorf("%w (tried direct and double-decode): %v; %v", ErrDecode, directErr, err)
	}
	obj, err = decodeStrict(inner)
	if err != nil {
		return nil, fmt.Errorf("%w (tried direct and double-decode): %v; %v", ErrDecode, directErr, err)
	}
	return obj, nil
}

func unquote(candidate string) (string, error) {
	var s string
	if err := json.Unmarshal([]byte(`"`+candidate+`"`), &s); err != nil {
		return "", err
	}
	return s, nil
}

// decodeStrict decodes exactly one object, keeping numbers as json.Number.
func decodeStrict(s string) (map[string]any, error) {
	dec := json.NewDecoder(strings.NewReader(s))
	dec.UseNumber()

	var obj map[string]any
	if err := dec.Decode(&obj); err != nil {
		return nil, err
	}
	if obj == nil {
		return nil, errors.New("decoded value is not an object")
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, errors.New("unexpected data after object")
	}
	return obj, nil
}

// Parse extracts, validates and converts raw into T.
func Parse[T any](raw string, schema *Schema, convert func(map[string]any) (T, error)) Result[T] {
	res := Result[T]{Raw: raw}

	obj, err := Object(raw)
	if err != nil {
		res.Outcome = OutcomeExtractionFailed
		res.Err = err
		return res
	}
	res.Extracted = obj

	if err := schema.Validate(obj); err != nil {
		res.Outcome = OutcomeValidationFailed
		res.Err = err
		return res
	}

	args, err := convert(obj)
	if err != nil {
		res.Outcome = OutcomeValidationFailed
		res.Err = fmt.Errorf("%w: %v", ErrSchema, err)
		return res
	}

	res.Outcome = OutcomeOK
	res.Args = args
	return res
}
