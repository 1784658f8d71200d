package beeswax

import (
	"encoding/json"
	"fmt"
)

//
// ────────────────────────────────────────────────
//   Envelope
// ────────────────────────────────────────────────
//

// Entity is a decoded Beeswax object (advertiser, campaign, line item, ...).
type Entity map[string]any

// Result is the normalized envelope returned by every resource operation.
// Success=false results carry Code and Message and are only produced for
// rejected request bodies and not-found edits/deletes; every other failure
// is returned as an error.
type Result[T any] struct {
	Success bool   `json:"success"`
	Payload T      `json:"payload,omitempty"`
	Code    int    `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
}

const (
	msgInvalidBody = "Body must be non-empty object"
	msgNotFound    = "Not found"
)

func ok[T any](payload T) *Result[T] {
	return &Result[T]{Success: true, Payload: payload}
}

func badRequest[T any](message string) *Result[T] {
	return &Result[T]{Success: false, Code: 400, Message: message}
}

//
// ────────────────────────────────────────────────
//   Raw response documents
// ────────────────────────────────────────────────
//

// Body is a decoded Beeswax response document. Raw holds the exact bytes
// received so failures can be reported verbatim.
type Body struct {
	Success *bool           `json:"success,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
	Raw     json.RawMessage `json:"-"`
}

// UnmarshalJSON decodes the document and keeps a copy of its bytes in Raw.
func (b *Body) UnmarshalJSON(data []byte) error {
	type plain Body
	var doc plain
	if err := json.Unmarshal(data, &doc); err != nil {
		return err
	}
	*b = Body(doc)
	b.Raw = append(json.RawMessage(nil), data...)
	return nil
}

// Failed reports whether the document explicitly carries success=false.
func (b *Body) Failed() bool {
	return b.Success != nil && !*b.Success
}

// Entities decodes an array payload. A missing payload yields an empty list.
func (b *Body) Entities() ([]Entity, error) {
	if len(b.Payload) == 0 || string(b.Payload) == "null" {
		return []Entity{}, nil
	}
	var out []Entity
	if err := json.Unmarshal(b.Payload, &out); err != nil {
		return nil, fmt.Errorf("beeswax: decode payload list: %w", err)
	}
	if out == nil {
		out = []Entity{}
	}
	return out, nil
}

// First returns the first element of an array payload, or nil when empty.
func (b *Body) First() (Entity, error) {
	list, err := b.Entities()
	if err != nil || len(list) == 0 {
		return nil, err
	}
	return list[0], nil
}

// ID returns payload.id from a mutation response.
func (b *Body) ID() (int64, error) {
	var created struct {
		ID int64 `json:"id"`
	}
	if len(b.Payload) > 0 {
		if err := json.Unmarshal(b.Payload, &created); err != nil {
			return 0, fmt.Errorf("beeswax: decode created id: %w", err)
		}
	}
	if created.ID == 0 {
		return 0, fmt.Errorf("beeswax: response carries no payload.id: %s", b.Raw)
	}
	return created.ID, nil
}
