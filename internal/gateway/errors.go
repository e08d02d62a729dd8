package gateway

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	ErrRejected    = errors.New("payment rejected by gateway")
	ErrUnreachable = errors.New("payment gateway unreachable")
)

const genericRejection = "unknown error while processing the payment with the gateway"

// RejectedError is a non-2xx answer from the gateway: it received the
// request and said no.
type RejectedError struct {
	StatusCode int
	Messages   []string
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("gateway responded %d: %s", e.StatusCode, strings.Join(e.Messages, "; "))
}

func (e *RejectedError) Is(target error) bool { return target == ErrRejected }

// UnreachableError means no usable answer came back (network, timeout,
// open circuit).
type UnreachableError struct {
	Err error
}

func (e *UnreachableError) Error() string {
	return fmt.Sprintf("payment gateway unreachable: %v", e.Err)
}

func (e *UnreachableError) Unwrap() error { return e.Err }

func (e *UnreachableError) Is(target error) bool { return target == ErrUnreachable }

// errorBody covers the shapes the gateway uses for failures:
//
//	{"error": {"type": "...", "reason": "...", "messages": ["..."]}}
//	{"error": {"type": "INPUT_VALIDATION_ERROR", "messages": {"field": ["..."]}}}
//	{"message": "..."}
type errorBody struct {
	Error *struct {
		Type     string          `json:"type"`
		Reason   string          `json:"reason"`
		Messages json.RawMessage `json:"messages"`
	} `json:"error"`
	Message string `json:"message"`
}

func (b errorBody) messages() []string {
	var out []string
	if b.Error != nil {
		out = append(out, flattenMessages(b.Error.Messages)...)
		if len(out) == 0 && b.Error.Reason != "" {
			out = append(out, b.Error.Reason)
		}
	}
	if len(out) == 0 && b.Message != "" {
		out = append(out, b.Message)
	}
	if len(out) == 0 {
		out = append(out, genericRejection)
	}
	return out
}

func flattenMessages(raw json.RawMessage) []string {
	if len(raw) == 0 {
		return nil
	}
	var list []string
	if err := json.Unmarshal(raw, &list); err == nil {
		return list
	}
	var one string
	if err := json.Unmarshal(raw, &one); err == nil && one != "" {
		return []string{one}
	}
	var byField map[string][]string
	if err := json.Unmarshal(raw, &byField); err != nil {
		return nil
	}
	fields := make([]string, 0, len(byField))
	for f := range byField {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	var out []string
	for _, f := range fields {
		for _, m := range byField[f] {
			out = append(out, f+": "+m)
		}
	}
	return out
}
