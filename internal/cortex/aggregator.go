package cortex

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/tidwall/gjson"

	"github.com/curious-bigcat/snowflake-cove-agents-cortex-ai/internal/model"
	"github.com/curious-bigcat/snowflake-cove-agents-cortex-ai/internal/sse"
)

// Aggregator folds stream events into one AgentResponse.
// It is owned by a single call and is not safe for concurrent use.
type Aggregator struct {
	resp      *model.AgentResponse
	toolIndex map[string]int // tool_use_id -> index in resp.ToolCalls
	finished  bool
	logger    *slog.Logger
}

// NewAggregator creates an aggregator for the response identified by requestID
func NewAggregator(requestID string, logger *slog.Logger) *Aggregator {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Aggregator{
		resp:      &model.AgentResponse{RequestID: requestID, TextFragments: []string{}},
		toolIndex: make(map[string]int),
		logger:    logger,
	}
}

// Apply folds one event into the response.
// It returns a *MalformedPayloadError for a payload that cannot be parsed (the event
// is skipped and the caller may continue) and an *AgentProtocolError for an error
// event, after which the response must be discarded.
func (a *Aggregator) Apply(ev sse.Event) error {
	if a.finished {
		return ErrAggregatorFinished
	}

	a.resp.RawEvents = append(a.resp.RawEvents, rawEvent(ev))

	payload := []byte(ev.Payload)
	if len(payload) == 0 {
		payload = []byte("{}")
	}

	var err error
	switch KindOf(ev.Name) {
	case KindText, KindTextDelta:
		err = a.applyText(payload, &a.resp.TextFragments)
	case KindMessageDelta:
		err = a.applyMessageDelta(payload)
	case KindThinkingDelta:
		err = a.applyText(payload, &a.resp.ThinkingFragments)
	case KindThinking:
		// The full thinking text repeats what the deltas already delivered.
		var p textPayload
		err = json.Unmarshal(payload, &p)
	case KindStatus:
		err = a.applyStatus(payload)
	case KindToolUse:
		err = a.applyToolUse(payload)
	case KindToolResult:
		err = a.applyToolResult(payload)
	case KindToolResultStatus:
		err = a.applyToolResultStatus(payload)
	case KindCitation:
		err = a.applyCitation(payload)
	case KindResponse:
		err = a.applyResponse(payload)
	case KindError:
		return a.protocolError(payload)
	case KindUnknown:
		return nil
	}

	if err != nil {
		return &MalformedPayloadError{Event: ev.Name, Payload: ev.Payload, Err: err}
	}
	return nil
}

// Finish hands out the response. No further events are accepted.
func (a *Aggregator) Finish() *model.AgentResponse {
	a.finished = true
	return a.resp
}

// Aggregate folds a complete event sequence into a fresh response.
// Malformed payloads are skipped; an error event aborts with no response.
func Aggregate(requestID string, events []sse.Event) (*model.AgentResponse, error) {
	agg := NewAggregator(requestID, nil)
	for _, ev := range events {
		if err := agg.Apply(ev); IsFatal(err) {
			return nil, err
		}
	}
	return agg.Finish(), nil
}

func rawEvent(ev sse.Event) model.RawEvent {
	raw := model.RawEvent{Event: ev.Name}
	switch {
	case ev.Payload == "":
		raw.Data = json.RawMessage("{}")
	case json.Valid([]byte(ev.Payload)):
		raw.Data = json.RawMessage(ev.Payload)
	default:
		raw.Raw = ev.Payload
	}
	return raw
}

func (a *Aggregator) applyText(payload []byte, dst *[]string) error {
	var p textPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return err
	}
	if p.Text != nil {
		*dst = append(*dst, *p.Text)
	}
	return nil
}

func (a *Aggregator) applyMessageDelta(payload []byte) error {
	var p messageDeltaPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return err
	}
	for _, part := range p.Delta.Content {
		if part.Type == "text" && part.Text != nil {
			a.resp.TextFragments = append(a.resp.TextFragments, *part.Text)
		}
	}
	return nil
}

func (a *Aggregator) applyStatus(payload []byte) error {
	var p statusPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return err
	}
	if p.Message != "" {
		a.resp.StatusMessages = append(a.resp.StatusMessages, fmt.Sprintf("%s: %s", p.Status, p.Message))
	}
	return nil
}

func (a *Aggregator) applyToolUse(payload []byte) error {
	var p toolUsePayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return err
	}
	if _, dup := a.toolIndex[p.ToolUseID]; dup {
		a.logger.Warn("duplicate tool invocation id, keeping the first", "tool_use_id", p.ToolUseID, "request_id", a.resp.RequestID)
		return nil
	}

	a.toolIndex[p.ToolUseID] = len(a.resp.ToolCalls)
	a.resp.ToolCalls = append(a.resp.ToolCalls, model.ToolCall{
		ID:    p.ToolUseID,
		Name:  p.Name,
		Kind:  p.Type,
		Input: p.Input,
		State: model.ToolCallStarted,
	})
	return nil
}

func (a *Aggregator) applyToolResult(payload []byte) error {
	var p toolResultPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return err
	}

	result := model.ToolResult{ID: p.ToolUseID, Content: p.Content, IsError: p.IsError}
	a.resp.ToolResults = append(a.resp.ToolResults, result)
	a.resp.SQLStatements = append(a.resp.SQLStatements, findSQL(p.Content)...)

	if idx, ok := a.toolIndex[p.ToolUseID]; ok {
		call := &a.resp.ToolCalls[idx]
		call.Result = &result
		call.State = model.ToolCallCompleted
	}
	return nil
}

func (a *Aggregator) applyToolResultStatus(payload []byte) error {
	var p toolResultStatusPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return err
	}
	if p.Message != "" {
		a.resp.StatusMessages = append(a.resp.StatusMessages,
			fmt.Sprintf("Tool %s - %s: %s", p.ToolType, p.Status, p.Message))
	}
	return nil
}

func (a *Aggregator) applyCitation(payload []byte) error {
	if !json.Valid(payload) {
		return errors.New("invalid JSON")
	}
	a.resp.Citations = append(a.resp.Citations, json.RawMessage(payload))
	return nil
}

func (a *Aggregator) applyResponse(payload []byte) error {
	if !gjson.ValidBytes(payload) {
		return errors.New("invalid JSON")
	}
	if a.resp.FinalPayload != nil {
		a.logger.Warn("ignoring repeated terminal response event", "request_id", a.resp.RequestID)
		return nil
	}
	a.resp.FinalPayload = json.RawMessage(payload)

	// Agents that skip incremental deltas only deliver text here.
	if len(a.resp.TextFragments) == 0 {
		texts := gjson.GetBytes(payload, `message.content.#(type=="text")#.text`)
		texts.ForEach(func(_, v gjson.Result) bool {
			if v.Type == gjson.String {
				a.resp.TextFragments = append(a.resp.TextFragments, v.Str)
			}
			return true
		})
	}
	return nil
}

func (a *Aggregator) protocolError(payload []byte) error {
	perr := &AgentProtocolError{Message: "Unknown error", RequestID: a.resp.RequestID}
	if !gjson.ValidBytes(payload) {
		perr.Message = string(payload)
		return perr
	}
	if msg := gjson.GetBytes(payload, "message").String(); msg != "" {
		perr.Message = msg
	}
	perr.Code = gjson.GetBytes(payload, "code").String()
	if id := gjson.GetBytes(payload, "request_id").String(); id != "" {
		perr.RequestID = id
	}
	return perr
}

// findSQL collects every non-empty string "sql" field nested anywhere in content
func findSQL(content json.RawMessage) []string {
	if len(content) == 0 {
		return nil
	}
	var found []string
	var walk func(gjson.Result)
	walk = func(r gjson.Result) {
		r.ForEach(func(key, value gjson.Result) bool {
			switch {
			case key.Str == "sql" && value.Type == gjson.String:
				if value.Str != "" {
					found = append(found, value.Str)
				}
			case value.IsObject(), value.IsArray():
				walk(value)
			}
			return true
		})
	}
	walk(gjson.ParseBytes(content))
	return found
}
