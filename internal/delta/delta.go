// Package delta defines the ordered server-to-client event protocol of a chat
// turn and the encoder that serializes it onto a single transport.
//
// Every event is a Delta. Delta is a closed sum type: only the types declared
// in this file implement it, and consumers switch over them by concrete type.
// On the wire a delta is the JSON object {"type": <Type>, "content": <payload>}.
package delta

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Type is the wire discriminator of a delta.
type Type string

const (
	TypeUserMessageID     Type = "user-message-id"
	TypeQueryLoading      Type = "query-loading"
	TypeToolLoading       Type = "tool-loading"
	TypeID                Type = "id"
	TypeTitle             Type = "title"
	TypeKind              Type = "kind"
	TypeTextDelta         Type = "text-delta"
	TypeCodeDelta         Type = "code-delta"
	TypeClear             Type = "clear"
	TypeFinish            Type = "finish"
	TypeError             Type = "error"
	TypeDone              Type = "done"
	TypeMessageAnnotation Type = "message-annotation"
)

// ErrUnknownType is returned when decoding a delta whose type is not part of
// the protocol.
var ErrUnknownType = errors.New("unknown delta type")

// Delta is one event of the turn protocol.
type Delta interface {
	Type() Type
	sealed()
}

// UserMessageID carries the server-assigned id of the user's message.
type UserMessageID string

// QueryLoading replaces the aggregate progress indicator as a whole.
type QueryLoading struct {
	IsLoading bool     `json:"isLoading"`
	TaskNames []string `json:"taskNames"`
}

// ToolLoading opens or closes the progress bracket of one tool. Message is
// nil when the bracket closes.
type ToolLoading struct {
	Tool      string  `json:"tool"`
	IsLoading bool    `json:"isLoading"`
	Message   *string `json:"message"`
}

// DocumentID sets the id of the draft document.
type DocumentID string

// Title sets the title of the draft document.
type Title string

// Kind sets the kind of the draft document (text, code, ...).
type Kind string

// TextDelta is appended to the draft content.
type TextDelta string

// CodeDelta replaces the draft content with a full snapshot.
type CodeDelta string

// Clear resets the draft content.
type Clear struct{}

// Finish marks the draft idle.
type Finish struct{}

// Error is a user-visible error message.
type Error string

// Done terminates the turn. Nothing follows it.
type Done struct{}

// MessageAnnotation reports the id under which an assistant message was
// persisted.
type MessageAnnotation struct {
	MessageIDFromServer string `json:"messageIdFromServer"`
}

func (UserMessageID) Type() Type     { return TypeUserMessageID }
func (QueryLoading) Type() Type      { return TypeQueryLoading }
func (ToolLoading) Type() Type       { return TypeToolLoading }
func (DocumentID) Type() Type        { return TypeID }
func (Title) Type() Type             { return TypeTitle }
func (Kind) Type() Type              { return TypeKind }
func (TextDelta) Type() Type         { return TypeTextDelta }
func (CodeDelta) Type() Type         { return TypeCodeDelta }
func (Clear) Type() Type             { return TypeClear }
func (Finish) Type() Type            { return TypeFinish }
func (Error) Type() Type             { return TypeError }
func (Done) Type() Type              { return TypeDone }
func (MessageAnnotation) Type() Type { return TypeMessageAnnotation }

func (UserMessageID) sealed()     {}
func (QueryLoading) sealed()      {}
func (ToolLoading) sealed()       {}
func (DocumentID) sealed()        {}
func (Title) sealed()             {}
func (Kind) sealed()              {}
func (TextDelta) sealed()         {}
func (CodeDelta) sealed()         {}
func (Clear) sealed()             {}
func (Finish) sealed()            {}
func (Error) sealed()             {}
func (Done) sealed()              {}
func (MessageAnnotation) sealed() {}

// LoadingOff is the cleared aggregate indicator.
func LoadingOff() QueryLoading {
	return QueryLoading{IsLoading: false, TaskNames: []string{}}
}

// ToolStart opens a tool bracket with a progress message.
func ToolStart(tool, message string) ToolLoading {
	return ToolLoading{Tool: tool, IsLoading: true, Message: &message}
}

// ToolStop closes a tool bracket.
func ToolStop(tool string) ToolLoading {
	return ToolLoading{Tool: tool, IsLoading: false}
}

type wireDelta struct {
	Type    Type            `json:"type"`
	Content json.RawMessage `json:"content,omitempty"`
}

// Marshal encodes d as {"type", "content"}. Unit deltas (clear, finish,
// done) carry no content.
func Marshal(d Delta) ([]byte, error) {
	var content any
	switch v := d.(type) {
	case Clear, Finish, Done:
		content = nil
	case QueryLoading:
		if v.TaskNames == nil {
			v.TaskNames = []string{}
		}
		content = v
	default:
		content = v
	}

	w := wireDelta{Type: d.Type()}
	if content != nil {
		raw, err := json.Marshal(content)
		if err != nil {
			return nil, fmt.Errorf("marshal %s content: %w", d.Type(), err)
		}
		w.Content = raw
	}
	return json.Marshal(w)
}

// Unmarshal decodes one wire delta.
func Unmarshal(data []byte) (Delta, error) {
	var w wireDelta
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("decode delta: %w", err)
	}

	switch w.Type {
	case TypeClear:
		return Clear{}, nil
	case TypeFinish:
		return Finish{}, nil
	case TypeDone:
		return Done{}, nil
	case TypeQueryLoading:
		var v QueryLoading
		if err := decodeContent(w, &v); err != nil {
			return nil, err
		}
		if v.TaskNames == nil {
			v.TaskNames = []string{}
		}
		return v, nil
	case TypeToolLoading:
		var v ToolLoading
		if err := decodeContent(w, &v); err != nil {
			return nil, err
		}
		return v, nil
	case TypeMessageAnnotation:
		var v MessageAnnotation
		if err := decodeContent(w, &v); err != nil {
			return nil, err
		}
		return v, nil
	}

	var s string
	if len(w.Content) > 0 {
		if err := json.Unmarshal(w.Content, &s); err != nil {
			return nil, fmt.Errorf("decode %s content: %w", w.Type, err)
		}
	}
	switch w.Type {
	case TypeUserMessageID:
		return UserMessageID(s), nil
	case TypeID:
		return DocumentID(s), nil
	case TypeTitle:
		return Title(s), nil
	case TypeKind:
		return Kind(s), nil
	case TypeTextDelta:
		return TextDelta(s), nil
	case TypeCodeDelta:
		return CodeDelta(s), nil
	case TypeError:
		return Error(s), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, w.Type)
	}
}

func decodeContent(w wireDelta, v any) error {
	if len(w.Content) == 0 {
		return fmt.Errorf("decode %s: missing content", w.Type)
	}
	if err := json.Unmarshal(w.Content, v); err != nil {
		return fmt.Errorf("decode %s content: %w", w.Type, err)
	}
	return nil
}
