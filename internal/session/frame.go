// Package session implements the interactive generation channel (§4.8): a
// full-duplex, per-request WebSocket carrying JSON frames tagged by type.
package session

import "github.com/prdforge/prdforge/pkg/schema"

// FrameType is the closed set of frame discriminators, server- and
// client-originated alike.
type FrameType string

const (
	// Server -> client.
	FrameStatus              FrameType = "status"
	FrameProgress            FrameType = "progress"
	FrameSection             FrameType = "section"
	FrameClarificationNeeded FrameType = "clarification_needed"
	FrameGenerationComplete  FrameType = "generation_complete"
	FrameError               FrameType = "error"

	// Client -> server.
	FrameStartGeneration      FrameType = "start_generation"
	FrameClarificationAnswers FrameType = "clarification_answers"
	FrameResponse             FrameType = "response"
)

// Frame is the single wire shape for every message exchanged over a session,
// mirroring the teacher's flat Request/Response struct with a discriminator
// field in place of JSON-RPC's method/result split — §4.8 has no request/
// response pairing, just a tagged stream in both directions.
type Frame struct {
	Type FrameType `json:"type"`

	// status
	Status schema.RequestStatus `json:"status,omitempty"`

	// progress
	Message string `json:"message,omitempty"`

	// section
	ID      string `json:"id,omitempty"`
	Title   string `json:"title,omitempty"`
	Content string `json:"content,omitempty"`
	Order   *int   `json:"order,omitempty"`

	// clarification_needed
	Questions []string `json:"questions,omitempty"`

	// generation_complete
	Document *schema.PRDDocument `json:"document,omitempty"`

	// error
	Error string `json:"error,omitempty"`

	// start_generation
	Command *StartCommand `json:"command,omitempty"`

	// clarification_answers
	Answers []AnswerFrame `json:"answers,omitempty"`

	// response
	Response string `json:"response,omitempty"`
}

// StartCommand carries the request a client wants to (re)generate; the
// request itself was already created via the REST surface, so only its id
// and any freshly-accepted clarification answers travel over the socket.
type StartCommand struct {
	RequestID string `json:"request_id"`
}

// AnswerFrame is one accepted clarification answer from the client.
type AnswerFrame struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

func statusFrame(s schema.RequestStatus) Frame { return Frame{Type: FrameStatus, Status: s} }

func progressFrame(message string) Frame { return Frame{Type: FrameProgress, Message: message} }

func sectionFrame(s schema.PRDSection) Frame {
	order := s.Order
	return Frame{Type: FrameSection, ID: s.ID, Title: s.Title, Content: s.Content, Order: &order}
}

func clarificationNeededFrame(questions []string) Frame {
	return Frame{Type: FrameClarificationNeeded, Questions: questions}
}

func generationCompleteFrame(doc *schema.PRDDocument) Frame {
	return Frame{Type: FrameGenerationComplete, Document: doc}
}

func errorFrame(message string) Frame { return Frame{Type: FrameError, Error: message} }
