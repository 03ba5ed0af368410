package orchestrator

import "aitherapist/core"

// State is a snapshot of the session. Values handed out by the orchestrator
// are copies and never change after publication.
type State struct {
	SessionID    string            `json:"session_id"`
	Messages     []core.Message    `json:"messages"`
	Draft        string            `json:"draft"`
	Busy         bool              `json:"busy"`
	Availability core.Availability `json:"availability"`
	Language     core.Language     `json:"language"`
	Locale       string            `json:"locale"`
	Placeholder  string            `json:"placeholder"`
	ToggleLabel  string            `json:"toggle_label"`
	Listening    bool              `json:"listening"`
	ReadAloud    bool              `json:"read_aloud"`
	AlwaysSpeak  bool              `json:"always_speak"`
	Notice       string            `json:"notice,omitempty"`
}

func (s State) clone() State {
	out := s
	out.Messages = make([]core.Message, len(s.Messages))
	copy(out.Messages, s.Messages)
	return out
}

// StateChangedEvent carries the snapshot published after every state change.
type StateChangedEvent struct {
	State State `json:"state"`
}

func (e *StateChangedEvent) GetId() string {
	return "session.state_changed"
}
