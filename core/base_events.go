package core

// WarningEvent carries a recoverable problem that was surfaced to the user
// as conversation content rather than propagated as an error.
type WarningEvent struct {
	Error string `json:"error"`
}

func (e *WarningEvent) GetId() string {
	return "shared.warning"
}

// NoticeEvent is a blocking user notice (e.g. speech capture unsupported).
// Renderers are expected to show it modally until dismissed.
type NoticeEvent struct {
	Text string `json:"text"`
}

func (e *NoticeEvent) GetId() string {
	return "shared.notice"
}
