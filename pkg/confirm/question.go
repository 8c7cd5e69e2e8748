package confirm

// QuestionKind selects the answer shape a question expects. Plain
// approve/deny is just one shape; the same envelope serves tools that need
// to ask the operator domain questions.
type QuestionKind string

const (
	QuestionApprove     QuestionKind = "approve"
	QuestionYesNo       QuestionKind = "yesno"
	QuestionSelect      QuestionKind = "select"
	QuestionMultiSelect QuestionKind = "multiselect"
	QuestionText        QuestionKind = "text"
)

// Question is one pending request for operator input, correlated to a tool
// call by CallID.
type Question struct {
	CallID  string       `json:"call_id"`
	Kind    QuestionKind `json:"kind"`
	Prompt  string       `json:"prompt"`
	Options []string     `json:"options,omitempty"`
	Warning string       `json:"warning,omitempty"`
}

// Answer resolves the question with the matching CallID.
type Answer struct {
	CallID   string   `json:"call_id"`
	Approved bool     `json:"approved"`
	Selected []string `json:"selected,omitempty"`
	Text     string   `json:"text,omitempty"`
	Reason   string   `json:"reason,omitempty"`
	Actor    string   `json:"actor,omitempty"`
}

// Event is the wire envelope shared by all forwarders.
type Event struct {
	Type     string    `json:"type"` // "request", "answer" or "withdraw"
	CallID   string    `json:"call_id"`
	Question *Question `json:"question,omitempty"`
	Answer   *Answer   `json:"answer,omitempty"`
}
