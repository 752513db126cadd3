package record

import "fmt"

// Warning is a non-fatal failure attached to a single record or command.
type Warning struct {
	ConversationID string
	MessageID      string
	Err            error
}

func (w Warning) Error() string {
	if w.MessageID == "" {
		return fmt.Sprintf("conversation %s: %v", w.ConversationID, w.Err)
	}
	return fmt.Sprintf("conversation %s, message %s: %v", w.ConversationID, w.MessageID, w.Err)
}

func (w Warning) Unwrap() error { return w.Err }

type Warnings []Warning

// Add appends a warning for r.
func (ws *Warnings) Add(r Record, err error) {
	*ws = append(*ws, Warning{ConversationID: r.ConversationID, MessageID: r.MessageID, Err: err})
}

// Errors returns the warning messages in order.
func (ws Warnings) Errors() []string {
	out := make([]string, len(ws))
	for i, w := range ws {
		out[i] = w.Error()
	}
	return out
}
