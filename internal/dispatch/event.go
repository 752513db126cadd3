package dispatch

import (
	"fmt"
	"strings"

	"history-recorder/internal/record"
)

type EventKind int

const (
	EventNewConversation EventKind = iota + 1
	EventMemberJoin
	EventBotRemoved
	EventText
	EventEdit
	EventDelete
	EventImage
	EventAttachment
)

func (k EventKind) String() string {
	switch k {
	case EventNewConversation:
		return "new_conversation"
	case EventMemberJoin:
		return "member_join"
	case EventBotRemoved:
		return "bot_removed"
	case EventText:
		return "text"
	case EventEdit:
		return "edit"
	case EventDelete:
		return "delete"
	case EventImage:
		return "image"
	case EventAttachment:
		return "attachment"
	default:
		return fmt.Sprintf("event(%d)", int(k))
	}
}

// Event is one inbound notification from a transport. Only the fields
// relevant to Kind are set; UserIDs is used by EventMemberJoin.
type Event struct {
	Kind           EventKind
	ConversationID string
	MessageID      string
	Sender         record.Sender
	Text           string
	Asset          record.Asset
	UserIDs        []string
	Timestamp      int64
	// Caption marks text that came attached to media. It is always
	// recorded and never read as a command.
	Caption bool
}

type Command int

const (
	CommandNone Command = iota
	CommandHistory
	CommandPDF
	CommandHTML
	CommandSummary
)

// ParseCommand recognizes a bot command in a text message. Matching is
// case-insensitive on the trimmed text, and a trailing @botname is ignored.
func ParseCommand(text string) Command {
	cmd := strings.ToLower(strings.TrimSpace(text))
	if i := strings.IndexByte(cmd, '@'); i > 0 && strings.HasPrefix(cmd, "/") {
		cmd = cmd[:i]
	}
	switch cmd {
	case "/history":
		return CommandHistory
	case "/pdf":
		return CommandPDF
	case "/html":
		return CommandHTML
	case "/summary":
		return CommandSummary
	default:
		return CommandNone
	}
}
