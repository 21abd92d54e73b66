package entity

// MaxHistoryTurns bounds the per-page conversation window sent with each prompt.
const MaxHistoryTurns = 20

type ConversationTurn struct {
	Role    MessageRole `json:"role"`
	Content string      `json:"content"`
}

// History is the ordered conversation for one page, oldest first.
type History []ConversationTurn

// Append returns a new history with turn added, keeping only the most
// recent MaxHistoryTurns entries. The receiver is never modified.
func (h History) Append(turn ConversationTurn) History {
	out := make(History, 0, len(h)+1)
	out = append(out, h...)
	out = append(out, turn)
	return out.Window()
}

// Window trims the history to the most recent MaxHistoryTurns entries.
func (h History) Window() History {
	if len(h) <= MaxHistoryTurns {
		return h
	}
	return append(History(nil), h[len(h)-MaxHistoryTurns:]...)
}

func (h History) Last() (ConversationTurn, bool) {
	if len(h) == 0 {
		return ConversationTurn{}, false
	}
	return h[len(h)-1], true
}

// NormalizeRole maps anything that is not a user turn onto the assistant role.
func NormalizeRole(role MessageRole) MessageRole {
	if role == RoleUser {
		return RoleUser
	}
	return RoleAssistant
}
