package domain

// Member represents a participant of a group chat
type Member struct {
	UserID  string
	Name    string
	IsAdmin bool
	IsOwner bool
}
