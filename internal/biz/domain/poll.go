package domain

// Poll is a created poll awaiting votes.
// Vote options are keyed by their exact (case-sensitive) text.
type Poll struct {
	ID       int64
	Question string
	Creator  string
	GroupID  string
	Votes    map[string]int
}
