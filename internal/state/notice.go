/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package state

// NoticeKind classifies a one-shot message for the player.
type NoticeKind int

const (
	CardLost NoticeKind = iota
	CardGained
	SetDeclared
	Misdeclared
	OpponentDeclared
	OpponentMisdeclared
	GameOver
	ActionRejected
	ActionTimedOut
)

// Notice is a toast-style message produced by a state transition.
type Notice struct {
	Kind    NoticeKind `json:"kind"`
	Title   string     `json:"title"`
	Message string     `json:"message"`
}

// Destructive reports whether the notice is bad news for the local player.
func (n Notice) Destructive() bool {
	switch n.Kind {
	case CardLost, Misdeclared, OpponentDeclared, ActionRejected, ActionTimedOut:
		return true
	}

	return false
}

func (s *Store) notify(kind NoticeKind, title, message string) {
	s.notices = append(s.notices, Notice{Kind: kind, Title: title, Message: message})
}

// DrainNotices returns and forgets the queued notices, oldest first.
func (s *Store) DrainNotices() []Notice {
	out := s.notices
	s.notices = nil

	return out
}
