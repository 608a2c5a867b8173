package model

import "time"

// Separation is a persisted pair of identities that may not co-occupy a voice
// room. The pair is unordered: (A, B) and (B, A) are the same separation.
type Separation struct {
	ID        string    `db:"id" json:"id"`
	FirstID   string    `db:"first_id" json:"first_id"`
	SecondID  string    `db:"second_id" json:"second_id"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// Involves reports whether the identity is one side of the pair.
func (s *Separation) Involves(identityID string) bool {
	return s.FirstID == identityID || s.SecondID == identityID
}

// Counterpart returns the other side of the pair, or "" if the identity is
// not part of it.
func (s *Separation) Counterpart(identityID string) string {
	switch identityID {
	case s.FirstID:
		return s.SecondID
	case s.SecondID:
		return s.FirstID
	}
	return ""
}
