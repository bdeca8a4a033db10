package doc

import "time"

// Lock is an advisory editing-in-progress record. The storage core never uses
// it to serialize writes; expiry is enforced by the caller.
type Lock struct {
	DocID int64     `json:"doc_id"`
	Owner string    `json:"owner"`
	Token string    `json:"token,omitempty"`
	Date  time.Time `json:"date"`
}

// Expired reports whether the lock is older than the given ttl.
func (l *Lock) Expired(ttl time.Duration, now time.Time) bool {
	return now.Sub(l.Date) > ttl
}
