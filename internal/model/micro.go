package model

import "time"

// MicroEntry represents a registered micro and the destination it resolves to.
type MicroEntry struct {
	Code        string    `json:"code"`
	Destination string    `json:"destination"`
	CreatedAt   time.Time `json:"created_at"`
	ExpiresAt   time.Time `json:"expires_at"`
	Public      bool      `json:"public"`
	HitCount    int64     `json:"hit_count"`
}

// NewMicroEntry returns an entry created at now that expires after ttl.
// Timestamps are truncated to whole seconds, the resolution they are stored with.
func NewMicroEntry(code, destination string, public bool, now time.Time, ttl time.Duration) *MicroEntry {
	createdAt := time.Unix(now.Unix(), 0).UTC()
	return &MicroEntry{
		Code:        code,
		Destination: destination,
		CreatedAt:   createdAt,
		ExpiresAt:   createdAt.Add(ttl.Truncate(time.Second)),
		Public:      public,
	}
}

// Expired reports whether the entry is past its expiry at now.
// An entry is still live during the second it expires in.
func (m *MicroEntry) Expired(now time.Time) bool {
	return now.Unix() > m.ExpiresAt.Unix()
}
