package addrmgr

import (
	"time"
)

// BanDuration is how long a banned IP is refused.
const BanDuration = time.Hour

// BanList maps banned IPs to the time they were banned.
type BanList struct {
	bans map[string]time.Time
}

// NewBanList returns an empty ban list.
func NewBanList() *BanList {
	return &BanList{bans: make(map[string]time.Time)}
}

// Ban starts or restarts the ban window of ip at now.
func (l *BanList) Ban(ip string, now time.Time) {
	l.bans[ip] = now
	D.Ln("banned", ip, "until", now.Add(BanDuration).Format(time.RFC3339))
}

// IsBanned reports whether ip was banned less than BanDuration before now. An
// expired entry is purged.
func (l *BanList) IsBanned(ip string, now time.Time) bool {
	at, ok := l.bans[ip]
	if !ok {
		return false
	}
	if now.Sub(at) < BanDuration {
		return true
	}
	delete(l.bans, ip)
	D.Ln("ban of", ip, "expired")
	return false
}

// Len is the number of entries, expired or not.
func (l *BanList) Len() int {
	return len(l.bans)
}

// Snapshot copies the list.
func (l *BanList) Snapshot() map[string]time.Time {
	out := make(map[string]time.Time, len(l.bans))
	for ip, at := range l.bans {
		out[ip] = at
	}
	return out
}

// Load merges bans into the list, dropping those already expired at now.
func (l *BanList) Load(bans map[string]time.Time, now time.Time) {
	for ip, at := range bans {
		if now.Sub(at) >= BanDuration {
			continue
		}
		l.bans[ip] = at
	}
}
