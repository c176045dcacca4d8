package monitor

import "time"

type Status struct {
	PostgreSQL   bool      `json:"postgresql"`
	Redis        bool      `json:"redis"`
	Cache        bool      `json:"cache"`
	CachedOwners int       `json:"cached_owners"`
	LastCheck    time.Time `json:"last_check"`
}

// Online reports whether the document store and the change feed are both reachable.
func (s Status) Online() bool {
	return s.PostgreSQL && s.Redis
}
