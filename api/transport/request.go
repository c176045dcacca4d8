package transport

type RegisterRequest struct {
	UserID string            `json:"user_id"`
	Email  string            `json:"email"`
	Name   string            `json:"name"`
	Meta   map[string]string `json:"metadata"`
}

type AuthLoginRequest struct {
	UserID string `json:"user_id"`
	TTL    int    `json:"ttl_seconds"`
}

type RefreshRequest struct {
	SessionID string `json:"session_id"`
	TTL       int    `json:"ttl_seconds"`
}

type HabitRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Frequency   string `json:"frequency"`
}
