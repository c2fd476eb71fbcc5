package gatherly

import "time"

// ============================================================================
// Auth types
// ============================================================================

// User is the authenticated account profile.
type User struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Username  string    `json:"username"`
	FirstName string    `json:"first_name,omitempty"`
	LastName  string    `json:"last_name,omitempty"`
	AvatarURL string    `json:"avatar_url,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// RegisterRequest creates a new account.
type RegisterRequest struct {
	Email     string `json:"email"`
	Username  string `json:"username"`
	Password  string `json:"password"`
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
}

// ============================================================================
// Event types
// ============================================================================

// Event is a single listed event.
type Event struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Category    string    `json:"category,omitempty"`
	ImageURL    string    `json:"image_url,omitempty"`
	Location    *Location `json:"location,omitempty"`
	StartsAt    time.Time `json:"starts_at"`
	EndsAt      time.Time `json:"ends_at,omitempty"`
	Price       string    `json:"price,omitempty"`
	Attending   int       `json:"attending,omitempty"`
}

// EventFilter narrows event listings. Zero-value fields are omitted from
// the query string; the field order here is the order parameters appear in
// the request URL.
type EventFilter struct {
	Category string
	From     time.Time
	To       time.Time
	Query    string
	Page     int
	PerPage  int
}

// ============================================================================
// Location types
// ============================================================================

// Location is a venue or point of interest events are attached to.
type Location struct {
	ID        string  `json:"id"`
	Name      string  `json:"name"`
	Address   string  `json:"address,omitempty"`
	City      string  `json:"city,omitempty"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// ============================================================================
// Response envelopes
// ============================================================================

// listEnvelope is the backend's success envelope for collection responses.
type listEnvelope[T any] struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Data    []T    `json:"data"`
}

// itemEnvelope is the backend's success envelope for single-item responses.
type itemEnvelope[T any] struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Data    T      `json:"data"`
}
