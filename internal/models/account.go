package models

import "time"

// CalendarAccount holds a user's external calendar link: the long-lived
// refresh token plus the id of the dedicated calendar once it has been
// created. CalendarID is a cache; an empty value just means the next sync
// resolves it again.
type CalendarAccount struct {
	UserID       int64     `json:"user_id"`
	RefreshToken string    `json:"-"`
	CalendarID   string    `json:"calendar_id,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Connected reports whether the account can be used to mint access tokens.
func (a *CalendarAccount) Connected() bool {
	return a != nil && a.RefreshToken != ""
}
