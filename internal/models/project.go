package models

import "time"

// Project is the client-facing grouping a project task points at.
type Project struct {
	ID         int64     `json:"id"`
	Name       string    `json:"name"`
	CommonName string    `json:"common_name"`
	ClientID   *int64    `json:"client_id,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// DisplayName prefers the short common name over the full project name.
func (p *Project) DisplayName() string {
	if p.CommonName != "" {
		return p.CommonName
	}
	return p.Name
}

// Client owns projects. Only the name is mirrored into event bodies.
type Client struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}
