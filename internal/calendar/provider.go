package calendar

import (
	"context"

	"plansync/internal/domain"
	"plansync/internal/outlook"
)

// OutlookProvider lifts the concrete provider client to the engine-facing
// interface so tests can substitute fakes.
type OutlookProvider struct {
	client *outlook.Client
}

func NewOutlookProvider(client *outlook.Client) *OutlookProvider {
	return &OutlookProvider{client: client}
}

func (p *OutlookProvider) Session(ctx context.Context, refreshToken string) (domain.CalendarSession, error) {
	session, err := p.client.Session(ctx, refreshToken)
	if err != nil {
		return nil, err
	}
	return session, nil
}
