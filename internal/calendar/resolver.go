package calendar

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"plansync/internal/domain"
	"plansync/internal/models"
	"plansync/internal/outlook"
)

// categoryColors pins each taxonomy entry to a provider preset so calendars
// look the same across accounts.
var categoryColors = map[string]string{
	models.CategoryProjectTask:      "preset7",
	models.CategoryDeadline:         "preset0",
	models.CategoryInternalDeadline: "preset1",
	models.CategoryMilestone:        "preset8",
	models.CategoryOutOfOffice:      "preset9",
	models.CategoryTimeOff:          "preset4",
	models.CategoryUnavailable:      "preset3",
}

// calendarID returns the dedicated calendar id, trusting the cached value
// when the account has one. Only the slow path talks to the provider; a
// stale cache surfaces as a 404 on the write and is repaired by the next
// bulk run.
func (e *Engine) calendarID(ctx context.Context, session domain.CalendarSession, account *models.CalendarAccount) (string, error) {
	if account.CalendarID != "" {
		return account.CalendarID, nil
	}
	return e.ensureCalendar(ctx, session, account)
}

// ensureCalendar resolves the dedicated calendar, creating it when absent,
// and persists the id back onto the account. Get-or-create tolerates a
// racing creator by re-listing on conflict.
func (e *Engine) ensureCalendar(ctx context.Context, session domain.CalendarSession, account *models.CalendarAccount) (string, error) {
	if account.CalendarID != "" {
		_, err := session.GetCalendar(ctx, account.CalendarID)
		if err == nil {
			return account.CalendarID, nil
		}
		if !outlook.IsNotFound(err) {
			return "", fmt.Errorf("failed to check calendar %s: %w", account.CalendarID, err)
		}
		e.logger.Info().Int64("user_id", account.UserID).Str("calendar_id", account.CalendarID).Msg("cached calendar gone, resolving again")
	}

	id, err := e.findCalendar(ctx, session)
	if err != nil {
		return "", err
	}
	if id != "" {
		return e.bindCalendar(ctx, account, id)
	}

	created, err := session.CreateCalendar(ctx, e.calendarName)
	if err != nil {
		if isConflict(err) {
			id, listErr := e.findCalendar(ctx, session)
			if listErr == nil && id != "" {
				return e.bindCalendar(ctx, account, id)
			}
		}
		return "", fmt.Errorf("failed to create calendar %q: %w", e.calendarName, err)
	}

	e.logger.Info().Int64("user_id", account.UserID).Str("calendar_id", created.ID).Msg("dedicated calendar created")
	return e.bindCalendar(ctx, account, created.ID)
}

func (e *Engine) findCalendar(ctx context.Context, session domain.CalendarSession) (string, error) {
	calendars, err := session.ListCalendars(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to list calendars: %w", err)
	}
	for _, c := range calendars {
		if strings.EqualFold(c.Name, e.calendarName) {
			return c.ID, nil
		}
	}
	return "", nil
}

func (e *Engine) bindCalendar(ctx context.Context, account *models.CalendarAccount, id string) (string, error) {
	if account.CalendarID == id {
		return id, nil
	}
	if err := e.store.SetAccountCalendarID(ctx, account.UserID, id); err != nil {
		return "", fmt.Errorf("failed to persist calendar id: %w", err)
	}
	account.CalendarID = id
	return id, nil
}

// ensureCategories creates any taxonomy entry missing from the user's
// master category list. Idempotent; a conflict from a racing creator counts
// as done.
func (e *Engine) ensureCategories(ctx context.Context, session domain.CalendarSession) error {
	existing, err := session.ListCategories(ctx)
	if err != nil {
		return fmt.Errorf("failed to list categories: %w", err)
	}

	have := make(map[string]struct{}, len(existing))
	for _, c := range existing {
		have[strings.ToLower(c.DisplayName)] = struct{}{}
	}

	for _, name := range models.CategoryTaxonomy() {
		if _, ok := have[strings.ToLower(name)]; ok {
			continue
		}
		if _, err := session.CreateCategory(ctx, name, categoryColors[name]); err != nil {
			if isConflict(err) {
				continue
			}
			return fmt.Errorf("failed to create category %q: %w", name, err)
		}
	}
	return nil
}

func isConflict(err error) bool {
	var apiErr *outlook.APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusConflict
}
