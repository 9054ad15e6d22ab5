package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"studypilot/pkg/ai"
	"studypilot/pkg/domain"
	"studypilot/pkg/store"
)

// Sentinel errors for the HTTP layer to map onto status codes.
var (
	ErrInvalidInput  = errors.New("invalid input")
	ErrNotFound      = errors.New("not found")
	ErrResourceLimit = store.ErrResourceLimit
)

// Config holds runtime configuration for the core application.
type Config struct {
	DatabaseURL   string
	Store         store.Store
	Generator     ai.Generator
	ResourceLimit int
}

// App is the core application service wiring the provider adapter and the
// store together behind the use-case methods the HTTP layer calls.
type App struct {
	store         store.Store
	generator     ai.Generator
	resourceLimit int
}

// New constructs the application. A nil Store falls back to the Postgres
// store built from DatabaseURL.
func New(cfg Config) (*App, error) {
	dataStore := cfg.Store
	if dataStore == nil {
		if cfg.DatabaseURL == "" {
			return nil, fmt.Errorf("database URL required")
		}
		var err error
		dataStore, err = store.NewGormStore(cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("init postgres store: %w", err)
		}
	}
	if cfg.Generator == nil {
		return nil, fmt.Errorf("generator required")
	}
	limit := cfg.ResourceLimit
	if limit <= 0 {
		limit = 20
	}
	return &App{
		store:         dataStore,
		generator:     cfg.Generator,
		resourceLimit: limit,
	}, nil
}

// ResourceLimit returns the configured monthly save quota.
func (a *App) ResourceLimit() int {
	return a.resourceLimit
}

// Generate produces study content without persisting anything.
func (a *App) Generate(ctx context.Context, req ai.GenerationRequest) (ai.GenerationResponse, error) {
	if !domain.ValidGenerationType(req.Type) {
		return ai.GenerationResponse{}, fmt.Errorf("%w: unknown generation type %q", ErrInvalidInput, req.Type)
	}
	if req.Topic == "" {
		return ai.GenerationResponse{}, fmt.Errorf("%w: topic required", ErrInvalidInput)
	}
	return a.generator.Generate(ctx, req)
}

// SaveLibraryItem persists a generated artifact under the monthly quota.
// The quota check and the insert are a single atomic store operation.
func (a *App) SaveLibraryItem(item domain.LibraryItem) (domain.LibraryItem, error) {
	if item.OwnerID == "" {
		return domain.LibraryItem{}, fmt.Errorf("%w: owner required", ErrInvalidInput)
	}
	if !domain.ValidGenerationType(item.Type) {
		return domain.LibraryItem{}, fmt.Errorf("%w: unknown generation type %q", ErrInvalidInput, item.Type)
	}
	if item.Title == "" {
		return domain.LibraryItem{}, fmt.Errorf("%w: title required", ErrInvalidInput)
	}
	if len(item.Payload) == 0 {
		return domain.LibraryItem{}, fmt.Errorf("%w: payload required", ErrInvalidInput)
	}
	if item.Status == "" {
		item.Status = domain.StatusActive
	}
	if item.Tags == nil {
		item.Tags = []string{}
	}
	id, err := a.store.SaveLibraryItemWithLimit(item, a.resourceLimit)
	if err != nil {
		return domain.LibraryItem{}, err
	}
	item.ID = id
	return item, nil
}

// Usage reports the caller's quota state for the current month. An owner
// with no saves this month gets a zero counter without creating a row.
func (a *App) Usage(ownerID string) (domain.UsageMonthly, error) {
	monthKey := domain.MonthKey(time.Now())
	usage, ok, err := a.store.GetUsage(ownerID, monthKey)
	if err != nil {
		return domain.UsageMonthly{}, err
	}
	if !ok {
		return domain.UsageMonthly{
			MonthKey:      monthKey,
			ResourcesUsed: 0,
			ResourceLimit: a.resourceLimit,
		}, nil
	}
	usage.ResourceLimit = a.resourceLimit
	usage.OwnerID = ""
	return usage, nil
}

// ListLibrary returns the owner's items, newest first. An empty status
// filter defaults to active so archived items stay out of the main view.
func (a *App) ListLibrary(ownerID string, filter store.ListFilter) ([]domain.LibraryItem, error) {
	if filter.Status == "" {
		filter.Status = domain.StatusActive
	}
	if filter.Status != domain.StatusActive && filter.Status != domain.StatusArchived {
		return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidInput, filter.Status)
	}
	if filter.Type != "" && !domain.ValidGenerationType(filter.Type) {
		return nil, fmt.Errorf("%w: unknown generation type %q", ErrInvalidInput, filter.Type)
	}
	return a.store.ListLibraryItems(ownerID, filter)
}

// GetLibraryItem fetches one owned item. Items belonging to other users
// are indistinguishable from missing ones.
func (a *App) GetLibraryItem(ownerID, id string) (domain.LibraryItem, error) {
	item, ok, err := a.store.GetLibraryItem(ownerID, id)
	if err != nil {
		return domain.LibraryItem{}, err
	}
	if !ok {
		return domain.LibraryItem{}, ErrNotFound
	}
	return item, nil
}

// UpdateLibraryItem applies a favorite or status patch to an owned item.
func (a *App) UpdateLibraryItem(ownerID, id string, patch store.ItemPatch) (domain.LibraryItem, error) {
	if patch.Status != nil {
		if *patch.Status != domain.StatusActive && *patch.Status != domain.StatusArchived {
			return domain.LibraryItem{}, fmt.Errorf("%w: unknown status %q", ErrInvalidInput, *patch.Status)
		}
	}
	item, ok, err := a.store.UpdateLibraryItem(ownerID, id, patch)
	if err != nil {
		return domain.LibraryItem{}, err
	}
	if !ok {
		return domain.LibraryItem{}, ErrNotFound
	}
	return item, nil
}

// SaveAttempt records a scored quiz pass. Zero scores are legitimate;
// negative values are not.
func (a *App) SaveAttempt(attempt domain.QuizAttempt) (domain.QuizAttempt, error) {
	if attempt.OwnerID == "" {
		return domain.QuizAttempt{}, fmt.Errorf("%w: owner required", ErrInvalidInput)
	}
	if attempt.Score < 0 || attempt.Total < 0 {
		return domain.QuizAttempt{}, fmt.Errorf("%w: score and total must not be negative", ErrInvalidInput)
	}
	if attempt.Score > attempt.Total {
		return domain.QuizAttempt{}, fmt.Errorf("%w: score exceeds total", ErrInvalidInput)
	}
	if attempt.Answers == nil {
		attempt.Answers = []int{}
	}
	if attempt.WeakTopics == nil {
		attempt.WeakTopics = []string{}
	}
	return a.store.SaveAttempt(attempt)
}

// ListAttempts returns the owner's attempts, newest first.
func (a *App) ListAttempts(ownerID string) ([]domain.QuizAttempt, error) {
	return a.store.ListAttempts(ownerID)
}

// SaveProgress upserts one card's review state. The store stamps the
// review timestamp; box level and next due date are client-supplied.
func (a *App) SaveProgress(progress domain.FlashcardProgress) (domain.FlashcardProgress, error) {
	if progress.SetID == "" || progress.CardKey == "" {
		return domain.FlashcardProgress{}, fmt.Errorf("%w: set_id and card_key required", ErrInvalidInput)
	}
	if progress.BoxLevel < 0 {
		return domain.FlashcardProgress{}, fmt.Errorf("%w: box_level must not be negative", ErrInvalidInput)
	}
	return a.store.UpsertProgress(progress)
}

// GetProfile returns the caller's study profile, empty when never set.
func (a *App) GetProfile(userID string) (domain.Profile, error) {
	profile, ok, err := a.store.GetProfile(userID)
	if err != nil {
		return domain.Profile{}, err
	}
	if !ok {
		return domain.Profile{UserID: userID, Subjects: []string{}}, nil
	}
	return profile, nil
}

// SaveProfile replaces the caller's study profile.
func (a *App) SaveProfile(profile domain.Profile) (domain.Profile, error) {
	if profile.UserID == "" {
		return domain.Profile{}, fmt.Errorf("%w: owner required", ErrInvalidInput)
	}
	if profile.Subjects == nil {
		profile.Subjects = []string{}
	}
	profile.UpdatedAt = time.Now().UTC()
	if err := a.store.SaveProfile(profile); err != nil {
		return domain.Profile{}, err
	}
	return profile, nil
}

// SaveFeedback stores a free-form feedback message.
func (a *App) SaveFeedback(fb domain.Feedback) error {
	if fb.OwnerID == "" {
		return fmt.Errorf("%w: owner required", ErrInvalidInput)
	}
	if fb.Type == "" || fb.Message == "" {
		return fmt.Errorf("%w: type and message required", ErrInvalidInput)
	}
	return a.store.SaveFeedback(fb)
}

// AnalyticsSummary aggregates the caller's study activity for the
// analytics page.
type AnalyticsSummary struct {
	TotalItems    int     `json:"total_items"`
	TotalAttempts int     `json:"total_attempts"`
	AverageScore  float64 `json:"average_score"`
}

// Summary computes item and attempt counts plus the mean percentage score
// across attempts. Attempts with a zero total are skipped in the mean.
func (a *App) Summary(ownerID string) (AnalyticsSummary, error) {
	items, err := a.store.ListLibraryItems(ownerID, store.ListFilter{Status: domain.StatusActive})
	if err != nil {
		return AnalyticsSummary{}, err
	}
	attempts, err := a.store.ListAttempts(ownerID)
	if err != nil {
		return AnalyticsSummary{}, err
	}
	summary := AnalyticsSummary{
		TotalItems:    len(items),
		TotalAttempts: len(attempts),
	}
	scored := 0
	sum := 0.0
	for _, attempt := range attempts {
		if attempt.Total == 0 {
			continue
		}
		sum += float64(attempt.Score) / float64(attempt.Total) * 100
		scored++
	}
	if scored > 0 {
		summary.AverageScore = sum / float64(scored)
	}
	return summary, nil
}
