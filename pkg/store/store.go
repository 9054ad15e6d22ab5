package store

import (
	"errors"

	"studypilot/pkg/domain"
)

// ErrResourceLimit signals that the monthly save quota was reached. The
// check and the insert happen atomically inside the store; callers must not
// read the counter and decide for themselves.
var ErrResourceLimit = errors.New("resource limit reached")

// ListFilter narrows a library listing. Zero values mean "no filter" except
// Status, which the caller is expected to default to active.
type ListFilter struct {
	Status   domain.ItemStatus
	Type     domain.GenerationType
	Favorite bool
	Search   string
}

// ItemPatch carries the mutable library item fields. Nil means unchanged.
type ItemPatch struct {
	Favorite *bool
	Status   *domain.ItemStatus
}

// Store defines persistence for library items, study records, usage
// counters, and profiles. All lookups are scoped to the owning user.
type Store interface {
	// library
	SaveLibraryItemWithLimit(item domain.LibraryItem, limit int) (string, error)
	GetLibraryItem(ownerID, id string) (domain.LibraryItem, bool, error)
	ListLibraryItems(ownerID string, filter ListFilter) ([]domain.LibraryItem, error)
	UpdateLibraryItem(ownerID, id string, patch ItemPatch) (domain.LibraryItem, bool, error)

	// usage
	GetUsage(ownerID, monthKey string) (domain.UsageMonthly, bool, error)

	// study records
	SaveAttempt(attempt domain.QuizAttempt) (domain.QuizAttempt, error)
	ListAttempts(ownerID string) ([]domain.QuizAttempt, error)
	UpsertProgress(progress domain.FlashcardProgress) (domain.FlashcardProgress, error)

	// profile & feedback
	GetProfile(userID string) (domain.Profile, bool, error)
	SaveProfile(profile domain.Profile) error
	SaveFeedback(fb domain.Feedback) error
}
