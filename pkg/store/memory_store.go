package store

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"studypilot/pkg/domain"
)

// MemoryStore keeps everything in-process behind one mutex. It mirrors the
// GormStore contract, including atomic quota check-and-increment, and backs
// the test suite.
type MemoryStore struct {
	mu        sync.Mutex
	items     map[string]domain.LibraryItem
	attempts  []domain.QuizAttempt
	progress  map[string]domain.FlashcardProgress // key: owner|set|card
	usage     map[string]domain.UsageMonthly      // key: owner|month
	profiles  map[string]domain.Profile
	feedbacks []domain.Feedback
}

// NewMemoryStore initializes an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		items:    make(map[string]domain.LibraryItem),
		progress: make(map[string]domain.FlashcardProgress),
		usage:    make(map[string]domain.UsageMonthly),
		profiles: make(map[string]domain.Profile),
	}
}

// SaveLibraryItemWithLimit checks the month's counter, increments it, and
// inserts the item under one lock so concurrent saves cannot overrun the
// limit.
func (m *MemoryStore) SaveLibraryItemWithLimit(item domain.LibraryItem, limit int) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now().UTC()
	monthKey := domain.MonthKey(now)
	usageKey := item.OwnerID + "|" + monthKey
	u, ok := m.usage[usageKey]
	if !ok {
		u = domain.UsageMonthly{
			OwnerID:       item.OwnerID,
			MonthKey:      monthKey,
			ResourcesUsed: 0,
			ResourceLimit: limit,
		}
	}
	if u.ResourcesUsed >= u.ResourceLimit {
		m.usage[usageKey] = u
		return "", ErrResourceLimit
	}
	u.ResourcesUsed++
	m.usage[usageKey] = u

	item.ID = uuid.NewString()
	item.Status = domain.StatusActive
	item.Favorite = false
	item.CreatedAt = now
	item.UpdatedAt = now
	m.items[item.ID] = item
	return item.ID, nil
}

// GetLibraryItem returns an item when it exists and belongs to the owner.
func (m *MemoryStore) GetLibraryItem(ownerID, id string) (domain.LibraryItem, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	item, ok := m.items[id]
	if !ok || item.OwnerID != ownerID {
		return domain.LibraryItem{}, false, nil
	}
	return item, true, nil
}

// ListLibraryItems filters the owner's items and orders them newest first.
func (m *MemoryStore) ListLibraryItems(ownerID string, filter ListFilter) ([]domain.LibraryItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	search := strings.ToLower(strings.TrimSpace(filter.Search))
	res := make([]domain.LibraryItem, 0)
	for _, item := range m.items {
		if item.OwnerID != ownerID {
			continue
		}
		if filter.Status != "" && item.Status != filter.Status {
			continue
		}
		if filter.Type != "" && item.Type != filter.Type {
			continue
		}
		if filter.Favorite && !item.Favorite {
			continue
		}
		if search != "" && !strings.Contains(strings.ToLower(item.Title), search) {
			continue
		}
		res = append(res, item)
	}
	sort.Slice(res, func(i, j int) bool {
		if res[i].CreatedAt.Equal(res[j].CreatedAt) {
			return res[i].ID > res[j].ID
		}
		return res[i].CreatedAt.After(res[j].CreatedAt)
	})
	return res, nil
}

// UpdateLibraryItem applies the patch to an owned item.
func (m *MemoryStore) UpdateLibraryItem(ownerID, id string, patch ItemPatch) (domain.LibraryItem, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	item, ok := m.items[id]
	if !ok || item.OwnerID != ownerID {
		return domain.LibraryItem{}, false, nil
	}
	if patch.Favorite != nil {
		item.Favorite = *patch.Favorite
	}
	if patch.Status != nil {
		item.Status = *patch.Status
	}
	item.UpdatedAt = time.Now().UTC()
	m.items[id] = item
	return item, true, nil
}

// GetUsage reads the month's counter without creating it.
func (m *MemoryStore) GetUsage(ownerID, monthKey string) (domain.UsageMonthly, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.usage[ownerID+"|"+monthKey]
	if !ok {
		return domain.UsageMonthly{}, false, nil
	}
	return u, true, nil
}

// SaveAttempt appends one immutable attempt.
func (m *MemoryStore) SaveAttempt(attempt domain.QuizAttempt) (domain.QuizAttempt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	attempt.ID = uuid.NewString()
	attempt.CreatedAt = time.Now().UTC()
	m.attempts = append(m.attempts, attempt)
	return attempt, nil
}

// ListAttempts returns the owner's attempts newest first.
func (m *MemoryStore) ListAttempts(ownerID string) ([]domain.QuizAttempt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	res := make([]domain.QuizAttempt, 0)
	for i := len(m.attempts) - 1; i >= 0; i-- {
		if m.attempts[i].OwnerID == ownerID {
			res = append(res, m.attempts[i])
		}
	}
	return res, nil
}

// UpsertProgress writes card review state keyed by (owner, set, card).
func (m *MemoryStore) UpsertProgress(progress domain.FlashcardProgress) (domain.FlashcardProgress, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	progress.LastReviewedAt = time.Now().UTC()
	m.progress[progress.OwnerID+"|"+progress.SetID+"|"+progress.CardKey] = progress
	return progress, nil
}

// GetProfile returns the user's profile.
func (m *MemoryStore) GetProfile(userID string) (domain.Profile, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.profiles[userID]
	return p, ok, nil
}

// SaveProfile creates or replaces the user's profile.
func (m *MemoryStore) SaveProfile(profile domain.Profile) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	profile.UpdatedAt = time.Now().UTC()
	m.profiles[profile.UserID] = profile
	return nil
}

// SaveFeedback appends one feedback message.
func (m *MemoryStore) SaveFeedback(fb domain.Feedback) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	fb.ID = uuid.NewString()
	fb.CreatedAt = time.Now().UTC()
	m.feedbacks = append(m.feedbacks, fb)
	return nil
}
