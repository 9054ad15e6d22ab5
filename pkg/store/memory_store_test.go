package store

import (
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"studypilot/pkg/domain"
)

func testItem(owner, title string, typ domain.GenerationType) domain.LibraryItem {
	return domain.LibraryItem{
		OwnerID: owner,
		Type:    typ,
		Title:   title,
		Tags:    []string{"biology"},
		Payload: json.RawMessage(`{"title":"t"}`),
	}
}

func TestMemoryStoreQuotaNeverOverruns(t *testing.T) {
	s := NewMemoryStore()
	const limit = 20
	const attempts = 50

	var wg sync.WaitGroup
	errs := make(chan error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.SaveLibraryItemWithLimit(testItem("user-1", "Item", domain.TypeQuiz), limit)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	var saved, limited int
	for err := range errs {
		switch {
		case err == nil:
			saved++
		case errors.Is(err, ErrResourceLimit):
			limited++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if saved != limit {
		t.Fatalf("saved %d items, want %d", saved, limit)
	}
	if limited != attempts-limit {
		t.Fatalf("%d limited saves, want %d", limited, attempts-limit)
	}

	usage, ok, err := s.GetUsage("user-1", domain.MonthKey(time.Now()))
	if err != nil || !ok {
		t.Fatalf("get usage: ok=%v err=%v", ok, err)
	}
	if usage.ResourcesUsed != limit {
		t.Fatalf("resources_used = %d, want %d", usage.ResourcesUsed, limit)
	}
	if usage.ResourcesUsed > usage.ResourceLimit {
		t.Fatalf("counter overran limit: %+v", usage)
	}
}

func TestMemoryStoreUsageAbsentWithoutSaves(t *testing.T) {
	s := NewMemoryStore()
	_, ok, err := s.GetUsage("user-1", domain.MonthKey(time.Now()))
	if err != nil {
		t.Fatalf("get usage: %v", err)
	}
	if ok {
		t.Fatal("expected no usage row before first save")
	}
}

func TestMemoryStoreListFilters(t *testing.T) {
	s := NewMemoryStore()
	mustSave := func(title string, typ domain.GenerationType) string {
		t.Helper()
		id, err := s.SaveLibraryItemWithLimit(testItem("user-1", title, typ), 20)
		if err != nil {
			t.Fatalf("save %q: %v", title, err)
		}
		return id
	}
	mustSave("Cell division quiz", domain.TypeQuiz)
	time.Sleep(time.Millisecond)
	quizID := mustSave("CELL membranes", domain.TypeQuiz)
	time.Sleep(time.Millisecond)
	mustSave("Cell structure notes", domain.TypeExplain)
	mustSave("Algebra quiz", domain.TypeQuiz)
	if _, err := s.SaveLibraryItemWithLimit(testItem("user-2", "Cell quiz", domain.TypeQuiz), 20); err != nil {
		t.Fatalf("save for other user: %v", err)
	}

	items, err := s.ListLibraryItems("user-1", ListFilter{
		Status: domain.StatusActive,
		Type:   domain.TypeQuiz,
		Search: "cell",
	})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("got %d items, want 2", len(items))
	}
	// Newest first.
	if items[0].ID != quizID {
		t.Fatalf("expected newest item first, got %q", items[0].Title)
	}
	for _, item := range items {
		if item.OwnerID != "user-1" || item.Type != domain.TypeQuiz {
			t.Fatalf("filter leaked item: %+v", item)
		}
	}
}

func TestMemoryStoreArchivedExcludedFromActiveList(t *testing.T) {
	s := NewMemoryStore()
	id, err := s.SaveLibraryItemWithLimit(testItem("user-1", "Old quiz", domain.TypeQuiz), 20)
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	archived := domain.StatusArchived
	if _, ok, err := s.UpdateLibraryItem("user-1", id, ItemPatch{Status: &archived}); err != nil || !ok {
		t.Fatalf("archive: ok=%v err=%v", ok, err)
	}

	active, err := s.ListLibraryItems("user-1", ListFilter{Status: domain.StatusActive})
	if err != nil {
		t.Fatalf("list active: %v", err)
	}
	if len(active) != 0 {
		t.Fatalf("archived item in active list: %+v", active)
	}
	all, err := s.ListLibraryItems("user-1", ListFilter{Status: domain.StatusArchived})
	if err != nil {
		t.Fatalf("list archived: %v", err)
	}
	if len(all) != 1 || all[0].Status != domain.StatusArchived {
		t.Fatalf("unexpected archived list: %+v", all)
	}
}

func TestMemoryStoreOwnershipScoping(t *testing.T) {
	s := NewMemoryStore()
	id, err := s.SaveLibraryItemWithLimit(testItem("user-1", "Quiz", domain.TypeQuiz), 20)
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if _, ok, _ := s.GetLibraryItem("user-2", id); ok {
		t.Fatal("item visible to non-owner")
	}
	if _, ok, _ := s.UpdateLibraryItem("user-2", id, ItemPatch{}); ok {
		t.Fatal("item mutable by non-owner")
	}
}

func TestMemoryStoreProgressUpsert(t *testing.T) {
	s := NewMemoryStore()
	first, err := s.UpsertProgress(domain.FlashcardProgress{
		OwnerID: "user-1", SetID: "set-1", CardKey: "card-1", BoxLevel: 1,
	})
	if err != nil {
		t.Fatalf("first upsert: %v", err)
	}
	time.Sleep(time.Millisecond)
	second, err := s.UpsertProgress(domain.FlashcardProgress{
		OwnerID: "user-1", SetID: "set-1", CardKey: "card-1", BoxLevel: 2,
	})
	if err != nil {
		t.Fatalf("second upsert: %v", err)
	}
	if second.BoxLevel != 2 {
		t.Fatalf("box level = %d, want 2", second.BoxLevel)
	}
	if !second.LastReviewedAt.After(first.LastReviewedAt) {
		t.Fatal("expected last_reviewed_at to advance")
	}
	if len(s.progress) != 1 {
		t.Fatalf("expected one progress row, got %d", len(s.progress))
	}
}

func TestMemoryStoreAttemptsNewestFirst(t *testing.T) {
	s := NewMemoryStore()
	if _, err := s.SaveAttempt(domain.QuizAttempt{OwnerID: "user-1", Score: 3, Total: 5}); err != nil {
		t.Fatalf("save attempt: %v", err)
	}
	if _, err := s.SaveAttempt(domain.QuizAttempt{OwnerID: "user-1", Score: 5, Total: 5}); err != nil {
		t.Fatalf("save attempt: %v", err)
	}
	attempts, err := s.ListAttempts("user-1")
	if err != nil {
		t.Fatalf("list attempts: %v", err)
	}
	if len(attempts) != 2 {
		t.Fatalf("got %d attempts, want 2", len(attempts))
	}
	if attempts[0].Score != 5 {
		t.Fatalf("expected newest attempt first, got score %d", attempts[0].Score)
	}
}
