package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"studypilot/pkg/domain"
)

const migrateLockID int64 = 52105210

// saveItemFnSQL installs the quota procedure. The row lock on the usage
// counter makes check-increment-insert atomic across concurrent saves from
// the same owner; a reached limit raises RESOURCE_LIMIT.
const saveItemFnSQL = `
CREATE OR REPLACE FUNCTION save_library_item_with_limit(
	p_id text, p_user_id text, p_type text, p_title text,
	p_subject text, p_tags jsonb, p_payload jsonb, p_limit int
) RETURNS text AS $$
DECLARE
	v_month text := to_char(now() AT TIME ZONE 'utc', 'YYYY-MM');
	v_used int;
	v_limit int;
BEGIN
	INSERT INTO usage_monthly_models (user_id, month_key, resources_used, resource_limit, created_at, updated_at)
	VALUES (p_user_id, v_month, 0, p_limit, now(), now())
	ON CONFLICT (user_id, month_key) DO NOTHING;

	SELECT resources_used, resource_limit INTO v_used, v_limit
	FROM usage_monthly_models
	WHERE user_id = p_user_id AND month_key = v_month
	FOR UPDATE;

	IF v_used >= v_limit THEN
		RAISE EXCEPTION 'RESOURCE_LIMIT';
	END IF;

	UPDATE usage_monthly_models
	SET resources_used = resources_used + 1, updated_at = now()
	WHERE user_id = p_user_id AND month_key = v_month;

	INSERT INTO library_item_models (id, user_id, type, title, subject, tags, payload, status, favorite, created_at, updated_at)
	VALUES (p_id, p_user_id, p_type, p_title, p_subject, COALESCE(p_tags, '[]'::jsonb), p_payload, 'active', false, now(), now());

	RETURN p_id;
END;
$$ LANGUAGE plpgsql;
`

// GormStore implements Store using GORM + Postgres.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore opens the DB, runs auto-migrations, and installs the
// save_library_item_with_limit procedure.
func NewGormStore(dsn string) (*GormStore, error) {
	gormLog := gormlogger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		gormlogger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{Logger: gormLog})
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := withMigrationLock(db, func(tx *gorm.DB) error {
		if err := tx.AutoMigrate(
			&LibraryItemModel{},
			&QuizAttemptModel{},
			&FlashcardProgressModel{},
			&UsageMonthlyModel{},
			&ProfileModel{},
			&FeedbackModel{},
		); err != nil {
			return fmt.Errorf("auto migrate: %w", err)
		}
		if err := tx.Exec(saveItemFnSQL).Error; err != nil {
			return fmt.Errorf("install save procedure: %w", err)
		}
		return nil
	}); err != nil {
		return nil, err
	}
	return &GormStore{db: db}, nil
}

func withMigrationLock(db *gorm.DB, fn func(*gorm.DB) error) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("get sql db: %w", err)
	}
	conn, err := sqlDB.Conn(ctx)
	if err != nil {
		return fmt.Errorf("open sql conn: %w", err)
	}
	defer conn.Close()
	if err := execAdvisory(ctx, conn, "SELECT pg_advisory_lock($1)", migrateLockID); err != nil {
		return fmt.Errorf("acquire migrate lock: %w", err)
	}
	defer func() {
		_ = execAdvisory(ctx, conn, "SELECT pg_advisory_unlock($1)", migrateLockID)
	}()
	return fn(db)
}

func execAdvisory(ctx context.Context, conn *sql.Conn, query string, lockID int64) error {
	_, err := conn.ExecContext(ctx, query, lockID)
	return err
}

// SaveLibraryItemWithLimit inserts the item through the quota procedure as a
// single round trip and returns the new item id.
func (s *GormStore) SaveLibraryItemWithLimit(item domain.LibraryItem, limit int) (string, error) {
	id := uuid.NewString()
	tags, err := toJSON(item.Tags)
	if err != nil {
		return "", err
	}
	var returned string
	err = s.db.Raw(
		"SELECT save_library_item_with_limit(?, ?, ?, ?, ?, ?, ?, ?)",
		id, item.OwnerID, string(item.Type), item.Title, item.Subject,
		tags, datatypes.JSON(item.Payload), limit,
	).Scan(&returned).Error
	if err != nil {
		if strings.Contains(err.Error(), "RESOURCE_LIMIT") {
			return "", ErrResourceLimit
		}
		return "", err
	}
	return returned, nil
}

// GetLibraryItem returns one item constrained to the owner.
func (s *GormStore) GetLibraryItem(ownerID, id string) (domain.LibraryItem, bool, error) {
	var model LibraryItemModel
	if err := s.db.First(&model, "id = ? AND user_id = ?", id, ownerID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return domain.LibraryItem{}, false, nil
		}
		return domain.LibraryItem{}, false, err
	}
	item, err := itemFromModel(model)
	if err != nil {
		return domain.LibraryItem{}, false, err
	}
	return item, true, nil
}

// ListLibraryItems returns the owner's items newest first, narrowed by the
// filter.
func (s *GormStore) ListLibraryItems(ownerID string, filter ListFilter) ([]domain.LibraryItem, error) {
	tx := s.db.Where("user_id = ?", ownerID).Order("created_at DESC")
	if filter.Status != "" {
		tx = tx.Where("status = ?", string(filter.Status))
	}
	if filter.Type != "" {
		tx = tx.Where("type = ?", string(filter.Type))
	}
	if filter.Favorite {
		tx = tx.Where("favorite = ?", true)
	}
	if search := strings.TrimSpace(filter.Search); search != "" {
		tx = tx.Where("title ILIKE ?", "%"+search+"%")
	}
	var models []LibraryItemModel
	if err := tx.Find(&models).Error; err != nil {
		return nil, err
	}
	res := make([]domain.LibraryItem, 0, len(models))
	for _, m := range models {
		item, err := itemFromModel(m)
		if err != nil {
			return nil, err
		}
		res = append(res, item)
	}
	return res, nil
}

// UpdateLibraryItem applies the patch to an owned item and returns the
// updated row. Missing or not-owned items report ok=false.
func (s *GormStore) UpdateLibraryItem(ownerID, id string, patch ItemPatch) (domain.LibraryItem, bool, error) {
	updates := map[string]any{"updated_at": time.Now().UTC()}
	if patch.Favorite != nil {
		updates["favorite"] = *patch.Favorite
	}
	if patch.Status != nil {
		updates["status"] = string(*patch.Status)
	}
	res := s.db.Model(&LibraryItemModel{}).
		Where("id = ? AND user_id = ?", id, ownerID).
		Updates(updates)
	if res.Error != nil {
		return domain.LibraryItem{}, false, res.Error
	}
	if res.RowsAffected == 0 {
		return domain.LibraryItem{}, false, nil
	}
	return s.GetLibraryItem(ownerID, id)
}

// GetUsage looks up one month's quota counter without creating it.
func (s *GormStore) GetUsage(ownerID, monthKey string) (domain.UsageMonthly, bool, error) {
	var model UsageMonthlyModel
	if err := s.db.First(&model, "user_id = ? AND month_key = ?", ownerID, monthKey).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return domain.UsageMonthly{}, false, nil
		}
		return domain.UsageMonthly{}, false, err
	}
	return domain.UsageMonthly{
		OwnerID:       model.UserID,
		MonthKey:      model.MonthKey,
		ResourcesUsed: model.ResourcesUsed,
		ResourceLimit: model.ResourceLimit,
	}, true, nil
}

// SaveAttempt inserts one immutable quiz attempt.
func (s *GormStore) SaveAttempt(attempt domain.QuizAttempt) (domain.QuizAttempt, error) {
	attempt.ID = uuid.NewString()
	attempt.CreatedAt = time.Now().UTC()
	answers, err := toJSON(attempt.Answers)
	if err != nil {
		return domain.QuizAttempt{}, err
	}
	weakTopics, err := toJSON(attempt.WeakTopics)
	if err != nil {
		return domain.QuizAttempt{}, err
	}
	model := QuizAttemptModel{
		ID:            attempt.ID,
		UserID:        attempt.OwnerID,
		LibraryItemID: attempt.LibraryItemID,
		Score:         attempt.Score,
		Total:         attempt.Total,
		Answers:       answers,
		WeakTopics:    weakTopics,
		CreatedAt:     attempt.CreatedAt,
	}
	if err := s.db.Create(&model).Error; err != nil {
		return domain.QuizAttempt{}, err
	}
	return attempt, nil
}

// ListAttempts returns the owner's attempts newest first.
func (s *GormStore) ListAttempts(ownerID string) ([]domain.QuizAttempt, error) {
	var models []QuizAttemptModel
	if err := s.db.Where("user_id = ?", ownerID).Order("created_at DESC").Find(&models).Error; err != nil {
		return nil, err
	}
	res := make([]domain.QuizAttempt, 0, len(models))
	for _, m := range models {
		attempt, err := attemptFromModel(m)
		if err != nil {
			return nil, err
		}
		res = append(res, attempt)
	}
	return res, nil
}

// UpsertProgress writes per-card review state keyed by (owner, set, card),
// stamping last_reviewed_at server-side.
func (s *GormStore) UpsertProgress(progress domain.FlashcardProgress) (domain.FlashcardProgress, error) {
	progress.LastReviewedAt = time.Now().UTC()
	model := FlashcardProgressModel{
		UserID:         progress.OwnerID,
		SetID:          progress.SetID,
		CardKey:        progress.CardKey,
		BoxLevel:       progress.BoxLevel,
		LastReviewedAt: progress.LastReviewedAt,
		NextDueAt:      progress.NextDueAt,
	}
	err := s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "set_id"}, {Name: "card_key"}},
		DoUpdates: clause.AssignmentColumns([]string{"box_level", "last_reviewed_at", "next_due_at"}),
	}).Create(&model).Error
	if err != nil {
		return domain.FlashcardProgress{}, err
	}
	return progress, nil
}

// GetProfile returns the user's study profile.
func (s *GormStore) GetProfile(userID string) (domain.Profile, bool, error) {
	var model ProfileModel
	if err := s.db.First(&model, "user_id = ?", userID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return domain.Profile{}, false, nil
		}
		return domain.Profile{}, false, err
	}
	var subjects []string
	if len(model.Subjects) > 0 {
		if err := json.Unmarshal(model.Subjects, &subjects); err != nil {
			return domain.Profile{}, false, err
		}
	}
	return domain.Profile{
		UserID:    model.UserID,
		Name:      model.Name,
		Grade:     model.Grade,
		Subjects:  subjects,
		UpdatedAt: model.UpdatedAt,
	}, true, nil
}

// SaveProfile creates or updates the user's profile.
func (s *GormStore) SaveProfile(profile domain.Profile) error {
	subjects, err := toJSON(profile.Subjects)
	if err != nil {
		return err
	}
	model := ProfileModel{
		UserID:    profile.UserID,
		Name:      profile.Name,
		Grade:     profile.Grade,
		Subjects:  subjects,
		UpdatedAt: time.Now().UTC(),
	}
	return s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"name", "grade", "subjects", "updated_at"}),
	}).Create(&model).Error
}

// SaveFeedback inserts one feedback message.
func (s *GormStore) SaveFeedback(fb domain.Feedback) error {
	model := FeedbackModel{
		ID:        uuid.NewString(),
		UserID:    fb.OwnerID,
		Type:      fb.Type,
		Message:   fb.Message,
		CreatedAt: time.Now().UTC(),
	}
	return s.db.Create(&model).Error
}

func toJSON(v any) (datatypes.JSON, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(raw), nil
}

func itemFromModel(m LibraryItemModel) (domain.LibraryItem, error) {
	var tags []string
	if len(m.Tags) > 0 {
		if err := json.Unmarshal(m.Tags, &tags); err != nil {
			return domain.LibraryItem{}, fmt.Errorf("item %s tags: %w", m.ID, err)
		}
	}
	return domain.LibraryItem{
		ID:        m.ID,
		OwnerID:   m.UserID,
		Type:      domain.GenerationType(m.Type),
		Title:     m.Title,
		Subject:   m.Subject,
		Tags:      tags,
		Payload:   json.RawMessage(m.Payload),
		Status:    domain.ItemStatus(m.Status),
		Favorite:  m.Favorite,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}, nil
}

func attemptFromModel(m QuizAttemptModel) (domain.QuizAttempt, error) {
	var answers []int
	if len(m.Answers) > 0 {
		if err := json.Unmarshal(m.Answers, &answers); err != nil {
			return domain.QuizAttempt{}, fmt.Errorf("attempt %s answers: %w", m.ID, err)
		}
	}
	var weakTopics []string
	if len(m.WeakTopics) > 0 {
		if err := json.Unmarshal(m.WeakTopics, &weakTopics); err != nil {
			return domain.QuizAttempt{}, fmt.Errorf("attempt %s weak topics: %w", m.ID, err)
		}
	}
	return domain.QuizAttempt{
		ID:            m.ID,
		OwnerID:       m.UserID,
		LibraryItemID: m.LibraryItemID,
		Score:         m.Score,
		Total:         m.Total,
		Answers:       answers,
		WeakTopics:    weakTopics,
		CreatedAt:     m.CreatedAt,
	}, nil
}
