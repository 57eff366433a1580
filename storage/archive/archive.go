package archive

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"wacgbridge/core/events"
)

// Record is one archived controller event.
type Record struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey"`
	Sequence    uint64    `gorm:"uniqueIndex"`
	Type        string    `gorm:"index"`
	Fingerprint string    `gorm:"index"`
	Attributes  string
	CreatedAt   time.Time
}

// TableName pins the table name independent of gorm's pluralisation.
func (Record) TableName() string { return "bridge_events" }

// Decode returns the attribute map of the record.
func (r Record) Decode() (map[string]string, error) {
	attrs := map[string]string{}
	if strings.TrimSpace(r.Attributes) == "" {
		return attrs, nil
	}
	if err := json.Unmarshal([]byte(r.Attributes), &attrs); err != nil {
		return nil, fmt.Errorf("decode attributes of %s: %w", r.ID, err)
	}
	return attrs, nil
}

// Archive persists every event it receives to SQLite. It implements
// events.Emitter; write failures are logged and kept for Err.
type Archive struct {
	db    *gorm.DB
	log   *slog.Logger
	nowFn func() time.Time

	mu  sync.Mutex
	seq uint64

	errMu   sync.Mutex
	lastErr error
}

// Open opens (or creates) the archive at path. An empty path selects a
// private in-memory database.
func Open(path string, log *slog.Logger) (*Archive, error) {
	dsn := strings.TrimSpace(path)
	if dsn == "" {
		dsn = fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	}
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		return nil, fmt.Errorf("open archive: %w", err)
	}
	if err := db.AutoMigrate(&Record{}); err != nil {
		return nil, fmt.Errorf("migrate archive: %w", err)
	}
	if log == nil {
		log = slog.Default()
	}
	a := &Archive{db: db, log: log.With(slog.String("component", "archive")), nowFn: time.Now}
	var last Record
	err = db.Order("sequence desc").Limit(1).Take(&last).Error
	switch {
	case err == nil:
		a.seq = last.Sequence
	case errors.Is(err, gorm.ErrRecordNotFound):
	default:
		return nil, fmt.Errorf("load archive sequence: %w", err)
	}
	return a, nil
}

// Close releases the underlying connection.
func (a *Archive) Close() error {
	if a == nil || a.db == nil {
		return nil
	}
	sqlDB, err := a.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Emit implements events.Emitter.
func (a *Archive) Emit(evt events.Event) {
	if a == nil || evt == nil {
		return
	}
	if err := a.Append(context.Background(), evt); err != nil {
		a.log.Error("archive event", slog.String("type", evt.EventType()), slog.Any("error", err))
		a.errMu.Lock()
		a.lastErr = err
		a.errMu.Unlock()
	}
}

// Err returns the most recent write failure observed by Emit.
func (a *Archive) Err() error {
	a.errMu.Lock()
	defer a.errMu.Unlock()
	return a.lastErr
}

// Append stores evt and returns once it is durable.
func (a *Archive) Append(ctx context.Context, evt events.Event) error {
	rendered := events.Render(evt)
	encoded, err := json.Marshal(rendered.Attributes)
	if err != nil {
		return fmt.Errorf("encode attributes: %w", err)
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	record := Record{
		ID:          uuid.New(),
		Sequence:    a.seq + 1,
		Type:        rendered.Type,
		Fingerprint: rendered.Attr("fingerprint"),
		Attributes:  string(encoded),
		CreatedAt:   a.nowFn().UTC(),
	}
	if err := a.db.WithContext(ctx).Create(&record).Error; err != nil {
		return fmt.Errorf("insert event: %w", err)
	}
	a.seq = record.Sequence
	return nil
}

// Count returns the number of archived events, optionally of one type.
func (a *Archive) Count(ctx context.Context, eventType string) (int64, error) {
	var n int64
	q := a.db.WithContext(ctx).Model(&Record{})
	if eventType != "" {
		q = q.Where("type = ?", eventType)
	}
	if err := q.Count(&n).Error; err != nil {
		return 0, fmt.Errorf("count events: %w", err)
	}
	return n, nil
}

// List returns up to limit events with a sequence above after, oldest first.
func (a *Archive) List(ctx context.Context, after uint64, limit int) ([]Record, error) {
	if limit <= 0 || limit > 1000 {
		limit = 1000
	}
	var out []Record
	err := a.db.WithContext(ctx).Where("sequence > ?", after).Order("sequence asc").Limit(limit).Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	return out, nil
}

// ByFingerprint returns the events carrying the request fingerprint.
func (a *Archive) ByFingerprint(ctx context.Context, fingerprint string) ([]Record, error) {
	var out []Record
	err := a.db.WithContext(ctx).Where("fingerprint = ?", strings.ToLower(strings.TrimSpace(fingerprint))).Order("sequence asc").Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("find events: %w", err)
	}
	return out, nil
}
