package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"

	stayDomain "github.com/unitstay/service-booking/internal/domain/stay"
	"github.com/unitstay/service-booking/internal/platform/apperr"
)

const (
	pgUniqueViolation  = "23505"
	pgLockNotAvailable = "55P03"
	pgQueryCanceled    = "57014"
	defaultLockTimeout = 5 * time.Second
)

// StayModel is the GORM model for the stays table.
type StayModel struct {
	ID             uuid.UUID `gorm:"type:uuid;primaryKey"`
	GuestName      string    `gorm:"not null;size:255;uniqueIndex:ux_stays_guest_name"`
	UnitID         string    `gorm:"not null;size:255;index:ix_stays_unit_check_in,priority:1"`
	CheckInDate    time.Time `gorm:"type:date;not null;index:ix_stays_unit_check_in,priority:2"`
	NumberOfNights int       `gorm:"not null"`
	CreatedAt      time.Time `gorm:"not null"`
	UpdatedAt      time.Time `gorm:"not null"`
}

// TableName returns the table name for the GORM model.
func (StayModel) TableName() string {
	return "stays"
}

// GormStayRepository is the GORM-based implementation of stay.Repository.
type GormStayRepository struct {
	db          *gorm.DB
	lockTimeout time.Duration
}

// NewGormStayRepository creates a new GormStayRepository. A zero lockTimeout uses five seconds.
func NewGormStayRepository(db *gorm.DB, lockTimeout time.Duration) *GormStayRepository {
	if lockTimeout <= 0 {
		lockTimeout = defaultLockTimeout
	}
	return &GormStayRepository{db: db, lockTimeout: lockTimeout}
}

// Atomic runs fn inside a transaction holding transaction-scoped advisory locks on the
// guest and the unit. Waiting longer than the lock timeout yields a ConflictError.
func (r *GormStayRepository) Atomic(ctx context.Context, keys stayDomain.LockKeys, fn func(q stayDomain.Queries) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec(fmt.Sprintf("SET LOCAL lock_timeout = %d", r.lockTimeout.Milliseconds())).Error; err != nil {
			return fmt.Errorf("failed to set lock timeout: %w", err)
		}
		for _, key := range keys.Strings() {
			if err := tx.Exec("SELECT pg_advisory_xact_lock(hashtext(?))", key).Error; err != nil {
				return translateError(fmt.Sprintf("failed to lock %s", key), err)
			}
		}
		return fn(&GormStayRepository{db: tx, lockTimeout: r.lockTimeout})
	})
}

// FindByGuestAndUnit returns stays where guest_name and unit_id both match.
func (r *GormStayRepository) FindByGuestAndUnit(ctx context.Context, guestName, unitID string) ([]*stayDomain.Stay, error) {
	return r.find("find stays by guest and unit",
		r.db.WithContext(ctx).Where("guest_name = ? AND unit_id = ?", guestName, unitID))
}

// FindByGuest returns every stay held by guestName.
func (r *GormStayRepository) FindByGuest(ctx context.Context, guestName string) ([]*stayDomain.Stay, error) {
	return r.find("find stays by guest",
		r.db.WithContext(ctx).Where("guest_name = ?", guestName))
}

// FindByUnitCheckInOnOrBefore returns stays on unitID with check_in_date <= date.
func (r *GormStayRepository) FindByUnitCheckInOnOrBefore(ctx context.Context, unitID string, date time.Time, excludeID uuid.UUID) ([]*stayDomain.Stay, error) {
	q := r.db.WithContext(ctx).
		Where("unit_id = ? AND check_in_date <= ?", unitID, stayDomain.NormalizeDate(date))
	return r.find("find stays checking in on or before date", excluding(q, excludeID))
}

// FindByUnitCheckInInRange returns stays on unitID with lo <= check_in_date <= hi.
func (r *GormStayRepository) FindByUnitCheckInInRange(ctx context.Context, unitID string, lo, hi time.Time, excludeID uuid.UUID) ([]*stayDomain.Stay, error) {
	q := r.db.WithContext(ctx).
		Where("unit_id = ? AND check_in_date >= ? AND check_in_date <= ?",
			unitID, stayDomain.NormalizeDate(lo), stayDomain.NormalizeDate(hi))
	return r.find("find stays checking in within range", excluding(q, excludeID))
}

// FindOne returns the stay for guest, unit and check-in date, or nil when none exists.
func (r *GormStayRepository) FindOne(ctx context.Context, guestName, unitID string, checkIn time.Time) (*stayDomain.Stay, error) {
	var model StayModel
	err := r.db.WithContext(ctx).
		Where("guest_name = ? AND unit_id = ? AND check_in_date = ?", guestName, unitID, stayDomain.NormalizeDate(checkIn)).
		First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find stay: %w", err)
	}
	return toDomainStay(&model), nil
}

// Create persists a new stay and assigns its ID.
func (r *GormStayRepository) Create(ctx context.Context, st *stayDomain.Stay) error {
	st.AssignID(uuid.New())
	model := toStayModel(st)
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		return translateError("failed to create stay", err)
	}
	return nil
}

// UpdateNights sets number_of_nights on an existing stay.
func (r *GormStayRepository) UpdateNights(ctx context.Context, id uuid.UUID, nights int) (*stayDomain.Stay, error) {
	result := r.db.WithContext(ctx).
		Model(&StayModel{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"number_of_nights": nights,
			"updated_at":       time.Now().UTC(),
		})
	if result.Error != nil {
		return nil, translateError("failed to update stay", result.Error)
	}
	if result.RowsAffected == 0 {
		return nil, apperr.NewNotFoundError("Stay", id.String())
	}
	return r.FindByID(ctx, id)
}

// FindByID retrieves a stay by its unique identifier.
func (r *GormStayRepository) FindByID(ctx context.Context, id uuid.UUID) (*stayDomain.Stay, error) {
	var model StayModel
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NewNotFoundError("Stay", id.String())
		}
		return nil, fmt.Errorf("failed to find stay by ID: %w", err)
	}
	return toDomainStay(&model), nil
}

// List retrieves stays ordered by check-in date with pagination.
func (r *GormStayRepository) List(ctx context.Context, filter stayDomain.ListFilter, page, limit int) ([]*stayDomain.Stay, int64, error) {
	scope := func(db *gorm.DB) *gorm.DB {
		if filter.GuestName != "" {
			db = db.Where("guest_name = ?", filter.GuestName)
		}
		if filter.UnitID != "" {
			db = db.Where("unit_id = ?", filter.UnitID)
		}
		return db
	}

	var total int64
	if err := r.db.WithContext(ctx).Model(&StayModel{}).Scopes(scope).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count stays: %w", err)
	}

	var models []StayModel
	offset := (page - 1) * limit
	if err := r.db.WithContext(ctx).
		Scopes(scope).
		Order("check_in_date ASC, unit_id ASC, created_at ASC").
		Offset(offset).
		Limit(limit).
		Find(&models).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to list stays: %w", err)
	}

	return toDomainStays(models), total, nil
}

// Ping checks the database connection.
func (r *GormStayRepository) Ping(ctx context.Context) error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get sql.DB: %w", err)
	}
	return sqlDB.PingContext(ctx)
}

func (r *GormStayRepository) find(op string, q *gorm.DB) ([]*stayDomain.Stay, error) {
	var models []StayModel
	if err := q.Order("check_in_date ASC").Find(&models).Error; err != nil {
		return nil, fmt.Errorf("failed to %s: %w", op, err)
	}
	return toDomainStays(models), nil
}

func excluding(q *gorm.DB, excludeID uuid.UUID) *gorm.DB {
	if excludeID == uuid.Nil {
		return q
	}
	return q.Where("id <> ?", excludeID)
}

// translateError maps constraint and lock failures to ConflictError and wraps the rest.
func translateError(msg string, err error) error {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return apperr.NewConflictError("a conflicting stay was committed concurrently")
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgUniqueViolation:
			return apperr.NewConflictError("a conflicting stay was committed concurrently")
		case pgLockNotAvailable, pgQueryCanceled:
			return apperr.NewConflictError("timed out waiting for a concurrent booking on the same guest or unit")
		}
	}
	return fmt.Errorf("%s: %w", msg, err)
}

// --- Conversion Helpers ---

func toStayModel(st *stayDomain.Stay) *StayModel {
	return &StayModel{
		ID:             st.ID(),
		GuestName:      st.GuestName(),
		UnitID:         st.UnitID(),
		CheckInDate:    st.CheckIn(),
		NumberOfNights: st.Nights(),
		CreatedAt:      st.CreatedAt(),
		UpdatedAt:      st.UpdatedAt(),
	}
}

func toDomainStay(m *StayModel) *stayDomain.Stay {
	return stayDomain.ReconstructStay(
		m.ID,
		m.GuestName,
		m.UnitID,
		m.CheckInDate,
		m.NumberOfNights,
		m.CreatedAt,
		m.UpdatedAt,
	)
}

func toDomainStays(models []StayModel) []*stayDomain.Stay {
	stays := make([]*stayDomain.Stay, len(models))
	for i := range models {
		stays[i] = toDomainStay(&models[i])
	}
	return stays
}
