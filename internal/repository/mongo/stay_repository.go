package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	stayDomain "github.com/unitstay/service-booking/internal/domain/stay"
	"github.com/unitstay/service-booking/internal/platform/apperr"
)

const (
	staysCollection = "stays"
	locksCollection = "stay_locks"

	defaultLockTimeout = 5 * time.Second
	lockRetryInterval  = 25 * time.Millisecond
)

type stayDocument struct {
	ID             string    `bson:"_id"`
	GuestName      string    `bson:"guest_name"`
	UnitID         string    `bson:"unit_id"`
	CheckInDate    time.Time `bson:"check_in_date"`
	NumberOfNights int       `bson:"number_of_nights"`
	CreatedAt      time.Time `bson:"created_at"`
	UpdatedAt      time.Time `bson:"updated_at"`
}

// lockDocument is a short-lived advisory lock. Expired locks are reaped by a TTL index
// and may be taken over by the next caller.
type lockDocument struct {
	ID        string    `bson:"_id"`
	Owner     string    `bson:"owner"`
	ExpiresAt time.Time `bson:"expires_at"`
	CreatedAt time.Time `bson:"created_at"`
}

// StayRepository implements stay.Repository on MongoDB.
type StayRepository struct {
	stays       *mongo.Collection
	locks       *mongo.Collection
	lockTimeout time.Duration
	log         *zap.Logger
}

// NewStayRepository creates a StayRepository over db. A zero lockTimeout uses five seconds.
func NewStayRepository(db *mongo.Database, lockTimeout time.Duration, log *zap.Logger) *StayRepository {
	if lockTimeout <= 0 {
		lockTimeout = defaultLockTimeout
	}
	return &StayRepository{
		stays:       db.Collection(staysCollection),
		locks:       db.Collection(locksCollection),
		lockTimeout: lockTimeout,
		log:         log,
	}
}

// EnsureIndexes creates the guest uniqueness index, the unit lookup index and the lock TTL index.
func (r *StayRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.stays.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "guest_name", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("ux_stays_guest_name"),
		},
		{
			Keys:    bson.D{{Key: "unit_id", Value: 1}, {Key: "check_in_date", Value: 1}},
			Options: options.Index().SetName("ix_stays_unit_check_in"),
		},
	})
	if err != nil {
		return fmt.Errorf("failed to create stay indexes: %w", err)
	}

	_, err = r.locks.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "expires_at", Value: 1}},
		Options: options.Index().SetExpireAfterSeconds(0).SetName("ttl_stay_locks_expires_at"),
	})
	if err != nil {
		return fmt.Errorf("failed to create lock index: %w", err)
	}
	return nil
}

// Atomic acquires a lock document per key, in order, runs fn and releases the locks.
// Failing to acquire every lock within the lock timeout yields a ConflictError. Writes
// made through the Queries passed to fn first renew the locks, and fail with a
// ConflictError once the lease has lapsed.
func (r *StayRepository) Atomic(ctx context.Context, keys stayDomain.LockKeys, fn func(q stayDomain.Queries) error) error {
	owner := uuid.NewString()
	held := make([]string, 0, 2)
	defer func() {
		if len(held) == 0 {
			return
		}
		releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := r.release(releaseCtx, owner, held); err != nil {
			r.log.Warn("failed to release stay locks", zap.Strings("keys", held), zap.Error(err))
		}
	}()

	deadline := time.Now().Add(r.lockTimeout)
	for _, key := range keys.Strings() {
		if err := r.acquire(ctx, key, owner, deadline); err != nil {
			return err
		}
		held = append(held, key)
	}
	return fn(&leasedQueries{StayRepository: r, owner: owner, keys: held})
}

func (r *StayRepository) acquire(ctx context.Context, key, owner string, deadline time.Time) error {
	for {
		now := time.Now().UTC()
		_, err := r.locks.InsertOne(ctx, lockDocument{
			ID:        key,
			Owner:     owner,
			ExpiresAt: now.Add(r.leaseDuration()),
			CreatedAt: now,
		})
		if err == nil {
			return nil
		}
		if !mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("failed to acquire lock %s: %w", key, err)
		}

		// A holder that died leaves an expired lock the TTL monitor has not reaped yet.
		if _, err := r.locks.DeleteOne(ctx, bson.M{"_id": key, "expires_at": bson.M{"$lt": now}}); err != nil {
			return fmt.Errorf("failed to clear expired lock %s: %w", key, err)
		}

		if time.Now().After(deadline) {
			return apperr.NewConflictError("timed out waiting for a concurrent booking on the same guest or unit")
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(lockRetryInterval):
		}
	}
}

func (r *StayRepository) leaseDuration() time.Duration {
	return 2 * r.lockTimeout
}

// renew pushes out the expiry of every lock still held by owner and returns the new
// expiry. A lock that lapsed or was taken over fails the renewal.
func (r *StayRepository) renew(ctx context.Context, owner string, keys []string) (time.Time, error) {
	now := time.Now().UTC()
	expires := now.Add(r.leaseDuration())
	res, err := r.locks.UpdateMany(ctx,
		bson.M{"_id": bson.M{"$in": keys}, "owner": owner, "expires_at": bson.M{"$gt": now}},
		bson.M{"$set": bson.M{"expires_at": expires}},
	)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to renew stay locks: %w", err)
	}
	if res.MatchedCount != int64(len(keys)) {
		return time.Time{}, apperr.NewConflictError("stay lock lease expired before the write")
	}
	return expires, nil
}

// leasedQueries guards writes made inside Atomic with the holder's lock lease.
type leasedQueries struct {
	*StayRepository
	owner string
	keys  []string
}

func (q *leasedQueries) Create(ctx context.Context, st *stayDomain.Stay) error {
	ctx, cancel, err := q.lease(ctx)
	if err != nil {
		return err
	}
	defer cancel()
	return q.StayRepository.Create(ctx, st)
}

func (q *leasedQueries) UpdateNights(ctx context.Context, id uuid.UUID, nights int) (*stayDomain.Stay, error) {
	ctx, cancel, err := q.lease(ctx)
	if err != nil {
		return nil, err
	}
	defer cancel()
	return q.StayRepository.UpdateNights(ctx, id, nights)
}

// lease renews the locks and bounds ctx by the renewed expiry.
func (q *leasedQueries) lease(ctx context.Context) (context.Context, context.CancelFunc, error) {
	expires, err := q.renew(ctx, q.owner, q.keys)
	if err != nil {
		return nil, nil, err
	}
	ctx, cancel := context.WithDeadline(ctx, expires)
	return ctx, cancel, nil
}

func (r *StayRepository) release(ctx context.Context, owner string, keys []string) error {
	_, err := r.locks.DeleteMany(ctx, bson.M{"_id": bson.M{"$in": keys}, "owner": owner})
	return err
}

// FindByGuestAndUnit returns stays where guest_name and unit_id both match.
func (r *StayRepository) FindByGuestAndUnit(ctx context.Context, guestName, unitID string) ([]*stayDomain.Stay, error) {
	return r.find(ctx, "find stays by guest and unit", bson.M{"guest_name": guestName, "unit_id": unitID})
}

// FindByGuest returns every stay held by guestName.
func (r *StayRepository) FindByGuest(ctx context.Context, guestName string) ([]*stayDomain.Stay, error) {
	return r.find(ctx, "find stays by guest", bson.M{"guest_name": guestName})
}

// FindByUnitCheckInOnOrBefore returns stays on unitID with check_in_date <= date.
func (r *StayRepository) FindByUnitCheckInOnOrBefore(ctx context.Context, unitID string, date time.Time, excludeID uuid.UUID) ([]*stayDomain.Stay, error) {
	filter := bson.M{
		"unit_id":       unitID,
		"check_in_date": bson.M{"$lte": stayDomain.NormalizeDate(date)},
	}
	return r.find(ctx, "find stays checking in on or before date", excluding(filter, excludeID))
}

// FindByUnitCheckInInRange returns stays on unitID with lo <= check_in_date <= hi.
func (r *StayRepository) FindByUnitCheckInInRange(ctx context.Context, unitID string, lo, hi time.Time, excludeID uuid.UUID) ([]*stayDomain.Stay, error) {
	filter := bson.M{
		"unit_id": unitID,
		"check_in_date": bson.M{
			"$gte": stayDomain.NormalizeDate(lo),
			"$lte": stayDomain.NormalizeDate(hi),
		},
	}
	return r.find(ctx, "find stays checking in within range", excluding(filter, excludeID))
}

// FindOne returns the stay for guest, unit and check-in date, or nil when none exists.
func (r *StayRepository) FindOne(ctx context.Context, guestName, unitID string, checkIn time.Time) (*stayDomain.Stay, error) {
	var doc stayDocument
	err := r.stays.FindOne(ctx, bson.M{
		"guest_name":    guestName,
		"unit_id":       unitID,
		"check_in_date": stayDomain.NormalizeDate(checkIn),
	}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find stay: %w", err)
	}
	return doc.toDomain()
}

// Create persists a new stay and assigns its ID.
func (r *StayRepository) Create(ctx context.Context, st *stayDomain.Stay) error {
	st.AssignID(uuid.New())
	if _, err := r.stays.InsertOne(ctx, toDocument(st)); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return apperr.NewConflictError("a conflicting stay was committed concurrently")
		}
		return fmt.Errorf("failed to create stay: %w", err)
	}
	return nil
}

// UpdateNights sets number_of_nights on an existing stay.
func (r *StayRepository) UpdateNights(ctx context.Context, id uuid.UUID, nights int) (*stayDomain.Stay, error) {
	var doc stayDocument
	err := r.stays.FindOneAndUpdate(ctx,
		bson.M{"_id": id.String()},
		bson.M{"$set": bson.M{"number_of_nights": nights, "updated_at": time.Now().UTC()}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, apperr.NewNotFoundError("Stay", id.String())
		}
		return nil, fmt.Errorf("failed to update stay: %w", err)
	}
	return doc.toDomain()
}

// FindByID retrieves a stay by its unique identifier.
func (r *StayRepository) FindByID(ctx context.Context, id uuid.UUID) (*stayDomain.Stay, error) {
	var doc stayDocument
	if err := r.stays.FindOne(ctx, bson.M{"_id": id.String()}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, apperr.NewNotFoundError("Stay", id.String())
		}
		return nil, fmt.Errorf("failed to find stay by ID: %w", err)
	}
	return doc.toDomain()
}

// List retrieves stays ordered by check-in date with pagination.
func (r *StayRepository) List(ctx context.Context, filter stayDomain.ListFilter, page, limit int) ([]*stayDomain.Stay, int64, error) {
	query := bson.M{}
	if filter.GuestName != "" {
		query["guest_name"] = filter.GuestName
	}
	if filter.UnitID != "" {
		query["unit_id"] = filter.UnitID
	}

	total, err := r.stays.CountDocuments(ctx, query)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count stays: %w", err)
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "check_in_date", Value: 1}, {Key: "unit_id", Value: 1}, {Key: "created_at", Value: 1}}).
		SetSkip(int64((page - 1) * limit)).
		SetLimit(int64(limit))
	stays, err := r.findWith(ctx, "list stays", query, opts)
	if err != nil {
		return nil, 0, err
	}
	return stays, total, nil
}

// Ping checks the deployment is reachable.
func (r *StayRepository) Ping(ctx context.Context) error {
	return r.stays.Database().Client().Ping(ctx, nil)
}

func (r *StayRepository) find(ctx context.Context, op string, filter bson.M) ([]*stayDomain.Stay, error) {
	return r.findWith(ctx, op, filter, options.Find().SetSort(bson.D{{Key: "check_in_date", Value: 1}}))
}

func (r *StayRepository) findWith(ctx context.Context, op string, filter bson.M, opts *options.FindOptions) ([]*stayDomain.Stay, error) {
	cur, err := r.stays.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to %s: %w", op, err)
	}
	var docs []stayDocument
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to decode stays: %w", err)
	}

	stays := make([]*stayDomain.Stay, 0, len(docs))
	for _, doc := range docs {
		st, err := doc.toDomain()
		if err != nil {
			return nil, err
		}
		stays = append(stays, st)
	}
	return stays, nil
}

func excluding(filter bson.M, excludeID uuid.UUID) bson.M {
	if excludeID != uuid.Nil {
		filter["_id"] = bson.M{"$ne": excludeID.String()}
	}
	return filter
}

func toDocument(st *stayDomain.Stay) stayDocument {
	return stayDocument{
		ID:             st.ID().String(),
		GuestName:      st.GuestName(),
		UnitID:         st.UnitID(),
		CheckInDate:    st.CheckIn(),
		NumberOfNights: st.Nights(),
		CreatedAt:      st.CreatedAt(),
		UpdatedAt:      st.UpdatedAt(),
	}
}

func (d stayDocument) toDomain() (*stayDomain.Stay, error) {
	id, err := uuid.Parse(d.ID)
	if err != nil {
		return nil, fmt.Errorf("invalid stay id %q: %w", d.ID, err)
	}
	return stayDomain.ReconstructStay(
		id,
		d.GuestName,
		d.UnitID,
		d.CheckInDate.UTC(),
		d.NumberOfNights,
		d.CreatedAt.UTC(),
		d.UpdatedAt.UTC(),
	), nil
}
