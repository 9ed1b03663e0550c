//go:build integration

package main_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/unitstay/service-booking/internal/application"
	stayDomain "github.com/unitstay/service-booking/internal/domain/stay"
	stayEvents "github.com/unitstay/service-booking/internal/events"
	"github.com/unitstay/service-booking/internal/idempotency"
	"github.com/unitstay/service-booking/internal/platform/apperr"
	"github.com/unitstay/service-booking/internal/repository"
	mongoRepo "github.com/unitstay/service-booking/internal/repository/mongo"
)

func stayRequest(guest, unit, checkIn string, nights int) application.StayRequest {
	return application.StayRequest{GuestName: guest, UnitID: unit, CheckInDate: checkIn, NumberOfNights: nights}
}

// exerciseStore runs the booking scenarios against a real store.
func exerciseStore(t *testing.T, repo stayDomain.Repository) {
	t.Helper()
	ctx := context.Background()
	svc := application.NewStayService(repo, nil, "", zap.NewNop())

	created, rej, err := svc.CreateStay(ctx, stayRequest("GuestA", "unit1", "2026-03-10", 5))
	require.NoError(t, err)
	require.Nil(t, rej)

	rejections := []struct {
		req  application.StayRequest
		want stayDomain.Reason
	}{
		{stayRequest("GuestA", "unit1", "2026-03-10", 5), stayDomain.ReasonDuplicateGuestUnit},
		{stayRequest("GuestA", "unit2", "2026-03-10", 5), stayDomain.ReasonGuestAlreadyBooked},
		{stayRequest("GuestB", "unit1", "2026-03-10", 5), stayDomain.ReasonUnitOccupied},
		{stayRequest("GuestB", "unit1", "2026-03-15", 1), stayDomain.ReasonUnitOccupied},
		{stayRequest("GuestB", "unit1", "2026-03-08", 2), stayDomain.ReasonUnitOccupied},
	}
	for _, r := range rejections {
		_, rej, err := svc.CreateStay(ctx, r.req)
		require.NoError(t, err)
		require.NotNil(t, rej, "%+v", r.req)
		assert.Equal(t, r.want, rej.Reason, "%+v", r.req)
	}

	_, rej, err = svc.CreateStay(ctx, stayRequest("GuestB", "unit2", "2026-03-10", 5))
	require.NoError(t, err)
	assert.Nil(t, rej)

	extended, rej, err := svc.ExtendStay(ctx, stayRequest("GuestA", "unit1", "2026-03-10", 7))
	require.NoError(t, err)
	require.Nil(t, rej)
	assert.Equal(t, created.ID, extended.ID)
	assert.Equal(t, 7, extended.NumberOfNights)

	_, rej, err = svc.ExtendStay(ctx, stayRequest("GuestA", "unit1", "2026-03-10", 7))
	require.NoError(t, err)
	require.NotNil(t, rej)
	assert.Equal(t, stayDomain.ReasonCannotShorten, rej.Reason)

	_, rej, err = svc.ExtendStay(ctx, stayRequest("GuestZ", "unit1", "2026-03-10", 9))
	require.NoError(t, err)
	require.NotNil(t, rej)
	assert.Equal(t, stayDomain.ReasonNotFound, rej.Reason)

	got, err := svc.GetStay(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, 7, got.NumberOfNights)
	assert.Equal(t, "2026-03-10", got.CheckInDate.Format(stayDomain.DateLayout))

	items, total, err := svc.ListStays(ctx, stayDomain.ListFilter{}, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	assert.Len(t, items, 2)

	// Concurrent requests for one free unit: the store serializes them.
	const n = 8
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		admitted int
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			dto, _, err := svc.CreateStay(ctx, stayRequest(fmt.Sprintf("Racer%d", i), "unit9", "2026-05-01", 3))
			assert.NoError(t, err)
			if dto != nil {
				mu.Lock()
				admitted++
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 1, admitted)
}

func TestPostgresStore_AdmissionAndExtension(t *testing.T) {
	db := startPostgres(t)
	exerciseStore(t, repository.NewGormStayRepository(db, 5*time.Second))
}

func TestMongoStore_AdmissionAndExtension(t *testing.T) {
	db := startMongo(t)
	repo := mongoRepo.NewStayRepository(db, 5*time.Second, zap.NewNop())
	require.NoError(t, repo.EnsureIndexes(context.Background()))

	exerciseStore(t, repo)
}

func TestMongoStore_WriteAfterLeaseLapsedIsConflict(t *testing.T) {
	db := startMongo(t)
	repo := mongoRepo.NewStayRepository(db, 50*time.Millisecond, zap.NewNop())
	ctx := context.Background()
	require.NoError(t, repo.EnsureIndexes(ctx))

	keys := stayDomain.LockKeys{GuestName: "GuestA", UnitID: "unit1"}
	candidate, err := stayDomain.NewStay("GuestA", "unit1", time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC), 5)
	require.NoError(t, err)

	err = repo.Atomic(ctx, keys, func(q stayDomain.Queries) error {
		time.Sleep(250 * time.Millisecond)
		return q.Create(ctx, candidate)
	})
	require.True(t, apperr.IsConflict(err), "%v", err)

	stays, total, err := repo.List(ctx, stayDomain.ListFilter{UnitID: "unit1"}, 1, 10)
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Empty(t, stays)

	err = repo.Atomic(ctx, keys, func(q stayDomain.Queries) error {
		return q.Create(ctx, candidate)
	})
	require.NoError(t, err)
}

func TestRedisIdempotencyStore(t *testing.T) {
	client := startRedis(t)
	store := idempotency.NewRedisStore(client)
	ctx := context.Background()

	_, found, err := store.Get(ctx, "PUT /api/v1/booking k1")
	require.NoError(t, err)
	assert.False(t, found)

	pending := idempotency.Record{Key: "PUT /api/v1/booking k1", BodyHash: "h1"}
	ok, err := store.Reserve(ctx, pending, time.Minute)
	require.NoError(t, err)
	require.True(t, ok)
	ok, err = store.Reserve(ctx, idempotency.Record{Key: pending.Key, BodyHash: "h2"}, time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	rec, found, err := store.Get(ctx, pending.Key)
	require.NoError(t, err)
	require.True(t, found)
	assert.True(t, rec.Pending())
	assert.Equal(t, "h1", rec.BodyHash)

	first := idempotency.Record{Key: pending.Key, BodyHash: "h1", Status: 200, ContentType: "application/json", Body: []byte(`{"id":"1"}`)}
	require.NoError(t, store.Save(ctx, first, time.Hour))

	rec, found, err = store.Get(ctx, first.Key)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, 200, rec.Status)
	assert.Equal(t, first.Body, rec.Body)

	require.NoError(t, store.Release(ctx, "PUT /api/v1/booking k2"))
	ok, err = store.Reserve(ctx, idempotency.Record{Key: "PUT /api/v1/booking k2"}, time.Minute)
	require.NoError(t, err)
	require.True(t, ok)
	require.NoError(t, store.Release(ctx, "PUT /api/v1/booking k2"))
	_, found, err = store.Get(ctx, "PUT /api/v1/booking k2")
	require.NoError(t, err)
	assert.False(t, found)

	ttl, err := client.TTL(ctx, "idempotency:"+first.Key).Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, time.Duration(0))
}

// TestStayCommand_CreatesStayAndPublishesEvents verifies that commands published to
// stay.commands are applied and reported on stay.events.
func TestStayCommand_CreatesStayAndPublishesEvents(t *testing.T) {
	db := startPostgres(t)
	brokers := startKafka(t)
	stack := setupCommandStack(t, db, brokers)

	// Start the consumer.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = stack.Consumer.Start(ctx) }()
	time.Sleep(3 * time.Second) // Wait for consumer group join.

	publishTestEvent(t, brokers, commandsTopic, stayEvents.CommandCreateStay, stayRequest("GuestA", "unit1", "2026-03-10", 5))

	ce := consumeOneEvent(t, brokers, eventsTopic, application.EventStayCreated, 20*time.Second)
	var created application.StayCreatedEvent
	require.NoError(t, ce.ParseData(&created))
	assert.Equal(t, "GuestA", created.GuestName)
	assert.Equal(t, "unit1", created.UnitID)
	assert.Equal(t, "2026-03-15", created.CheckOutDate)

	rejectedID := publishTestEvent(t, brokers, commandsTopic, stayEvents.CommandCreateStay, stayRequest("GuestB", "unit1", "2026-03-12", 1))

	ce = consumeOneEvent(t, brokers, eventsTopic, application.EventStayCommandRejected, 20*time.Second)
	var rejected application.StayCommandRejectedEvent
	require.NoError(t, ce.ParseData(&rejected))
	assert.Equal(t, rejectedID, rejected.CommandID)
	assert.Equal(t, string(stayDomain.ReasonUnitOccupied), rejected.Reason)
	assert.Equal(t, stayDomain.ReasonUnitOccupied.Message(), rejected.Message)
}
