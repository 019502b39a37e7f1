package services

import (
	"context"
	"testing"
	"time"

	"carshare-server/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFeedDeliversOwnerEvents(t *testing.T) {
	rdb := newTestRedis(t)
	feed := NewBookingFeed(rdb)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events := feed.SubscribeOwner(ctx, 7)
	// Redis subscriptions are asynchronous; give the registration a moment.
	time.Sleep(50 * time.Millisecond)

	booking := &models.Booking{
		ListingID:    1,
		OwnerID:      7,
		RenterID:     2,
		Status:       models.BookingStatusPending,
		VehicleName:  "Tesla Model 3",
		LicensePlate: "ABC123",
	}
	booking.ID = 11
	require.NoError(t, feed.Publish(ctx, BookingEventFrom(booking)))

	select {
	case ev := <-events:
		assert.EqualValues(t, 11, ev.BookingID)
		assert.Equal(t, models.BookingStatusPending, ev.Status)
		assert.Equal(t, "ABC123", ev.LicensePlate)
	case <-time.After(2 * time.Second):
		t.Fatal("expected a booking event before timeout")
	}
}

func TestFeedStopsOnContextCancel(t *testing.T) {
	rdb := newTestRedis(t)
	feed := NewBookingFeed(rdb)

	ctx, cancel := context.WithCancel(context.Background())
	events := feed.SubscribeOwner(ctx, 7)
	time.Sleep(50 * time.Millisecond)

	cancel()

	select {
	case _, ok := <-events:
		assert.False(t, ok, "channel must close after cancellation")
	case <-time.After(2 * time.Second):
		t.Fatal("channel did not close after cancellation")
	}
}

func TestFeedIsScopedToOwner(t *testing.T) {
	rdb := newTestRedis(t)
	feed := NewBookingFeed(rdb)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	other := feed.SubscribeOwner(ctx, 8)
	time.Sleep(50 * time.Millisecond)

	booking := &models.Booking{OwnerID: 7, RenterID: 2, Status: models.BookingStatusPending}
	booking.ID = 11
	require.NoError(t, feed.Publish(ctx, BookingEventFrom(booking)))

	select {
	case ev := <-other:
		t.Fatalf("owner 8 must not receive owner 7's event, got booking %d", ev.BookingID)
	case <-time.After(300 * time.Millisecond):
	}
}
