package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"carshare-server/models"

	"github.com/go-redis/redis/v8"
)

// BookingEvent is the snapshot pushed to list screens whenever a booking
// is created or changes status.
type BookingEvent struct {
	BookingID        uint      `json:"bookingID"`
	ListingID        uint      `json:"listingID"`
	OwnerID          uint      `json:"ownerID"`
	RenterID         uint      `json:"renterID"`
	Status           string    `json:"status"`
	ConfirmationCode string    `json:"confirmationCode"`
	VehicleName      string    `json:"vehicleName"`
	LicensePlate     string    `json:"licensePlate"`
	StartDate        time.Time `json:"startDate"`
	EndDate          time.Time `json:"endDate"`
}

func BookingEventFrom(b *models.Booking) BookingEvent {
	return BookingEvent{
		BookingID:        b.ID,
		ListingID:        b.ListingID,
		OwnerID:          b.OwnerID,
		RenterID:         b.RenterID,
		Status:           b.Status,
		ConfirmationCode: b.ConfirmationCode,
		VehicleName:      b.VehicleName,
		LicensePlate:     b.LicensePlate,
		StartDate:        b.StartDate,
		EndDate:          b.EndDate,
	}
}

// BookingFeed delivers live booking updates over Redis pub/sub, one channel
// per owner and one per renter. Subscriptions stop deterministically when
// the caller's context is cancelled.
type BookingFeed struct {
	client *redis.Client
}

func NewBookingFeed(client *redis.Client) *BookingFeed {
	return &BookingFeed{client: client}
}

func ownerChannel(ownerID uint) string {
	return fmt.Sprintf("bookings:owner:%d", ownerID)
}

func renterChannel(renterID uint) string {
	return fmt.Sprintf("bookings:renter:%d", renterID)
}

func (f *BookingFeed) Publish(ctx context.Context, ev BookingEvent) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	if err := f.client.Publish(ctx, ownerChannel(ev.OwnerID), payload).Err(); err != nil {
		return err
	}
	return f.client.Publish(ctx, renterChannel(ev.RenterID), payload).Err()
}

// SubscribeOwner streams booking events for all of an owner's vehicles.
// The returned channel closes when ctx is done.
func (f *BookingFeed) SubscribeOwner(ctx context.Context, ownerID uint) <-chan BookingEvent {
	return f.subscribe(ctx, ownerChannel(ownerID))
}

// SubscribeRenter streams booking events for a renter's reservations.
func (f *BookingFeed) SubscribeRenter(ctx context.Context, renterID uint) <-chan BookingEvent {
	return f.subscribe(ctx, renterChannel(renterID))
}

func (f *BookingFeed) subscribe(ctx context.Context, channel string) <-chan BookingEvent {
	pubsub := f.client.Subscribe(ctx, channel)
	out := make(chan BookingEvent)

	go func() {
		defer close(out)
		defer pubsub.Close()

		msgs := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				var ev BookingEvent
				if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
					continue
				}
				select {
				case out <- ev:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out
}
