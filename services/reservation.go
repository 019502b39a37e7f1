package services

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strconv"
	"time"

	"carshare-server/models"

	"github.com/go-redis/redis/v8"
	"golang.org/x/exp/slices"
	"gorm.io/gorm"
)

var (
	ErrBookingConflict  = errors.New("vehicle is already booked during this time period")
	ErrBookingNotFound  = errors.New("booking not found")
	ErrInvalidState     = errors.New("booking status does not permit this transition")
	ErrPermissionDenied = errors.New("caller is not allowed to act on this booking")
)

const idempotencyKeyTTL = 24 * time.Hour

// ReservationService enforces the no-overlapping-active-booking invariant
// per vehicle and drives the booking status lifecycle
// (Pending -> Confirmed | Cancelled).
type ReservationService struct {
	db    *gorm.DB
	redis *redis.Client
	feed  *BookingFeed
}

func NewReservationService(db *gorm.DB, redisClient *redis.Client, feed *BookingFeed) *ReservationService {
	return &ReservationService{db: db, redis: redisClient, feed: feed}
}

// overlaps reproduces the conflict test of the original booking flow: the
// candidate start date falling inside an existing active interval. A
// candidate window that merely spans an existing booking's start is NOT
// flagged; that asymmetry is load-bearing for the documented scenarios.
func overlaps(existing *models.Booking, candidateStart time.Time) bool {
	return !existing.StartDate.After(candidateStart) && !existing.EndDate.Before(candidateStart)
}

// CreateBooking checks the candidate window against every non-cancelled
// booking carrying the listing's license plate and, when clear, persists a
// Pending booking with a denormalized listing snapshot. The end date is
// always startDate + 7 days.
//
// The read-check and the write run inside one transaction that first takes
// a per-plate advisory lock, so two renters racing for the same vehicle
// serialize instead of both passing the check. idempotencyKey, when
// non-empty, dedups a retried create: the original booking is returned
// instead of a double-booking. Keys are scoped to the renter, so one
// client's key never resolves to another renter's booking.
func (s *ReservationService) CreateBooking(ctx context.Context, listing *models.Listing, renterID uint, startDate time.Time, idempotencyKey string) (*models.Booking, error) {
	if idempotencyKey != "" && s.redis != nil {
		if prior := s.priorBookingForKey(ctx, renterID, idempotencyKey); prior != nil {
			return prior, nil
		}
	}

	booking := &models.Booking{
		ListingID:    listing.ID,
		OwnerID:      listing.OwnerID,
		RenterID:     renterID,
		StartDate:    startDate,
		EndDate:      startDate.Add(models.BookingTerm),
		Status:       models.BookingStatusPending,
		VehicleName:  listing.VehicleName,
		LicensePlate: listing.LicensePlate,
		RentalPrice:  listing.RentalPrice,
		MinSeat:      listing.MinSeat,
		MaxSeat:      listing.MaxSeat,
		ModelYear:    listing.ModelYear,
		Images:       listing.Images,
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if tx.Dialector.Name() == "postgres" {
			// Serializes concurrent conflict checks for the same plate.
			if err := tx.Exec("SELECT pg_advisory_xact_lock(hashtext(?))", listing.LicensePlate).Error; err != nil {
				return err
			}
		}

		var existing []models.Booking
		if err := tx.Where("license_plate = ? AND status <> ?",
			listing.LicensePlate, models.BookingStatusCancelled).Find(&existing).Error; err != nil {
			return err
		}
		for i := range existing {
			if overlaps(&existing[i], startDate) {
				return ErrBookingConflict
			}
		}

		return tx.Create(booking).Error
	})
	if err != nil {
		return nil, err
	}

	if idempotencyKey != "" && s.redis != nil {
		s.redis.Set(ctx, idempotencyRedisKey(renterID, idempotencyKey),
			strconv.FormatUint(uint64(booking.ID), 10), idempotencyKeyTTL)
	}
	s.publish(ctx, booking)
	return booking, nil
}

// ConfirmBooking transitions a Pending booking to Confirmed and assigns a
// confirmation code, a uniform random integer in [1,100] rendered as a
// decimal string. Collisions between codes are accepted. Only the booking's
// owner may confirm.
func (s *ReservationService) ConfirmBooking(ctx context.Context, bookingID uint, actorID uint) (*models.Booking, error) {
	booking, err := s.loadBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if booking.OwnerID != actorID {
		return nil, ErrPermissionDenied
	}
	if booking.Status != models.BookingStatusPending {
		return nil, ErrInvalidState
	}

	code := strconv.Itoa(rand.Intn(100) + 1)

	// Conditional on the status still being Pending, so a concurrent
	// confirm/cancel on the same record cannot both win.
	res := s.db.WithContext(ctx).Model(&models.Booking{}).
		Where("id = ? AND status = ?", bookingID, models.BookingStatusPending).
		Updates(map[string]interface{}{
			"status":            models.BookingStatusConfirmed,
			"confirmation_code": code,
		})
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, ErrInvalidState
	}

	booking.Status = models.BookingStatusConfirmed
	booking.ConfirmationCode = code
	s.publish(ctx, booking)
	return booking, nil
}

// CancelBooking transitions a Pending booking to Cancelled and marks the
// confirmation-code slot with the cancellation sentinel. Confirmed and
// Cancelled are terminal. The booking's owner or its renter may cancel.
func (s *ReservationService) CancelBooking(ctx context.Context, bookingID uint, actorID uint) (*models.Booking, error) {
	booking, err := s.loadBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if !slices.Contains([]uint{booking.OwnerID, booking.RenterID}, actorID) {
		return nil, ErrPermissionDenied
	}
	if booking.Status != models.BookingStatusPending {
		return nil, ErrInvalidState
	}

	res := s.db.WithContext(ctx).Model(&models.Booking{}).
		Where("id = ? AND status = ?", bookingID, models.BookingStatusPending).
		Updates(map[string]interface{}{
			"status":            models.BookingStatusCancelled,
			"confirmation_code": models.CancellationSentinel,
		})
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, ErrInvalidState
	}

	booking.Status = models.BookingStatusCancelled
	booking.ConfirmationCode = models.CancellationSentinel
	s.publish(ctx, booking)
	return booking, nil
}

func (s *ReservationService) loadBooking(ctx context.Context, bookingID uint) (*models.Booking, error) {
	var booking models.Booking
	if err := s.db.WithContext(ctx).First(&booking, bookingID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrBookingNotFound
		}
		return nil, err
	}
	return &booking, nil
}

func (s *ReservationService) priorBookingForKey(ctx context.Context, renterID uint, key string) *models.Booking {
	idStr, err := s.redis.Get(ctx, idempotencyRedisKey(renterID, key)).Result()
	if err != nil {
		return nil
	}
	id, err := strconv.ParseUint(idStr, 10, 32)
	if err != nil {
		return nil
	}
	booking, err := s.loadBooking(ctx, uint(id))
	if err != nil || booking.RenterID != renterID {
		return nil
	}
	return booking
}

func (s *ReservationService) publish(ctx context.Context, booking *models.Booking) {
	if s.feed == nil {
		return
	}
	if err := s.feed.Publish(ctx, BookingEventFrom(booking)); err != nil {
		// The feed is advisory; a failed publish never rolls back a booking.
		return
	}
}

func idempotencyRedisKey(renterID uint, key string) string {
	return fmt.Sprintf("booking:idem:%d:%s", renterID, key)
}
