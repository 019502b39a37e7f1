package routes

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"carshare-server/models"
	"carshare-server/services"
	"carshare-server/storage"
	"carshare-server/utils"

	"github.com/kataras/iris/v12"
)

func reservationService() *services.ReservationService {
	return services.NewReservationService(storage.DB, storage.Redis, services.NewBookingFeed(storage.Redis))
}

type CreateBookingInput struct {
	StartDate time.Time `json:"startDate" validate:"required"`
}

// CreateBooking reserves the listing for a fixed 7-day window beginning at
// startDate. The renter identity comes from the access token, never the
// body. An optional Idempotency-Key header makes a retried create return
// the original booking instead of double-booking.
func CreateBooking(ctx iris.Context) {
	renterID := ctx.Values().Get("userID").(uint)
	listingID := ctx.Params().Get("id")

	var input CreateBookingInput
	if err := ctx.ReadJSON(&input); err != nil {
		utils.HandleValidationErrors(err, ctx)
		return
	}

	var listing models.Listing
	if err := storage.DB.First(&listing, listingID).Error; err != nil {
		utils.CreateError(iris.StatusNotFound, "Not Found", "Listing not found", ctx)
		return
	}

	booking, err := reservationService().CreateBooking(
		ctx.Request().Context(), &listing, renterID, input.StartDate,
		ctx.GetHeader("Idempotency-Key"))
	if err != nil {
		handleReservationError(err, ctx)
		return
	}

	ctx.StatusCode(iris.StatusCreated)
	ctx.JSON(booking)
}

// ConfirmBooking is an owner action: Pending -> Confirmed plus a generated
// confirmation code.
func ConfirmBooking(ctx iris.Context) {
	actorID := ctx.Values().Get("userID").(uint)
	bookingID, err := ctx.Params().GetUint("id")
	if err != nil {
		utils.CreateError(iris.StatusBadRequest, "Validation Error", "Invalid booking ID", ctx)
		return
	}

	booking, svcErr := reservationService().ConfirmBooking(ctx.Request().Context(), bookingID, actorID)
	if svcErr != nil {
		handleReservationError(svcErr, ctx)
		return
	}

	ctx.JSON(booking)
}

// CancelBooking is valid for the booking's owner or renter while the
// booking is still Pending.
func CancelBooking(ctx iris.Context) {
	actorID := ctx.Values().Get("userID").(uint)
	bookingID, err := ctx.Params().GetUint("id")
	if err != nil {
		utils.CreateError(iris.StatusBadRequest, "Validation Error", "Invalid booking ID", ctx)
		return
	}

	booking, svcErr := reservationService().CancelBooking(ctx.Request().Context(), bookingID, actorID)
	if svcErr != nil {
		handleReservationError(svcErr, ctx)
		return
	}

	ctx.JSON(booking)
}

// GetOwnerBookings lists bookings across all of the owner's vehicles.
func GetOwnerBookings(ctx iris.Context) {
	ownerID := ctx.Values().Get("userID").(uint)

	var bookings []models.Booking
	res := storage.DB.Preload("Renter").
		Where("owner_id = ?", ownerID).
		Order("created_at DESC").
		Find(&bookings)
	if res.Error != nil {
		utils.CreateInternalServerError(ctx)
		return
	}

	ctx.JSON(bookings)
}

func GetRenterBookings(ctx iris.Context) {
	renterID := ctx.Values().Get("userID").(uint)

	var bookings []models.Booking
	res := storage.DB.Preload("Listing").
		Where("renter_id = ?", renterID).
		Order("created_at DESC").
		Find(&bookings)
	if res.Error != nil {
		utils.CreateInternalServerError(ctx)
		return
	}

	ctx.JSON(bookings)
}

// GetBooking returns one booking with its renter profile; only the two
// parties to the booking may read it.
func GetBooking(ctx iris.Context) {
	actorID := ctx.Values().Get("userID").(uint)
	bookingID := ctx.Params().Get("id")

	var booking models.Booking
	if err := storage.DB.Preload("Renter").Preload("Listing").First(&booking, bookingID).Error; err != nil {
		utils.CreateNotFound(ctx)
		return
	}

	if booking.OwnerID != actorID && booking.RenterID != actorID {
		utils.CreateError(iris.StatusForbidden, "Permission Denied", "You are not a party to this booking.", ctx)
		return
	}

	ctx.JSON(booking)
}

// StreamBookings pushes live booking snapshots for the authenticated user
// as Server-Sent Events until the client disconnects.
func StreamBookings(ctx iris.Context) {
	userID := ctx.Values().Get("userID").(uint)
	role := ctx.Values().GetString("role")

	feed := services.NewBookingFeed(storage.Redis)
	reqCtx := ctx.Request().Context()

	var events <-chan services.BookingEvent
	if role == models.RoleOwner {
		events = feed.SubscribeOwner(reqCtx, userID)
	} else {
		events = feed.SubscribeRenter(reqCtx, userID)
	}

	ctx.CompressWriter(false) // SSE frames must reach the client unbuffered
	ctx.ContentType("text/event-stream")
	ctx.Header("Cache-Control", "no-cache")
	ctx.Header("Connection", "keep-alive")

	flusher, ok := ctx.ResponseWriter().Flusher()
	if !ok {
		utils.CreateInternalServerError(ctx)
		return
	}
	flusher.Flush()

	for ev := range events {
		payload, err := json.Marshal(ev)
		if err != nil {
			continue
		}
		fmt.Fprintf(ctx.ResponseWriter(), "event: booking\ndata: %s\n\n", payload)
		flusher.Flush()
	}
}

func handleReservationError(err error, ctx iris.Context) {
	switch {
	case errors.Is(err, services.ErrBookingConflict):
		utils.CreateError(iris.StatusConflict, "Booking Conflict",
			"Vehicle is already booked during this time period.", ctx)
	case errors.Is(err, services.ErrBookingNotFound):
		utils.CreateNotFound(ctx)
	case errors.Is(err, services.ErrInvalidState):
		utils.CreateError(iris.StatusUnprocessableEntity, "Invalid State",
			"Booking status does not permit this transition.", ctx)
	case errors.Is(err, services.ErrPermissionDenied):
		utils.CreateError(iris.StatusForbidden, "Permission Denied",
			"You are not allowed to act on this booking.", ctx)
	default:
		utils.CreateInternalServerError(ctx)
	}
}
