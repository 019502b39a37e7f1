package routes

import (
	"encoding/json"
	"strconv"

	"carshare-server/models"
	"carshare-server/services"
	"carshare-server/storage"
	"carshare-server/utils"

	"github.com/google/uuid"
	"github.com/kataras/iris/v12"
	"gorm.io/datatypes"
)

// Geocoder is package state so tests can point listing creation at a stub
// endpoint.
var Geocoder = services.NewGeocoder()

type CreateListingInput struct {
	VehicleName     string   `json:"vehicleName" validate:"required,max=256"`
	MinSeat         int      `json:"minSeat" validate:"required,gte=1"`
	MaxSeat         int      `json:"maxSeat" validate:"required,gte=1"`
	ModelYear       int      `json:"modelYear" validate:"required,gte=1990"`
	BatteryCapacity string   `json:"batteryCapacity"`
	LicensePlate    string   `json:"licensePlate" validate:"required,max=16"`
	PickupAddress   string   `json:"pickupAddress" validate:"required"`
	RentalPrice     float64  `json:"rentalPrice" validate:"required,gt=0"`
	Images          []string `json:"images"` // base64 payloads or hosted URLs
}

// CreateListing publishes a vehicle for rental. The pickup address is
// forward-geocoded to coordinates and reverse-geocoded to a city; a listing
// whose license plate is already taken is rejected without touching the
// store.
func CreateListing(ctx iris.Context) {
	ownerID := ctx.Values().Get("userID").(uint)

	var input CreateListingInput
	if err := ctx.ReadJSON(&input); err != nil {
		utils.HandleValidationErrors(err, ctx)
		return
	}

	var existing models.Listing
	dupQuery := storage.DB.Where("license_plate = ?", input.LicensePlate).Limit(1).Find(&existing)
	if dupQuery.Error != nil {
		utils.CreateInternalServerError(ctx)
		return
	}
	if dupQuery.RowsAffected > 0 {
		utils.CreateError(iris.StatusConflict, "Conflict", "Listing already exists", ctx)
		return
	}

	reqCtx := ctx.Request().Context()
	lat, lng, geoErr := Geocoder.Forward(reqCtx, input.PickupAddress)
	if geoErr != nil {
		utils.CreateError(iris.StatusBadGateway, "Geocoding Error", "Could not resolve pickup address.", ctx)
		return
	}
	city, cityErr := Geocoder.Reverse(reqCtx, lat, lng)
	if cityErr != nil {
		utils.CreateError(iris.StatusBadGateway, "Geocoding Error", "Could not resolve city for pickup address.", ctx)
		return
	}

	imageURLs := []string{}
	for _, img := range input.Images {
		if len(img) > 8 && img[:4] == "http" {
			imageURLs = append(imageURLs, img)
			continue
		}
		url, uploadErr := storage.UploadBase64Image(img, "listing_"+uuid.NewString())
		if uploadErr != nil {
			utils.CreateError(iris.StatusBadGateway, "Upload Error", "Failed to store listing image.", ctx)
			return
		}
		imageURLs = append(imageURLs, url)
	}
	imagesJSON, _ := json.Marshal(imageURLs)

	listing := models.Listing{
		OwnerID:         ownerID,
		VehicleName:     input.VehicleName,
		MinSeat:         input.MinSeat,
		MaxSeat:         input.MaxSeat,
		ModelYear:       input.ModelYear,
		BatteryCapacity: input.BatteryCapacity,
		LicensePlate:    input.LicensePlate,
		PickupAddress:   input.PickupAddress,
		RentalPrice:     input.RentalPrice,
		Lat:             lat,
		Lng:             lng,
		City:            city,
		Images:          datatypes.JSON(imagesJSON),
	}

	if err := storage.DB.Create(&listing).Error; err != nil {
		utils.CreateInternalServerError(ctx)
		return
	}

	ctx.StatusCode(iris.StatusCreated)
	ctx.JSON(listing)
}

func GetListing(ctx iris.Context) {
	id := ctx.Params().Get("id")

	var listing models.Listing
	if err := storage.DB.Preload("Owner").First(&listing, id).Error; err != nil {
		utils.CreateNotFound(ctx)
		return
	}

	ctx.JSON(listing)
}

// GetListingByPlate is an exact-plate lookup used by the booking screens.
func GetListingByPlate(ctx iris.Context) {
	plate := ctx.Params().Get("plate")

	var listing models.Listing
	res := storage.DB.Where("license_plate = ?", plate).Limit(1).Find(&listing)
	if res.Error != nil {
		utils.CreateInternalServerError(ctx)
		return
	}
	if res.RowsAffected == 0 {
		utils.CreateNotFound(ctx)
		return
	}

	ctx.JSON(listing)
}

// SearchListingsByCity returns listings whose derived city matches exactly.
func SearchListingsByCity(ctx iris.Context) {
	city := ctx.URLParam("city")
	if city == "" {
		utils.CreateError(iris.StatusBadRequest, "Validation Error", "city query parameter is required", ctx)
		return
	}

	var listings []models.Listing
	if err := storage.DB.Where("city = ?", city).Order("created_at DESC").Find(&listings).Error; err != nil {
		utils.CreateInternalServerError(ctx)
		return
	}

	ctx.JSON(listings)
}

// GetNearbyListings filters listings by Haversine distance from the given
// point. Radius defaults to 25km.
func GetNearbyListings(ctx iris.Context) {
	lat, latErr := strconv.ParseFloat(ctx.URLParam("lat"), 64)
	lng, lngErr := strconv.ParseFloat(ctx.URLParam("lng"), 64)
	if latErr != nil || lngErr != nil {
		utils.CreateError(iris.StatusBadRequest, "Validation Error", "lat and lng query parameters are required", ctx)
		return
	}
	radius := 25.0
	if r, err := strconv.ParseFloat(ctx.URLParam("radius"), 64); err == nil && r > 0 {
		radius = r
	}

	var listings []models.Listing
	if err := storage.DB.Find(&listings).Error; err != nil {
		utils.CreateInternalServerError(ctx)
		return
	}

	ctx.JSON(services.ListingsNearPoint(listings, lat, lng, radius))
}

func GetOwnerListings(ctx iris.Context) {
	ownerID := ctx.Values().Get("userID").(uint)

	var listings []models.Listing
	if err := storage.DB.Where("owner_id = ?", ownerID).Order("created_at DESC").Find(&listings).Error; err != nil {
		utils.CreateInternalServerError(ctx)
		return
	}

	ctx.JSON(listings)
}
