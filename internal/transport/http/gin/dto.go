package httpgin

import (
	"time"

	"github.com/ilyakh/busline/internal/domain"
)

type ErrorResponse struct {
	Message string `json:"message"`
}

// --- reference data ---

type AddCityRequest struct {
	Name string `json:"name" binding:"required"`
}

type AddCityResponse struct {
	CityID int64 `json:"city_id"`
}

type AddRouteRequest struct {
	DepartureCity   string `json:"departure_city" binding:"required"`
	DestinationCity string `json:"destination_city" binding:"required"`
	Duration        int    `json:"duration" binding:"required,gt=0"`
}

type AddRouteResponse struct {
	RouteID int64 `json:"route_id"`
}

type AddBusRequest struct {
	Model       string `json:"model" binding:"required"`
	RegNumber   string `json:"reg_number" binding:"required"`
	SeatsAmount int    `json:"seats_amount" binding:"required,gt=0"`
}

type AddBusResponse struct {
	BusID int64 `json:"bus_id"`
}

type AddRecordRequest struct {
	DepartureCity   string `json:"departure_city" binding:"required"`
	DestinationCity string `json:"destination_city" binding:"required"`
	BusRegNumber    string `json:"bus_reg_number" binding:"required"`
	Price           int    `json:"price" binding:"required,gt=0"`
	DepartureDate   int64  `json:"departure_date" binding:"required,gt=0"`
}

type AddRecordResponse struct {
	RecordID int64 `json:"record_id"`
}

// UpdateEntityRequest patches exactly one of city/route/record, addressed by
// its id. Only the whitelisted fields of the addressed entity are applied.
type UpdateEntityRequest struct {
	CityID   *int64 `json:"city_id"`
	RouteID  *int64 `json:"route_id"`
	RecordID *int64 `json:"record_id"`

	Name          *string `json:"name"`
	Duration      *int    `json:"duration"`
	Price         *int    `json:"price"`
	DepartureDate *int64  `json:"departure_date"`
}

type CityResponse struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

type RouteResponse struct {
	ID              int64  `json:"id"`
	DepartureCity   string `json:"departure_city"`
	DestinationCity string `json:"destination_city"`
	Duration        int    `json:"duration"`
}

type TripResponse struct {
	RecordID        int64  `json:"record_id"`
	Price           int    `json:"price"`
	DepartureDate   int64  `json:"departure_date"`
	Duration        int    `json:"duration"`
	DepartureCity   string `json:"departure_city"`
	DestinationCity string `json:"destination_city"`
}

// --- tickets ---

type AddTicketRequest struct {
	RecordID int64 `json:"record_id" binding:"required"`
}

type AddTicketResponse struct {
	TicketID string `json:"ticket_id"`
	SeatNo   int    `json:"seat_no"`
}

type TicketResponse struct {
	ID              string `json:"id"`
	SeatNo          int    `json:"seat_no"`
	Price           int    `json:"price"`
	Duration        int    `json:"duration"`
	DepartureCity   string `json:"departure_city"`
	DestinationCity string `json:"destination_city"`
	DepartureDate   int64  `json:"departure_date"`
	CreatedAt       int64  `json:"created_at"`

	PassengerID string `json:"passenger_id,omitempty"`
	FirstName   string `json:"first_name,omitempty"`
	LastName    string `json:"last_name,omitempty"`
}

// --- passengers ---

type SignupRequest struct {
	PhoneNumber string `json:"phone_number" binding:"required"`
	Password    string `json:"password" binding:"required,min=6"`
	FirstName   string `json:"first_name" binding:"required"`
	LastName    string `json:"last_name" binding:"required"`
}

type LoginRequest struct {
	PhoneNumber string `json:"phone_number" binding:"required"`
	Password    string `json:"password" binding:"required"`
}

type TokenResponse struct {
	Token string `json:"token"`
}

type LoginResponse struct {
	Token string `json:"token"`
	Role  string `json:"role"`
}

type AuthResponse struct {
	Token     string `json:"token"`
	FirstName string `json:"first_name"`
	Role      string `json:"role"`
}

// UpdateUserRequest patches the caller's profile. Changing the password
// requires current_password alongside the new one.
type UpdateUserRequest struct {
	LastName        *string `json:"last_name"`
	FirstName       *string `json:"first_name"`
	MiddleName      *string `json:"middle_name"`
	Gender          *bool   `json:"gender"`
	BirthDate       *int64  `json:"birth_date"`
	DocumentNumber  *string `json:"document_number"`
	Email           *string `json:"email" binding:"omitempty,email"`
	PhoneNumber     *string `json:"phone_number"`
	Password        *string `json:"password" binding:"omitempty,min=6"`
	CurrentPassword *string `json:"current_password"`
}

type ValidateDataRequest struct {
	Email       string `json:"email" binding:"omitempty,email"`
	PhoneNumber string `json:"phone_number"`
}

type PassengerResponse struct {
	ID             string  `json:"id"`
	Role           string  `json:"role"`
	LastName       string  `json:"last_name"`
	FirstName      string  `json:"first_name"`
	MiddleName     *string `json:"middle_name,omitempty"`
	Gender         *bool   `json:"gender,omitempty"`
	PhoneNumber    string  `json:"phone_number"`
	Email          *string `json:"email,omitempty"`
	BirthDate      *int64  `json:"birth_date,omitempty"`
	DocumentNumber *string `json:"document_number,omitempty"`
}

type UserInfoResponse struct {
	PassengerResponse
	TicketsAmount      int    `json:"tickets_amount"`
	FavouriteCity      string `json:"favourite_city,omitempty"`
	FavouriteCityCount int    `json:"favourite_city_count,omitempty"`
}

// --- converters ---

func toCityResponse(c domain.City) CityResponse {
	return CityResponse{ID: c.ID, Name: c.Name}
}

func toRouteResponse(r domain.RouteView) RouteResponse {
	return RouteResponse{
		ID:              r.ID,
		DepartureCity:   r.DepartureCity,
		DestinationCity: r.DestinationCity,
		Duration:        r.Duration,
	}
}

func toTripResponse(t domain.TripOption) TripResponse {
	return TripResponse{
		RecordID:        t.RecordID,
		Price:           t.Price,
		DepartureDate:   t.DepartureTS,
		Duration:        t.Duration,
		DepartureCity:   t.DepartureCity,
		DestinationCity: t.DestinationCity,
	}
}

func toTicketResponse(t domain.TicketView, withPassenger bool) TicketResponse {
	out := TicketResponse{
		ID:              t.ID.String(),
		SeatNo:          t.SeatNo,
		Price:           t.Price,
		Duration:        t.Duration,
		DepartureCity:   t.DepartureCity,
		DestinationCity: t.DestinationCity,
		DepartureDate:   t.DepartureTS,
		CreatedAt:       t.CreatedAt.UnixMilli(),
	}

	if withPassenger {
		out.PassengerID = t.PassengerID.String()
		out.FirstName = t.FirstName
		out.LastName = t.LastName
	}

	return out
}

func toPassengerResponse(p domain.Passenger) PassengerResponse {
	out := PassengerResponse{
		ID:             p.ID.String(),
		Role:           p.Role,
		LastName:       p.LastName,
		FirstName:      p.FirstName,
		MiddleName:     p.MiddleName,
		Gender:         p.Gender,
		PhoneNumber:    p.PhoneNumber,
		Email:          p.Email,
		DocumentNumber: p.DocumentNumber,
	}

	if p.BirthDate != nil {
		ms := p.BirthDate.UnixMilli()
		out.BirthDate = &ms
	}

	return out
}

func millisToTime(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}
