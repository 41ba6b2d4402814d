package domain

import (
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
)

const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

type City struct {
	ID   int64
	Name string
}

type Route struct {
	ID                int64
	DepartureCityID   int64
	DestinationCityID int64
	Duration          int // minutes
}

// RouteView is a route with city ids resolved to names.
type RouteView struct {
	ID              int64
	DepartureCity   string
	DestinationCity string
	Duration        int
}

type Bus struct {
	ID          int64
	Model       string
	RegNumber   string
	SeatsAmount int
}

// RouteRecord is one scheduled departure: a bus running a route at a
// specific time. Effective capacity is the bus's SeatsAmount.
type RouteRecord struct {
	ID          int64
	RouteID     int64
	BusID       int64
	Price       int
	DepartureTS int64 // unix millis
}

type Ticket struct {
	ID          uuid.UUID
	RecordID    int64
	PassengerID uuid.UUID
	SeatNo      int
	CreatedAt   time.Time
}

// TicketView is a ticket joined with its trip details. PassengerID,
// FirstName and LastName are filled only for admin listings.
type TicketView struct {
	ID              uuid.UUID
	SeatNo          int
	PassengerID     uuid.UUID
	FirstName       string
	LastName        string
	Price           int
	Duration        int
	DepartureCity   string
	DestinationCity string
	DepartureTS     int64
	CreatedAt       time.Time
}

type Passenger struct {
	ID             uuid.UUID
	Role           string
	LastName       string
	FirstName      string
	MiddleName     *string
	Gender         *bool
	PhoneNumber    string
	Email          *string
	BirthDate      *time.Time
	DocumentNumber *string
	PasswordHash   string
	CreatedAt      time.Time
}

// TripOption is a search result: a route record with at least one free seat.
type TripOption struct {
	RecordID        int64
	Price           int
	DepartureTS     int64
	Duration        int
	DepartureCity   string
	DestinationCity string
}

// PassengerStats are the computed profile counters.
type PassengerStats struct {
	TicketsAmount      int
	FavouriteCity      string
	FavouriteCityCount int
}

// CanonicalCityName normalizes a city name for lookup and storage:
// first rune uppercased, the remainder lowercased.
func CanonicalCityName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return ""
	}

	r := []rune(strings.ToLower(name))
	r[0] = unicode.ToUpper(r[0])

	return string(r)
}
