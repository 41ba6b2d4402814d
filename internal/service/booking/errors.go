package booking

import "errors"

var (
	ErrRecordNotFound    = errors.New("route record not found")
	ErrTicketNotFound    = errors.New("ticket not found")
	ErrPassengerNotFound = errors.New("passenger not found")
	ErrProfileIncomplete = errors.New("not enough passenger data to purchase")
	ErrNoSeatsLeft       = errors.New("all seats are taken")
	ErrSeatConflict      = errors.New("conflict allocating seat")
)
