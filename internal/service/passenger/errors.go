package passenger

import "errors"

var (
	ErrPhoneTaken         = errors.New("phone number already registered")
	ErrEmailTaken         = errors.New("email already registered")
	ErrInvalidCredentials = errors.New("wrong phone number or password")
	ErrWrongPassword      = errors.New("current password does not match")
	ErrPassengerNotFound  = errors.New("passenger not found")
	ErrPhoneImmutable     = errors.New("phone number can not be changed")
	ErrHasTickets         = errors.New("passenger has tickets")
	ErrRateLimited        = errors.New("rate limited")
)
