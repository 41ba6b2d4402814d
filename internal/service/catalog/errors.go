package catalog

import "errors"

var (
	ErrCityExists     = errors.New("city already exists")
	ErrCityNotFound   = errors.New("city not found")
	ErrRouteExists    = errors.New("route already exists")
	ErrRouteNotFound  = errors.New("route not found")
	ErrBusExists      = errors.New("bus already registered")
	ErrBusNotFound    = errors.New("bus not found")
	ErrRecordExists   = errors.New("route record already exists")
	ErrRecordNotFound = errors.New("route record not found")
	ErrInUse          = errors.New("entity is referenced and can not be deleted")
)
