package search

import (
	"errors"
	"fmt"
)

var ErrRouteNotFound = errors.New("no route between these cities")

// CityNotFoundError names the city the catalog has no row for, so the
// transport layer can echo it back to the caller.
type CityNotFoundError struct {
	Name string
}

func (e *CityNotFoundError) Error() string {
	return fmt.Sprintf("city %q not found", e.Name)
}
