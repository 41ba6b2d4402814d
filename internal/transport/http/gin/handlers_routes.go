package httpgin

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/ilyakh/busline/internal/service"
)

// @Summary  Search available departures
// @Param    departure_city    query  string  false  "departure city name"
// @Param    destination_city  query  string  false  "destination city name"
// @Param    departure_date    query  int     false  "day start, unix millis"
// @Success  200  {array}   TripResponse
// @Failure  400  {object}  ErrorResponse
// @Router   /routes/getRouteRecords [get]
func handleGetRouteRecords(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		var dateMS *int64
		if v, ok, err := parseInt64Query(c, "departure_date"); err != nil {
			badRequest(c, "incorrect date")
			return
		} else if ok {
			dateMS = &v
		}

		trips, err := svcs.Search.Trips(
			c.Request.Context(),
			c.Query("departure_city"),
			c.Query("destination_city"),
			dateMS,
		)
		if err != nil {
			respondErr(c, err)
			return
		}

		out := make([]TripResponse, 0, len(trips))
		for _, t := range trips {
			out = append(out, toTripResponse(t))
		}

		// ETag + Cache-Control 15s
		writeJSONWithCache(c, http.StatusOK, out, "public, max-age=15", true)
	}
}

// @Summary  List cities
// @Param    name  query  string  false  "name prefix"
// @Success  200  {array}  CityResponse
// @Security BearerAuth
// @Router   /routes/getCities [get]
func handleGetCities(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		cities, err := svcs.Search.Cities(c.Request.Context(), c.Query("name"))
		if err != nil {
			respondErr(c, err)
			return
		}

		out := make([]CityResponse, 0, len(cities))
		for _, city := range cities {
			out = append(out, toCityResponse(city))
		}

		// ETag + Cache-Control 60s
		writeJSONWithCache(c, http.StatusOK, out, "public, max-age=60", true)
	}
}

// @Summary  List routes
// @Param    departure_city    query  string  false  "departure city name"
// @Param    destination_city  query  string  false  "destination city name"
// @Success  200  {array}  RouteResponse
// @Security BearerAuth
// @Router   /routes/getRoutes [get]
func handleGetRoutes(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		routes, err := svcs.Search.Routes(
			c.Request.Context(),
			c.Query("departure_city"),
			c.Query("destination_city"),
		)
		if err != nil {
			respondErr(c, err)
			return
		}

		out := make([]RouteResponse, 0, len(routes))
		for _, rt := range routes {
			out = append(out, toRouteResponse(rt))
		}

		writeJSONWithCache(c, http.StatusOK, out, "public, max-age=60", true)
	}
}

// @Summary  Register city
// @Param    req  body  AddCityRequest  true  "payload"
// @Success  201  {object}  AddCityResponse
// @Failure  400  {object}  ErrorResponse
// @Security BearerAuth
// @Router   /routes/addCity [post]
func handleAddCity(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req AddCityRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}

		id, err := svcs.Catalog.AddCity(c.Request.Context(), req.Name)
		if err != nil {
			respondErr(c, err)
			return
		}

		c.JSON(http.StatusCreated, AddCityResponse{CityID: id})
	}
}

// @Summary  Create route
// @Param    req  body  AddRouteRequest  true  "payload"
// @Success  201  {object}  AddRouteResponse
// @Failure  400  {object}  ErrorResponse
// @Security BearerAuth
// @Router   /routes/addRoute [post]
func handleAddRoute(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req AddRouteRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}

		id, err := svcs.Catalog.AddRoute(
			c.Request.Context(),
			req.DepartureCity,
			req.DestinationCity,
			req.Duration,
		)
		if err != nil {
			respondErr(c, err)
			return
		}

		c.JSON(http.StatusCreated, AddRouteResponse{RouteID: id})
	}
}

// @Summary  Register bus
// @Param    req  body  AddBusRequest  true  "payload"
// @Success  201  {object}  AddBusResponse
// @Failure  400  {object}  ErrorResponse
// @Security BearerAuth
// @Router   /routes/addBus [post]
func handleAddBus(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req AddBusRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}

		id, err := svcs.Catalog.AddBus(
			c.Request.Context(),
			req.Model,
			req.RegNumber,
			req.SeatsAmount,
		)
		if err != nil {
			respondErr(c, err)
			return
		}

		c.JSON(http.StatusCreated, AddBusResponse{BusID: id})
	}
}

// @Summary  Schedule departure
// @Param    req  body  AddRecordRequest  true  "payload"
// @Success  201  {object}  AddRecordResponse
// @Failure  400  {object}  ErrorResponse
// @Security BearerAuth
// @Router   /routes/addRouteRecord [post]
func handleAddRouteRecord(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req AddRecordRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}

		id, err := svcs.Catalog.AddRecord(
			c.Request.Context(),
			req.DepartureCity,
			req.DestinationCity,
			req.BusRegNumber,
			req.Price,
			req.DepartureDate,
		)
		if err != nil {
			respondErr(c, err)
			return
		}

		c.JSON(http.StatusCreated, AddRecordResponse{RecordID: id})
	}
}

// @Summary  Delete city, route or record
// @Param    city_id    query  int  false  "city id"
// @Param    route_id   query  int  false  "route id"
// @Param    record_id  query  int  false  "record id"
// @Success  200  {object}  map[string]string
// @Failure  400  {object}  ErrorResponse
// @Security BearerAuth
// @Router   /routes/delete [delete]
func handleDeleteEntity(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		cityID, hasCity, err := parseInt64Query(c, "city_id")
		if err != nil {
			badRequest(c, "invalid city_id")
			return
		}
		routeID, hasRoute, err := parseInt64Query(c, "route_id")
		if err != nil {
			badRequest(c, "invalid route_id")
			return
		}
		recordID, hasRecord, err := parseInt64Query(c, "record_id")
		if err != nil {
			badRequest(c, "invalid record_id")
			return
		}

		given := 0
		for _, ok := range []bool{hasCity, hasRoute, hasRecord} {
			if ok {
				given++
			}
		}
		if given != 1 {
			badRequest(c, "exactly one of city_id, route_id, record_id is required")
			return
		}

		switch {
		case hasCity:
			err = svcs.Catalog.DeleteCity(c.Request.Context(), cityID)
		case hasRoute:
			err = svcs.Catalog.DeleteRoute(c.Request.Context(), routeID)
		default:
			err = svcs.Catalog.DeleteRecord(c.Request.Context(), recordID)
		}
		if err != nil {
			respondErr(c, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{"status": "deleted"})
	}
}

// @Summary  Update city, route or record
// @Param    req  body  UpdateEntityRequest  true  "payload"
// @Success  200  {object}  map[string]string
// @Failure  400  {object}  ErrorResponse
// @Security BearerAuth
// @Router   /routes/update [put]
func handleUpdateEntity(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req UpdateEntityRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}

		given := 0
		for _, p := range []*int64{req.CityID, req.RouteID, req.RecordID} {
			if p != nil {
				given++
			}
		}
		if given != 1 {
			badRequest(c, "exactly one of city_id, route_id, record_id is required")
			return
		}

		var err error
		switch {
		case req.CityID != nil:
			if req.Name == nil || *req.Name == "" {
				badRequest(c, "name is required for a city update")
				return
			}
			err = svcs.Catalog.RenameCity(c.Request.Context(), *req.CityID, *req.Name)
		case req.RouteID != nil:
			if req.Duration == nil || *req.Duration <= 0 {
				badRequest(c, "positive duration is required for a route update")
				return
			}
			err = svcs.Catalog.SetRouteDuration(c.Request.Context(), *req.RouteID, *req.Duration)
		default:
			if req.Price == nil && req.DepartureDate == nil {
				badRequest(c, "price or departure_date is required for a record update")
				return
			}
			if req.Price != nil && *req.Price <= 0 {
				badRequest(c, "price must be positive")
				return
			}
			err = svcs.Catalog.UpdateRecord(c.Request.Context(), *req.RecordID, req.Price, req.DepartureDate)
		}
		if err != nil {
			respondErr(c, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{"status": "updated"})
	}
}
