package httpgin

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	redisrepo "github.com/ilyakh/busline/internal/repository/redis"
	"github.com/ilyakh/busline/internal/service"
	"github.com/ilyakh/busline/internal/service/booking"
	"github.com/ilyakh/busline/internal/service/catalog"
	"github.com/ilyakh/busline/internal/service/passenger"
	"github.com/ilyakh/busline/internal/service/search"
	"github.com/ilyakh/busline/internal/token"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

func NewRouter(
	svcs *service.Services,
	tokens *token.Manager,
	idem *redisrepo.IdempotencyStore,
	logger *slog.Logger,
	middlewares ...gin.HandlerFunc,
) *gin.Engine {
	r := gin.New()

	r.Use(gin.Recovery(), LoggingMiddleware(logger), RequestIDMiddleware(), CORS())
	for _, m := range middlewares {
		if m != nil {
			r.Use(m)
		}
	}

	// Swagger UI
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// health
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	authed := AuthRequired(tokens)
	adminOnly := RequireAdmin(func(c *gin.Context, id uuid.UUID) (string, error) {
		return svcs.Passenger.RoleOf(c.Request.Context(), id)
	})

	routes := r.Group("/routes")
	{
		routes.GET("/getRouteRecords", handleGetRouteRecords(svcs))
		routes.GET("/getCities", authed, handleGetCities(svcs))
		routes.GET("/getRoutes", authed, handleGetRoutes(svcs))

		routes.POST("/addCity", authed, adminOnly, handleAddCity(svcs))
		routes.POST("/addRoute", authed, adminOnly, handleAddRoute(svcs))
		routes.POST("/addBus", authed, adminOnly, handleAddBus(svcs))
		routes.POST("/addRouteRecord", authed, adminOnly, handleAddRouteRecord(svcs))
		routes.DELETE("/delete", authed, adminOnly, handleDeleteEntity(svcs))
		routes.PUT("/update", authed, adminOnly, handleUpdateEntity(svcs))
	}

	tickets := r.Group("/tickets")
	{
		tickets.POST("/addTicket", authed, handleAddTicket(svcs, idem))
		tickets.GET("/getUserTickets", authed, handleGetUserTickets(svcs))
		tickets.GET("/getTickets", authed, adminOnly, handleGetTickets(svcs))
		tickets.DELETE("/deleteTicket", authed, adminOnly, handleDeleteTicket(svcs))
	}

	user := r.Group("/user")
	{
		user.POST("/signup", handleSignup(svcs))
		user.POST("/login", handleLogin(svcs))
		user.POST("/validateData", handleValidateData(svcs))

		user.GET("/auth", authed, handleAuth(svcs))
		user.PUT("/update", authed, handleUpdateUser(svcs))
		user.GET("/info", authed, handleUserInfo(svcs))

		user.GET("/getUsers", authed, adminOnly, handleGetUsers(svcs))
		user.DELETE("/deleteUser", authed, adminOnly, handleDeleteUser(svcs))
	}

	return r
}

// --- Helpers ---

func parseInt64Query(c *gin.Context, name string) (int64, bool, error) {
	s := strings.TrimSpace(c.Query(name))
	if s == "" {
		return 0, false, nil
	}

	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, false, err
	}

	return v, true, nil
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, ErrorResponse{Message: msg})
}

func respondErr(c *gin.Context, err error) {
	if err == nil {
		c.Status(http.StatusNoContent)
		return
	}

	var cityNotFound *search.CityNotFoundError

	switch {
	// search service
	case errors.As(err, &cityNotFound):
		badRequest(c, cityNotFound.Error())
		return
	case errors.Is(err, search.ErrRouteNotFound):
		badRequest(c, "no route between these cities")
		return

	// booking service
	case errors.Is(err, booking.ErrRecordNotFound):
		badRequest(c, "route record not found")
		return
	case errors.Is(err, booking.ErrTicketNotFound):
		badRequest(c, "ticket not found")
		return
	case errors.Is(err, booking.ErrProfileIncomplete):
		badRequest(c, "not enough passenger data, fill in the profile")
		return
	case errors.Is(err, booking.ErrNoSeatsLeft):
		badRequest(c, "all seats are taken")
		return
	case errors.Is(err, booking.ErrSeatConflict):
		c.Header("Retry-After", "1")
		c.JSON(http.StatusConflict, ErrorResponse{Message: "seat allocation conflict, retry"})
		return
	case errors.Is(err, booking.ErrPassengerNotFound):
		c.JSON(http.StatusUnauthorized, ErrorResponse{Message: "unknown caller"})
		return

	// catalog service
	case errors.Is(err, catalog.ErrCityExists):
		badRequest(c, "city already exists")
		return
	case errors.Is(err, catalog.ErrCityNotFound):
		badRequest(c, "city not found")
		return
	case errors.Is(err, catalog.ErrRouteExists):
		badRequest(c, "route already exists")
		return
	case errors.Is(err, catalog.ErrRouteNotFound):
		badRequest(c, "route not found")
		return
	case errors.Is(err, catalog.ErrBusExists):
		badRequest(c, "bus already registered")
		return
	case errors.Is(err, catalog.ErrBusNotFound):
		badRequest(c, "bus not found")
		return
	case errors.Is(err, catalog.ErrRecordExists):
		badRequest(c, "route record already exists")
		return
	case errors.Is(err, catalog.ErrRecordNotFound):
		badRequest(c, "route record not found")
		return
	case errors.Is(err, catalog.ErrInUse):
		badRequest(c, "entity is referenced and can not be deleted")
		return

	// passenger service
	case errors.Is(err, passenger.ErrPhoneTaken):
		badRequest(c, "user with this phone number already exists")
		return
	case errors.Is(err, passenger.ErrEmailTaken):
		badRequest(c, "user with this email already exists")
		return
	case errors.Is(err, passenger.ErrInvalidCredentials):
		badRequest(c, "wrong phone number or password")
		return
	case errors.Is(err, passenger.ErrPhoneImmutable):
		badRequest(c, "phone number can not be changed")
		return
	case errors.Is(err, passenger.ErrWrongPassword):
		badRequest(c, "current password is wrong")
		return
	case errors.Is(err, passenger.ErrHasTickets):
		badRequest(c, "passenger has tickets and can not be deleted")
		return
	case errors.Is(err, passenger.ErrPassengerNotFound):
		badRequest(c, "passenger not found")
		return
	case errors.Is(err, passenger.ErrRateLimited):
		c.Header("Retry-After", "60")
		c.JSON(http.StatusTooManyRequests, ErrorResponse{Message: "too many requests"})
		return
	}

	// unexpected: log the detail, return a generic message
	_ = c.Error(err)
	c.JSON(http.StatusInternalServerError, ErrorResponse{Message: "internal server error"})
}
