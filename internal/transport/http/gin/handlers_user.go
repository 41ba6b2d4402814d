package httpgin

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/ilyakh/busline/internal/service"
	"github.com/ilyakh/busline/internal/service/passenger"
)

// @Summary  Sign up
// @Param    req  body  SignupRequest  true  "payload"
// @Success  201  {object}  TokenResponse
// @Failure  400  {object}  ErrorResponse
// @Failure  429  {object}  ErrorResponse  "rate limited"
// @Router   /user/signup [post]
func handleSignup(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req SignupRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}

		tok, err := svcs.Passenger.Signup(c.Request.Context(), passenger.SignupInput{
			LastName:  req.LastName,
			FirstName: req.FirstName,
			Phone:     req.PhoneNumber,
			Password:  req.Password,
		}, "ip:"+c.ClientIP())
		if err != nil {
			respondErr(c, err)
			return
		}

		c.JSON(http.StatusCreated, TokenResponse{Token: tok})
	}
}

// @Summary  Log in
// @Param    req  body  LoginRequest  true  "payload"
// @Success  200  {object}  LoginResponse
// @Failure  400  {object}  ErrorResponse
// @Failure  429  {object}  ErrorResponse  "rate limited"
// @Router   /user/login [post]
func handleLogin(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req LoginRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}

		tok, role, err := svcs.Passenger.Login(
			c.Request.Context(),
			req.PhoneNumber,
			req.Password,
			"ip:"+c.ClientIP(),
		)
		if err != nil {
			respondErr(c, err)
			return
		}

		c.JSON(http.StatusOK, LoginResponse{Token: tok, Role: role})
	}
}

// @Summary  Refresh token
// @Success  200  {object}  AuthResponse
// @Failure  401  {object}  ErrorResponse
// @Security BearerAuth
// @Router   /user/auth [get]
func handleAuth(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		caller, ok := callerID(c)
		if !ok {
			unauthorized(c, "missing authorization")
			return
		}

		tok, firstName, role, err := svcs.Passenger.Refresh(c.Request.Context(), caller)
		if err != nil {
			respondErr(c, err)
			return
		}

		c.JSON(http.StatusOK, AuthResponse{Token: tok, FirstName: firstName, Role: role})
	}
}

// @Summary  Update profile
// @Param    req  body  UpdateUserRequest  true  "payload"
// @Success  200  {object}  map[string]string
// @Failure  400  {object}  ErrorResponse
// @Security BearerAuth
// @Router   /user/update [put]
func handleUpdateUser(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		caller, ok := callerID(c)
		if !ok {
			unauthorized(c, "missing authorization")
			return
		}

		var req UpdateUserRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}

		var birthDate *time.Time
		if req.BirthDate != nil {
			bd := millisToTime(*req.BirthDate)
			birthDate = &bd
		}

		err := svcs.Passenger.UpdateProfile(c.Request.Context(), caller, passenger.ProfileUpdate{
			LastName:        req.LastName,
			FirstName:       req.FirstName,
			MiddleName:      req.MiddleName,
			Gender:          req.Gender,
			BirthDate:       birthDate,
			DocumentNumber:  req.DocumentNumber,
			Email:           req.Email,
			Phone:           req.PhoneNumber,
			Password:        req.Password,
			CurrentPassword: req.CurrentPassword,
		})
		if err != nil {
			respondErr(c, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{"status": "updated"})
	}
}

// @Summary  Profile with travel stats
// @Success  200  {object}  UserInfoResponse
// @Failure  401  {object}  ErrorResponse
// @Security BearerAuth
// @Router   /user/info [get]
func handleUserInfo(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		caller, ok := callerID(c)
		if !ok {
			unauthorized(c, "missing authorization")
			return
		}

		p, stats, err := svcs.Passenger.Info(c.Request.Context(), caller)
		if err != nil {
			respondErr(c, err)
			return
		}

		c.JSON(http.StatusOK, UserInfoResponse{
			PassengerResponse:  toPassengerResponse(*p),
			TicketsAmount:      stats.TicketsAmount,
			FavouriteCity:      stats.FavouriteCity,
			FavouriteCityCount: stats.FavouriteCityCount,
		})
	}
}

// @Summary  Uniqueness pre-check for email/phone
// @Param    req  body  ValidateDataRequest  true  "payload"
// @Success  200  {object}  map[string]string
// @Failure  400  {object}  ErrorResponse
// @Router   /user/validateData [post]
func handleValidateData(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req ValidateDataRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}

		if req.Email == "" && req.PhoneNumber == "" {
			badRequest(c, "email or phone_number is required")
			return
		}

		if err := svcs.Passenger.ValidateData(
			c.Request.Context(),
			req.PhoneNumber,
			req.Email,
		); err != nil {
			respondErr(c, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
}

// @Summary  List passengers
// @Success  200  {array}  PassengerResponse
// @Security BearerAuth
// @Router   /user/getUsers [get]
func handleGetUsers(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		list, err := svcs.Passenger.List(c.Request.Context())
		if err != nil {
			respondErr(c, err)
			return
		}

		out := make([]PassengerResponse, 0, len(list))
		for _, p := range list {
			out = append(out, toPassengerResponse(p))
		}

		c.JSON(http.StatusOK, out)
	}
}

// @Summary  Delete passenger
// @Param    user_id  query  string  true  "passenger id (uuid)"
// @Success  200  {object}  map[string]string
// @Failure  400  {object}  ErrorResponse
// @Security BearerAuth
// @Router   /user/deleteUser [delete]
func handleDeleteUser(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := uuid.Parse(strings.TrimSpace(c.Query("user_id")))
		if err != nil {
			badRequest(c, "invalid user_id")
			return
		}

		if err := svcs.Passenger.Delete(c.Request.Context(), id); err != nil {
			respondErr(c, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{"status": "deleted"})
	}
}
