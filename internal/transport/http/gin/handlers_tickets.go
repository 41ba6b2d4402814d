package httpgin

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	redisrepo "github.com/ilyakh/busline/internal/repository/redis"
	"github.com/ilyakh/busline/internal/service"
)

// @Summary  Purchase ticket (idempotent)
// @Param    req  body  AddTicketRequest  true  "payload"
// @Header   201  {string}  Idempotency-Key  "echo"
// @Success  201  {object}  AddTicketResponse
// @Failure  400  {object}  ErrorResponse
// @Failure  409  {object}  ErrorResponse  "allocation conflict / idem in progress"
// @Security BearerAuth
// @Router   /tickets/addTicket [post]
func handleAddTicket(
	svcs *service.Services,
	idem *redisrepo.IdempotencyStore,
) gin.HandlerFunc {
	return func(c *gin.Context) {
		caller, ok := callerID(c)
		if !ok {
			unauthorized(c, "missing authorization")
			return
		}

		var req AddTicketRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}

		idemKey := strings.TrimSpace(c.GetHeader("Idempotency-Key"))
		var idemStorageKey string
		if idem != nil && idemKey != "" {
			idemStorageKey = redisrepo.KeyIdemTicket(req.RecordID, idemKey)

			if payload, ok, _ := idem.GetResult(
				c.Request.Context(),
				idemStorageKey,
			); ok {
				c.Header("Idempotency-Key", idemKey)
				c.Data(
					http.StatusCreated,
					"application/json; charset=utf-8",
					[]byte(payload),
				)
				return
			}

			locked, err := idem.AcquireLock(
				c.Request.Context(),
				idemStorageKey,
				60*time.Second,
			)
			if err != nil {
				respondErr(c, err)
				return
			}
			if !locked {
				if payload, ok, _ := idem.GetResult(
					c.Request.Context(),
					idemStorageKey,
				); ok {
					c.Header("Idempotency-Key", idemKey)
					c.Data(
						http.StatusCreated,
						"application/json; charset=utf-8",
						[]byte(payload),
					)
					return
				}
				c.Header("Retry-After", "1")
				c.JSON(
					http.StatusConflict,
					ErrorResponse{Message: "idempotency key in progress"},
				)
				return
			}
		}

		t, err := svcs.Booking.Purchase(c.Request.Context(), req.RecordID, caller)
		if err != nil {
			if idemStorageKey != "" && idem != nil {
				_ = idem.Release(c.Request.Context(), idemStorageKey)
			}
			respondErr(c, err)
			return
		}

		resp := AddTicketResponse{TicketID: t.ID.String(), SeatNo: t.SeatNo}

		if idemStorageKey != "" && idem != nil {
			b, _ := json.Marshal(resp)
			_ = idem.SaveResult(c.Request.Context(), idemStorageKey, string(b))
			c.Header("Idempotency-Key", idemKey)
		}

		c.JSON(http.StatusCreated, resp)
	}
}

// @Summary  Caller's tickets
// @Success  200  {array}  TicketResponse
// @Security BearerAuth
// @Router   /tickets/getUserTickets [get]
func handleGetUserTickets(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		caller, ok := callerID(c)
		if !ok {
			unauthorized(c, "missing authorization")
			return
		}

		views, err := svcs.Booking.UserTickets(c.Request.Context(), caller)
		if err != nil {
			respondErr(c, err)
			return
		}

		out := make([]TicketResponse, 0, len(views))
		for _, v := range views {
			out = append(out, toTicketResponse(v, false))
		}

		c.JSON(http.StatusOK, out)
	}
}

// @Summary  All tickets in a window
// @Param    from          query  int     true   "window start, unix millis"
// @Param    to            query  int     true   "window end, unix millis"
// @Param    passenger_id  query  string  false  "passenger id (uuid)"
// @Success  200  {array}   TicketResponse
// @Failure  400  {object}  ErrorResponse
// @Security BearerAuth
// @Router   /tickets/getTickets [get]
func handleGetTickets(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		fromMS, hasFrom, err := parseInt64Query(c, "from")
		if err != nil {
			badRequest(c, "invalid from")
			return
		}
		toMS, hasTo, err := parseInt64Query(c, "to")
		if err != nil {
			badRequest(c, "invalid to")
			return
		}
		if !hasFrom || !hasTo {
			badRequest(c, "both from and to are required")
			return
		}

		var passengerID *uuid.UUID
		if s := strings.TrimSpace(c.Query("passenger_id")); s != "" {
			id, err := uuid.Parse(s)
			if err != nil {
				badRequest(c, "invalid passenger_id")
				return
			}
			passengerID = &id
		}

		views, err := svcs.Booking.TicketsWindow(
			c.Request.Context(),
			millisToTime(fromMS),
			millisToTime(toMS),
			passengerID,
		)
		if err != nil {
			respondErr(c, err)
			return
		}

		out := make([]TicketResponse, 0, len(views))
		for _, v := range views {
			out = append(out, toTicketResponse(v, true))
		}

		c.JSON(http.StatusOK, out)
	}
}

// @Summary  Delete ticket
// @Param    ticket_id  query  string  true  "ticket id (uuid)"
// @Success  200  {object}  map[string]string
// @Failure  400  {object}  ErrorResponse
// @Security BearerAuth
// @Router   /tickets/deleteTicket [delete]
func handleDeleteTicket(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := uuid.Parse(strings.TrimSpace(c.Query("ticket_id")))
		if err != nil {
			badRequest(c, "invalid ticket_id")
			return
		}

		if err := svcs.Booking.DeleteTicket(c.Request.Context(), id); err != nil {
			respondErr(c, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{"status": "deleted"})
	}
}
