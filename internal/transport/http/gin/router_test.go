package httpgin

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/ilyakh/busline/internal/service"
	"github.com/ilyakh/busline/internal/service/booking"
	"github.com/ilyakh/busline/internal/service/catalog"
	"github.com/ilyakh/busline/internal/service/passenger"
	"github.com/ilyakh/busline/internal/service/search"
	"github.com/ilyakh/busline/internal/token"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	m.Run()
}

func TestAuthRequired(t *testing.T) {
	mgr := token.NewManager("test-secret", time.Hour)
	callerUUID := uuid.New()

	r := gin.New()
	r.GET("/protected", AuthRequired(mgr), func(c *gin.Context) {
		id, ok := callerID(c)
		require.True(t, ok)
		c.JSON(http.StatusOK, gin.H{"id": id.String()})
	})

	t.Run("missing header", func(t *testing.T) {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/protected", nil)
		r.ServeHTTP(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("wrong scheme", func(t *testing.T) {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/protected", nil)
		req.Header.Set("Authorization", "Token abc")
		r.ServeHTTP(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("garbage token", func(t *testing.T) {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/protected", nil)
		req.Header.Set("Authorization", "Bearer not.a.token")
		r.ServeHTTP(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("expired token", func(t *testing.T) {
		expired, err := token.NewManager("test-secret", -time.Minute).Issue(callerUUID)
		require.NoError(t, err)

		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/protected", nil)
		req.Header.Set("Authorization", "Bearer "+expired)
		r.ServeHTTP(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("valid token", func(t *testing.T) {
		signed, err := mgr.Issue(callerUUID)
		require.NoError(t, err)

		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/protected", nil)
		req.Header.Set("Authorization", "Bearer "+signed)
		r.ServeHTTP(w, req)

		require.Equal(t, http.StatusOK, w.Code)

		var body map[string]string
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		assert.Equal(t, callerUUID.String(), body["id"])
	})
}

func TestRequireAdmin(t *testing.T) {
	mgr := token.NewManager("test-secret", time.Hour)
	adminID := uuid.New()
	userID := uuid.New()

	roleOf := func(_ *gin.Context, id uuid.UUID) (string, error) {
		switch id {
		case adminID:
			return "admin", nil
		case userID:
			return "user", nil
		}
		return "", errors.New("not found")
	}

	r := gin.New()
	r.GET("/admin", AuthRequired(mgr), RequireAdmin(roleOf), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	do := func(t *testing.T, id uuid.UUID) *httptest.ResponseRecorder {
		t.Helper()

		signed, err := mgr.Issue(id)
		require.NoError(t, err)

		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/admin", nil)
		req.Header.Set("Authorization", "Bearer "+signed)
		r.ServeHTTP(w, req)

		return w
	}

	assert.Equal(t, http.StatusOK, do(t, adminID).Code)
	assert.Equal(t, http.StatusForbidden, do(t, userID).Code)
	assert.Equal(t, http.StatusUnauthorized, do(t, uuid.New()).Code)
}

func TestGetRouteRecordsRejectsMalformedDate(t *testing.T) {
	r := gin.New()
	r.GET("/routes/getRouteRecords", handleGetRouteRecords(&service.Services{}))

	for _, date := range []string{"tomorrow", "2026-09-01", "1.5"} {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/routes/getRouteRecords?departure_date="+date, nil)
		r.ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code, "departure_date=%s", date)

		var body ErrorResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		assert.Equal(t, "incorrect date", body.Message)
	}
}

func TestRespondErrStatusMapping(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
	}{
		{"city not found", &search.CityNotFoundError{Name: "Gotham"}, http.StatusBadRequest},
		{"route not found", search.ErrRouteNotFound, http.StatusBadRequest},
		{"record not found", booking.ErrRecordNotFound, http.StatusBadRequest},
		{"profile incomplete", booking.ErrProfileIncomplete, http.StatusBadRequest},
		{"no seats left", booking.ErrNoSeatsLeft, http.StatusBadRequest},
		{"seat conflict", booking.ErrSeatConflict, http.StatusConflict},
		{"caller gone", booking.ErrPassengerNotFound, http.StatusUnauthorized},
		{"city exists", catalog.ErrCityExists, http.StatusBadRequest},
		{"entity in use", catalog.ErrInUse, http.StatusBadRequest},
		{"phone taken", passenger.ErrPhoneTaken, http.StatusBadRequest},
		{"bad credentials", passenger.ErrInvalidCredentials, http.StatusBadRequest},
		{"wrong current password", passenger.ErrWrongPassword, http.StatusBadRequest},
		{"rate limited", passenger.ErrRateLimited, http.StatusTooManyRequests},
		{"internal", errors.New("pg down"), http.StatusInternalServerError},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)

			respondErr(c, tc.err)

			assert.Equal(t, tc.status, w.Code)

			var body ErrorResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			assert.NotEmpty(t, body.Message)
		})
	}
}

func TestRespondErrHidesInternalDetail(t *testing.T) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	respondErr(c, errors.New("dial tcp 10.0.0.5:5432: connection refused"))

	assert.Equal(t, http.StatusInternalServerError, w.Code)

	var body ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "internal server error", body.Message)
	assert.NotContains(t, w.Body.String(), "10.0.0.5")
}

func TestWrappedErrorsStillMap(t *testing.T) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	wrapped := errors.Join(errors.New("service.booking.Purchase"), booking.ErrNoSeatsLeft)
	respondErr(c, wrapped)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}
