package handler

import (
	"net/http"

	"github.com/s1d40/empathy-hub-backend/internal/services"
	"github.com/s1d40/empathy-hub-backend/internal/transport/httpdto"
	hub_errors "github.com/s1d40/empathy-hub-backend/pkg/errors"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// fail writes the error response for err. Server-side failures are attached
// to the context for ErrorHandler to log and are shown without detail.
func fail(c *gin.Context, err error) {
	status := hub_errors.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		_ = c.Error(err)
		c.JSON(status, httpdto.NewErrorResponse("internal error", hub_errors.Code(err)))
		return
	}
	c.JSON(status, httpdto.NewErrorResponse(err.Error(), hub_errors.Code(err)))
}

func badRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse(message, "INVALID_REQUEST"))
}

func currentUser(c *gin.Context) (uuid.UUID, bool) {
	userID, ok := services.UserIDFromContext(c.Request.Context())
	if !ok {
		c.JSON(http.StatusUnauthorized, httpdto.NewErrorResponse("unauthorized", "UNAUTHORIZED"))
	}
	return userID, ok
}

func pathID(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		badRequest(c, "invalid "+name)
		return uuid.Nil, false
	}
	return id, true
}
