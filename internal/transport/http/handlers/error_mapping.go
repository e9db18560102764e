package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
)

// ErrorCase pairs a usecase sentinel with the status and client-facing
// message the account API answers it with.
type ErrorCase struct {
	Err     error
	Status  int
	Message string
}

// RespondWithMappedError translates usecase sentinels at the transport
// boundary. An error no case claims is attached to the gin context, where the
// access logger picks it up, and answered with the fallback envelope so
// internal detail never reaches a client.
func RespondWithMappedError(c *gin.Context, err error, cases []ErrorCase, fallbackStatus int, fallbackMessage string) {
	if err == nil {
		c.Status(http.StatusOK)
		return
	}

	for _, cs := range cases {
		if cs.Err != nil && errors.Is(err, cs.Err) {
			c.JSON(cs.Status, NewErrorResponse(c, cs.Message))
			return
		}
	}

	_ = c.Error(err)
	c.JSON(fallbackStatus, NewErrorResponse(c, fallbackMessage))
}
