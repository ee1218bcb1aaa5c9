package httpapi

import (
	"crypto/subtle"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jacentio/livewall"
)

// statusFor maps the livewall error taxonomy onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, livewall.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, livewall.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, livewall.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, livewall.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, livewall.ErrUpstreamUnavailable):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func (s *Server) writeError(c *gin.Context, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.log.Errorw("request failed", "path", c.FullPath(), "error", err)
		c.JSON(status, gin.H{"error": http.StatusText(status)})
		return
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

func secretMatches(presented, want string) bool {
	if want == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(presented), []byte(want)) == 1
}
