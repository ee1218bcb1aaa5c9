package httpapi

import (
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/jacentio/livewall"
)

// eventPayload is the SSE data of one wall event. id is the image id for add
// and delete events and the wall id for updates.
type eventPayload struct {
	Type livewall.EventType `json:"type"`
	ID   string             `json:"id"`
	URL  string             `json:"url"`
}

func payloadFor(e livewall.Event) eventPayload {
	ts := e.Timestamp.UnixNano() / int64(time.Millisecond)
	if e.Image != nil {
		return eventPayload{
			Type: e.Type,
			ID:   e.Image.ID,
			URL:  fmt.Sprintf("/images/%s?t=%d", e.Image.ID, ts),
		}
	}
	return eventPayload{
		Type: e.Type,
		ID:   e.WallID,
		URL:  fmt.Sprintf("/walls/%s?t=%d", e.WallID, ts),
	}
}

// events streams a wall's events as server-sent events until the client
// goes away.
func (s *Server) events(c *gin.Context) {
	wallID := c.Query("w")
	if wallID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing wall id"})
		return
	}
	ctx := c.Request.Context()
	ch, err := s.svc.Subscribe(ctx, wallID)
	if err != nil {
		s.writeError(c, err)
		return
	}

	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	c.SSEvent("ready", wallID)
	c.Writer.Flush()

	ticker := time.NewTicker(s.opts.Keepalive)
	defer ticker.Stop()

	c.Stream(func(w io.Writer) bool {
		select {
		case e, ok := <-ch:
			if !ok {
				return false
			}
			c.SSEvent("message", payloadFor(e))
			return true
		case <-ticker.C:
			c.SSEvent("ping", time.Now().UTC().Format(time.RFC3339))
			return true
		case <-ctx.Done():
			return false
		}
	})
}
