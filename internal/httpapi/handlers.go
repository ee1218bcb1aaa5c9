package httpapi

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/jacentio/livewall"
	"github.com/jacentio/livewall/service"
)

// ownerKey reads the bearer key from the Owner-Key header or the k query
// parameter.
func ownerKey(c *gin.Context) string {
	if k := c.GetHeader(HeaderOwnerKey); k != "" {
		return k
	}
	return c.Query("k")
}

type createWallReq struct {
	Email          string `json:"email"`
	ValidationCode string `json:"validation_code"`
}

type createdWall struct {
	ID       string              `json:"id"`
	OwnerKey string              `json:"owner_key"`
	Status   livewall.WallStatus `json:"status"`
	Location string              `json:"location"`
}

func (s *Server) createWall(c *gin.Context) {
	var req createWallReq
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}

	var (
		wall *livewall.Wall
		err  error
	)
	if req.Email != "" {
		wall, err = s.svc.CreateOwnedWall(c.Request.Context(), req.Email, req.ValidationCode)
	} else {
		wall, err = s.svc.CreateWall(c.Request.Context())
	}
	if err != nil {
		s.writeError(c, err)
		return
	}

	location := fmt.Sprintf("/walls/%s?k=%s", wall.ID, wall.OwnerKey)
	c.Header("Location", location)
	c.JSON(http.StatusCreated, createdWall{
		ID:       wall.ID,
		OwnerKey: wall.OwnerKey,
		Status:   wall.Status,
		Location: location,
	})
}

// publicWall is what viewers without the owner key see.
type publicWall struct {
	ID       string              `json:"id"`
	Status   livewall.WallStatus `json:"status"`
	ImageIDs []string            `json:"image_ids"`
}

type openedWall struct {
	*livewall.Wall
	Images []*livewall.Image `json:"images"`
}

func (s *Server) getWall(c *gin.Context) {
	id := c.Param("id")
	if key := ownerKey(c); key != "" {
		wall, images, err := s.svc.OpenWall(c.Request.Context(), id, key)
		if err != nil {
			s.writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, openedWall{Wall: wall, Images: images})
		return
	}

	wall, err := s.svc.GetWall(c.Request.Context(), id)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, publicWall{ID: wall.ID, Status: wall.Status, ImageIDs: wall.ImageIDs})
}

type claimReq struct {
	Email string `json:"email" binding:"required"`
}

func (s *Server) claimWall(c *gin.Context) {
	var req claimReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	wall, err := s.svc.ClaimWall(c.Request.Context(), c.Param("id"), ownerKey(c), req.Email)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, wall)
}

func (s *Server) confirmOwnership(c *gin.Context) {
	wall, err := s.svc.ConfirmOwnership(c.Request.Context(), c.Param("id"), c.Param("token"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, wall)
}

type createdImage struct {
	ID       string `json:"id"`
	OwnerKey string `json:"owner_key"`
	Location string `json:"location"`
}

// readUpload returns the uploaded bytes and their content type. Both raw
// bodies and multipart forms with a "file" part are accepted.
func (s *Server) readUpload(c *gin.Context) ([]byte, string, error) {
	limit := s.opts.MaxImageBytes
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit+1<<20)

	if strings.HasPrefix(c.ContentType(), "multipart/") {
		fh, err := c.FormFile("file")
		if err != nil {
			return nil, "", fmt.Errorf("%w: %v", livewall.ErrInvalidInput, err)
		}
		if fh.Size > limit {
			return nil, "", fmt.Errorf("%w: image exceeds %d bytes", livewall.ErrInvalidInput, limit)
		}
		f, err := fh.Open()
		if err != nil {
			return nil, "", fmt.Errorf("%w: %v", livewall.ErrInvalidInput, err)
		}
		defer f.Close()
		data, err := io.ReadAll(f)
		if err != nil {
			return nil, "", fmt.Errorf("%w: %v", livewall.ErrInvalidInput, err)
		}
		return data, fh.Header.Get("Content-Type"), nil
	}

	data, err := io.ReadAll(io.LimitReader(c.Request.Body, limit+1))
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", livewall.ErrInvalidInput, err)
	}
	if int64(len(data)) > limit {
		return nil, "", fmt.Errorf("%w: image exceeds %d bytes", livewall.ErrInvalidInput, limit)
	}
	return data, c.ContentType(), nil
}

func (s *Server) addImage(c *gin.Context) {
	data, contentType, err := s.readUpload(c)
	if err != nil {
		s.writeError(c, err)
		return
	}
	img, err := s.svc.AddImage(c.Request.Context(), c.Param("id"), ownerKey(c), data, contentType)
	if err != nil {
		s.writeError(c, err)
		return
	}
	location := "/images/" + img.ID
	c.Header("Location", location)
	c.JSON(http.StatusCreated, createdImage{ID: img.ID, OwnerKey: img.OwnerKey, Location: location})
}

func (s *Server) listImages(c *gin.Context) {
	images, err := s.svc.ListImages(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"images": images})
}

func (s *Server) getImage(c *gin.Context) {
	id := c.Param("id")
	if s.opts.Linker != nil {
		if _, err := s.svc.LookupImage(c.Request.Context(), id); err != nil {
			s.writeError(c, err)
			return
		}
		url, err := s.opts.Linker.Link(c.Request.Context(), id)
		if err != nil {
			s.writeError(c, err)
			return
		}
		c.Redirect(http.StatusFound, url)
		return
	}

	img, data, err := s.svc.GetImage(c.Request.Context(), id)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.Header("Cache-Control", "public, max-age=86400, immutable")
	c.Data(http.StatusOK, img.ContentType, data)
}

func (s *Server) deleteImage(c *gin.Context) {
	if err := s.svc.DeleteImage(c.Request.Context(), c.Param("id"), ownerKey(c)); err != nil {
		s.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) userDashboard(c *gin.Context) {
	dash, err := s.svc.UserDashboard(c.Request.Context(), c.Param("id"), c.Param("token"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, dash)
}

func (s *Server) moderation(c *gin.Context) {
	view, err := s.svc.Moderation(c.Request.Context(), c.Param("id"), c.Param("key"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

type paymentReq struct {
	PaymentID string `json:"payment_id"`
	WallID    string `json:"wall_id" binding:"required"`
	OwnerKey  string `json:"owner_key" binding:"required"`
	Email     string `json:"email"`
	Paid      bool   `json:"paid"`
}

func (s *Server) paymentWebhook(c *gin.Context) {
	var req paymentReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	wall, err := s.svc.UpgradeWall(c.Request.Context(), service.PaymentConfirmation{
		WallID:     req.WallID,
		OwnerKey:   req.OwnerKey,
		PayerEmail: req.Email,
		Paid:       req.Paid,
		PaymentID:  req.PaymentID,
	})
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"wall_id": wall.ID, "status": wall.Status})
}

func (s *Server) listUsers(c *gin.Context) {
	users, err := s.svc.ListUsers(c.Request.Context())
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"users": users})
}

func (s *Server) listWalls(c *gin.Context) {
	walls, err := s.svc.ListWalls(c.Request.Context())
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"walls": walls})
}

func (s *Server) reset(c *gin.Context) {
	sum, err := s.svc.Reset(c.Request.Context())
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, sum)
}
