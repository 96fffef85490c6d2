package handler

import (
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/udalga/alkiscord/internal/domain"
	"github.com/udalga/alkiscord/internal/registry"
	"github.com/udalga/alkiscord/internal/upload"
	pkglog "github.com/udalga/alkiscord/pkg/log"
	"github.com/udalga/alkiscord/pkg/response"
)

// HTTPHandler serves the request/response side of the service: room
// creation and lookup, and file uploads. Joining and everything that
// follows happens over the websocket.
type HTTPHandler struct {
	registry *registry.Registry
	uploads  *upload.Store
}

// NewHTTPHandler creates a new HTTP handler.
func NewHTTPHandler(reg *registry.Registry, uploads *upload.Store) *HTTPHandler {
	return &HTTPHandler{
		registry: reg,
		uploads:  uploads,
	}
}

// RegisterRoutes registers all routes.
func (h *HTTPHandler) RegisterRoutes(r *gin.Engine) {
	api := r.Group("/api")
	{
		api.POST("/rooms", h.CreateRoom)
		api.GET("/rooms/:id", h.GetRoom)
		api.POST("/upload", h.Upload)
	}
}

// CreateRoom creates a new room and returns its id.
func (h *HTTPHandler) CreateRoom(c *gin.Context) {
	ctx := c.Request.Context()
	l := pkglog.Ctx(ctx)

	var req domain.CreateRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		l.Warn().Err(err).Msg("failed to bind create room request")
		response.BadRequest(c, err.Error())
		return
	}

	roomID, err := h.registry.CreateRoom(req.Name, req.IsPrivate, req.MaxUsers, req.CreatorNickname, req.CreatorAvatar)
	if err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	summary, _ := h.registry.Summary(roomID)
	response.Created(c, domain.CreateRoomResponse{RoomID: roomID, Room: summary})
}

// GetRoom returns the public summary of a room.
func (h *HTTPHandler) GetRoom(c *gin.Context) {
	summary, ok := h.registry.Summary(c.Param("id"))
	if !ok {
		response.NotFound(c, "room not found")
		return
	}
	response.Success(c, summary)
}

// Upload stores one file for a room and returns the descriptor clients
// attach to a message.
func (h *HTTPHandler) Upload(c *gin.Context) {
	ctx := c.Request.Context()
	l := pkglog.Ctx(ctx)

	roomID := c.PostForm("roomId")
	if roomID == "" {
		response.BadRequest(c, "roomId is required")
		return
	}

	fh, err := c.FormFile("file")
	if err != nil {
		response.BadRequest(c, "file is required")
		return
	}

	fileData, err := h.uploads.Save(roomID, fh)
	if err != nil {
		if errors.Is(err, upload.ErrTooLarge) {
			response.PayloadTooLarge(c, "file size exceeds the upload limit")
			return
		}
		l.Error().Err(err).Str("room_id", roomID).Msg("failed to store upload")
		response.InternalError(c, "failed to store upload")
		return
	}

	response.Success(c, gin.H{"file": fileData})
}
