package handlers

import (
	"mime"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"supportportal.io/portal/internal/api/middleware"
	"supportportal.io/portal/internal/domain"
	apperrors "supportportal.io/portal/internal/pkg/errors"
	"supportportal.io/portal/internal/pkg/logger"
)

// ListNotes handles GET /api/clients/:id/notes.
func (s *Server) ListNotes(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	if _, ok := s.visibleClient(c, id); !ok {
		return
	}
	notes, err := s.queries.ListNotes(c.Request.Context(), id)
	if err != nil {
		_ = c.Error(persistence(err))
		return
	}
	if notes == nil {
		notes = []*domain.Note{}
	}
	c.JSON(http.StatusOK, gin.H{"items": notes})
}

type addNoteRequest struct {
	Text string `json:"text"`
}

// AddNote handles POST /api/clients/:id/notes.
func (s *Server) AddNote(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var req addNoteRequest
	if !bindJSON(c, &req) {
		return
	}
	if _, ok := s.visibleClient(c, id); !ok {
		return
	}
	ctx := c.Request.Context()
	note, err := s.recordsUC.AddNote(ctx, id, middleware.ActorID(ctx), req.Text)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusCreated, note)
}

// ListActivities handles GET /api/clients/:id/activities, newest first.
func (s *Server) ListActivities(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	if _, ok := s.visibleClient(c, id); !ok {
		return
	}
	items, err := s.queries.ListActivities(c.Request.Context(), id)
	if err != nil {
		_ = c.Error(persistence(err))
		return
	}
	if items == nil {
		items = []*domain.Activity{}
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

// ListFiles handles GET /api/clients/:id/files.
func (s *Server) ListFiles(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	if _, ok := s.visibleClient(c, id); !ok {
		return
	}
	files, err := s.queries.ListFiles(c.Request.Context(), id)
	if err != nil {
		_ = c.Error(persistence(err))
		return
	}
	if files == nil {
		files = []*domain.ClientFile{}
	}
	c.JSON(http.StatusOK, gin.H{"items": files})
}

// UploadFile handles POST /api/clients/:id/files (multipart field "file").
func (s *Server) UploadFile(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	if _, ok := s.visibleClient(c, id); !ok {
		return
	}
	header, err := c.FormFile("file")
	if err != nil {
		_ = c.Error(apperrors.Wrap(err, apperrors.CodeInvalidRequest, "multipart field \"file\" is required", http.StatusBadRequest))
		return
	}
	content, err := header.Open()
	if err != nil {
		_ = c.Error(apperrors.Wrap(err, apperrors.CodeInvalidRequest, "could not read upload", http.StatusBadRequest))
		return
	}
	defer content.Close()

	ctx := c.Request.Context()
	file, err := s.recordsUC.UploadFile(ctx, id, middleware.ActorID(ctx), header.Filename, content)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusCreated, file)
}

// DownloadFile handles GET /api/clients/:id/files/:file_id/download.
func (s *Server) DownloadFile(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	fileID, ok := idParam(c, "file_id")
	if !ok {
		return
	}
	if _, ok := s.visibleClient(c, id); !ok {
		return
	}
	f, err := s.queries.GetFile(c.Request.Context(), id, fileID)
	if err != nil {
		_ = c.Error(notFoundAs(err, apperrors.CodeFileNotFound, "file not found"))
		return
	}

	content, err := s.files.Open(f.StoredName)
	if err != nil {
		logger.Error("stored file is unreadable",
			zap.Int64("client_id", id),
			zap.Int64("file_id", fileID),
			zap.String("stored_name", f.StoredName),
			zap.Error(err),
		)
		_ = c.Error(apperrors.NotFound(apperrors.CodeFileNotFound, "file content is missing"))
		return
	}
	defer content.Close()

	modTime := f.CreatedAt
	if st, err := content.Stat(); err == nil {
		modTime = st.ModTime()
	}
	c.Header("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": f.Name}))
	http.ServeContent(c.Writer, c.Request, f.Name, modTime, content)
}

// DeleteFile handles DELETE /api/clients/:id/files/:file_id.
func (s *Server) DeleteFile(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	fileID, ok := idParam(c, "file_id")
	if !ok {
		return
	}
	if _, ok := s.visibleClient(c, id); !ok {
		return
	}
	ctx := c.Request.Context()
	if err := s.recordsUC.DeleteFile(ctx, id, fileID, middleware.ActorID(ctx)); err != nil {
		_ = c.Error(err)
		return
	}
	c.Status(http.StatusNoContent)
}
