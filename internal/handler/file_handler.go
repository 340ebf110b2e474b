package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/clarity-app/clarity/internal/pkg/errcode"
	"github.com/clarity-app/clarity/internal/pkg/response"
	"github.com/clarity-app/clarity/internal/service"
)

type FileHandler struct {
	files *service.FileService
}

func NewFileHandler(files *service.FileService) *FileHandler {
	return &FileHandler{files: files}
}

func (h *FileHandler) Upload(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		response.BadRequest(c, "file field required")
		return
	}
	src, err := fileHeader.Open()
	if err != nil {
		response.Error(c, errcode.ErrUploadFailed, "cannot read upload")
		return
	}
	defer src.Close()

	result, err := h.files.Upload(c.Request.Context(), getUserID(c), c.Param("brain_id"),
		fileHeader.Filename, fileHeader.Size, src)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, result)
}

func (h *FileHandler) List(c *gin.Context) {
	files, err := h.files.List(c.Request.Context(), getUserID(c), c.Param("brain_id"))
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, files)
}

func (h *FileHandler) Get(c *gin.Context) {
	file, err := h.files.Get(c.Request.Context(), getUserID(c), c.Param("brain_id"), c.Param("file_id"))
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, file)
}

func (h *FileHandler) Download(c *gin.Context) {
	file, rc, err := h.files.Download(c.Request.Context(), getUserID(c), c.Param("brain_id"), c.Param("file_id"))
	if err != nil {
		handleError(c, err)
		return
	}
	defer rc.Close()
	c.Header("Content-Disposition", `attachment; filename="`+file.Name+`"`)
	c.DataFromReader(200, file.Size, file.ContentType, rc, nil)
}

func (h *FileHandler) Delete(c *gin.Context) {
	if err := h.files.Delete(c.Request.Context(), getUserID(c), c.Param("brain_id"), c.Param("file_id")); err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"deleted": true})
}
