package handler

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/clarity-app/clarity/internal/ai"
	"github.com/clarity-app/clarity/internal/middleware"
	"github.com/clarity-app/clarity/internal/pkg/errcode"
	appErr "github.com/clarity-app/clarity/internal/pkg/errors"
	"github.com/clarity-app/clarity/internal/pkg/response"
)

func getUserID(c *gin.Context) string {
	return middleware.UserID(c)
}

func queryInt(c *gin.Context, key string, def int) int {
	if value := c.Query(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return def
}

func queryUint(c *gin.Context, key string, def uint) uint {
	if value := c.Query(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil && parsed >= 0 {
			return uint(parsed)
		}
	}
	return def
}

func handleError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	logutil.GetLogger(c.Request.Context()).Warn("request failed",
		zap.String("method", c.Request.Method),
		zap.String("path", c.Request.URL.Path),
		zap.String("user_id", getUserID(c)),
		zap.Error(err),
	)

	var validationErr *appErr.ValidationError
	var conflictErr *appErr.ConflictError
	var notFoundErr *appErr.NotFoundError
	var stateErr *appErr.InvalidStateError
	switch {
	case errors.As(err, &validationErr):
		response.Error(c, errcode.ErrInvalid, fmt.Sprintf("%s: %s", validationErr.Field, validationErr.Reason))
	case errors.As(err, &conflictErr):
		response.Error(c, errcode.ErrConflict, fmt.Sprintf("%s already exists: %s", conflictErr.Field, conflictErr.Value))
	case errors.As(err, &stateErr):
		response.Error(c, errcode.ErrInvalidState, fmt.Sprintf("cannot %s %s in state %s", stateErr.Op, stateErr.Entity, stateErr.State))
	case errors.As(err, &notFoundErr):
		response.Error(c, errcode.ErrNotFound, fmt.Sprintf("%s not found", notFoundErr.Kind))
	case errors.Is(err, appErr.ErrUnauthorized):
		response.Error(c, errcode.ErrUnauthorized, "unauthorized")
	case errors.Is(err, appErr.ErrForbidden):
		response.Error(c, errcode.ErrForbidden, "forbidden")
	case errors.Is(err, appErr.ErrNotFound):
		response.Error(c, errcode.ErrNotFound, "not found")
	case errors.Is(err, appErr.ErrConflict):
		response.Error(c, errcode.ErrConflict, "conflict")
	case errors.Is(err, appErr.ErrInvalid):
		response.BadRequest(c, "invalid request")
	case errors.Is(err, appErr.ErrInvalidState):
		response.Error(c, errcode.ErrInvalidState, "invalid state")
	case errors.Is(err, appErr.ErrQuota):
		response.Error(c, errcode.ErrQuotaExceeded, "storage quota exceeded")
	case errors.Is(err, appErr.ErrFileType):
		response.Error(c, errcode.ErrUnsupportedFileType, "unsupported file type")
	case errors.Is(err, appErr.ErrFileTooLarge):
		response.Error(c, errcode.ErrFileTooLarge, "file too large")
	case errors.Is(err, appErr.ErrTimeout):
		response.Error(c, errcode.ErrTimeout, "operation timed out")
	case errors.Is(err, ai.ErrUnavailable):
		response.Error(c, errcode.ErrAIUnavailable, "ai provider unavailable")
	default:
		response.Error(c, errcode.ErrInternal, "internal error")
	}
}
