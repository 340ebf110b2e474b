// Package response writes the API envelope. Every endpoint answers HTTP 200;
// failures carry a service error code from the errcode package so clients
// dispatch on the code, not the transport status.
package response

import (
	"github.com/gin-gonic/gin"
	"github.com/xxxsen/common/webapi/proxyutil"

	"github.com/clarity-app/clarity/internal/pkg/errcode"
)

type apiError struct {
	code uint32
	msg  string
}

func (e apiError) Error() string {
	return e.msg
}

func (e apiError) Code() uint32 {
	return e.code
}

func AsCodeErr(code uint32, msg string) error {
	return apiError{code: code, msg: msg}
}

func Success(c *gin.Context, data interface{}) {
	proxyutil.SuccessJson(c, data)
}

func Error(c *gin.Context, code int, message string) {
	proxyutil.FailJson(c, 200, AsCodeErr(uint32(code), message))
}

// BadRequest is the shorthand for request bodies that fail to bind.
func BadRequest(c *gin.Context, message string) {
	Error(c, errcode.ErrInvalid, message)
}
