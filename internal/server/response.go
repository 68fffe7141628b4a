package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/zxj6827111-blip/tianbaoxitong-sub000/internal/common"
)

type response struct {
	Code int    `json:"code"` // 0 success, -1 failure
	Msg  string `json:"msg"`
	Data any    `json:"data,omitempty"`
}

func success(c *gin.Context, data any) {
	c.JSON(http.StatusOK, response{Code: 0, Msg: "success", Data: data})
}

func fail(c *gin.Context, status int, msg string) {
	c.JSON(status, response{Code: -1, Msg: msg})
}

// failError picks the HTTP status from the error's sentinel so clients
// can distinguish stale tokens from blocked commits without parsing
// messages.
func failError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, common.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, common.ErrStaleToken):
		status = http.StatusConflict
	case errors.Is(err, common.ErrIllegalTransition):
		status = http.StatusConflict
	case errors.Is(err, common.ErrCommitBlocked):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, common.ErrInvalidInput):
		status = http.StatusBadRequest
	}
	fail(c, status, err.Error())
}
