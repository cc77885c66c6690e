package handler

import (
	"Circlet/internal/apperr"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

func respond(c *gin.Context, status int, body any, message string) {
	c.JSON(status, gin.H{
		"HttpStatusCode": status,
		"ResponseBody":   body,
		"IsSuccess":      status < http.StatusBadRequest,
		"Message":        message,
	})
}

func respondError(c *gin.Context, err error) {
	appErr := apperr.FromError(err)
	_ = c.Error(err)
	respond(c, appErr.StatusCode, gin.H{"code": appErr.Code}, appErr.Message)
}

// pageParam reads ?page=, defaulting to 1.
func pageParam(c *gin.Context) (int64, error) {
	page, err := strconv.ParseInt(c.DefaultQuery("page", "1"), 10, 64)
	if err != nil || page < 1 {
		return 0, apperr.BadRequest("invalid page number")
	}
	return page, nil
}
