package handler

import (
	"Circlet/internal/auth"
	"Circlet/internal/service"
	"net/http"

	"github.com/gin-gonic/gin"
)

type CallHandler interface {
	GetActiveCalls(c *gin.Context)
	GetCallHistory(c *gin.Context)
}

type callHandler struct {
	service service.CallService
}

func NewCallHandler(service service.CallService) CallHandler {
	return &callHandler{service: service}
}

func (h *callHandler) GetActiveCalls(c *gin.Context) {
	calls := h.service.Active(auth.UserID(c))
	respond(c, http.StatusOK, gin.H{
		"calls": calls,
		"count": len(calls),
	}, "Active calls retrieved successfully")
}

func (h *callHandler) GetCallHistory(c *gin.Context) {
	page, err := pageParam(c)
	if err != nil {
		respondError(c, err)
		return
	}

	history, err := h.service.History(c.Request.Context(), auth.UserID(c), page)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, history, "Call history retrieved successfully")
}
