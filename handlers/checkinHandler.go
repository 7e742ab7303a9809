package handlers

import (
	"net/http"

	"gymserver/middlewares"

	"github.com/gin-gonic/gin"
)

// GenerateQrToken は管理者がQRコード用のトークンを発行する
func (h *Handler) GenerateQrToken(c *gin.Context) {
	result, err := h.checkins.Issue(c.Request.Context(), middlewares.IdentityFromContext(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, result)
}

// VerifyCheckin はスキャンしたトークンでチェックインする
func (h *Handler) VerifyCheckin(c *gin.Context) {
	result, err := h.checkins.Verify(c.Request.Context(), c.Param("scannedToken"), middlewares.IdentityFromContext(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": result.Message})
}
