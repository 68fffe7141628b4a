package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/zxj6827111-blip/tianbaoxitong-sub000/constants"
	"github.com/zxj6827111-blip/tianbaoxitong-sub000/internal/alias"
)

// AliasHandler manages the label alias dictionary reviewers curate.
type AliasHandler struct {
	resolver *alias.Resolver
}

func NewAliasHandler(resolver *alias.Resolver) *AliasHandler {
	return &AliasHandler{resolver: resolver}
}

func (h *AliasHandler) List(c *gin.Context) {
	status := constants.AliasStatus(c.Query("status"))
	mappings, err := h.resolver.List(c.Request.Context(), status)
	if err != nil {
		failError(c, err)
		return
	}
	success(c, gin.H{"mappings": mappings, "total": len(mappings)})
}

type patchAliasRequest struct {
	Status      constants.AliasStatus `json:"status" binding:"required"`
	ResolvedKey string                `json:"resolved_key"`
}

func (h *AliasHandler) Patch(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		fail(c, http.StatusBadRequest, "invalid alias id")
		return
	}
	var req patchAliasRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	mapping, err := h.resolver.SetStatus(c.Request.Context(), id, req.Status, req.ResolvedKey)
	if err != nil {
		failError(c, err)
		return
	}
	success(c, mapping)
}
