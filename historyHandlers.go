package main

import (
	"net/http"
	"strconv"

	"bitbucket.org/mmdatafocus/recon_backend/models"
	"github.com/gin-gonic/gin"
)

// paginateHistoriesHandler pages through the audit trail, newest first.
// Optional filters: reference_type, reference_id, user_id, action_type.
func paginateHistoriesHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !requireLogin(c) {
			return
		}

		limit := 20
		if v := c.Query("limit"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n <= 0 {
				c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
				return
			}
			limit = n
		}
		var after *string
		if v := c.Query("after"); v != "" {
			after = &v
		}
		var referenceType *string
		if v := c.Query("reference_type"); v != "" {
			referenceType = &v
		}
		var referenceId *int
		if v := c.Query("reference_id"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n <= 0 {
				c.JSON(http.StatusBadRequest, gin.H{"error": "invalid reference_id"})
				return
			}
			referenceId = &n
		}
		var userId *int
		if v := c.Query("user_id"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n <= 0 {
				c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user_id"})
				return
			}
			userId = &n
		}
		var actionType *string
		if v := c.Query("action_type"); v != "" {
			actionType = &v
		}

		conn, err := models.PaginateHistory(c.Request.Context(), &limit, after, referenceType, referenceId, userId, actionType)
		if err != nil {
			respondError(c, "paginateHistoriesHandler", err)
			return
		}
		c.JSON(http.StatusOK, conn)
	}
}
