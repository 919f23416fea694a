package main

import (
	"net/http"

	"bitbucket.org/mmdatafocus/recon_backend/models"
	"bitbucket.org/mmdatafocus/recon_backend/workflow"
	"github.com/gin-gonic/gin"
)

func listSessionMatchesHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !requireLogin(c) {
			return
		}
		id, ok := pathId(c)
		if !ok {
			return
		}
		var status *models.MatchStatus
		if v := c.Query("status"); v != "" {
			s := models.MatchStatus(v)
			if !s.IsValid() {
				c.JSON(http.StatusBadRequest, gin.H{"error": "invalid status"})
				return
			}
			status = &s
		}
		matches, err := models.ListSessionMatches(c.Request.Context(), id, status)
		if err != nil {
			respondError(c, "listSessionMatchesHandler", err)
			return
		}
		c.JSON(http.StatusOK, matches)
	}
}

func createManualMatchHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !requireLogin(c) {
			return
		}
		id, ok := pathId(c)
		if !ok {
			return
		}
		var input models.NewManualMatch
		if !bindJSONOrAbort(c, &input) {
			return
		}
		match, err := models.CreateManualMatch(c.Request.Context(), id, &input)
		if err != nil {
			respondError(c, "createManualMatchHandler", err)
			return
		}
		c.JSON(http.StatusCreated, match)
	}
}

func getMatchHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !requireLogin(c) {
			return
		}
		id, ok := pathId(c)
		if !ok {
			return
		}
		match, err := models.GetMatch(c.Request.Context(), id)
		if err != nil {
			respondError(c, "getMatchHandler", err)
			return
		}
		c.JSON(http.StatusOK, match)
	}
}

// confirmMatchHandler honours the Idempotency-Key header: a retried
// request with the same key returns the already-confirmed match instead
// of failing.
func confirmMatchHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !requireLogin(c) {
			return
		}
		id, ok := pathId(c)
		if !ok {
			return
		}
		key := c.GetHeader("Idempotency-Key")
		match, err := workflow.ConfirmMatchIdempotent(c.Request.Context(), id, key)
		if err != nil {
			if err == workflow.ErrIdempotencyInProgress {
				c.JSON(http.StatusConflict, gin.H{"error": "request is already in progress"})
				return
			}
			respondError(c, "confirmMatchHandler", err)
			return
		}
		c.JSON(http.StatusOK, match)
	}
}

func rejectMatchHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !requireLogin(c) {
			return
		}
		id, ok := pathId(c)
		if !ok {
			return
		}
		match, err := models.RejectMatch(c.Request.Context(), id)
		if err != nil {
			respondError(c, "rejectMatchHandler", err)
			return
		}
		c.JSON(http.StatusOK, match)
	}
}
