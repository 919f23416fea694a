package main

import (
	"net/http"
	"strconv"
	"strings"

	"bitbucket.org/mmdatafocus/recon_backend/models"
	"bitbucket.org/mmdatafocus/recon_backend/workflow"
	"github.com/gin-gonic/gin"
)

func createSessionHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !requireLogin(c) {
			return
		}
		var input models.NewReconciliationSession
		if !bindJSONOrAbort(c, &input) {
			return
		}
		session, err := models.CreateReconciliationSession(c.Request.Context(), &input)
		if err != nil {
			respondError(c, "createSessionHandler", err)
			return
		}
		c.JSON(http.StatusCreated, session)
	}
}

func listSessionsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !requireLogin(c) {
			return
		}
		accountId, err := strconv.Atoi(c.Query("account_id"))
		if err != nil || accountId <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "account_id is required"})
			return
		}
		var status *models.ReconciliationSessionStatus
		if v := c.Query("status"); v != "" {
			s := models.ReconciliationSessionStatus(v)
			if !s.IsValid() {
				c.JSON(http.StatusBadRequest, gin.H{"error": "invalid status"})
				return
			}
			status = &s
		}
		sessions, err := models.ListReconciliationSessions(c.Request.Context(), accountId, status)
		if err != nil {
			respondError(c, "listSessionsHandler", err)
			return
		}
		c.JSON(http.StatusOK, sessions)
	}
}

func getSessionHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !requireLogin(c) {
			return
		}
		id, ok := pathId(c)
		if !ok {
			return
		}
		session, err := models.GetReconciliationSession(c.Request.Context(), id)
		if err != nil {
			respondError(c, "getSessionHandler", err)
			return
		}
		c.JSON(http.StatusOK, session)
	}
}

func completeSessionHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !requireLogin(c) {
			return
		}
		id, ok := pathId(c)
		if !ok {
			return
		}
		session, err := models.CompleteReconciliationSession(c.Request.Context(), id)
		if err != nil {
			respondError(c, "completeSessionHandler", err)
			return
		}
		c.JSON(http.StatusOK, session)
	}
}

func abandonSessionHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !requireLogin(c) {
			return
		}
		id, ok := pathId(c)
		if !ok {
			return
		}
		session, err := models.AbandonReconciliationSession(c.Request.Context(), id)
		if err != nil {
			respondError(c, "abandonSessionHandler", err)
			return
		}
		c.JSON(http.StatusOK, session)
	}
}

// runMatchingHandler kicks off the matching passes for a session.
// ?dry_run=true scores without persisting, for previewing policy changes.
func runMatchingHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !requireLogin(c) {
			return
		}
		id, ok := pathId(c)
		if !ok {
			return
		}
		dryRun := strings.EqualFold(c.Query("dry_run"), "true")
		proposals, err := workflow.RunSessionMatching(c.Request.Context(), id, dryRun)
		if err != nil {
			respondError(c, "runMatchingHandler", err)
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"session_id": id,
			"dry_run":    dryRun,
			"proposals":  proposals,
		})
	}
}

// importStatementLinesHandler accepts either a JSON body with a "lines"
// array or a multipart upload with a "file" CSV part.
func importStatementLinesHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !requireLogin(c) {
			return
		}
		id, ok := pathId(c)
		if !ok {
			return
		}

		var inputs []models.NewStatementLine
		contentType := c.ContentType()
		if strings.HasPrefix(contentType, "multipart/form-data") {
			fileHeader, err := c.FormFile("file")
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "file is required"})
				return
			}
			file, err := fileHeader.Open()
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "could not read file"})
				return
			}
			defer file.Close()

			business, err := models.GetBusiness(c.Request.Context())
			if err != nil {
				respondError(c, "importStatementLinesHandler", err)
				return
			}
			inputs, err = models.ParseStatementCSV(file, business.Timezone)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
		} else {
			var body struct {
				Lines []models.NewStatementLine `json:"lines" binding:"required"`
			}
			if !bindJSONOrAbort(c, &body) {
				return
			}
			inputs = body.Lines
		}
		if len(inputs) == 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "no statement lines to import"})
			return
		}

		lines, err := models.ImportStatementLines(c.Request.Context(), id, inputs)
		if err != nil {
			respondError(c, "importStatementLinesHandler", err)
			return
		}
		c.JSON(http.StatusCreated, gin.H{
			"session_id": id,
			"imported":   len(lines),
			"lines":      lines,
		})
	}
}

func listStatementLinesHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !requireLogin(c) {
			return
		}
		id, ok := pathId(c)
		if !ok {
			return
		}
		lines, err := models.ListStatementLines(c.Request.Context(), id)
		if err != nil {
			respondError(c, "listStatementLinesHandler", err)
			return
		}
		c.JSON(http.StatusOK, lines)
	}
}
