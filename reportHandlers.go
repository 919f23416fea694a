package main

import (
	"fmt"
	"net/http"
	"strconv"

	"bitbucket.org/mmdatafocus/recon_backend/models"
	"bitbucket.org/mmdatafocus/recon_backend/models/reports"
	"github.com/gin-gonic/gin"
)

func reconciliationSummaryReportHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !requireLogin(c) {
			return
		}
		var fromDate, toDate models.MyDateString
		if err := fromDate.ParseString(c.Query("from_date")); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "from_date is required"})
			return
		}
		if err := toDate.ParseString(c.Query("to_date")); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "to_date is required"})
			return
		}
		var accountId *int
		if v := c.Query("account_id"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n <= 0 {
				c.JSON(http.StatusBadRequest, gin.H{"error": "invalid account_id"})
				return
			}
			accountId = &n
		}
		records, err := reports.GetReconciliationSummaryReport(c.Request.Context(), accountId, fromDate, toDate)
		if err != nil {
			respondError(c, "reconciliationSummaryReportHandler", err)
			return
		}
		c.JSON(http.StatusOK, records)
	}
}

func sessionMatchDetailReportHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !requireLogin(c) {
			return
		}
		id, ok := pathId(c)
		if !ok {
			return
		}
		records, err := reports.GetSessionMatchDetailReport(c.Request.Context(), id)
		if err != nil {
			respondError(c, "sessionMatchDetailReportHandler", err)
			return
		}
		c.JSON(http.StatusOK, records)
	}
}

func exportSessionMatchesHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !requireLogin(c) {
			return
		}
		id, ok := pathId(c)
		if !ok {
			return
		}
		c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=session-%d-matches.xlsx", id))
		if err := reports.ExportSessionMatchesExcel(c.Request.Context(), id, c.Writer); err != nil {
			c.Header("Content-Disposition", "")
			respondError(c, "exportSessionMatchesHandler", err)
			return
		}
	}
}
