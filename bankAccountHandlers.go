package main

import (
	"net/http"
	"strconv"

	"bitbucket.org/mmdatafocus/recon_backend/models"
	"github.com/gin-gonic/gin"
)

func createBankAccountHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !requireLogin(c) {
			return
		}
		var input models.NewBankAccount
		if !bindJSONOrAbort(c, &input) {
			return
		}
		account, err := models.CreateBankAccount(c.Request.Context(), &input)
		if err != nil {
			respondError(c, "createBankAccountHandler", err)
			return
		}
		c.JSON(http.StatusCreated, account)
	}
}

func updateBankAccountHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !requireLogin(c) {
			return
		}
		id, ok := pathId(c)
		if !ok {
			return
		}
		var input models.NewBankAccount
		if !bindJSONOrAbort(c, &input) {
			return
		}
		account, err := models.UpdateBankAccount(c.Request.Context(), id, &input)
		if err != nil {
			respondError(c, "updateBankAccountHandler", err)
			return
		}
		c.JSON(http.StatusOK, account)
	}
}

func deleteBankAccountHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !requireLogin(c) {
			return
		}
		id, ok := pathId(c)
		if !ok {
			return
		}
		account, err := models.DeleteBankAccount(c.Request.Context(), id)
		if err != nil {
			respondError(c, "deleteBankAccountHandler", err)
			return
		}
		c.JSON(http.StatusOK, account)
	}
}

func getBankAccountHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !requireLogin(c) {
			return
		}
		id, ok := pathId(c)
		if !ok {
			return
		}
		account, err := models.GetBankAccount(c.Request.Context(), id)
		if err != nil {
			respondError(c, "getBankAccountHandler", err)
			return
		}
		c.JSON(http.StatusOK, account)
	}
}

func listBankAccountsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !requireLogin(c) {
			return
		}
		accounts, err := models.ListBankAccounts(c.Request.Context())
		if err != nil {
			respondError(c, "listBankAccountsHandler", err)
			return
		}
		c.JSON(http.StatusOK, accounts)
	}
}

func createLedgerEntryHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !requireLogin(c) {
			return
		}
		var input models.NewLedgerEntry
		if !bindJSONOrAbort(c, &input) {
			return
		}
		entry, err := models.CreateLedgerEntry(c.Request.Context(), &input)
		if err != nil {
			respondError(c, "createLedgerEntryHandler", err)
			return
		}
		c.JSON(http.StatusCreated, entry)
	}
}

func getLedgerEntryHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !requireLogin(c) {
			return
		}
		id, ok := pathId(c)
		if !ok {
			return
		}
		entry, err := models.GetLedgerEntry(c.Request.Context(), id)
		if err != nil {
			respondError(c, "getLedgerEntryHandler", err)
			return
		}
		c.JSON(http.StatusOK, entry)
	}
}

// paginateLedgerEntriesHandler pages through an account's entries with a
// composite cursor (transaction date, id).
func paginateLedgerEntriesHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !requireLogin(c) {
			return
		}
		accountId, err := strconv.Atoi(c.Query("account_id"))
		if err != nil || accountId <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "account_id is required"})
			return
		}
		var limit *int
		if v := c.Query("limit"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n <= 0 {
				c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
				return
			}
			limit = &n
		}
		var after *string
		if v := c.Query("after"); v != "" {
			after = &v
		}
		conn, err := models.PaginateLedgerEntry(c.Request.Context(), accountId, limit, after)
		if err != nil {
			respondError(c, "paginateLedgerEntriesHandler", err)
			return
		}
		c.JSON(http.StatusOK, conn)
	}
}
