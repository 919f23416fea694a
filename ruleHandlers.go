package main

import (
	"net/http"

	"bitbucket.org/mmdatafocus/recon_backend/models"
	"github.com/gin-gonic/gin"
)

func createRuleHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !requireLogin(c) {
			return
		}
		var input models.NewReconciliationRule
		if !bindJSONOrAbort(c, &input) {
			return
		}
		rule, err := models.CreateReconciliationRule(c.Request.Context(), &input)
		if err != nil {
			respondError(c, "createRuleHandler", err)
			return
		}
		c.JSON(http.StatusCreated, rule)
	}
}

func updateRuleHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !requireLogin(c) {
			return
		}
		id, ok := pathId(c)
		if !ok {
			return
		}
		var input models.NewReconciliationRule
		if !bindJSONOrAbort(c, &input) {
			return
		}
		rule, err := models.UpdateReconciliationRule(c.Request.Context(), id, &input)
		if err != nil {
			respondError(c, "updateRuleHandler", err)
			return
		}
		c.JSON(http.StatusOK, rule)
	}
}

func deleteRuleHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !requireLogin(c) {
			return
		}
		id, ok := pathId(c)
		if !ok {
			return
		}
		rule, err := models.DeleteReconciliationRule(c.Request.Context(), id)
		if err != nil {
			respondError(c, "deleteRuleHandler", err)
			return
		}
		c.JSON(http.StatusOK, rule)
	}
}

func getRuleHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !requireLogin(c) {
			return
		}
		id, ok := pathId(c)
		if !ok {
			return
		}
		rule, err := models.GetReconciliationRule(c.Request.Context(), id)
		if err != nil {
			respondError(c, "getRuleHandler", err)
			return
		}
		c.JSON(http.StatusOK, rule)
	}
}

func listRulesHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !requireLogin(c) {
			return
		}
		rules, err := models.ListReconciliationRules(c.Request.Context())
		if err != nil {
			respondError(c, "listRulesHandler", err)
			return
		}
		c.JSON(http.StatusOK, rules)
	}
}
