package main

import (
	"net/http"

	"bitbucket.org/mmdatafocus/recon_backend/models"
	"github.com/gin-gonic/gin"
)

type loginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func loginHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req loginRequest
		if !bindJSONOrAbort(c, &req) {
			return
		}
		info, err := models.Login(c.Request.Context(), req.Username, req.Password)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
			return
		}
		c.JSON(http.StatusOK, info)
	}
}

func logoutHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !requireLogin(c) {
			return
		}
		ok, err := models.Logout(c.Request.Context())
		if err != nil {
			respondError(c, "logoutHandler", err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"logged_out": ok})
	}
}

// registerUserHandler creates a user in the caller's business. Admins may
// create users for any business by sending business_id.
func registerUserHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !requireLogin(c) {
			return
		}
		var input models.NewUser
		if !bindJSONOrAbort(c, &input) {
			return
		}
		if input.BusinessId != "" {
			if err := authorizeInternalBusiness(c.Request.Context(), input.BusinessId); err != nil {
				c.JSON(http.StatusForbidden, gin.H{"error": "forbidden"})
				return
			}
		}
		user, err := models.CreateUser(c.Request.Context(), &input)
		if err != nil {
			respondError(c, "registerUserHandler", err)
			return
		}
		user.PrepareGive()
		c.JSON(http.StatusCreated, user)
	}
}

func createBusinessHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !requireLogin(c) {
			return
		}
		if err := authorizeAdminOnly(c.Request.Context()); err != nil {
			c.JSON(http.StatusForbidden, gin.H{"error": "forbidden"})
			return
		}
		var input models.NewBusiness
		if !bindJSONOrAbort(c, &input) {
			return
		}
		business, err := models.CreateBusiness(c.Request.Context(), &input)
		if err != nil {
			respondError(c, "createBusinessHandler", err)
			return
		}
		c.JSON(http.StatusCreated, business)
	}
}
