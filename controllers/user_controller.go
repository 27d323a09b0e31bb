package controllers

import (
	"net/http"

	"github.com/bunzstudio/storefront-backend/services"

	"github.com/gin-gonic/gin"
)

type UserController struct {
	Users *services.UserService
}

func NewUserController(users *services.UserService) *UserController {
	return &UserController{Users: users}
}

func (uc *UserController) GetPreferences(c *gin.Context) {
	prefs, svcErr := uc.Users.GetPreferences(c.Request.Context(), c.Param("email"))
	if svcErr != nil {
		c.JSON(svcErr.StatusCode, gin.H{"error": svcErr.Message})
		return
	}
	c.JSON(http.StatusOK, prefs)
}

// UpdatePreferences accepts a partial map of preference flags, e.g.
// {"orderUpdates": false}.
func (uc *UserController) UpdatePreferences(c *gin.Context) {
	var req map[string]bool
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	prefs, svcErr := uc.Users.UpdatePreferences(c.Request.Context(), c.Param("email"), req)
	if svcErr != nil {
		c.JSON(svcErr.StatusCode, gin.H{"error": svcErr.Message})
		return
	}
	c.JSON(http.StatusOK, prefs)
}
