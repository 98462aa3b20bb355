package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/MrEthical07/bizAuth"
	"github.com/MrEthical07/bizAuth/middleware"
)

type credentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type updateAccountRequest struct {
	Username    string `json:"username"`
	Password    string `json:"password"`
	NewUsername string `json:"new_username"`
	NewPassword string `json:"new_password"`
}

type deleteAccountRequest struct {
	Username string `json:"username"`
}

type resetPasswordRequest struct {
	Username    string `json:"username"`
	NewPassword string `json:"new_password"`
}

type userView struct {
	ID       string `json:"_id"`
	Username string `json:"username"`
}

func (h *Handler) CreateAccount(c *gin.Context) {
	var req credentialsRequest
	if !h.bindJSON(c, "CreateAccount", &req) {
		return
	}
	info, err := h.engine.CreateAccount(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		middleware.AbortWithError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"message": "Account created successfully",
		"user":    userView{ID: info.ID, Username: info.Username},
	})
}

func (h *Handler) UpdateAccount(c *gin.Context) {
	var req updateAccountRequest
	if !h.bindJSON(c, "UpdateAccount", &req) {
		return
	}
	info, err := h.engine.UpdateAccount(c.Request.Context(), bizAuth.AccountUpdateRequest{
		Username:    req.Username,
		Password:    req.Password,
		NewUsername: req.NewUsername,
		NewPassword: req.NewPassword,
	})
	if err != nil {
		middleware.AbortWithError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message": "Account updated successfully",
		"user":    userView{ID: info.ID, Username: info.Username},
	})
}

// DeleteAccount clears the native session cookies when callers delete their
// own account.
func (h *Handler) DeleteAccount(c *gin.Context) {
	id, _ := middleware.IdentityFrom(c)
	var req deleteAccountRequest
	if !h.bindJSON(c, "DeleteAccount", &req) {
		return
	}
	if err := h.engine.DeleteAccount(c.Request.Context(), id, req.Username); err != nil {
		middleware.AbortWithError(c, h.logger, err)
		return
	}
	if id.Method == bizAuth.MethodNative && id.Username == req.Username {
		for _, name := range sessionCookies {
			h.clearCookie(c, name)
		}
	}
	c.JSON(http.StatusOK, gin.H{"message": "Account deleted successfully"})
}

func (h *Handler) ResetPassword(c *gin.Context) {
	id, _ := middleware.IdentityFrom(c)
	var req resetPasswordRequest
	if !h.bindJSON(c, "ResetPassword", &req) {
		return
	}
	if err := h.engine.ResetPassword(c.Request.Context(), id, req.Username, req.NewPassword); err != nil {
		middleware.AbortWithError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Password updated successfully"})
}
