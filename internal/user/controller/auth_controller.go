package controller

import (
	"strings"
	"time"

	"codearena/internal/common/http/middleware"
	"codearena/internal/user/service"
	pkgerrors "codearena/pkg/errors"
	"codearena/pkg/utils/response"

	"github.com/gin-gonic/gin"
)

// AuthController handles auth-related HTTP endpoints.
type AuthController struct {
	authService *service.AuthService
}

// NewAuthController creates a new AuthController.
func NewAuthController(authService *service.AuthService) *AuthController {
	return &AuthController{authService: authService}
}

// Register handles user registration.
func (h *AuthController) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "Invalid request parameters")
		return
	}

	result, err := h.authService.Register(c.Request.Context(), service.RegisterInput{
		FirstName: strings.TrimSpace(req.FirstName),
		Email:     strings.TrimSpace(req.Email),
		Password:  req.Password,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	setTokenCookie(c, result)
	response.Created(c, toAuthResponse(result))
}

// RegisterAdmin creates an admin account. Route is admin-gated.
func (h *AuthController) RegisterAdmin(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "Invalid request parameters")
		return
	}

	result, err := h.authService.RegisterAdmin(c.Request.Context(), service.RegisterInput{
		FirstName: strings.TrimSpace(req.FirstName),
		Email:     strings.TrimSpace(req.Email),
		Password:  req.Password,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, toAuthResponse(result))
}

// Login handles user login.
func (h *AuthController) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "Invalid request parameters")
		return
	}

	result, err := h.authService.Login(c.Request.Context(), service.LoginInput{
		Email:    strings.TrimSpace(req.Email),
		Password: req.Password,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	setTokenCookie(c, result)
	response.Success(c, toAuthResponse(result))
}

// LoginAdmin handles admin login.
func (h *AuthController) LoginAdmin(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "Invalid request parameters")
		return
	}

	result, err := h.authService.LoginAdmin(c.Request.Context(), service.LoginInput{
		Email:    strings.TrimSpace(req.Email),
		Password: req.Password,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	setTokenCookie(c, result)
	response.Success(c, toAuthResponse(result))
}

// Logout blocklists the current token.
func (h *AuthController) Logout(c *gin.Context) {
	token := currentToken(c)
	if token == "" {
		response.ErrorWithCode(c, pkgerrors.Unauthorized, "missing credentials")
		return
	}

	if err := h.authService.Logout(c.Request.Context(), token); err != nil {
		response.Error(c, err)
		return
	}

	c.SetCookie("token", "", -1, "/", "", false, true)
	response.SuccessWithMessage(c, "Logout success", nil)
}

// DeleteProfile removes the authenticated user's account.
func (h *AuthController) DeleteProfile(c *gin.Context) {
	principal, ok := middleware.GetPrincipal(c)
	if !ok {
		response.ErrorWithCode(c, pkgerrors.Unauthorized, "missing credentials")
		return
	}

	if err := h.authService.DeleteProfile(c.Request.Context(), principal.UserID); err != nil {
		response.Error(c, err)
		return
	}

	c.SetCookie("token", "", -1, "/", "", false, true)
	response.SuccessWithMessage(c, "Profile deleted", nil)
}

// Check returns the authenticated user's info.
func (h *AuthController) Check(c *gin.Context) {
	principal, ok := middleware.GetPrincipal(c)
	if !ok {
		response.ErrorWithCode(c, pkgerrors.Unauthorized, "missing credentials")
		return
	}

	info, err := h.authService.GetUser(c.Request.Context(), principal.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, toUserInfo(info))
}

func setTokenCookie(c *gin.Context, result service.AuthResult) {
	maxAge := int(time.Until(result.ExpiresAt).Seconds())
	if maxAge <= 0 {
		return
	}
	c.SetCookie("token", result.Token, maxAge, "/", "", false, true)
}

func currentToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if parts := strings.SplitN(header, " ", 2); len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
		return strings.TrimSpace(parts[1])
	}
	if cookie, err := c.Cookie("token"); err == nil {
		return strings.TrimSpace(cookie)
	}
	return ""
}

// RegisterRequest defines registration payload.
type RegisterRequest struct {
	FirstName string `json:"firstName" binding:"required"`
	Email     string `json:"emailId" binding:"required"`
	Password  string `json:"password" binding:"required"`
}

// LoginRequest defines login payload.
type LoginRequest struct {
	Email    string `json:"emailId" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// AuthResponse defines auth response payload.
type AuthResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	User      UserInfo  `json:"user"`
}

// UserInfo defines basic user info payload.
type UserInfo struct {
	ID        int64  `json:"id"`
	FirstName string `json:"firstName"`
	Email     string `json:"emailId"`
	Role      string `json:"role"`
}

func toAuthResponse(result service.AuthResult) AuthResponse {
	return AuthResponse{
		Token:     result.Token,
		ExpiresAt: result.ExpiresAt,
		User:      toUserInfo(result.User),
	}
}

func toUserInfo(info service.UserInfo) UserInfo {
	return UserInfo{
		ID:        info.ID,
		FirstName: info.FirstName,
		Email:     info.Email,
		Role:      string(info.Role),
	}
}
