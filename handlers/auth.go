package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"huntzen-care/middleware"
	"huntzen-care/services"
)

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type RegisterEmployeeRequest struct {
	Token      string `json:"token" binding:"required"`
	Password   string `json:"password" binding:"required,min=8,max=72"`
	FirstName  string `json:"first_name" binding:"required,max=100"`
	LastName   string `json:"last_name" binding:"required,max=100"`
	Department string `json:"department" binding:"max=100"`
	Position   string `json:"position" binding:"max=100"`
	Phone      string `json:"phone" binding:"omitempty,max=30"`
}

type RegisterPractitionerRequest struct {
	Email           string   `json:"email" binding:"required,email"`
	Password        string   `json:"password" binding:"required,min=8,max=72"`
	FirstName       string   `json:"first_name" binding:"required,max=100"`
	LastName        string   `json:"last_name" binding:"required,max=100"`
	Specialty       string   `json:"specialty" binding:"required,max=100"`
	LicenseNumber   string   `json:"license_number" binding:"required,max=50"`
	Bio             string   `json:"bio" binding:"max=5000"`
	Languages       []string `json:"languages" binding:"max=20,dive,max=40"`
	YearsExperience int      `json:"years_experience" binding:"min=0,max=80"`
}

type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password" binding:"required"`
	NewPassword     string `json:"new_password" binding:"required,min=8,max=72"`
}

type AuthResponse struct {
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expires_at"`
	User      UserResponse `json:"user"`
}

type ProfileResponse struct {
	User         UserResponse          `json:"user"`
	Company      *CompanyResponse      `json:"company,omitempty"`
	Employee     *EmployeeResponse     `json:"employee,omitempty"`
	Practitioner *PractitionerResponse `json:"practitioner,omitempty"`
}

func toAuthResponse(r *services.LoginResult) AuthResponse {
	return AuthResponse{Token: r.Token, ExpiresAt: r.ExpiresAt, User: toUserResponse(&r.User)}
}

func (h *Handler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	res, err := h.svc.Auth.Login(h.withIP(c), req.Email, req.Password)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toAuthResponse(res))
}

func (h *Handler) RegisterEmployee(c *gin.Context) {
	var req RegisterEmployeeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	res, err := h.svc.Auth.RegisterEmployee(h.withIP(c), services.RegisterEmployeeInput{
		Token:      req.Token,
		Password:   req.Password,
		FirstName:  req.FirstName,
		LastName:   req.LastName,
		Department: req.Department,
		Position:   req.Position,
		Phone:      req.Phone,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, toAuthResponse(res))
}

func (h *Handler) RegisterPractitioner(c *gin.Context) {
	var req RegisterPractitionerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	res, err := h.svc.Auth.RegisterPractitioner(h.withIP(c), services.RegisterPractitionerInput{
		Email:           req.Email,
		Password:        req.Password,
		FirstName:       req.FirstName,
		LastName:        req.LastName,
		Specialty:       req.Specialty,
		LicenseNumber:   req.LicenseNumber,
		Bio:             req.Bio,
		Languages:       joinList(req.Languages),
		YearsExperience: req.YearsExperience,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, toAuthResponse(res))
}

func (h *Handler) Me(c *gin.Context) {
	profile, err := h.svc.Auth.Me(c.Request.Context(), actor(c))
	if err != nil {
		respondError(c, err)
		return
	}
	resp := ProfileResponse{User: toUserResponse(&profile.User)}
	if profile.User.Company != nil {
		company := toCompanyResponse(profile.User.Company)
		resp.Company = &company
	}
	if profile.Employee != nil {
		employee := toEmployeeResponse(profile.Employee)
		resp.Employee = &employee
	}
	if profile.Practitioner != nil {
		p := *profile.Practitioner
		p.User = profile.User
		practitioner := toPractitionerResponse(&p)
		resp.Practitioner = &practitioner
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) ChangePassword(c *gin.Context) {
	var req ChangePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	if err := h.svc.Auth.ChangePassword(c.Request.Context(), actor(c), req.CurrentPassword, req.NewPassword); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) Logout(c *gin.Context) {
	claims, ok := middleware.Claims(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}
	if err := h.svc.Auth.Logout(c.Request.Context(), claims.ID, claims.ExpiresAt.Time); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// LookupInvitation lets the registration page show who invited the user.
func (h *Handler) LookupInvitation(c *gin.Context) {
	inv, err := h.svc.Invitations.Lookup(c.Request.Context(), c.Param("token"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toInvitationResponse(inv))
}

// withIP attaches the client address on routes that run before RequireAuth.
func (h *Handler) withIP(c *gin.Context) context.Context {
	return services.WithClientIP(c.Request.Context(), c.ClientIP())
}
