package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"huntzen-care/models"
	"huntzen-care/services"
)

type CompanyRequest struct {
	Name         string `json:"name" binding:"required,max=200"`
	Domain       string `json:"domain" binding:"omitempty,fqdn"`
	Address      string `json:"address" binding:"max=500"`
	Phone        string `json:"phone" binding:"max=30"`
	MaxEmployees int    `json:"max_employees" binding:"min=0"`
}

type CompanyUpdateRequest struct {
	Name         *string `json:"name" binding:"omitempty,max=200"`
	Domain       *string `json:"domain" binding:"omitempty,max=253"`
	Address      *string `json:"address" binding:"omitempty,max=500"`
	Phone        *string `json:"phone" binding:"omitempty,max=30"`
	MaxEmployees *int    `json:"max_employees" binding:"omitempty,min=0"`
}

type RoleRequest struct {
	Role models.Role `json:"role" binding:"required,oneof=EMPLOYEE PRACTITIONER ADMIN_RH ADMIN_HUNTZEN SUPER_ADMIN"`
}

type VerifyRequest struct {
	Verified *bool `json:"verified" binding:"required"`
}

func (h *Handler) CreateCompany(c *gin.Context) {
	var req CompanyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	company, err := h.svc.Companies.Create(c.Request.Context(), actor(c), services.CompanyInput{
		Name:         req.Name,
		Domain:       req.Domain,
		Address:      req.Address,
		Phone:        req.Phone,
		MaxEmployees: req.MaxEmployees,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, toCompanyResponse(company))
}

func (h *Handler) ListCompanies(c *gin.Context) {
	active, err := queryBool(c, "active")
	if err != nil {
		badRequest(c, err.Error())
		return
	}
	res, err := h.svc.Companies.List(c.Request.Context(), actor(c), services.CompanyFilter{
		Search: c.Query("search"),
		Active: active,
		Page:   queryPage(c),
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toPage(res, toCompanyResponse))
}

func (h *Handler) GetCompany(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	company, err := h.svc.Companies.Get(c.Request.Context(), actor(c), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toCompanyResponse(company))
}

func (h *Handler) UpdateCompany(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req CompanyUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	company, err := h.svc.Companies.Update(c.Request.Context(), actor(c), id, services.CompanyUpdate{
		Name:         req.Name,
		Domain:       req.Domain,
		Address:      req.Address,
		Phone:        req.Phone,
		MaxEmployees: req.MaxEmployees,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toCompanyResponse(company))
}

func (h *Handler) SetCompanyStatus(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req StatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	company, err := h.svc.Companies.SetActive(c.Request.Context(), actor(c), id, *req.IsActive)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toCompanyResponse(company))
}

func (h *Handler) ListUsers(c *gin.Context) {
	companyID, err := queryUint(c, "company_id")
	if err != nil {
		badRequest(c, err.Error())
		return
	}
	active, err := queryBool(c, "active")
	if err != nil {
		badRequest(c, err.Error())
		return
	}
	role := models.Role(strings.ToUpper(c.Query("role")))
	if role != "" && !role.Valid() {
		badRequest(c, "invalid role")
		return
	}
	res, err := h.svc.Admin.ListUsers(c.Request.Context(), actor(c), services.UserFilter{
		Role:      role,
		CompanyID: companyID,
		Active:    active,
		Search:    c.Query("search"),
		Page:      queryPage(c),
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toPage(res, toUserResponse))
}

func (h *Handler) SetUserStatus(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req StatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	user, err := h.svc.Admin.SetUserActive(c.Request.Context(), actor(c), id, *req.IsActive)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toUserResponse(user))
}

func (h *Handler) ChangeUserRole(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req RoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	user, err := h.svc.Admin.ChangeRole(c.Request.Context(), actor(c), id, req.Role)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toUserResponse(user))
}

func (h *Handler) VerifyPractitioner(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req VerifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	p, err := h.svc.Admin.VerifyPractitioner(c.Request.Context(), actor(c), id, *req.Verified)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toPractitionerResponse(p))
}

func (h *Handler) PlatformStats(c *gin.Context) {
	stats, err := h.svc.Admin.PlatformStats(c.Request.Context(), actor(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (h *Handler) PlatformActivity(c *gin.Context) {
	f, ok := h.activityFilter(c)
	if !ok {
		return
	}
	res, err := h.svc.Admin.ListActivity(c.Request.Context(), actor(c), f)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toPage(res, toActivityResponse))
}
