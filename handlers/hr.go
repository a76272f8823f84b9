package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"huntzen-care/models"
	"huntzen-care/services"
)

type CreateInvitationRequest struct {
	Email     string      `json:"email" binding:"required,email"`
	Role      models.Role `json:"role" binding:"omitempty,oneof=EMPLOYEE ADMIN_RH"`
	CompanyID *uint       `json:"company_id"`
}

type StatusRequest struct {
	IsActive *bool `json:"is_active" binding:"required"`
}

func (h *Handler) CreateInvitation(c *gin.Context) {
	var req CreateInvitationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	inv, err := h.svc.Invitations.Create(c.Request.Context(), actor(c), services.CreateInvitationInput{
		Email:     req.Email,
		Role:      req.Role,
		CompanyID: req.CompanyID,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	resp := toInvitationResponse(inv)
	resp.Token = inv.Token
	c.JSON(http.StatusCreated, resp)
}

func (h *Handler) ListInvitations(c *gin.Context) {
	companyID, err := queryUint(c, "company_id")
	if err != nil {
		badRequest(c, err.Error())
		return
	}
	status := models.InvitationStatus(strings.ToUpper(c.Query("status")))
	res, err := h.svc.Invitations.List(c.Request.Context(), actor(c), companyID, status, queryPage(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toPage(res, toInvitationResponse))
}

func (h *Handler) RevokeInvitation(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	inv, err := h.svc.Invitations.Revoke(c.Request.Context(), actor(c), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toInvitationResponse(inv))
}

func (h *Handler) ListEmployees(c *gin.Context) {
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
	res, err := h.svc.HR.ListEmployees(c.Request.Context(), actor(c), services.EmployeeFilter{
		CompanyID: companyID,
		Search:    c.Query("search"),
		Active:    active,
		Page:      queryPage(c),
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toPage(res, toEmployeeResponse))
}

func (h *Handler) GetEmployee(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	employee, err := h.svc.HR.GetEmployee(c.Request.Context(), actor(c), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toEmployeeResponse(employee))
}

func (h *Handler) SetEmployeeStatus(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req StatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	employee, err := h.svc.HR.SetEmployeeActive(c.Request.Context(), actor(c), id, *req.IsActive)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toEmployeeResponse(employee))
}

// CompanyStats serves aggregate usage only; no clinical content is exposed.
func (h *Handler) CompanyStats(c *gin.Context) {
	companyID, err := queryUint(c, "company_id")
	if err != nil {
		badRequest(c, err.Error())
		return
	}
	stats, err := h.svc.HR.CompanyStats(c.Request.Context(), actor(c), companyID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (h *Handler) activityFilter(c *gin.Context) (services.ActivityFilter, bool) {
	userID, err := queryUint(c, "user_id")
	if err != nil {
		badRequest(c, err.Error())
		return services.ActivityFilter{}, false
	}
	from, err := queryTime(c, "from")
	if err != nil {
		badRequest(c, err.Error())
		return services.ActivityFilter{}, false
	}
	to, err := queryTime(c, "to")
	if err != nil {
		badRequest(c, err.Error())
		return services.ActivityFilter{}, false
	}
	return services.ActivityFilter{
		UserID:     userID,
		Action:     c.Query("action"),
		EntityType: c.Query("entity_type"),
		From:       from,
		To:         to,
		Page:       queryPage(c),
	}, true
}

func (h *Handler) CompanyActivity(c *gin.Context) {
	f, ok := h.activityFilter(c)
	if !ok {
		return
	}
	res, err := h.svc.Activity.List(c.Request.Context(), actor(c), f)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toPage(res, toActivityResponse))
}
