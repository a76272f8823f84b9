package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"huntzen-care/services"
)

type ContactRequest struct {
	CompanyID    *uint  `json:"company_id"`
	Name         string `json:"name" binding:"required,max=200"`
	Phone        string `json:"phone" binding:"required,max=30"`
	Description  string `json:"description" binding:"max=1000"`
	Available24h bool   `json:"available_24h"`
	Priority     int    `json:"priority" binding:"min=0,max=100"`
}

type ContactUpdateRequest struct {
	Name         *string `json:"name" binding:"omitempty,max=200"`
	Phone        *string `json:"phone" binding:"omitempty,max=30"`
	Description  *string `json:"description" binding:"omitempty,max=1000"`
	Available24h *bool   `json:"available_24h"`
	Priority     *int    `json:"priority" binding:"omitempty,min=0,max=100"`
}

type ResourceRequest struct {
	CompanyID   *uint  `json:"company_id"`
	Title       string `json:"title" binding:"required,max=200"`
	Description string `json:"description" binding:"max=5000"`
	URL         string `json:"url" binding:"omitempty,url"`
	Category    string `json:"category" binding:"max=100"`
}

type ResourceUpdateRequest struct {
	Title       *string `json:"title" binding:"omitempty,max=200"`
	Description *string `json:"description" binding:"omitempty,max=5000"`
	URL         *string `json:"url" binding:"omitempty,max=2000"`
	Category    *string `json:"category" binding:"omitempty,max=100"`
}

func (h *Handler) ListContacts(c *gin.Context) {
	list, err := h.svc.Emergency.ListContacts(c.Request.Context(), actor(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toList(list, toContactResponse))
}

func (h *Handler) CreateContact(c *gin.Context) {
	var req ContactRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	contact, err := h.svc.Emergency.CreateContact(c.Request.Context(), actor(c), services.ContactInput{
		CompanyID:    req.CompanyID,
		Name:         req.Name,
		Phone:        req.Phone,
		Description:  req.Description,
		Available24h: req.Available24h,
		Priority:     req.Priority,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, toContactResponse(contact))
}

func (h *Handler) UpdateContact(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req ContactUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	contact, err := h.svc.Emergency.UpdateContact(c.Request.Context(), actor(c), id, services.ContactUpdate{
		Name:         req.Name,
		Phone:        req.Phone,
		Description:  req.Description,
		Available24h: req.Available24h,
		Priority:     req.Priority,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toContactResponse(contact))
}

func (h *Handler) DeleteContact(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	if err := h.svc.Emergency.DeleteContact(c.Request.Context(), actor(c), id); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) ListResources(c *gin.Context) {
	list, err := h.svc.Emergency.ListResources(c.Request.Context(), actor(c), c.Query("category"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toList(list, toResourceResponse))
}

func (h *Handler) CreateResource(c *gin.Context) {
	var req ResourceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	resource, err := h.svc.Emergency.CreateResource(c.Request.Context(), actor(c), services.ResourceInput{
		CompanyID:   req.CompanyID,
		Title:       req.Title,
		Description: req.Description,
		URL:         req.URL,
		Category:    req.Category,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, toResourceResponse(resource))
}

func (h *Handler) UpdateResource(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req ResourceUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	resource, err := h.svc.Emergency.UpdateResource(c.Request.Context(), actor(c), id, services.ResourceUpdate{
		Title:       req.Title,
		Description: req.Description,
		URL:         req.URL,
		Category:    req.Category,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toResourceResponse(resource))
}

func (h *Handler) DeleteResource(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	if err := h.svc.Emergency.DeleteResource(c.Request.Context(), actor(c), id); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
