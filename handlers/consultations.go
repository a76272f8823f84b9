package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"huntzen-care/models"
	"huntzen-care/services"
)

type BookRequest struct {
	PractitionerID uint                    `json:"practitioner_id" binding:"required"`
	ScheduledAt    time.Time               `json:"scheduled_at" binding:"required"`
	Duration       int                     `json:"duration" binding:"omitempty,min=15,max=180"`
	Type           models.ConsultationType `json:"type" binding:"omitempty,oneof=VIDEO PHONE IN_PERSON"`
	Reason         string                  `json:"reason" binding:"max=2000"`
}

type CancelRequest struct {
	Reason string `json:"reason" binding:"max=1000"`
}

type NotesRequest struct {
	Notes string `json:"notes" binding:"max=20000"`
}

type RescheduleRequest struct {
	ScheduledAt time.Time `json:"scheduled_at" binding:"required"`
	Duration    int       `json:"duration" binding:"omitempty,min=15,max=180"`
}

func (h *Handler) BookConsultation(c *gin.Context) {
	var req BookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	consultation, err := h.svc.Consultations.Book(c.Request.Context(), actor(c), services.BookInput{
		PractitionerID: req.PractitionerID,
		ScheduledAt:    req.ScheduledAt,
		Duration:       req.Duration,
		Type:           req.Type,
		Reason:         req.Reason,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, toConsultationResponse(consultation))
}

func (h *Handler) ListConsultations(c *gin.Context) {
	from, err := queryTime(c, "from")
	if err != nil {
		badRequest(c, err.Error())
		return
	}
	to, err := queryTime(c, "to")
	if err != nil {
		badRequest(c, err.Error())
		return
	}
	companyID, err := queryUint(c, "company_id")
	if err != nil {
		badRequest(c, err.Error())
		return
	}
	res, err := h.svc.Consultations.List(c.Request.Context(), actor(c), services.ConsultationFilter{
		Status:    models.ConsultationStatus(strings.ToUpper(c.Query("status"))),
		From:      from,
		To:        to,
		CompanyID: companyID,
		Page:      queryPage(c),
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toPage(res, toConsultationResponse))
}

func (h *Handler) GetConsultation(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	consultation, err := h.svc.Consultations.Get(c.Request.Context(), actor(c), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toConsultationResponse(consultation))
}

func (h *Handler) ConfirmConsultation(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	consultation, err := h.svc.Consultations.Confirm(c.Request.Context(), actor(c), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toConsultationResponse(consultation))
}

func (h *Handler) CancelConsultation(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req CancelRequest
	// the body is optional
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}
	}
	consultation, err := h.svc.Consultations.Cancel(c.Request.Context(), actor(c), id, req.Reason)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toConsultationResponse(consultation))
}

func (h *Handler) CompleteConsultation(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req NotesRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}
	}
	consultation, err := h.svc.Consultations.Complete(c.Request.Context(), actor(c), id, req.Notes)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toConsultationResponse(consultation))
}

func (h *Handler) RescheduleConsultation(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req RescheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	consultation, err := h.svc.Consultations.Reschedule(c.Request.Context(), actor(c), id, req.ScheduledAt, req.Duration)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toConsultationResponse(consultation))
}

func (h *Handler) UpdateConsultationNotes(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req NotesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	consultation, err := h.svc.Consultations.UpdateNotes(c.Request.Context(), actor(c), id, req.Notes)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toConsultationResponse(consultation))
}
