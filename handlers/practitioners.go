package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"huntzen-care/services"
)

type ProfileUpdateRequest struct {
	Specialty       *string   `json:"specialty" binding:"omitempty,max=100"`
	Bio             *string   `json:"bio" binding:"omitempty,max=5000"`
	LicenseNumber   *string   `json:"license_number" binding:"omitempty,max=50"`
	Languages       *[]string `json:"languages" binding:"omitempty,max=20"`
	YearsExperience *int      `json:"years_experience" binding:"omitempty,min=0,max=80"`
	IsAvailable     *bool     `json:"is_available"`
}

type AvailabilitySlotRequest struct {
	DayOfWeek *int   `json:"day_of_week" binding:"required,min=0,max=6"`
	StartTime string `json:"start_time" binding:"required,len=5"`
	EndTime   string `json:"end_time" binding:"required,len=5"`
}

type AvailabilityRequest struct {
	Slots []AvailabilitySlotRequest `json:"slots" binding:"max=50,dive"`
}

type SlotsResponse struct {
	PractitionerID uint        `json:"practitioner_id"`
	Date           string      `json:"date"`
	Duration       int         `json:"duration"`
	Slots          []time.Time `json:"slots"`
}

func (h *Handler) ListPractitioners(c *gin.Context) {
	available, err := queryBool(c, "available")
	if err != nil {
		badRequest(c, err.Error())
		return
	}
	list, err := h.svc.Practitioners.List(c.Request.Context(), services.PractitionerFilter{
		Specialty:     c.Query("specialty"),
		OnlyAvailable: available != nil && *available,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toList(list, toPractitionerResponse))
}

func (h *Handler) SearchPractitioners(c *gin.Context) {
	limit, _ := strconv.Atoi(c.Query("limit"))
	list, err := h.svc.Practitioners.Search(c.Request.Context(), c.Query("q"), limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toList(list, toPractitionerResponse))
}

func (h *Handler) GetPractitioner(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	p, err := h.svc.Practitioners.Get(c.Request.Context(), actor(c), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toPractitionerResponse(p))
}

func (h *Handler) GetAvailability(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	if _, err := h.svc.Practitioners.Get(c.Request.Context(), actor(c), id); err != nil {
		respondError(c, err)
		return
	}
	slots, err := h.svc.Practitioners.GetAvailability(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toList(slots, toAvailabilityResponse))
}

// AvailableSlots lists bookable start times for ?date=YYYY-MM-DD.
func (h *Handler) AvailableSlots(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	date, err := time.Parse(time.DateOnly, c.Query("date"))
	if err != nil {
		badRequest(c, "date is required as YYYY-MM-DD")
		return
	}
	duration := 0
	if raw := c.Query("duration"); raw != "" {
		if duration, err = strconv.Atoi(raw); err != nil {
			badRequest(c, "invalid duration")
			return
		}
	}
	slots, err := h.svc.Practitioners.AvailableSlots(c.Request.Context(), id, date, duration)
	if err != nil {
		respondError(c, err)
		return
	}
	if duration == 0 {
		duration = 60
	}
	c.JSON(http.StatusOK, SlotsResponse{
		PractitionerID: id,
		Date:           date.Format(time.DateOnly),
		Duration:       duration,
		Slots:          slots,
	})
}

func (h *Handler) UpdateMyProfile(c *gin.Context) {
	var req ProfileUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	in := services.PractitionerProfileUpdate{
		Specialty:       req.Specialty,
		Bio:             req.Bio,
		LicenseNumber:   req.LicenseNumber,
		YearsExperience: req.YearsExperience,
		IsAvailable:     req.IsAvailable,
	}
	if req.Languages != nil {
		joined := joinList(*req.Languages)
		in.Languages = &joined
	}
	p, err := h.svc.Practitioners.UpdateProfile(c.Request.Context(), actor(c), in)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toPractitionerResponse(p))
}

func (h *Handler) SetMyAvailability(c *gin.Context) {
	var req AvailabilityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	slots := make([]services.AvailabilitySlot, 0, len(req.Slots))
	for _, s := range req.Slots {
		slots = append(slots, services.AvailabilitySlot{
			DayOfWeek: *s.DayOfWeek,
			StartTime: s.StartTime,
			EndTime:   s.EndTime,
		})
	}
	saved, err := h.svc.Practitioners.SetAvailability(c.Request.Context(), actor(c), slots)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toList(saved, toAvailabilityResponse))
}
