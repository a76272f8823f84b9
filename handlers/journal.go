package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"huntzen-care/services"
)

type JournalRequest struct {
	Title     string   `json:"title" binding:"required,max=200"`
	Content   string   `json:"content" binding:"required,max=20000"`
	Mood      int      `json:"mood" binding:"required,min=1,max=10"`
	Tags      []string `json:"tags" binding:"max=20,dive,max=40"`
	IsPrivate *bool    `json:"is_private"`
}

type JournalUpdateRequest struct {
	Title     *string   `json:"title" binding:"omitempty,max=200"`
	Content   *string   `json:"content" binding:"omitempty,max=20000"`
	Mood      *int      `json:"mood" binding:"omitempty,min=1,max=10"`
	Tags      *[]string `json:"tags" binding:"omitempty,max=20"`
	IsPrivate *bool     `json:"is_private"`
}

func (h *Handler) CreateJournalEntry(c *gin.Context) {
	var req JournalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	entry, err := h.svc.Journal.Create(c.Request.Context(), actor(c), services.JournalInput{
		Title:     req.Title,
		Content:   req.Content,
		Mood:      req.Mood,
		Tags:      req.Tags,
		IsPrivate: req.IsPrivate,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, toJournalEntryResponse(entry))
}

func (h *Handler) ListJournalEntries(c *gin.Context) {
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
	res, err := h.svc.Journal.List(c.Request.Context(), actor(c), services.JournalFilter{
		From: from,
		To:   to,
		Tag:  c.Query("tag"),
		Page: queryPage(c),
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toPage(res, toJournalEntryResponse))
}

func (h *Handler) GetJournalEntry(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	entry, err := h.svc.Journal.Get(c.Request.Context(), actor(c), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toJournalEntryResponse(entry))
}

func (h *Handler) UpdateJournalEntry(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req JournalUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	entry, err := h.svc.Journal.Update(c.Request.Context(), actor(c), id, services.JournalUpdate{
		Title:     req.Title,
		Content:   req.Content,
		Mood:      req.Mood,
		Tags:      req.Tags,
		IsPrivate: req.IsPrivate,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toJournalEntryResponse(entry))
}

func (h *Handler) DeleteJournalEntry(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	if err := h.svc.Journal.Delete(c.Request.Context(), actor(c), id); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) MoodStats(c *gin.Context) {
	days := 0
	if raw := c.Query("days"); raw != "" {
		var err error
		if days, err = strconv.Atoi(raw); err != nil {
			badRequest(c, "invalid days")
			return
		}
	}
	stats, err := h.svc.Journal.MoodStats(c.Request.Context(), actor(c), days)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}
