package services

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"gorm.io/gorm"

	"huntzen-care/models"
)

type JournalService struct {
	*core
}

type JournalInput struct {
	Title     string
	Content   string
	Mood      int
	Tags      []string
	IsPrivate *bool
}

// JournalUpdate holds optional changes; nil fields are left untouched.
type JournalUpdate struct {
	Title     *string
	Content   *string
	Mood      *int
	Tags      *[]string
	IsPrivate *bool
}

type JournalFilter struct {
	From *time.Time
	To   *time.Time
	Tag  string
	Page Page
}

type DailyMood struct {
	Date    string  `json:"date"`
	Average float64 `json:"average"`
	Entries int     `json:"entries"`
}

type MoodStats struct {
	Days    int         `json:"days"`
	Entries int         `json:"entries"`
	Average float64     `json:"average"`
	Min     int         `json:"min"`
	Max     int         `json:"max"`
	Series  []DailyMood `json:"series"`
}

func validateMood(mood int) error {
	if mood < 1 || mood > 10 {
		return invalidf("mood must be between 1 and 10")
	}
	return nil
}

// joinTags lowercases, trims and dedupes tags into the stored form.
func joinTags(tags []string) string {
	seen := map[string]bool{}
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		t = strings.ToLower(strings.TrimSpace(t))
		t = strings.ReplaceAll(t, ",", "")
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return strings.Join(out, ",")
}

func (s *JournalService) Create(ctx context.Context, actor Actor, in JournalInput) (*models.JournalEntry, error) {
	if err := actor.require(models.RoleEmployee); err != nil {
		return nil, err
	}
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return nil, invalidf("title is required")
	}
	if strings.TrimSpace(in.Content) == "" {
		return nil, invalidf("content is required")
	}
	if err := validateMood(in.Mood); err != nil {
		return nil, err
	}
	private := true
	if in.IsPrivate != nil {
		private = *in.IsPrivate
	}

	entry := models.JournalEntry{
		UserID:    actor.UserID,
		Title:     title,
		Content:   in.Content,
		Mood:      in.Mood,
		Tags:      joinTags(in.Tags),
		IsPrivate: private,
	}
	if err := s.db.WithContext(ctx).Create(&entry).Error; err != nil {
		return nil, fmt.Errorf("create journal entry: %w", err)
	}
	return &entry, nil
}

func (s *JournalService) List(ctx context.Context, actor Actor, f JournalFilter) (PageResult[models.JournalEntry], error) {
	if err := actor.require(models.RoleEmployee); err != nil {
		return PageResult[models.JournalEntry]{}, err
	}
	page := f.Page.normalize()
	q := s.db.WithContext(ctx).Model(&models.JournalEntry{}).Where("user_id = ?", actor.UserID)
	if f.From != nil {
		q = q.Where("created_at >= ?", f.From.UTC())
	}
	if f.To != nil {
		q = q.Where("created_at <= ?", f.To.UTC())
	}
	if tag := joinTags([]string{f.Tag}); tag != "" {
		q = q.Where("(',' || tags || ',') LIKE ? ESCAPE '\\'", "%,"+escapeLike(tag)+",%")
	}

	q = q.Session(&gorm.Session{})
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return PageResult[models.JournalEntry]{}, fmt.Errorf("count journal entries: %w", err)
	}
	var items []models.JournalEntry
	if err := q.Order("created_at DESC").Order("id DESC").Offset(page.offset()).Limit(page.Limit).Find(&items).Error; err != nil {
		return PageResult[models.JournalEntry]{}, fmt.Errorf("list journal entries: %w", err)
	}
	return newPageResult(items, total, page), nil
}

// Get returns one of the actor's entries. Other users' entries are reported
// as missing.
func (s *JournalService) Get(ctx context.Context, actor Actor, id uint) (*models.JournalEntry, error) {
	if err := actor.require(models.RoleEmployee); err != nil {
		return nil, err
	}
	var entry models.JournalEntry
	if err := s.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, actor.UserID).First(&entry).Error; err != nil {
		return nil, lookup(err, "journal entry")
	}
	return &entry, nil
}

func (s *JournalService) Update(ctx context.Context, actor Actor, id uint, in JournalUpdate) (*models.JournalEntry, error) {
	entry, err := s.Get(ctx, actor, id)
	if err != nil {
		return nil, err
	}

	changes := map[string]interface{}{}
	if in.Title != nil {
		title := strings.TrimSpace(*in.Title)
		if title == "" {
			return nil, invalidf("title cannot be empty")
		}
		changes["title"] = title
	}
	if in.Content != nil {
		if strings.TrimSpace(*in.Content) == "" {
			return nil, invalidf("content cannot be empty")
		}
		changes["content"] = *in.Content
	}
	if in.Mood != nil {
		if err := validateMood(*in.Mood); err != nil {
			return nil, err
		}
		changes["mood"] = *in.Mood
	}
	if in.Tags != nil {
		changes["tags"] = joinTags(*in.Tags)
	}
	if in.IsPrivate != nil {
		changes["is_private"] = *in.IsPrivate
	}
	if len(changes) == 0 {
		return entry, nil
	}

	if err := s.db.WithContext(ctx).Model(entry).Updates(changes).Error; err != nil {
		return nil, fmt.Errorf("update journal entry: %w", err)
	}
	return s.Get(ctx, actor, id)
}

func (s *JournalService) Delete(ctx context.Context, actor Actor, id uint) error {
	if err := actor.require(models.RoleEmployee); err != nil {
		return err
	}
	res := s.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, actor.UserID).Delete(&models.JournalEntry{})
	if res.Error != nil {
		return fmt.Errorf("delete journal entry: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return notFoundf("journal entry not found")
	}
	return nil
}

// MoodStats summarises the actor's mood over the last days (30 by default).
func (s *JournalService) MoodStats(ctx context.Context, actor Actor, days int) (*MoodStats, error) {
	if err := actor.require(models.RoleEmployee); err != nil {
		return nil, err
	}
	if days <= 0 {
		days = 30
	}
	if days > 365 {
		return nil, invalidf("days cannot exceed 365")
	}
	since := s.clock().AddDate(0, 0, -days)

	var entries []models.JournalEntry
	err := s.db.WithContext(ctx).
		Select("mood", "created_at").
		Where("user_id = ? AND created_at >= ?", actor.UserID, since).
		Find(&entries).Error
	if err != nil {
		return nil, fmt.Errorf("load moods: %w", err)
	}

	stats := &MoodStats{Days: days, Entries: len(entries), Series: []DailyMood{}}
	if len(entries) == 0 {
		return stats, nil
	}

	type bucket struct{ sum, n int }
	byDay := map[string]*bucket{}
	total := 0
	stats.Min, stats.Max = entries[0].Mood, entries[0].Mood
	for _, e := range entries {
		total += e.Mood
		stats.Min = min(stats.Min, e.Mood)
		stats.Max = max(stats.Max, e.Mood)
		day := e.CreatedAt.UTC().Format(time.DateOnly)
		b, ok := byDay[day]
		if !ok {
			b = &bucket{}
			byDay[day] = b
		}
		b.sum += e.Mood
		b.n++
	}
	stats.Average = round2(float64(total) / float64(len(entries)))
	for day, b := range byDay {
		stats.Series = append(stats.Series, DailyMood{Date: day, Average: round2(float64(b.sum) / float64(b.n)), Entries: b.n})
	}
	sort.Slice(stats.Series, func(i, j int) bool { return stats.Series[i].Date < stats.Series[j].Date })
	return stats, nil
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
