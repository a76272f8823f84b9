package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"gorm.io/gorm"

	"huntzen-care/models"
)

type PractitionerService struct {
	*core
	activity *ActivityService
	search   SearchIndex
	index    string
}

type PractitionerFilter struct {
	Specialty     string
	OnlyAvailable bool
}

// PractitionerProfileUpdate holds optional changes; nil fields are left
// untouched.
type PractitionerProfileUpdate struct {
	Specialty       *string
	Bio             *string
	LicenseNumber   *string
	Languages       *string
	YearsExperience *int
	IsAvailable     *bool
}

// publicPractitioners restricts a query to practitioners employees may see.
func (s *PractitionerService) publicPractitioners(q *gorm.DB) *gorm.DB {
	activeUsers := s.db.Model(&models.User{}).Select("id").Where("is_active = ?", true)
	return q.Where("is_verified = ? AND user_id IN (?)", true, activeUsers)
}

func (s *PractitionerService) List(ctx context.Context, f PractitionerFilter) ([]models.Practitioner, error) {
	specialty := strings.ToLower(strings.TrimSpace(f.Specialty))
	key := fmt.Sprintf("%slist:%s:%t", cachePrefixPractitioners, specialty, f.OnlyAvailable)

	var out []models.Practitioner
	err := s.cached(ctx, key, &out, func() error {
		q := s.publicPractitioners(s.db.WithContext(ctx).Model(&models.Practitioner{}))
		if specialty != "" {
			q = q.Where("LOWER(specialty) = ?", specialty)
		}
		if f.OnlyAvailable {
			q = q.Where("is_available = ?", true)
		}
		if err := q.Preload("User").Order("id ASC").Find(&out).Error; err != nil {
			return fmt.Errorf("list practitioners: %w", err)
		}
		for i := range out {
			out[i].User.PasswordHash = ""
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = []models.Practitioner{}
	}
	return out, nil
}

// Get returns a practitioner with its active availability. Hidden
// practitioners are only visible to themselves and platform admins.
func (s *PractitionerService) Get(ctx context.Context, actor Actor, id uint) (*models.Practitioner, error) {
	var p models.Practitioner
	err := s.db.WithContext(ctx).
		Preload("User").
		Preload("Availabilities", func(db *gorm.DB) *gorm.DB {
			return db.Where("is_active = ?", true).Order("day_of_week ASC").Order("start_time ASC")
		}).
		First(&p, id).Error
	if err != nil {
		return nil, lookup(err, "practitioner")
	}
	visible := p.IsVerified && p.User.IsActive
	if !visible && p.UserID != actor.UserID && !actor.Role.IsPlatformAdmin() {
		return nil, notFoundf("practitioner not found")
	}
	return &p, nil
}

// byUser loads the practitioner record of the acting user.
func (s *PractitionerService) byUser(ctx context.Context, actor Actor) (*models.Practitioner, error) {
	if err := actor.require(models.RolePractitioner); err != nil {
		return nil, err
	}
	var p models.Practitioner
	if err := s.db.WithContext(ctx).Preload("User").Where("user_id = ?", actor.UserID).First(&p).Error; err != nil {
		return nil, lookup(err, "practitioner profile")
	}
	return &p, nil
}

func (s *PractitionerService) UpdateProfile(ctx context.Context, actor Actor, in PractitionerProfileUpdate) (*models.Practitioner, error) {
	p, err := s.byUser(ctx, actor)
	if err != nil {
		return nil, err
	}

	changes := map[string]interface{}{}
	if in.Specialty != nil {
		v := strings.TrimSpace(*in.Specialty)
		if v == "" {
			return nil, invalidf("specialty cannot be empty")
		}
		changes["specialty"] = v
	}
	if in.LicenseNumber != nil {
		v := strings.TrimSpace(*in.LicenseNumber)
		if v == "" {
			return nil, invalidf("license number cannot be empty")
		}
		changes["license_number"] = v
	}
	if in.Bio != nil {
		changes["bio"] = *in.Bio
	}
	if in.Languages != nil {
		changes["languages"] = *in.Languages
	}
	if in.YearsExperience != nil {
		if *in.YearsExperience < 0 {
			return nil, invalidf("years of experience cannot be negative")
		}
		changes["years_experience"] = *in.YearsExperience
	}
	if in.IsAvailable != nil {
		changes["is_available"] = *in.IsAvailable
	}
	if len(changes) == 0 {
		return p, nil
	}

	if err := s.db.WithContext(ctx).Model(&models.Practitioner{}).Where("id = ?", p.ID).Updates(changes).Error; err != nil {
		return nil, fmt.Errorf("update practitioner: %w", err)
	}
	if err := s.db.WithContext(ctx).Preload("User").First(p, p.ID).Error; err != nil {
		return nil, err
	}
	s.activity.Log(ctx, actor.UserID, ActionPractitionerUpdated, "practitioner", p.ID, "")
	s.practitionerChanged(ctx, EventPractitionerUpdated, p.ID, p.UserID)
	return p, nil
}

// Search queries the directory index and falls back to the database when the
// index is not configured or fails.
func (s *PractitionerService) Search(ctx context.Context, query string, limit int) ([]models.Practitioner, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return s.List(ctx, PractitionerFilter{})
	}
	if limit <= 0 || limit > maxPageSize {
		limit = defaultPageSize
	}

	if s.search != nil {
		ids, err := s.searchIndex(ctx, query, limit)
		if err == nil {
			return s.loadOrdered(ctx, ids)
		}
		s.sideEffectFailed("search_query", err)
	}

	pattern := likePattern(query)
	matchingUsers := s.db.Model(&models.User{}).Select("id").
		Where("LOWER(first_name) LIKE ? ESCAPE '\\' OR LOWER(last_name) LIKE ? ESCAPE '\\'", pattern, pattern)
	q := s.publicPractitioners(s.db.WithContext(ctx).Model(&models.Practitioner{})).
		Where("LOWER(specialty) LIKE ? ESCAPE '\\' OR LOWER(bio) LIKE ? ESCAPE '\\' OR LOWER(languages) LIKE ? ESCAPE '\\' OR user_id IN (?)",
			pattern, pattern, pattern, matchingUsers)

	var out []models.Practitioner
	if err := q.Preload("User").Order("id ASC").Limit(limit).Find(&out).Error; err != nil {
		return nil, fmt.Errorf("search practitioners: %w", err)
	}
	return out, nil
}

func (s *PractitionerService) searchIndex(ctx context.Context, query string, limit int) ([]uint, error) {
	hits, err := s.search.Search(ctx, s.index, map[string]interface{}{
		"size": limit,
		"query": map[string]interface{}{
			"multi_match": map[string]interface{}{
				"query":     query,
				"fields":    []string{"full_name^3", "specialty^2", "bio", "languages"},
				"fuzziness": "AUTO",
			},
		},
	})
	if err != nil {
		return nil, err
	}
	ids := make([]uint, 0, len(hits))
	for _, hit := range hits {
		if id, ok := documentID(hit["id"]); ok {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func documentID(v interface{}) (uint, bool) {
	switch id := v.(type) {
	case float64:
		return uint(id), id > 0
	case string:
		n, err := strconv.ParseUint(id, 10, 64)
		return uint(n), err == nil
	}
	return 0, false
}

// loadOrdered loads public practitioners keeping the ranking of ids.
func (s *PractitionerService) loadOrdered(ctx context.Context, ids []uint) ([]models.Practitioner, error) {
	out := []models.Practitioner{}
	if len(ids) == 0 {
		return out, nil
	}
	var found []models.Practitioner
	q := s.publicPractitioners(s.db.WithContext(ctx).Model(&models.Practitioner{})).Where("id IN ?", ids)
	if err := q.Preload("User").Find(&found).Error; err != nil {
		return nil, fmt.Errorf("load practitioners: %w", err)
	}
	byID := make(map[uint]models.Practitioner, len(found))
	for _, p := range found {
		byID[p.ID] = p
	}
	for _, id := range ids {
		if p, ok := byID[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

// PractitionerDocument is the search index representation.
type PractitionerDocument struct {
	ID              uint   `json:"id"`
	UserID          uint   `json:"user_id"`
	FullName        string `json:"full_name"`
	Specialty       string `json:"specialty"`
	Bio             string `json:"bio"`
	Languages       string `json:"languages"`
	YearsExperience int    `json:"years_experience"`
	IsAvailable     bool   `json:"is_available"`
}

// practitionerIndexDefinition maps PractitionerDocument. Free text goes
// through an asciifolding analyzer so "therapeute" matches "thérapeute".
var practitionerIndexDefinition = map[string]interface{}{
	"settings": map[string]interface{}{
		"number_of_shards":   1,
		"number_of_replicas": 0,
		"analysis": map[string]interface{}{
			"analyzer": map[string]interface{}{
				"folded": map[string]interface{}{
					"type":      "custom",
					"tokenizer": "standard",
					"filter":    []string{"lowercase", "asciifolding"},
				},
			},
		},
	},
	"mappings": map[string]interface{}{
		"dynamic": "strict",
		"properties": map[string]interface{}{
			"id":               map[string]interface{}{"type": "long"},
			"user_id":          map[string]interface{}{"type": "long"},
			"full_name":        map[string]interface{}{"type": "text", "analyzer": "folded"},
			"specialty":        map[string]interface{}{"type": "text", "analyzer": "folded", "fields": map[string]interface{}{"raw": map[string]interface{}{"type": "keyword"}}},
			"bio":              map[string]interface{}{"type": "text", "analyzer": "folded"},
			"languages":        map[string]interface{}{"type": "text", "analyzer": "folded"},
			"years_experience": map[string]interface{}{"type": "integer"},
			"is_available":     map[string]interface{}{"type": "boolean"},
		},
	},
}

// PractitionerIndexer keeps the search index in line with the database.
type PractitionerIndexer struct {
	db    *gorm.DB
	index SearchIndex
	name  string
}

func NewPractitionerIndexer(db *gorm.DB, index SearchIndex, name string) *PractitionerIndexer {
	return &PractitionerIndexer{db: db, index: index, name: name}
}

// Sync indexes a public practitioner and removes anyone else.
func (i *PractitionerIndexer) Sync(ctx context.Context, practitionerID uint) error {
	docID := strconv.FormatUint(uint64(practitionerID), 10)

	var p models.Practitioner
	err := i.db.WithContext(ctx).Preload("User").First(&p, practitionerID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return i.index.DeleteDocument(ctx, i.name, docID)
	}
	if err != nil {
		return fmt.Errorf("load practitioner: %w", err)
	}
	if !p.IsVerified || !p.User.IsActive {
		return i.index.DeleteDocument(ctx, i.name, docID)
	}
	return i.index.IndexDocument(ctx, i.name, docID, PractitionerDocument{
		ID:              p.ID,
		UserID:          p.UserID,
		FullName:        p.User.FullName(),
		Specialty:       p.Specialty,
		Bio:             p.Bio,
		Languages:       p.Languages,
		YearsExperience: p.YearsExperience,
		IsAvailable:     p.IsAvailable,
	})
}

// EnsureIndex creates the practitioner index with its mapping if missing.
func (i *PractitionerIndexer) EnsureIndex(ctx context.Context) error {
	if err := i.index.EnsureIndex(ctx, i.name, practitionerIndexDefinition); err != nil {
		return fmt.Errorf("ensure index %s: %w", i.name, err)
	}
	return nil
}

// Reindex syncs every practitioner and returns how many were processed.
func (i *PractitionerIndexer) Reindex(ctx context.Context) (int, error) {
	if err := i.EnsureIndex(ctx); err != nil {
		return 0, err
	}
	var ids []uint
	if err := i.db.WithContext(ctx).Model(&models.Practitioner{}).Pluck("id", &ids).Error; err != nil {
		return 0, err
	}
	for n, id := range ids {
		if err := i.Sync(ctx, id); err != nil {
			return n, fmt.Errorf("sync practitioner %d: %w", id, err)
		}
	}
	return len(ids), nil
}
