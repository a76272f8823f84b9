package services

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"huntzen-care/logger"
	"huntzen-care/models"
	"huntzen-care/utils"
)

const testPassword = "password123"

var (
	hashOnce   sync.Once
	cachedHash string
)

func passwordHash(t *testing.T) string {
	t.Helper()
	hashOnce.Do(func() {
		h, err := utils.HashPassword(testPassword)
		if err != nil {
			panic(err)
		}
		cachedHash = h
	})
	return cachedHash
}

// monday is the default clock for service tests.
var monday = time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)

type testEnv struct {
	db    *gorm.DB
	svc   *Services
	cache *memCache
	now   time.Time
}

type envOption func(*Options)

func withCache(c *memCache) envOption {
	return func(o *Options) { o.Cache = c }
}

func withEvents(p EventPublisher) envOption {
	return func(o *Options) { o.Events = p }
}

func withSearch(s SearchIndex) envOption {
	return func(o *Options) { o.Search = s }
}

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := models.OpenDatabase("sqlite", dsn, true)
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, models.AutoMigrate(db))
	t.Cleanup(func() { _ = models.CloseDatabase(db) })
	return db
}

func newTestEnv(t *testing.T, opts ...envOption) *testEnv {
	t.Helper()
	env := &testEnv{db: openTestDB(t), now: monday}
	o := Options{
		DB:     env.db,
		Logger: logger.Discard(),
		Tokens: utils.NewTokenIssuer("test-secret", time.Hour),
		Now:    func() time.Time { return env.now },
	}
	for _, opt := range opts {
		opt(&o)
	}
	if c, ok := o.Cache.(*memCache); ok {
		env.cache = c
	}
	env.svc = New(o)
	return env
}

func (e *testEnv) advance(d time.Duration) {
	e.now = e.now.Add(d)
}

func (e *testEnv) company(t *testing.T, name string) *models.Company {
	t.Helper()
	c := models.Company{Name: name, IsActive: true}
	require.NoError(t, e.db.Create(&c).Error)
	return &c
}

func (e *testEnv) user(t *testing.T, role models.Role, companyID *uint) models.User {
	t.Helper()
	id := uuid.NewString()[:8]
	u := models.User{
		Email:        strings.ToLower(string(role)) + "-" + id + "@example.com",
		PasswordHash: passwordHash(t),
		FirstName:    "First" + id,
		LastName:     "Last" + id,
		Role:         role,
		CompanyID:    companyID,
		IsActive:     true,
	}
	require.NoError(t, e.db.Create(&u).Error)
	return u
}

func actorOf(u models.User) Actor {
	return Actor{UserID: u.ID, Role: u.Role, CompanyID: u.CompanyID}
}

func (e *testEnv) employee(t *testing.T, company *models.Company) (Actor, models.Employee) {
	t.Helper()
	u := e.user(t, models.RoleEmployee, &company.ID)
	emp := models.Employee{UserID: u.ID, CompanyID: company.ID, Department: "Engineering"}
	require.NoError(t, e.db.Create(&emp).Error)
	emp.User = u
	return actorOf(u), emp
}

func (e *testEnv) practitioner(t *testing.T, specialty string, verified bool) (Actor, models.Practitioner) {
	t.Helper()
	u := e.user(t, models.RolePractitioner, nil)
	p := models.Practitioner{
		UserID:        u.ID,
		Specialty:     specialty,
		LicenseNumber: "LIC-" + uuid.NewString()[:6],
		IsAvailable:   true,
	}
	require.NoError(t, e.db.Create(&p).Error)
	if verified {
		require.NoError(t, e.db.Model(&models.Practitioner{}).Where("id = ?", p.ID).Update("is_verified", true).Error)
		p.IsVerified = true
	}
	p.User = u
	return actorOf(u), p
}

func (e *testEnv) hrAdmin(t *testing.T, company *models.Company) Actor {
	t.Helper()
	return actorOf(e.user(t, models.RoleAdminRH, &company.ID))
}

func (e *testEnv) platformAdmin(t *testing.T, role models.Role) Actor {
	t.Helper()
	return actorOf(e.user(t, role, nil))
}

// tomorrowAt returns a time on the day after the test clock's current day.
func (e *testEnv) tomorrowAt(hour, minute int) time.Time {
	d := e.now.AddDate(0, 0, 1)
	return time.Date(d.Year(), d.Month(), d.Day(), hour, minute, 0, 0, time.UTC)
}

func (e *testEnv) book(t *testing.T, actor Actor, practitionerID uint, start time.Time, minutes int) *models.Consultation {
	t.Helper()
	c, err := e.svc.Consultations.Book(context.Background(), actor, BookInput{
		PractitionerID: practitionerID,
		ScheduledAt:    start,
		Duration:       minutes,
		Type:           models.TypeVideo,
		Reason:         "stress at work",
	})
	require.NoError(t, err)
	return c
}

func (e *testEnv) notificationCount(t *testing.T, userID uint) int64 {
	t.Helper()
	var n int64
	require.NoError(t, e.db.Model(&models.Notification{}).Where("user_id = ?", userID).Count(&n).Error)
	return n
}

// memCache is an in-process Cache.
type memCache struct {
	mu   sync.Mutex
	data map[string]string
}

func newMemCache() *memCache {
	return &memCache{data: map[string]string{}}
}

func (m *memCache) GetFromCache(_ context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	if !ok {
		return "", utils.ErrCacheMiss
	}
	return v, nil
}

func (m *memCache) SetToCache(_ context.Context, key string, value string, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	return nil
}

func (m *memCache) DeleteFromCache(_ context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		delete(m.data, k)
	}
	return nil
}

func (m *memCache) DeleteByPrefix(_ context.Context, prefix string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for k := range m.data {
		if strings.HasPrefix(k, prefix) {
			delete(m.data, k)
		}
	}
	return nil
}

func (m *memCache) has(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.data[key]
	return ok
}
