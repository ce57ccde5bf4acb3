package repository

import (
	"sort"
	"sync"
	"time"

	"earnx/internal/models"

	"gorm.io/gorm"
)

// MemoryUserStore mirrors UserRepository for the memory driver. Lookups that
// miss return gorm.ErrRecordNotFound and a duplicate email or Google ID
// returns gorm.ErrDuplicatedKey, as the translated SQL errors do.
type MemoryUserStore struct {
	mu    sync.RWMutex
	users map[string]models.User
}

func NewMemoryUserStore() *MemoryUserStore {
	return &MemoryUserStore{users: make(map[string]models.User)}
}

func (s *MemoryUserStore) Create(u *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[u.ID]; ok {
		return gorm.ErrDuplicatedKey
	}
	for _, other := range s.users {
		if other.Email == u.Email || (u.GoogleID != nil && other.GoogleID != nil && *other.GoogleID == *u.GoogleID) {
			return gorm.ErrDuplicatedKey
		}
	}
	now := time.Now()
	u.CreatedAt, u.UpdatedAt = now, now
	s.users[u.ID] = *u
	return nil
}

func (s *MemoryUserStore) find(match func(models.User) bool) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.users {
		if match(u) {
			found := u
			return &found, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (s *MemoryUserStore) GetByID(id string) (*models.User, error) {
	return s.find(func(u models.User) bool { return u.ID == id })
}

func (s *MemoryUserStore) GetByEmail(email string) (*models.User, error) {
	return s.find(func(u models.User) bool { return u.Email == email })
}

func (s *MemoryUserStore) GetByGoogleID(googleID string) (*models.User, error) {
	return s.find(func(u models.User) bool { return u.GoogleID != nil && *u.GoogleID == googleID })
}

func (s *MemoryUserStore) Update(u *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[u.ID]; !ok {
		return gorm.ErrRecordNotFound
	}
	u.UpdatedAt = time.Now()
	s.users[u.ID] = *u
	return nil
}

func (s *MemoryUserStore) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.users, id)
	return nil
}

// MemoryAuditLogStore mirrors AuditLogRepository for the memory driver.
type MemoryAuditLogStore struct {
	mu   sync.Mutex
	logs []models.AuditLog
}

func NewMemoryAuditLogStore() *MemoryAuditLogStore {
	return &MemoryAuditLogStore{}
}

func (s *MemoryAuditLogStore) Create(log *models.AuditLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	log.ID = uint(len(s.logs) + 1)
	if log.CreatedAt.IsZero() {
		log.CreatedAt = time.Now()
	}
	s.logs = append(s.logs, *log)
	return nil
}

func (s *MemoryAuditLogStore) ListByResource(resource, resourceID string, limit int) ([]models.AuditLog, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.AuditLog
	for _, l := range s.logs {
		if l.Resource == resource && l.ResourceID == resourceID {
			out = append(out, l)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
