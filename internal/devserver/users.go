// ABOUTME: In-memory user accounts for the development API server
// ABOUTME: bcrypt password hashes, email index and the admin seat cap

package devserver

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/uniportal/gradeportal/internal/identity"
)

var (
	ErrEmailTaken     = errors.New("email already registered")
	ErrAdminSeatsFull = errors.New("admin seats are full")
	ErrUserNotFound   = errors.New("user not found")
)

// User is a stored account.
type User struct {
	ID           string
	FirstName    string
	LastName     string
	Email        string
	Role         identity.Role
	IsActive     bool
	StudentID    string
	EmployeeID   string
	YearLevel    int
	PasswordHash []byte
	CreatedAt    time.Time
}

// userJSON is the wire form of a user. The id is sent as "_id".
type userJSON struct {
	ID         string        `json:"_id"`
	FirstName  string        `json:"firstName"`
	LastName   string        `json:"lastName"`
	Email      string        `json:"email"`
	Role       identity.Role `json:"role"`
	IsActive   bool          `json:"isActive"`
	StudentID  string        `json:"studentId,omitempty"`
	EmployeeID string        `json:"employeeId,omitempty"`
	YearLevel  int           `json:"yearLevel,omitempty"`
}

func (u *User) toJSON() userJSON {
	return userJSON{
		ID:         u.ID,
		FirstName:  u.FirstName,
		LastName:   u.LastName,
		Email:      u.Email,
		Role:       u.Role,
		IsActive:   u.IsActive,
		StudentID:  u.StudentID,
		EmployeeID: u.EmployeeID,
		YearLevel:  u.YearLevel,
	}
}

// CheckPassword reports whether pwd matches the stored hash.
func (u *User) CheckPassword(pwd string) bool {
	return bcrypt.CompareHashAndPassword(u.PasswordHash, []byte(pwd)) == nil
}

// UserStore holds accounts in memory. Safe for concurrent use.
type UserStore struct {
	mu      sync.RWMutex
	byID    map[string]*User
	byEmail map[string]string
	cost    int
}

// NewUserStore creates an empty store hashing passwords at cost.
func NewUserStore(cost int) *UserStore {
	if cost < bcrypt.MinCost {
		cost = bcrypt.DefaultCost
	}
	return &UserStore{
		byID:    make(map[string]*User),
		byEmail: make(map[string]string),
		cost:    cost,
	}
}

// Create stores u with a hash of password. When u is an admin and maxAdmins
// admins already exist, it fails with ErrAdminSeatsFull. maxAdmins < 0
// disables the cap.
func (s *UserStore) Create(u *User, password string, maxAdmins int) (*User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	u.Email = identity.NormalizeEmail(u.Email)
	if _, exists := s.byEmail[u.Email]; exists {
		return nil, ErrEmailTaken
	}
	if u.Role == identity.RoleAdmin && maxAdmins >= 0 && s.countRole(identity.RoleAdmin) >= maxAdmins {
		return nil, ErrAdminSeatsFull
	}

	stored := *u
	stored.ID = uuid.NewString()
	stored.PasswordHash = hash
	stored.CreatedAt = time.Now()
	s.byID[stored.ID] = &stored
	s.byEmail[stored.Email] = stored.ID

	cp := stored
	return &cp, nil
}

// countRole counts users with role. Callers hold s.mu.
func (s *UserStore) countRole(role identity.Role) int {
	n := 0
	for _, u := range s.byID {
		if u.Role == role {
			n++
		}
	}
	return n
}

// ByEmail looks a user up by normalized email.
func (s *UserStore) ByEmail(email string) (*User, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byEmail[identity.NormalizeEmail(email)]
	if !ok {
		return nil, false
	}
	cp := *s.byID[id]
	return &cp, true
}

// ByID looks a user up by id.
func (s *UserStore) ByID(id string) (*User, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.byID[id]
	if !ok {
		return nil, false
	}
	cp := *u
	return &cp, true
}

// SetPassword replaces a user's password.
func (s *UserStore) SetPassword(id, password string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.byID[id]
	if !ok {
		return ErrUserNotFound
	}
	u.PasswordHash = hash
	return nil
}

// SetActive enables or disables an account.
func (s *UserStore) SetActive(id string, active bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.byID[id]
	if !ok {
		return ErrUserNotFound
	}
	u.IsActive = active
	return nil
}

// SeedPassword is the password of every seeded account.
const SeedPassword = "password123"

// Seed creates one account per role.
func (s *UserStore) Seed() error {
	seeds := []*User{
		{FirstName: "Ada", LastName: "Admin", Email: "admin@uni.test", Role: identity.RoleAdmin, IsActive: true, EmployeeID: "EMP-0001"},
		{FirstName: "Tomas", LastName: "Teacher", Email: "teacher@uni.test", Role: identity.RoleTeacher, IsActive: true, EmployeeID: "EMP-0002"},
		{FirstName: "Sofia", LastName: "Student", Email: "student@uni.test", Role: identity.RoleStudent, IsActive: true, StudentID: "2024-00001", YearLevel: 1},
	}
	for _, u := range seeds {
		if _, err := s.Create(u, SeedPassword, -1); err != nil && !errors.Is(err, ErrEmailTaken) {
			return err
		}
	}
	return nil
}
