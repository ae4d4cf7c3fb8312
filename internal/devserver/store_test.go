// ABOUTME: Tests for the dev server's in-memory stores
// ABOUTME: User accounts, admin seat cap, TTL entries and per-client attempt budgets

package devserver

import (
	"errors"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/uniportal/gradeportal/internal/identity"
)

func TestUserStore_Create(t *testing.T) {
	s := NewUserStore(bcrypt.MinCost)

	u, err := s.Create(&User{FirstName: "Ada", Email: " Ada@Uni.Test ", Role: identity.RoleStudent, IsActive: true}, "secret-pass", 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if u.ID == "" || u.Email != "ada@uni.test" {
		t.Errorf("unexpected user %+v", u)
	}
	if !u.CheckPassword("secret-pass") || u.CheckPassword("wrong") {
		t.Error("password check mismatch")
	}

	if _, err := s.Create(&User{Email: "ADA@uni.test", Role: identity.RoleTeacher}, "x", 1); !errors.Is(err, ErrEmailTaken) {
		t.Errorf("expected ErrEmailTaken, got %v", err)
	}

	got, ok := s.ByEmail("ada@UNI.test")
	if !ok || got.ID != u.ID {
		t.Errorf("expected lookup by email to find %s", u.ID)
	}
	if _, ok := s.ByID(u.ID); !ok {
		t.Error("expected lookup by id")
	}
}

func TestUserStore_AdminCap(t *testing.T) {
	s := NewUserStore(bcrypt.MinCost)
	admin := func(email string) *User { return &User{Email: email, Role: identity.RoleAdmin} }

	if _, err := s.Create(admin("a1@uni.test"), "pw", 1); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := s.Create(admin("a2@uni.test"), "pw", 1); !errors.Is(err, ErrAdminSeatsFull) {
		t.Errorf("expected ErrAdminSeatsFull, got %v", err)
	}
	if _, err := s.Create(admin("a3@uni.test"), "pw", -1); err != nil {
		t.Errorf("expected negative cap to disable the limit, got %v", err)
	}
	if _, err := s.Create(&User{Email: "t@uni.test", Role: identity.RoleTeacher}, "pw", 0); err != nil {
		t.Errorf("expected cap to apply to admins only, got %v", err)
	}
}

func TestUserStore_CopiesAreIndependent(t *testing.T) {
	s := NewUserStore(bcrypt.MinCost)
	u, _ := s.Create(&User{Email: "a@uni.test", Role: identity.RoleStudent, IsActive: true}, "pw", 1)

	u.IsActive = false
	got, _ := s.ByID(u.ID)
	if !got.IsActive {
		t.Error("expected stored user unaffected by caller mutation")
	}

	if err := s.SetActive(u.ID, false); err != nil {
		t.Fatal(err)
	}
	got, _ = s.ByID(u.ID)
	if got.IsActive {
		t.Error("expected SetActive to apply")
	}
	if err := s.SetActive("missing", true); !errors.Is(err, ErrUserNotFound) {
		t.Errorf("expected ErrUserNotFound, got %v", err)
	}
	if err := s.SetPassword("missing", "pw"); !errors.Is(err, ErrUserNotFound) {
		t.Errorf("expected ErrUserNotFound, got %v", err)
	}
}

func TestUserStore_SeedIsIdempotent(t *testing.T) {
	s := NewUserStore(bcrypt.MinCost)
	for i := 0; i < 2; i++ {
		if err := s.Seed(); err != nil {
			t.Fatalf("seed %d: %v", i, err)
		}
	}
	for _, email := range []string{"admin@uni.test", "teacher@uni.test", "student@uni.test"} {
		u, ok := s.ByEmail(email)
		if !ok || !u.CheckPassword(SeedPassword) {
			t.Errorf("expected seeded account %s", email)
		}
	}
}

func TestTTLStore_TakeIsSingleUse(t *testing.T) {
	s := NewTTLStore(time.Hour)
	s.SetWithTTL("reset:abc", "u1", time.Hour)

	var wins atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, ok := s.Take("reset:abc"); ok {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()

	if wins.Load() != 1 {
		t.Errorf("expected exactly one Take to win, got %d", wins.Load())
	}
	if s.Has("reset:abc") {
		t.Error("expected entry removed")
	}
}

func TestTTLStore_Expiry(t *testing.T) {
	s := NewTTLStore(time.Hour)
	s.SetWithTTL("k", true, 20*time.Millisecond)
	if !s.Has("k") {
		t.Fatal("expected live entry")
	}
	time.Sleep(40 * time.Millisecond)
	if _, ok := s.Get("k"); ok {
		t.Error("expected entry to expire")
	}
}

func TestAttemptLimiter(t *testing.T) {
	l := NewAttemptLimiter(2, 50*time.Millisecond)

	if left, _, ok := l.Take("10.0.0.1"); !ok || left != 1 {
		t.Fatalf("first attempt: ok=%v left=%d", ok, left)
	}
	if left, _, ok := l.Take("10.0.0.1"); !ok || left != 0 {
		t.Fatalf("second attempt: ok=%v left=%d", ok, left)
	}
	left, wait, ok := l.Take("10.0.0.1")
	if ok || left != 0 || wait <= 0 || wait > 50*time.Millisecond {
		t.Errorf("expected exhausted budget with a wait, got ok=%v left=%d wait=%v", ok, left, wait)
	}
	if _, _, ok := l.Take("10.0.0.2"); !ok {
		t.Error("expected clients to have separate budgets")
	}

	time.Sleep(60 * time.Millisecond)
	if left, _, ok := l.Take("10.0.0.1"); !ok || left != 1 {
		t.Errorf("expected a fresh budget after the window, got ok=%v left=%d", ok, left)
	}
}

func TestClientAddr(t *testing.T) {
	tests := []struct {
		name   string
		xff    string
		remote string
		want   string
	}{
		{"remote addr", "", "10.0.0.1:5555", "10.0.0.1"},
		{"forwarded", "203.0.113.9, 10.0.0.1", "10.0.0.1:5555", "203.0.113.9"},
		{"bad forwarded", "not-an-ip", "10.0.0.1:5555", "10.0.0.1"},
		{"no port", "", "10.0.0.7", "10.0.0.7"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest("GET", "/", nil)
			r.RemoteAddr = tt.remote
			if tt.xff != "" {
				r.Header.Set("X-Forwarded-For", tt.xff)
			}
			if got := clientAddr(r); got != tt.want {
				t.Errorf("clientAddr = %q, want %q", got, tt.want)
			}
		})
	}
}
