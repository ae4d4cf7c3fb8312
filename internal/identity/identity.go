// ABOUTME: Canonical identity record and server payload normalization
// ABOUTME: One decoder with fixed precedence for every auth response shape

package identity

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidPayload is returned when a response body does not contain the
// fields an auth operation needs.
var ErrInvalidPayload = errors.New("invalid auth payload")

// Identity is the resolved, authenticated user.
type Identity struct {
	ID         string `json:"id"`
	FirstName  string `json:"firstName"`
	LastName   string `json:"lastName"`
	FullName   string `json:"fullName"`
	Email      string `json:"email"`
	Role       Role   `json:"role"`
	IsActive   bool   `json:"isActive"`
	StudentID  string `json:"studentId,omitempty"`
	EmployeeID string `json:"employeeId,omitempty"`
	YearLevel  string `json:"yearLevel,omitempty"`
}

// DisplayName returns the full name, falling back to the email.
func (i *Identity) DisplayName() string {
	if i.FullName != "" {
		return i.FullName
	}
	return i.Email
}

// NormalizeEmail trims and lowercases an email address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// flexString accepts a JSON string or number. Servers disagree on whether ids
// and year levels are numeric.
type flexString string

func (f *flexString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*f = ""
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = flexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("expected string or number, got %s", b)
	}
	*f = flexString(n.String())
	return nil
}

// userPayload is the server's user object before normalization.
type userPayload struct {
	MongoID    flexString `json:"_id"`
	ID         flexString `json:"id"`
	FirstName  string     `json:"firstName"`
	LastName   string     `json:"lastName"`
	FullName   string     `json:"fullName"`
	Email      string     `json:"email"`
	Role       string     `json:"role"`
	IsActive   *bool      `json:"isActive"`
	StudentID  flexString `json:"studentId"`
	EmployeeID flexString `json:"employeeId"`
	YearLevel  flexString `json:"yearLevel"`
}

// envelope covers both the top level of a response and its "data" member.
type envelope struct {
	Data  json.RawMessage `json:"data"`
	Token string          `json:"token"`
	User  json.RawMessage `json:"user"`
}

func present(raw json.RawMessage) bool {
	raw = bytes.TrimSpace(raw)
	return len(raw) > 0 && !bytes.Equal(raw, []byte("null"))
}

func isObject(raw json.RawMessage) bool {
	raw = bytes.TrimSpace(raw)
	return len(raw) > 0 && raw[0] == '{'
}

// normalize converts a user object into the canonical Identity.
func normalize(raw json.RawMessage) (*Identity, error) {
	var u userPayload
	if err := json.Unmarshal(raw, &u); err != nil {
		return nil, fmt.Errorf("%w: user: %v", ErrInvalidPayload, err)
	}

	id := string(u.MongoID)
	if id == "" {
		id = string(u.ID)
	}
	if id == "" {
		return nil, fmt.Errorf("%w: user has no id", ErrInvalidPayload)
	}

	role, _ := ParseRole(u.Role)
	fullName := strings.TrimSpace(u.FullName)
	if fullName == "" {
		fullName = strings.TrimSpace(u.FirstName + " " + u.LastName)
	}
	active := true
	if u.IsActive != nil {
		active = *u.IsActive
	}

	return &Identity{
		ID:         id,
		FirstName:  u.FirstName,
		LastName:   u.LastName,
		FullName:   fullName,
		Email:      u.Email,
		Role:       role,
		IsActive:   active,
		StudentID:  string(u.StudentID),
		EmployeeID: string(u.EmployeeID),
		YearLevel:  string(u.YearLevel),
	}, nil
}

// locate finds the token and user object in a response body.
//
// Precedence:
//
//	token: data.token, token
//	user:  data.user, user, data (when data itself is a user object)
func locate(body []byte) (token string, user json.RawMessage, err error) {
	var outer envelope
	if err := json.Unmarshal(body, &outer); err != nil {
		return "", nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}

	var inner envelope
	if isObject(outer.Data) {
		if err := json.Unmarshal(outer.Data, &inner); err != nil {
			return "", nil, fmt.Errorf("%w: data: %v", ErrInvalidPayload, err)
		}
	}

	token = inner.Token
	if token == "" {
		token = outer.Token
	}

	switch {
	case present(inner.User):
		user = inner.User
	case present(outer.User):
		user = outer.User
	case isObject(outer.Data) && looksLikeUser(outer.Data):
		user = outer.Data
	}
	return token, user, nil
}

func looksLikeUser(raw json.RawMessage) bool {
	var ids struct {
		MongoID flexString `json:"_id"`
		ID      flexString `json:"id"`
	}
	if err := json.Unmarshal(raw, &ids); err != nil {
		return false
	}
	return ids.MongoID != "" || ids.ID != ""
}

// DecodeAuthPayload extracts the identity and token from a login or register
// response. Both are required.
func DecodeAuthPayload(body []byte) (*Identity, string, error) {
	token, user, err := locate(body)
	if err != nil {
		return nil, "", err
	}
	if token == "" {
		return nil, "", fmt.Errorf("%w: missing token", ErrInvalidPayload)
	}
	if user == nil {
		return nil, "", fmt.Errorf("%w: missing user", ErrInvalidPayload)
	}
	ident, err := normalize(user)
	if err != nil {
		return nil, "", err
	}
	return ident, token, nil
}

// DecodeUserPayload extracts the identity from a who-am-I response.
func DecodeUserPayload(body []byte) (*Identity, error) {
	_, user, err := locate(body)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, fmt.Errorf("%w: missing user", ErrInvalidPayload)
	}
	return normalize(user)
}

// DecodeTokenPayload extracts the token from a refresh response.
func DecodeTokenPayload(body []byte) (string, error) {
	token, _, err := locate(body)
	if err != nil {
		return "", err
	}
	if token == "" {
		return "", fmt.Errorf("%w: missing token", ErrInvalidPayload)
	}
	return token, nil
}
