package user

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/schooladmin/school-admin/internal"
	"github.com/schooladmin/school-admin/internal/database"
)

const usersTable = "users"

type Role string

const (
	RoleAdmin       Role = "admin"
	RoleHeadTeacher Role = "head_teacher"
	RoleTeacher     Role = "teacher"
	RoleAccountant  Role = "accountant"
)

var Roles = []Role{RoleAdmin, RoleHeadTeacher, RoleTeacher, RoleAccountant}

func (r Role) Valid() bool {
	for _, known := range Roles {
		if r == known {
			return true
		}
	}
	return false
}

func ParseRole(s string) (Role, error) {
	r := Role(strings.TrimSpace(strings.ToLower(s)))
	if !r.Valid() {
		return "", internal.NewValidationFieldError("role", fmt.Sprintf("unknown role %q", s), internal.ErrCodeInvalidRole)
	}
	return r, nil
}

func roleNames() []string {
	names := make([]string, len(Roles))
	for i, r := range Roles {
		names[i] = string(r)
	}
	return names
}

// Identity is a user as seen by the rest of the system. It has no password
// field; the hash stays in the users table.
type Identity struct {
	ID        string     `json:"id"`
	Username  string     `json:"username"`
	Email     string     `json:"email"`
	FullName  string     `json:"full_name"`
	Role      Role       `json:"role"`
	Phone     string     `json:"phone,omitempty"`
	IsActive  bool       `json:"is_active"`
	LastLogin *time.Time `json:"last_login,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// Principal is the slice of the identity attached to request contexts.
func (i *Identity) Principal() *internal.Principal {
	return &internal.Principal{
		ID:       i.ID,
		Username: i.Username,
		Email:    i.Email,
		FullName: i.FullName,
		Role:     string(i.Role),
	}
}

// NewUser carries the plaintext password only as far as the hasher.
type NewUser struct {
	Username string
	Email    string
	Password string
	FullName string
	Role     Role
	Phone    string
	IsActive *bool
}

// ProfileUpdate changes only the non-nil fields.
type ProfileUpdate struct {
	Username *string
	Email    *string
	FullName *string
	Phone    *string
	Role     *Role
}

type Filters struct {
	Role     Role
	IsActive *bool
	Search   string
}

type Pagination struct {
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	Total      int64 `json:"total"`
	TotalPages int64 `json:"total_pages"`
}

type UserPage struct {
	Users      []*Identity `json:"users"`
	Pagination Pagination  `json:"pagination"`
}

func fromRecord(rec database.Record) *Identity {
	if rec == nil {
		return nil
	}
	id := &Identity{
		ID:        asString(rec["id"]),
		Username:  asString(rec["username"]),
		Email:     asString(rec["email"]),
		FullName:  asString(rec["full_name"]),
		Role:      Role(asString(rec["role"])),
		Phone:     asString(rec["phone"]),
		IsActive:  asBool(rec["is_active"]),
		CreatedAt: asTime(rec["created_at"]),
		UpdatedAt: asTime(rec["updated_at"]),
	}
	if t := asTime(rec["last_login"]); !t.IsZero() {
		id.LastLogin = &t
	}
	return id
}

func asString(v any) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return s
	case []byte:
		return string(s)
	default:
		return fmt.Sprint(s)
	}
}

func asBool(v any) bool {
	switch b := v.(type) {
	case bool:
		return b
	case int64:
		return b != 0
	case string:
		parsed, _ := strconv.ParseBool(b)
		return parsed
	default:
		return false
	}
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
}

func asTime(v any) time.Time {
	switch t := v.(type) {
	case time.Time:
		return t
	case string:
		for _, layout := range timeLayouts {
			if parsed, err := time.Parse(layout, t); err == nil {
				return parsed
			}
		}
	}
	return time.Time{}
}
