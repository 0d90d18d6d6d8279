package auth

import (
	"time"

	"github.com/schooladmin/school-admin/internal"
	"github.com/schooladmin/school-admin/internal/core/common/validation"
	"github.com/schooladmin/school-admin/internal/user"
)

// LoginDTO is the transport shape used by the HTTP handler to accept login requests.
type LoginDTO struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (d LoginDTO) Validate() error {
	v := validation.NewValidator()
	v.Field("username", d.Username).Required()
	v.Field("password", d.Password).Required()
	if err := v.Validate(); err != nil {
		return err
	}
	return nil
}

type ChangePasswordDTO struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

// Session is what a successful login returns.
type Session struct {
	Token     string         `json:"token"`
	TokenType string         `json:"token_type"`
	ExpiresAt time.Time      `json:"expires_at"`
	User      *user.Identity `json:"user"`
}

type MeResponse struct {
	*internal.Principal
}
