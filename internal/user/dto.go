package user

// CreateUserRequest is the transport shape for POST /users.
type CreateUserRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
	FullName string `json:"full_name"`
	Role     string `json:"role"`
	Phone    string `json:"phone"`
	IsActive *bool  `json:"is_active"`
}

func (r CreateUserRequest) ToNewUser() NewUser {
	return NewUser{
		Username: r.Username,
		Email:    r.Email,
		Password: r.Password,
		FullName: r.FullName,
		Role:     Role(r.Role),
		Phone:    r.Phone,
		IsActive: r.IsActive,
	}
}

// UpdateUserRequest is the transport shape for PUT /users/{id}.
type UpdateUserRequest struct {
	Username *string `json:"username"`
	Email    *string `json:"email"`
	FullName *string `json:"full_name"`
	Phone    *string `json:"phone"`
	Role     *string `json:"role"`
}

func (r UpdateUserRequest) ToProfileUpdate() ProfileUpdate {
	upd := ProfileUpdate{
		Username: r.Username,
		Email:    r.Email,
		FullName: r.FullName,
		Phone:    r.Phone,
	}
	if r.Role != nil {
		role := Role(*r.Role)
		upd.Role = &role
	}
	return upd
}
