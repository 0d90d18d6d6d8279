package user

import (
	"context"
	"time"

	"github.com/schooladmin/school-admin/internal"
	"github.com/schooladmin/school-admin/internal/core/common/validation"
	"github.com/schooladmin/school-admin/internal/record"
)

const (
	defaultPageSize = 10
	maxPageSize     = 100
	minPasswordLen  = 6
)

var searchFields = []string{"username", "email", "full_name"}

// Store is the record store specialised to the users table.
type Store struct {
	records *record.Store
	hasher  PasswordHasher
	now     func() time.Time
}

func NewStore(records *record.Store, hasher PasswordHasher) *Store {
	return &Store{
		records: records,
		hasher:  hasher,
		now:     time.Now,
	}
}

func (s *Store) Create(ctx context.Context, nu NewUser) (*Identity, error) {
	v := validation.NewValidator()
	v.Field("username", nu.Username).Required().MinLength(3).MaxLength(50)
	v.Field("email", nu.Email).Required().Email()
	v.Field("password", nu.Password).Required().MinLength(minPasswordLen)
	v.Field("full_name", nu.FullName).MaxLength(100)
	v.Field("role", string(nu.Role)).Required().OneOf(internal.ErrCodeInvalidRole, roleNames()...)
	if err := v.Validate(); err != nil {
		return nil, err
	}

	hash, err := s.hasher.Hash(nu.Password)
	if err != nil {
		return nil, internal.NewInternalError("failed to hash password", err)
	}

	active := true
	if nu.IsActive != nil {
		active = *nu.IsActive
	}

	rec, err := s.records.Create(ctx, usersTable, map[string]any{
		"username":      nu.Username,
		"email":         nu.Email,
		"password_hash": hash,
		"full_name":     nu.FullName,
		"role":          string(nu.Role),
		"phone":         nu.Phone,
		"is_active":     active,
	})
	if err != nil {
		return nil, err
	}
	return fromRecord(rec), nil
}

func (s *Store) GetByID(ctx context.Context, id string) (*Identity, error) {
	rec, err := s.records.FindByID(ctx, usersTable, id)
	if err != nil {
		return nil, err
	}
	return fromRecord(rec), nil
}

// Authenticate returns nil, nil for an unknown user, a wrong password or a
// disabled account alike. The hash comparison runs in every case.
func (s *Store) Authenticate(ctx context.Context, username, password string) (*Identity, error) {
	recs, err := s.records.FindAll(ctx, usersTable, record.Query{
		Conditions: map[string]any{"username": username},
		Limit:      record.Int(1),
	})
	if err != nil {
		return nil, err
	}

	var hash string
	if len(recs) > 0 {
		hash = asString(recs[0]["password_hash"])
	}
	matched := s.hasher.Verify(hash, password)

	if len(recs) == 0 || !matched {
		return nil, nil
	}
	identity := fromRecord(recs[0])
	if !identity.IsActive {
		return nil, nil
	}

	updated, err := s.records.UpdateByID(ctx, usersTable, identity.ID, map[string]any{
		"last_login": s.now().UTC(),
	})
	if err != nil {
		return nil, err
	}
	if updated != nil {
		identity = fromRecord(updated)
	}
	return identity, nil
}

// ChangePassword leaves the stored hash untouched unless current matches.
func (s *Store) ChangePassword(ctx context.Context, id, current, next string) error {
	v := validation.NewValidator()
	v.Field("current_password", current).Required()
	v.Field("new_password", next).Required().MinLength(minPasswordLen)
	if err := v.Validate(); err != nil {
		return err
	}

	rec, err := s.records.FindByID(ctx, usersTable, id)
	if err != nil {
		return err
	}
	if rec == nil {
		return internal.NewNotFoundError("User not found", internal.ErrCodeRecordNotFound)
	}
	if !s.hasher.Verify(asString(rec["password_hash"]), current) {
		return internal.ErrInvalidCurrentPassword
	}

	hash, err := s.hasher.Hash(next)
	if err != nil {
		return internal.NewInternalError("failed to hash password", err)
	}
	_, err = s.records.UpdateByID(ctx, usersTable, id, map[string]any{"password_hash": hash})
	return err
}

func (s *Store) UsernameExists(ctx context.Context, username, excludeID string) (bool, error) {
	return s.taken(ctx, "username", username, excludeID)
}

func (s *Store) EmailExists(ctx context.Context, email, excludeID string) (bool, error) {
	return s.taken(ctx, "email", email, excludeID)
}

// taken reports whether a row other than excludeID holds value in column.
func (s *Store) taken(ctx context.Context, column, value, excludeID string) (bool, error) {
	if excludeID == "" {
		return s.records.Exists(ctx, usersTable, map[string]any{column: value})
	}
	recs, err := s.records.FindAll(ctx, usersTable, record.Query{
		Conditions: map[string]any{column: value},
		Limit:      record.Int(2),
	})
	if err != nil {
		return false, err
	}
	for _, rec := range recs {
		if asString(rec["id"]) != excludeID {
			return true, nil
		}
	}
	return false, nil
}

func (s *Store) GetAllUsers(ctx context.Context, page, limit int, filters Filters) (*UserPage, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}

	conditions := map[string]any{}
	if filters.Role != "" {
		conditions["role"] = string(filters.Role)
	}
	if filters.IsActive != nil {
		conditions["is_active"] = *filters.IsActive
	}

	q := record.SearchQuery{
		Fields:     searchFields,
		Term:       filters.Search,
		Conditions: conditions,
		Limit:      record.Int(limit),
		Offset:     record.Int((page - 1) * limit),
	}

	recs, err := s.records.Search(ctx, usersTable, q)
	if err != nil {
		return nil, err
	}
	total, err := s.records.CountSearch(ctx, usersTable, q)
	if err != nil {
		return nil, err
	}

	users := make([]*Identity, 0, len(recs))
	for _, rec := range recs {
		users = append(users, fromRecord(rec))
	}
	return &UserPage{
		Users: users,
		Pagination: Pagination{
			Page:       page,
			Limit:      limit,
			Total:      total,
			TotalPages: (total + int64(limit) - 1) / int64(limit),
		},
	}, nil
}

// UpdateProfile applies the non-nil fields after checking that a new
// username or email is not held by another user.
func (s *Store) UpdateProfile(ctx context.Context, id string, upd ProfileUpdate) (*Identity, error) {
	fields := map[string]any{}
	v := validation.NewValidator()

	if upd.Username != nil {
		v.Field("username", *upd.Username).Required().MinLength(3).MaxLength(50)
		fields["username"] = *upd.Username
	}
	if upd.Email != nil {
		v.Field("email", *upd.Email).Required().Email()
		fields["email"] = *upd.Email
	}
	if upd.FullName != nil {
		v.Field("full_name", *upd.FullName).MaxLength(100)
		fields["full_name"] = *upd.FullName
	}
	if upd.Phone != nil {
		fields["phone"] = *upd.Phone
	}
	if upd.Role != nil {
		v.Field("role", string(*upd.Role)).OneOf(internal.ErrCodeInvalidRole, roleNames()...)
		fields["role"] = string(*upd.Role)
	}
	if err := v.Validate(); err != nil {
		return nil, err
	}
	if len(fields) == 0 {
		return nil, internal.ErrEmptyFields
	}

	if upd.Username != nil {
		taken, err := s.UsernameExists(ctx, *upd.Username, id)
		if err != nil {
			return nil, err
		}
		if taken {
			return nil, internal.ErrUsernameTaken
		}
	}
	if upd.Email != nil {
		taken, err := s.EmailExists(ctx, *upd.Email, id)
		if err != nil {
			return nil, err
		}
		if taken {
			return nil, internal.ErrEmailTaken
		}
	}

	rec, err := s.records.UpdateByID(ctx, usersTable, id, fields)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, internal.NewNotFoundError("User not found", internal.ErrCodeRecordNotFound)
	}
	return fromRecord(rec), nil
}

// ToggleStatus flips the active flag. Users are never hard-deleted.
func (s *Store) ToggleStatus(ctx context.Context, id string) (*Identity, error) {
	current, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if current == nil {
		return nil, internal.NewNotFoundError("User not found", internal.ErrCodeRecordNotFound)
	}
	rec, err := s.records.UpdateByID(ctx, usersTable, id, map[string]any{"is_active": !current.IsActive})
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, internal.NewNotFoundError("User not found", internal.ErrCodeRecordNotFound)
	}
	return fromRecord(rec), nil
}

func (s *Store) StampLastLogin(ctx context.Context, id string) error {
	_, err := s.records.UpdateByID(ctx, usersTable, id, map[string]any{"last_login": s.now().UTC()})
	return err
}
