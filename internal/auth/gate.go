package auth

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/schooladmin/school-admin/internal"
	"github.com/schooladmin/school-admin/internal/core/events"
	"github.com/schooladmin/school-admin/internal/transport"
	"github.com/schooladmin/school-admin/internal/user"
)

// IdentityLookup resolves a token subject to its current identity. A nil
// identity with a nil error means the user no longer exists.
type IdentityLookup interface {
	GetByID(ctx context.Context, id string) (*user.Identity, error)
}

type Publisher interface {
	Publish(ctx context.Context, event events.Event) error
}

// Gate establishes who is calling. Require rejects anonymous callers; Optional
// lets them through without a principal.
type Gate struct {
	*transport.BaseHandler
	tokens    TokenIssuer
	users     IdentityLookup
	publisher Publisher
}

func NewGate(tokens TokenIssuer, users IdentityLookup, publisher Publisher, logger *slog.Logger) *Gate {
	return &Gate{
		BaseHandler: transport.NewBaseHandler(logger),
		tokens:      tokens,
		users:       users,
		publisher:   publisher,
	}
}

// resolve walks token -> claims -> identity. It returns the rejection to
// send when no principal can be established.
func (g *Gate) resolve(r *http.Request) (*user.Identity, error) {
	token := g.ExtractTokenFromHeader(r)
	if token == "" {
		return nil, internal.ErrNoToken
	}

	claims, err := g.tokens.Verify(token)
	if err != nil {
		if errors.Is(err, internal.ErrTokenExpired) {
			return nil, internal.ErrTokenExpired
		}
		return nil, internal.ErrInvalidToken
	}

	identity, err := g.users.GetByID(r.Context(), claims.UserID)
	if err != nil {
		if internal.IsType(err, internal.ErrorTypeConnection) {
			return nil, err
		}
		return nil, internal.NewInternalError("Authentication failed", err)
	}
	if identity == nil {
		return nil, internal.ErrUserNotFound
	}
	if !identity.IsActive {
		return nil, internal.ErrUserInactive
	}
	return identity, nil
}

func (g *Gate) admit(w http.ResponseWriter, r *http.Request, identity *user.Identity, next http.Handler) {
	ctx := internal.ContextWithPrincipal(r.Context(), identity.Principal())
	if g.publisher != nil {
		if err := g.publisher.Publish(ctx, events.NewUserAuthenticatedEvent(identity.ID)); err != nil {
			g.Log(ctx).WarnContext(ctx, "failed to publish authentication event", "user_id", identity.ID, "error", err)
		}
	}
	next.ServeHTTP(w, r.WithContext(ctx))
}

func (g *Gate) Require(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity, err := g.resolve(r)
		if err != nil {
			g.WriteAppError(w, r, err)
			return
		}
		g.admit(w, r, identity, next)
	})
}

// Optional never rejects for authentication reasons. A store outage is the
// one failure it reports, as 503, since an anonymous fallback would hide it.
func (g *Gate) Optional(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity, err := g.resolve(r)
		if err != nil {
			if internal.IsType(err, internal.ErrorTypeConnection) {
				g.WriteAppError(w, r, err)
				return
			}
			if internal.IsType(err, internal.ErrorTypeInternal) {
				g.Log(r.Context()).ErrorContext(r.Context(), "optional authentication failed, continuing anonymously", "error", err)
			}
			next.ServeHTTP(w, r)
			return
		}
		g.admit(w, r, identity, next)
	})
}
