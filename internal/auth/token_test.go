package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/onsi/ginkgo/v2"
	"github.com/onsi/gomega"

	"github.com/schooladmin/school-admin/internal"
	"github.com/schooladmin/school-admin/internal/user"
)

var _ = ginkgo.Describe("JWTTokenIssuer", func() {
	var (
		issuer *JWTTokenIssuer
		alice  *user.Identity
	)

	ginkgo.BeforeEach(func() {
		issuer = NewJWTTokenIssuer(testSecret, "school-admin", time.Hour)
		alice = &user.Identity{ID: "u-alice", Username: "alice", Role: user.RoleTeacher, IsActive: true}
	})

	ginkgo.It("round-trips the user id and role", func() {
		token, expiresAt, err := issuer.Issue(alice)
		gomega.Expect(err).ToNot(gomega.HaveOccurred())
		gomega.Expect(token).ToNot(gomega.BeEmpty())
		gomega.Expect(expiresAt).To(gomega.BeTemporally("~", time.Now().Add(time.Hour), 5*time.Second))

		claims, err := issuer.Verify(token)
		gomega.Expect(err).ToNot(gomega.HaveOccurred())
		gomega.Expect(claims.UserID).To(gomega.Equal("u-alice"))
		gomega.Expect(claims.Subject).To(gomega.Equal("u-alice"))
		gomega.Expect(claims.Role).To(gomega.Equal("teacher"))
		gomega.Expect(claims.Issuer).To(gomega.Equal("school-admin"))
	})

	ginkgo.It("refuses to issue without an identity", func() {
		_, _, err := issuer.Issue(nil)
		gomega.Expect(err).To(gomega.HaveOccurred())
	})

	ginkgo.It("reports an expired token as expired", func() {
		issuer.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
		token, _, err := issuer.Issue(alice)
		gomega.Expect(err).ToNot(gomega.HaveOccurred())

		issuer.now = time.Now
		_, err = issuer.Verify(token)
		gomega.Expect(errors.Is(err, internal.ErrTokenExpired)).To(gomega.BeTrue())
	})

	ginkgo.It("rejects a token signed with another secret", func() {
		other := NewJWTTokenIssuer("another-secret-another-secret-xx", "school-admin", time.Hour)
		token, _, err := other.Issue(alice)
		gomega.Expect(err).ToNot(gomega.HaveOccurred())

		_, err = issuer.Verify(token)
		gomega.Expect(errors.Is(err, internal.ErrInvalidToken)).To(gomega.BeTrue())
	})

	ginkgo.It("rejects unsigned tokens", func() {
		claims := &Claims{
			UserID: "u-alice",
			RegisteredClaims: jwt.RegisteredClaims{
				ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
			},
		}
		token, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
		gomega.Expect(err).ToNot(gomega.HaveOccurred())

		_, err = issuer.Verify(token)
		gomega.Expect(errors.Is(err, internal.ErrInvalidToken)).To(gomega.BeTrue())
	})

	ginkgo.It("rejects garbage", func() {
		_, err := issuer.Verify("not-a-jwt")
		gomega.Expect(errors.Is(err, internal.ErrInvalidToken)).To(gomega.BeTrue())
	})
})
