package auth

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"time"

	"github.com/onsi/ginkgo/v2"
	"github.com/onsi/gomega"

	"github.com/schooladmin/school-admin/internal"
)

var _ = ginkgo.Describe("Handler", func() {
	var (
		store   *mockIdentityStore
		issuer  *JWTTokenIssuer
		handler *Handler
	)

	ginkgo.BeforeEach(func() {
		store = newMockIdentityStore()
		issuer = NewJWTTokenIssuer(testSecret, "school-admin", time.Hour)
		handler = NewHandler(NewService(store, issuer))
	})

	post := func(h http.HandlerFunc, body string, p *internal.Principal) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/auth", strings.NewReader(body))
		if p != nil {
			req = req.WithContext(internal.ContextWithPrincipal(req.Context(), p))
		}
		rec := httptest.NewRecorder()
		h(rec, req)
		return rec
	}

	ginkgo.Describe("Login", func() {
		ginkgo.It("returns a verifiable token and the identity", func() {
			rec := post(handler.Login, `{"username":"alice","password":"secret123"}`, nil)
			gomega.Expect(rec.Code).To(gomega.Equal(http.StatusOK))

			var session struct {
				Token     string                 `json:"token"`
				TokenType string                 `json:"token_type"`
				User      map[string]interface{} `json:"user"`
			}
			gomega.Expect(json.Unmarshal(rec.Body.Bytes(), &session)).To(gomega.Succeed())
			gomega.Expect(session.TokenType).To(gomega.Equal("Bearer"))
			gomega.Expect(session.User).To(gomega.HaveKeyWithValue("username", "alice"))
			gomega.Expect(session.User).ToNot(gomega.HaveKey("password_hash"))

			claims, err := issuer.Verify(session.Token)
			gomega.Expect(err).ToNot(gomega.HaveOccurred())
			gomega.Expect(claims.UserID).To(gomega.Equal("u-alice"))
		})

		ginkgo.DescribeTable("uniform credential failures",
			func(body string) {
				rec := post(handler.Login, body, nil)
				gomega.Expect(rec.Code).To(gomega.Equal(http.StatusUnauthorized))
				gomega.Expect(rec.Body.String()).To(gomega.ContainSubstring("Invalid username or password"))
			},
			ginkgo.Entry("wrong password", `{"username":"alice","password":"nope"}`),
			ginkgo.Entry("unknown user", `{"username":"mallory","password":"secret123"}`),
			ginkgo.Entry("inactive user", `{"username":"bob","password":"secret123"}`),
		)

		ginkgo.It("rejects a missing password as a validation error", func() {
			rec := post(handler.Login, `{"username":"alice"}`, nil)
			gomega.Expect(rec.Code).To(gomega.Equal(http.StatusBadRequest))
		})

		ginkgo.It("rejects malformed JSON", func() {
			rec := post(handler.Login, `{`, nil)
			gomega.Expect(rec.Code).To(gomega.Equal(http.StatusBadRequest))
		})

		ginkgo.It("reports a store outage as 503", func() {
			store.authErr = internal.NewConnectionError("database unavailable", errBoom)
			rec := post(handler.Login, `{"username":"alice","password":"secret123"}`, nil)
			gomega.Expect(rec.Code).To(gomega.Equal(http.StatusServiceUnavailable))
		})
	})

	ginkgo.Describe("Me", func() {
		ginkgo.It("returns the principal", func() {
			req := httptest.NewRequest(http.MethodGet, "/api/v1/auth/me", nil)
			req = req.WithContext(internal.ContextWithPrincipal(req.Context(),
				&internal.Principal{ID: "u-alice", Username: "alice", Role: "teacher"}))
			rec := httptest.NewRecorder()
			handler.Me(rec, req)

			gomega.Expect(rec.Code).To(gomega.Equal(http.StatusOK))
			gomega.Expect(rec.Body.String()).To(gomega.ContainSubstring(`"username":"alice"`))
		})

		ginkgo.It("is 401 without a principal", func() {
			rec := httptest.NewRecorder()
			handler.Me(rec, httptest.NewRequest(http.MethodGet, "/api/v1/auth/me", nil))
			gomega.Expect(rec.Code).To(gomega.Equal(http.StatusUnauthorized))
		})
	})

	ginkgo.Describe("Logout", func() {
		ginkgo.It("returns no content", func() {
			rec := post(handler.Logout, "", &internal.Principal{ID: "u-alice"})
			gomega.Expect(rec.Code).To(gomega.Equal(http.StatusNoContent))
		})
	})

	ginkgo.Describe("ChangePassword", func() {
		alice := &internal.Principal{ID: "u-alice", Username: "alice", Role: "teacher"}

		ginkgo.It("changes the caller's password", func() {
			rec := post(handler.ChangePassword, `{"current_password":"secret123","new_password":"brandnew1"}`, alice)
			gomega.Expect(rec.Code).To(gomega.Equal(http.StatusOK))
			gomega.Expect(store.changed).To(gomega.HaveKeyWithValue("u-alice", "brandnew1"))
		})

		ginkgo.It("maps a wrong current password to 400", func() {
			store.changeErr = internal.ErrInvalidCurrentPassword
			rec := post(handler.ChangePassword, `{"current_password":"x","new_password":"brandnew1"}`, alice)
			gomega.Expect(rec.Code).To(gomega.Equal(http.StatusBadRequest))
			gomega.Expect(rec.Body.String()).To(gomega.ContainSubstring("INVALID_CURRENT_PASSWORD"))
		})

		ginkgo.It("requires a principal", func() {
			rec := post(handler.ChangePassword, `{}`, nil)
			gomega.Expect(rec.Code).To(gomega.Equal(http.StatusUnauthorized))
		})
	})
})
