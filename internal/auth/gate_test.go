package auth

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"time"

	"github.com/onsi/ginkgo/v2"
	"github.com/onsi/gomega"

	"github.com/schooladmin/school-admin/internal"
	"github.com/schooladmin/school-admin/internal/core/events"
	"github.com/schooladmin/school-admin/internal/user"
)

var _ = ginkgo.Describe("Gate", func() {
	var (
		issuer    *JWTTokenIssuer
		store     *mockIdentityStore
		publisher *recordingPublisher
		gate      *Gate

		reached   bool
		principal *internal.Principal
		next      http.Handler
	)

	ginkgo.BeforeEach(func() {
		issuer = NewJWTTokenIssuer(testSecret, "school-admin", time.Hour)
		store = newMockIdentityStore()
		publisher = &recordingPublisher{}
		gate = NewGate(issuer, store, publisher, quietLogger)

		reached = false
		principal = nil
		next = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			reached = true
			principal, _ = internal.PrincipalFromContext(r.Context())
			w.WriteHeader(http.StatusOK)
		})
	})

	tokenFor := func(id string) string {
		token, _, err := issuer.Issue(&user.Identity{ID: id, Role: user.RoleTeacher})
		gomega.Expect(err).ToNot(gomega.HaveOccurred())
		return token
	}

	serve := func(h http.Handler, authorization string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/students", nil)
		if authorization != "" {
			req.Header.Set("Authorization", authorization)
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}

	decode := func(rec *httptest.ResponseRecorder) map[string]interface{} {
		var body map[string]interface{}
		gomega.Expect(json.Unmarshal(rec.Body.Bytes(), &body)).To(gomega.Succeed())
		return body
	}

	ginkgo.Describe("Require", func() {
		ginkgo.DescribeTable("rejections",
			func(setup func() string, status int, code string) {
				rec := serve(gate.Require(next), setup())

				gomega.Expect(rec.Code).To(gomega.Equal(status))
				gomega.Expect(reached).To(gomega.BeFalse())
				gomega.Expect(decode(rec)).To(gomega.HaveKeyWithValue("code", code))
				gomega.Expect(publisher.published).To(gomega.BeEmpty())
			},
			ginkgo.Entry("missing header", func() string { return "" }, http.StatusUnauthorized, "NO_TOKEN"),
			ginkgo.Entry("non-bearer scheme", func() string { return "Basic abc" }, http.StatusUnauthorized, "NO_TOKEN"),
			ginkgo.Entry("bearer scheme with only spaces", func() string { return "Bearer    " }, http.StatusUnauthorized, "NO_TOKEN"),
			ginkgo.Entry("garbage token", func() string { return "Bearer nope" }, http.StatusUnauthorized, "INVALID_TOKEN"),
			ginkgo.Entry("expired token", func() string {
				issuer.now = func() time.Time { return time.Now().Add(-3 * time.Hour) }
				token := tokenFor("u-alice")
				issuer.now = time.Now
				return "Bearer " + token
			}, http.StatusUnauthorized, "TOKEN_EXPIRED"),
			ginkgo.Entry("deleted user", func() string { return "Bearer " + tokenFor("u-gone") }, http.StatusUnauthorized, "USER_NOT_FOUND"),
			ginkgo.Entry("inactive user", func() string { return "Bearer " + tokenFor("u-bob") }, http.StatusUnauthorized, "USER_INACTIVE"),
			ginkgo.Entry("store unavailable", func() string {
				store.lookupErr = internal.NewConnectionError("database unavailable", errBoom)
				return "Bearer " + tokenFor("u-alice")
			}, http.StatusServiceUnavailable, "CONNECTION_UNAVAILABLE"),
			ginkgo.Entry("unexpected lookup failure", func() string {
				store.lookupErr = errBoom
				return "Bearer " + tokenFor("u-alice")
			}, http.StatusInternalServerError, "INTERNAL_ERROR"),
		)

		ginkgo.It("returns the error type in the body", func() {
			body := decode(serve(gate.Require(next), ""))
			gomega.Expect(body).To(gomega.HaveKeyWithValue("error", "AUTHENTICATION_ERROR"))
			gomega.Expect(body).To(gomega.HaveKey("message"))
		})

		ginkgo.It("attaches the principal and publishes an authentication event", func() {
			rec := serve(gate.Require(next), "bearer "+tokenFor("u-alice"))

			gomega.Expect(rec.Code).To(gomega.Equal(http.StatusOK))
			gomega.Expect(reached).To(gomega.BeTrue())
			gomega.Expect(principal).ToNot(gomega.BeNil())
			gomega.Expect(principal.ID).To(gomega.Equal("u-alice"))
			gomega.Expect(principal.Role).To(gomega.Equal("teacher"))

			gomega.Expect(publisher.published).To(gomega.HaveLen(1))
			evt, ok := publisher.published[0].(*events.UserAuthenticatedEvent)
			gomega.Expect(ok).To(gomega.BeTrue())
			gomega.Expect(evt.UserID).To(gomega.Equal("u-alice"))
		})

		ginkgo.It("still admits the request when publishing fails", func() {
			publisher.err = errBoom
			rec := serve(gate.Require(next), "Bearer "+tokenFor("u-alice"))
			gomega.Expect(rec.Code).To(gomega.Equal(http.StatusOK))
		})
	})

	ginkgo.Describe("Optional", func() {
		ginkgo.DescribeTable("continues anonymously",
			func(setup func() string) {
				rec := serve(gate.Optional(next), setup())

				gomega.Expect(rec.Code).To(gomega.Equal(http.StatusOK))
				gomega.Expect(reached).To(gomega.BeTrue())
				gomega.Expect(principal).To(gomega.BeNil())
			},
			ginkgo.Entry("missing header", func() string { return "" }),
			ginkgo.Entry("garbage token", func() string { return "Bearer nope" }),
			ginkgo.Entry("deleted user", func() string { return "Bearer " + tokenFor("u-gone") }),
			ginkgo.Entry("inactive user", func() string { return "Bearer " + tokenFor("u-bob") }),
			ginkgo.Entry("unexpected lookup failure", func() string {
				store.lookupErr = errBoom
				return "Bearer " + tokenFor("u-alice")
			}),
		)

		ginkgo.It("attaches the principal for a valid token", func() {
			rec := serve(gate.Optional(next), "Bearer "+tokenFor("u-alice"))
			gomega.Expect(rec.Code).To(gomega.Equal(http.StatusOK))
			gomega.Expect(principal).ToNot(gomega.BeNil())
			gomega.Expect(principal.Username).To(gomega.Equal("alice"))
		})

		ginkgo.It("surfaces a store outage as 503", func() {
			store.lookupErr = internal.NewConnectionError("database unavailable", errBoom)
			rec := serve(gate.Optional(next), "Bearer "+tokenFor("u-alice"))
			gomega.Expect(rec.Code).To(gomega.Equal(http.StatusServiceUnavailable))
			gomega.Expect(reached).To(gomega.BeFalse())
		})
	})

	ginkgo.Describe("last login subscriber", func() {
		ginkgo.It("stamps the user off the request path", func() {
			bus := events.NewEventBus(quietLogger)
			SubscribeLastLogin(bus, store, quietLogger)
			gate = NewGate(issuer, store, bus, quietLogger)

			rec := serve(gate.Require(next), "Bearer "+tokenFor("u-alice"))
			gomega.Expect(rec.Code).To(gomega.Equal(http.StatusOK))

			gomega.Eventually(store.stamped).Should(gomega.ConsistOf("u-alice"))
		})
	})
})
