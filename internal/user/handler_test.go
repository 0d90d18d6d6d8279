package user_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"

	"github.com/go-chi/chi"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"golang.org/x/crypto/bcrypt"

	"github.com/schooladmin/school-admin/internal"
	"github.com/schooladmin/school-admin/internal/user"
)

var _ = Describe("User Handler Integration", func() {
	var (
		store   *user.Store
		handler *user.Handler
		router  chi.Router
		caller  *internal.Principal
		alice   *user.Identity
	)

	BeforeEach(func() {
		hasher, err := user.NewBcryptHasher(bcrypt.MinCost)
		Expect(err).NotTo(HaveOccurred())
		store = user.NewStore(newSQLiteRecords(), hasher)
		handler = user.NewHandler(store)

		alice, err = store.Create(context.Background(), user.NewUser{
			Username: "alice", Email: "alice@school.test", Password: "secret123", Role: user.RoleTeacher,
		})
		Expect(err).NotTo(HaveOccurred())

		caller = &internal.Principal{ID: "admin-1", Role: "admin"}
		router = chi.NewRouter()
		router.Use(func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				next.ServeHTTP(w, r.WithContext(internal.ContextWithPrincipal(r.Context(), caller)))
			})
		})
		router.Get("/users", handler.ListUsers)
		router.Post("/users", handler.CreateUser)
		router.Get("/users/{id}", handler.GetUser)
		router.Put("/users/{id}", handler.UpdateUser)
		router.Patch("/users/{id}/status", handler.ToggleStatus)
	})

	do := func(method, target, body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(method, target, strings.NewReader(body))
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		return rec
	}

	It("creates a user and never returns the password hash", func() {
		rec := do(http.MethodPost, "/users",
			`{"username":"bob","email":"bob@school.test","password":"secret123","role":"accountant"}`)
		Expect(rec.Code).To(Equal(http.StatusCreated))
		Expect(rec.Body.String()).NotTo(ContainSubstring("password"))

		var created map[string]interface{}
		Expect(json.Unmarshal(rec.Body.Bytes(), &created)).To(Succeed())
		Expect(created).To(HaveKeyWithValue("role", "accountant"))
	})

	It("reports a taken username as a conflict", func() {
		rec := do(http.MethodPost, "/users",
			`{"username":"alice","email":"other@school.test","password":"secret123","role":"teacher"}`)
		Expect(rec.Code).To(Equal(http.StatusConflict))
		Expect(rec.Body.String()).To(ContainSubstring("USERNAME_TAKEN"))
	})

	It("rejects an unknown role", func() {
		rec := do(http.MethodPost, "/users",
			`{"username":"carol","email":"carol@school.test","password":"secret123","role":"janitor"}`)
		Expect(rec.Code).To(Equal(http.StatusBadRequest))
	})

	It("lists users filtered by role", func() {
		rec := do(http.MethodGet, "/users?role=teacher", "")
		Expect(rec.Code).To(Equal(http.StatusOK))

		var page user.UserPage
		Expect(json.Unmarshal(rec.Body.Bytes(), &page)).To(Succeed())
		Expect(page.Users).To(HaveLen(1))
		Expect(page.Users[0].Username).To(Equal("alice"))
	})

	It("returns 404 for an unknown id", func() {
		Expect(do(http.MethodGet, "/users/nope", "").Code).To(Equal(http.StatusNotFound))
	})

	It("updates the profile", func() {
		rec := do(http.MethodPut, "/users/"+alice.ID, `{"full_name":"Alice Cooper"}`)
		Expect(rec.Code).To(Equal(http.StatusOK))
		Expect(rec.Body.String()).To(ContainSubstring("Alice Cooper"))
	})

	It("rejects an empty update", func() {
		Expect(do(http.MethodPut, "/users/"+alice.ID, `{}`).Code).To(Equal(http.StatusBadRequest))
	})

	It("toggles another user's status but not the caller's own", func() {
		rec := do(http.MethodPatch, "/users/"+alice.ID+"/status", "")
		Expect(rec.Code).To(Equal(http.StatusOK))
		Expect(rec.Body.String()).To(ContainSubstring(`"is_active":false`))

		caller = &internal.Principal{ID: alice.ID, Role: "admin"}
		Expect(do(http.MethodPatch, "/users/"+alice.ID+"/status", "").Code).To(Equal(http.StatusBadRequest))
	})
})
