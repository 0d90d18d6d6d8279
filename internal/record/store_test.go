package record_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/schooladmin/school-admin/internal"
	"github.com/schooladmin/school-admin/internal/database"
	"github.com/schooladmin/school-admin/internal/record"
)

var _ = Describe("Store", func() {
	var (
		db    *fakeDB
		store *record.Store
		ctx   context.Context
		now   time.Time
		ids   int
	)

	BeforeEach(func() {
		db = &fakeDB{}
		now = time.Date(2026, 10, 1, 8, 30, 0, 0, time.UTC)
		ids = 0
		store = record.NewStore(db,
			record.WithClock(func() time.Time { return now }),
			record.WithIDGenerator(func() string {
				ids++
				return fmt.Sprintf("gen-%d", ids)
			}),
			record.WithoutUpdateStamp("settings"))
		ctx = context.Background()
	})

	Describe("Create", func() {
		It("generates an id and binds it first", func() {
			db.results = [][]database.Record{{{"id": "gen-1", "first_name": "Ada"}}}

			rec, err := store.Create(ctx, "students", map[string]any{"first_name": "Ada", "grade": "5"})
			Expect(err).NotTo(HaveOccurred())
			Expect(rec["id"]).To(Equal("gen-1"))

			c := db.last()
			Expect(c.sql).To(Equal(`INSERT INTO "students" ("id", "first_name", "grade") VALUES ($1, $2, $3) RETURNING *`))
			Expect(c.args).To(Equal([]any{"gen-1", "Ada", "5"}))
			expectBalanced(c)
		})

		It("keeps a caller supplied id", func() {
			_, err := store.Create(ctx, "students", map[string]any{"id": "s-9", "first_name": "Ada"})
			Expect(err).NotTo(HaveOccurred())

			c := db.last()
			Expect(c.sql).To(Equal(`INSERT INTO "students" ("first_name", "id") VALUES ($1, $2) RETURNING *`))
			Expect(c.args).To(Equal([]any{"Ada", "s-9"}))
			expectBalanced(c)
		})

		It("generates distinct ids across calls", func() {
			_, _ = store.Create(ctx, "students", map[string]any{"first_name": "A"})
			_, _ = store.Create(ctx, "students", map[string]any{"first_name": "B"})
			Expect(db.calls[0].args[0]).NotTo(Equal(db.calls[1].args[0]))
		})

		It("rejects an empty field set", func() {
			_, err := store.Create(ctx, "students", map[string]any{})
			Expect(internal.IsType(err, internal.ErrorTypeValidation)).To(BeTrue())
			Expect(db.calls).To(BeEmpty())
		})

		It("rejects unsafe identifiers", func() {
			_, err := store.Create(ctx, "students", map[string]any{`name"; DROP TABLE x; --`: "x"})
			Expect(internal.IsType(err, internal.ErrorTypeValidation)).To(BeTrue())
			Expect(db.calls).To(BeEmpty())
		})

		It("passes duplicate key errors through", func() {
			db.errs = []error{internal.NewDuplicateKeyError("record already exists", internal.ErrCodeDuplicateKey)}
			_, err := store.Create(ctx, "users", map[string]any{"username": "alice"})
			Expect(internal.IsType(err, internal.ErrorTypeDuplicateKey)).To(BeTrue())
		})
	})

	Describe("FindByID", func() {
		It("returns nil when nothing matches", func() {
			rec, err := store.FindByID(ctx, "students", "missing")
			Expect(err).NotTo(HaveOccurred())
			Expect(rec).To(BeNil())
			Expect(db.last().sql).To(Equal(`SELECT * FROM "students" WHERE "id" = $1`))
			expectBalanced(db.last())
		})
	})

	Describe("FindAll", func() {
		conditions := map[string]any{"status": "active", "grade": "5"}

		type combo struct {
			conds  map[string]any
			limit  *int
			offset *int
		}

		DescribeTable("keeps clause order and parameter positions",
			func(c combo, expectedSQL string, expectedArgs []any) {
				_, err := store.FindAll(ctx, "students", record.Query{
					Conditions: c.conds,
					Limit:      c.limit,
					Offset:     c.offset,
				})
				Expect(err).NotTo(HaveOccurred())

				got := db.last()
				Expect(got.sql).To(Equal(expectedSQL))
				Expect(got.args).To(Equal(expectedArgs))
				expectBalanced(got)

				where := strings.Index(got.sql, " WHERE ")
				order := strings.Index(got.sql, " ORDER BY ")
				limit := strings.Index(got.sql, " LIMIT ")
				offset := strings.Index(got.sql, " OFFSET ")
				Expect(order).To(BeNumerically(">", 0))
				if where >= 0 {
					Expect(where).To(BeNumerically("<", order))
				}
				if limit >= 0 {
					Expect(limit).To(BeNumerically(">", order))
				}
				if offset >= 0 {
					Expect(offset).To(BeNumerically(">", order))
					if limit >= 0 {
						Expect(offset).To(BeNumerically(">", limit))
					}
				}
			},
			Entry("nothing", combo{},
				`SELECT * FROM "students" ORDER BY "created_at" DESC`, []any{}),
			Entry("limit only", combo{limit: record.Int(10)},
				`SELECT * FROM "students" ORDER BY "created_at" DESC LIMIT $1`, []any{10}),
			Entry("offset only", combo{offset: record.Int(20)},
				`SELECT * FROM "students" ORDER BY "created_at" DESC OFFSET $1`, []any{20}),
			Entry("limit and offset", combo{limit: record.Int(10), offset: record.Int(20)},
				`SELECT * FROM "students" ORDER BY "created_at" DESC LIMIT $1 OFFSET $2`, []any{10, 20}),
			Entry("conditions only", combo{conds: conditions},
				`SELECT * FROM "students" WHERE "grade" = $1 AND "status" = $2 ORDER BY "created_at" DESC`,
				[]any{"5", "active"}),
			Entry("conditions and limit", combo{conds: conditions, limit: record.Int(10)},
				`SELECT * FROM "students" WHERE "grade" = $1 AND "status" = $2 ORDER BY "created_at" DESC LIMIT $3`,
				[]any{"5", "active", 10}),
			Entry("conditions and offset", combo{conds: conditions, offset: record.Int(20)},
				`SELECT * FROM "students" WHERE "grade" = $1 AND "status" = $2 ORDER BY "created_at" DESC OFFSET $3`,
				[]any{"5", "active", 20}),
			Entry("everything", combo{conds: conditions, limit: record.Int(10), offset: record.Int(20)},
				`SELECT * FROM "students" WHERE "grade" = $1 AND "status" = $2 ORDER BY "created_at" DESC LIMIT $3 OFFSET $4`,
				[]any{"5", "active", 10, 20}),
		)

		It("honours an explicit ordering", func() {
			_, err := store.FindAll(ctx, "students", record.Query{
				OrderBy: []record.Order{record.Asc("last_name"), record.Desc("first_name")},
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(db.last().sql).To(Equal(`SELECT * FROM "students" ORDER BY "last_name" ASC, "first_name" DESC`))
		})

		It("matches nil conditions with IS NULL", func() {
			_, err := store.FindAll(ctx, "students", record.Query{
				Conditions: map[string]any{"graduated_at": nil, "status": "active"},
				Limit:      record.Int(5),
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(db.last().sql).To(Equal(`SELECT * FROM "students" WHERE "graduated_at" IS NULL AND "status" = $1 ORDER BY "created_at" DESC LIMIT $2`))
			expectBalanced(db.last())
		})
	})

	Describe("UpdateByID", func() {
		It("stamps updated_at and binds the id last", func() {
			db.results = [][]database.Record{{{"id": "s-1", "grade": "6"}}}

			rec, err := store.UpdateByID(ctx, "students", "s-1", map[string]any{"grade": "6"})
			Expect(err).NotTo(HaveOccurred())
			Expect(rec["grade"]).To(Equal("6"))

			c := db.last()
			Expect(c.sql).To(Equal(`UPDATE "students" SET "grade" = $1, "updated_at" = $2 WHERE "id" = $3 RETURNING *`))
			Expect(c.args).To(Equal([]any{"6", now, "s-1"}))
			expectBalanced(c)
		})

		It("keeps a caller supplied updated_at", func() {
			stamp := now.Add(-time.Hour)
			_, err := store.UpdateByID(ctx, "students", "s-1", map[string]any{"grade": "6", "updated_at": stamp})
			Expect(err).NotTo(HaveOccurred())
			Expect(db.last().args).To(Equal([]any{"6", stamp, "s-1"}))
		})

		It("skips the stamp for tables without updated_at", func() {
			_, err := store.UpdateByID(ctx, "settings", "k-1", map[string]any{"value": "on"})
			Expect(err).NotTo(HaveOccurred())
			Expect(db.last().sql).To(Equal(`UPDATE "settings" SET "value" = $1 WHERE "id" = $2 RETURNING *`))
			expectBalanced(db.last())
		})

		It("returns nil when no row has the id", func() {
			rec, err := store.UpdateByID(ctx, "students", "missing", map[string]any{"grade": "6"})
			Expect(err).NotTo(HaveOccurred())
			Expect(rec).To(BeNil())
		})

		It("rejects an empty field set", func() {
			_, err := store.UpdateByID(ctx, "students", "s-1", nil)
			Expect(errors.Is(err, internal.ErrEmptyFields)).To(BeTrue())
			Expect(db.calls).To(BeEmpty())
		})
	})

	Describe("DeleteByID", func() {
		It("is idempotent", func() {
			db.results = [][]database.Record{{{"id": "s-1"}}, {}}

			rec, err := store.DeleteByID(ctx, "students", "s-1")
			Expect(err).NotTo(HaveOccurred())
			Expect(rec["id"]).To(Equal("s-1"))

			rec, err = store.DeleteByID(ctx, "students", "s-1")
			Expect(err).NotTo(HaveOccurred())
			Expect(rec).To(BeNil())

			Expect(db.last().sql).To(Equal(`DELETE FROM "students" WHERE "id" = $1 RETURNING *`))
			expectBalanced(db.last())
		})
	})

	Describe("Count and Exists", func() {
		It("counts with conditions", func() {
			db.results = [][]database.Record{{{"count": int64(3)}}}

			n, err := store.Count(ctx, "fee_payments", map[string]any{"student_id": "s-1"})
			Expect(err).NotTo(HaveOccurred())
			Expect(n).To(Equal(int64(3)))
			Expect(db.last().sql).To(Equal(`SELECT COUNT(*) AS "count" FROM "fee_payments" WHERE "student_id" = $1`))
			expectBalanced(db.last())
		})

		It("derives exists from count", func() {
			db.results = [][]database.Record{{{"count": int64(0)}}, {{"count": "2"}}}

			ok, err := store.Exists(ctx, "users", map[string]any{"username": "bob"})
			Expect(err).NotTo(HaveOccurred())
			Expect(ok).To(BeFalse())

			ok, err = store.Exists(ctx, "users", map[string]any{"username": "alice"})
			Expect(err).NotTo(HaveOccurred())
			Expect(ok).To(BeTrue())
		})
	})

	Describe("Search", func() {
		It("ORs the search fields and ANDs the conditions", func() {
			_, err := store.Search(ctx, "students", record.SearchQuery{
				Fields:     []string{"first_name", "last_name"},
				Term:       "ada",
				Conditions: map[string]any{"status": "active"},
				Limit:      record.Int(25),
			})
			Expect(err).NotTo(HaveOccurred())

			c := db.last()
			Expect(c.sql).To(Equal(`SELECT * FROM "students" WHERE "status" = $1 AND ("first_name" ILIKE $2 OR "last_name" ILIKE $3) ORDER BY "created_at" DESC LIMIT $4`))
			Expect(c.args).To(Equal([]any{"active", "%ada%", "%ada%", 25}))
			expectBalanced(c)
		})

		It("escapes LIKE wildcards in the term", func() {
			_, err := store.Search(ctx, "inventory_items", record.SearchQuery{
				Fields: []string{"name"},
				Term:   "50%_off",
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(db.last().args).To(Equal([]any{`%50\%\_off%`}))
		})

		It("falls back to FindAll for a blank term", func() {
			_, err := store.Search(ctx, "students", record.SearchQuery{
				Fields: []string{"first_name"},
				Term:   "  ",
				Offset: record.Int(5),
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(db.last().sql).To(Equal(`SELECT * FROM "students" ORDER BY "created_at" DESC OFFSET $1`))
			expectBalanced(db.last())
		})

		It("counts with the same predicate", func() {
			db.results = [][]database.Record{{{"count": int64(7)}}}
			n, err := store.CountSearch(ctx, "students", record.SearchQuery{
				Fields:     []string{"first_name"},
				Term:       "ada",
				Conditions: map[string]any{"status": "active"},
				Limit:      record.Int(25),
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(n).To(Equal(int64(7)))
			Expect(db.last().sql).To(Equal(`SELECT COUNT(*) AS "count" FROM "students" WHERE "status" = $1 AND ("first_name" ILIKE $2)`))
			expectBalanced(db.last())
		})
	})

	Describe("BulkInsert", func() {
		rows := []map[string]any{
			{"student_id": "s-1", "amount": 1000},
			{"student_id": "s-2", "amount": 2000},
		}

		It("runs every insert inside one transaction", func() {
			db.results = [][]database.Record{{{"id": "gen-1"}}, {{"id": "gen-2"}}}

			out, err := store.BulkInsert(ctx, "fee_payments", rows, nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(out).To(HaveLen(2))
			Expect(db.txStarted).To(Equal(1))
			Expect(db.txFinished).To(Equal(1))
			for _, c := range db.calls {
				expectBalanced(c)
			}
		})

		It("rolls the whole batch back when one insert fails", func() {
			db.errs = []error{nil, internal.NewDuplicateKeyError("record already exists", internal.ErrCodeDuplicateKey)}

			out, err := store.BulkInsert(ctx, "fee_payments", rows, nil)
			Expect(internal.IsType(err, internal.ErrorTypeDuplicateKey)).To(BeTrue())
			Expect(out).To(BeNil())
			Expect(db.txRolled).To(Equal(1))
		})

		It("uses the caller's executor without opening a transaction", func() {
			outer := &fakeDB{}
			_, err := store.BulkInsert(ctx, "fee_payments", rows, outer)
			Expect(err).NotTo(HaveOccurred())
			Expect(outer.calls).To(HaveLen(2))
			Expect(db.txStarted).To(BeZero())
		})

		It("validates every record before touching the database", func() {
			_, err := store.BulkInsert(ctx, "fee_payments", []map[string]any{{"amount": 1}, {}}, nil)
			Expect(internal.IsType(err, internal.ErrorTypeValidation)).To(BeTrue())
			Expect(db.calls).To(BeEmpty())
			Expect(db.txStarted).To(BeZero())
		})
	})
})
