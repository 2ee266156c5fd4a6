package store_test

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/frahmantamala/travel-approval/internal"
	"github.com/frahmantamala/travel-approval/internal/store"
)

type counter struct {
	ID    uint `gorm:"primaryKey"`
	Value int
}

var _ = Describe("TxManager", func() {
	var (
		db  *gorm.DB
		txm store.TxManager
		ctx context.Context
	)

	BeforeEach(func() {
		var err error
		db, err = gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
		Expect(err).NotTo(HaveOccurred())
		sqlDB, err := db.DB()
		Expect(err).NotTo(HaveOccurred())
		sqlDB.SetMaxOpenConns(1)
		Expect(db.AutoMigrate(&counter{})).To(Succeed())
		txm = store.NewTxManager(db)
		ctx = context.Background()
	})

	count := func() int64 {
		var n int64
		Expect(db.Model(&counter{}).Count(&n).Error).NotTo(HaveOccurred())
		return n
	}

	It("commits when the function succeeds", func() {
		err := txm.RunInTx(ctx, func(txCtx context.Context) error {
			return store.GetDB(txCtx, db).Create(&counter{Value: 1}).Error
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(count()).To(Equal(int64(1)))
	})

	It("rolls back and passes AppErrors through", func() {
		conflict := internal.NewConflictError("stale", internal.ErrCodeStaleRequest)
		err := txm.RunInTx(ctx, func(txCtx context.Context) error {
			Expect(store.GetDB(txCtx, db).Create(&counter{Value: 1}).Error).NotTo(HaveOccurred())
			return conflict
		})
		Expect(err).To(MatchError(conflict))
		Expect(count()).To(BeZero())
	})

	It("reports raw errors as upstream unavailable", func() {
		err := txm.RunInTx(ctx, func(context.Context) error { return errors.New("disk full") })
		Expect(internal.IsType(err, internal.ErrorTypeUpstream)).To(BeTrue())
	})

	It("reports a deadlock or serialization failure as a conflict", func() {
		for _, code := range []string{"40P01", "40001"} {
			err := store.Unavailable("lock approvals", fmt.Errorf("exec: %w", &pgconn.PgError{Code: code}))
			Expect(err).To(MatchError(store.ErrConcurrentUpdate))
			Expect(internal.IsType(err, internal.ErrorTypeConflict)).To(BeTrue())
		}

		err := txm.RunInTx(ctx, func(context.Context) error { return &pgconn.PgError{Code: "40P01"} })
		Expect(internal.IsType(err, internal.ErrorTypeConflict)).To(BeTrue())

		err = store.Unavailable("lock approvals", &pgconn.PgError{Code: "23505"})
		Expect(internal.IsType(err, internal.ErrorTypeUpstream)).To(BeTrue())
	})

	It("joins an outer transaction", func() {
		err := txm.RunInTx(ctx, func(outer context.Context) error {
			Expect(txm.RunInTx(outer, func(inner context.Context) error {
				return store.GetDB(inner, db).Create(&counter{Value: 2}).Error
			})).To(Succeed())
			return errors.New("abort")
		})
		Expect(err).To(HaveOccurred())
		Expect(count()).To(BeZero())
	})
})
