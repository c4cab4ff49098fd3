package repository

import (
	"context"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	"sms-relay-go/internal/model"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	// 每个连接都是独立的内存库，只保留一个连接
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })
	require.NoError(t, AutoMigrate(db))
	return db
}

func TestDeliveryRepository_CreateAndList(t *testing.T) {
	repo := NewDeliveryRepository(newTestDB(t))
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.NoError(t, repo.Create(ctx, &model.DeliveryRecord{
			SenderID: "A", InboundSID: "SM1", SegmentIndex: i, SegmentTotal: 3,
			ProviderSID: "SMout", Status: model.DeliveryStatusSent,
		}))
	}
	require.NoError(t, repo.Create(ctx, &model.DeliveryRecord{SenderID: "B", Status: model.DeliveryStatusFailed, Error: "boom"}))

	records, err := repo.ListBySender(ctx, "A", 0)
	require.NoError(t, err)
	require.Len(t, records, 3)
	// 最新的在前
	assert.Equal(t, 2, records[0].SegmentIndex)
	assert.Equal(t, 0, records[2].SegmentIndex)
	assert.False(t, records[0].CreatedAt.IsZero())

	limited, err := repo.ListBySender(ctx, "A", 2)
	require.NoError(t, err)
	assert.Len(t, limited, 2)

	other, err := repo.ListBySender(ctx, "B", 10)
	require.NoError(t, err)
	require.Len(t, other, 1)
	assert.Equal(t, "boom", other[0].Error)

	none, err := repo.ListBySender(ctx, "C", 10)
	require.NoError(t, err)
	assert.Empty(t, none)
}
