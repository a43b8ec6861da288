package proofs

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/saysophanna/babybear-backend/pkg/db/models"
)

func setupProofsTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{})
	require.NoError(t, err)

	proofs := `
CREATE TABLE IF NOT EXISTS payment_proofs (
  id TEXT PRIMARY KEY,
  user_id TEXT NOT NULL,
  order_id TEXT,
  url TEXT NOT NULL,
  content_type TEXT NOT NULL,
  size_bytes INTEGER NOT NULL,
  reviewed_at DATETIME,
  created_at DATETIME
);`
	require.NoError(t, db.Exec(proofs).Error)
	return db
}

func seedProof(t *testing.T, repo Repository, orderID *uuid.UUID, createdAt time.Time) *models.PaymentProof {
	t.Helper()
	proof := &models.PaymentProof{
		ID:          uuid.New(),
		UserID:      uuid.New(),
		OrderID:     orderID,
		URL:         "/uploads/proofs/" + uuid.NewString() + "/slip.png",
		ContentType: "image/png",
		SizeBytes:   1024,
		CreatedAt:   createdAt,
	}
	created, err := repo.Create(context.Background(), proof)
	require.NoError(t, err)
	return created
}

func TestRepoListUnlinkedBeforeSkipsLinkedProofs(t *testing.T) {
	repo := NewRepository(setupProofsTestDB(t))
	weekAgo := time.Now().Add(-8 * 24 * time.Hour)

	orderID := uuid.New()
	linked := seedProof(t, repo, &orderID, weekAgo)
	stale := seedProof(t, repo, nil, weekAgo)
	fresh := seedProof(t, repo, nil, time.Now())

	rows, err := repo.ListUnlinkedBefore(context.Background(), time.Now().Add(-7*24*time.Hour))
	require.NoError(t, err)

	ids := make([]uuid.UUID, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row.ID)
	}
	assert.Contains(t, ids, stale.ID)
	assert.NotContains(t, ids, linked.ID, "a proof attached to an order must never be swept")
	assert.NotContains(t, ids, fresh.ID)
}

func TestRepoFindByOrderID(t *testing.T) {
	repo := NewRepository(setupProofsTestDB(t))

	orderID := uuid.New()
	proof := seedProof(t, repo, &orderID, time.Now())

	found, err := repo.FindByOrderID(context.Background(), orderID)
	require.NoError(t, err)
	assert.Equal(t, proof.ID, found.ID)

	_, err = repo.FindByOrderID(context.Background(), uuid.New())
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}
