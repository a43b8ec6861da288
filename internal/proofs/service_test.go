package proofs

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/saysophanna/babybear-backend/pkg/db/models"
	"github.com/saysophanna/babybear-backend/pkg/enums"
	pkgerrors "github.com/saysophanna/babybear-backend/pkg/errors"
)

type stubProofRepo struct {
	byID    map[uuid.UUID]*models.PaymentProof
	created int
}

func newStubProofRepo() *stubProofRepo {
	return &stubProofRepo{byID: make(map[uuid.UUID]*models.PaymentProof)}
}

func (s *stubProofRepo) WithTx(tx *gorm.DB) Repository { return s }

func (s *stubProofRepo) Create(ctx context.Context, proof *models.PaymentProof) (*models.PaymentProof, error) {
	s.created++
	copied := *proof
	s.byID[proof.ID] = &copied
	return proof, nil
}

func (s *stubProofRepo) FindByID(ctx context.Context, id uuid.UUID) (*models.PaymentProof, error) {
	proof, ok := s.byID[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *proof
	return &copied, nil
}

func (s *stubProofRepo) FindByOrderID(ctx context.Context, orderID uuid.UUID) (*models.PaymentProof, error) {
	for _, proof := range s.byID {
		if proof.OrderID != nil && *proof.OrderID == orderID {
			copied := *proof
			return &copied, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (s *stubProofRepo) Save(ctx context.Context, proof *models.PaymentProof) error {
	copied := *proof
	s.byID[proof.ID] = &copied
	return nil
}

func (s *stubProofRepo) Delete(ctx context.Context, id uuid.UUID) error {
	delete(s.byID, id)
	return nil
}

func (s *stubProofRepo) ListUnlinkedBefore(ctx context.Context, cutoff time.Time) ([]models.PaymentProof, error) {
	var rows []models.PaymentProof
	for _, proof := range s.byID {
		if proof.OrderID == nil && proof.CreatedAt.Before(cutoff) {
			rows = append(rows, *proof)
		}
	}
	return rows, nil
}

func newTestService(t *testing.T, repo Repository) Service {
	t.Helper()
	store, err := NewDiskStore(t.TempDir(), "/uploads")
	if err != nil {
		t.Fatalf("new disk store: %v", err)
	}
	svc, err := NewService(repo, store, 1)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc
}

func TestUploadStoresFileAndRecord(t *testing.T) {
	repo := newStubProofRepo()
	svc := newTestService(t, repo)

	proof, err := svc.Upload(context.Background(), uuid.New(), UploadInput{
		FileName:    "transfer slip.png",
		ContentType: "image/png",
		Body:        strings.NewReader("fake image bytes"),
	})
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	if repo.created != 1 {
		t.Fatalf("expected 1 record, got %d", repo.created)
	}
	if !strings.HasPrefix(proof.URL, "/uploads/proofs/") {
		t.Fatalf("unexpected url %q", proof.URL)
	}
	if !strings.HasSuffix(proof.URL, "/transfer-slip.png") {
		t.Fatalf("file name not sanitized in url %q", proof.URL)
	}
	if proof.SizeBytes != int64(len("fake image bytes")) {
		t.Fatalf("unexpected size %d", proof.SizeBytes)
	}
}

func TestUploadRejectsDisallowedContentType(t *testing.T) {
	svc := newTestService(t, newStubProofRepo())

	_, err := svc.Upload(context.Background(), uuid.New(), UploadInput{
		FileName:    "malware.exe",
		ContentType: "application/octet-stream",
		Body:        strings.NewReader("nope"),
	})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestUploadRejectsOversizeFile(t *testing.T) {
	repo := newStubProofRepo()
	svc := newTestService(t, repo)

	big := strings.NewReader(strings.Repeat("a", 1024*1024+1))
	_, err := svc.Upload(context.Background(), uuid.New(), UploadInput{
		FileName:    "big.png",
		ContentType: "image/png",
		Body:        big,
	})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
	if repo.created != 0 {
		t.Fatalf("expected no record for oversize upload, got %d", repo.created)
	}
}

func TestGetEnforcesOwnership(t *testing.T) {
	repo := newStubProofRepo()
	svc := newTestService(t, repo)

	owner := uuid.New()
	proof, err := svc.Upload(context.Background(), owner, UploadInput{
		FileName:    "slip.png",
		ContentType: "image/png",
		Body:        strings.NewReader("bytes"),
	})
	if err != nil {
		t.Fatalf("upload: %v", err)
	}

	if _, err := svc.Get(context.Background(), owner, enums.UserRoleBuyer, proof.ID); err != nil {
		t.Fatalf("owner get: %v", err)
	}
	if _, err := svc.Get(context.Background(), uuid.New(), enums.UserRoleAdmin, proof.ID); err != nil {
		t.Fatalf("admin get: %v", err)
	}

	_, err = svc.Get(context.Background(), uuid.New(), enums.UserRoleBuyer, proof.ID)
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeForbidden {
		t.Fatalf("expected forbidden, got %v", err)
	}
}

func TestAttachOrderRejectsRelink(t *testing.T) {
	repo := newStubProofRepo()
	svc := newTestService(t, repo)

	proof, err := svc.Upload(context.Background(), uuid.New(), UploadInput{
		FileName:    "slip.png",
		ContentType: "image/png",
		Body:        strings.NewReader("bytes"),
	})
	if err != nil {
		t.Fatalf("upload: %v", err)
	}

	orderID := uuid.New()
	if err := svc.AttachOrder(context.Background(), proof.ID, orderID); err != nil {
		t.Fatalf("attach: %v", err)
	}
	// Attaching the same order again is a no-op.
	if err := svc.AttachOrder(context.Background(), proof.ID, orderID); err != nil {
		t.Fatalf("re-attach same order: %v", err)
	}

	err = svc.AttachOrder(context.Background(), proof.ID, uuid.New())
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeConflict {
		t.Fatalf("expected conflict, got %v", err)
	}
}

func TestMarkReviewedByOrderSetsTimestamp(t *testing.T) {
	repo := newStubProofRepo()
	svc := newTestService(t, repo)

	proof, err := svc.Upload(context.Background(), uuid.New(), UploadInput{
		FileName:    "slip.pdf",
		ContentType: "application/pdf",
		Body:        strings.NewReader("pdf bytes"),
	})
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	orderID := uuid.New()
	if err := svc.AttachOrder(context.Background(), proof.ID, orderID); err != nil {
		t.Fatalf("attach: %v", err)
	}

	if err := svc.MarkReviewedByOrder(context.Background(), orderID); err != nil {
		t.Fatalf("mark reviewed: %v", err)
	}
	stored, _ := repo.FindByID(context.Background(), proof.ID)
	if stored.ReviewedAt == nil {
		t.Fatal("expected reviewed timestamp")
	}
}

func TestMarkReviewedByOrderWithoutProofIsNoOp(t *testing.T) {
	svc := newTestService(t, newStubProofRepo())

	// COD and KHQR orders have no slip to stamp.
	if err := svc.MarkReviewedByOrder(context.Background(), uuid.New()); err != nil {
		t.Fatalf("expected no-op, got %v", err)
	}
}
