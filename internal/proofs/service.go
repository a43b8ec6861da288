package proofs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/saysophanna/babybear-backend/pkg/db/models"
	"github.com/saysophanna/babybear-backend/pkg/enums"
	pkgerrors "github.com/saysophanna/babybear-backend/pkg/errors"
)

var allowedMimeTypes = []string{"image/png", "image/jpeg", "image/webp", "application/pdf"}

// Service exposes payment proof upload and review bookkeeping.
type Service interface {
	Upload(ctx context.Context, userID uuid.UUID, input UploadInput) (*models.PaymentProof, error)
	Get(ctx context.Context, userID uuid.UUID, role enums.UserRole, id uuid.UUID) (*models.PaymentProof, error)
	AttachOrder(ctx context.Context, proofID, orderID uuid.UUID) error
	MarkReviewedByOrder(ctx context.Context, orderID uuid.UUID) error
}

type service struct {
	repo     Repository
	store    BlobStore
	maxBytes int64
	now      func() time.Time
}

// NewService constructs a proof service backed by the provided repository and blob store.
func NewService(repo Repository, store BlobStore, maxUploadMB int) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("proof repository required")
	}
	if store == nil {
		return nil, fmt.Errorf("blob store required")
	}
	if maxUploadMB <= 0 {
		return nil, fmt.Errorf("max upload size must be positive")
	}
	return &service{
		repo:     repo,
		store:    store,
		maxBytes: int64(maxUploadMB) * 1024 * 1024,
		now:      time.Now,
	}, nil
}

// UploadInput models an incoming transfer slip.
type UploadInput struct {
	FileName    string
	ContentType string
	Body        io.Reader
}

func (s *service) Upload(ctx context.Context, userID uuid.UUID, input UploadInput) (*models.PaymentProof, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user identity missing")
	}
	if input.Body == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "file body required")
	}

	contentType := strings.TrimSpace(input.ContentType)
	if !isAllowedMime(contentType) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "content type not allowed for payment proofs")
	}

	proofID := uuid.New()
	key := buildKey(proofID, input.FileName)

	url, size, err := s.store.Put(key, contentType, input.Body, s.maxBytes)
	if err != nil {
		if errors.Is(err, errTooLarge) {
			return nil, pkgerrors.New(pkgerrors.CodeValidation,
				fmt.Sprintf("file exceeds upload limit of %d bytes", s.maxBytes))
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "store proof file")
	}

	proof := &models.PaymentProof{
		ID:          proofID,
		UserID:      userID,
		URL:         url,
		ContentType: contentType,
		SizeBytes:   size,
	}
	if _, err := s.repo.Create(ctx, proof); err != nil {
		_ = s.store.Remove(key)
		return nil, pkgerrors.FromDB(err, "payment proof not found")
	}
	return proof, nil
}

func (s *service) Get(ctx context.Context, userID uuid.UUID, role enums.UserRole, id uuid.UUID) (*models.PaymentProof, error) {
	proof, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, pkgerrors.FromDB(err, "payment proof not found")
	}
	if role != enums.UserRoleAdmin && proof.UserID != userID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "payment proof does not belong to user")
	}
	return proof, nil
}

func (s *service) AttachOrder(ctx context.Context, proofID, orderID uuid.UUID) error {
	if orderID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	proof, err := s.repo.FindByID(ctx, proofID)
	if err != nil {
		return pkgerrors.FromDB(err, "payment proof not found")
	}
	if proof.OrderID != nil && *proof.OrderID != orderID {
		return pkgerrors.New(pkgerrors.CodeConflict, "payment proof already linked to another order")
	}
	proof.OrderID = &orderID
	if err := s.repo.Save(ctx, proof); err != nil {
		return pkgerrors.FromDB(err, "payment proof not found")
	}
	return nil
}

// MarkReviewedByOrder stamps the order's transfer slip once an admin has
// confirmed or rejected the payment. Orders without a proof (COD, KHQR)
// are a no-op.
func (s *service) MarkReviewedByOrder(ctx context.Context, orderID uuid.UUID) error {
	proof, err := s.repo.FindByOrderID(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		return pkgerrors.FromDB(err, "payment proof not found")
	}
	reviewedAt := s.now().UTC()
	proof.ReviewedAt = &reviewedAt
	if err := s.repo.Save(ctx, proof); err != nil {
		return pkgerrors.FromDB(err, "payment proof not found")
	}
	return nil
}

func isAllowedMime(contentType string) bool {
	for _, candidate := range allowedMimeTypes {
		if strings.EqualFold(candidate, contentType) {
			return true
		}
	}
	return false
}

func buildKey(id uuid.UUID, fileName string) string {
	cleanName := sanitizeFileName(fileName)
	if cleanName == "" {
		cleanName = id.String()
	}
	return fmt.Sprintf("proofs/%s/%s", id.String(), cleanName)
}

func sanitizeFileName(name string) string {
	clean := path.Base(strings.TrimSpace(name))
	if clean == "." || clean == "/" {
		return ""
	}
	var b strings.Builder
	b.Grow(len(clean))
	for _, r := range clean {
		switch {
		case r == '/' || r == '\\' || unicode.IsControl(r):
			continue
		case unicode.IsSpace(r):
			b.WriteRune('-')
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}
