package controllers

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/saysophanna/babybear-backend/api/middleware"
	"github.com/saysophanna/babybear-backend/api/responses"
	"github.com/saysophanna/babybear-backend/internal/proofs"
	"github.com/saysophanna/babybear-backend/pkg/db/models"
	"github.com/saysophanna/babybear-backend/pkg/enums"
	pkgerrors "github.com/saysophanna/babybear-backend/pkg/errors"
	"github.com/saysophanna/babybear-backend/pkg/logger"
)

type proofResponse struct {
	ID          string  `json:"id"`
	URL         string  `json:"url"`
	ContentType string  `json:"content_type"`
	SizeBytes   int64   `json:"size_bytes"`
	OrderID     *string `json:"order_id,omitempty"`
	ReviewedAt  *string `json:"reviewed_at,omitempty"`
}

func proofView(proof *models.PaymentProof) proofResponse {
	resp := proofResponse{
		ID:          proof.ID.String(),
		URL:         proof.URL,
		ContentType: proof.ContentType,
		SizeBytes:   proof.SizeBytes,
	}
	if proof.OrderID != nil {
		id := proof.OrderID.String()
		resp.OrderID = &id
	}
	if proof.ReviewedAt != nil {
		t := proof.ReviewedAt.UTC().Format(time.RFC3339)
		resp.ReviewedAt = &t
	}
	return resp
}

// ProofUpload accepts a multipart transfer slip and stores it.
func ProofUpload(svc proofs.Service, maxUploadMB int, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := requireUserID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		// One extra MB of form overhead on top of the file limit.
		if err := r.ParseMultipartForm(int64(maxUploadMB+1) * 1024 * 1024); err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid multipart form"))
			return
		}

		file, header, err := r.FormFile("file")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "file field is required"))
			return
		}
		defer file.Close()

		proof, err := svc.Upload(r.Context(), userID, proofs.UploadInput{
			FileName:    header.Filename,
			ContentType: header.Header.Get("Content-Type"),
			Body:        file,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, proofView(proof))
	}
}

// ProofDetail returns a proof record if the caller owns it or is an admin.
func ProofDetail(svc proofs.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := requireUserID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		raw := strings.TrimSpace(chi.URLParam(r, "proofId"))
		proofID, err := uuid.Parse(raw)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid proof id"))
			return
		}

		role := enums.UserRole(middleware.RoleFromContext(r.Context()))
		proof, err := svc.Get(r.Context(), userID, role, proofID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, proofView(proof))
	}
}
