package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"

	"fieldservice_backend/internal/adapters/storage"
	kitstransport "fieldservice_backend/internal/kits/transport"
	"fieldservice_backend/internal/verification/repository"
	"fieldservice_backend/internal/verification/service"
	"fieldservice_backend/internal/verification/transport"
	"fieldservice_backend/platform/httpkit"
	"fieldservice_backend/platform/validator"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// ChecklistUpdater reconciles verification outcomes back onto the job's kit
// checklist. The kits repository implements it.
type ChecklistUpdater interface {
	UpdateChecklistItemStatus(ctx context.Context, id uuid.UUID, tenantID uuid.UUID, checkStatus string, photoIDs []byte) error
}

// AuditReader lists the stored audit trail for a job.
type AuditReader interface {
	ListByJob(ctx context.Context, jobID, tenantID uuid.UUID) ([]repository.LoadVerification, error)
}

// Handler handles HTTP requests for load verification.
type Handler struct {
	svc       *service.Service
	val       *validator.Validator
	store     storage.EvidenceStore
	bucket    string
	checklist ChecklistUpdater
	audit     AuditReader
}

// New creates a new verification handler.
func New(svc *service.Service, val *validator.Validator, store storage.EvidenceStore, bucket string, checklist ChecklistUpdater, audit AuditReader) *Handler {
	return &Handler{
		svc:       svc,
		val:       val,
		store:     store,
		bucket:    bucket,
		checklist: checklist,
		audit:     audit,
	}
}

// RegisterRoutes registers the verification routes.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup, uploadLimit gin.HandlerFunc) {
	rg.POST("/:id/verify-load", uploadLimit, h.VerifyLoad)
	rg.GET("/:id/load-verifications", h.ListVerifications)
}

type storedPhoto struct {
	id   uuid.UUID
	key  string
	data []byte
	mime string
	name string
}

// VerifyLoad handles POST /api/v1/jobs/:id/verify-load.
// Multipart request: one or more "photos" file parts plus a "manifest" field
// mapping checklist items onto photo indexes.
func (h *Handler) VerifyLoad(c *gin.Context) {
	jobID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.BadRequest(c, "invalid id", nil)
		return
	}

	var manifest transport.VerifyLoadManifest
	if err := json.Unmarshal([]byte(c.PostForm("manifest")), &manifest); err != nil {
		httpkit.BadRequest(c, "manifest must be valid JSON", nil)
		return
	}
	if err := h.val.Struct(manifest); err != nil {
		httpkit.BadRequest(c, "validation failed", err.Error())
		return
	}

	form, err := c.MultipartForm()
	if err != nil {
		httpkit.BadRequest(c, "invalid multipart request", nil)
		return
	}
	files := form.File["photos"]
	if len(files) == 0 {
		httpkit.BadRequest(c, "at least one photo is required", nil)
		return
	}
	for _, item := range manifest.Items {
		if item.PhotoIndex >= len(files) {
			httpkit.BadRequest(c, fmt.Sprintf("photoIndex %d is out of range", item.PhotoIndex), nil)
			return
		}
	}

	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}
	tenantID := identity.TenantID()
	if tenantID == nil {
		httpkit.BadRequest(c, "tenant ID is required", nil)
		return
	}

	ctx := c.Request.Context()
	photos := make([]storedPhoto, 0, len(files))
	for _, file := range files {
		photo, err := h.storePhoto(ctx, file, *tenantID, jobID)
		if err != nil {
			httpkit.BadRequest(c, err.Error(), nil)
			return
		}
		photos = append(photos, *photo)
	}

	inputs := make([]service.VerifyPhotoInput, 0, len(manifest.Items))
	for _, item := range manifest.Items {
		photo := photos[item.PhotoIndex]
		checklistItemID := item.ChecklistItemID
		inputs = append(inputs, service.VerifyPhotoInput{
			TenantID:        *tenantID,
			JobID:           jobID,
			ChecklistItemID: &checklistItemID,
			PhotoID:         photo.id,
			PhotoKey:        photo.key,
			Photo: service.Photo{
				Data:     photo.data,
				MIMEType: photo.mime,
				FileName: photo.name,
			},
			ExpectedLabels: item.ExpectedLabels,
			VerifiedBy:     identity.UserID(),
		})
	}

	results, err := h.svc.VerifyPhotos(ctx, inputs)
	if httpkit.HandleError(c, err) {
		return
	}

	allVerified := true
	for _, result := range results {
		status := kitstransport.CheckStatusMissing
		if result.Verified {
			status = kitstransport.CheckStatusPresent
		} else {
			allVerified = false
		}

		photoIDs, _ := json.Marshal([]uuid.UUID{result.PhotoID})
		if err := h.checklist.UpdateChecklistItemStatus(ctx, result.ChecklistItemID, *tenantID, status, photoIDs); err != nil {
			if httpkit.HandleError(c, err) {
				return
			}
		}
	}

	resp := transport.VerifyLoadResponse{
		JobID:       jobID,
		KitID:       manifest.KitID,
		AllVerified: allVerified,
		Results:     make([]transport.VerificationResult, 0, len(results)),
	}
	for _, result := range results {
		resp.Results = append(resp.Results, *result)
	}

	httpkit.OK(c, resp)
}

func (h *Handler) storePhoto(ctx context.Context, file *multipart.FileHeader, tenantID, jobID uuid.UUID) (*storedPhoto, error) {
	if err := h.store.ValidateFileSize(file.Size); err != nil {
		return nil, err
	}
	contentType := file.Header.Get("Content-Type")
	if err := h.store.ValidateContentType(contentType); err != nil {
		return nil, err
	}

	src, err := file.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open uploaded photo: %w", err)
	}
	defer func() {
		_ = src.Close()
	}()

	data, err := io.ReadAll(io.LimitReader(src, h.store.GetMaxFileSize()+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read uploaded photo: %w", err)
	}
	if int64(len(data)) > h.store.GetMaxFileSize() {
		return nil, fmt.Errorf("photo exceeds maximum allowed size")
	}

	folder := fmt.Sprintf("%s/%s", tenantID, jobID)
	key, err := h.store.UploadFile(ctx, h.bucket, folder, file.Filename, contentType, bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("failed to store photo: %w", err)
	}

	return &storedPhoto{
		id:   uuid.New(),
		key:  key,
		data: data,
		mime: contentType,
		name: file.Filename,
	}, nil
}

// ListVerifications handles GET /api/v1/jobs/:id/load-verifications.
func (h *Handler) ListVerifications(c *gin.Context) {
	jobID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.BadRequest(c, "invalid id", nil)
		return
	}

	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}
	tenantID := identity.TenantID()
	if tenantID == nil {
		httpkit.BadRequest(c, "tenant ID is required", nil)
		return
	}

	records, err := h.audit.ListByJob(c.Request.Context(), jobID, *tenantID)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.JSON(c, http.StatusOK, gin.H{"jobId": jobID, "verifications": records})
}
