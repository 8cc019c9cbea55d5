package artifacts

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/sandgallery/sandgallery-backend/pkg/db/models"
	"github.com/sandgallery/sandgallery-backend/pkg/enums"
	pkgerrors "github.com/sandgallery/sandgallery-backend/pkg/errors"
	"github.com/sandgallery/sandgallery-backend/pkg/logger"
	"github.com/sandgallery/sandgallery-backend/pkg/pagination"
	"github.com/sandgallery/sandgallery-backend/pkg/storage"
)

const (
	// MaxInlineReference bounds a data: reference that reaches the history table.
	MaxInlineReference = 1 << 20
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service writes generation results to the blob store and records history.
type Service interface {
	Persist(ctx context.Context, userID string, input PersistInput) (*PersistResult, error)
	List(ctx context.Context, userID string, page pagination.Params) (*CreationPage, error)
}

// CreationPage is one page of history, newest first.
type CreationPage struct {
	Creations  []models.Creation `json:"creations"`
	NextCursor string            `json:"nextCursor,omitempty"`
}

// PersistInput describes one generation result. Ref is either a base64 data
// URI or a reference (remote URL, storage path) recorded unchanged.
type PersistInput struct {
	Kind     enums.GenerationKind
	Prompt   string
	Ref      string
	Cost     int
	Analysis *models.VideoAnalysis
}

type PersistResult struct {
	URL      string           `json:"url"`
	Creation *models.Creation `json:"creation"`
}

type ServiceParams struct {
	Repo          Repository
	Tx            txRunner
	Store         storage.BlobStore
	PublicBaseURL string
	QuotaBytes    int64
	Logger        *logger.Logger
}

type service struct {
	repo       Repository
	tx         txRunner
	store      storage.BlobStore
	publicBase string
	quota      int64
	logg       *logger.Logger
	now        func() time.Time
}

func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("artifacts repository required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Store == nil {
		return nil, fmt.Errorf("blob store required")
	}
	if strings.TrimSpace(params.PublicBaseURL) == "" {
		return nil, fmt.Errorf("public base url required")
	}
	if params.QuotaBytes <= 0 {
		return nil, fmt.Errorf("storage quota must be positive")
	}
	logg := params.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	return &service{
		repo:       params.Repo,
		tx:         params.Tx,
		store:      params.Store,
		publicBase: strings.TrimRight(params.PublicBaseURL, "/"),
		quota:      params.QuotaBytes,
		logg:       logg,
		now:        time.Now,
	}, nil
}

func (s *service) Persist(ctx context.Context, userID string, input PersistInput) (*PersistResult, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "caller identity missing")
	}
	ref := strings.TrimSpace(input.Ref)
	if ref == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "result reference is empty")
	}

	if !isInline(ref) {
		return s.record(ctx, userID, input, ref, 0)
	}

	payload, err := parseDataURI(ref)
	if err != nil {
		return nil, err
	}
	size := int64(len(payload.Data))

	account, err := s.repo.FindAccount(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load account")
	}
	if account == nil {
		return nil, pkgerrors.Newf(pkgerrors.CodeNotFound, "account %s not found", userID)
	}
	enforce := !account.Privileged()
	if enforce && account.StorageUsedBytes+size > s.quota {
		return nil, s.quotaError(account.StorageUsedBytes, size)
	}

	path := fmt.Sprintf("creations/%s/%d.%s", userID, s.now().UnixMilli(), extensionFor(payload.MimeType))
	token := uuid.NewString()
	if err := s.store.Put(ctx, storage.Object{
		Path:        path,
		ContentType: payload.MimeType,
		Data:        payload.Data,
		Metadata:    map[string]string{storage.DownloadTokenKey: token},
	}); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeUploadFailed, err, "blob upload failed")
	}

	publicURL := fmt.Sprintf("%s/v0/b/%s/o/%s?alt=media&token=%s",
		s.publicBase, s.store.Bucket(), url.PathEscape(path), token)

	result, err := s.recordUpload(ctx, userID, input, publicURL, size, enforce)
	if err != nil {
		s.logg.Warn(s.logg.WithField(ctx, "blob_path", path), "artifact.orphaned_blob")
		return nil, err
	}
	return result, nil
}

func (s *service) recordUpload(ctx context.Context, userID string, input PersistInput, publicURL string, size int64, enforce bool) (*PersistResult, error) {
	var creation *models.Creation
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		ok, err := repo.AddStorageUsage(ctx, userID, size, s.quota, enforce)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update storage usage")
		}
		if !ok {
			current, findErr := repo.FindAccount(ctx, userID)
			if findErr != nil || current == nil {
				return s.quotaError(s.quota, size)
			}
			return s.quotaError(current.StorageUsedBytes, size)
		}
		creation, err = s.append(ctx, repo, userID, input, publicURL, size)
		return err
	})
	if err != nil {
		return nil, err
	}
	return &PersistResult{URL: publicURL, Creation: creation}, nil
}

func (s *service) record(ctx context.Context, userID string, input PersistInput, ref string, size int64) (*PersistResult, error) {
	if strings.HasPrefix(ref, dataURIPrefix) && len(ref) > MaxInlineReference {
		return nil, pkgerrors.Newf(pkgerrors.CodePayloadTooLarge, "inline reference of %d bytes exceeds %d", len(ref), MaxInlineReference)
	}
	var creation *models.Creation
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		var err error
		creation, err = s.append(ctx, s.repo.WithTx(tx), userID, input, ref, size)
		return err
	})
	if err != nil {
		return nil, err
	}
	return &PersistResult{URL: ref, Creation: creation}, nil
}

func (s *service) append(ctx context.Context, repo Repository, userID string, input PersistInput, ref string, size int64) (*models.Creation, error) {
	kind := input.Kind
	if kind == "" {
		kind = enums.GenerationKindImage
	}
	creation := &models.Creation{
		UserID:    userID,
		Kind:      kind,
		Prompt:    input.Prompt,
		URL:       ref,
		Cost:      input.Cost,
		SizeBytes: size,
	}
	if err := repo.CreateCreation(ctx, creation); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "append creation")
	}
	if input.Analysis != nil {
		input.Analysis.UserID = userID
		if err := repo.CreateAnalysis(ctx, input.Analysis); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "append video analysis")
		}
	}
	return creation, nil
}

func (s *service) List(ctx context.Context, userID string, page pagination.Params) (*CreationPage, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "caller identity missing")
	}
	before, err := pagination.ParseCursor(page.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	rows, err := s.repo.ListCreations(ctx, userID, before, pagination.LimitWithBuffer(page.Limit))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list creations")
	}
	rows, next := pagination.Trim(rows, page.Limit, func(c models.Creation) pagination.Cursor {
		return pagination.Cursor{CreatedAt: c.CreatedAt, ID: c.ID}
	})
	if rows == nil {
		rows = []models.Creation{}
	}
	return &CreationPage{Creations: rows, NextCursor: next}, nil
}

func (s *service) quotaError(used, size int64) error {
	return pkgerrors.Newf(pkgerrors.CodeQuotaExceeded, "storage quota of %d bytes exceeded", s.quota).
		WithDetails(map[string]int64{"used": used, "size": size, "quota": s.quota})
}
