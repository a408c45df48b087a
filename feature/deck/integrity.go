package deck

import (
	"context"
	"errors"
	"fmt"
	"io"

	"deck-sync/core/errs"
	"deck-sync/core/storage"
	"deck-sync/feature/deck/models"

	"github.com/minio/minio-go/v7"
	"go.uber.org/zap"
)

// IntegrityReport lists attachments whose content is not where the store
// says it is.
type IntegrityReport struct {
	Checked int                 `json:"checked"`
	Missing []models.Attachment `json:"missing"`
	// Unstored attachments have no content key; they came from the server as
	// metadata only.
	Unstored int `json:"unstored"`
}

// CheckAttachments verifies that every attachment of the account with a
// content key still has its blob.
func (s *Service) CheckAttachments(accountID int64, cb Callback[*IntegrityReport]) error {
	if s.blobs == nil {
		return fmt.Errorf("no attachment storage configured: %w", errs.ErrPrecondition)
	}
	if _, err := s.account(accountID); err != nil {
		return err
	}
	return submit(s, "check attachments", cb, func(ctx context.Context) (*IntegrityReport, error) {
		rows, err := s.store.Attachments.ForAccount(ctx, accountID)
		if err != nil {
			return nil, err
		}

		report := &IntegrityReport{}
		for _, a := range rows {
			if a.ObjectKey == "" {
				report.Unstored++
				continue
			}
			report.Checked++
			ok, err := s.blobExists(ctx, a.ObjectKey)
			if err != nil {
				return nil, fmt.Errorf("check %s: %w", a.ObjectKey, err)
			}
			if !ok {
				report.Missing = append(report.Missing, *a)
			}
		}

		s.logger.Info("Attachment integrity checked",
			zap.Int64("account", accountID),
			zap.Int("checked", report.Checked),
			zap.Int("missing", len(report.Missing)),
		)
		return report, nil
	})
}

// blobExists reads the first byte of an object; minio reports a missing key
// on the first read rather than on GetObject.
func (s *Service) blobExists(ctx context.Context, key string) (bool, error) {
	rc, err := s.blobs.GetObject(ctx, s.bucket, key, minio.GetObjectOptions{})
	if err == nil {
		defer rc.Close()
		_, err = rc.Read(make([]byte, 1))
	}
	switch {
	case err == nil, errors.Is(err, io.EOF):
		return true, nil
	case storage.IsNotFound(err):
		return false, nil
	default:
		return false, err
	}
}
