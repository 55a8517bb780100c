package negotiation

import (
	"context"
	"errors"

	"github.com/gofiber/fiber/v2/log"

	"github.com/JobMwaura/zintra-sub007/internal/pkg/objectstore"
)

var ErrAttachmentsDisabled = errors.New("Attachments are not available")

// AttachmentSigner issues presigned upload URLs.
type AttachmentSigner interface {
	PresignUpload(ctx context.Context, prefix, fileName, contentType string) (*objectstore.Upload, error)
}

type PresignAttachmentRequest struct {
	NegotiationID string `json:"negotiationId" validate:"required"`
	UserID        string `json:"userId" validate:"required"`
	FileName      string `json:"fileName" validate:"required"`
	ContentType   string `json:"contentType" validate:"required"`
}

// WithAttachments enables PresignAttachment.
func (s *Service) WithAttachments(signer AttachmentSigner) *Service {
	s.attachments = signer
	return s
}

// PresignAttachment lets a participant upload a file for a counter offer.
// The returned key goes into CounterOfferRequest.AttachmentKeys.
func (s *Service) PresignAttachment(ctx context.Context, req PresignAttachmentRequest) (*objectstore.Upload, error) {
	if err := check(req, "Missing required fields: negotiationId, userId, fileName, contentType", nil); err != nil {
		return nil, err
	}
	if s.attachments == nil {
		return nil, ErrAttachmentsDisabled
	}
	if _, err := participantThread(s.repos(ctx), req.NegotiationID, req.UserID); err != nil {
		return nil, err
	}
	up, err := s.attachments.PresignUpload(ctx, objectstore.AttachmentPrefix(req.NegotiationID), req.FileName, req.ContentType)
	if errors.Is(err, objectstore.ErrContentTypeBlocked) {
		return nil, invalid("File type %q is not allowed", req.ContentType)
	}
	if err != nil {
		return nil, err
	}
	log.Debugf("[Negotiation] Presigned %s for user %s", up.Key, req.UserID)
	return up, nil
}
