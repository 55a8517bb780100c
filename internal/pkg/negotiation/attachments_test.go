package negotiation

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JobMwaura/zintra-sub007/internal/pkg/objectstore"
)

type stubSigner struct {
	prefixes []string
}

func (s *stubSigner) PresignUpload(ctx context.Context, prefix, fileName, contentType string) (*objectstore.Upload, error) {
	if contentType == "application/x-sh" {
		return nil, objectstore.ErrContentTypeBlocked
	}
	s.prefixes = append(s.prefixes, prefix)
	return &objectstore.Upload{Key: objectstore.ObjectKey(prefix, fileName), Method: "PUT"}, nil
}

func TestPresignAttachment(t *testing.T) {
	h := newHarness(t)
	thread := h.openThread(t)
	ctx := context.Background()

	_, err := h.svc.PresignAttachment(ctx, PresignAttachmentRequest{
		NegotiationID: thread.ID,
		UserID:        vendor,
		FileName:      "bill-of-quantities.pdf",
		ContentType:   "application/pdf",
	})
	assert.ErrorIs(t, err, ErrAttachmentsDisabled)

	signer := &stubSigner{}
	h.svc.WithAttachments(signer)

	up, err := h.svc.PresignAttachment(ctx, PresignAttachmentRequest{
		NegotiationID: thread.ID,
		UserID:        vendor,
		FileName:      "bill-of-quantities.pdf",
		ContentType:   "application/pdf",
	})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(up.Key, "negotiations/"+thread.ID+"/"))
	assert.Equal(t, []string{"negotiations/" + thread.ID}, signer.prefixes)

	_, err = h.svc.PresignAttachment(ctx, PresignAttachmentRequest{
		NegotiationID: thread.ID,
		UserID:        outsider,
		FileName:      "x.pdf",
		ContentType:   "application/pdf",
	})
	assert.ErrorIs(t, err, ErrNotParticipant)

	_, err = h.svc.PresignAttachment(ctx, PresignAttachmentRequest{
		NegotiationID: thread.ID,
		UserID:        buyer,
		FileName:      "run.sh",
		ContentType:   "application/x-sh",
	})
	var verr *ValidationError
	assert.ErrorAs(t, err, &verr)

	_, err = h.svc.PresignAttachment(ctx, PresignAttachmentRequest{NegotiationID: thread.ID})
	assert.ErrorAs(t, err, &verr)

	// Keys from the presign step are accepted on the offer; foreign keys are not.
	res, err := h.svc.SubmitCounterOffer(ctx, CounterOfferRequest{
		NegotiationID:  thread.ID,
		QuoteID:        quoteID,
		ProposedBy:     vendor,
		ProposedPrice:  dec(9000),
		AttachmentKeys: []string{up.Key},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{up.Key}, []string(res.CounterOffer.AttachmentKeys))

	_, err = h.svc.SubmitCounterOffer(ctx, CounterOfferRequest{
		NegotiationID:  thread.ID,
		QuoteID:        quoteID,
		ProposedBy:     buyer,
		ProposedPrice:  dec(9100),
		AttachmentKeys: []string{"negotiations/other-thread/file.pdf"},
	})
	assert.ErrorAs(t, err, &verr)
}
