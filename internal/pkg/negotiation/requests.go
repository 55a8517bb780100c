package negotiation

import (
	"errors"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

const (
	DefaultResponseDays = 3
	MaxResponseDays     = 30
	MaxAttachments      = 10
)

type CreateThreadRequest struct {
	RFQQuoteID    string `json:"rfqQuoteId" validate:"required"`
	RFQID         string `json:"rfqId"`
	UserID        string `json:"userId" validate:"required"`
	VendorID      string `json:"vendorId" validate:"required"`
	OriginalPrice *Price `json:"originalPrice" validate:"required"`
}

type CounterOfferRequest struct {
	NegotiationID  string   `json:"negotiationId" validate:"required"`
	QuoteID        string   `json:"quoteId" validate:"required"`
	ProposedBy     string   `json:"proposedBy" validate:"required"`
	ProposedPrice  *Price   `json:"proposedPrice" validate:"required"`
	ScopeChanges   *string  `json:"scopeChanges"`
	DeliveryDate   *string  `json:"deliveryDate"`
	PaymentTerms   *string  `json:"paymentTerms"`
	Notes          *string  `json:"notes"`
	ResponseByDays *int     `json:"responseByDays" validate:"omitempty,min=1,max=30"`
	AttachmentKeys []string `json:"attachmentKeys" validate:"omitempty,max=10,dive,required"`
}

type AskQuestionRequest struct {
	NegotiationID string `json:"negotiationId" validate:"required"`
	QuoteID       string `json:"quoteId" validate:"required"`
	AskedBy       string `json:"askedBy" validate:"required"`
	Question      string `json:"question" validate:"required"`
}

type AnswerQuestionRequest struct {
	QAID       string `json:"qaId" validate:"required"`
	Answer     string `json:"answer" validate:"required"`
	AnsweredBy string `json:"answeredBy" validate:"required"`
}

const (
	ActionAcceptOffer = "accept_offer"
	ActionRejectOffer = "reject_offer"
	ActionCancel      = "cancel"
)

type UpdateThreadRequest struct {
	NegotiationID string `json:"-" validate:"required"`
	Action        string `json:"action" validate:"required"`
	OfferID       string `json:"offerId"`
	Reason        string `json:"reason"`
	UserID        string `json:"userId" validate:"required"`
}

type ReportRequest struct {
	NegotiationID string `json:"negotiationId" validate:"required"`
	ReportedBy    string `json:"reportedBy" validate:"required"`
	Reason        string `json:"reason" validate:"required"`
	Details       string `json:"details"`
}

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

func getValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return fld.Name
			}
			return name
		})
	})
	return validate
}

// check runs struct validation. A missing required field yields missingMsg;
// other failures use the per-field message from fieldMsgs.
func check(req interface{}, missingMsg string, fieldMsgs map[string]string) error {
	err := getValidator().Struct(req)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return invalid("%s", err.Error())
	}
	for _, fe := range verrs {
		if fe.Tag() == "required" && !strings.Contains(fe.Namespace(), "[") {
			return invalid("%s", missingMsg)
		}
	}
	for _, fe := range verrs {
		if msg, ok := fieldMsgs[fe.Field()]; ok {
			return invalid("%s", msg)
		}
	}
	return invalid("Invalid %s", verrs[0].Field())
}

// parseDate accepts YYYY-MM-DD or an RFC 3339 timestamp.
func parseDate(raw string) (*time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	if t, err := time.Parse("2006-01-02", raw); err == nil {
		return &t, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil, invalid("Invalid deliveryDate: expected YYYY-MM-DD")
	}
	d := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	return &d, nil
}

func trimmedOrNil(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}

// excerpt quotes the first 100 characters of s, adding "..." when cut.
func excerpt(s string) string {
	r := []rune(s)
	if len(r) <= 100 {
		return s
	}
	return string(r[:100]) + "..."
}

func decimalFromString(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, invalid("Invalid price %q", s)
	}
	return d, nil
}
