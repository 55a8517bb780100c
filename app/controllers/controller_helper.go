package controllers

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/JobMwaura/zintra-sub007/internal/pkg/billing"
	"github.com/JobMwaura/zintra-sub007/internal/pkg/negotiation"
	"github.com/JobMwaura/zintra-sub007/internal/pkg/usercontext"
)

var errIdentityMismatch = errors.New("User ID does not match the authenticated user")

// statusFor maps domain errors to HTTP status codes. Unknown errors are 500.
func statusFor(err error) int {
	var nverr *negotiation.ValidationError
	var bverr *billing.ValidationError
	switch {
	case errors.As(err, &nverr), errors.As(err, &bverr):
		return fiber.StatusBadRequest
	case errors.Is(err, billing.ErrUnauthorized):
		return fiber.StatusUnauthorized
	case errors.Is(err, errIdentityMismatch),
		errors.Is(err, negotiation.ErrNotParticipant),
		errors.Is(err, negotiation.ErrSelfAnswer),
		errors.Is(err, negotiation.ErrOwnOffer):
		return fiber.StatusForbidden
	case errors.Is(err, negotiation.ErrThreadNotFound),
		errors.Is(err, negotiation.ErrQuoteMismatch),
		errors.Is(err, negotiation.ErrQANotFound),
		errors.Is(err, negotiation.ErrOfferNotFound),
		errors.Is(err, billing.ErrProductNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, negotiation.ErrConcurrentUpdate):
		return fiber.StatusConflict
	case errors.Is(err, negotiation.ErrThreadNotActive),
		errors.Is(err, negotiation.ErrMaxRounds),
		errors.Is(err, negotiation.ErrAlreadyAnswered),
		errors.Is(err, negotiation.ErrUnknownAction),
		errors.Is(err, billing.ErrPassNotSupported),
		errors.Is(err, billing.ErrFreeProduct),
		errors.Is(err, billing.ErrPaymentInitiation):
		return fiber.StatusBadRequest
	case errors.Is(err, negotiation.ErrAttachmentsDisabled):
		return fiber.StatusServiceUnavailable
	}
	return fiber.StatusInternalServerError
}

// respondError writes err as {"error": ...}. Unexpected errors are logged
// and carry the underlying message in "details".
func respondError(c *fiber.Ctx, fallback string, err error) error {
	status := statusFor(err)
	if status == fiber.StatusInternalServerError {
		log.Errorf("[API] %s %s: %s: %v", c.Method(), c.Path(), fallback, err)
		return c.Status(status).JSON(fiber.Map{"error": fallback, "details": err.Error()})
	}
	return c.Status(status).JSON(fiber.Map{"error": err.Error()})
}

func badRequest(c *fiber.Ctx, message string) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": message})
}

// invalidBody answers a body that failed to decode. Field decoders that
// return a ValidationError keep their message.
func invalidBody(c *fiber.Ctx, err error) error {
	var verr *negotiation.ValidationError
	if errors.As(err, &verr) {
		return badRequest(c, verr.Message)
	}
	return badRequest(c, "Invalid request body")
}

// resolveIdentity reconciles the user id a client put in the body with the
// caller the gateway authenticated. An empty body id takes the caller's; a
// different one is rejected. Anonymous requests keep the body id.
func resolveIdentity(c *fiber.Ctx, bodyID string) (string, error) {
	bodyID = strings.TrimSpace(bodyID)
	caller := usercontext.GetUserID(c)
	if caller == "" {
		return bodyID, nil
	}
	if bodyID != "" && bodyID != caller {
		log.Warnf("[API] %s %s: body identity %s does not match caller %s", c.Method(), c.Path(), bodyID, caller)
		return "", errIdentityMismatch
	}
	return caller, nil
}

func requireCaller(c *fiber.Ctx) (string, bool) {
	id := usercontext.GetUserID(c)
	return id, id != ""
}

func unauthorized(c *fiber.Ctx) error {
	return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Unauthorized"})
}
