package controllers

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/JobMwaura/zintra-sub007/internal/pkg/middleware"
	"github.com/JobMwaura/zintra-sub007/internal/pkg/negotiation"
	"github.com/JobMwaura/zintra-sub007/internal/pkg/sweeper"
)

// ExpirySweeper runs one guarded expiry pass.
type ExpirySweeper interface {
	Run(ctx context.Context) (*sweeper.Result, error)
}

// NegotiationController serves /api/negotiations.
type NegotiationController struct {
	svc     *negotiation.Service
	sweeper ExpirySweeper
}

func NewNegotiationController(svc *negotiation.Service, sw ExpirySweeper) *NegotiationController {
	return &NegotiationController{svc: svc, sweeper: sw}
}

// HandleCreate opens a negotiation on a quote or returns the existing one.
func (nc *NegotiationController) HandleCreate(c *fiber.Ctx) error {
	var req negotiation.CreateThreadRequest
	if err := c.BodyParser(&req); err != nil {
		return invalidBody(c, err)
	}
	var err error
	if req.UserID, err = resolveIdentity(c, req.UserID); err != nil {
		return respondError(c, "Failed to create negotiation thread", err)
	}

	res, err := nc.svc.CreateThread(c.UserContext(), req)
	if err != nil {
		return respondError(c, "Failed to create negotiation thread", err)
	}
	return c.JSON(fiber.Map{
		"success":  true,
		"thread":   res.Thread,
		"existing": res.Existing,
	})
}

// HandleGet returns a negotiation with offers, Q&A, revisions and stats.
func (nc *NegotiationController) HandleGet(c *fiber.Ctx) error {
	detail, err := nc.svc.GetThread(c.UserContext(), c.Params("id"), callerOrEmpty(c))
	if err != nil {
		return respondError(c, "Failed to fetch negotiation", err)
	}
	return c.JSON(detail)
}

var actionLabels = map[string]string{
	negotiation.ActionAcceptOffer: "accepted",
	negotiation.ActionRejectOffer: "rejected",
	negotiation.ActionCancel:      "cancelled",
}

// HandleUpdate applies accept_offer, reject_offer or cancel.
func (nc *NegotiationController) HandleUpdate(c *fiber.Ctx) error {
	var req negotiation.UpdateThreadRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	req.NegotiationID = c.Params("id")
	var err error
	if req.UserID, err = resolveIdentity(c, req.UserID); err != nil {
		return respondError(c, "Failed to update negotiation", err)
	}

	res, err := nc.svc.UpdateThread(c.UserContext(), req)
	if err != nil {
		return respondError(c, "Failed to update negotiation", err)
	}
	return c.JSON(fiber.Map{
		"success":  true,
		"action":   actionLabels[req.Action],
		"message":  res.Message,
		"thread":   res.Thread,
		"jobOrder": res.JobOrder,
	})
}

// HandleCounterOffer submits the next round.
func (nc *NegotiationController) HandleCounterOffer(c *fiber.Ctx) error {
	var req negotiation.CounterOfferRequest
	if err := c.BodyParser(&req); err != nil {
		return invalidBody(c, err)
	}
	var err error
	if req.ProposedBy, err = resolveIdentity(c, req.ProposedBy); err != nil {
		return respondError(c, "Failed to create counter offer", err)
	}

	res, err := nc.svc.SubmitCounterOffer(c.UserContext(), req)
	if err != nil {
		return respondError(c, "Failed to create counter offer", err)
	}
	return c.JSON(fiber.Map{
		"success":      true,
		"counterOffer": res.CounterOffer,
		"roundCount":   res.RoundCount,
		"maxRounds":    res.MaxRounds,
	})
}

// HandleAsk posts a question on a negotiation.
func (nc *NegotiationController) HandleAsk(c *fiber.Ctx) error {
	var req negotiation.AskQuestionRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	var err error
	if req.AskedBy, err = resolveIdentity(c, req.AskedBy); err != nil {
		return respondError(c, "Failed to create question", err)
	}

	qa, err := nc.svc.AskQuestion(c.UserContext(), req)
	if err != nil {
		return respondError(c, "Failed to create question", err)
	}
	return c.JSON(fiber.Map{"success": true, "qa": qa})
}

// HandleAnswer answers an open question.
func (nc *NegotiationController) HandleAnswer(c *fiber.Ctx) error {
	var req negotiation.AnswerQuestionRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	var err error
	if req.AnsweredBy, err = resolveIdentity(c, req.AnsweredBy); err != nil {
		return respondError(c, "Failed to answer question", err)
	}

	qa, err := nc.svc.AnswerQuestion(c.UserContext(), req)
	if err != nil {
		return respondError(c, "Failed to answer question", err)
	}
	return c.JSON(fiber.Map{"success": true, "qa": qa})
}

// HandleReport flags a negotiation for admin review.
func (nc *NegotiationController) HandleReport(c *fiber.Ctx) error {
	var req negotiation.ReportRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	var err error
	if req.ReportedBy, err = resolveIdentity(c, req.ReportedBy); err != nil {
		return respondError(c, "Failed to submit report", err)
	}

	if err := nc.svc.Report(c.UserContext(), req); err != nil {
		return respondError(c, "Failed to submit report", err)
	}
	return c.JSON(fiber.Map{
		"success": true,
		"message": "Report submitted. Our team will review this.",
	})
}

// HandlePresignAttachment issues an upload URL for a counter-offer file.
func (nc *NegotiationController) HandlePresignAttachment(c *fiber.Ctx) error {
	var req negotiation.PresignAttachmentRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	var err error
	if req.UserID, err = resolveIdentity(c, req.UserID); err != nil {
		return respondError(c, "Failed to prepare upload", err)
	}

	upload, err := nc.svc.PresignAttachment(c.UserContext(), req)
	if err != nil {
		return respondError(c, "Failed to prepare upload", err)
	}
	return c.JSON(fiber.Map{"success": true, "upload": upload})
}

// HandleCheckExpiry runs the expiry sweep. The cron secret is advisory, see
// middleware.CronSecret.
func (nc *NegotiationController) HandleCheckExpiry(c *fiber.Ctx) error {
	if ok, _ := c.Locals(middleware.LocalsCronAuthorized).(bool); ok {
		log.Debugf("[Sweeper] Expiry check triggered by scheduler")
	}
	res, err := nc.sweeper.Run(c.UserContext())
	if err != nil {
		return respondError(c, "Failed to check expiry", err)
	}
	return c.JSON(res)
}

func callerOrEmpty(c *fiber.Ctx) string {
	id, _ := requireCaller(c)
	return id
}
