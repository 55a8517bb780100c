package negotiation

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"

	"github.com/JobMwaura/zintra-sub007/app/models"
	"github.com/JobMwaura/zintra-sub007/app/repository"
)

// AskQuestion adds a question to a thread and notifies the other participant.
func (s *Service) AskQuestion(ctx context.Context, req AskQuestionRequest) (*models.NegotiationQA, error) {
	if err := check(&req, "Missing required fields: negotiationId, quoteId, askedBy, question", nil); err != nil {
		return nil, err
	}
	question := strings.TrimSpace(req.Question)
	if question == "" {
		return nil, invalid("Question cannot be empty")
	}

	var qa *models.NegotiationQA
	err := s.transact(ctx, func(repos *repository.Repositories, tx *gorm.DB) ([]*models.OutboxEvent, error) {
		thread, err := repos.Thread.GetByIDAndQuote(req.NegotiationID, req.QuoteID)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrThreadNotFound
		}
		if err != nil {
			return nil, err
		}
		if !thread.IsParticipant(req.AskedBy) {
			return nil, ErrNotParticipant
		}

		qa = &models.NegotiationQA{
			ThreadID: thread.ID,
			QuoteID:  thread.QuoteID,
			AskedBy:  req.AskedBy,
			Question: question,
		}
		if err := repos.QA.Create(qa); err != nil {
			return nil, err
		}
		ev, err := questionNotification(thread, qa)
		if err != nil {
			return nil, err
		}
		return []*models.OutboxEvent{ev}, nil
	})
	if err != nil {
		return nil, err
	}
	return qa, nil
}

// AnswerQuestion answers a question exactly once. The write is conditional
// on answered_at still being NULL, so of two concurrent answers only one
// lands.
func (s *Service) AnswerQuestion(ctx context.Context, req AnswerQuestionRequest) (*models.NegotiationQA, error) {
	if err := check(&req, "Missing required fields: qaId, answer, answeredBy", nil); err != nil {
		return nil, err
	}
	answer := strings.TrimSpace(req.Answer)
	if answer == "" {
		return nil, invalid("Answer cannot be empty")
	}

	var qa *models.NegotiationQA
	err := s.transact(ctx, func(repos *repository.Repositories, tx *gorm.DB) ([]*models.OutboxEvent, error) {
		var err error
		qa, err = repos.QA.GetByID(req.QAID)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrQANotFound
		}
		if err != nil {
			return nil, err
		}
		if qa.IsAnswered() {
			return nil, ErrAlreadyAnswered
		}
		thread, err := loadThread(repos.Thread, qa.ThreadID)
		if err != nil {
			return nil, err
		}
		if req.AnsweredBy == qa.AskedBy {
			return nil, ErrSelfAnswer
		}
		if !thread.IsParticipant(req.AnsweredBy) {
			return nil, ErrNotParticipant
		}

		now := s.now()
		rows, err := repos.QA.Answer(qa.ID, answer, req.AnsweredBy, now)
		if err != nil {
			return nil, err
		}
		if rows != 1 {
			return nil, ErrAlreadyAnswered
		}
		qa.Answer = &answer
		qa.AnsweredBy = &req.AnsweredBy
		qa.AnsweredAt = &now

		ev, err := answerNotification(thread, qa, answer)
		if err != nil {
			return nil, err
		}
		return []*models.OutboxEvent{ev}, nil
	})
	if err != nil {
		return nil, err
	}
	return qa, nil
}
