package service

import (
	"context"
	"strings"

	"lifeline/internal/request/models"
	id "lifeline/pkg/domain"
	dErrors "lifeline/pkg/domain-errors"
	"lifeline/pkg/platform/events"
	"lifeline/pkg/requestcontext"
)

// applyPayment merges submitted payment details. Choosing Online or COD marks
// the payment Paid; it stays Pending while the method is Pending.
func applyPayment(current models.Payment, in PaymentInput) (models.Payment, error) {
	if in.Amount.IsNegative() {
		return current, dErrors.New(dErrors.CodeValidation, "payment amount must not be negative")
	}
	method := in.Method
	if method == "" {
		method = models.PaymentPending
	}
	if !method.IsValid() {
		return current, dErrors.New(dErrors.CodeValidation, "payment method must be Online, COD or Pending")
	}
	next := current
	next.Amount = in.Amount
	next.Method = method
	next.UPIID = strings.TrimSpace(in.UPIID)
	next.TransactionID = strings.TrimSpace(in.TransactionID)
	next.Note = strings.TrimSpace(in.Note)
	if method == models.PaymentPending {
		next.Status = models.PaymentStatusPending
	} else {
		next.Status = models.PaymentStatusPaid
	}
	return next, nil
}

// SubmitPayment records the requester's payment details. Verified payments are final.
func (s *Service) SubmitPayment(ctx context.Context, requestID id.RequestID, in PaymentInput) (*models.Request, error) {
	r, err := s.Get(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if r.Status == models.StatusRejected {
		return nil, dErrors.New(dErrors.CodeConflict, "request is rejected")
	}
	if r.Payment.Status == models.PaymentStatusVerified {
		return nil, dErrors.New(dErrors.CodeConflict, "payment is already verified")
	}
	payment, err := applyPayment(r.Payment, in)
	if err != nil {
		return nil, err
	}
	return s.updatePayment(ctx, r, payment)
}

// VerifyPayment confirms a paid request. Only Paid moves to Verified.
func (s *Service) VerifyPayment(ctx context.Context, requestID id.RequestID) (*models.Request, error) {
	r, err := s.Get(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if r.Payment.Status != models.PaymentStatusPaid {
		return nil, dErrors.New(dErrors.CodeConflict, "payment is "+string(r.Payment.Status)+", not Paid")
	}
	payment := r.Payment
	payment.Status = models.PaymentStatusVerified
	return s.updatePayment(ctx, r, payment)
}

func (s *Service) updatePayment(ctx context.Context, r *models.Request, payment models.Payment) (*models.Request, error) {
	from := r.Payment.Status
	r.Payment = payment
	r.UpdatedAt = requestcontext.Now(ctx)
	err := s.save(ctx, r, r.Status, func(txCtx context.Context) error {
		return s.emit(txCtx, events.KindPaymentUpdated, r, string(from), string(payment.Status), map[string]string{
			"method": string(payment.Method),
			"amount": payment.Amount.StringFixed(2),
		})
	})
	if err != nil {
		return nil, translate(err, "request "+r.ID.String())
	}
	s.logger.InfoContext(ctx, "payment updated",
		"blood_request_id", r.ID.String(),
		"payment_status", string(payment.Status),
		"request_id", requestcontext.RequestID(ctx),
	)
	return r, nil
}
