package lifecycle

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"

	"github.com/iliyamo/hotel-reservation-engine/internal/apperr"
	"github.com/iliyamo/hotel-reservation-engine/internal/consistency"
	"github.com/iliyamo/hotel-reservation-engine/internal/model"
	"github.com/iliyamo/hotel-reservation-engine/internal/queue"
	"github.com/iliyamo/hotel-reservation-engine/internal/repository"
	"github.com/iliyamo/hotel-reservation-engine/internal/utils"
)

// PaymentDetails is a payment as reported by the gateway adapter.  The
// gateway outcome arrives already resolved; CardNumber is reduced to a mask
// and a fingerprint before anything is stored.
type PaymentDetails struct {
	Amount     decimal.Decimal     `json:"amount"`
	Method     model.PaymentMethod `json:"method"`
	CardNumber string              `json:"card_number,omitempty"`
	Result     model.GatewayResult `json:"gateway_result"`
	GatewayRef string              `json:"gateway_ref,omitempty"`
}

// PaymentOutcome is the recorded payment and the reservation after any
// transitions it triggered.
type PaymentOutcome struct {
	Payment     model.Payment     `json:"payment"`
	Reservation model.Reservation `json:"reservation"`
}

func (d PaymentDetails) validate() error {
	switch {
	case !d.Method.Valid():
		return apperr.Validation("invalid_method", "unknown payment method %q", d.Method)
	case !d.Result.Valid():
		return apperr.Validation("invalid_gateway_result", "unknown gateway result %q", d.Result)
	case !d.Amount.IsPositive():
		return apperr.Validation("invalid_amount", "amount must be positive")
	case d.Method == model.MethodCard && strings.TrimSpace(d.CardNumber) == "":
		return apperr.Validation("missing_card", "card payments need a card number")
	case d.Method != model.MethodCard && d.CardNumber != "":
		return apperr.Validation("unexpected_card", "card number given for a %s payment", d.Method)
	}
	return nil
}

// SubmitPayment records a payment against a reservation awaiting payment
// and moves the reservation according to the gateway result: APPROVED
// walks REGISTER_PAYMENT, SUBMIT_PROOF and APPROVE as the system actor,
// PENDING applies REGISTER_PAYMENT and leaves the proof to the guest,
// DENIED records a denied payment and leaves the reservation as it is.
func (e *Engine) SubmitPayment(ctx context.Context, id string, d PaymentDetails, actor model.Actor) (*PaymentOutcome, error) {
	ctx, span := e.startSpan(ctx, "lifecycle.submit_payment",
		attribute.String("reservation.id", id), attribute.String("gateway.result", string(d.Result)))
	defer span.End()
	fields := logrus.Fields{"reservation_id": id, "gateway_result": d.Result, "actor": actor.ID, "role": actor.Role}

	if err := checkActor(actor); err != nil {
		return nil, e.fail(span, fields, err)
	}
	if err := d.validate(); err != nil {
		return nil, e.fail(span, fields, err)
	}
	var card utils.SanitizedCard
	if d.Method == model.MethodCard {
		var err error
		if card, err = utils.SanitizeCard(e.cardKey, d.CardNumber); err != nil {
			if errors.Is(err, utils.ErrInvalidCard) {
				err = apperr.Validation("invalid_card", "card number is not valid")
			}
			return nil, e.fail(span, fields, err)
		}
	}
	// the raw number goes no further than this point
	d.CardNumber = ""

	var (
		out    PaymentOutcome
		events []queue.ReservationEvent
	)
	err := e.locker.WithLock(ctx, reservationKey(id), e.lockTimeout, func(ctx context.Context) error {
		return e.store.InTx(ctx, func(tx repository.Tx) error {
			events = nil
			st, err := loadState(ctx, tx, id)
			if err != nil {
				return err
			}
			if !e.isOwner(actor, st.res) && !e.isDesk(actor) && !e.isSystem(actor) {
				return apperr.Forbidden("payment_forbidden", "%s may not pay for this reservation", actor.Role)
			}
			if st.res.Status != model.StatusPendingPayment {
				return apperr.BusinessRule("payment_not_expected", "a %s reservation does not accept payments", st.res.Status)
			}
			outstanding := st.res.BookingAmount().Sub(sumWhere(st.payments, model.PaymentPending, model.PaymentConfirmed))
			if !d.Amount.Round(2).Equal(outstanding) {
				return apperr.BusinessRule("amount_mismatch",
					"payment of %s does not match the outstanding balance %s",
					d.Amount.StringFixed(2), outstanding.StringFixed(2))
			}

			now := e.now()
			p := model.Payment{
				ID:              uuid.NewString(),
				ReservationID:   id,
				Amount:          d.Amount.Round(2),
				Method:          d.Method,
				Status:          model.PaymentPending,
				CardMask:        card.Mask,
				CardFingerprint: card.Fingerprint,
				GatewayRef:      d.GatewayRef,
				CreatedAt:       now,
				UpdatedAt:       now,
			}
			if d.Result == model.GatewayDenied {
				p.Status = model.PaymentDenied
			}
			if err := tx.InsertPayment(ctx, &p); err != nil {
				return err
			}
			st.payments = append(st.payments, p)

			var walk []model.Transition
			switch d.Result {
			case model.GatewayApproved:
				walk = []model.Transition{model.TransitionRegisterPayment, model.TransitionSubmitProof, model.TransitionApprove}
			case model.GatewayPending:
				walk = []model.Transition{model.TransitionRegisterPayment}
			}
			proof := d.GatewayRef
			if proof == "" {
				proof = "payment:" + p.ID
			}
			tc := TransitionContext{ProofRef: proof, Note: "gateway " + strings.ToLower(string(d.Result))}
			for _, t := range walk {
				rec, err := e.step(ctx, tx, st, t, model.SystemActor, tc, now)
				if err != nil {
					return err
				}
				events = append(events, transitionEvent(st, rec))
			}
			if len(walk) == 0 {
				// nothing moved, but the new payment must still agree with the status
				if _, _, err := consistency.ValidateAndDerive(*st.res, st.stay, st.payments, now); err != nil {
					return err
				}
			}

			for _, sp := range st.payments {
				if sp.ID == p.ID {
					out.Payment = sp
				}
			}
			out.Reservation = *st.res
			return nil
		})
	})
	if err != nil {
		return nil, e.fail(span, fields, err)
	}

	fields["payment_id"] = out.Payment.ID
	e.log.WithFields(fields).WithField("status", out.Reservation.Status).Info("lifecycle: payment recorded")
	e.publish(ctx, events)
	return &out, nil
}

// RefundPayment marks a confirmed payment refunded.  It is refused when
// it would leave a CONFIRMED or CHECKED_IN reservation without a confirmed
// payment.  Refunding an already refunded payment returns it unchanged.
func (e *Engine) RefundPayment(ctx context.Context, id, paymentID string, actor model.Actor) (*model.Payment, error) {
	ctx, span := e.startSpan(ctx, "lifecycle.refund_payment",
		attribute.String("reservation.id", id), attribute.String("payment.id", paymentID))
	defer span.End()
	fields := logrus.Fields{"reservation_id": id, "payment_id": paymentID, "actor": actor.ID, "role": actor.Role}

	if err := checkActor(actor); err != nil {
		return nil, e.fail(span, fields, err)
	}
	if !e.isManager(actor) && !e.isSystem(actor) {
		return nil, e.fail(span, fields, apperr.Forbidden("refund_forbidden", "refunds require MANAGER or ADMIN"))
	}

	var out model.Payment
	err := e.locker.WithLock(ctx, reservationKey(id), e.lockTimeout, func(ctx context.Context) error {
		return e.store.InTx(ctx, func(tx repository.Tx) error {
			st, err := loadState(ctx, tx, id)
			if err != nil {
				return err
			}
			idx := -1
			for i := range st.payments {
				if st.payments[i].ID == paymentID {
					idx = i
				}
			}
			if idx < 0 {
				return apperr.NotFound("payment_not_found", "payment %s not found on reservation %s", paymentID, id)
			}
			if st.payments[idx].Status == model.PaymentRefunded {
				out = st.payments[idx]
				return nil
			}
			now := e.now()
			if err := st.setPaymentStatus(idx, model.PaymentRefunded, now); err != nil {
				return err
			}
			switch st.res.Status {
			case model.StatusConfirmed, model.StatusCheckedIn:
				if countByStatus(st.payments)[model.PaymentConfirmed] == 0 {
					return apperr.BusinessRule("refund_leaves_unpaid",
						"refunding the last confirmed payment of a %s reservation is not allowed", st.res.Status)
				}
			}
			if _, _, err := consistency.ValidateAndDerive(*st.res, st.stay, st.payments, now); err != nil {
				return err
			}
			if err := tx.UpdatePayment(ctx, &st.payments[idx]); err != nil {
				return err
			}
			out = st.payments[idx]
			return nil
		})
	})
	if err != nil {
		return nil, e.fail(span, fields, err)
	}
	e.log.WithFields(fields).Info("lifecycle: payment refunded")
	return &out, nil
}
