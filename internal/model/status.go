package model

// ReservationStatus is the lifecycle state of a reservation.  The set is
// closed: values outside the constants below are rejected by Valid.
type ReservationStatus string

const (
	StatusPendingPayment ReservationStatus = "PENDING_PAYMENT"
	StatusAwaitingProof  ReservationStatus = "AWAITING_PROOF"
	StatusUnderReview    ReservationStatus = "UNDER_REVIEW"
	StatusConfirmed      ReservationStatus = "CONFIRMED"
	StatusCheckedIn      ReservationStatus = "CHECKED_IN"
	StatusCheckedOut     ReservationStatus = "CHECKED_OUT"
	StatusCanceled       ReservationStatus = "CANCELED"
	StatusNoShow         ReservationStatus = "NO_SHOW"
)

// ReservationStatuses lists every reservation status in lifecycle order.
func ReservationStatuses() []ReservationStatus {
	return []ReservationStatus{
		StatusPendingPayment, StatusAwaitingProof, StatusUnderReview, StatusConfirmed,
		StatusCheckedIn, StatusCheckedOut, StatusCanceled, StatusNoShow,
	}
}

func (s ReservationStatus) Valid() bool {
	for _, v := range ReservationStatuses() {
		if s == v {
			return true
		}
	}
	return false
}

// Terminal reports whether no further transition can leave s.
func (s ReservationStatus) Terminal() bool {
	return s == StatusCheckedOut || s == StatusCanceled || s == StatusNoShow
}

// PreArrival reports whether the guest has not checked in yet and the
// reservation is still live.
func (s ReservationStatus) PreArrival() bool {
	switch s {
	case StatusPendingPayment, StatusAwaitingProof, StatusUnderReview, StatusConfirmed:
		return true
	}
	return false
}

// StayStatus mirrors the guest's physical progress.
type StayStatus string

const (
	StayNotStarted StayStatus = "NOT_STARTED"
	StayCheckedIn  StayStatus = "CHECKED_IN"
	StayCheckedOut StayStatus = "CHECKED_OUT"
)

func (s StayStatus) Valid() bool {
	return s == StayNotStarted || s == StayCheckedIn || s == StayCheckedOut
}

// Rank orders stay statuses by progress.
func (s StayStatus) Rank() int {
	switch s {
	case StayCheckedIn:
		return 1
	case StayCheckedOut:
		return 2
	}
	return 0
}

// DepositStatus tracks the security deposit held during a stay.
type DepositStatus string

const (
	DepositNone     DepositStatus = "NONE"
	DepositHeld     DepositStatus = "HELD"
	DepositReleased DepositStatus = "RELEASED"
)

// PaymentStatus is the state of a single payment.
type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "PENDING"
	PaymentConfirmed PaymentStatus = "CONFIRMED"
	PaymentDenied    PaymentStatus = "DENIED"
	PaymentRefunded  PaymentStatus = "REFUNDED"
	PaymentCanceled  PaymentStatus = "CANCELED"
)

func (s PaymentStatus) Valid() bool {
	switch s {
	case PaymentPending, PaymentConfirmed, PaymentDenied, PaymentRefunded, PaymentCanceled:
		return true
	}
	return false
}

// PaymentMethod is how the guest paid.
type PaymentMethod string

const (
	MethodCard         PaymentMethod = "CARD"
	MethodPix          PaymentMethod = "PIX"
	MethodBankTransfer PaymentMethod = "BANK_TRANSFER"
	MethodCash         PaymentMethod = "CASH"
)

func (m PaymentMethod) Valid() bool {
	switch m {
	case MethodCard, MethodPix, MethodBankTransfer, MethodCash:
		return true
	}
	return false
}

// GatewayResult is the already-resolved outcome reported by the payment
// gateway adapter.  PENDING means the payment awaits manual proof review.
type GatewayResult string

const (
	GatewayApproved GatewayResult = "APPROVED"
	GatewayDenied   GatewayResult = "DENIED"
	GatewayPending  GatewayResult = "PENDING"
)

func (g GatewayResult) Valid() bool {
	return g == GatewayApproved || g == GatewayDenied || g == GatewayPending
}

// Transition names an edge of the reservation state graph.
type Transition string

const (
	TransitionRegisterPayment Transition = "REGISTER_PAYMENT"
	TransitionSubmitProof     Transition = "SUBMIT_PROOF"
	TransitionApprove         Transition = "APPROVE"
	TransitionCheckIn         Transition = "CHECK_IN"
	TransitionCheckOut        Transition = "CHECK_OUT"
	TransitionCancel          Transition = "CANCEL"
	TransitionNoShow          Transition = "NO_SHOW"
)

// Transitions lists every transition.
func Transitions() []Transition {
	return []Transition{
		TransitionRegisterPayment, TransitionSubmitProof, TransitionApprove,
		TransitionCheckIn, TransitionCheckOut, TransitionCancel, TransitionNoShow,
	}
}

func (t Transition) Valid() bool {
	for _, v := range Transitions() {
		if t == v {
			return true
		}
	}
	return false
}

// SuiteType is the room category used for points accrual.
type SuiteType string

const (
	SuiteLuxo   SuiteType = "LUXO"
	SuiteMaster SuiteType = "MASTER"
	SuiteDouble SuiteType = "DOUBLE"
	SuiteRoyal  SuiteType = "ROYAL"
)

func (s SuiteType) Valid() bool {
	switch s {
	case SuiteLuxo, SuiteMaster, SuiteDouble, SuiteRoyal:
		return true
	}
	return false
}

// CancellationPolicy selects the penalty tier table.
type CancellationPolicy string

const (
	PolicyFlexible      CancellationPolicy = "FLEXIBLE"
	PolicyModerate      CancellationPolicy = "MODERATE"
	PolicyRigid         CancellationPolicy = "RIGID"
	PolicyNonRefundable CancellationPolicy = "NON_REFUNDABLE"
)

func (p CancellationPolicy) Valid() bool {
	switch p {
	case PolicyFlexible, PolicyModerate, PolicyRigid, PolicyNonRefundable:
		return true
	}
	return false
}

// LedgerReason explains a points balance change.
type LedgerReason string

const (
	ReasonCheckoutAccrual  LedgerReason = "CHECKOUT_ACCRUAL"
	ReasonManualAdjustment LedgerReason = "MANUAL_ADJUSTMENT"
	ReasonRedemption       LedgerReason = "REDEMPTION"
	ReasonReferral         LedgerReason = "REFERRAL"
)

func (r LedgerReason) Valid() bool {
	switch r {
	case ReasonCheckoutAccrual, ReasonManualAdjustment, ReasonRedemption, ReasonReferral:
		return true
	}
	return false
}
