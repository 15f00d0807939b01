package payments

import "time"

// Status is the lifecycle state of a payment intent.
type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusRefunded  Status = "refunded"
)

// Intent tracks one checkout attempt. SessionID maps 1:1 to the external
// checkout session.
type Intent struct {
	ID                 string     `json:"id"`
	UserID             string     `json:"-"`
	Plan               string     `json:"plan"`
	AmountCents        int64      `json:"amount"`
	Currency           string     `json:"currency"`
	Status             Status     `json:"status"`
	SessionID          string     `json:"sessionId"`
	ExternalPaymentID  string     `json:"-"`
	ExternalCustomerID string     `json:"-"`
	ClientIP           string     `json:"-"`
	UserAgent          string     `json:"-"`
	CreatedAt          time.Time  `json:"createdAt"`
	UpdatedAt          time.Time  `json:"updatedAt"`
	CompletedAt        *time.Time `json:"completedAt,omitempty"`
	GrantedAt          *time.Time `json:"-"`
	GrantClaimedAt     *time.Time `json:"-"`
	FailedAt           *time.Time `json:"failedAt,omitempty"`
	RefundedAt         *time.Time `json:"refundedAt,omitempty"`
}

// Meta is informational request context stored with an intent.
type Meta struct {
	ClientIP  string
	UserAgent string
	Email     string
}

// Event is an already-authenticated notification from the payment provider.
type Event struct {
	ID                 string
	Type               string
	SessionID          string
	ExternalPaymentID  string
	ExternalCustomerID string
}

// Provider event types the ledger acts on.
const (
	EventCheckoutCompleted     = "checkout.session.completed"
	EventAsyncPaymentSucceeded = "checkout.session.async_payment_succeeded"
	EventCheckoutExpired       = "checkout.session.expired"
	EventAsyncPaymentFailed    = "checkout.session.async_payment_failed"
	EventChargeRefunded        = "charge.refunded"
)

// Transition describes a guarded status change.
type Transition struct {
	From               Status
	To                 Status
	At                 time.Time
	ExternalPaymentID  string
	ExternalCustomerID string
}

// CheckoutRequest is what the ledger asks the checkout initiator for.
type CheckoutRequest struct {
	IntentID      string
	Plan          Plan
	SuccessURL    string
	CancelURL     string
	CustomerEmail string
	Metadata      map[string]string
}

// CheckoutSession is the initiator's answer.
type CheckoutSession struct {
	SessionID   string
	RedirectURL string
}

// IntentRef is returned to the owner after a checkout is initiated.
type IntentRef struct {
	IntentID    string `json:"paymentId"`
	SessionID   string `json:"sessionId"`
	RedirectURL string `json:"url"`
}
