// Package model defines the core data structures for the affiliate performance engine.
package model

import (
	"math"

	"github.com/shopspring/decimal"
)

// AffiliateRecord represents one affiliate's activity as loaded from a data source.
// This is the core input structure that flows through the scoring pipeline.
type AffiliateRecord struct {
	// AffiliateID is the unique identifier of the affiliate, stable across runs
	AffiliateID string `json:"affiliate_id"`

	// Name is the affiliate's display name; not guaranteed unique
	Name string `json:"name"`

	// Conversions is the number of attributed conversions
	Conversions int `json:"conversions"`

	// Revenue is the total attributed revenue in the base currency
	Revenue float64 `json:"revenue"`

	// AvgOrderValue is the average order value across attributed orders
	AvgOrderValue float64 `json:"avg_order_value"`
}

// Validate checks the record invariant: all numeric fields finite and non-negative.
// It returns the name of the first offending field, or "" when the record is valid.
func (r AffiliateRecord) Validate() string {
	if r.Conversions < 0 {
		return "conversions"
	}
	if r.Revenue < 0 || math.IsNaN(r.Revenue) || math.IsInf(r.Revenue, 0) {
		return "revenue"
	}
	if r.AvgOrderValue < 0 || math.IsNaN(r.AvgOrderValue) || math.IsInf(r.AvgOrderValue, 0) {
		return "avg_order_value"
	}
	return ""
}

// ScoredAffiliateRecord is an AffiliateRecord augmented with the derived
// commission and performance score. Records are derived fresh on every scoring
// call; the input record is never mutated.
type ScoredAffiliateRecord struct {
	AffiliateRecord

	// Commission is the amount owed to the affiliate, revenue * commission rate,
	// rounded half-up to two decimal places
	Commission float64 `json:"commission"`

	// PerformanceScore is the unnormalized linear combination of conversions,
	// revenue and average order value under the active policy weights
	PerformanceScore float64 `json:"performance_score"`
}

// RankedList is a sequence of scored records sorted by performance score
// descending. Ties preserve the original input order.
type RankedList []ScoredAffiliateRecord

// AccountType identifies the kind of bank account a payout is routed to.
type AccountType string

// AccountHolderType identifies who holds the destination account.
type AccountHolderType string

// Recognized account classifications.
const (
	AccountTypeChecking AccountType = "checking"
	AccountTypeSavings  AccountType = "savings"

	AccountHolderIndividual AccountHolderType = "individual"
	AccountHolderBusiness   AccountHolderType = "business"
)

// PayoutAccount carries the routing details for a payout destination. The
// engine passes these through to the payment collaborator and validates them
// only for non-emptiness.
type PayoutAccount struct {
	HolderName    string            `json:"account_holder_name"`
	AccountNumber string            `json:"account_number"`
	RoutingNumber string            `json:"routing_number"`
	Type          AccountType       `json:"account_type"`
	HolderType    AccountHolderType `json:"account_holder_type"`
}

// IsComplete reports whether all routing fields are present.
func (a PayoutAccount) IsComplete() bool {
	return a.HolderName != "" && a.AccountNumber != "" && a.RoutingNumber != "" &&
		a.Type != "" && a.HolderType != ""
}

// PayoutRequest is a single payment instruction derived from a scored record.
type PayoutRequest struct {
	// RequestID uniquely identifies this request within a payout run
	RequestID string `json:"request_id"`

	// AffiliateID of the recipient
	AffiliateID string `json:"affiliate_id"`

	// RecipientName is the affiliate's display name
	RecipientName string `json:"recipient_name"`

	// Amount is the commission owed, carried as an exact decimal
	Amount decimal.Decimal `json:"amount"`

	// Currency of the amount
	Currency string `json:"currency"`

	// Account holds the pass-through routing details
	Account PayoutAccount `json:"account"`
}

// PayoutStatus is the terminal state of a dispatched payout request.
type PayoutStatus string

// Payout dispatch states.
const (
	PayoutSuccess PayoutStatus = "success"
	PayoutFailed  PayoutStatus = "failed"
)

// PayoutOutcome records the result of dispatching one PayoutRequest.
// It is never mutated after dispatch.
type PayoutOutcome struct {
	Request PayoutRequest `json:"request"`
	Status  PayoutStatus  `json:"status"`
	Detail  string        `json:"detail,omitempty"`
}

// Succeeded reports whether the payout was acknowledged by the collaborator.
func (o PayoutOutcome) Succeeded() bool {
	return o.Status == PayoutSuccess
}
