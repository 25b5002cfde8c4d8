// Package payout selects ranked affiliates for payment and dispatches one
// payout request per selection through an injected payment collaborator.
package payout

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/yourorg/affiliate-performance/internal/model"
	"github.com/yourorg/affiliate-performance/internal/scoring"
)

// Payer is the external payment collaborator. Implementations own their
// network I/O, timeouts and retry policy; this package never retries.
type Payer interface {
	// Send dispatches one payout request. A returned error is converted into
	// a failed outcome by the selector, never propagated across the batch.
	Send(ctx context.Context, req model.PayoutRequest) (model.PayoutOutcome, error)
}

// Mode discriminates the two selection variants.
type Mode string

// Selection variants.
const (
	ModeTopK   Mode = "top_k"
	ModeByName Mode = "by_name"
)

// Selection is a tagged variant describing which ranked affiliates to pay:
// either the first K entries of the ranked list, or every entry whose name is
// in an explicit set. Both variants produce the same downstream request shape.
type Selection struct {
	mode  Mode
	k     int
	names []string
	set   map[string]struct{}
}

// TopK selects the first min(k, len(ranked)) entries of the ranked list.
func TopK(k int) Selection {
	if k < 0 {
		k = 0
	}
	return Selection{mode: ModeTopK, k: k}
}

// ByName selects, in ranked order, every record whose name is in the set.
func ByName(names ...string) Selection {
	set := make(map[string]struct{}, len(names))
	for _, n := range names {
		set[n] = struct{}{}
	}
	return Selection{mode: ModeByName, names: names, set: set}
}

// Mode returns the selection variant.
func (s Selection) Mode() Mode { return s.mode }

// SelectionMiss is a non-fatal warning: a requested payee name had no match in
// the ranked list. A typo in one name must not block paying everyone else.
type SelectionMiss struct {
	Name string `json:"name"`
}

func (m SelectionMiss) String() string {
	return fmt.Sprintf("no ranked affiliate named %q", m.Name)
}

// AccountResolver supplies routing details for a recipient. The engine treats
// these as opaque pass-through data.
type AccountResolver func(affiliateID, name string) model.PayoutAccount

// PlaceholderAccount returns synthetic routing details for use when no real
// payout-profile source is configured. The account and routing numbers are
// dummy values, not live banking data.
func PlaceholderAccount(name string) model.PayoutAccount {
	return model.PayoutAccount{
		HolderName:    name,
		AccountNumber: "123456789",
		RoutingNumber: "987654321",
		Type:          model.AccountTypeChecking,
		HolderType:    model.AccountHolderIndividual,
	}
}

// Options configures a payout run.
type Options struct {
	// Currency applied to every request
	Currency string

	// Accounts resolves routing details per recipient; when nil, the
	// documented placeholder account is used
	Accounts AccountResolver
}

// SelectAndPay applies the selection to the ranked list (already sorted;
// selection never re-sorts), builds one payout request per selected record and
// dispatches each through the payer, strictly sequentially in ranked order.
//
// The returned outcomes have exactly one entry per selected record, in
// selection order. A payer failure is captured as a failed outcome and the
// run continues: the batch always completes with a full outcome report.
// Unmatched ByName entries are returned as SelectionMiss warnings and cause
// zero payer calls.
func SelectAndPay(ctx context.Context, ranked model.RankedList, sel Selection, payer Payer, opts Options) ([]model.PayoutOutcome, []SelectionMiss) {
	if opts.Currency == "" {
		opts.Currency = "USD"
	}
	resolve := opts.Accounts
	if resolve == nil {
		resolve = func(_, name string) model.PayoutAccount {
			return PlaceholderAccount(name)
		}
	}

	selected, misses := sel.apply(ranked)

	outcomes := make([]model.PayoutOutcome, 0, len(selected))
	for _, rec := range selected {
		req := model.PayoutRequest{
			RequestID:     uuid.NewString(),
			AffiliateID:   rec.AffiliateID,
			RecipientName: rec.Name,
			Amount:        scoring.CommissionAmount(rec),
			Currency:      opts.Currency,
			Account:       resolve(rec.AffiliateID, rec.Name),
		}

		outcome, err := payer.Send(ctx, req)
		if err != nil {
			logrus.WithFields(logrus.Fields{
				"affiliate_id": rec.AffiliateID,
				"recipient":    rec.Name,
				"amount":       req.Amount.String(),
			}).Warnf("Payout failed: %v", err)

			outcome = model.PayoutOutcome{
				Request: req,
				Status:  model.PayoutFailed,
				Detail:  err.Error(),
			}
		}
		outcomes = append(outcomes, outcome)
	}

	logrus.WithFields(logrus.Fields{
		"selected": len(selected),
		"misses":   len(misses),
		"mode":     sel.mode,
	}).Info("Payout run complete")

	return outcomes, misses
}

// apply resolves the selection against the ranked list, preserving ranked order.
func (s Selection) apply(ranked model.RankedList) (model.RankedList, []SelectionMiss) {
	switch s.mode {
	case ModeByName:
		matched := make(map[string]struct{}, len(s.set))
		selected := make(model.RankedList, 0, len(s.set))
		for _, rec := range ranked {
			if _, ok := s.set[rec.Name]; ok {
				selected = append(selected, rec)
				matched[rec.Name] = struct{}{}
			}
		}
		// Misses keep the order the caller asked for, so warnings are stable.
		var misses []SelectionMiss
		seen := make(map[string]struct{}, len(s.names))
		for _, name := range s.names {
			if _, dup := seen[name]; dup {
				continue
			}
			seen[name] = struct{}{}
			if _, ok := matched[name]; !ok {
				misses = append(misses, SelectionMiss{Name: name})
			}
		}
		return selected, misses

	default: // ModeTopK, also the zero value
		k := s.k
		if k > len(ranked) {
			k = len(ranked)
		}
		return ranked[:k], nil
	}
}
