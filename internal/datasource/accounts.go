package datasource

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"

	"github.com/yourorg/affiliate-performance/internal/model"
)

// Required header columns for a payout account table.
var accountColumns = []string{
	"affiliate_id", "account_holder_name", "account_number",
	"routing_number", "account_type", "account_holder_type",
}

// AccountSource loads payout routing details keyed by affiliate ID from a
// header-named delimited file. The engine does not validate the routing
// fields beyond non-emptiness; they are pass-through data for the payment
// collaborator.
type AccountSource struct {
	path string
}

// NewAccountSource creates an account source reading from the given file path.
func NewAccountSource(path string) *AccountSource {
	return &AccountSource{path: path}
}

// Load reads the account table. A missing file or column is a DataSourceError;
// callers typically fall back to the documented placeholder account.
func (s *AccountSource) Load(ctx context.Context) (map[string]model.PayoutAccount, error) {
	f, err := os.Open(s.path)
	if err != nil {
		return nil, &DataSourceError{Source: s.path, Err: err}
	}
	defer f.Close()

	accounts, err := parseAccounts(f)
	if err != nil {
		return nil, &DataSourceError{Source: s.path, Err: err}
	}

	logrus.Debugf("Loaded %d payout accounts from %s", len(accounts), s.path)
	return accounts, nil
}

// parseAccounts decodes the account table from CSV content.
func parseAccounts(r io.Reader) (map[string]model.PayoutAccount, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("empty table: missing header row")
	}
	if err != nil {
		return nil, fmt.Errorf("error reading header: %w", err)
	}

	index := make(map[string]int, len(header))
	for i, col := range header {
		index[col] = i
	}
	for _, col := range accountColumns {
		if _, ok := index[col]; !ok {
			return nil, fmt.Errorf("missing required column %q", col)
		}
	}

	accounts := make(map[string]model.PayoutAccount)
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("error reading row: %w", err)
		}

		accounts[row[index["affiliate_id"]]] = model.PayoutAccount{
			HolderName:    row[index["account_holder_name"]],
			AccountNumber: row[index["account_number"]],
			RoutingNumber: row[index["routing_number"]],
			Type:          model.AccountType(row[index["account_type"]]),
			HolderType:    model.AccountHolderType(row[index["account_holder_type"]]),
		}
	}

	return accounts, nil
}
