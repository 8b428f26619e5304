package ofx

import (
	"fmt"
	"strings"
)

// Account types accepted in BANKACCTFROM. Credit-card and investment
// statements use different aggregates and are not produced here.
var bankAccountTypes = map[string]bool{
	"CHECKING":   true,
	"SAVINGS":    true,
	"MONEYMRKT":  true,
	"CREDITLINE": true,
}

// Institution holds the fixed identifiers written into every file.
// They are deployment settings rather than request parameters.
type Institution struct {
	BankID      string `mapstructure:"bank_id"`
	AccountID   string `mapstructure:"account_id"`
	AccountType string `mapstructure:"account_type"`
	Org         string `mapstructure:"org"`
	FID         string `mapstructure:"fid"`
	IntuitBID   string `mapstructure:"intuit_bid"`
}

// Validate checks that every identifier is present and the account type is a bank type.
func (i Institution) Validate() error {
	required := []struct {
		name, value string
	}{
		{"bank_id", i.BankID},
		{"account_id", i.AccountID},
		{"org", i.Org},
		{"fid", i.FID},
		{"intuit_bid", i.IntuitBID},
	}
	for _, f := range required {
		if strings.TrimSpace(f.value) == "" {
			return fmt.Errorf("institution %s is required", f.name)
		}
	}
	if !bankAccountTypes[strings.ToUpper(i.AccountType)] {
		return fmt.Errorf("institution account_type %q is not a bank account type", i.AccountType)
	}
	return nil
}
