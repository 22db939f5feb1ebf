package xmlwriter

import (
	"encoding/xml"
	"fmt"
	"io"

	"github.com/shopspring/decimal"
)

// =============================================================================
// ROUND-TRIP VERIFICATION
// =============================================================================
// ParseVouchers reads a voucher envelope back; Verify re-checks the balance
// rules on what was actually written, independent of the builder.

// ParsedVoucher is a voucher as read back from an envelope.
type ParsedVoucher struct {
	Type        string        `xml:"VCHTYPE,attr"`
	GUID        string        `xml:"GUID"`
	Date        string        `xml:"DATE"`
	TypeName    string        `xml:"VOUCHERTYPENAME"`
	Number      string        `xml:"VOUCHERNUMBER"`
	Reference   string        `xml:"REFERENCE"`
	PartyLedger string        `xml:"PARTYLEDGERNAME"`
	Narration   string        `xml:"NARRATION"`
	Entries     []ParsedEntry `xml:"ALLLEDGERENTRIES.LIST"`
}

// ParsedEntry is one ledger entry as read back.
type ParsedEntry struct {
	LedgerName     string       `xml:"LEDGERNAME"`
	DeemedPositive string       `xml:"ISDEEMEDPOSITIVE"`
	Amount         string       `xml:"AMOUNT"`
	Bills          []ParsedBill `xml:"BILLALLOCATIONS.LIST"`
}

// ParsedBill is one bill allocation as read back.
type ParsedBill struct {
	Name     string `xml:"NAME"`
	BillType string `xml:"BILLTYPE"`
	Amount   string `xml:"AMOUNT"`
	Date     string `xml:"BILLDATE"`
}

type parsedEnvelope struct {
	XMLName  xml.Name `xml:"ENVELOPE"`
	ID       string   `xml:"HEADER>ID"`
	Company  string   `xml:"BODY>IMPORTDATA>REQUESTDESC>STATICVARIABLES>SVCURRENTCOMPANY"`
	Messages []struct {
		Vouchers []ParsedVoucher `xml:"VOUCHER"`
	} `xml:"BODY>IMPORTDATA>REQUESTDATA>TALLYMESSAGE"`
}

// ParsedSet is a voucher envelope as read back.
type ParsedSet struct {
	Company  string
	Vouchers []ParsedVoucher
}

// ParseVouchers decodes a voucher envelope.
func ParseVouchers(r io.Reader) (*ParsedSet, error) {
	var env parsedEnvelope
	if err := xml.NewDecoder(r).Decode(&env); err != nil {
		return nil, fmt.Errorf("failed to parse voucher envelope: %w", err)
	}
	if env.ID != EnvelopeVouchers {
		return nil, fmt.Errorf("envelope ID is '%s', expected '%s'", env.ID, EnvelopeVouchers)
	}

	set := &ParsedSet{Company: env.Company}
	for _, m := range env.Messages {
		set.Vouchers = append(set.Vouchers, m.Vouchers...)
	}
	return set, nil
}

// VerifyIssue is one rule broken by a written voucher.
type VerifyIssue struct {
	Voucher string
	Ledger  string
	Message string
}

func (i VerifyIssue) String() string {
	if i.Ledger != "" {
		return fmt.Sprintf("%s / %s: %s", i.Voucher, i.Ledger, i.Message)
	}
	return fmt.Sprintf("%s: %s", i.Voucher, i.Message)
}

// VerifyReport summarizes a verification pass.
type VerifyReport struct {
	Vouchers int
	Entries  int
	Issues   []VerifyIssue
}

// OK reports whether no issue was found.
func (r VerifyReport) OK() bool {
	return len(r.Issues) == 0
}

// Verify checks that every voucher sums to exactly zero, that each sign flag
// matches its amount, and that bill allocations negate their entry.
func Verify(set *ParsedSet) VerifyReport {
	var report VerifyReport
	if set == nil {
		return report
	}

	for _, v := range set.Vouchers {
		report.Vouchers++
		id := v.Number
		if id == "" {
			id = v.GUID
		}
		flag := func(ledger, format string, args ...interface{}) {
			report.Issues = append(report.Issues, VerifyIssue{
				Voucher: id,
				Ledger:  ledger,
				Message: fmt.Sprintf(format, args...),
			})
		}

		if len(v.Entries) < 2 {
			flag("", "has %d ledger entries", len(v.Entries))
		}

		sum := decimal.Zero
		for _, e := range v.Entries {
			report.Entries++
			amount, err := decimal.NewFromString(e.Amount)
			if err != nil {
				flag(e.LedgerName, "unreadable amount '%s'", e.Amount)
				continue
			}
			sum = sum.Add(amount)

			switch {
			case e.DeemedPositive == "Yes" && amount.IsPositive():
				flag(e.LedgerName, "debit flag on credit amount %s", e.Amount)
			case e.DeemedPositive == "No" && amount.IsNegative():
				flag(e.LedgerName, "credit flag on debit amount %s", e.Amount)
			case e.DeemedPositive != "Yes" && e.DeemedPositive != "No":
				flag(e.LedgerName, "ISDEEMEDPOSITIVE is '%s'", e.DeemedPositive)
			}

			if len(e.Bills) == 0 {
				continue
			}
			billed := decimal.Zero
			for _, b := range e.Bills {
				value, err := decimal.NewFromString(b.Amount)
				if err != nil {
					flag(e.LedgerName, "unreadable bill amount '%s'", b.Amount)
					continue
				}
				billed = billed.Add(value)
			}
			if !billed.Equal(amount.Neg()) {
				flag(e.LedgerName, "bill allocations total %s, expected %s",
					billed.StringFixed(2), amount.Neg().StringFixed(2))
			}
		}

		if !sum.IsZero() {
			flag("", "entries sum to %s", sum.StringFixed(2))
		}
	}
	return report
}
