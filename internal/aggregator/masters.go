package aggregator

import (
	"github.com/ginjaninja78/gst-tally-vouchers/internal/jurisdiction"
	"github.com/ginjaninja78/gst-tally-vouchers/internal/types"
)

// =============================================================================
// MASTER COLLECTION
// =============================================================================
// Every ledger referenced by a voucher set gets exactly one master, in
// first-use order. Parties come from the aggregates so they carry tax IDs
// and states; everything else is resolved from the entry role.

// Reserved Tally groups. They exist in every company and are never created.
const (
	GroupSundryCreditors  = "Sundry Creditors"
	GroupSundryDebtors    = "Sundry Debtors"
	GroupDutiesTaxes      = "Duties & Taxes"
	GroupPurchaseAccounts = "Purchase Accounts"
	GroupSalesAccounts    = "Sales Accounts"
	GroupBankAccounts     = "Bank Accounts"
	GroupSuspense         = "Suspense A/c"
	GroupIndirectExpenses = "Indirect Expenses"
)

// Groups names the sub-groups created under the reserved groups. An empty
// name places ledgers directly under the reserved group.
type Groups struct {
	Suppliers string
	Customers string
	InputTax  string
	OutputTax string
	Purchases string
	Sales     string
}

// DefaultGroups returns the sub-group names used when none are configured.
func DefaultGroups() Groups {
	return Groups{
		Suppliers: "GST Suppliers",
		Customers: "GST Customers",
		InputTax:  "GST Input Tax",
		OutputTax: "GST Output Tax",
		Purchases: "GST Purchases",
		Sales:     "GST Sales",
	}
}

// MasterOptions configures CollectMasters.
type MasterOptions struct {
	Groups Groups
	Table  *jurisdiction.Table

	// BillWise enables bill-by-bill tracking on bill-tracked parties.
	BillWise bool

	// Parents maps a ledger name to a parent group, overriding the
	// role-based parent. Filled from the ledger-mapping workbook.
	Parents map[string]string
}

type collector struct {
	opts    MasterOptions
	groups  []types.Master
	ledgers []types.Master
	seen    map[string]bool
	groupOK map[string]bool
}

// CollectMasters returns the group masters followed by the ledger masters
// needed to import set.
func CollectMasters(set types.VoucherSet, agg *Result, opts MasterOptions) []types.Master {
	if opts.Table == nil {
		opts.Table = jurisdiction.Default()
	}
	c := &collector{
		opts:    opts,
		seen:    make(map[string]bool),
		groupOK: make(map[string]bool),
	}

	parties := make(map[string]*types.PartyAggregate)
	if agg != nil {
		for i := range agg.Parties {
			parties[agg.Parties[i].LedgerName] = &agg.Parties[i]
		}
	}

	for _, v := range set.Vouchers {
		for _, e := range v.Entries {
			if c.seen[e.LedgerName] {
				continue
			}
			c.seen[e.LedgerName] = true
			c.ledgers = append(c.ledgers, c.ledgerFor(v, e, parties[e.LedgerName]))
		}
	}

	return append(c.groups, c.ledgers...)
}

func (c *collector) ledgerFor(v types.Voucher, e types.LedgerEntry, party *types.PartyAggregate) types.Master {
	m := types.Master{Kind: types.MasterLedger, Name: e.LedgerName}
	inbound := v.Direction == types.Inbound

	switch e.Role {
	case types.RoleParty:
		m.IsParty = true
		if inbound {
			m.Parent = c.group(c.opts.Groups.Suppliers, GroupSundryCreditors)
		} else {
			m.Parent = c.group(c.opts.Groups.Customers, GroupSundryDebtors)
		}
		if party != nil {
			m.BillWise = c.opts.BillWise && party.BillTracked()
			m.TaxID = party.TaxID
			m.StateName = c.opts.Table.Name(party.Jurisdiction)
		} else {
			m.BillWise = c.opts.BillWise && e.Bill != nil
			m.TaxID = v.PartyTaxID
			m.StateName = c.opts.Table.Name(jurisdiction.CodeFromTaxID(v.PartyTaxID))
		}
		m.RegistrationType = registrationType(m.TaxID, party)
	case types.RoleTax:
		m.IsTax = true
		m.DutyHead = e.DutyHead
		m.Rate, m.HasRate = e.Rate, e.RateKnown
		if inbound {
			m.Parent = c.group(c.opts.Groups.InputTax, GroupDutiesTaxes)
		} else {
			m.Parent = c.group(c.opts.Groups.OutputTax, GroupDutiesTaxes)
		}
	case types.RolePrimary:
		if inbound {
			m.Parent = c.group(c.opts.Groups.Purchases, GroupPurchaseAccounts)
		} else {
			m.Parent = c.group(c.opts.Groups.Sales, GroupSalesAccounts)
		}
	case types.RoleBank:
		m.Parent = GroupBankAccounts
	case types.RoleSuspense:
		m.Parent = GroupSuspense
	default:
		m.Parent = GroupIndirectExpenses
	}

	if parent, ok := c.opts.Parents[m.Name]; ok && parent != "" {
		m.Parent = parent
	}
	return m
}

// group registers a sub-group on first use and returns the parent to use.
func (c *collector) group(name, reserved string) string {
	if name == "" {
		return reserved
	}
	if !c.groupOK[name] {
		c.groupOK[name] = true
		c.groups = append(c.groups, types.Master{Kind: types.MasterGroup, Name: name, Parent: reserved})
	}
	return name
}

func registrationType(taxID string, party *types.PartyAggregate) string {
	switch {
	case taxID != "":
		return "Regular"
	case party != nil && party.Kind == types.KindConsolidated:
		return "Consumer"
	default:
		return "Unregistered"
	}
}
