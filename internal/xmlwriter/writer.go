// =============================================================================
// GST Tally Vouchers - XML Writer Module
// =============================================================================
//
// Renders masters and vouchers as Tally import envelopes.
//
// XML STRUCTURE:
//
//   <ENVELOPE>
//     <HEADER>
//       <TALLYREQUEST>Import Data</TALLYREQUEST>
//       <TYPE>Data</TYPE>
//       <ID>Vouchers</ID>                    <!-- or "All Masters" -->
//     </HEADER>
//     <BODY>
//       <IMPORTDATA>
//         <REQUESTDESC>
//           <REPORTNAME>Vouchers</REPORTNAME>
//           <STATICVARIABLES>
//             <SVCURRENTCOMPANY>Acme Pvt Ltd</SVCURRENTCOMPANY>
//           </STATICVARIABLES>
//         </REQUESTDESC>
//         <REQUESTDATA>
//           <TALLYMESSAGE xmlns:UDF="TallyUDF">
//             <VOUCHER VCHTYPE="Purchase" ACTION="Create">
//               ...
//               <ALLLEDGERENTRIES.LIST>
//                 <LEDGERNAME>Sharma Traders</LEDGERNAME>
//                 <ISDEEMEDPOSITIVE>No</ISDEEMEDPOSITIVE>
//                 <AMOUNT>1180.00</AMOUNT>
//                 <BILLALLOCATIONS.LIST>...</BILLALLOCATIONS.LIST>
//               </ALLLEDGERENTRIES.LIST>
//             </VOUCHER>
//           </TALLYMESSAGE>
//         </REQUESTDATA>
//       </IMPORTDATA>
//     </BODY>
//   </ENVELOPE>
//
// One TALLYMESSAGE wraps each master or voucher. Amounts always carry exactly
// two fraction digits.
//
// =============================================================================

package xmlwriter

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"strings"
	"time"

	"github.com/ginjaninja78/gst-tally-vouchers/internal/types"
)

// Envelope IDs.
const (
	EnvelopeMasters  = "All Masters"
	EnvelopeVouchers = "Vouchers"
)

// =============================================================================
// DATE FORMATS
// =============================================================================

// DateFormat selects how voucher and bill dates are written.
type DateFormat string

const (
	// DateTally is the fixed eight-digit YYYYMMDD form.
	DateTally DateFormat = "tally"

	// DateLocale is DD-MM-YYYY.
	DateLocale DateFormat = "locale"
)

// ParseDateFormat accepts "tally", "locale", or empty (tally).
func ParseDateFormat(s string) (DateFormat, error) {
	switch DateFormat(strings.ToLower(strings.TrimSpace(s))) {
	case "", DateTally:
		return DateTally, nil
	case DateLocale:
		return DateLocale, nil
	}
	return "", fmt.Errorf("unknown date format '%s' (expected tally or locale)", s)
}

// Format renders t in this format.
func (f DateFormat) Format(t time.Time) string {
	if f == DateLocale {
		return t.Format("02-01-2006")
	}
	return t.Format("20060102")
}

// =============================================================================
// XML GENERATION OPTIONS
// =============================================================================

// GenerateOptions contains options for XML generation.
type GenerateOptions struct {
	// Indent is the string used for indentation.
	// Default: "  " (two spaces)
	Indent string

	// IncludeXMLDeclaration determines whether to include the XML declaration.
	// Default: true
	IncludeXMLDeclaration bool

	// Encoding is the encoding for the XML declaration.
	// Default: "UTF-8"
	Encoding string

	// DateFormat for DATE and BILLDATE.
	// Default: DateTally
	DateFormat DateFormat
}

// DefaultGenerateOptions returns the default generation options.
func DefaultGenerateOptions() GenerateOptions {
	return GenerateOptions{
		Indent:                "  ",
		IncludeXMLDeclaration: true,
		Encoding:              "UTF-8",
		DateFormat:            DateTally,
	}
}

// =============================================================================
// XML GENERATION FUNCTIONS
// =============================================================================

// Masters renders the master envelope for company.
func Masters(company string, masters []types.Master) []byte {
	return MastersWithOptions(company, masters, DefaultGenerateOptions())
}

// MastersWithOptions renders the master envelope with custom options.
func MastersWithOptions(company string, masters []types.Master, options GenerateOptions) []byte {
	messages := make([]XMLElement, 0, len(masters))
	for _, m := range masters {
		messages = append(messages, message(masterElement(m)))
	}
	return render(envelope(EnvelopeMasters, company, messages), options)
}

// Vouchers renders the voucher envelope for set.
func Vouchers(set types.VoucherSet) []byte {
	return VouchersWithOptions(set, DefaultGenerateOptions())
}

// VouchersWithOptions renders the voucher envelope with custom options.
func VouchersWithOptions(set types.VoucherSet, options GenerateOptions) []byte {
	messages := make([]XMLElement, 0, len(set.Vouchers))
	for _, v := range set.Vouchers {
		messages = append(messages, message(voucherElement(v, options.DateFormat)))
	}
	return render(envelope(EnvelopeVouchers, set.Company, messages), options)
}

// =============================================================================
// XML DOCUMENT BUILDING
// =============================================================================

// XMLElement represents a generic XML element.
type XMLElement struct {
	XMLName    xml.Name
	Attributes []xml.Attr
	Value      string
	Children   []XMLElement
}

func element(name string, children ...XMLElement) XMLElement {
	return XMLElement{XMLName: xml.Name{Local: name}, Children: children}
}

// createSimpleElement creates a simple XML element with a text value.
func createSimpleElement(name, value string) XMLElement {
	return XMLElement{XMLName: xml.Name{Local: name}, Value: value}
}

func (e XMLElement) attr(name, value string) XMLElement {
	e.Attributes = append(e.Attributes, xml.Attr{Name: xml.Name{Local: name}, Value: value})
	return e
}

// add appends a simple child, skipping empty values.
func (e *XMLElement) add(name, value string) {
	if value == "" {
		return
	}
	e.Children = append(e.Children, createSimpleElement(name, value))
}

func envelope(id, company string, messages []XMLElement) XMLElement {
	desc := element("REQUESTDESC", createSimpleElement("REPORTNAME", id))
	if company != "" {
		desc.Children = append(desc.Children,
			element("STATICVARIABLES", createSimpleElement("SVCURRENTCOMPANY", company)))
	}

	return element("ENVELOPE",
		element("HEADER",
			createSimpleElement("TALLYREQUEST", "Import Data"),
			createSimpleElement("TYPE", "Data"),
			createSimpleElement("ID", id),
		),
		element("BODY",
			element("IMPORTDATA",
				desc,
				element("REQUESTDATA", messages...),
			),
		),
	)
}

func message(child XMLElement) XMLElement {
	return element("TALLYMESSAGE", child).attr("xmlns:UDF", "TallyUDF")
}

// masterElement builds a GROUP or LEDGER master.
//
// STRUCTURE:
//   <LEDGER NAME="Input CGST 9%" ACTION="Create">
//     <NAME.LIST><NAME>Input CGST 9%</NAME></NAME.LIST>
//     <PARENT>GST Input Tax</PARENT>
//     <TAXTYPE>GST</TAXTYPE>
//     <GSTDUTYHEAD>Central Tax</GSTDUTYHEAD>
//     <RATEOFTAXCALCULATION>9</RATEOFTAXCALCULATION>
//   </LEDGER>
func masterElement(m types.Master) XMLElement {
	tag := "LEDGER"
	if m.Kind == types.MasterGroup {
		tag = "GROUP"
	}

	e := element(tag,
		element("NAME.LIST", createSimpleElement("NAME", m.Name)),
	).attr("NAME", m.Name).attr("ACTION", "Create")
	e.add("PARENT", m.Parent)

	if m.Kind == types.MasterGroup {
		return e
	}

	if m.IsParty {
		e.add("ISBILLWISEON", yesNo(m.BillWise))
		e.add("PARTYGSTIN", m.TaxID)
		e.add("GSTREGISTRATIONTYPE", m.RegistrationType)
		e.add("STATENAME", m.StateName)
		e.add("COUNTRYNAME", "India")
	}
	if m.IsTax {
		e.add("TAXTYPE", "GST")
		e.add("GSTDUTYHEAD", m.DutyHead)
		if m.HasRate {
			e.add("RATEOFTAXCALCULATION", m.Rate.String())
		}
	}
	e.add("OPENINGBALANCE", "0.00")
	return e
}

func voucherElement(v types.Voucher, dates DateFormat) XMLElement {
	e := element("VOUCHER").attr("VCHTYPE", string(v.Type)).attr("ACTION", "Create")
	e.add("GUID", v.GUID)
	e.add("DATE", dates.Format(v.Date))
	e.add("VOUCHERTYPENAME", string(v.Type))
	e.add("VOUCHERNUMBER", v.Number)
	e.add("REFERENCE", v.Reference)
	e.add("PARTYLEDGERNAME", v.PartyLedger)
	e.add("NARRATION", v.Narration)

	for _, entry := range v.Entries {
		le := element("ALLLEDGERENTRIES.LIST",
			createSimpleElement("LEDGERNAME", entry.LedgerName),
			createSimpleElement("ISDEEMEDPOSITIVE", yesNo(entry.IsDeemedPositive())),
			createSimpleElement("AMOUNT", entry.Amount.StringFixed(2)),
		)
		if entry.Bill != nil {
			bill := element("BILLALLOCATIONS.LIST",
				createSimpleElement("NAME", entry.Bill.Name),
				createSimpleElement("BILLTYPE", entry.Bill.Type),
				createSimpleElement("AMOUNT", entry.Bill.Amount.StringFixed(2)),
			)
			if !entry.Bill.Date.IsZero() {
				bill.add("BILLDATE", dates.Format(entry.Bill.Date))
			}
			le.Children = append(le.Children, bill)
		}
		e.Children = append(e.Children, le)
	}
	return e
}

func yesNo(b bool) string {
	if b {
		return "Yes"
	}
	return "No"
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

func render(doc XMLElement, options GenerateOptions) []byte {
	var buffer bytes.Buffer

	if options.IncludeXMLDeclaration {
		encoding := options.Encoding
		if encoding == "" {
			encoding = "UTF-8"
		}
		fmt.Fprintf(&buffer, "<?xml version=\"1.0\" encoding=\"%s\"?>\n", encoding)
	}

	writeElement(&buffer, doc, options.Indent, 0)
	return buffer.Bytes()
}

// writeElement writes an XML element to the buffer with indentation.
func writeElement(buffer *bytes.Buffer, element XMLElement, indent string, level int) {
	pad := strings.Repeat(indent, level)
	buffer.WriteString(pad)

	buffer.WriteString("<")
	buffer.WriteString(element.XMLName.Local)
	for _, attr := range element.Attributes {
		fmt.Fprintf(buffer, " %s=\"%s\"", attr.Name.Local, escapeXML(attr.Value))
	}

	if len(element.Children) == 0 && element.Value == "" {
		buffer.WriteString("/>\n")
		return
	}

	buffer.WriteString(">")

	if len(element.Children) == 0 {
		buffer.WriteString(escapeXML(element.Value))
	} else {
		buffer.WriteString("\n")
		for _, child := range element.Children {
			writeElement(buffer, child, indent, level+1)
		}
		buffer.WriteString(pad)
	}

	buffer.WriteString("</")
	buffer.WriteString(element.XMLName.Local)
	buffer.WriteString(">\n")
}

// escapeXML escapes special characters for XML. Characters XML 1.0 does
// not allow, such as the control codes bank exports carry, become U+FFFD.
func escapeXML(s string) string {
	var buffer bytes.Buffer

	for _, r := range s {
		if !legalXMLChar(r) {
			buffer.WriteRune('\uFFFD')
			continue
		}
		switch r {
		case '&':
			buffer.WriteString("&amp;")
		case '<':
			buffer.WriteString("&lt;")
		case '>':
			buffer.WriteString("&gt;")
		case '"':
			buffer.WriteString("&quot;")
		case '\'':
			buffer.WriteString("&apos;")
		default:
			buffer.WriteRune(r)
		}
	}

	return buffer.String()
}

func legalXMLChar(r rune) bool {
	return r == 0x09 || r == 0x0A || r == 0x0D ||
		r >= 0x20 && r <= 0xD7FF ||
		r >= 0xE000 && r <= 0xFFFD ||
		r >= 0x10000 && r <= 0x10FFFF
}
