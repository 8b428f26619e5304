// Package ofx writes statement batches as OFX 1.02 SGML, the dialect
// QuickBooks accepts as a .qbo Web Connect file.
//
// The output is written by hand rather than through an XML marshaller:
// QuickBooks is strict about tag order, unclosed leaf elements and CRLF line
// endings, and rejects files that differ in any of them.
package ofx

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"strings"
	"time"
	"unicode"

	"cloud.google.com/go/civil"
	"github.com/dvloznov/qbo-converter/internal/domain"
	"github.com/dvloznov/qbo-converter/internal/fitid"
	"github.com/google/uuid"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// ContentType is the media type QuickBooks registers for .qbo downloads.
const ContentType = "application/vnd.intu.qbo"

// MaxNameLength is the longest NAME QuickBooks imports without complaint.
const MaxNameLength = 30

const crlf = "\r\n"

var header = []string{
	"OFXHEADER:100",
	"DATA:OFXSGML",
	"VERSION:102",
	"SECURITY:NONE",
	"ENCODING:USASCII",
	"CHARSET:1252",
	"COMPRESSION:NONE",
	"OLDFILEUID:NONE",
	"NEWFILEUID:NONE",
	"",
}

var sgmlEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")

// Option configures an Encoder.
type Option func(*Encoder)

// WithClock overrides the source of DTSERVER.
func WithClock(now func() time.Time) Option {
	return func(e *Encoder) {
		e.now = now
	}
}

// WithUIDGenerator overrides how TRNUID is produced.
func WithUIDGenerator(uid func() string) Option {
	return func(e *Encoder) {
		e.uid = uid
	}
}

// Encoder serializes statement batches for one institution.
type Encoder struct {
	inst Institution
	now  func() time.Time
	uid  func() string
}

// NewEncoder creates an encoder for the given institution.
func NewEncoder(inst Institution, opts ...Option) *Encoder {
	e := &Encoder{
		inst: inst,
		now:  time.Now,
		uid:  uuid.NewString,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Encode returns the complete file for a batch.
func (e *Encoder) Encode(batch domain.Batch) ([]byte, error) {
	var buf bytes.Buffer
	if err := e.EncodeTo(&buf, batch); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// EncodeTo writes the file for a batch to w. The batch must contain at least
// one transaction; it is sorted by date on a copy if it is not already.
func (e *Encoder) EncodeTo(w io.Writer, batch domain.Batch) error {
	if len(batch) == 0 {
		return domain.ErrEmptyBatch
	}
	if !batch.IsSorted() {
		batch = batch.Sorted()
	}

	bw := bufio.NewWriter(w)
	l := &lineWriter{w: bw}

	for _, line := range header {
		l.raw(line)
	}

	l.open("OFX")
	e.writeSignon(l)
	e.writeStatement(l, batch)
	l.close("OFX")

	if l.err != nil {
		return fmt.Errorf("write ofx: %w", l.err)
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("flush ofx: %w", err)
	}
	return nil
}

func (e *Encoder) writeSignon(l *lineWriter) {
	l.open("SIGNONMSGSRSV1")
	l.open("SONRS")
	writeStatus(l)
	l.leaf("DTSERVER", e.now().Format("20060102150405"))
	l.leaf("LANGUAGE", "ENG")
	l.open("FI")
	l.leaf("ORG", e.inst.Org)
	l.leaf("FID", e.inst.FID)
	l.close("FI")
	l.leaf("INTU.BID", e.inst.IntuitBID)
	l.close("SONRS")
	l.close("SIGNONMSGSRSV1")
}

func (e *Encoder) writeStatement(l *lineWriter, batch domain.Batch) {
	end := formatDate(batch.End())
	total := batch.Total().StringFixed(2)

	l.open("BANKMSGSRSV1")
	l.open("STMTTRNRS")
	l.leaf("TRNUID", e.uid())
	writeStatus(l)
	l.open("STMTRS")
	l.leaf("CURDEF", domain.Currency)

	l.open("BANKACCTFROM")
	l.leaf("BANKID", e.inst.BankID)
	l.leaf("ACCTID", e.inst.AccountID)
	l.leaf("ACCTTYPE", strings.ToUpper(e.inst.AccountType))
	l.close("BANKACCTFROM")

	l.open("BANKTRANLIST")
	l.leaf("DTSTART", formatDate(batch.Start()))
	l.leaf("DTEND", end)
	for _, tx := range batch {
		writeTransaction(l, tx)
	}
	l.close("BANKTRANLIST")

	// Both balances are the from-zero sum of the batch, dated at noon on the last day.
	for _, agg := range []string{"LEDGERBAL", "AVAILBAL"} {
		l.open(agg)
		l.leaf("BALAMT", total)
		l.leaf("DTASOF", end+"120000")
		l.close(agg)
	}

	l.close("STMTRS")
	l.close("STMTTRNRS")
	l.close("BANKMSGSRSV1")
}

func writeStatus(l *lineWriter) {
	l.open("STATUS")
	l.leaf("CODE", "0")
	l.leaf("SEVERITY", "INFO")
	l.close("STATUS")
}

func writeTransaction(l *lineWriter, tx domain.Transaction) {
	l.open("STMTTRN")
	l.leaf("TRNTYPE", string(tx.Type()))
	l.leaf("DTPOSTED", formatDate(tx.Date))
	l.leaf("TRNAMT", tx.Amount.StringFixed(2))
	l.leaf("FITID", fitid.Make(tx.Date, tx.Description, tx.Amount))
	l.leaf("NAME", Name(tx.Description))
	l.close("STMTTRN")
}

// asciiRune keeps printable ASCII, which is all the USASCII header promises.
func asciiRune(r rune) rune {
	if r > unicode.MaxASCII || !unicode.IsPrint(r) {
		return '?'
	}
	return r
}

// Name prepares a description for the NAME element: line breaks become
// spaces, accented letters lose their accents, other non-ASCII characters
// become '?', the text is cut to MaxNameLength characters and SGML specials
// are escaped.
func Name(description string) string {
	s := strings.Join(strings.Fields(description), " ")

	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), runes.Map(asciiRune))
	ascii, _, err := transform.String(t, s)
	if err != nil {
		ascii = strings.Map(asciiRune, s)
	}

	if len(ascii) > MaxNameLength {
		ascii = ascii[:MaxNameLength]
	}
	return sgmlEscaper.Replace(ascii)
}

func formatDate(d civil.Date) string {
	return fmt.Sprintf("%04d%02d%02d", d.Year, int(d.Month), d.Day)
}

// lineWriter emits CRLF-terminated lines and keeps the first write error.
type lineWriter struct {
	w   *bufio.Writer
	err error
}

func (l *lineWriter) raw(s string) {
	if l.err != nil {
		return
	}
	if _, err := l.w.WriteString(s); err != nil {
		l.err = err
		return
	}
	_, l.err = l.w.WriteString(crlf)
}

func (l *lineWriter) open(tag string) {
	l.raw("<" + tag + ">")
}

func (l *lineWriter) close(tag string) {
	l.raw("</" + tag + ">")
}

func (l *lineWriter) leaf(tag, value string) {
	l.raw("<" + tag + ">" + value)
}
