// Copyright 2020 The Moov Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

package payments

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/FoleyBridge-Solutions/tr-pay-sub005/pkg/secrets"

	"github.com/google/uuid"
	"github.com/moov-io/ach"
)

var ErrInvalidCommand = errors.New("payments: invalid command")

func invalid(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInvalidCommand, fmt.Sprintf(format, args...))
}

type Source string

const (
	SourcePublic Source = "public"
	SourceAdmin  Source = "admin"
)

// ChargeMethod is how the charge reaches a gateway.
type ChargeMethod string

const (
	ChargeCard  ChargeMethod = "card"
	ChargeACH   ChargeMethod = "ach"
	ChargeSaved ChargeMethod = "saved"
	ChargeCheck ChargeMethod = "check"
)

// Method labels match the ledger types payments are written as.
const (
	MethodCreditCard = "credit_card"
	MethodACH        = "ach"
	MethodCheck      = "check"
)

// Instrument is the payment details of a command. Only the types in this package implement it.
type Instrument interface {
	instrument()
}

type CardDetails struct {
	Number     string `json:"number"`
	Expiration string `json:"expiration"` // MM/YY
	CVV        string `json:"cvv,omitempty"`
	Name       string `json:"name,omitempty"`
	PostalCode string `json:"postalCode,omitempty"`
}

type ACHDetails struct {
	AccountName   string `json:"accountName"`
	RoutingNumber string `json:"routingNumber"`
	AccountNumber string `json:"accountNumber"`
	AccountType   string `json:"accountType"` // checking or savings
	HolderType    string `json:"holderType"`  // personal or business

	// Phone marks payments authorized over the phone
	Phone bool `json:"phone,omitempty"`
}

// SavedMethod references a payment method saved by an earlier payment.
type SavedMethod struct {
	ID         string `json:"id"`
	Kind       string `json:"kind"` // card or ach
	LastFour   string `json:"lastFour"`
	HolderType string `json:"holderType,omitempty"`
}

type CheckDetails struct {
	CheckNumber string `json:"checkNumber"`
	BankName    string `json:"bankName,omitempty"`
}

func (CardDetails) instrument() {}
func (ACHDetails) instrument() {}
func (SavedMethod) instrument() {}
func (CheckDetails) instrument() {}

var (
	cardNumberRegex = regexp.MustCompile(`^[0-9]{12,19}$`)
	expirationRegex = regexp.MustCompile(`^(0[1-9]|1[0-2])/[0-9]{2}$`)
)

func (c CardDetails) validate() error {
	if !cardNumberRegex.MatchString(c.Number) {
		return invalid("card number")
	}
	if !expirationRegex.MatchString(c.Expiration) {
		return invalid("card expiration %q", c.Expiration)
	}
	return nil
}

func (a ACHDetails) validate() error {
	if err := ach.CheckRoutingNumber(a.RoutingNumber); err != nil {
		return invalid("routing number: %v", err)
	}
	if a.AccountNumber == "" || len(a.AccountNumber) > 17 {
		return invalid("account number")
	}
	switch strings.ToLower(a.AccountType) {
	case "checking", "savings":
	default:
		return invalid("account type %q", a.AccountType)
	}
	switch strings.ToLower(a.HolderType) {
	case "personal", "business":
	default:
		return invalid("holder type %q", a.HolderType)
	}
	return nil
}

func (m SavedMethod) validate() error {
	if m.ID == "" {
		return invalid("missing saved method")
	}
	switch m.Kind {
	case "card", "ach":
	default:
		return invalid("saved method kind %q", m.Kind)
	}
	return nil
}

func (c CheckDetails) validate() error {
	if strings.TrimSpace(c.CheckNumber) == "" {
		return invalid("missing check number")
	}
	return nil
}

type Invoice struct {
	Number    string `json:"number"`
	ClientKey int    `json:"clientKey,omitempty"`
	Amount    int64  `json:"amount"` // cents
}

// Details are the fields every payment carries.
type Details struct {
	// TransactionID is the idempotency key, generated when empty
	TransactionID string

	CustomerRef string
	ClientKey   int
	Email       string

	Amount      int64 // cents
	Fee         int64 // cents
	FeeIncluded bool

	Invoices         []Invoice
	SelectedInvoices []string

	// Engagements are engagement keys accepted by this payment
	Engagements []string

	SavePaymentMethod bool
}

type CardPayment struct {
	Details
	SendReceipt bool
	Card        CardDetails
}

type AdminCardPayment struct {
	Details
	LeaveUnapplied bool
	Card           CardDetails
}

type ACHPayment struct {
	Details
	SendReceipt bool
	ACH         ACHDetails
}

type AdminACHPayment struct {
	Details
	LeaveUnapplied bool
	ACH            ACHDetails
}

type SavedMethodPayment struct {
	Details
	SendReceipt bool
	Method      SavedMethod
}

type AdminSavedMethodPayment struct {
	Details
	LeaveUnapplied bool
	Method         SavedMethod
}

type AdminCheckPayment struct {
	Details
	LeaveUnapplied bool
	Check          CheckDetails
}

// Command is a validated request to take a payment. It is only built through the
// New*Payment constructors and never changes afterwards.
type Command struct {
	transactionID string
	chargeMethod  ChargeMethod
	source        Source
	method        string

	customerRef string
	clientKey   int
	email       string

	amount      int64
	fee         int64
	feeIncluded bool

	invoices         []Invoice
	selectedInvoices []string
	engagements      []string

	leaveUnapplied    bool
	sendReceipt       bool
	savePaymentMethod bool

	instrument Instrument
}

func newCommand(d Details, charge ChargeMethod, source Source, method string, inst Instrument, leaveUnapplied, sendReceipt bool) (*Command, error) {
	cmd := &Command{
		transactionID:     strings.TrimSpace(d.TransactionID),
		chargeMethod:      charge,
		source:            source,
		method:            method,
		customerRef:       strings.TrimSpace(d.CustomerRef),
		clientKey:         d.ClientKey,
		email:             strings.TrimSpace(d.Email),
		amount:            d.Amount,
		fee:               d.Fee,
		feeIncluded:       d.FeeIncluded,
		invoices:          append([]Invoice(nil), d.Invoices...),
		selectedInvoices:  append([]string(nil), d.SelectedInvoices...),
		engagements:       append([]string(nil), d.Engagements...),
		leaveUnapplied:    leaveUnapplied,
		sendReceipt:       sendReceipt,
		savePaymentMethod: d.SavePaymentMethod,
		instrument:        inst,
	}
	if cmd.transactionID == "" {
		cmd.transactionID = uuid.New().String()
	}
	if err := cmd.validate(); err != nil {
		return nil, err
	}
	return cmd, nil
}

func (cmd *Command) validate() error {
	if cmd.amount <= 0 {
		return invalid("amount must be positive")
	}
	if cmd.fee < 0 {
		return invalid("negative fee")
	}
	if cmd.feeIncluded && cmd.fee >= cmd.amount {
		return invalid("fee exceeds amount")
	}
	if cmd.customerRef == "" {
		return invalid("missing customer reference")
	}
	if len(cmd.selectedInvoices) == 0 && !cmd.leaveUnapplied {
		return invalid("no invoices selected")
	}
	switch inst := cmd.instrument.(type) {
	case CardDetails:
		return inst.validate()
	case ACHDetails:
		return inst.validate()
	case SavedMethod:
		return inst.validate()
	case CheckDetails:
		return inst.validate()
	}
	return invalid("missing payment details")
}

func NewCardPayment(p CardPayment) (*Command, error) {
	return newCommand(p.Details, ChargeCard, SourcePublic, MethodCreditCard, p.Card, false, p.SendReceipt)
}

func NewAdminCardPayment(p AdminCardPayment) (*Command, error) {
	return newCommand(p.Details, ChargeCard, SourceAdmin, MethodCreditCard, p.Card, p.LeaveUnapplied, false)
}

func NewACHPayment(p ACHPayment) (*Command, error) {
	return newCommand(p.Details, ChargeACH, SourcePublic, MethodACH, p.ACH, false, p.SendReceipt)
}

func NewAdminACHPayment(p AdminACHPayment) (*Command, error) {
	return newCommand(p.Details, ChargeACH, SourceAdmin, MethodACH, p.ACH, p.LeaveUnapplied, false)
}

// NewSavedMethodPayment charges a saved method. Fees only apply to cards, so the fee
// of a saved ACH method is always zero.
func NewSavedMethodPayment(p SavedMethodPayment) (*Command, error) {
	d := savedDetails(p.Details, p.Method)
	return newCommand(d, ChargeSaved, SourcePublic, savedLabel(p.Method), p.Method, false, p.SendReceipt)
}

func NewAdminSavedMethodPayment(p AdminSavedMethodPayment) (*Command, error) {
	d := savedDetails(p.Details, p.Method)
	return newCommand(d, ChargeSaved, SourceAdmin, savedLabel(p.Method), p.Method, p.LeaveUnapplied, false)
}

func NewAdminCheckPayment(p AdminCheckPayment) (*Command, error) {
	return newCommand(p.Details, ChargeCheck, SourceAdmin, MethodCheck, p.Check, p.LeaveUnapplied, false)
}

func savedDetails(d Details, m SavedMethod) Details {
	if m.Kind == "ach" {
		d.Fee = 0
		d.FeeIncluded = false
	}
	d.SavePaymentMethod = false
	return d
}

func savedLabel(m SavedMethod) string {
	if m.Kind == "ach" {
		return MethodACH
	}
	return MethodCreditCard
}

func (cmd *Command) TransactionID() string { return cmd.transactionID }
func (cmd *Command) ChargeMethod() ChargeMethod { return cmd.chargeMethod }
func (cmd *Command) Source() Source { return cmd.source }
func (cmd *Command) Method() string { return cmd.method }
func (cmd *Command) CustomerRef() string { return cmd.customerRef }
func (cmd *Command) ClientKey() int { return cmd.clientKey }
func (cmd *Command) Email() string { return cmd.email }
func (cmd *Command) Amount() int64 { return cmd.amount }
func (cmd *Command) Fee() int64 { return cmd.fee }
func (cmd *Command) FeeIncluded() bool { return cmd.feeIncluded }
func (cmd *Command) LeaveUnapplied() bool { return cmd.leaveUnapplied }
func (cmd *Command) SendReceipt() bool { return cmd.sendReceipt }
func (cmd *Command) SavePaymentMethod() bool { return cmd.savePaymentMethod }
func (cmd *Command) Instrument() Instrument { return cmd.instrument }

func (cmd *Command) Invoices() []Invoice {
	return append([]Invoice(nil), cmd.invoices...)
}

func (cmd *Command) SelectedInvoices() []string {
	return append([]string(nil), cmd.selectedInvoices...)
}

func (cmd *Command) Engagements() []string {
	return append([]string(nil), cmd.engagements...)
}

// TotalCharge is what the gateway charges, in cents.
func (cmd *Command) TotalCharge() int64 {
	if cmd.feeIncluded {
		return cmd.amount
	}
	return cmd.amount + cmd.fee
}

// BaseAmount is the payment without its fee, in cents.
func (cmd *Command) BaseAmount() int64 {
	if cmd.feeIncluded {
		return cmd.amount - cmd.fee
	}
	return cmd.amount
}

func (cmd *Command) IsACH() bool {
	switch inst := cmd.instrument.(type) {
	case ACHDetails:
		return true
	case SavedMethod:
		return inst.Kind == "ach"
	}
	return false
}

func (cmd *Command) IsCard() bool {
	switch inst := cmd.instrument.(type) {
	case CardDetails:
		return true
	case SavedMethod:
		return inst.Kind == "card"
	}
	return false
}

func (cmd *Command) LastFour() string {
	switch inst := cmd.instrument.(type) {
	case CardDetails:
		return secrets.LastFour(inst.Number)
	case ACHDetails:
		return secrets.LastFour(inst.AccountNumber)
	case SavedMethod:
		return inst.LastFour
	case CheckDetails:
		return secrets.LastFour(inst.CheckNumber)
	}
	return ""
}

func (cmd *Command) Description() string {
	if cmd.leaveUnapplied {
		return "Account credit"
	}
	return "Payment for invoice(s) " + strings.Join(cmd.selectedInvoices, ", ")
}

// SECCode is the NACHA entry class for ACH payments: TEL when authorized over the phone,
// CCD for business accounts, PPD for other admin entries and WEB otherwise.
func (cmd *Command) SECCode() string {
	var phone bool
	var holder string
	switch inst := cmd.instrument.(type) {
	case ACHDetails:
		phone, holder = inst.Phone, inst.HolderType
	case SavedMethod:
		if inst.Kind != "ach" {
			return ""
		}
		holder = inst.HolderType
	default:
		return ""
	}
	switch {
	case phone:
		return ach.TEL
	case strings.EqualFold(holder, "business"):
		return ach.CCD
	case cmd.source == SourceAdmin:
		return ach.PPD
	}
	return ach.WEB
}
