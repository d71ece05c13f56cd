package core

import (
	"errors"
	"strconv"
	"strings"
	"time"
)

// DateLayout is the calendar-date format accepted from forms.
const DateLayout = "2006-01-02"

var (
	ErrEmptyDescription   = errors.New("empty description")
	ErrEmptyPaymentMethod = errors.New("empty payment method")
	ErrEmptyCategory      = errors.New("empty category")
	ErrInvalidAmount      = errors.New("invalid amount")
	ErrInvalidDate        = errors.New("invalid date")
)

// Expense is a single user-entered transaction. ID is assigned by the
// store on creation and is zero until then.
type Expense struct {
	ID            int64
	Date          time.Time
	Description   string
	Amount        float64
	PaymentMethod string
	Category      string
}

// New builds a validated Expense from raw form fields. Every field is
// required: description, payment method and category must be non-empty
// after trimming, amount must parse as a decimal number and date must
// parse as DateLayout. On any failure no partial record is returned.
func New(description, amount, paymentMethod, category, date string) (Expense, error) {
	description = strings.TrimSpace(description)
	paymentMethod = strings.TrimSpace(paymentMethod)
	category = strings.TrimSpace(category)

	if description == "" {
		return Expense{}, ErrEmptyDescription
	}
	if paymentMethod == "" {
		return Expense{}, ErrEmptyPaymentMethod
	}
	if category == "" {
		return Expense{}, ErrEmptyCategory
	}

	amt, err := strconv.ParseFloat(strings.TrimSpace(amount), 64)
	if err != nil {
		return Expense{}, ErrInvalidAmount
	}

	d, err := time.Parse(DateLayout, strings.TrimSpace(date))
	if err != nil {
		return Expense{}, ErrInvalidDate
	}

	return Expense{
		Date:          d,
		Description:   description,
		Amount:        amt,
		PaymentMethod: paymentMethod,
		Category:      category,
	}, nil
}

// Update carries raw replacement values for a partial expense update.
// Empty strings mean "leave unchanged".
type Update struct {
	Description   string
	Amount        string
	PaymentMethod string
	Category      string
	Date          string
}

// ApplyUpdate applies u field by field. Each field is validated on its
// own: an unparseable amount or date is skipped while the remaining
// valid fields still apply. There is no rollback.
func (e *Expense) ApplyUpdate(u Update) {
	if v := strings.TrimSpace(u.Description); v != "" {
		e.Description = v
	}
	if v := strings.TrimSpace(u.Amount); v != "" {
		if amt, err := strconv.ParseFloat(v, 64); err == nil {
			e.Amount = amt
		}
	}
	if v := strings.TrimSpace(u.PaymentMethod); v != "" {
		e.PaymentMethod = v
	}
	if v := strings.TrimSpace(u.Category); v != "" {
		e.Category = v
	}
	if v := strings.TrimSpace(u.Date); v != "" {
		if d, err := time.Parse(DateLayout, v); err == nil {
			e.Date = d
		}
	}
}
