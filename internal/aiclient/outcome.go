package aiclient

import (
	"encoding/json"
	"errors"
	"fmt"
)

var (
	// ErrServiceUnavailable is returned when the classification service is
	// unreachable, times out, or responds with a non-success status
	ErrServiceUnavailable = errors.New("classification service unavailable")

	// ErrInvalidResponse is returned when a 200 response fails structural validation
	ErrInvalidResponse = errors.New("invalid classification response")
)

// Kind discriminates the two classification outcomes
type Kind string

const (
	KindExpense Kind = "expense"
	KindQuery   Kind = "query"
)

// ExpenseDetails holds the fields of an expense-typed classification, with
// defaults already applied
type ExpenseDetails struct {
	Amount        float64
	Date          string
	Category      string
	Subcategory   *string
	Companions    []string
	PaymentMethod string
	Description   *string
}

// Outcome is the normalized classification result. Reply is always a plain
// string regardless of how the service nested it; Expense is set only when
// Kind == KindExpense.
type Outcome struct {
	Kind    Kind
	Reply   string
	Expense *ExpenseDetails
}

// Raw wire shape. message is either a bare string or {"output": string};
// data is only meaningful for expense-typed responses.
type rawResponse struct {
	Type    string          `json:"type"`
	Message json.RawMessage `json:"message"`
	Data    rawExpenseData  `json:"data"`
}

type rawExpenseData struct {
	Amount        *float64 `json:"amount"`
	Date          string   `json:"date"`
	Category      string   `json:"category"`
	Subcategory   *string  `json:"subcategory"`
	Companions    []string `json:"companions"`
	PaymentMethod *string  `json:"paymentMethod"`
	Description   *string  `json:"description"`
}

// decodeOutcome validates and normalizes a classification response body.
// Every kind other than "expense" (including "query") carries only a reply.
func decodeOutcome(body []byte) (*Outcome, error) {
	var raw rawResponse
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}

	if raw.Type == "" {
		return nil, fmt.Errorf("%w: missing type", ErrInvalidResponse)
	}

	reply, err := replyText(raw.Message)
	if err != nil {
		return nil, err
	}

	if raw.Type != string(KindExpense) {
		return &Outcome{Kind: KindQuery, Reply: reply}, nil
	}

	if raw.Data.Amount == nil {
		return nil, fmt.Errorf("%w: expense response missing amount", ErrInvalidResponse)
	}
	if raw.Data.Date == "" {
		return nil, fmt.Errorf("%w: expense response missing date", ErrInvalidResponse)
	}
	if raw.Data.Category == "" {
		return nil, fmt.Errorf("%w: expense response missing category", ErrInvalidResponse)
	}

	details := &ExpenseDetails{
		Amount:        *raw.Data.Amount,
		Date:          raw.Data.Date,
		Category:      raw.Data.Category,
		Subcategory:   raw.Data.Subcategory,
		Companions:    raw.Data.Companions,
		PaymentMethod: "unknown",
		Description:   raw.Data.Description,
	}

	if details.Companions == nil {
		details.Companions = []string{}
	}

	if raw.Data.PaymentMethod != nil && *raw.Data.PaymentMethod != "" {
		details.PaymentMethod = *raw.Data.PaymentMethod
	}

	return &Outcome{Kind: KindExpense, Reply: reply, Expense: details}, nil
}

// replyText extracts the human-readable reply whether message is a bare
// string or nested as {"output": string}
func replyText(raw json.RawMessage) (string, error) {
	if len(raw) == 0 {
		return "", fmt.Errorf("%w: missing message", ErrInvalidResponse)
	}

	var text string
	if err := json.Unmarshal(raw, &text); err == nil {
		return text, nil
	}

	var nested struct {
		Output string `json:"output"`
	}
	if err := json.Unmarshal(raw, &nested); err == nil && nested.Output != "" {
		return nested.Output, nil
	}

	return "", fmt.Errorf("%w: message is neither a string nor {output}", ErrInvalidResponse)
}
