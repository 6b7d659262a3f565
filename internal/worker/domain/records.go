package domain

// Expense is the domain record persisted for an expense-typed classification
type Expense struct {
	ExpenseID     string
	UserID        string
	Amount        float64
	Category      string
	Subcategory   *string
	Companions    []string
	Date          string
	PaymentMethod string
	Description   *string
}

// Message is the assistant's reply persisted into the chat transcript. A
// message created alongside an expense links to it via ExpenseID.
type Message struct {
	MessageID string
	UserID    string
	Content   string
	Sender    string
	Source    string
	ExpenseID *string
}
