package models

// PolicyRecord is what the policy administration system returns for a
// verified policy number.
type PolicyRecord struct {
	PolicyNumber  string  `json:"policyNumber" db:"policy_number"`
	CustomerName  string  `json:"customerName" db:"customer_name"`
	CustomerEmail string  `json:"customerEmail" db:"customer_email"`
	CustomerPhone string  `json:"customerPhone" db:"customer_phone"`
	Vehicle       Vehicle `json:"vehicle"`
	Active        bool    `json:"active" db:"active"`
}
