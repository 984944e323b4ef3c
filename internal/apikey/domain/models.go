package domain

// Operator is a configured back-office caller.
type Operator struct {
	Name string `json:"name"`
	Role string `json:"role"`
}
