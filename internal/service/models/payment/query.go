package payment

// QueryPaymentsModel represents filter parameters for querying payments
type QueryPaymentsModel struct {
	OrderIds []int64  `json:"orderIds,omitempty"`
	UserIds  []int64  `json:"userIds,omitempty"`
	Statuses []string `json:"statuses,omitempty"`
	Limit    int      `json:"limit,omitempty"`
	Offset   int      `json:"offset,omitempty"`
}
