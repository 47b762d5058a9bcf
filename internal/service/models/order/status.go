package order

// Status is the order lifecycle state.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusPaid       Status = "paid"
	StatusFailed     Status = "failed"
	StatusCancelled  Status = "cancelled"
	StatusRefunded   Status = "refunded"
)

func (s Status) String() string {
	return string(s)
}

// validNext encodes the payment state machine. A failed attempt loops back to
// processing; paid leaves only through the administrative refund/cancel path.
var validNext = map[Status]map[Status]bool{
	StatusPending:    {StatusProcessing: true, StatusFailed: true, StatusCancelled: true},
	StatusProcessing: {StatusPaid: true, StatusFailed: true},
	StatusFailed:     {StatusProcessing: true, StatusCancelled: true},
	StatusPaid:       {StatusRefunded: true, StatusCancelled: true},
	StatusCancelled:  {},
	StatusRefunded:   {},
}

func CanTransition(from, to Status) bool {
	return validNext[from][to]
}
