package orders

type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusShipped    Status = "shipped"
	StatusDelivered  Status = "delivered"
	StatusCancelled  Status = "cancelled"
)

type PayStatus string

const (
	PayPending  PayStatus = "pending"
	PayPaid     PayStatus = "paid"
	PayFailed   PayStatus = "failed"
	PayRefunded PayStatus = "refunded"
)

var validNext = map[Status]map[Status]bool{
	StatusPending:    {StatusProcessing: true, StatusCancelled: true},
	StatusProcessing: {StatusShipped: true, StatusCancelled: true},
	StatusShipped:    {StatusDelivered: true},
	StatusDelivered:  {},
	StatusCancelled:  {},
}

var validNextPay = map[PayStatus]map[PayStatus]bool{
	PayPending:  {PayPaid: true, PayFailed: true},
	PayPaid:     {PayRefunded: true},
	PayFailed:   {PayPending: true},
	PayRefunded: {},
}

func CanTransition(from, to Status) bool { return validNext[from][to] }

func CanTransitionPay(from, to PayStatus) bool { return validNextPay[from][to] }
