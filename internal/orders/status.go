package orders

type Status string

const (
	StatusPending   Status = "PENDING"
	StatusConfirmed Status = "CONFIRMED"
	StatusShipped   Status = "SHIPPED"
	StatusDelivered Status = "DELIVERED"
	StatusCancelled Status = "CANCELLED"
)

var validNext = map[Status]map[Status]bool{
	StatusPending:   {StatusConfirmed: true, StatusCancelled: true},
	StatusConfirmed: {StatusShipped: true, StatusCancelled: true},
	StatusShipped:   {StatusDelivered: true},
	StatusDelivered: {},
	StatusCancelled: {},
}

func CanTransition(from, to Status) bool {
	return validNext[from][to]
}

func (s Status) Known() bool {
	_, ok := validNext[s]
	return ok
}

func (s Status) Terminal() bool {
	next, ok := validNext[s]
	return ok && len(next) == 0
}

// Step is the position on the tracking timeline (1..4); 0 for cancelled or unknown.
func (s Status) Step() int {
	switch s {
	case StatusPending:
		return 1
	case StatusConfirmed:
		return 2
	case StatusShipped:
		return 3
	case StatusDelivered:
		return 4
	default:
		return 0
	}
}
