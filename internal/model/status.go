package model

// ClientType classifies a client account
type ClientType string

const (
	ClientIndividual ClientType = "Individual"
	ClientCompany    ClientType = "Company"
	ClientCash       ClientType = "Cash"
	ClientContractor ClientType = "Contractor"
)

// Valid reports whether t is one of the known client types
func (t ClientType) Valid() bool {
	switch t {
	case ClientIndividual, ClientCompany, ClientCash, ClientContractor:
		return true
	}
	return false
}

// ActiveStatus is shared by clients and workers
type ActiveStatus string

const (
	StatusActive   ActiveStatus = "Active"
	StatusInactive ActiveStatus = "Inactive"
)

func (s ActiveStatus) Valid() bool {
	return s == StatusActive || s == StatusInactive
}

// OrderStatus is the work state of a work order. Any status may move to any other.
type OrderStatus string

const (
	OrderPending    OrderStatus = "Pending"
	OrderInProgress OrderStatus = "In Progress"
	OrderCompleted  OrderStatus = "Completed"
	OrderCancelled  OrderStatus = "Cancelled"
)

func (s OrderStatus) Valid() bool {
	switch s {
	case OrderPending, OrderInProgress, OrderCompleted, OrderCancelled:
		return true
	}
	return false
}

// Open reports whether work is still outstanding
func (s OrderStatus) Open() bool {
	return s == OrderPending || s == OrderInProgress
}

// PaymentStatus tracks billing of a work order
type PaymentStatus string

const (
	PaymentPending PaymentStatus = "Pending"
	PaymentPaid    PaymentStatus = "Paid"
	PaymentPartial PaymentStatus = "Partial"
)

func (s PaymentStatus) Valid() bool {
	switch s {
	case PaymentPending, PaymentPaid, PaymentPartial:
		return true
	}
	return false
}
