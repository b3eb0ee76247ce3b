package orderstatus

type Status struct {
	Name  string
	label string
}

func (s Status) Code() string {
	return s.Name
}

// Label returns the Portuguese label shown on order tabs and cards.
func (s Status) Label() string {
	return s.label
}

type Enum struct {
	Pending   Status
	Accepted  Status
	Delivered Status
	Cancelled Status
}

var Statuses = Enum{
	Pending:   Status{Name: "PENDING", label: "Pendente"},
	Accepted:  Status{Name: "ACCEPTED", label: "Aceito"},
	Delivered: Status{Name: "DELIVERY", label: "Entregue"},
	Cancelled: Status{Name: "CANCELLED", label: "Cancelado"},
}

// All lists statuses in tab order.
var All = []Status{
	Statuses.Pending,
	Statuses.Accepted,
	Statuses.Delivered,
	Statuses.Cancelled,
}

// ByName returns the status for a given name, or nil if not found
func ByName(name string) *Status {
	for _, s := range All {
		if s.Name == name {
			return &s
		}
	}
	return nil
}

// Valid reports whether name is a known status code.
func Valid(name string) bool {
	return ByName(name) != nil
}
