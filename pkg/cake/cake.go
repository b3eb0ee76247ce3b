package cake

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

const (
	// DeliveryLayout is the wire format of delivery date-times sent to the API.
	DeliveryLayout = "2006-01-02T15:04:05"
	// DateLayout is the wire format of calendar dates used by order filters.
	DateLayout = "2006-01-02"
)

// ID is a server-assigned identifier. The API emits numeric ids for some
// entities and string ids for others; both decode into the same opaque value.
type ID string

func (id *ID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*id = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("invalid id %s: %w", string(b), err)
	}
	*id = ID(n.String())
	return nil
}

func (id ID) String() string {
	return string(id)
}

func (id ID) IsZero() bool {
	return id == ""
}

type Category struct {
	ID   ID     `json:"id"`
	Name string `json:"category_name"`
}

type Model struct {
	ID       ID       `json:"id"`
	Name     string   `json:"cake_name"`
	Image    string   `json:"image"`
	Category Category `json:"category"`
}

type Filling struct {
	ID         ID      `json:"id"`
	Name       string  `json:"filling_name"`
	PricePerKg float64 `json:"pricePerKg"`
}

type Complement struct {
	ID       ID      `json:"id"`
	Name     string  `json:"complement_name"`
	ImageURL string  `json:"image_url"`
	Price    float64 `json:"price"`
}

type PaymentMethod struct {
	ID   ID     `json:"id"`
	Type string `json:"payment_type"`
}

type User struct {
	ID    ID     `json:"id"`
	Name  string `json:"name"`
	Phone string `json:"phone"`
	Email string `json:"email"`
}

// Order is a scheduled order as returned by the API. Status transitions are
// owned by the server.
type Order struct {
	ID                  ID            `json:"id"`
	Weight              float64       `json:"weight"`
	DeliveryDate        string        `json:"deliveryDate"`
	Customer            User          `json:"userClient"`
	Model               Model         `json:"cakeModel"`
	Fillings            []Filling     `json:"fillings"`
	Complements         []Complement  `json:"complements"`
	PaymentMethod       PaymentMethod `json:"paymentMethod"`
	ObservationClient   *string       `json:"observation_client"`
	ObservationEmployee *string       `json:"observation_employee"`
	TotalValue          float64       `json:"totalValue"`
	Status              string        `json:"orderStatus"`
}

// DeliveryTime parses the delivery date. The API is not consistent about
// fractional seconds or zone suffixes, so a few layouts are tried.
func (o Order) DeliveryTime() (time.Time, error) {
	layouts := []string{DeliveryLayout, time.RFC3339Nano, "2006-01-02T15:04:05.999999999", DateLayout}
	for _, l := range layouts {
		if t, err := time.Parse(l, o.DeliveryDate); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid delivery date %q", o.DeliveryDate)
}

// OrderRequest is the payload of POST /orders/register.
type OrderRequest struct {
	Weight            float64 `json:"weight"`
	DeliveryDate      string  `json:"delivery_date"`
	User              ID      `json:"user"`
	CakeModel         ID      `json:"cake_model"`
	Complements       []ID    `json:"complements"`
	Fillings          []ID    `json:"fillings"`
	PaymentMethod     ID      `json:"payment_method"`
	ObservationClient string  `json:"observation_client,omitempty"`
	Status            string  `json:"status,omitempty"`
	OrderStatus       string  `json:"order_status,omitempty"`
}

type ModelInput struct {
	Name       string `json:"cake_name"`
	Image      string `json:"image"`
	CategoryID ID     `json:"category"`
}

type FillingInput struct {
	Name       string  `json:"filling_name"`
	PricePerKg float64 `json:"pricePerKg"`
}

type ComplementInput struct {
	Name     string  `json:"complement_name"`
	ImageURL string  `json:"image_url"`
	Price    float64 `json:"price"`
}

type PaymentMethodInput struct {
	Type string `json:"payment_type"`
}

type CategoryInput struct {
	Name string `json:"category_name"`
}

type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type Registration struct {
	Name     string `json:"name"`
	Phone    string `json:"phone"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type ProfileUpdate struct {
	Name     string `json:"name,omitempty"`
	Phone    string `json:"phone,omitempty"`
	Password string `json:"password,omitempty"`
}

// IDs returns the identifiers of items in order.
func IDs[T any](items []T, id func(T) ID) []ID {
	out := make([]ID, 0, len(items))
	for _, it := range items {
		out = append(out, id(it))
	}
	return out
}
