package cake

import (
	"regexp"
	"strings"
)

var phonePattern = regexp.MustCompile(`^\+55\d{11}$`)

// MinPasswordLength is the shortest password the registration form accepts.
const MinPasswordLength = 6

// ValidationError represents a validation error
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationErrors collects every failed rule of a form.
type ValidationErrors []ValidationError

func (v ValidationErrors) Error() string {
	msgs := make([]string, 0, len(v))
	for _, e := range v {
		msgs = append(msgs, e.Field+": "+e.Message)
	}
	return strings.Join(msgs, "; ")
}

// Err returns nil when there are no failures.
func (v ValidationErrors) Err() error {
	if len(v) == 0 {
		return nil
	}
	return v
}

func required(errs ValidationErrors, field, value string) ValidationErrors {
	if strings.TrimSpace(value) == "" {
		errs = append(errs, ValidationError{Field: field, Message: "Campo obrigatório"})
	}
	return errs
}

func (in ModelInput) Validate() ValidationErrors {
	var errs ValidationErrors
	errs = required(errs, "cake_name", in.Name)
	errs = required(errs, "image", in.Image)
	errs = required(errs, "category", in.CategoryID.String())
	return errs
}

func (in FillingInput) Validate() ValidationErrors {
	var errs ValidationErrors
	errs = required(errs, "filling_name", in.Name)
	if in.PricePerKg < 0 {
		errs = append(errs, ValidationError{Field: "pricePerKg", Message: "Preço não pode ser negativo"})
	}
	return errs
}

func (in ComplementInput) Validate() ValidationErrors {
	var errs ValidationErrors
	errs = required(errs, "complement_name", in.Name)
	errs = required(errs, "image_url", in.ImageURL)
	if in.Price < 0 {
		errs = append(errs, ValidationError{Field: "price", Message: "Preço não pode ser negativo"})
	}
	return errs
}

func (in PaymentMethodInput) Validate() ValidationErrors {
	return required(nil, "payment_type", in.Type)
}

func (in CategoryInput) Validate() ValidationErrors {
	return required(nil, "category_name", in.Name)
}

func (c Credentials) Validate() ValidationErrors {
	var errs ValidationErrors
	errs = required(errs, "email", c.Email)
	errs = required(errs, "password", c.Password)
	return errs
}

func (r Registration) Validate() ValidationErrors {
	var errs ValidationErrors
	errs = required(errs, "name", r.Name)
	if !ValidPhone(r.Phone) {
		errs = append(errs, ValidationError{Field: "phone", Message: "Telefone deve estar no formato +55DDXXXXXXXXX"})
	}
	errs = required(errs, "email", r.Email)
	if len(r.Password) < MinPasswordLength {
		errs = append(errs, ValidationError{Field: "password", Message: "A senha deve ter no mínimo 6 caracteres"})
	}
	return errs
}

func (p ProfileUpdate) Validate() ValidationErrors {
	var errs ValidationErrors
	if p.Phone != "" && !ValidPhone(p.Phone) {
		errs = append(errs, ValidationError{Field: "phone", Message: "Telefone deve estar no formato +55DDXXXXXXXXX"})
	}
	if p.Password != "" && len(p.Password) < MinPasswordLength {
		errs = append(errs, ValidationError{Field: "password", Message: "A senha deve ter no mínimo 6 caracteres"})
	}
	return errs
}

// ValidPhone reports whether phone is a Brazilian mobile number in E.164 form.
func ValidPhone(phone string) bool {
	return phonePattern.MatchString(phone)
}
