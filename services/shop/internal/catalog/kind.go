package catalog

import (
	"strconv"

	"github.com/appetiteclub/cakeshop/pkg/cake"
	"github.com/appetiteclub/cakeshop/services/shop/internal/blob"
	"github.com/appetiteclub/cakeshop/services/shop/internal/table"
)

// Notices are the toast texts of a kind. Invalid and Created are shown as
// descriptions under a generic title.
type Notices struct {
	ListFailed   string
	Invalid      string
	Created      string
	CreateFailed string
	Updated      string
	UpdateFailed string
	Deleted      string
	DeleteFailed string
}

// Kind describes one catalog entity: how rows are identified, searched and
// patched, and where their images live.
type Kind[T any, I any] struct {
	Name      string
	Notices   Notices
	Columns   []table.Column[T]
	ID        func(T) cake.ID
	Validate  func(I) cake.ValidationErrors
	Apply     func(T, I) T
	Container string
	// Image and InputImage are set only for image-bearing entities.
	Image      func(T) string
	InputImage func(I) string
}

func (k Kind[T, I]) imageBearing() bool {
	return k.Container != "" && k.Image != nil && k.InputImage != nil
}

func price(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}

// ModelKind resolves the category of a patched row through categories, so
// the mirror shows the category name without a refetch.
func ModelKind(categories func(cake.ID) (cake.Category, bool)) Kind[cake.Model, cake.ModelInput] {
	return Kind[cake.Model, cake.ModelInput]{
		Name: "models",
		Notices: Notices{
			ListFailed:   "Erro ao buscar modelos",
			Invalid:      "Por favor, preencha todos os campos.",
			Created:      "Modelo cadastrado com sucesso",
			CreateFailed: "Erro ao cadastrar modelo",
			Updated:      "Modelo atualizado",
			UpdateFailed: "Erro ao atualizar modelo",
			Deleted:      "Modelo excluído",
			DeleteFailed: "Erro ao excluir modelo",
		},
		Columns: []table.Column[cake.Model]{
			{Key: "cake_name", Text: func(m cake.Model) string { return m.Name }},
			{Key: "category", Text: func(m cake.Model) string { return m.Category.Name }},
		},
		ID:       func(m cake.Model) cake.ID { return m.ID },
		Validate: cake.ModelInput.Validate,
		Apply: func(m cake.Model, in cake.ModelInput) cake.Model {
			m.Name = in.Name
			m.Image = in.Image
			if in.CategoryID != m.Category.ID {
				m.Category = cake.Category{ID: in.CategoryID}
				if categories != nil {
					if c, ok := categories(in.CategoryID); ok {
						m.Category = c
					}
				}
			}
			return m
		},
		Container:  blob.ContainerModel,
		Image:      func(m cake.Model) string { return m.Image },
		InputImage: func(in cake.ModelInput) string { return in.Image },
	}
}

func FillingKind() Kind[cake.Filling, cake.FillingInput] {
	return Kind[cake.Filling, cake.FillingInput]{
		Name: "fillings",
		Notices: Notices{
			ListFailed:   "Erro ao buscar recheios",
			Invalid:      "Por favor, preencha todos os campos.",
			Created:      "Recheio cadastrado com sucesso",
			CreateFailed: "Erro ao cadastrar recheio",
			Updated:      "Recheio atualizado",
			UpdateFailed: "Erro ao atualizar recheio",
			Deleted:      "Recheio excluído",
			DeleteFailed: "Erro ao excluir recheio",
		},
		Columns: []table.Column[cake.Filling]{
			{Key: "filling_name", Text: func(f cake.Filling) string { return f.Name }},
			{
				Key:    "pricePerKg",
				Text:   func(f cake.Filling) string { return price(f.PricePerKg) },
				Number: func(f cake.Filling) float64 { return f.PricePerKg },
			},
		},
		ID:       func(f cake.Filling) cake.ID { return f.ID },
		Validate: cake.FillingInput.Validate,
		Apply: func(f cake.Filling, in cake.FillingInput) cake.Filling {
			f.Name = in.Name
			f.PricePerKg = in.PricePerKg
			return f
		},
	}
}

func ComplementKind() Kind[cake.Complement, cake.ComplementInput] {
	return Kind[cake.Complement, cake.ComplementInput]{
		Name: "complements",
		Notices: Notices{
			ListFailed:   "Erro ao buscar complementos",
			Invalid:      "Por favor, preencha todos os campos.",
			Created:      "Complemento cadastrado com sucesso",
			CreateFailed: "Erro ao cadastrar complemento",
			Updated:      "Complemento atualizado",
			UpdateFailed: "Erro ao atualizar complemento",
			Deleted:      "Complemento excluído",
			DeleteFailed: "Erro ao excluir complemento",
		},
		Columns: []table.Column[cake.Complement]{
			{Key: "complement_name", Text: func(c cake.Complement) string { return c.Name }},
			{
				Key:    "price",
				Text:   func(c cake.Complement) string { return price(c.Price) },
				Number: func(c cake.Complement) float64 { return c.Price },
			},
		},
		ID:       func(c cake.Complement) cake.ID { return c.ID },
		Validate: cake.ComplementInput.Validate,
		Apply: func(c cake.Complement, in cake.ComplementInput) cake.Complement {
			c.Name = in.Name
			c.ImageURL = in.ImageURL
			c.Price = in.Price
			return c
		},
		Container:  blob.ContainerComplement,
		Image:      func(c cake.Complement) string { return c.ImageURL },
		InputImage: func(in cake.ComplementInput) string { return in.ImageURL },
	}
}

func PaymentMethodKind() Kind[cake.PaymentMethod, cake.PaymentMethodInput] {
	return Kind[cake.PaymentMethod, cake.PaymentMethodInput]{
		Name: "payment-methods",
		Notices: Notices{
			ListFailed:   "Erro ao buscar métodos de pagamento",
			Invalid:      "Por favor, preencha todos os campos.",
			Created:      "Método de pagamento cadastrado com sucesso",
			CreateFailed: "Erro ao cadastrar método de pagamento",
			Updated:      "Método de pagamento atualizado",
			UpdateFailed: "Erro ao atualizar método de pagamento",
			Deleted:      "Método de pagamento excluído",
			DeleteFailed: "Erro ao excluir método de pagamento",
		},
		Columns: []table.Column[cake.PaymentMethod]{
			{Key: "payment_type", Text: func(p cake.PaymentMethod) string { return p.Type }},
		},
		ID:       func(p cake.PaymentMethod) cake.ID { return p.ID },
		Validate: cake.PaymentMethodInput.Validate,
		Apply: func(p cake.PaymentMethod, in cake.PaymentMethodInput) cake.PaymentMethod {
			p.Type = in.Type
			return p
		},
	}
}

func CategoryKind() Kind[cake.Category, cake.CategoryInput] {
	return Kind[cake.Category, cake.CategoryInput]{
		Name: "categories",
		Notices: Notices{
			ListFailed:   "Erro ao buscar categorias",
			Invalid:      "Por favor, preencha todos os campos.",
			Created:      "Categoria criada com sucesso!",
			CreateFailed: "Erro ao cadastrar categoria",
			Updated:      "Categoria atualizada",
			UpdateFailed: "Erro ao atualizar categoria",
			Deleted:      "Categoria deletada com sucesso!",
			DeleteFailed: "Erro ao deletar categoria",
		},
		Columns: []table.Column[cake.Category]{
			{Key: "category_name", Text: func(c cake.Category) string { return c.Name }},
		},
		ID:       func(c cake.Category) cake.ID { return c.ID },
		Validate: cake.CategoryInput.Validate,
		Apply: func(c cake.Category, in cake.CategoryInput) cake.Category {
			c.Name = in.Name
			return c
		},
	}
}
