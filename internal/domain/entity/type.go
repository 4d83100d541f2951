package entity

import (
	"fmt"
	"slices"

	"github.com/danielgtaylor/huma/v2"
)

// Type - закрытый набор коллекций, которые хранит клиент
// и отдает удаленный API.
type Type string

const (
	Categories    Type = "categories"
	Products      Type = "products"
	Customers     Type = "customers"
	Suppliers     Type = "suppliers"
	Prescriptions Type = "prescriptions"
	Supplies      Type = "supplies"
	Sales         Type = "sales"
	Returns       Type = "returns"
)

// pullOrder ставит коллекции, на которые ссылаются, раньше ссылающихся.
var pullOrder = []Type{
	Categories,
	Products,
	Customers,
	Suppliers,
	Prescriptions,
	Supplies,
	Sales,
	Returns,
}

// All возвращает все типы в порядке загрузки.
func All() []Type {
	return slices.Clone(pullOrder)
}

// Parse переводит имя от пользователя в Type.
func Parse(s string) (Type, error) {
	t := Type(s)
	if err := t.Validate(); err != nil {
		return "", err
	}
	return t, nil
}

// Validate проверяет, что t - известная коллекция.
func (t Type) Validate() error {
	if slices.Contains(pullOrder, t) {
		return nil
	}
	return fmt.Errorf("%w: %q", ErrInvalidType, string(t))
}

func (t Type) String() string {
	return string(t)
}

// Table - таблица SQLite с записями этого типа.
func (t Type) Table() string {
	return string(t)
}

// Endpoint - путь коллекции в удаленном API.
func (t Type) Endpoint() string {
	return "/api/" + string(t)
}

// Schema реализует huma.SchemaProvider.
func (Type) Schema(huma.Registry) *huma.Schema {
	enum := make([]any, 0, len(pullOrder))
	for _, t := range pullOrder {
		enum = append(enum, string(t))
	}
	return &huma.Schema{
		Type:        huma.TypeString,
		Enum:        enum,
		Description: "Entity collection",
		Examples:    []any{string(Products)},
	}
}

// DisplayName возвращает понятное человеку имя коллекции.
func (t Type) DisplayName() string {
	switch t {
	case Categories:
		return "Categories"
	case Products:
		return "Products"
	case Customers:
		return "Customers"
	case Suppliers:
		return "Suppliers"
	case Prescriptions:
		return "Prescriptions"
	case Supplies:
		return "Supplies"
	case Sales:
		return "Sales"
	case Returns:
		return "Returns"
	default:
		return "Unknown"
	}
}
