package entity

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

type category struct {
	Name        string `json:"name" validate:"required,max=120"`
	Description string `json:"description" validate:"max=500"`
}

type product struct {
	Name            string          `json:"name" validate:"required,max=200"`
	Barcode         string          `json:"barcode" validate:"max=64"`
	Description     string          `json:"description" validate:"max=2000"`
	Price           decimal.Decimal `json:"price" validate:"gte=0"`
	QuantityInStock int             `json:"quantity_in_stock" validate:"gte=0"`
	MinStock        int             `json:"min_stock" validate:"gte=0"`
	CategoryID      string          `json:"category_id"`
}

type party struct {
	Name    string `json:"name" validate:"required,max=200"`
	Phone   string `json:"phone" validate:"max=32"`
	Email   string `json:"email" validate:"omitempty,email"`
	Address string `json:"address" validate:"max=500"`
}

type line struct {
	ProductID string          `json:"product_id" validate:"required"`
	Quantity  int             `json:"quantity" validate:"gt=0"`
	UnitPrice decimal.Decimal `json:"unit_price" validate:"gte=0"`
}

type prescription struct {
	PatientName string `json:"patient_name" validate:"required,max=200"`
	DoctorName  string `json:"doctor_name" validate:"max=200"`
	CustomerID  string `json:"customer_id"`
	Items       []line `json:"items" validate:"dive"`
}

type supply struct {
	SupplierID string          `json:"supplier_id" validate:"required"`
	Items      []line          `json:"items" validate:"required,min=1,dive"`
	Total      decimal.Decimal `json:"total" validate:"gte=0"`
}

type sale struct {
	SaleNumber    string          `json:"sale_number" validate:"max=32"`
	CustomerID    string          `json:"customer_id"`
	Items         []line          `json:"items" validate:"required,min=1,dive"`
	Total         decimal.Decimal `json:"total" validate:"gte=0"`
	PaymentMethod string          `json:"payment_method" validate:"omitempty,oneof=cash card mobile credit"`
}

type saleReturn struct {
	ReturnNumber string `json:"return_number" validate:"max=32"`
	SaleID       string `json:"sale_id"`
	Items        []line `json:"items" validate:"required,min=1,dive"`
	Reason       string `json:"reason" validate:"max=500"`
}

// Validator проверяет payload на соответствие структуре коллекции.
type Validator struct {
	v *validator.Validate
}

// NewValidator создает валидатор, который понимает денежные поля decimal.
func NewValidator() *Validator {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	v.RegisterCustomTypeFunc(func(field reflect.Value) any {
		if d, ok := field.Interface().(decimal.Decimal); ok {
			f, _ := d.Float64()
			return f
		}
		return nil
	}, decimal.Decimal{})

	return &Validator{v: v}
}

func shapeOf(t Type) (any, error) {
	switch t {
	case Categories:
		return &category{}, nil
	case Products:
		return &product{}, nil
	case Customers, Suppliers:
		return &party{}, nil
	case Prescriptions:
		return &prescription{}, nil
	case Supplies:
		return &supply{}, nil
	case Sales:
		return &sale{}, nil
	case Returns:
		return &saleReturn{}, nil
	}
	return nil, t.Validate()
}

// Validate раскладывает payload в структуру коллекции и проверяет ее.
func (v *Validator) Validate(t Type, payload Payload) error {
	shape, err := shapeOf(t)
	if err != nil {
		return err
	}
	if len(payload) == 0 {
		return &ValidationError{Type: t, Fields: map[string]string{"data": "required"}}
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	if err := json.Unmarshal(raw, shape); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			return &ValidationError{Type: t, Fields: map[string]string{typeErr.Field: "type"}}
		}
		return fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}

	if err := v.v.Struct(shape); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return fmt.Errorf("%w: %v", ErrInvalidPayload, err)
		}
		fields := make(map[string]string, len(verrs))
		for _, fe := range verrs {
			fields[fieldPath(fe.Namespace())] = fe.Tag()
		}
		return &ValidationError{Type: t, Fields: fields}
	}
	return nil
}

// fieldPath убирает имя структуры: "sale.items[0].quantity" -> "items[0].quantity".
func fieldPath(ns string) string {
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		return ns[i+1:]
	}
	return ns
}

// StockAdjustment - изменение остатка одного товара от продажи или возврата.
type StockAdjustment struct {
	ProductID string
	Delta     int
}

// StockAdjustments вычисляет изменения остатков по строкам продаж и возвратов.
// Остальные коллекции остатки не двигают.
func StockAdjustments(t Type, payload Payload) []StockAdjustment {
	sign := 0
	switch t {
	case Sales:
		sign = -1
	case Returns:
		sign = 1
	default:
		return nil
	}

	var out []StockAdjustment
	for _, item := range payload.Items() {
		id, _ := item["product_id"].(string)
		qty, ok := Payload(item).Number("quantity")
		if id == "" || !ok || qty <= 0 {
			continue
		}
		out = append(out, StockAdjustment{ProductID: id, Delta: sign * int(qty)})
	}
	return out
}
