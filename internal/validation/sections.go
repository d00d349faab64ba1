package validation

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"marketplace/internal/common"
	"marketplace/internal/models"
)

type BusinessInfo struct {
	BusinessName       string `json:"businessName" validate:"required,min=2,max=120"`
	Category           string `json:"category" validate:"required,store_category"`
	BusinessType       string `json:"businessType" validate:"required,oneof=individual partnership company"`
	RegistrationNumber string `json:"registrationNumber,omitempty" validate:"omitempty,alphanum,min=5,max=20"`
	Description        string `json:"description,omitempty" validate:"max=1000"`
}

type ContactInfo struct {
	FullName    string `json:"fullName" validate:"required,min=2,max=120"`
	Email       string `json:"email" validate:"required,email"`
	Phone       string `json:"phone" validate:"required,e164"`
	AddressLine string `json:"addressLine" validate:"required,max=200"`
	City        string `json:"city" validate:"required,max=100"`
	PostalCode  string `json:"postalCode,omitempty" validate:"max=20"`
	Country     string `json:"country" validate:"required,iso3166_1_alpha2"`
}

type ProductInfo struct {
	ProductName     string `json:"productName" validate:"required,min=2,max=120"`
	ProductCategory string `json:"productCategory" validate:"required,store_category"`
	PriceRange      string `json:"priceRange" validate:"required,oneof=budget mid premium luxury"`
	EstimatedSKUs   int    `json:"estimatedSkus" validate:"gte=1,lte=100000"`
	Description     string `json:"description,omitempty" validate:"max=1000"`
}

// StepSections lists the section each wizard step collects, by 1-based step.
// The last step (review) collects nothing.
var StepSections = []models.SectionName{
	models.SectionBusiness,
	models.SectionContact,
	models.SectionProduct,
}

// SectionForStep returns the section collected on step, if any.
func SectionForStep(step int) (models.SectionName, bool) {
	if step < 1 || step > len(StepSections) {
		return "", false
	}
	return StepSections[step-1], true
}

func schemaFor(name models.SectionName) (any, error) {
	switch name {
	case models.SectionBusiness:
		return &BusinessInfo{}, nil
	case models.SectionContact:
		return &ContactInfo{}, nil
	case models.SectionProduct:
		return &ProductInfo{}, nil
	}
	return nil, fmt.Errorf("unknown section %q", name)
}

// ValidateSection decodes raw into the section's schema, validates it and
// returns the normalized encoding. Failures are *common.ValidationError.
func ValidateSection(name models.SectionName, raw json.RawMessage) (json.RawMessage, error) {
	schema, err := schemaFor(name)
	if err != nil {
		return nil, &common.ValidationError{Fields: map[string]string{"section": err.Error()}}
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	if err := dec.Decode(schema); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) && typeErr.Field != "" {
			return nil, &common.ValidationError{Fields: map[string]string{
				typeErr.Field: "must be of type " + typeErr.Type.String(),
			}}
		}
		return nil, &common.ValidationError{Fields: map[string]string{string(name): "must be a JSON object"}}
	}

	if err := Struct(schema); err != nil {
		return nil, err
	}

	return json.Marshal(schema)
}
