package service

import (
	"errors"
	"regexp"
	"strings"
	"unicode"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/samber/oops"

	"wildsats-api/internal/identity"
	"wildsats-api/internal/model"
)

var (
	identityPattern  = regexp.MustCompile(`^[A-Za-z0-9_.:-]+$`)
	characterPattern = regexp.MustCompile(`^[\p{L}\p{N}][\p{L}\p{N} _'-]*$`)
)

// LoginInput is the payload of a login upsert.
type LoginInput struct {
	Identity    string `json:"identity"`
	DisplayName string `json:"displayName"`
}

func (in *LoginInput) normalize() {
	in.Identity = strings.TrimSpace(in.Identity)
	in.DisplayName = strings.TrimSpace(in.DisplayName)
}

// Validate checks field shapes. Canonical npub form is enforced separately.
func (in LoginInput) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.Identity, identityRules()...),
		validation.Field(&in.DisplayName, validation.Length(0, 100), validation.By(printable)),
	)
}

type characterInput struct {
	Identity  string `json:"identity"`
	Character string `json:"character"`
}

func (in characterInput) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.Identity, identityRules()...),
		validation.Field(&in.Character,
			validation.Required,
			validation.Length(1, 64),
			validation.Match(characterPattern).Error("must start with a letter or digit and contain only letters, digits, spaces, _ ' -"),
		),
	)
}

type itemInput struct {
	Identity string `json:"identity"`
	Item     string `json:"item"`
}

func (in itemInput) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.Identity, identityRules()...),
		validation.Field(&in.Item, validation.Required, validation.Length(1, 128), validation.By(printable)),
	)
}

type identityInput struct {
	Identity string `json:"identity"`
}

func (in identityInput) Validate() error {
	return validation.ValidateStruct(&in, validation.Field(&in.Identity, identityRules()...))
}

func identityRules() []validation.Rule {
	return []validation.Rule{
		validation.Required,
		validation.Length(1, 128),
		validation.Match(identityPattern).Error("must contain only letters, digits and _ . : -"),
	}
}

func printable(value interface{}) error {
	s, _ := value.(string)
	for _, r := range s {
		if !unicode.IsPrint(r) {
			return errors.New("must not contain control characters")
		}
	}
	return nil
}

// validate runs v and converts failures into an INVALID_INPUT error with per-field messages.
func validate(v validation.Validatable) error {
	err := v.Validate()
	if err == nil {
		return nil
	}

	fields := map[string]string{}
	var verrs validation.Errors
	if errors.As(err, &verrs) {
		for name, fieldErr := range verrs {
			fields[name] = fieldErr.Error()
		}
	}

	return oops.Code("INVALID_INPUT").
		In("service").
		With("fields", fields).
		Wrapf(model.ErrInvalidInput, "%s", err.Error())
}

// FieldErrors extracts the per-field messages attached by validation.
func FieldErrors(err error) map[string]string {
	oopsErr, ok := oops.AsOops(err)
	if !ok {
		return nil
	}
	fields, _ := oopsErr.Context()["fields"].(map[string]string)
	return fields
}

// checkCanonical enforces the npub form when strict.
func checkCanonical(strict bool, id string) error {
	if !strict {
		return nil
	}
	_, err := identity.DecodePublicKey(id)
	return err
}
