package dto

import (
	"encoding/json"
	"io"

	"github.com/go-playground/validator/v10"
)

type RegisterRequest struct {
	Email       string `json:"email" validate:"required,email"`
	FullName    string `json:"full_name" validate:"required,max=200"`
	PhoneNumber string `json:"phone_number" validate:"required,min=9,max=16"`
	Password    string `json:"password" validate:"required,min=6,max=72"`
	Password2   string `json:"password_confirm" validate:"required,eqfield=Password"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6,max=72"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required,hexadecimal,len=64"`
}

var Validate = validator.New()

// Decode reads a JSON body into v and runs struct validation on it.
// Decoding errors and validation errors are returned unchanged so callers
// can tell a malformed body from a rejected field.
func Decode(r io.Reader, v interface{}) error {
	if err := json.NewDecoder(r).Decode(v); err != nil {
		return err
	}
	return Validate.Struct(v)
}
