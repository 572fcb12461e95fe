package dto

type InitiatePaymentRequest struct {
	PlanKind    string `json:"plan_kind" validate:"required,oneof=monthly quarterly yearly"`
	PhoneNumber string `json:"phone_number" validate:"required,min=9,max=16"`
}
