package transport

// Request DTOs for the lead lifecycle API. Validation tags follow
// go-playground conventions; handlers run them through the shared validator.

type CreateLeadRequest struct {
	ServiceType   string   `json:"serviceType" validate:"required,oneof=rent_agreement domicile income_certificate birth_certificate death_certificate other"`
	Address       string   `json:"address" validate:"required,min=3,max=300"`
	Latitude      *float64 `json:"latitude,omitempty" validate:"omitempty,min=-90,max=90"`
	Longitude     *float64 `json:"longitude,omitempty" validate:"omitempty,min=-180,max=180"`
	CustomerPhone string   `json:"customerPhone" validate:"required,min=5,max=20"`
	CustomerName  string   `json:"customerName,omitempty" validate:"omitempty,max=100"`
}

type CompleteLeadRequest struct {
	ProofRef string `json:"proofRef" validate:"required,min=1,max=500"`
	Notes    string `json:"notes,omitempty" validate:"omitempty,max=2000"`
}

type RejectCompletedRequest struct {
	Reason string `json:"reason,omitempty" validate:"omitempty,max=500"`
}

// OpenLeadsQuery carries the agent's browse filters.
type OpenLeadsQuery struct {
	Latitude  *float64 `form:"lat" validate:"omitempty,min=-90,max=90"`
	Longitude *float64 `form:"lon" validate:"omitempty,min=-180,max=180"`
	RadiusKm  *float64 `form:"radiusKm" validate:"omitempty,gt=0,max=500"`
	Page      int      `form:"page"`
	PageSize  int      `form:"pageSize"`
}

// SweepResponse reports how many stale claims a sweep released.
type SweepResponse struct {
	Released int `json:"released"`
}
