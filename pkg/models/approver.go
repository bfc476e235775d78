package models

import "time"

// Approver is a user who may be placed on a parallel approval roster.
// Inactive approvers are rejected at group creation; membership is not
// re-checked per response.
type Approver struct {
	ID        string    `json:"id"`
	Name      string    `json:"name" validate:"required"`
	Role      string    `json:"role" validate:"required"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}
