package domain

import "time"

type Advertisement struct {
	ID          int64      `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	CreatedAt   *time.Time `json:"created_at"` // assigned by the database on insert
	Owner       string     `json:"owner"`
}

type CreateAdvertisementInput struct {
	Title       string `json:"title" validate:"required,min=1,max=256"`
	Description string `json:"description" validate:"required,min=1"`
	Owner       string `json:"owner" validate:"required,min=1,max=256"`
}

// UpdateAdvertisementInput is a partial update: nil fields are left untouched.
type UpdateAdvertisementInput struct {
	Title       *string `json:"title" validate:"omitnil,min=1,max=256"`
	Description *string `json:"description" validate:"omitnil,min=1"`
	Owner       *string `json:"owner" validate:"omitnil,min=1,max=256"`
}

func (in UpdateAdvertisementInput) IsEmpty() bool {
	return in.Title == nil && in.Description == nil && in.Owner == nil
}
