package domain

import (
	"time"

	"github.com/google/uuid"

	"example.com/reactivities/internal/validate"
)

// CreateActivityCommand carries a new activity. The identifier is issued by the caller.
type CreateActivityCommand struct {
	ID          string    `json:"id" validate:"required"`
	Title       string    `json:"title" validate:"required"`
	Description string    `json:"description" validate:"required"`
	Category    Category  `json:"category" validate:"required"`
	Date        time.Time `json:"date" validate:"required"`
	City        string    `json:"city" validate:"required"`
	Venue       string    `json:"venue" validate:"required"`
}

// Validate returns the field complaints for the command, or nil.
func (c CreateActivityCommand) Validate() validate.Errors {
	errs := validate.Struct(c)
	if _, ok := errs["id"]; !ok {
		if _, err := uuid.Parse(c.ID); err != nil {
			errs = with(errs, "id", "id must be a valid UUID")
		}
	}
	if _, ok := errs["category"]; !ok && !c.Category.Valid() {
		errs = with(errs, "category", "category must be one of drinks, culture, film, food, music, travel")
	}
	return errs
}

// EditActivityCommand carries a partial update. Nil fields keep their stored value,
// except Date, which every edit must restate.
type EditActivityCommand struct {
	ID          string     `json:"id" validate:"required"`
	Title       *string    `json:"title,omitempty" validate:"nonzero"`
	Description *string    `json:"description,omitempty" validate:"nonzero"`
	Category    *Category  `json:"category,omitempty" validate:"nonzero"`
	Date        *time.Time `json:"date" validate:"required"`
	City        *string    `json:"city,omitempty" validate:"nonzero"`
	Venue       *string    `json:"venue,omitempty" validate:"nonzero"`
	// ExpectedVersion, when set, makes the update conditional on the stored version.
	ExpectedVersion *int `json:"expectedVersion,omitempty"`
}

// Validate returns the field complaints for the command, or nil.
func (c EditActivityCommand) Validate() validate.Errors {
	errs := validate.Struct(c)
	if c.Category != nil {
		if _, ok := errs["category"]; !ok && !c.Category.Valid() {
			errs = with(errs, "category", "category must be one of drinks, culture, film, food, music, travel")
		}
	}
	if c.ExpectedVersion != nil && *c.ExpectedVersion < 1 {
		errs = with(errs, "expectedVersion", "expectedVersion must be positive")
	}
	return errs
}

// apply merges the supplied fields onto a.
func (c EditActivityCommand) apply(a *Activity) {
	if c.Title != nil {
		a.Title = *c.Title
	}
	if c.Description != nil {
		a.Description = *c.Description
	}
	if c.Category != nil {
		a.Category = *c.Category
	}
	if c.Date != nil {
		a.Date = c.Date.UTC()
	}
	if c.City != nil {
		a.City = *c.City
	}
	if c.Venue != nil {
		a.Venue = *c.Venue
	}
}

// UpdateProfileCommand edits the caller's own profile.
type UpdateProfileCommand struct {
	DisplayName string `json:"displayName" validate:"required"`
	Bio         string `json:"bio"`
}

// Validate returns the field complaints for the command, or nil.
func (c UpdateProfileCommand) Validate() validate.Errors {
	return validate.Struct(c)
}

func with(errs validate.Errors, field, msg string) validate.Errors {
	if errs == nil {
		errs = make(validate.Errors)
	}
	errs[field] = msg
	return errs
}
