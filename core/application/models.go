// Package application handles the applications of prospective tutors and their review by admins.
package application

import (
	"strconv"
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/trezcool/tutorconnect/core"
	"github.com/trezcool/tutorconnect/core/user"
)

// Statuses
const (
	StatusPending  = "pending"
	StatusApproved = "approved"
	StatusRejected = "rejected"
)

var (
	appStatusTag  = "appstatus"
	appStatusText = "{0} must be either approved or rejected"
)

type Application struct {
	ID              int       `json:"id" db:"id"`
	FullName        string    `json:"full_name" db:"full_name"`
	Email           string    `json:"email" db:"email"`
	PasswordHash    []byte    `json:"-" db:"password_hash"`
	Bio             string    `json:"bio" db:"bio"`
	Location        string    `json:"location" db:"location"`
	Subject         string    `json:"subject" db:"subject"`
	Price           float64   `json:"price" db:"price"`
	ExperienceYears int       `json:"experience_years" db:"experience_years"`
	ProfilePicture  string    `json:"profile_picture" db:"profile_picture"`
	Status          string    `json:"status" db:"status"`
	CreatedAt       time.Time `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time `json:"updated_at" db:"updated_at"`
}

func (app Application) IsPending() bool { return app.Status == StatusPending }

// tutor is the account created when app is approved; it keeps the applicant's password.
func (app Application) tutor() user.User {
	return user.User{
		FullName:        app.FullName,
		Email:           app.Email,
		PasswordHash:    app.PasswordHash,
		Role:            user.RoleTutor,
		Bio:             app.Bio,
		Location:        app.Location,
		Subject:         app.Subject,
		Price:           app.Price,
		ExperienceYears: app.ExperienceYears,
		ProfilePicture:  app.ProfilePicture,
		IsApproved:      true,
	}
}

// NewApplication is bound from a multipart form; ProfilePicture is set once the upload is stored.
type NewApplication struct {
	FullName        string `form:"full_name"`
	Email           string `form:"email" validate:"omitempty,email"`
	Password        string `form:"password"`
	Bio             string `form:"bio"`
	Location        string `form:"location"`
	Subject         string `form:"subject"`
	Price           string `form:"price" validate:"omitempty,numeric"`
	ExperienceYears int    `form:"experience_years" validate:"gte=0"`
	ProfilePicture  string `form:"-"`
}

func (na *NewApplication) Validate(validate *validator.Validate) error {
	na.FullName = core.CleanString(na.FullName)
	na.Email = core.CleanString(na.Email, true /* lower */)
	na.Bio = core.CleanString(na.Bio)
	na.Location = core.CleanString(na.Location)
	na.Subject = core.CleanString(na.Subject)
	na.Price = core.CleanString(na.Price)

	if na.FullName == "" || na.Email == "" || na.Password == "" || na.Bio == "" ||
		na.Location == "" || na.Subject == "" || na.Price == "" {
		return core.NewValidationError(ErrFieldsRequired)
	}
	if err := validate.Struct(na); err != nil {
		return err
	}
	if price, err := strconv.ParseFloat(na.Price, 64); err != nil || price < 0 {
		msg := "price must be a positive number"
		return core.NewValidationError(ErrInvalidPrice, core.FieldError{Field: "price", Error: msg})
	}
	return nil
}

func (na NewApplication) price() float64 {
	price, _ := strconv.ParseFloat(na.Price, 64)
	return price
}

type Decision struct {
	Status string `json:"status" validate:"required,appstatus"`
}

func (d *Decision) Validate(validate *validator.Validate) error {
	d.Status = core.CleanString(d.Status, true /* lower */)
	return validate.Struct(d)
}

// InitValidators registers the application validators; call once after core.InitValidators.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	_ = validate.RegisterValidation(appStatusTag, func(fl validator.FieldLevel) bool {
		s := fl.Field().String()
		return s == StatusApproved || s == StatusRejected
	})
	core.RegisterCustomTranslation(validate, translator, appStatusTag, appStatusText)

	validate.RegisterStructValidation(func(sl validator.StructLevel) {
		na := sl.Current().Interface().(NewApplication)
		user.ValidatePassword(sl, "password", na.Password, na.FullName, na.Email)
	}, NewApplication{})
}
