package user

import (
	"regexp"
	"time"

	"github.com/go-playground/validator/v10"
	"golang.org/x/crypto/bcrypt"

	"github.com/trezcool/tutorconnect/core"
)

// Roles
const (
	RoleStudent = "student"
	RoleTutor   = "tutor"
	RoleAdmin   = "admin"
)

var (
	AllRoles = []string{RoleStudent, RoleTutor, RoleAdmin}

	// students and tutors often write "I'm from Nairobi" in their bio instead of filling the location
	fromPlaceRegex = regexp.MustCompile(`(?i)from\s+([A-Za-z\s]+)`)
)

type User struct {
	ID              int       `json:"id" db:"id"`
	FullName        string    `json:"full_name" db:"full_name"`
	Email           string    `json:"email" db:"email"`
	PasswordHash    []byte    `json:"-" db:"password_hash"`
	Role            string    `json:"role" db:"role"`
	LearningStyle   string    `json:"learning_style,omitempty" db:"learning_style"`
	Bio             string    `json:"bio,omitempty" db:"bio"`
	Location        string    `json:"location,omitempty" db:"location"`
	Subject         string    `json:"subject,omitempty" db:"subject"`
	Price           float64   `json:"price,omitempty" db:"price"`
	ExperienceYears int       `json:"experience_years,omitempty" db:"experience_years"`
	ProfilePicture  string    `json:"profile_picture,omitempty" db:"profile_picture"`
	IsApproved      bool      `json:"is_approved" db:"is_approved"`
	CreatedAt       time.Time `json:"created_at" db:"created_at"` // UTC
	UpdatedAt       time.Time `json:"updated_at" db:"updated_at"` // UTC
}

func (u *User) SetPassword(pwd string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(pwd), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u.PasswordHash = hash
	return nil
}

func (u *User) CheckPassword(pwd string) error {
	return bcrypt.CompareHashAndPassword(u.PasswordHash, []byte(pwd))
}

func (u *User) IsAdmin() bool   { return u.Role == RoleAdmin }
func (u *User) IsTutor() bool   { return u.Role == RoleTutor }
func (u *User) IsStudent() bool { return u.Role == RoleStudent }

// Place is the lower-cased location used to match students with tutors.
// Falls back to "from <place>" in the bio.
func (u *User) Place() string {
	if loc := core.CleanString(u.Location, true /* lower */); loc != "" {
		return loc
	}
	if m := fromPlaceRegex.FindStringSubmatch(u.Bio); len(m) > 1 {
		return core.CleanString(m[1], true /* lower */)
	}
	return ""
}

// TutorStats is a tutor along with the aggregates of their completed sessions.
type TutorStats struct {
	User
	TotalSessions int      `json:"total_sessions" db:"total_sessions"`
	AverageRating *float64 `json:"average_rating" db:"average_rating"` // nil without any scored session
}

// NewStudent contains information needed to sign up as a student.
type NewStudent struct {
	FullName      string `json:"full_name" validate:"required"`
	Email         string `json:"email" validate:"required,email"`
	Password      string `json:"password" validate:"required"`
	LearningStyle string `json:"learning_style"`
}

func (ns *NewStudent) Validate(validate *validator.Validate) error {
	ns.FullName = core.CleanString(ns.FullName)
	ns.Email = core.CleanString(ns.Email, true /* lower */)
	ns.LearningStyle = core.CleanString(ns.LearningStyle)

	if ns.FullName == "" || ns.Email == "" || ns.Password == "" {
		return core.NewValidationError(ErrSignupFieldsRequired)
	}
	return validate.Struct(ns)
}

// NewUser contains information needed to create a User of any role.
type NewUser struct {
	FullName string `json:"full_name" validate:"required"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
	Role     string `json:"role" validate:"required,role"`
}

func (nu *NewUser) Validate(validate *validator.Validate) error {
	nu.FullName = core.CleanString(nu.FullName)
	nu.Email = core.CleanString(nu.Email, true /* lower */)
	nu.Role = core.CleanString(nu.Role, true /* lower */)
	return validate.Struct(nu)
}

type Credentials struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

func (c *Credentials) Validate(validate *validator.Validate) error {
	c.Email = core.CleanString(c.Email, true /* lower */)
	return validate.Struct(c)
}

// StudentProfileUpdate defines what a student may change on their profile.
type StudentProfileUpdate struct {
	FullName      string `json:"full_name" validate:"required"`
	LearningStyle string `json:"learning_style"`
	Bio           string `json:"bio"`
	Location      string `json:"location"`
}

func (up *StudentProfileUpdate) Validate(validate *validator.Validate) error {
	up.FullName = core.CleanString(up.FullName)
	up.LearningStyle = core.CleanString(up.LearningStyle)
	up.Bio = core.CleanString(up.Bio)
	up.Location = core.CleanString(up.Location)
	return validate.Struct(up)
}

// TutorProfileUpdate is bound from a multipart form; ProfilePicture is set once the upload is stored.
type TutorProfileUpdate struct {
	Bio            string  `form:"bio"`
	Location       string  `form:"location"`
	Price          float64 `form:"price" validate:"gte=0"`
	ProfilePicture string  `form:"-"`
}

func (up *TutorProfileUpdate) Validate(validate *validator.Validate) error {
	up.Bio = core.CleanString(up.Bio)
	up.Location = core.CleanString(up.Location)
	return validate.Struct(up)
}

type PasswordChange struct {
	Current     string `json:"current" validate:"required"`
	NewPassword string `json:"newPw" validate:"required"`
}

func (pc *PasswordChange) Validate(validate *validator.Validate) error {
	return validate.Struct(pc)
}

// QueryFilter applies AND on its set fields.
type QueryFilter struct {
	Role          string `query:"-"`
	Subject       string `query:"subject"`  // case-insensitive equality
	Location      string `query:"location"` // case-insensitive substring
	MinExperience int    `query:"min_experience"`
	ApprovedOnly  bool   `query:"-"`
}

func (qf *QueryFilter) Clean() {
	qf.Subject = core.CleanString(qf.Subject)
	qf.Location = core.CleanString(qf.Location)
	if qf.MinExperience < 0 {
		qf.MinExperience = 0
	}
}

// OrderingFields maps the public ordering names to columns.
var OrderingFields = map[string]string{
	"full_name":        "full_name",
	"price":            "price",
	"experience_years": "experience_years",
	"created_at":       "created_at",
}
