package user

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/tutorconnect/core"
)

const (
	topTutorsLimit     = 10
	recommendedLimit   = 3
	tutorStatsDecimals = 100 // 2 decimals
)

var (
	// errors
	ErrNotFound             = errors.New("user not found")
	ErrTutorNotFound        = errors.New("Tutor not found.")
	ErrEmailExists          = errors.New("Email already exists.")
	ErrSignupFieldsRequired = errors.New("Name, email and password are required.")
	ErrInvalidEmail         = errors.New("Invalid credentials (email)")
	ErrInvalidPassword      = errors.New("Invalid credentials (password)")
	ErrWrongPassword        = errors.New("Current password is incorrect.")
	ErrSubjectRequired      = errors.New("Subject is required.")
)

type (
	GetFilter struct {
		ID    int
		Email string
	}

	Repository interface {
		// CreateUser returns ErrEmailExists when the email is taken.
		CreateUser(ctx context.Context, usr User) (User, error)
		GetUser(ctx context.Context, filter GetFilter) (User, error)
		EmailExists(ctx context.Context, email string) (bool, error)
		QueryUsers(ctx context.Context, filter QueryFilter, ordering []core.DBOrdering) ([]User, error)
		// QueryTutorStats returns approved tutors matching filter, with completed session aggregates.
		QueryTutorStats(ctx context.Context, filter QueryFilter) ([]TutorStats, error)
		UpdateUser(ctx context.Context, usr User) (User, error)
	}

	Service struct {
		repo Repository
	}

	Recommendation struct {
		TutorStats
		LocationMatch bool `json:"location_match"`
	}
)

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Signup creates a student account.
func (svc *Service) Signup(ctx context.Context, ns NewStudent) (User, error) {
	exists, err := svc.repo.EmailExists(ctx, ns.Email)
	if err != nil {
		return User{}, errors.Wrap(err, "checking email")
	}
	if exists {
		return User{}, core.NewValidationError(ErrEmailExists)
	}

	now := time.Now().UTC()
	usr := User{
		FullName:      ns.FullName,
		Email:         ns.Email,
		Role:          RoleStudent,
		LearningStyle: ns.LearningStyle,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := usr.SetPassword(ns.Password); err != nil {
		return User{}, errors.Wrap(err, "setting password")
	}
	return svc.create(ctx, usr)
}

// Create creates a User with any role.
func (svc *Service) Create(ctx context.Context, nu NewUser) (User, error) {
	now := time.Now().UTC()
	usr := User{
		FullName:   nu.FullName,
		Email:      nu.Email,
		Role:       nu.Role,
		IsApproved: nu.Role == RoleTutor,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := usr.SetPassword(nu.Password); err != nil {
		return User{}, errors.Wrap(err, "setting password")
	}
	return svc.create(ctx, usr)
}

// CreateFromHash creates a User whose password was hashed beforehand (e.g. at application time).
func (svc *Service) CreateFromHash(ctx context.Context, usr User) (User, error) {
	now := time.Now().UTC()
	usr.ID = 0
	usr.Email = core.CleanString(usr.Email, true /* lower */)
	usr.CreatedAt = now
	usr.UpdatedAt = now
	return svc.create(ctx, usr)
}

func (svc *Service) create(ctx context.Context, usr User) (User, error) {
	usr, err := svc.repo.CreateUser(ctx, usr)
	if err != nil {
		if errors.Cause(err) == ErrEmailExists {
			return User{}, core.NewValidationError(ErrEmailExists, core.FieldError{Field: "email", Error: ErrEmailExists.Error()})
		}
		return User{}, errors.Wrap(err, "creating user")
	}
	return usr, nil
}

// Authenticate checks the credentials and returns the matching User.
func (svc *Service) Authenticate(ctx context.Context, creds Credentials) (User, error) {
	usr, err := svc.GetByEmail(ctx, creds.Email)
	if err != nil {
		if errors.Cause(err) == ErrNotFound {
			return User{}, core.NewValidationError(ErrInvalidEmail)
		}
		return User{}, errors.Wrap(err, "finding user by email")
	}
	if err = usr.CheckPassword(creds.Password); err != nil {
		return User{}, core.NewValidationError(ErrInvalidPassword)
	}
	return usr, nil
}

func (svc *Service) GetByID(ctx context.Context, id int) (User, error) {
	return svc.repo.GetUser(ctx, GetFilter{ID: id})
}

func (svc *Service) GetByEmail(ctx context.Context, email string) (User, error) {
	return svc.repo.GetUser(ctx, GetFilter{Email: core.CleanString(email, true /* lower */)})
}

func (svc *Service) EmailExists(ctx context.Context, email string) (bool, error) {
	return svc.repo.EmailExists(ctx, core.CleanString(email, true /* lower */))
}

// GetTutor returns an approved tutor, ErrTutorNotFound otherwise.
func (svc *Service) GetTutor(ctx context.Context, id int) (User, error) {
	usr, err := svc.GetByID(ctx, id)
	if err != nil {
		if errors.Cause(err) == ErrNotFound {
			return User{}, ErrTutorNotFound
		}
		return User{}, err
	}
	if !usr.IsTutor() || !usr.IsApproved {
		return User{}, ErrTutorNotFound
	}
	return usr, nil
}

func (svc *Service) Query(ctx context.Context, filter QueryFilter, ordering []core.DBOrdering) ([]User, error) {
	filter.Clean()
	return svc.repo.QueryUsers(ctx, filter, core.FilterOrderings(ordering, OrderingFields))
}

// QueryTutors lists approved tutors.
func (svc *Service) QueryTutors(ctx context.Context, filter QueryFilter, ordering []core.DBOrdering) ([]User, error) {
	filter.Role = RoleTutor
	filter.ApprovedOnly = true
	return svc.Query(ctx, filter, ordering)
}

// SearchTutors lists approved tutors whose location contains location, case-insensitively.
func (svc *Service) SearchTutors(ctx context.Context, location string) ([]User, error) {
	return svc.QueryTutors(ctx, QueryFilter{Location: location}, nil)
}

// TopTutors ranks tutors by average performance score then completed sessions.
func (svc *Service) TopTutors(ctx context.Context) ([]TutorStats, error) {
	stats, err := svc.repo.QueryTutorStats(ctx, QueryFilter{})
	if err != nil {
		return nil, errors.Wrap(err, "querying tutor stats")
	}
	sortTutorStats(stats)
	if len(stats) > topTutorsLimit {
		stats = stats[:topTutorsLimit]
	}
	return stats, nil
}

// Recommend ranks the tutors of subject for a student: same place first, then rating, then sessions.
func (svc *Service) Recommend(ctx context.Context, studentID int, subject string) ([]Recommendation, error) {
	subject = core.CleanString(subject)
	if subject == "" {
		return nil, core.NewValidationError(ErrSubjectRequired)
	}

	student, err := svc.GetByID(ctx, studentID)
	if err != nil {
		return nil, errors.Wrap(err, "finding student")
	}
	stats, err := svc.repo.QueryTutorStats(ctx, QueryFilter{Subject: subject})
	if err != nil {
		return nil, errors.Wrap(err, "querying tutor stats")
	}
	sortTutorStats(stats)

	place := student.Place()
	recs := make([]Recommendation, 0, len(stats))
	for _, st := range stats {
		recs = append(recs, Recommendation{TutorStats: st, LocationMatch: place != "" && st.Place() == place})
	}
	sort.SliceStable(recs, func(i, j int) bool { return recs[i].LocationMatch && !recs[j].LocationMatch })

	if len(recs) > recommendedLimit {
		recs = recs[:recommendedLimit]
	}
	return recs, nil
}

func (svc *Service) UpdateStudentProfile(ctx context.Context, id int, up StudentProfileUpdate) (User, error) {
	usr, err := svc.GetByID(ctx, id)
	if err != nil {
		return User{}, errors.Wrap(err, "finding user")
	}
	usr.FullName = up.FullName
	usr.LearningStyle = up.LearningStyle
	usr.Bio = up.Bio
	usr.Location = up.Location
	usr.UpdatedAt = time.Now().UTC()
	return svc.repo.UpdateUser(ctx, usr)
}

// UpdateTutorProfile keeps the current picture when up.ProfilePicture is empty.
func (svc *Service) UpdateTutorProfile(ctx context.Context, id int, up TutorProfileUpdate) (User, error) {
	usr, err := svc.GetByID(ctx, id)
	if err != nil {
		return User{}, errors.Wrap(err, "finding user")
	}
	usr.Bio = up.Bio
	usr.Location = up.Location
	usr.Price = up.Price
	if up.ProfilePicture != "" {
		usr.ProfilePicture = up.ProfilePicture
	}
	usr.UpdatedAt = time.Now().UTC()
	return svc.repo.UpdateUser(ctx, usr)
}

func (svc *Service) ChangePassword(ctx context.Context, id int, pc PasswordChange) error {
	usr, err := svc.GetByID(ctx, id)
	if err != nil {
		return errors.Wrap(err, "finding user")
	}
	if err = usr.CheckPassword(pc.Current); err != nil {
		return core.NewValidationError(ErrWrongPassword)
	}
	return svc.SetPassword(ctx, usr, pc.NewPassword)
}

func (svc *Service) SetPassword(ctx context.Context, usr User, pwd string) error {
	if err := usr.SetPassword(pwd); err != nil {
		return errors.Wrap(err, "setting password")
	}
	usr.UpdatedAt = time.Now().UTC()
	if _, err := svc.repo.UpdateUser(ctx, usr); err != nil {
		return errors.Wrap(err, "updating user")
	}
	return nil
}

// sortTutorStats orders by rating desc (unrated last), then total sessions desc, then name.
func sortTutorStats(stats []TutorStats) {
	for i := range stats {
		if r := stats[i].AverageRating; r != nil {
			rounded := float64(int64(*r*tutorStatsDecimals+0.5)) / tutorStatsDecimals
			stats[i].AverageRating = &rounded
		}
	}
	sort.SliceStable(stats, func(i, j int) bool {
		ri, rj := stats[i].AverageRating, stats[j].AverageRating
		switch {
		case ri != nil && rj == nil:
			return true
		case ri == nil && rj != nil:
			return false
		case ri != nil && rj != nil && *ri != *rj:
			return *ri > *rj
		}
		if stats[i].TotalSessions != stats[j].TotalSessions {
			return stats[i].TotalSessions > stats[j].TotalSessions
		}
		return strings.ToLower(stats[i].FullName) < strings.ToLower(stats[j].FullName)
	})
}
