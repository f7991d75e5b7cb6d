package application

import (
	"context"
	"net/mail"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/tutorconnect/core"
	"github.com/trezcool/tutorconnect/core/user"
)

var (
	// errors
	ErrNotFound       = errors.New("Application not found.")
	ErrFieldsRequired = errors.New("All fields are required.")
	ErrEmailExists    = errors.New("Application with this email already exists.")
	ErrInvalidPrice   = errors.New("Invalid price.")

	// repository errors
	ErrStatusChanged = errors.New("application status changed")
)

type (
	Repository interface {
		// CreateApplication returns ErrEmailExists when a pending application has the same email.
		CreateApplication(ctx context.Context, app Application) (Application, error)
		GetApplication(ctx context.Context, id int) (Application, error)
		PendingExists(ctx context.Context, email string) (bool, error)
		// QueryApplications lists applications newest first; an empty status lists them all.
		QueryApplications(ctx context.Context, status string) ([]Application, error)
		// UpdateStatus returns ErrStatusChanged when the stored status is no longer from.
		UpdateStatus(ctx context.Context, id int, from, to string) (Application, error)
	}

	Service struct {
		repo    Repository
		usrSvc  *user.Service
		txr     core.Transactor
		mailSvc core.EmailService
	}
)

func NewService(repo Repository, usrSvc *user.Service, txr core.Transactor, mailSvc core.EmailService) *Service {
	return &Service{repo: repo, usrSvc: usrSvc, txr: txr, mailSvc: mailSvc}
}

// Apply records a pending application; the password is hashed right away.
func (svc *Service) Apply(ctx context.Context, na NewApplication) (Application, error) {
	if exists, err := svc.usrSvc.EmailExists(ctx, na.Email); err != nil {
		return Application{}, errors.Wrap(err, "checking user email")
	} else if exists {
		return Application{}, core.NewValidationError(ErrEmailExists)
	}
	if exists, err := svc.repo.PendingExists(ctx, na.Email); err != nil {
		return Application{}, errors.Wrap(err, "checking application email")
	} else if exists {
		return Application{}, core.NewValidationError(ErrEmailExists)
	}

	// borrow the user hashing
	var u user.User
	if err := u.SetPassword(na.Password); err != nil {
		return Application{}, errors.Wrap(err, "hashing password")
	}

	now := time.Now().UTC()
	app, err := svc.repo.CreateApplication(ctx, Application{
		FullName:        na.FullName,
		Email:           na.Email,
		PasswordHash:    u.PasswordHash,
		Bio:             na.Bio,
		Location:        na.Location,
		Subject:         na.Subject,
		Price:           na.price(),
		ExperienceYears: na.ExperienceYears,
		ProfilePicture:  na.ProfilePicture,
		Status:          StatusPending,
		CreatedAt:       now,
		UpdatedAt:       now,
	})
	if err != nil {
		if errors.Cause(err) == ErrEmailExists {
			return Application{}, core.NewValidationError(ErrEmailExists)
		}
		return Application{}, errors.Wrap(err, "creating application")
	}
	return app, nil
}

func (svc *Service) List(ctx context.Context, status string) ([]Application, error) {
	apps, err := svc.repo.QueryApplications(ctx, core.CleanString(status, true /* lower */))
	if err != nil {
		return nil, errors.Wrap(err, "querying applications")
	}
	if apps == nil {
		apps = []Application{}
	}
	return apps, nil
}

func (svc *Service) ListPending(ctx context.Context) ([]Application, error) {
	return svc.List(ctx, StatusPending)
}

// Decide approves or rejects a pending application. Approval creates the tutor account in the same
// transaction. The applicant is emailed once the decision is committed.
func (svc *Service) Decide(ctx context.Context, id int, d Decision) (Application, error) {
	var app Application
	err := svc.txr.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		if app, err = svc.repo.GetApplication(ctx, id); err != nil {
			return err
		}
		if !app.IsPending() {
			return alreadyDecided(app.Status)
		}

		if app, err = svc.repo.UpdateStatus(ctx, id, StatusPending, d.Status); err != nil {
			if errors.Cause(err) == ErrStatusChanged {
				if app, err = svc.repo.GetApplication(ctx, id); err != nil {
					return err
				}
				return alreadyDecided(app.Status)
			}
			return errors.Wrap(err, "updating application status")
		}

		if d.Status == StatusApproved {
			if _, err = svc.usrSvc.CreateFromHash(ctx, app.tutor()); err != nil {
				return errors.Wrap(err, "creating tutor")
			}
		}
		return nil
	})
	if err != nil {
		return Application{}, err
	}

	svc.notifyApplicant(app)
	return app, nil
}

func alreadyDecided(status string) error {
	return core.NewValidationError(errors.Errorf("Application has already been %s.", status))
}

func (svc *Service) notifyApplicant(app Application) {
	if svc.mailSvc == nil {
		return
	}
	subject := "Your tutor application was approved"
	if app.Status == StatusRejected {
		subject = "Your tutor application was not accepted"
	}
	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Name: app.FullName, Address: app.Email}},
		Subject:      subject,
		TemplateName: "application_" + app.Status,
		TemplateData: map[string]string{"Name": app.FullName, "Subject": app.Subject},
	})
}
