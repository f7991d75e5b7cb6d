package inmemdb

import (
	"context"

	"github.com/trezcool/tutorconnect/core/application"
	"github.com/trezcool/tutorconnect/core/report"
	"github.com/trezcool/tutorconnect/core/user"
)

type reportRepository struct {
	db *DB
}

func NewReportRepository(db *DB) report.Repository {
	return &reportRepository{db: db}
}

func (repo *reportRepository) Counts(_ context.Context) (report.Dashboard, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	dash := report.Dashboard{Sessions: make(map[string]int), Reviews: len(repo.db.t.reviews)}
	for _, u := range repo.db.t.users {
		switch u.Role {
		case user.RoleStudent:
			dash.Students++
		case user.RoleTutor:
			dash.Tutors++
		}
	}
	for _, app := range repo.db.t.applications {
		if app.Status == application.StatusPending {
			dash.PendingApplications++
		}
	}
	for _, s := range repo.db.t.sessions {
		dash.Sessions[s.Status]++
	}
	return dash, nil
}
