package inmemdb

import (
	"context"
	"sort"
	"time"

	"github.com/trezcool/tutorconnect/core/application"
)

type applicationRepository struct {
	db *DB
}

func NewApplicationRepository(db *DB) application.Repository {
	return &applicationRepository{db: db}
}

func (repo *applicationRepository) pendingExists(email string) bool {
	for _, app := range repo.db.t.applications {
		if app.Email == email && app.IsPending() {
			return true
		}
	}
	return false
}

func (repo *applicationRepository) CreateApplication(_ context.Context, app application.Application) (application.Application, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if app.IsPending() && repo.pendingExists(app.Email) {
		return application.Application{}, application.ErrEmailExists
	}
	app.ID = repo.db.nextID("applications")
	repo.db.t.applications[app.ID] = app
	return app, nil
}

func (repo *applicationRepository) GetApplication(_ context.Context, id int) (application.Application, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if app, ok := repo.db.t.applications[id]; ok {
		return app, nil
	}
	return application.Application{}, application.ErrNotFound
}

func (repo *applicationRepository) PendingExists(_ context.Context, email string) (bool, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()
	return repo.pendingExists(email), nil
}

func (repo *applicationRepository) QueryApplications(_ context.Context, status string) ([]application.Application, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	apps := make([]application.Application, 0)
	for _, app := range repo.db.t.applications {
		if status == "" || app.Status == status {
			apps = append(apps, app)
		}
	}
	sort.Slice(apps, func(i, j int) bool {
		if !apps[i].CreatedAt.Equal(apps[j].CreatedAt) {
			return apps[i].CreatedAt.After(apps[j].CreatedAt)
		}
		return apps[i].ID > apps[j].ID
	})
	return apps, nil
}

func (repo *applicationRepository) UpdateStatus(_ context.Context, id int, from, to string) (application.Application, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	app, ok := repo.db.t.applications[id]
	if !ok {
		return application.Application{}, application.ErrNotFound
	}
	if app.Status != from {
		return application.Application{}, application.ErrStatusChanged
	}
	app.Status = to
	app.UpdatedAt = time.Now().UTC()
	repo.db.t.applications[id] = app
	return app, nil
}
