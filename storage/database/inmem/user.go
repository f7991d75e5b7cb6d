package inmemdb

import (
	"context"
	"sort"
	"strings"

	"github.com/trezcool/tutorconnect/core"
	"github.com/trezcool/tutorconnect/core/session"
	"github.com/trezcool/tutorconnect/core/user"
)

type userRepository struct {
	db *DB
}

func NewUserRepository(db *DB) user.Repository {
	return &userRepository{db: db}
}

func (repo *userRepository) emailTaken(email string, exceptID int) bool {
	for _, u := range repo.db.t.users {
		if u.Email == email && u.ID != exceptID {
			return true
		}
	}
	return false
}

func (repo *userRepository) CreateUser(_ context.Context, usr user.User) (user.User, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if repo.emailTaken(usr.Email, 0) {
		return user.User{}, user.ErrEmailExists
	}
	usr.ID = repo.db.nextID("users")
	repo.db.t.users[usr.ID] = usr
	return usr, nil
}

func (repo *userRepository) GetUser(_ context.Context, filter user.GetFilter) (user.User, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if filter.ID != 0 {
		if usr, ok := repo.db.t.users[filter.ID]; ok {
			return usr, nil
		}
		return user.User{}, user.ErrNotFound
	}
	if filter.Email != "" {
		for _, usr := range repo.db.t.users {
			if usr.Email == filter.Email {
				return usr, nil
			}
		}
	}
	return user.User{}, user.ErrNotFound
}

func (repo *userRepository) EmailExists(_ context.Context, email string) (bool, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()
	return repo.emailTaken(email, 0), nil
}

func matchUser(u user.User, filter user.QueryFilter) bool {
	switch {
	case filter.Role != "" && u.Role != filter.Role:
		return false
	case filter.ApprovedOnly && !u.IsApproved:
		return false
	case filter.Subject != "" && !strings.EqualFold(u.Subject, filter.Subject):
		return false
	case filter.Location != "" && !strings.Contains(strings.ToLower(u.Location), strings.ToLower(filter.Location)):
		return false
	case filter.MinExperience > 0 && u.ExperienceYears < filter.MinExperience:
		return false
	}
	return true
}

// compareUsers returns <0, 0 or >0 on column.
func compareUsers(a, b user.User, column string) int {
	switch column {
	case "full_name":
		return strings.Compare(a.FullName, b.FullName)
	case "price":
		return compareFloats(a.Price, b.Price)
	case "experience_years":
		return a.ExperienceYears - b.ExperienceYears
	case "created_at":
		return compareFloats(float64(a.CreatedAt.UnixNano()), float64(b.CreatedAt.UnixNano()))
	}
	return 0
}

func compareFloats(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func (repo *userRepository) QueryUsers(_ context.Context, filter user.QueryFilter, ordering []core.DBOrdering) ([]user.User, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	users := make([]user.User, 0)
	for _, u := range repo.db.t.users {
		if matchUser(u, filter) {
			users = append(users, u)
		}
	}
	sort.Slice(users, func(i, j int) bool {
		for _, ord := range ordering {
			c := compareUsers(users[i], users[j], ord.Field)
			if c == 0 {
				continue
			}
			if ord.Ascending {
				return c < 0
			}
			return c > 0
		}
		return users[i].ID < users[j].ID
	})
	return users, nil
}

func (repo *userRepository) QueryTutorStats(_ context.Context, filter user.QueryFilter) ([]user.TutorStats, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	filter.Role = user.RoleTutor
	filter.ApprovedOnly = true

	stats := make([]user.TutorStats, 0)
	for _, u := range repo.db.t.users {
		if !matchUser(u, filter) {
			continue
		}
		st := user.TutorStats{User: u}
		var scoreSum, scored int
		for _, s := range repo.db.t.sessions {
			if s.TutorID != u.ID || s.Status != session.StatusCompleted {
				continue
			}
			st.TotalSessions++
			if s.PerformanceScore != nil {
				scoreSum += *s.PerformanceScore
				scored++
			}
		}
		if scored > 0 {
			avg := float64(scoreSum) / float64(scored)
			st.AverageRating = &avg
		}
		stats = append(stats, st)
	}
	sort.Slice(stats, func(i, j int) bool { return stats[i].ID < stats[j].ID })
	return stats, nil
}

func (repo *userRepository) UpdateUser(_ context.Context, usr user.User) (user.User, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.t.users[usr.ID]; !ok {
		return user.User{}, user.ErrNotFound
	}
	if repo.emailTaken(usr.Email, usr.ID) {
		return user.User{}, user.ErrEmailExists
	}
	repo.db.t.users[usr.ID] = usr
	return usr, nil
}
