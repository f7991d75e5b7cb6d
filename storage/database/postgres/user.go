package postgres

import (
	"context"
	"database/sql"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/trezcool/tutorconnect/core"
	"github.com/trezcool/tutorconnect/core/user"
	"github.com/trezcool/tutorconnect/storage/database"
)

const userColumns = `id, full_name, email, password_hash, role, learning_style, bio, location, subject, price,
	experience_years, profile_picture, is_approved, created_at, updated_at`

type userRepository struct{ base }

func NewUserRepository(db *sqlx.DB, txr *database.Transactor) user.Repository {
	return &userRepository{base{db: db, txr: txr}}
}

func (repo *userRepository) CreateUser(ctx context.Context, usr user.User) (user.User, error) {
	const q = `INSERT INTO users (full_name, email, password_hash, role, learning_style, bio, location, subject, price,
		experience_years, profile_picture, is_approved, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14) RETURNING id`
	err := repo.ext(ctx).QueryRowxContext(ctx, q,
		usr.FullName, usr.Email, usr.PasswordHash, usr.Role, usr.LearningStyle, usr.Bio, usr.Location, usr.Subject,
		usr.Price, usr.ExperienceYears, usr.ProfilePicture, usr.IsApproved, usr.CreatedAt, usr.UpdatedAt,
	).Scan(&usr.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return user.User{}, user.ErrEmailExists
		}
		return user.User{}, err
	}
	return usr, nil
}

func (repo *userRepository) GetUser(ctx context.Context, filter user.GetFilter) (user.User, error) {
	var w where
	switch {
	case filter.ID != 0:
		w.add("id = ?", filter.ID)
	case filter.Email != "":
		w.add("email = ?", filter.Email)
	default:
		return user.User{}, user.ErrNotFound
	}
	q, args, err := w.build("SELECT " + userColumns + " FROM users")
	if err != nil {
		return user.User{}, err
	}

	var usr user.User
	if err = sqlx.GetContext(ctx, repo.ext(ctx), &usr, q, args...); err != nil {
		if err == sql.ErrNoRows {
			return user.User{}, user.ErrNotFound
		}
		return user.User{}, err
	}
	return usr, nil
}

func (repo *userRepository) EmailExists(ctx context.Context, email string) (bool, error) {
	var exists bool
	err := sqlx.GetContext(ctx, repo.ext(ctx), &exists, "SELECT EXISTS (SELECT 1 FROM users WHERE email = $1)", email)
	return exists, err
}

func userWhere(filter user.QueryFilter, alias string) where {
	var w where
	if filter.Role != "" {
		w.add(alias+"role = ?", filter.Role)
	}
	if filter.ApprovedOnly {
		w.add(alias + "is_approved")
	}
	if filter.Subject != "" {
		w.add("LOWER("+alias+"subject) = LOWER(?)", filter.Subject)
	}
	if filter.Location != "" {
		w.add(alias+"location ILIKE ?", "%"+escapeLike(filter.Location)+"%")
	}
	if filter.MinExperience > 0 {
		w.add(alias+"experience_years >= ?", filter.MinExperience)
	}
	return w
}

func (repo *userRepository) QueryUsers(ctx context.Context, filter user.QueryFilter, ordering []core.DBOrdering) ([]user.User, error) {
	orderBy := make([]string, 0, len(ordering)+1)
	for _, ord := range ordering {
		orderBy = append(orderBy, ord.String())
	}
	orderBy = append(orderBy, "id ASC")

	w := userWhere(filter, "")
	q, args, err := w.build("SELECT "+userColumns+" FROM users", "ORDER BY "+strings.Join(orderBy, ", "))
	if err != nil {
		return nil, err
	}
	users := make([]user.User, 0)
	err = sqlx.SelectContext(ctx, repo.ext(ctx), &users, q, args...)
	return users, err
}

func (repo *userRepository) QueryTutorStats(ctx context.Context, filter user.QueryFilter) ([]user.TutorStats, error) {
	filter.Role = user.RoleTutor
	filter.ApprovedOnly = true
	w := userWhere(filter, "u.")

	q, args, err := w.build(`SELECT u.*, COUNT(s.id) AS total_sessions, AVG(s.performance_score)::float8 AS average_rating
		FROM users u LEFT JOIN sessions s ON s.tutor_id = u.id AND s.status = 'completed'`, "GROUP BY u.id")
	if err != nil {
		return nil, err
	}

	stats := make([]user.TutorStats, 0)
	err = sqlx.SelectContext(ctx, repo.ext(ctx), &stats, q, args...)
	return stats, err
}

func (repo *userRepository) UpdateUser(ctx context.Context, usr user.User) (user.User, error) {
	const q = `UPDATE users SET full_name = $2, email = $3, password_hash = $4, role = $5, learning_style = $6, bio = $7,
		location = $8, subject = $9, price = $10, experience_years = $11, profile_picture = $12, is_approved = $13,
		updated_at = $14
		WHERE id = $1 RETURNING ` + userColumns
	var updated user.User
	err := sqlx.GetContext(ctx, repo.ext(ctx), &updated, q,
		usr.ID, usr.FullName, usr.Email, usr.PasswordHash, usr.Role, usr.LearningStyle, usr.Bio, usr.Location,
		usr.Subject, usr.Price, usr.ExperienceYears, usr.ProfilePicture, usr.IsApproved, usr.UpdatedAt,
	)
	switch {
	case err == sql.ErrNoRows:
		return user.User{}, user.ErrNotFound
	case isUniqueViolation(err):
		return user.User{}, user.ErrEmailExists
	}
	return updated, err
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string { return likeEscaper.Replace(s) }
