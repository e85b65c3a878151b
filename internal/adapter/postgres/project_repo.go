package postgres

import (
	"context"
	"errors"
	"fmt"

	"autocurrency/internal/entity"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/sirupsen/logrus"
)

var projectColumns = []string{
	"id",
	"COALESCE(name, '') AS name",
	"COALESCE(userid, '') AS userid",
	"COALESCE(currencyname, '') AS currencyname",
}

type ProjectRepo struct {
	pool   Pool
	logger *logrus.Logger
}

func NewProjectRepo(pool Pool, logger *logrus.Logger) *ProjectRepo {
	return &ProjectRepo{
		pool:   pool,
		logger: logger,
	}
}

func (r *ProjectRepo) FindAll(ctx context.Context) ([]entity.Project, error) {
	query, args, err := psql.
		Select(projectColumns...).
		From(projectsTable).
		OrderBy("id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select: %w", err)
	}

	return r.query(ctx, query, args...)
}

func (r *ProjectRepo) FindAllByUser(ctx context.Context, userID string) ([]entity.Project, error) {
	query, args, err := psql.
		Select(projectColumns...).
		From(projectsTable).
		Where(sq.Eq{"userid": userID}).
		OrderBy("id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select: %w", err)
	}

	return r.query(ctx, query, args...)
}

func (r *ProjectRepo) Find(ctx context.Context, id string) (*entity.Project, error) {
	query, args, err := psql.
		Select(projectColumns...).
		From(projectsTable).
		Where(sq.Eq{"id": id}).
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select: %w", err)
	}

	var p entity.Project
	err = r.pool.QueryRow(ctx, query, args...).Scan(&p.ID, &p.Name, &p.UserID, &p.CurrencyName)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		r.logger.WithError(err).WithField("project_id", id).Error("Failed to query project")
		return nil, fmt.Errorf("query project: %w", err)
	}
	return &p, nil
}

func (r *ProjectRepo) query(ctx context.Context, query string, args ...any) ([]entity.Project, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		r.logger.WithError(err).Error("Failed to query projects")
		return nil, fmt.Errorf("query projects: %w", err)
	}
	defer rows.Close()

	var projects []entity.Project
	for rows.Next() {
		var p entity.Project
		if err := rows.Scan(&p.ID, &p.Name, &p.UserID, &p.CurrencyName); err != nil {
			return nil, fmt.Errorf("scan project: %w", err)
		}
		projects = append(projects, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate projects: %w", err)
	}

	r.logger.Debugf("Loaded %d projects", len(projects))
	return projects, nil
}
