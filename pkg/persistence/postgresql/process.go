package postgresql

import (
	"context"
	"database/sql"
	"errors"

	"github.com/sopflow/sopflow/pkg/models"
	"github.com/sopflow/sopflow/pkg/persistence"
)

// ProcessRepository stores process definitions in the processes table.
type ProcessRepository struct {
	db *sql.DB
}

func (r *ProcessRepository) List(ctx context.Context) ([]*models.ProcessSummary, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT p.id, p.name, p.updated_at, s.is_finished
		FROM processes p
		LEFT JOIN sessions s ON s.process_id = p.id
		ORDER BY p.updated_at DESC
	`)
	if err != nil {
		return nil, &persistence.ProcessError{Op: "List", Err: err}
	}
	defer rows.Close()

	var summaries []*models.ProcessSummary

	for rows.Next() {
		var (
			summary    models.ProcessSummary
			isFinished sql.NullBool
		)

		if err := rows.Scan(&summary.ID, &summary.Name, &summary.UpdatedAt, &isFinished); err != nil {
			return nil, &persistence.ProcessError{Op: "List", Err: err}
		}

		switch {
		case !isFinished.Valid:
			summary.SessionStatus = models.SessionStatusNone
		case isFinished.Bool:
			summary.SessionStatus = models.SessionStatusFinished
		default:
			summary.SessionStatus = models.SessionStatusRunning
		}

		summaries = append(summaries, &summary)
	}

	if err := rows.Err(); err != nil {
		return nil, &persistence.ProcessError{Op: "List", Err: err}
	}

	return summaries, nil
}

func (r *ProcessRepository) GetByID(ctx context.Context, id int64) (*models.Process, error) {
	var process models.Process

	err := r.db.QueryRowContext(ctx,
		"SELECT id, name, xml_content, updated_at FROM processes WHERE id = $1", id,
	).Scan(&process.ID, &process.Name, &process.XMLContent, &process.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, &persistence.ProcessError{Op: "GetByID", ProcessID: id, Err: persistence.ErrProcessNotFound}
		}

		return nil, &persistence.ProcessError{Op: "GetByID", ProcessID: id, Err: err}
	}

	return &process, nil
}

func (r *ProcessRepository) Save(ctx context.Context, process *models.Process) (*models.Process, error) {
	if process.ID == 0 {
		err := r.db.QueryRowContext(ctx, `
			INSERT INTO processes (name, xml_content, updated_at)
			VALUES ($1, $2, NOW())
			RETURNING id, updated_at
		`, process.Name, process.XMLContent).Scan(&process.ID, &process.UpdatedAt)
		if err != nil {
			return nil, &persistence.ProcessError{Op: "Save", Err: err}
		}

		return process, nil
	}

	err := r.db.QueryRowContext(ctx, `
		UPDATE processes
		SET name = $2, xml_content = $3, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at
	`, process.ID, process.Name, process.XMLContent).Scan(&process.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, &persistence.ProcessError{Op: "Save", ProcessID: process.ID, Err: persistence.ErrProcessNotFound}
		}

		return nil, &persistence.ProcessError{Op: "Save", ProcessID: process.ID, Err: err}
	}

	return process, nil
}

func (r *ProcessRepository) Delete(ctx context.Context, id int64) error {
	// Session rows go with the process via ON DELETE CASCADE.
	result, err := r.db.ExecContext(ctx, "DELETE FROM processes WHERE id = $1", id)
	if err != nil {
		return &persistence.ProcessError{Op: "Delete", ProcessID: id, Err: err}
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return &persistence.ProcessError{Op: "Delete", ProcessID: id, Err: err}
	}

	if affected == 0 {
		return &persistence.ProcessError{Op: "Delete", ProcessID: id, Err: persistence.ErrProcessNotFound}
	}

	return nil
}
