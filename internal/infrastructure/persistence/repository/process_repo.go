package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/garyjia/process-engine/internal/application/port"
	"github.com/garyjia/process-engine/internal/domain/process"
	"github.com/garyjia/process-engine/internal/infrastructure/persistence/sqlite"
)

// ProcessRepository implements port.ProcessRepository on SQLite
type ProcessRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewProcessRepository creates a new process repository
func NewProcessRepository(db *sql.DB, logger *zap.Logger) port.ProcessRepository {
	return &ProcessRepository{
		db:     db,
		logger: logger,
	}
}

const processColumns = `
	id, public_id, type, description, state, channel,
	expiry, external_reference, created_at, updated_at
`

// Create persists a new process together with its seed request and
// initial transition
func (r *ProcessRepository) Create(ctx context.Context, p *process.Process) error {
	query := `
		INSERT INTO processes (
			public_id, type, description, state, channel,
			expiry, external_reference, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := r.getExecutor(ctx).ExecContext(ctx, query,
		p.PublicID.String(),
		p.Type.String(),
		p.Description,
		p.State.String(),
		string(p.Channel),
		nullableTime(p.Expiry),
		nullableString(p.ExternalReference),
		p.CreatedAt,
		p.CreatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create process", zap.Error(err))
		return fmt.Errorf("failed to create process: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	p.ID = id
	p.UpdatedAt = p.CreatedAt

	for _, req := range p.Requests {
		req.ProcessID = id
		if err := r.insertRequest(ctx, req); err != nil {
			return err
		}
	}
	for _, tr := range p.Transitions {
		tr.ProcessID = id
		if err := r.insertTransition(ctx, tr); err != nil {
			return err
		}
	}
	return nil
}

// FindByPublicID loads the full aggregate by its public identifier
func (r *ProcessRepository) FindByPublicID(ctx context.Context, publicID uuid.UUID) (*process.Process, error) {
	query := `SELECT ` + processColumns + ` FROM processes WHERE public_id = ?`
	return r.queryOne(ctx, query, publicID.String())
}

// FindPendingByExternalReference loads a pending process by correlation key
func (r *ProcessRepository) FindPendingByExternalReference(ctx context.Context, externalReference string) (*process.Process, error) {
	query := `
		SELECT ` + processColumns + `
		FROM processes
		WHERE external_reference = ? AND state = ?
		ORDER BY created_at DESC
		LIMIT 1
	`
	return r.queryOne(ctx, query, externalReference, process.StatePending.String())
}

// FindPendingByTypesAndExternalReference narrows the correlation lookup
// to a set of process types
func (r *ProcessRepository) FindPendingByTypesAndExternalReference(ctx context.Context, types []process.Type, externalReference string) (*process.Process, error) {
	if len(types) == 0 {
		return nil, nil
	}

	placeholders := strings.Repeat("?,", len(types))
	placeholders = placeholders[:len(placeholders)-1]
	query := fmt.Sprintf(`
		SELECT `+processColumns+`
		FROM processes
		WHERE external_reference = ? AND state = ? AND type IN (%s)
		ORDER BY created_at DESC
		LIMIT 1
	`, placeholders)

	args := []interface{}{externalReference, process.StatePending.String()}
	for _, t := range types {
		args = append(args, t.String())
	}
	return r.queryOne(ctx, query, args...)
}

// FindRecentPendingByTypeAndForUser returns pending processes of a type
// for a FOR_USER stakeholder, newest first
func (r *ProcessRepository) FindRecentPendingByTypeAndForUser(ctx context.Context, procType process.Type, userID string, since time.Time) ([]*process.Process, error) {
	query := `
		SELECT DISTINCT ` + prefixColumns("p", processColumns) + `
		FROM processes p
		JOIN process_requests req ON req.process_id = p.id
		JOIN process_stakeholders st ON st.request_id = req.id
		WHERE p.type = ? AND p.state = ?
			AND st.stakeholder_type = ? AND st.user_id = ?
			AND p.created_at >= ?
		ORDER BY p.created_at DESC
	`

	rows, err := r.getExecutor(ctx).QueryContext(ctx, query,
		procType.String(),
		process.StatePending.String(),
		string(process.StakeholderForUser),
		userID,
		since,
	)
	if err != nil {
		r.logger.Error("Failed to query pending processes by user",
			zap.String("type", procType.String()), zap.Error(err))
		return nil, fmt.Errorf("failed to query pending processes: %w", err)
	}
	defer rows.Close()

	var processes []*process.Process
	for rows.Next() {
		p, err := scanProcess(rows)
		if err != nil {
			return nil, err
		}
		processes = append(processes, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, p := range processes {
		if err := r.loadChildren(ctx, p); err != nil {
			return nil, err
		}
	}
	return processes, nil
}

// FindLatestPendingByTypeAndForUser returns the most recent pending
// process of a type for a FOR_USER stakeholder, or nil
func (r *ProcessRepository) FindLatestPendingByTypeAndForUser(ctx context.Context, procType process.Type, userID string) (*process.Process, error) {
	processes, err := r.FindRecentPendingByTypeAndForUser(ctx, procType, userID, time.Time{})
	if err != nil {
		return nil, err
	}
	if len(processes) == 0 {
		return nil, nil
	}
	return processes[0], nil
}

// Save persists the aggregate's state change plus any requests and
// transitions appended since it was loaded. The state update is guarded
// on loadedState so a concurrent writer surfaces as ErrConflict.
func (r *ProcessRepository) Save(ctx context.Context, p *process.Process, loadedState process.State) error {
	now := time.Now()
	query := `
		UPDATE processes
		SET state = ?, expiry = ?, updated_at = ?
		WHERE id = ? AND state = ?
	`

	result, err := r.getExecutor(ctx).ExecContext(ctx, query,
		p.State.String(),
		nullableTime(p.Expiry),
		now,
		p.ID,
		loadedState.String(),
	)
	if err != nil {
		r.logger.Error("Failed to save process",
			zap.String("public_id", p.PublicID.String()), zap.Error(err))
		return fmt.Errorf("failed to save process: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: process %s no longer in state %s",
			process.ErrConflict, p.PublicID, loadedState)
	}
	p.UpdatedAt = now

	for _, req := range p.Requests {
		if req.ID != 0 {
			continue
		}
		req.ProcessID = p.ID
		if err := r.insertRequest(ctx, req); err != nil {
			return err
		}
	}
	for _, tr := range p.Transitions {
		if tr.ID != 0 {
			continue
		}
		tr.ProcessID = p.ID
		if err := r.insertTransition(ctx, tr); err != nil {
			return err
		}
	}
	return nil
}

// UpdateStateIfInState moves a process between states with a guard on
// the current state. Returns the number of rows changed.
func (r *ProcessRepository) UpdateStateIfInState(ctx context.Context, publicID uuid.UUID, newState, currentState process.State) (int64, error) {
	query := `
		UPDATE processes
		SET state = ?, updated_at = ?
		WHERE public_id = ? AND state = ?
	`

	result, err := r.getExecutor(ctx).ExecContext(ctx, query,
		newState.String(),
		time.Now(),
		publicID.String(),
		currentState.String(),
	)
	if err != nil {
		r.logger.Error("Failed to update process state",
			zap.String("public_id", publicID.String()), zap.Error(err))
		return 0, fmt.Errorf("failed to update process state: %w", err)
	}
	return result.RowsAffected()
}

// FindTransitionsByProcessID returns the audit trail oldest first
func (r *ProcessRepository) FindTransitionsByProcessID(ctx context.Context, publicID uuid.UUID) ([]*process.Transition, error) {
	query := `
		SELECT t.id, t.process_id, t.event, t.actor_id, t.old_state, t.new_state, t.created_at
		FROM process_transitions t
		JOIN processes p ON p.id = t.process_id
		WHERE p.public_id = ?
		ORDER BY t.created_at ASC, t.id ASC
	`

	rows, err := r.getExecutor(ctx).QueryContext(ctx, query, publicID.String())
	if err != nil {
		r.logger.Error("Failed to query transitions",
			zap.String("public_id", publicID.String()), zap.Error(err))
		return nil, fmt.Errorf("failed to query transitions: %w", err)
	}
	defer rows.Close()

	var transitions []*process.Transition
	for rows.Next() {
		tr, err := scanTransition(rows)
		if err != nil {
			return nil, err
		}
		transitions = append(transitions, tr)
	}
	return transitions, rows.Err()
}

// FindPendingExpiring returns overdue pending processes, oldest deadline
// first. Aggregates are returned without children; callers that need the
// full trail reload by public id.
func (r *ProcessRepository) FindPendingExpiring(ctx context.Context, before time.Time, limit int) ([]*process.Process, error) {
	query := `
		SELECT ` + processColumns + `
		FROM processes
		WHERE state = ? AND expiry IS NOT NULL AND expiry < ?
		ORDER BY expiry ASC
		LIMIT ?
	`

	rows, err := r.getExecutor(ctx).QueryContext(ctx, query,
		process.StatePending.String(), before, limit)
	if err != nil {
		r.logger.Error("Failed to query expiring processes", zap.Error(err))
		return nil, fmt.Errorf("failed to query expiring processes: %w", err)
	}
	defer rows.Close()

	var processes []*process.Process
	for rows.Next() {
		p, err := scanProcess(rows)
		if err != nil {
			return nil, err
		}
		processes = append(processes, p)
	}
	return processes, rows.Err()
}

func (r *ProcessRepository) queryOne(ctx context.Context, query string, args ...interface{}) (*process.Process, error) {
	rows, err := r.getExecutor(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to query process", zap.Error(err))
		return nil, fmt.Errorf("failed to query process: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, rows.Err()
	}
	p, err := scanProcess(rows)
	if err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if err := r.loadChildren(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

func (r *ProcessRepository) loadChildren(ctx context.Context, p *process.Process) error {
	if err := r.loadRequests(ctx, p); err != nil {
		return err
	}
	return r.loadTransitions(ctx, p)
}

func (r *ProcessRepository) loadRequests(ctx context.Context, p *process.Process) error {
	query := `
		SELECT id, process_id, actor_id, type, state, channel, created_at
		FROM process_requests
		WHERE process_id = ?
		ORDER BY created_at ASC, id ASC
	`

	rows, err := r.getExecutor(ctx).QueryContext(ctx, query, p.ID)
	if err != nil {
		return fmt.Errorf("failed to query requests: %w", err)
	}
	defer rows.Close()

	var requests []*process.Request
	for rows.Next() {
		var req process.Request
		var actorID string
		if err := rows.Scan(
			&req.ID,
			&req.ProcessID,
			&actorID,
			&req.Type,
			&req.State,
			&req.Channel,
			&req.CreatedAt,
		); err != nil {
			return fmt.Errorf("failed to scan request: %w", err)
		}
		req.ActorID, err = uuid.Parse(actorID)
		if err != nil {
			return fmt.Errorf("invalid actor id %q: %w", actorID, err)
		}
		req.Data = make(map[process.RequestDataName]string)
		req.Stakeholders = make(map[process.StakeholderType]string)
		requests = append(requests, &req)
	}
	if err := rows.Err(); err != nil {
		return err
	}

	for _, req := range requests {
		if err := r.loadRequestData(ctx, req); err != nil {
			return err
		}
		if err := r.loadRequestStakeholders(ctx, req); err != nil {
			return err
		}
	}
	p.Requests = requests
	return nil
}

func (r *ProcessRepository) loadRequestData(ctx context.Context, req *process.Request) error {
	query := `SELECT name, value FROM process_request_data WHERE request_id = ?`

	rows, err := r.getExecutor(ctx).QueryContext(ctx, query, req.ID)
	if err != nil {
		return fmt.Errorf("failed to query request data: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var name, value string
		if err := rows.Scan(&name, &value); err != nil {
			return fmt.Errorf("failed to scan request data: %w", err)
		}
		req.Data[process.RequestDataName(name)] = value
	}
	return rows.Err()
}

func (r *ProcessRepository) loadRequestStakeholders(ctx context.Context, req *process.Request) error {
	query := `SELECT stakeholder_type, user_id FROM process_stakeholders WHERE request_id = ?`

	rows, err := r.getExecutor(ctx).QueryContext(ctx, query, req.ID)
	if err != nil {
		return fmt.Errorf("failed to query stakeholders: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var stType, userID string
		if err := rows.Scan(&stType, &userID); err != nil {
			return fmt.Errorf("failed to scan stakeholder: %w", err)
		}
		req.Stakeholders[process.StakeholderType(stType)] = userID
	}
	return rows.Err()
}

func (r *ProcessRepository) loadTransitions(ctx context.Context, p *process.Process) error {
	query := `
		SELECT id, process_id, event, actor_id, old_state, new_state, created_at
		FROM process_transitions
		WHERE process_id = ?
		ORDER BY created_at ASC, id ASC
	`

	rows, err := r.getExecutor(ctx).QueryContext(ctx, query, p.ID)
	if err != nil {
		return fmt.Errorf("failed to query transitions: %w", err)
	}
	defer rows.Close()

	var transitions []*process.Transition
	for rows.Next() {
		tr, err := scanTransition(rows)
		if err != nil {
			return err
		}
		transitions = append(transitions, tr)
	}
	if err := rows.Err(); err != nil {
		return err
	}
	p.Transitions = transitions
	return nil
}

func (r *ProcessRepository) insertRequest(ctx context.Context, req *process.Request) error {
	query := `
		INSERT INTO process_requests (process_id, actor_id, type, state, channel, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	createdAt := req.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	result, err := r.getExecutor(ctx).ExecContext(ctx, query,
		req.ProcessID,
		req.ActorID.String(),
		string(req.Type),
		req.State.String(),
		string(req.Channel),
		createdAt,
	)
	if err != nil {
		r.logger.Error("Failed to insert request", zap.Error(err))
		return fmt.Errorf("failed to insert request: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	req.ID = id
	req.CreatedAt = createdAt

	for name, value := range req.Data {
		if _, err := r.getExecutor(ctx).ExecContext(ctx,
			`INSERT INTO process_request_data (request_id, name, value) VALUES (?, ?, ?)`,
			id, string(name), value,
		); err != nil {
			return fmt.Errorf("failed to insert request data: %w", err)
		}
	}
	for stType, userID := range req.Stakeholders {
		if _, err := r.getExecutor(ctx).ExecContext(ctx,
			`INSERT INTO process_stakeholders (request_id, stakeholder_type, user_id) VALUES (?, ?, ?)`,
			id, string(stType), userID,
		); err != nil {
			return fmt.Errorf("failed to insert stakeholder: %w", err)
		}
	}
	return nil
}

func (r *ProcessRepository) insertTransition(ctx context.Context, tr *process.Transition) error {
	query := `
		INSERT INTO process_transitions (process_id, event, actor_id, old_state, new_state, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	createdAt := tr.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	result, err := r.getExecutor(ctx).ExecContext(ctx, query,
		tr.ProcessID,
		string(tr.Event),
		tr.ActorID.String(),
		tr.OldState.String(),
		tr.NewState.String(),
		createdAt,
	)
	if err != nil {
		r.logger.Error("Failed to insert transition", zap.Error(err))
		return fmt.Errorf("failed to insert transition: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	tr.ID = id
	tr.CreatedAt = createdAt
	return nil
}

func scanProcess(rows *sql.Rows) (*process.Process, error) {
	var p process.Process
	var publicID string
	var expiry sql.NullTime
	var externalRef sql.NullString

	if err := rows.Scan(
		&p.ID,
		&publicID,
		&p.Type,
		&p.Description,
		&p.State,
		&p.Channel,
		&expiry,
		&externalRef,
		&p.CreatedAt,
		&p.UpdatedAt,
	); err != nil {
		return nil, fmt.Errorf("failed to scan process: %w", err)
	}

	parsed, err := uuid.Parse(publicID)
	if err != nil {
		return nil, fmt.Errorf("invalid public id %q: %w", publicID, err)
	}
	p.PublicID = parsed
	if expiry.Valid {
		p.Expiry = expiry.Time
	}
	if externalRef.Valid {
		p.ExternalReference = externalRef.String
	}
	return &p, nil
}

func scanTransition(rows *sql.Rows) (*process.Transition, error) {
	var tr process.Transition
	var actorID string

	if err := rows.Scan(
		&tr.ID,
		&tr.ProcessID,
		&tr.Event,
		&actorID,
		&tr.OldState,
		&tr.NewState,
		&tr.CreatedAt,
	); err != nil {
		return nil, fmt.Errorf("failed to scan transition: %w", err)
	}

	parsed, err := uuid.Parse(actorID)
	if err != nil {
		return nil, fmt.Errorf("invalid actor id %q: %w", actorID, err)
	}
	tr.ActorID = parsed
	return &tr, nil
}

func nullableTime(t time.Time) interface{} {
	if t.IsZero() {
		return nil
	}
	return t
}

func nullableString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

func prefixColumns(alias, columns string) string {
	parts := strings.Split(columns, ",")
	for i, part := range parts {
		parts[i] = alias + "." + strings.TrimSpace(part)
	}
	return strings.Join(parts, ", ")
}

// executor abstracts over *sql.DB and *sql.Tx
type executor interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// getExecutor returns appropriate executor based on context
func (r *ProcessRepository) getExecutor(ctx context.Context) executor {
	if tx := sqlite.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.db
}

// Verify interface compliance
var _ port.ProcessRepository = (*ProcessRepository)(nil)
