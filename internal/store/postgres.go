package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/MikeSquared-Agency/Flexing/internal/scoring"
)

const pgUniqueViolation = "23505"

type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

// --- Candidates ---

const candidateColumns = `id, nip, name, unit, position, year,
	free_of_findings, no_disciplinary_punishment, not_under_disciplinary_review,
	has_innovation, has_award, innovation_evidence, award_evidence,
	skp_last_two_years_good, skp_shows_improvement,
	created_at, updated_at`

func (s *PostgresStore) CreateCandidate(ctx context.Context, c *Candidate) error {
	return s.pool.QueryRow(ctx, `
		INSERT INTO candidates (nip, name, unit, position, year,
			free_of_findings, no_disciplinary_punishment, not_under_disciplinary_review,
			has_innovation, has_award, innovation_evidence, award_evidence,
			skp_last_two_years_good, skp_shows_improvement)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		RETURNING id, created_at, updated_at`,
		c.NIP, c.Name, c.Unit, c.Position, c.Year,
		c.Integrity.FreeOfFindings, c.Integrity.NoDisciplinaryPunishment, c.Integrity.NotUnderDisciplinaryReview,
		c.Achievement.HasInnovation, c.Achievement.HasAward, c.Achievement.InnovationEvidence, c.Achievement.AwardEvidence,
		c.SKP.LastTwoYearsGood, c.SKP.ShowsImprovement,
	).Scan(&c.ID, &c.CreatedAt, &c.UpdatedAt)
}

func (s *PostgresStore) GetCandidate(ctx context.Context, id uuid.UUID) (*Candidate, error) {
	c, err := scanCandidate(s.pool.QueryRow(ctx, `
		SELECT `+candidateColumns+` FROM candidates WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return c, nil
}

func (s *PostgresStore) ListCandidates(ctx context.Context, filter CandidateFilter) ([]*Candidate, error) {
	query := `SELECT ` + candidateColumns + ` FROM candidates WHERE 1=1`
	args := []interface{}{}
	n := 0

	if filter.Year > 0 {
		n++
		query += fmt.Sprintf(" AND year = $%d", n)
		args = append(args, filter.Year)
	}
	if filter.Unit != "" {
		n++
		query += fmt.Sprintf(" AND unit = $%d", n)
		args = append(args, filter.Unit)
	}
	if filter.Search != "" {
		n++
		query += fmt.Sprintf(" AND (name ILIKE $%d OR nip ILIKE $%d)", n, n)
		args = append(args, "%"+filter.Search+"%")
	}

	query += " ORDER BY name ASC"

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	n++
	query += fmt.Sprintf(" LIMIT $%d", n)
	args = append(args, limit)

	if filter.Offset > 0 {
		n++
		query += fmt.Sprintf(" OFFSET $%d", n)
		args = append(args, filter.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var candidates []*Candidate
	for rows.Next() {
		c, err := scanCandidate(rows)
		if err != nil {
			return nil, err
		}
		candidates = append(candidates, c)
	}
	return candidates, rows.Err()
}

func (s *PostgresStore) UpdateCandidate(ctx context.Context, c *Candidate) error {
	return s.pool.QueryRow(ctx, `
		UPDATE candidates SET
			nip = $2, name = $3, unit = $4, position = $5, year = $6,
			free_of_findings = $7, no_disciplinary_punishment = $8, not_under_disciplinary_review = $9,
			has_innovation = $10, has_award = $11, innovation_evidence = $12, award_evidence = $13,
			skp_last_two_years_good = $14, skp_shows_improvement = $15,
			updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at`,
		c.ID, c.NIP, c.Name, c.Unit, c.Position, c.Year,
		c.Integrity.FreeOfFindings, c.Integrity.NoDisciplinaryPunishment, c.Integrity.NotUnderDisciplinaryReview,
		c.Achievement.HasInnovation, c.Achievement.HasAward, c.Achievement.InnovationEvidence, c.Achievement.AwardEvidence,
		c.SKP.LastTwoYearsGood, c.SKP.ShowsImprovement,
	).Scan(&c.UpdatedAt)
}

func scanCandidate(row pgx.Row) (*Candidate, error) {
	c := &Candidate{}
	err := row.Scan(
		&c.ID, &c.NIP, &c.Name, &c.Unit, &c.Position, &c.Year,
		&c.Integrity.FreeOfFindings, &c.Integrity.NoDisciplinaryPunishment, &c.Integrity.NotUnderDisciplinaryReview,
		&c.Achievement.HasInnovation, &c.Achievement.HasAward, &c.Achievement.InnovationEvidence, &c.Achievement.AwardEvidence,
		&c.SKP.LastTwoYearsGood, &c.SKP.ShowsImprovement,
		&c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return c, nil
}

// --- Evaluations ---

const evaluationColumns = `id, candidate_id, evaluator_id, year,
	performance, innovation_impact, achievement, inspirational, communication,
	collaboration, leadership, track_record, integrity,
	notes, final_score, cap_applied, created_at, updated_at`

func (s *PostgresStore) CreateEvaluation(ctx context.Context, e *Evaluation) error {
	err := s.pool.QueryRow(ctx, `
		INSERT INTO evaluations (candidate_id, evaluator_id, year,
			performance, innovation_impact, achievement, inspirational, communication,
			collaboration, leadership, track_record, integrity,
			notes, final_score, cap_applied)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		RETURNING id, created_at, updated_at`,
		e.CandidateID, e.EvaluatorID, e.Year,
		e.Scores.Performance, e.Scores.InnovationImpact, e.Scores.Achievement, e.Scores.Inspirational, e.Scores.Communication,
		e.Scores.Collaboration, e.Scores.Leadership, e.Scores.TrackRecord, e.Scores.Integrity,
		e.Notes, e.StoredScore, capToNullable(e.CapApplied),
	).Scan(&e.ID, &e.CreatedAt, &e.UpdatedAt)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
		return ErrDuplicateEvaluation
	}
	return err
}

func (s *PostgresStore) GetEvaluation(ctx context.Context, id uuid.UUID) (*Evaluation, error) {
	e, err := scanEvaluation(s.pool.QueryRow(ctx, `
		SELECT `+evaluationColumns+` FROM evaluations WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return e, nil
}

func (s *PostgresStore) ListEvaluations(ctx context.Context, filter EvaluationFilter) ([]*Evaluation, error) {
	query := `SELECT ` + evaluationColumns + ` FROM evaluations WHERE 1=1`
	args := []interface{}{}
	n := 0

	if filter.CandidateID != nil {
		n++
		query += fmt.Sprintf(" AND candidate_id = $%d", n)
		args = append(args, *filter.CandidateID)
	}
	if filter.EvaluatorID != "" {
		n++
		query += fmt.Sprintf(" AND evaluator_id = $%d", n)
		args = append(args, filter.EvaluatorID)
	}
	if filter.Year > 0 {
		n++
		query += fmt.Sprintf(" AND year = $%d", n)
		args = append(args, filter.Year)
	}

	query += " ORDER BY created_at DESC"

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	n++
	query += fmt.Sprintf(" LIMIT $%d", n)
	args = append(args, limit)

	if filter.Offset > 0 {
		n++
		query += fmt.Sprintf(" OFFSET $%d", n)
		args = append(args, filter.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var evaluations []*Evaluation
	for rows.Next() {
		e, err := scanEvaluation(rows)
		if err != nil {
			return nil, err
		}
		evaluations = append(evaluations, e)
	}
	return evaluations, rows.Err()
}

func (s *PostgresStore) UpdateEvaluationScore(ctx context.Context, id uuid.UUID, score float64, capApplied scoring.CapReason) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE evaluations SET final_score = $2, cap_applied = $3, updated_at = NOW()
		WHERE id = $1`, id, score, capToNullable(capApplied))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("evaluation %s not found", id)
	}
	return nil
}

func scanEvaluation(row pgx.Row) (*Evaluation, error) {
	e := &Evaluation{}
	var capApplied *string
	err := row.Scan(
		&e.ID, &e.CandidateID, &e.EvaluatorID, &e.Year,
		&e.Scores.Performance, &e.Scores.InnovationImpact, &e.Scores.Achievement, &e.Scores.Inspirational, &e.Scores.Communication,
		&e.Scores.Collaboration, &e.Scores.Leadership, &e.Scores.TrackRecord, &e.Scores.Integrity,
		&e.Notes, &e.StoredScore, &capApplied, &e.CreatedAt, &e.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	e.CapApplied = capFromNullable(capApplied)
	return e, nil
}

// --- Scoring records ---

// Only the seven canonical sub-scores are selected; see scoring.FormScores.Canonical.
const scoringRecordSelect = `
	SELECT e.id, e.candidate_id, e.evaluator_id, e.year,
		COALESCE(c.free_of_findings, false), COALESCE(c.no_disciplinary_punishment, false),
		COALESCE(c.not_under_disciplinary_review, false),
		COALESCE(c.has_innovation, false), COALESCE(c.has_award, false),
		COALESCE(c.innovation_evidence, ''), COALESCE(c.award_evidence, ''),
		COALESCE(c.skp_last_two_years_good, false), COALESCE(c.skp_shows_improvement, false),
		e.performance, e.inspirational, e.communication, e.collaboration,
		e.leadership, e.track_record, e.integrity,
		e.final_score, e.cap_applied
	FROM evaluations e
	JOIN candidates c ON c.id = e.candidate_id`

func (s *PostgresStore) ListScoringRecords(ctx context.Context) ([]*ScoringRecord, error) {
	rows, err := s.pool.Query(ctx, scoringRecordSelect+` ORDER BY e.created_at ASC, e.id ASC`)
	if err != nil {
		return nil, fmt.Errorf("query scoring records: %w", err)
	}
	defer rows.Close()
	return scanScoringRecords(rows)
}

func (s *PostgresStore) GetScoringRecord(ctx context.Context, evaluationID uuid.UUID) (*ScoringRecord, error) {
	r, err := scanScoringRecord(s.pool.QueryRow(ctx, scoringRecordSelect+` WHERE e.id = $1`, evaluationID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return r, nil
}

func (s *PostgresStore) ListHighScoringRecords(ctx context.Context, threshold float64) ([]*ScoringRecord, error) {
	rows, err := s.pool.Query(ctx, scoringRecordSelect+`
		WHERE e.final_score >= $1
		ORDER BY e.final_score DESC, e.id ASC`, threshold)
	if err != nil {
		return nil, fmt.Errorf("query high scoring records: %w", err)
	}
	defer rows.Close()
	return scanScoringRecords(rows)
}

func scanScoringRecords(rows pgx.Rows) ([]*ScoringRecord, error) {
	var records []*ScoringRecord
	for rows.Next() {
		r, err := scanScoringRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

func scanScoringRecord(row pgx.Row) (*ScoringRecord, error) {
	r := &ScoringRecord{}
	var capApplied *string
	err := row.Scan(
		&r.EvaluationID, &r.CandidateID, &r.EvaluatorID, &r.Year,
		&r.Integrity.FreeOfFindings, &r.Integrity.NoDisciplinaryPunishment,
		&r.Integrity.NotUnderDisciplinaryReview,
		&r.Achievement.HasInnovation, &r.Achievement.HasAward,
		&r.Achievement.InnovationEvidence, &r.Achievement.AwardEvidence,
		&r.SKP.LastTwoYearsGood, &r.SKP.ShowsImprovement,
		&r.CoreValues.Performance, &r.CoreValues.Inspirational, &r.CoreValues.Communication,
		&r.CoreValues.Collaboration, &r.CoreValues.Leadership, &r.CoreValues.TrackRecord,
		&r.CoreValues.Integrity,
		&r.StoredScore, &capApplied,
	)
	if err != nil {
		return nil, err
	}
	r.CapApplied = capFromNullable(capApplied)
	return r, nil
}

// --- Recalculation runs ---

func (s *PostgresStore) CreateRecalcRun(ctx context.Context, run *RecalcRun) error {
	changesJSON, _ := json.Marshal(run.Changes)
	errorsJSON, _ := json.Marshal(run.Errors)
	if run.ID == uuid.Nil {
		run.ID = uuid.New()
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO recalc_runs (id, trigger, started_at, finished_at,
			total_examined, total_updated, error_count, changes, errors, archive_key)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		run.ID, run.Trigger, run.StartedAt, run.FinishedAt,
		run.TotalExamined, run.TotalUpdated, len(run.Errors), changesJSON, errorsJSON, run.ArchiveKey,
	)
	return err
}

func (s *PostgresStore) ListRecalcRuns(ctx context.Context, limit int) ([]*RecalcRun, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.pool.Query(ctx, `
		SELECT id, trigger, started_at, finished_at, total_examined, total_updated,
			changes, errors, archive_key
		FROM recalc_runs
		ORDER BY started_at DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []*RecalcRun
	for rows.Next() {
		run := &RecalcRun{}
		var changesJSON, errorsJSON []byte
		if err := rows.Scan(
			&run.ID, &run.Trigger, &run.StartedAt, &run.FinishedAt,
			&run.TotalExamined, &run.TotalUpdated,
			&changesJSON, &errorsJSON, &run.ArchiveKey,
		); err != nil {
			return nil, err
		}
		if changesJSON != nil {
			_ = json.Unmarshal(changesJSON, &run.Changes)
		}
		if errorsJSON != nil {
			_ = json.Unmarshal(errorsJSON, &run.Errors)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// --- Ranking ---

func (s *PostgresStore) GetCandidateAverages(ctx context.Context, year int) ([]*CandidateAverage, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT c.id, c.name, c.unit, e.year, AVG(e.final_score), COUNT(*)
		FROM evaluations e
		JOIN candidates c ON c.id = e.candidate_id
		WHERE e.year = $1 AND e.final_score IS NOT NULL
		GROUP BY c.id, c.name, c.unit, e.year`, year)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var averages []*CandidateAverage
	for rows.Next() {
		a := &CandidateAverage{}
		if err := rows.Scan(&a.CandidateID, &a.Name, &a.Unit, &a.Year, &a.AverageScore, &a.EvaluationCount); err != nil {
			return nil, err
		}
		averages = append(averages, a)
	}
	return averages, rows.Err()
}

func capToNullable(c scoring.CapReason) *string {
	if c == scoring.CapNone {
		return nil
	}
	s := string(c)
	return &s
}

func capFromNullable(s *string) scoring.CapReason {
	if s == nil {
		return scoring.CapNone
	}
	c, err := scoring.ParseCapReason(*s)
	if err != nil {
		return scoring.CapNone
	}
	return c
}
