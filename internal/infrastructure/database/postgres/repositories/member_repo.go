// Package repositories holds the PostgreSQL implementations of the domain
// repository contracts.
package repositories

import (
	"context"
	stderrors "errors"
	"sort"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/turtacn/TripMatch/internal/domain/cluster"
	"github.com/turtacn/TripMatch/internal/domain/preference"
	"github.com/turtacn/TripMatch/internal/infrastructure/database/postgres"
	"github.com/turtacn/TripMatch/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/TripMatch/pkg/errors"
)

const (
	defaultPageSize = 100
	maxPageSize     = 1000

	uniqueViolation = "23505"
)

var memberColumns = []string{"record_id", "run_id", "label", "destination", "spontaneous", "departure_timing", "assigned_at"}

// MemberRepository is the PostgreSQL cluster.MemberRepository.
type MemberRepository struct {
	db     postgres.DBTX
	logger logging.Logger
}

var _ cluster.MemberRepository = (*MemberRepository)(nil)

// NewMemberRepository returns a repository on conn's pool.
func NewMemberRepository(conn *postgres.Connection, logger logging.Logger) *MemberRepository {
	return NewMemberRepositoryWithDB(conn.DB(), logger)
}

// NewMemberRepositoryWithDB returns a repository on db.
func NewMemberRepositoryWithDB(db postgres.DBTX, logger logging.Logger) *MemberRepository {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &MemberRepository{db: db, logger: logger.Named("member_repo")}
}

// ─────────────────────────────────────────────────────────────────────────────
// Runs
// ─────────────────────────────────────────────────────────────────────────────

// SaveRun inserts run, clears group_members and bulk-loads members with COPY,
// in one transaction.
func (r *MemberRepository) SaveRun(ctx context.Context, run cluster.TrainingRun, members []cluster.Member) error {
	start := time.Now()
	err := postgres.WithTransaction(ctx, r.db, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO training_runs (run_id, trained_at, group_count, record_count, seed, silhouette, config)
			VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			run.RunID, run.TrainedAt, run.GroupCount, run.RecordCount, run.Seed, run.Silhouette, []byte(run.Config))
		if err != nil {
			var pgErr *pgconn.PgError
			if stderrors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
				return errors.Newf(errors.ErrCodeConflict, "training run %s already exists", run.RunID)
			}
			return errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to insert training run")
		}

		if _, err := tx.Exec(ctx, `DELETE FROM group_members`); err != nil {
			return errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to clear group members")
		}

		n, err := tx.CopyFrom(ctx, pgx.Identifier{"group_members"}, memberColumns,
			pgx.CopyFromSlice(len(members), func(i int) ([]any, error) {
				return memberRow(members[i]), nil
			}))
		if err != nil {
			return errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to copy group members")
		}
		if int(n) != len(members) {
			return errors.Newf(errors.ErrCodeDatabaseError, "copied %d of %d group members", n, len(members))
		}
		return nil
	})
	if err != nil {
		r.logger.Error("SaveRun failed", logging.String("run_id", run.RunID), logging.Err(err))
		return err
	}
	r.logger.Info("training run persisted",
		logging.String("run_id", run.RunID),
		logging.Int("members", len(members)),
		logging.Duration("took", time.Since(start)))
	return nil
}

// LatestRun returns the most recently trained run.
func (r *MemberRepository) LatestRun(ctx context.Context) (*cluster.TrainingRun, error) {
	var (
		run          cluster.TrainingRun
		groups, recs int64
		config       []byte
	)
	err := r.db.QueryRow(ctx, `
		SELECT run_id, trained_at, group_count, record_count, seed, silhouette, config
		FROM training_runs ORDER BY trained_at DESC LIMIT 1`).
		Scan(&run.RunID, &run.TrainedAt, &groups, &recs, &run.Seed, &run.Silhouette, &config)
	if err != nil {
		if stderrors.Is(err, pgx.ErrNoRows) {
			return nil, errors.New(errors.ErrCodeNotFound, "no training run recorded")
		}
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to query latest run")
	}
	run.GroupCount, run.RecordCount = int(groups), int(recs)
	run.Config = config
	return &run, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Members
// ─────────────────────────────────────────────────────────────────────────────

// UpsertMember inserts or replaces the assignment of m.RecordID.
func (r *MemberRepository) UpsertMember(ctx context.Context, m cluster.Member) error {
	if m.RecordID == "" {
		return errors.New(errors.ErrCodeValidation, "record id is required")
	}
	_, err := r.db.Exec(ctx, `
		INSERT INTO group_members (record_id, run_id, label, destination, spontaneous, departure_timing, assigned_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (record_id) DO UPDATE SET
			run_id = EXCLUDED.run_id,
			label = EXCLUDED.label,
			destination = EXCLUDED.destination,
			spontaneous = EXCLUDED.spontaneous,
			departure_timing = EXCLUDED.departure_timing,
			assigned_at = EXCLUDED.assigned_at`,
		memberRow(m)...)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to upsert member").WithDetail(m.RecordID)
	}
	return nil
}

// GetMember returns the assignment of recordID.
func (r *MemberRepository) GetMember(ctx context.Context, recordID string) (*cluster.Member, error) {
	m, err := scanMember(r.db.QueryRow(ctx, `
		SELECT record_id, run_id, label, destination, spontaneous, departure_timing, assigned_at
		FROM group_members WHERE record_id = $1`, recordID))
	if err != nil {
		if stderrors.Is(err, pgx.ErrNoRows) {
			return nil, errors.Newf(errors.ErrCodeMemberNotFound, "member %s not found", recordID)
		}
		return nil, err
	}
	return m, nil
}

// ListGroupMembers pages through a group ordered by record id. The excluded
// record is filtered in the query so offsets stay stable across pages.
// limit <= 0 selects the default page size.
func (r *MemberRepository) ListGroupMembers(ctx context.Context, label cluster.Label, excludeRecordID string, limit, offset int) ([]cluster.Member, error) {
	if limit <= 0 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	if offset < 0 {
		offset = 0
	}
	rows, err := r.db.Query(ctx, `
		SELECT record_id, run_id, label, destination, spontaneous, departure_timing, assigned_at
		FROM group_members WHERE label = $1 AND record_id <> $2
		ORDER BY record_id LIMIT $3 OFFSET $4`, string(label), excludeRecordID, limit, offset)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to list group members")
	}
	defer rows.Close()

	var out []cluster.Member
	for rows.Next() {
		m, err := scanMember(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *m)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to iterate group members")
	}
	return out, nil
}

// CountByGroup returns group sizes in label order.
func (r *MemberRepository) CountByGroup(ctx context.Context) ([]cluster.GroupSize, error) {
	rows, err := r.db.Query(ctx, `SELECT label, COUNT(*) FROM group_members GROUP BY label`)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to count group members")
	}
	defer rows.Close()

	var out []cluster.GroupSize
	for rows.Next() {
		var (
			label string
			n     int64
		)
		if err := rows.Scan(&label, &n); err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to scan group count")
		}
		out = append(out, cluster.GroupSize{Label: cluster.Label(label), Size: int(n)})
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to iterate group counts")
	}
	sort.Slice(out, func(i, j int) bool { return cluster.Less(out[i].Label, out[j].Label) })
	return out, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Row mapping
// ─────────────────────────────────────────────────────────────────────────────

func memberRow(m cluster.Member) []any {
	return []any{
		m.RecordID, m.RunID, string(m.Label),
		m.Vector.Destination(), m.Vector.Spontaneous(), m.Vector.DepartureTiming(),
		m.AssignedAt,
	}
}

func scanMember(row pgx.Row) (*cluster.Member, error) {
	var (
		m                   cluster.Member
		label               string
		dest, spont, depart string
	)
	if err := row.Scan(&m.RecordID, &m.RunID, &label, &dest, &spont, &depart, &m.AssignedAt); err != nil {
		if stderrors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to scan member")
	}
	v, err := preference.Of(dest, spont, depart)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "stored member has an invalid vector").WithDetail(m.RecordID)
	}
	m.Label = cluster.Label(label)
	m.Vector = v
	return &m, nil
}

//Personal.AI order the ending
