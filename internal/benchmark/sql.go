package benchmark

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// sqlStore holds the queries shared by the SQLite and Postgres stores. Cases
// are kept as a JSON document per run; timestamps as Unix nanoseconds.
type sqlStore struct {
	db *sql.DB
	// bind rewrites "?" placeholders for the driver
	bind func(query string) string
}

func (s *sqlStore) Close() error {
	return s.db.Close()
}

func (s *sqlStore) Save(run *Run) error {
	cases, err := json.Marshal(run.Cases)
	if err != nil {
		return fmt.Errorf("failed to marshal cases: %w", err)
	}

	query := s.bind(`INSERT INTO sweep_runs (variant, commit_hash, created_at_ns, cases) VALUES (?, ?, ?, ?) RETURNING id`)
	if err := s.db.QueryRow(query, run.Variant, run.Commit, run.Timestamp.UnixNano(), string(cases)).Scan(&run.ID); err != nil {
		return fmt.Errorf("failed to save run: %w", err)
	}
	return nil
}

func (s *sqlStore) LoadAll() ([]Run, error) {
	return s.query(`SELECT id, variant, commit_hash, created_at_ns, cases FROM sweep_runs ORDER BY created_at_ns ASC, id ASC`)
}

func (s *sqlStore) LoadLatest(variant string) (*Run, error) {
	var runs []Run
	var err error
	if variant == "" {
		runs, err = s.query(`SELECT id, variant, commit_hash, created_at_ns, cases FROM sweep_runs ORDER BY created_at_ns DESC, id DESC LIMIT 1`)
	} else {
		runs, err = s.query(`SELECT id, variant, commit_hash, created_at_ns, cases FROM sweep_runs WHERE UPPER(variant) = ? ORDER BY created_at_ns DESC, id DESC LIMIT 1`,
			strings.ToUpper(variant))
	}
	if err != nil {
		return nil, err
	}
	if len(runs) == 0 {
		return nil, nil
	}
	return &runs[0], nil
}

func (s *sqlStore) query(query string, args ...any) ([]Run, error) {
	rows, err := s.db.Query(s.bind(query), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	runs := []Run{}
	for rows.Next() {
		var (
			r     Run
			ns    int64
			cases string
		)
		if err := rows.Scan(&r.ID, &r.Variant, &r.Commit, &ns, &cases); err != nil {
			return nil, err
		}
		r.Timestamp = time.Unix(0, ns)
		if err := json.Unmarshal([]byte(cases), &r.Cases); err != nil {
			return nil, fmt.Errorf("run %d: failed to unmarshal cases: %w", r.ID, err)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

func questionMarks(query string) string {
	return query
}

// dollarPlaceholders rewrites ? to $1, $2, ... for lib/pq.
func dollarPlaceholders(query string) string {
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			fmt.Fprintf(&b, "$%d", n)
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
