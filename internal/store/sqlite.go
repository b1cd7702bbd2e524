package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

type SQLiteStore struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS tests (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    status TEXT NOT NULL DEFAULT 'draft',
    element_selector TEXT NOT NULL,
    goal_type TEXT NOT NULL,
    goal_selector TEXT NOT NULL DEFAULT '',
    min_sample_size INTEGER NOT NULL DEFAULT 100,
    confidence_level REAL NOT NULL DEFAULT 0.95,
    winning_variant_id TEXT,
    created_at INTEGER NOT NULL,
    updated_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_tests_status ON tests(status);

CREATE TABLE IF NOT EXISTS variants (
    id TEXT PRIMARY KEY,
    test_id TEXT NOT NULL,
    name TEXT NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    is_control INTEGER NOT NULL DEFAULT 0,
    weight REAL NOT NULL DEFAULT 1,
    changes TEXT,
    position INTEGER NOT NULL DEFAULT 0,
    created_at INTEGER NOT NULL,
    FOREIGN KEY (test_id) REFERENCES tests(id)
);

CREATE INDEX IF NOT EXISTS idx_variants_test ON variants(test_id);

CREATE TABLE IF NOT EXISTS impressions (
    id TEXT PRIMARY KEY,
    test_id TEXT NOT NULL,
    variant_id TEXT NOT NULL,
    created_at INTEGER NOT NULL,
    FOREIGN KEY (test_id) REFERENCES tests(id)
);

CREATE INDEX IF NOT EXISTS idx_impressions_test_variant ON impressions(test_id, variant_id);

CREATE TABLE IF NOT EXISTS conversions (
    id TEXT PRIMARY KEY,
    test_id TEXT NOT NULL,
    variant_id TEXT NOT NULL,
    created_at INTEGER NOT NULL,
    FOREIGN KEY (test_id) REFERENCES tests(id)
);

CREATE INDEX IF NOT EXISTS idx_conversions_test_variant ON conversions(test_id, variant_id);
`

func Open(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Enable WAL mode
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	// Apply schema
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) CreateTest(ctx context.Context, def *TestDefinition) (*Test, error) {
	if err := ValidateDefinition(def); err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().Unix()
	test := &Test{
		ID:              uuid.NewString(),
		Name:            def.Name,
		Description:     def.Description,
		Status:          StatusDraft,
		ElementSelector: def.ElementSelector,
		GoalType:        def.GoalType,
		GoalSelector:    def.GoalSelector,
		MinSampleSize:   def.MinSampleSize,
		ConfidenceLevel: def.ConfidenceLevel,
		CreatedAt:       time.Unix(now, 0),
		UpdatedAt:       time.Unix(now, 0),
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO tests (id, name, description, status, element_selector, goal_type, goal_selector,
		                    min_sample_size, confidence_level, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		test.ID, test.Name, test.Description, string(test.Status), test.ElementSelector,
		string(test.GoalType), test.GoalSelector, test.MinSampleSize, test.ConfidenceLevel, now, now,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert test: %w", err)
	}

	for i, vd := range def.Variants {
		v := Variant{
			ID:          uuid.NewString(),
			TestID:      test.ID,
			Name:        vd.Name,
			Description: vd.Description,
			IsControl:   vd.IsControl,
			Weight:      vd.Weight,
			Changes:     vd.Changes,
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO variants (id, test_id, name, description, is_control, weight, changes, position, created_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			v.ID, v.TestID, v.Name, v.Description, boolToInt(v.IsControl), v.Weight, nullableJSON(v.Changes), i, now,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to insert variant: %w", err)
		}
		test.Variants = append(test.Variants, v)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit test: %w", err)
	}

	return test, nil
}

func (s *SQLiteStore) GetTest(ctx context.Context, id string) (*Test, error) {
	test, err := scanTest(s.db.QueryRowContext(ctx,
		`SELECT id, name, description, status, element_selector, goal_type, goal_selector,
		        min_sample_size, confidence_level, winning_variant_id, created_at, updated_at
		 FROM tests WHERE id = ?`, id,
	))
	if err != nil {
		return nil, err
	}

	if err := s.loadVariants(ctx, test); err != nil {
		return nil, err
	}

	return test, nil
}

func (s *SQLiteStore) ListTests(ctx context.Context) ([]*Test, error) {
	return s.listTests(ctx,
		`SELECT id, name, description, status, element_selector, goal_type, goal_selector,
		        min_sample_size, confidence_level, winning_variant_id, created_at, updated_at
		 FROM tests ORDER BY created_at DESC`)
}

func (s *SQLiteStore) ListActiveTests(ctx context.Context) ([]*Test, error) {
	return s.listTests(ctx,
		`SELECT id, name, description, status, element_selector, goal_type, goal_selector,
		        min_sample_size, confidence_level, winning_variant_id, created_at, updated_at
		 FROM tests WHERE status = 'running' ORDER BY created_at DESC`)
}

func (s *SQLiteStore) listTests(ctx context.Context, query string) ([]*Test, error) {
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list tests: %w", err)
	}
	defer rows.Close()

	var tests []*Test
	for rows.Next() {
		test, err := scanTest(rows)
		if err != nil {
			return nil, err
		}
		tests = append(tests, test)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate tests: %w", err)
	}

	for _, test := range tests {
		if err := s.loadVariants(ctx, test); err != nil {
			return nil, err
		}
	}

	return tests, nil
}

func (s *SQLiteStore) UpdateTest(ctx context.Context, id string, update *TestUpdate) (*Test, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().Unix()

	sets := []string{"updated_at = ?"}
	args := []any{now}
	if update.Name != nil {
		sets = append(sets, "name = ?")
		args = append(args, *update.Name)
	}
	if update.Description != nil {
		sets = append(sets, "description = ?")
		args = append(args, *update.Description)
	}
	if update.Status != nil {
		switch *update.Status {
		case StatusDraft, StatusRunning, StatusCompleted, StatusStopped:
		default:
			return nil, &ValidationError{Field: "status", Message: "unknown status"}
		}
		sets = append(sets, "status = ?")
		args = append(args, string(*update.Status))
	}
	if update.ElementSelector != nil {
		sets = append(sets, "element_selector = ?")
		args = append(args, *update.ElementSelector)
	}
	if update.GoalType != nil {
		sets = append(sets, "goal_type = ?")
		args = append(args, string(*update.GoalType))
	}
	if update.GoalSelector != nil {
		sets = append(sets, "goal_selector = ?")
		args = append(args, *update.GoalSelector)
	}
	if update.MinSampleSize != nil {
		if *update.MinSampleSize < 1 {
			return nil, &ValidationError{Field: "minSampleSize", Message: "must be at least 1"}
		}
		sets = append(sets, "min_sample_size = ?")
		args = append(args, *update.MinSampleSize)
	}
	if update.ConfidenceLevel != nil {
		if *update.ConfidenceLevel <= 0 || *update.ConfidenceLevel >= 1 {
			return nil, &ValidationError{Field: "confidenceLevel", Message: "must be between 0 and 1 exclusive"}
		}
		sets = append(sets, "confidence_level = ?")
		args = append(args, *update.ConfidenceLevel)
	}

	args = append(args, id)
	result, err := tx.ExecContext(ctx,
		fmt.Sprintf("UPDATE tests SET %s WHERE id = ?", strings.Join(sets, ", ")), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to update test: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return nil, ErrNotFound
	}

	// Upsert variants by id. A definition without an id inserts a new
	// variant; with an id it replaces every field of the stored row, so
	// callers must send the full definition. Nothing is ever deleted here.
	for _, vd := range update.Variants {
		if vd.Weight == 0 {
			vd.Weight = DefaultWeight
		}
		if vd.Weight < 0 {
			return nil, &ValidationError{Field: "variants.weight", Message: "must be positive"}
		}
		if vd.Name == "" {
			return nil, &ValidationError{Field: "variants.name", Message: "required"}
		}
		if vd.ID == "" {
			_, err = tx.ExecContext(ctx,
				`INSERT INTO variants (id, test_id, name, description, is_control, weight, changes, position, created_at)
				 VALUES (?, ?, ?, ?, ?, ?, ?,
				         (SELECT COALESCE(MAX(position), -1) + 1 FROM variants WHERE test_id = ?), ?)`,
				uuid.NewString(), id, vd.Name, vd.Description, boolToInt(vd.IsControl), vd.Weight, nullableJSON(vd.Changes), id, now,
			)
			if err != nil {
				return nil, fmt.Errorf("failed to insert variant: %w", err)
			}
			continue
		}

		result, err := tx.ExecContext(ctx,
			`UPDATE variants SET name = ?, description = ?, is_control = ?, weight = ?, changes = ?
			 WHERE id = ? AND test_id = ?`,
			vd.Name, vd.Description, boolToInt(vd.IsControl), vd.Weight, nullableJSON(vd.Changes), vd.ID, id,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to update variant: %w", err)
		}
		rowsAffected, err := result.RowsAffected()
		if err != nil {
			return nil, fmt.Errorf("failed to get rows affected: %w", err)
		}
		if rowsAffected == 0 {
			return nil, ErrNotFound
		}
	}

	// The updated variant set must still have exactly one control.
	var controls int
	err = tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM variants WHERE test_id = ? AND is_control = 1`, id,
	).Scan(&controls)
	if err != nil {
		return nil, fmt.Errorf("failed to count control variants: %w", err)
	}
	if controls != 1 {
		return nil, &ValidationError{Field: "variants", Message: "test must have exactly one control variant"}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit update: %w", err)
	}

	return s.GetTest(ctx, id)
}

func (s *SQLiteStore) SetWinner(ctx context.Context, id, winningVariantID string) error {
	now := time.Now().Unix()
	result, err := s.db.ExecContext(ctx,
		`UPDATE tests SET status = 'completed', winning_variant_id = ?, updated_at = ? WHERE id = ?`,
		winningVariantID, now, id,
	)
	if err != nil {
		return fmt.Errorf("failed to set winner: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteTest removes the test, its variants, and every impression and
// conversion in one transaction. A partial cascade must never survive.
func (s *SQLiteStore) DeleteTest(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, table := range []string{"conversions", "impressions", "variants"} {
		if _, err := tx.ExecContext(ctx, fmt.Sprintf("DELETE FROM %s WHERE test_id = ?", table), id); err != nil {
			return fmt.Errorf("failed to delete %s: %w", table, err)
		}
	}

	result, err := tx.ExecContext(ctx, `DELETE FROM tests WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete test: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit delete: %w", err)
	}
	return nil
}

func (s *SQLiteStore) RecordImpression(ctx context.Context, testID, variantID string) error {
	return s.recordEvent(ctx, "impressions", testID, variantID)
}

func (s *SQLiteStore) RecordConversion(ctx context.Context, testID, variantID string) error {
	return s.recordEvent(ctx, "conversions", testID, variantID)
}

func (s *SQLiteStore) recordEvent(ctx context.Context, table, testID, variantID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var status string
	err = tx.QueryRowContext(ctx,
		`SELECT t.status FROM tests t JOIN variants v ON v.test_id = t.id
		 WHERE t.id = ? AND v.id = ?`, testID, variantID,
	).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to look up variant: %w", err)
	}

	now := time.Now().Unix()
	_, err = tx.ExecContext(ctx,
		fmt.Sprintf(`INSERT INTO %s (id, test_id, variant_id, created_at) VALUES (?, ?, ?, ?)`, table),
		uuid.NewString(), testID, variantID, now,
	)
	if err != nil {
		return fmt.Errorf("failed to record event: %w", err)
	}

	// First traffic promotes a draft test to running.
	if table == "impressions" && TestStatus(status) == StatusDraft {
		_, err = tx.ExecContext(ctx,
			`UPDATE tests SET status = 'running', updated_at = ? WHERE id = ?`, now, testID)
		if err != nil {
			return fmt.Errorf("failed to start test: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit event: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTest(row rowScanner) (*Test, error) {
	var test Test
	var status, goalType string
	var winner sql.NullString
	var createdAt, updatedAt int64

	err := row.Scan(&test.ID, &test.Name, &test.Description, &status, &test.ElementSelector,
		&goalType, &test.GoalSelector, &test.MinSampleSize, &test.ConfidenceLevel,
		&winner, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan test: %w", err)
	}

	test.Status = TestStatus(status)
	test.GoalType = GoalType(goalType)
	if winner.Valid {
		test.WinningVariantID = winner.String
	}
	test.CreatedAt = time.Unix(createdAt, 0)
	test.UpdatedAt = time.Unix(updatedAt, 0)

	return &test, nil
}

// loadVariants attaches the test's variants with impression and conversion
// counts computed from the event log. Each count comes from a single
// aggregation query so a concurrent write is either fully visible or not at
// all for a given variant.
func (s *SQLiteStore) loadVariants(ctx context.Context, test *Test) error {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, test_id, name, description, is_control, weight, changes
		 FROM variants WHERE test_id = ? ORDER BY position, id`, test.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to load variants: %w", err)
	}
	defer rows.Close()

	var variants []Variant
	for rows.Next() {
		var v Variant
		var isControl int
		var changes sql.NullString
		if err := rows.Scan(&v.ID, &v.TestID, &v.Name, &v.Description, &isControl, &v.Weight, &changes); err != nil {
			return fmt.Errorf("failed to scan variant: %w", err)
		}
		v.IsControl = isControl != 0
		if changes.Valid && changes.String != "" {
			v.Changes = json.RawMessage(changes.String)
		}
		variants = append(variants, v)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("failed to iterate variants: %w", err)
	}

	impressions, err := s.countEvents(ctx, "impressions", test.ID)
	if err != nil {
		return err
	}
	conversions, err := s.countEvents(ctx, "conversions", test.ID)
	if err != nil {
		return err
	}

	for i := range variants {
		v := &variants[i]
		v.Impressions = impressions[v.ID]
		v.Conversions = conversions[v.ID]
		if v.Impressions > 0 {
			v.ConversionRate = float64(v.Conversions) / float64(v.Impressions)
		}
	}

	test.Variants = variants
	return nil
}

func (s *SQLiteStore) countEvents(ctx context.Context, table, testID string) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx,
		fmt.Sprintf(`SELECT variant_id, COUNT(*) FROM %s WHERE test_id = ? GROUP BY variant_id`, table),
		testID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to count %s: %w", table, err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var variantID string
		var n int
		if err := rows.Scan(&variantID, &n); err != nil {
			return nil, fmt.Errorf("failed to scan count: %w", err)
		}
		counts[variantID] = n
	}
	return counts, rows.Err()
}

// DB returns the underlying database connection for health checks
func (s *SQLiteStore) DB() *sql.DB {
	return s.db
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullableJSON(b json.RawMessage) sql.NullString {
	if len(b) == 0 {
		return sql.NullString{}
	}
	return sql.NullString{String: string(b), Valid: true}
}
