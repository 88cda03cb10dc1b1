package store

import (
	"database/sql"
	"errors"
	"strings"

	"github.com/mwshark/shop-bot/types"
)

func (s *SQLiteStore) GetAllPlans() ([]*types.Plan, error) {
	ctx, cancel := opCtx()
	defer cancel()
	rows, err := s.db.QueryContext(ctx,
		`SELECT plan_id, plan_name, days, price FROM plans ORDER BY days`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var plans []*types.Plan
	for rows.Next() {
		var p types.Plan
		if err := rows.Scan(&p.ID, &p.Name, &p.Days, &p.Price); err != nil {
			return nil, err
		}
		plans = append(plans, &p)
	}
	return plans, rows.Err()
}

func (s *SQLiteStore) GetPlanByID(planID int64) (*types.Plan, error) {
	ctx, cancel := opCtx()
	defer cancel()
	var p types.Plan
	err := s.db.QueryRowContext(ctx,
		`SELECT plan_id, plan_name, days, price FROM plans WHERE plan_id = ?`,
		planID).Scan(&p.ID, &p.Name, &p.Days, &p.Price)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *SQLiteStore) CreatePlan(name string, days int, price float64) (int64, error) {
	ctx, cancel := opCtx()
	defer cancel()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO plans (plan_name, days, price) VALUES (?, ?, ?)`,
		strings.TrimSpace(name), days, price)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (s *SQLiteStore) DeletePlan(planID int64) error {
	ctx, cancel := opCtx()
	defer cancel()
	_, err := s.db.ExecContext(ctx, `DELETE FROM plans WHERE plan_id = ?`, planID)
	return err
}
