package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"fleetclaim/internal/types"
)

type Store struct {
	db *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

// Append writes one entry, filling in the id and timestamp when missing.
func (s *Store) Append(ctx context.Context, e Entry) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	if e.OccurredAt.IsZero() {
		e.OccurredAt = time.Now().UTC()
	}
	_, err := s.db.Exec(ctx, `
        INSERT INTO assignment_audit (
            id, occurred_at, operation, order_id, assignment_id,
            operator_id, driver_id, car_id, outcome, detail
        ) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		e.ID, e.OccurredAt, string(e.Operation),
		string(e.OrderID), string(e.AssignmentID), string(e.OperatorID),
		string(e.DriverID), string(e.CarID), e.Outcome, e.Detail,
	)
	return err
}

// ByOrder returns entries for an order, oldest first.
func (s *Store) ByOrder(ctx context.Context, orderID types.ID, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.Query(ctx, `
        SELECT id, occurred_at, operation, order_id, assignment_id,
               operator_id, driver_id, car_id, outcome, detail
        FROM assignment_audit
        WHERE order_id = $1
        ORDER BY occurred_at ASC
        LIMIT $2`, string(orderID), limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		var op, orderIDCol, asgID, operatorID, driverID, carID string
		if err := rows.Scan(&e.ID, &e.OccurredAt, &op, &orderIDCol, &asgID, &operatorID, &driverID, &carID, &e.Outcome, &e.Detail); err != nil {
			return nil, err
		}
		e.Operation = Operation(op)
		e.OrderID = types.ID(orderIDCol)
		e.AssignmentID = types.ID(asgID)
		e.OperatorID = types.ID(operatorID)
		e.DriverID = types.ID(driverID)
		e.CarID = types.ID(carID)
		out = append(out, e)
	}
	return out, rows.Err()
}
