package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/dukerupert/familyos/internal/model"
)

type BillStore struct {
	db *sql.DB
}

func NewBillStore(db *sql.DB) *BillStore {
	return &BillStore{db: db}
}

const billCols = `id, family_id, name, amount_cents, first_due, rrule, autopay, paid_through, paid_by, created_by, created_at, updated_at`

func scanBill(scanner interface{ Scan(...any) error }) (*model.Bill, error) {
	var b model.Bill
	var paidThrough sql.NullTime
	var paidBy, createdBy sql.NullInt64
	err := scanner.Scan(
		&b.ID, &b.FamilyID, &b.Name, &b.AmountCents, &b.FirstDue, &b.RRule, &b.AutoPay,
		&paidThrough, &paidBy, &createdBy, &b.CreatedAt, &b.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	b.FirstDue = b.FirstDue.UTC()
	if paidThrough.Valid {
		t := paidThrough.Time.UTC()
		b.PaidThrough = &t
	}
	if paidBy.Valid {
		b.PaidBy = &paidBy.Int64
	}
	if createdBy.Valid {
		b.CreatedBy = &createdBy.Int64
	}
	return &b, nil
}

func (s *BillStore) Create(b model.Bill) (*model.Bill, error) {
	now := time.Now().UTC()
	result, err := s.db.Exec(
		`INSERT INTO bills (family_id, name, amount_cents, first_due, rrule, autopay, created_by, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		b.FamilyID, b.Name, b.AmountCents, b.FirstDue.UTC(), b.RRule, b.AutoPay, b.CreatedBy, now, now,
	)
	if err != nil {
		return nil, fmt.Errorf("insert bill: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(b.FamilyID, id)
}

func (s *BillStore) GetByID(familyID string, id int64) (*model.Bill, error) {
	row := s.db.QueryRow(`SELECT `+billCols+` FROM bills WHERE family_id = ? AND id = ?`, familyID, id)
	b, err := scanBill(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get bill: %w", err)
	}
	return b, nil
}

func (s *BillStore) List(familyID string) ([]model.Bill, error) {
	rows, err := s.db.Query(
		`SELECT `+billCols+` FROM bills WHERE family_id = ? ORDER BY first_due ASC, id ASC`,
		familyID,
	)
	if err != nil {
		return nil, fmt.Errorf("list bills: %w", err)
	}
	defer rows.Close()

	var bills []model.Bill
	for rows.Next() {
		b, err := scanBill(rows)
		if err != nil {
			return nil, fmt.Errorf("scan bill: %w", err)
		}
		bills = append(bills, *b)
	}
	return bills, rows.Err()
}

// MarkPaid records that every due date up to and including through is paid.
func (s *BillStore) MarkPaid(familyID string, id int64, through time.Time, by *int64) (*model.Bill, error) {
	result, err := s.db.Exec(
		`UPDATE bills SET paid_through = ?, paid_by = ?, updated_at = ? WHERE family_id = ? AND id = ?`,
		through.UTC(), by, time.Now().UTC(), familyID, id,
	)
	if err != nil {
		return nil, fmt.Errorf("mark bill paid: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return nil, nil
	}
	return s.GetByID(familyID, id)
}

func (s *BillStore) Delete(familyID string, id int64) error {
	_, err := s.db.Exec(`DELETE FROM bills WHERE family_id = ? AND id = ?`, familyID, id)
	if err != nil {
		return fmt.Errorf("delete bill: %w", err)
	}
	return nil
}
