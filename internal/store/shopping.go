package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/dukerupert/familyos/internal/model"
)

type ShoppingStore struct {
	db *sql.DB
}

func NewShoppingStore(db *sql.DB) *ShoppingStore {
	return &ShoppingStore{db: db}
}

const shoppingCols = `id, family_id, name, quantity, category, checked, checked_by, checked_at, added_by, created_at`

func scanShoppingItem(scanner interface{ Scan(...any) error }) (*model.ShoppingItem, error) {
	var item model.ShoppingItem
	var checkedBy, addedBy sql.NullInt64
	var checkedAt sql.NullTime
	err := scanner.Scan(
		&item.ID, &item.FamilyID, &item.Name, &item.Quantity, &item.Category,
		&item.Checked, &checkedBy, &checkedAt, &addedBy, &item.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if checkedBy.Valid {
		item.CheckedBy = &checkedBy.Int64
	}
	if checkedAt.Valid {
		item.CheckedAt = &checkedAt.Time
	}
	if addedBy.Valid {
		item.AddedBy = &addedBy.Int64
	}
	return &item, nil
}

func (s *ShoppingStore) Create(familyID, name, quantity, category string, addedBy *int64) (*model.ShoppingItem, error) {
	result, err := s.db.Exec(
		`INSERT INTO shopping_items (family_id, name, quantity, category, added_by, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		familyID, name, quantity, category, addedBy, time.Now().UTC(),
	)
	if err != nil {
		return nil, fmt.Errorf("insert shopping item: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(familyID, id)
}

func (s *ShoppingStore) GetByID(familyID string, id int64) (*model.ShoppingItem, error) {
	row := s.db.QueryRow(`SELECT `+shoppingCols+` FROM shopping_items WHERE family_id = ? AND id = ?`, familyID, id)
	item, err := scanShoppingItem(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get shopping item: %w", err)
	}
	return item, nil
}

func (s *ShoppingStore) List(familyID string) ([]model.ShoppingItem, error) {
	rows, err := s.db.Query(
		`SELECT `+shoppingCols+` FROM shopping_items WHERE family_id = ? ORDER BY created_at ASC, id ASC`,
		familyID,
	)
	if err != nil {
		return nil, fmt.Errorf("list shopping items: %w", err)
	}
	defer rows.Close()

	var items []model.ShoppingItem
	for rows.Next() {
		item, err := scanShoppingItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scan shopping item: %w", err)
		}
		items = append(items, *item)
	}
	return items, rows.Err()
}

// ToggleChecked flips the checked state, recording who checked it.
func (s *ShoppingStore) ToggleChecked(familyID string, id int64, by *int64) (*model.ShoppingItem, error) {
	item, err := s.GetByID(familyID, id)
	if err != nil || item == nil {
		return item, err
	}

	if item.Checked {
		_, err = s.db.Exec(
			`UPDATE shopping_items SET checked = 0, checked_by = NULL, checked_at = NULL WHERE id = ?`, id,
		)
	} else {
		_, err = s.db.Exec(
			`UPDATE shopping_items SET checked = 1, checked_by = ?, checked_at = ? WHERE id = ?`,
			by, time.Now().UTC(), id,
		)
	}
	if err != nil {
		return nil, fmt.Errorf("toggle checked: %w", err)
	}
	return s.GetByID(familyID, id)
}

func (s *ShoppingStore) Delete(familyID string, id int64) error {
	_, err := s.db.Exec(`DELETE FROM shopping_items WHERE family_id = ? AND id = ?`, familyID, id)
	if err != nil {
		return fmt.Errorf("delete shopping item: %w", err)
	}
	return nil
}

// ClearChecked removes every checked item and returns how many were removed.
func (s *ShoppingStore) ClearChecked(familyID string) (int64, error) {
	result, err := s.db.Exec(`DELETE FROM shopping_items WHERE family_id = ? AND checked = 1`, familyID)
	if err != nil {
		return 0, fmt.Errorf("clear checked: %w", err)
	}
	return result.RowsAffected()
}
