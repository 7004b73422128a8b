package services

import (
	"database/sql"
	"fmt"
	"log"
	"time"

	"github.com/duitku/backend/internal/models"
	"github.com/google/uuid"
)

// CategoryService resolves categories and their kinds. The kind decides the
// sign of every balance effect, so the classifier is consulted inside the
// same unit of work as the effect it gates.
type CategoryService struct {
	db        *sql.DB
	validator *ValidationHelper
}

func NewCategoryService(db *sql.DB) *CategoryService {
	return &CategoryService{
		db:        db,
		validator: NewValidationHelper(),
	}
}

type CreateCategoryInput struct {
	UserID string `validate:"required"`
	Name   string `validate:"required,max=100"`
	Kind   string `validate:"required,oneof=expense income saving"`
}

type UpdateCategoryInput struct {
	Name string `validate:"required,max=100"`
	Kind string `validate:"required,oneof=expense income saving"`
}

// KindOfTx returns the kind of the category within an open unit of work.
// A category that does not exist or belongs to another user rejects the
// originating mutation with ErrInvalidCategory.
func (cs *CategoryService) KindOfTx(tx *sql.Tx, userID, categoryID string) (string, error) {
	var kind string
	err := tx.QueryRow(`
		SELECT kind FROM categories
		WHERE id = $1 AND user_id = $2`, categoryID, userID).Scan(&kind)
	if err != nil {
		if err == sql.ErrNoRows {
			return "", ErrInvalidCategory
		}
		return "", fmt.Errorf("failed to classify category: %w", err)
	}
	return kind, nil
}

// GetOrCreateTx resolves a category by (user, name, kind), creating it when
// missing. Used by the transfer engine for its two fixed categories.
func (cs *CategoryService) GetOrCreateTx(tx *sql.Tx, userID, name, kind string) (string, error) {
	var id string
	err := tx.QueryRow(`
		SELECT id FROM categories
		WHERE user_id = $1 AND name = $2 AND kind = $3`, userID, name, kind).Scan(&id)
	if err == nil {
		return id, nil
	}
	if err != sql.ErrNoRows {
		return "", fmt.Errorf("failed to resolve category: %w", err)
	}

	id = uuid.New().String()
	_, err = tx.Exec(`
		INSERT INTO categories (id, user_id, name, kind, created_at)
		VALUES ($1, $2, $3, $4, $5)`, id, userID, name, kind, time.Now())
	if err != nil {
		return "", fmt.Errorf("failed to create category: %w", err)
	}
	log.Printf("[CATEGORY] Created %q (%s) for user %s", name, kind, userID)
	return id, nil
}

func (cs *CategoryService) CreateCategory(input CreateCategoryInput) (*models.Category, error) {
	if err := cs.validator.ValidateStruct(&input); err != nil {
		return nil, err
	}

	category := &models.Category{
		ID:        uuid.New().String(),
		UserID:    input.UserID,
		Name:      input.Name,
		Kind:      input.Kind,
		CreatedAt: time.Now(),
	}

	_, err := cs.db.Exec(`
		INSERT INTO categories (id, user_id, name, kind, created_at)
		VALUES ($1, $2, $3, $4, $5)`,
		category.ID, category.UserID, category.Name, category.Kind, category.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create category: %w", err)
	}

	return category, nil
}

func (cs *CategoryService) GetCategory(userID, categoryID string) (*models.Category, error) {
	category := &models.Category{}
	err := cs.db.QueryRow(`
		SELECT id, user_id, name, kind, created_at FROM categories
		WHERE id = $1 AND user_id = $2`, categoryID, userID).
		Scan(&category.ID, &category.UserID, &category.Name, &category.Kind, &category.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrCategoryNotFound
		}
		return nil, fmt.Errorf("failed to fetch category: %w", err)
	}
	return category, nil
}

func (cs *CategoryService) ListCategories(userID string) ([]models.Category, error) {
	rows, err := cs.db.Query(`
		SELECT id, user_id, name, kind, created_at FROM categories
		WHERE user_id = $1
		ORDER BY name`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list categories: %w", err)
	}
	defer rows.Close()

	categories := []models.Category{}
	for rows.Next() {
		var c models.Category
		if err := rows.Scan(&c.ID, &c.UserID, &c.Name, &c.Kind, &c.CreatedAt); err != nil {
			return nil, err
		}
		categories = append(categories, c)
	}
	return categories, rows.Err()
}

// UpdateCategory renames a category. Changing the kind is rejected once
// transactions reference the category, because historical effects were
// applied under the old kind and are never recomputed.
func (cs *CategoryService) UpdateCategory(userID, categoryID string, input UpdateCategoryInput) error {
	if err := cs.validator.ValidateStruct(&input); err != nil {
		return err
	}

	tx, err := cs.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var kind string
	err = tx.QueryRow(`
		SELECT kind FROM categories
		WHERE id = $1 AND user_id = $2`, categoryID, userID).Scan(&kind)
	if err != nil {
		if err == sql.ErrNoRows {
			return ErrCategoryNotFound
		}
		return fmt.Errorf("failed to fetch category: %w", err)
	}

	if kind != input.Kind {
		referenced, err := cs.referencedTx(tx, categoryID)
		if err != nil {
			return err
		}
		if referenced {
			return ErrCategoryInUse
		}
	}

	_, err = tx.Exec(`
		UPDATE categories SET name = $1, kind = $2
		WHERE id = $3 AND user_id = $4`, input.Name, input.Kind, categoryID, userID)
	if err != nil {
		return fmt.Errorf("failed to update category: %w", err)
	}

	return tx.Commit()
}

// DeleteCategory removes a category that no transaction references.
func (cs *CategoryService) DeleteCategory(userID, categoryID string) error {
	tx, err := cs.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	referenced, err := cs.referencedTx(tx, categoryID)
	if err != nil {
		return err
	}
	if referenced {
		return ErrCategoryInUse
	}

	result, err := tx.Exec(`
		DELETE FROM categories
		WHERE id = $1 AND user_id = $2`, categoryID, userID)
	if err != nil {
		return fmt.Errorf("failed to delete category: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return ErrCategoryNotFound
	}

	return tx.Commit()
}

func (cs *CategoryService) referencedTx(tx *sql.Tx, categoryID string) (bool, error) {
	var exists bool
	err := tx.QueryRow(`
		SELECT EXISTS(
			SELECT 1 FROM transactions WHERE category_id = $1
		)`, categoryID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check category references: %w", err)
	}
	return exists, nil
}
