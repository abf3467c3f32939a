// Package mealog persists confirmed meals, daily goals and identification feedback in SQLite.
package mealog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	_ "modernc.org/sqlite"

	"nutriguide"
)

// TimestampLayout is the local, zone-less layout used for meal timestamps.
const TimestampLayout = "2006-01-02T15:04:05"

type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// a single connection serializes writers and keeps ":memory:" databases shared
	db.SetMaxOpenConns(1)

	store := &SQLiteStore{db: db}
	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return store, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) initSchema() error {
	schema := `
    CREATE TABLE IF NOT EXISTS meals (
        id TEXT PRIMARY KEY,
        food_name TEXT NOT NULL,
        timestamp TEXT NOT NULL,
        total_calories REAL NOT NULL,
        total_protein REAL NOT NULL,
        total_fat REAL NOT NULL,
        total_carbs REAL NOT NULL,
        advice TEXT NOT NULL
    );

    CREATE TABLE IF NOT EXISTS meal_items (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        meal_id TEXT NOT NULL,
        item TEXT NOT NULL,
        quantity REAL NOT NULL,
        FOREIGN KEY (meal_id) REFERENCES meals(id) ON DELETE CASCADE
    );

    CREATE TABLE IF NOT EXISTS goals (
        id INTEGER PRIMARY KEY CHECK (id = 1),
        calories REAL NOT NULL,
        protein REAL NOT NULL
    );

    CREATE TABLE IF NOT EXISTS feedback (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        original_guess TEXT NOT NULL,
        user_correction TEXT NOT NULL,
        image_filename TEXT NOT NULL,
        created_at TEXT NOT NULL
    );

    CREATE INDEX IF NOT EXISTS idx_meals_timestamp ON meals(timestamp);
    CREATE INDEX IF NOT EXISTS idx_meal_items_meal_id ON meal_items(meal_id);
    `

	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}

	return nil
}

// SaveMeal stores a meal and its items in one transaction. meal.ID and meal.Timestamp must be set.
func (s *SQLiteStore) SaveMeal(ctx context.Context, meal nutriguide.LoggedMeal) error {
	if meal.ID == "" || meal.Timestamp == "" {
		return errors.New("meal id and timestamp are required")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to start transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
        INSERT INTO meals (id, food_name, timestamp, total_calories, total_protein, total_fat, total_carbs, advice)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?)
    `,
		meal.ID, meal.FoodName, meal.Timestamp, meal.TotalCalories,
		meal.TotalProtein, meal.TotalFat, meal.TotalCarbs, meal.Advice)
	if err != nil {
		return fmt.Errorf("failed to insert meal: %w", err)
	}

	for _, it := range meal.MealItems {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO meal_items (meal_id, item, quantity) VALUES (?, ?, ?)`,
			meal.ID, it.Item, it.Quantity)
		if err != nil {
			return fmt.Errorf("failed to insert meal item: %w", err)
		}
	}

	return tx.Commit()
}

// History returns every logged meal, oldest first.
func (s *SQLiteStore) History(ctx context.Context) ([]nutriguide.LoggedMeal, error) {
	rows, err := s.db.QueryContext(ctx, `
        SELECT id, food_name, timestamp, total_calories, total_protein, total_fat, total_carbs, advice
        FROM meals
        ORDER BY timestamp, rowid
    `)
	if err != nil {
		return nil, fmt.Errorf("failed to query meals: %w", err)
	}

	meals := []nutriguide.LoggedMeal{}
	index := make(map[string]int)
	for rows.Next() {
		var m nutriguide.LoggedMeal
		err := rows.Scan(&m.ID, &m.FoodName, &m.Timestamp, &m.TotalCalories,
			&m.TotalProtein, &m.TotalFat, &m.TotalCarbs, &m.Advice)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan meal: %w", err)
		}
		index[m.ID] = len(meals)
		meals = append(meals, m)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("failed to read meals: %w", err)
	}
	rows.Close()

	// items are read after the meal cursor is closed; the pool holds one connection
	if err := s.loadItems(ctx, meals, index); err != nil {
		return nil, err
	}
	return meals, nil
}

func (s *SQLiteStore) loadItems(ctx context.Context, meals []nutriguide.LoggedMeal, index map[string]int) error {
	rows, err := s.db.QueryContext(ctx, `SELECT meal_id, item, quantity FROM meal_items ORDER BY id`)
	if err != nil {
		return fmt.Errorf("failed to query meal items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var mealID string
		var it nutriguide.MealItem
		if err := rows.Scan(&mealID, &it.Item, &it.Quantity); err != nil {
			return fmt.Errorf("failed to scan meal item: %w", err)
		}
		i, ok := index[mealID]
		if !ok {
			slog.Warn("MEALOG: Orphan meal item", "meal_id", mealID)
			continue
		}
		meals[i].MealItems = append(meals[i].MealItems, it)
	}
	return rows.Err()
}

// Goals returns the stored goals, or zero goals when none were set.
func (s *SQLiteStore) Goals(ctx context.Context) (nutriguide.Goals, error) {
	var g nutriguide.Goals
	err := s.db.QueryRowContext(ctx, `SELECT calories, protein FROM goals WHERE id = 1`).Scan(&g.Calories, &g.Protein)
	if errors.Is(err, sql.ErrNoRows) {
		return nutriguide.Goals{}, nil
	}
	if err != nil {
		return nutriguide.Goals{}, fmt.Errorf("failed to query goals: %w", err)
	}
	return g, nil
}

func (s *SQLiteStore) SetGoals(ctx context.Context, goals nutriguide.Goals) error {
	if goals.Calories < 0 || goals.Protein < 0 {
		return errors.New("goals must not be negative")
	}
	_, err := s.db.ExecContext(ctx, `
        INSERT INTO goals (id, calories, protein) VALUES (1, ?, ?)
        ON CONFLICT(id) DO UPDATE SET calories = excluded.calories, protein = excluded.protein
    `, goals.Calories, goals.Protein)
	if err != nil {
		return fmt.Errorf("failed to save goals: %w", err)
	}
	return nil
}

func (s *SQLiteStore) RecordFeedback(ctx context.Context, fb nutriguide.Feedback) error {
	_, err := s.db.ExecContext(ctx, `
        INSERT INTO feedback (original_guess, user_correction, image_filename, created_at)
        VALUES (?, ?, ?, datetime('now'))
    `, fb.OriginalGuess, fb.UserCorrection, fb.ImageFilename)
	if err != nil {
		return fmt.Errorf("failed to insert feedback: %w", err)
	}
	return nil
}

// Feedback returns recorded corrections, oldest first.
func (s *SQLiteStore) Feedback(ctx context.Context) ([]nutriguide.Feedback, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT original_guess, user_correction, image_filename FROM feedback ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query feedback: %w", err)
	}
	defer rows.Close()

	var out []nutriguide.Feedback
	for rows.Next() {
		var fb nutriguide.Feedback
		if err := rows.Scan(&fb.OriginalGuess, &fb.UserCorrection, &fb.ImageFilename); err != nil {
			return nil, fmt.Errorf("failed to scan feedback: %w", err)
		}
		out = append(out, fb)
	}
	return out, rows.Err()
}
