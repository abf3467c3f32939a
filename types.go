package nutriguide

import (
	"context"
	"errors"
	"net/http"
)

// DefaultMealName is used when a meal is logged without any identification hint.
const DefaultMealName = "Your Meal"

type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

type SlackClient interface {
	PostMessage(ctx context.Context, channel string, message string) error
}

// Resolver is the nutrition analysis backend consumed by the reconciler. Its results are
// hints: identification may be wrong and suggestions may be empty.
type Resolver interface {
	Identify(ctx context.Context, image []byte) (string, error)
	Suggest(ctx context.Context, foodName string) ([]string, error)
	Aggregate(ctx context.Context, items []MealItem) (Aggregate, error)
}

// MealLogWriter appends confirmed meals to the meal history and reads it back.
type MealLogWriter interface {
	Log(ctx context.Context, req LogRequest) (LoggedMeal, error)
	History(ctx context.Context) ([]LoggedMeal, error)
}

// GoalStore holds the profile-level daily goals.
type GoalStore interface {
	Goals(ctx context.Context) (Goals, error)
	SetGoals(ctx context.Context, goals Goals) error
}

// FeedbackRecorder receives corrections of image identifications.
type FeedbackRecorder interface {
	RecordFeedback(ctx context.Context, fb Feedback) error
}

// MealItem is one confirmed (item, quantity) pair.
type MealItem struct {
	Item     string  `json:"item"`
	Quantity float64 `json:"quantity"`
}

// Aggregate is the resolver's macro totals and advice for a confirmed basket.
type Aggregate struct {
	FoodName      string  `json:"food_name"`
	TotalCalories float64 `json:"total_calories"`
	TotalProtein  float64 `json:"total_protein"`
	TotalFat      float64 `json:"total_fat"`
	TotalCarbs    float64 `json:"total_carbs"`
	Advice        string  `json:"advice"`
}

// UserProfile is passed through to the log backend untouched.
type UserProfile map[string]any

// LogRequest is what the reconciler sends to a MealLogWriter after a confirm.
type LogRequest struct {
	ImageFoodName string      `json:"image_food_name"`
	MealItems     []MealItem  `json:"meal_items"`
	QuickCheck    bool        `json:"quick_check"`
	UserProfile   UserProfile `json:"user_profile"`

	// Aggregate carries totals already computed for this request. Writers that
	// compute their own totals ignore it.
	Aggregate *Aggregate `json:"-"`
}

// Validate checks the request before it leaves the process.
func (r LogRequest) Validate() error {
	if len(r.MealItems) == 0 {
		return ErrEmptyMeal
	}
	for _, it := range r.MealItems {
		if it.Item == "" {
			return ErrEmptyItemName
		}
		if it.Quantity < 0.5 {
			return ErrQuantityTooSmall
		}
	}
	return nil
}

// LoggedMeal is an entry of the meal history. Timestamps are local ISO-8601 strings
// without zone, e.g. "2025-01-10T08:00:00".
type LoggedMeal struct {
	ID            string     `json:"id,omitempty"`
	FoodName      string     `json:"food_name"`
	MealItems     []MealItem `json:"meal_items,omitempty"`
	TotalCalories float64    `json:"total_calories"`
	TotalProtein  float64    `json:"total_protein"`
	TotalFat      float64    `json:"total_fat"`
	TotalCarbs    float64    `json:"total_carbs"`
	Advice        string     `json:"advice"`
	Timestamp     string     `json:"timestamp"`
}

// Goals are the user's daily targets. Zero means unset.
type Goals struct {
	Calories float64 `json:"calories"`
	Protein  float64 `json:"protein"`
}

// Feedback records a user correction of an identification.
type Feedback struct {
	OriginalGuess  string `json:"original_guess"`
	UserCorrection string `json:"user_correction"`
	ImageFilename  string `json:"image_filename,omitempty"`
}

var (
	ErrEmptyMeal        = errors.New("meal has no items")
	ErrEmptyItemName    = errors.New("meal item has no name")
	ErrQuantityTooSmall = errors.New("meal item quantity below 0.5")
)
