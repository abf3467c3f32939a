// Package remote talks to the NutriGuide HTTP backend. The client serves as Resolver,
// MealLogWriter and FeedbackRecorder.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"nutriguide"
)

type doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// APIError is a non-2xx backend response. Detail carries the backend's "detail" field when present.
type APIError struct {
	StatusCode int
	Detail     string
}

func (e *APIError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("backend returned %d: %s", e.StatusCode, e.Detail)
	}
	return fmt.Sprintf("backend returned %d", e.StatusCode)
}

type Client struct {
	baseURL    string
	httpClient doer
	now        func() time.Time
}

func NewClient(baseURL string, httpClient doer) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
		now:        time.Now,
	}
}

type suggestRequest struct {
	FoodName string `json:"food_name"`
}

type suggestResponse struct {
	Suggestions []string `json:"suggestions"`
}

type analyzeResponse struct {
	FoodName string `json:"food_name"`
}

type logMealRequest struct {
	UserProfile   nutriguide.UserProfile `json:"user_profile"`
	QuickCheck    bool                   `json:"quick_check"`
	MealItems     []nutriguide.MealItem  `json:"meal_items"`
	ImageFoodName string                 `json:"image_food_name"`
}

// Identify uploads the image as the multipart field "image".
func (c *Client) Identify(ctx context.Context, image []byte) (string, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("image", "upload.jpg")
	if err != nil {
		return "", err
	}
	if _, err := part.Write(image); err != nil {
		return "", err
	}
	if err := mw.Close(); err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/analyze_image", &body)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	var out analyzeResponse
	if err := c.do(req, &out); err != nil {
		return "", fmt.Errorf("analyze image: %w", err)
	}
	return out.FoodName, nil
}

func (c *Client) Suggest(ctx context.Context, foodName string) ([]string, error) {
	var out suggestResponse
	if err := c.postJSON(ctx, "/suggest", suggestRequest{FoodName: foodName}, &out); err != nil {
		return nil, fmt.Errorf("suggest: %w", err)
	}
	return out.Suggestions, nil
}

// Aggregate asks the backend for totals without recording the meal. The backend echoes the
// placeholder name back, so FoodName is left empty for the caller to fill in.
func (c *Client) Aggregate(ctx context.Context, items []nutriguide.MealItem) (nutriguide.Aggregate, error) {
	var out nutriguide.Aggregate
	err := c.postJSON(ctx, "/log_meal", logMealRequest{
		UserProfile:   nutriguide.UserProfile{},
		QuickCheck:    true,
		MealItems:     items,
		ImageFoodName: nutriguide.DefaultMealName,
	}, &out)
	if err != nil {
		return nutriguide.Aggregate{}, fmt.Errorf("aggregate: %w", err)
	}
	out.FoodName = ""
	return out, nil
}

// Log records the meal. The backend recomputes totals from the items.
func (c *Client) Log(ctx context.Context, req nutriguide.LogRequest) (nutriguide.LoggedMeal, error) {
	if err := req.Validate(); err != nil {
		return nutriguide.LoggedMeal{}, err
	}
	profile := req.UserProfile
	if profile == nil {
		profile = nutriguide.UserProfile{}
	}
	name := req.ImageFoodName
	if name == "" {
		name = nutriguide.DefaultMealName
	}

	var out nutriguide.Aggregate
	err := c.postJSON(ctx, "/log_meal", logMealRequest{
		UserProfile:   profile,
		QuickCheck:    false,
		MealItems:     req.MealItems,
		ImageFoodName: name,
	}, &out)
	if err != nil {
		return nutriguide.LoggedMeal{}, fmt.Errorf("log meal: %w", err)
	}

	slog.Info("RESOLVER: Meal logged remotely", "food_name", out.FoodName, "total_calories", out.TotalCalories)
	return nutriguide.LoggedMeal{
		FoodName:      out.FoodName,
		MealItems:     req.MealItems,
		TotalCalories: out.TotalCalories,
		TotalProtein:  out.TotalProtein,
		TotalFat:      out.TotalFat,
		TotalCarbs:    out.TotalCarbs,
		Advice:        out.Advice,
		Timestamp:     c.now().Format("2006-01-02T15:04:05"),
	}, nil
}

func (c *Client) History(ctx context.Context) ([]nutriguide.LoggedMeal, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/get_meal_history", nil)
	if err != nil {
		return nil, err
	}
	var out []nutriguide.LoggedMeal
	if err := c.do(req, &out); err != nil {
		return nil, fmt.Errorf("meal history: %w", err)
	}
	return out, nil
}

func (c *Client) RecordFeedback(ctx context.Context, fb nutriguide.Feedback) error {
	if err := c.postJSON(ctx, "/log_feedback", fb, nil); err != nil {
		return fmt.Errorf("log feedback: %w", err)
	}
	return nil
}

func (c *Client) postJSON(ctx context.Context, path string, in, out any) error {
	payload, err := json.Marshal(in)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		var detail struct {
			Detail string `json:"detail"`
		}
		if json.Unmarshal(body, &detail) == nil {
			apiErr.Detail = detail.Detail
		}
		return apiErr
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
