// Package slack posts logged meals to a Slack incoming webhook.
package slack

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"nutriguide"
	"nutriguide/budget"
)

type doer interface {
	Do(req *http.Request) (*http.Response, error)
}

type Client struct {
	webhookURL string
	httpClient doer
}

func NewClient(webhookURL string, httpClient doer) *Client {
	return &Client{
		webhookURL: webhookURL,
		httpClient: httpClient,
	}
}

func (c *Client) PostMessage(ctx context.Context, channel string, message string) error {
	payload, err := json.Marshal(map[string]any{
		"channel": channel,
		"text":    message,
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.webhookURL, bytes.NewReader(payload))
	if err != nil {
		return err
	}

	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("failed to post message: %s", resp.Status)
	}

	return nil
}

// PostMeal announces a logged meal together with the day's progress.
func (c *Client) PostMeal(ctx context.Context, channel string, meal nutriguide.LoggedMeal, progress budget.Progress) error {
	return c.PostMessage(ctx, channel, FormatMeal(meal, progress))
}

// FormatMeal renders a meal summary in Slack mrkdwn.
func FormatMeal(meal nutriguide.LoggedMeal, progress budget.Progress) string {
	var b strings.Builder
	fmt.Fprintf(&b, "*%s* logged at %s\n", meal.FoodName, meal.Timestamp)
	for _, it := range meal.MealItems {
		fmt.Fprintf(&b, "• %s x%g\n", it.Item, it.Quantity)
	}
	fmt.Fprintf(&b, "%.0f kcal | protein %.1fg | fat %.1fg | carbs %.1fg\n",
		meal.TotalCalories, meal.TotalProtein, meal.TotalFat, meal.TotalCarbs)
	fmt.Fprintf(&b, "Today: %.0f / %.0f kcal (%.0f%%)", progress.Current, progress.Goal, progress.Percent())
	if progress.ProteinGoal > 0 {
		fmt.Fprintf(&b, ", protein %.0f / %.0fg", progress.CurrentProtein, progress.ProteinGoal)
	}
	if meal.Advice != "" {
		fmt.Fprintf(&b, "\n_%s_", meal.Advice)
	}
	return b.String()
}
