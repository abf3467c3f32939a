package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"

	"nutriguide"
	"nutriguide/budget"
	"nutriguide/reconciler"
)

const help = `commands:
  text <description>     identify a meal from a description
  image <path>           identify a meal from a photo
  toggle <item>          add or remove an offered item
  + <item> / - <item>    raise or lower a selected item by half a serving
  quick on|off           aggregate without logging
  confirm | cancel
  show | history | progress
  goal <kcal> [protein]  set daily goals
  debug                  dump the session state
  quit`

// shell is the line-oriented front end over one reconciler.
type shell struct {
	rec      *reconciler.Reconciler
	goals    nutriguide.GoalStore
	writer   nutriguide.MealLogWriter
	out      io.Writer
	readFile func(string) ([]byte, error)
}

func (s *shell) run(ctx context.Context, in io.Reader) error {
	fmt.Fprintln(s.out, help)
	s.prompt()

	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "quit" || line == "exit" {
			return nil
		}
		if line != "" {
			if err := s.exec(ctx, line); err != nil {
				fmt.Fprintf(s.out, "error: %v\n", err)
			}
		}
		s.prompt()
	}
	return scanner.Err()
}

func (s *shell) prompt() {
	fmt.Fprintf(s.out, "[%s] > ", s.rec.State())
}

func (s *shell) exec(ctx context.Context, line string) error {
	cmd, arg, _ := strings.Cut(line, " ")
	arg = strings.TrimSpace(arg)

	switch cmd {
	case "help":
		fmt.Fprintln(s.out, help)
		return nil

	case "text":
		snap, err := s.rec.Identify(ctx, reconciler.Input{Text: arg})
		return s.show(snap, err)

	case "image":
		if arg == "" {
			return errors.New("usage: image <path>")
		}
		img, err := s.readFile(arg)
		if err != nil {
			return err
		}
		snap, err := s.rec.Identify(ctx, reconciler.Input{Image: img, ImageFilename: filepath.Base(arg)})
		return s.show(snap, err)

	case "toggle":
		snap, err := s.rec.Toggle(arg)
		return s.show(snap, err)

	case "+":
		snap, err := s.rec.Increment(arg)
		return s.show(snap, err)

	case "-":
		snap, err := s.rec.Decrement(arg)
		return s.show(snap, err)

	case "quick":
		if arg != "on" && arg != "off" {
			return errors.New("usage: quick on|off")
		}
		snap, err := s.rec.SetQuickCheck(arg == "on")
		return s.show(snap, err)

	case "confirm":
		snap, err := s.rec.Confirm(ctx)
		return s.show(snap, err)

	case "cancel":
		snap, err := s.rec.Cancel()
		return s.show(snap, err)

	case "show":
		return s.show(s.rec.Snapshot(), nil)

	case "progress":
		p, err := s.rec.Refresh(ctx)
		if err != nil {
			return err
		}
		s.printProgress(p)
		return nil

	case "history":
		return s.history(ctx)

	case "goal":
		return s.setGoal(ctx, arg)

	case "debug":
		nutriguide.Dump(s.out, s.rec.Snapshot())
		return nil

	default:
		return fmt.Errorf("unknown command %q; type help", cmd)
	}
}

func (s *shell) show(snap reconciler.Snapshot, err error) error {
	if snap.Hint != "" {
		fmt.Fprintf(s.out, "identified: %s\n", reconciler.NormalizeHint(snap.Hint))
	}
	if len(snap.Options) > 0 {
		fmt.Fprintf(s.out, "options: %s\n", strings.Join(snap.Options, ", "))
	}
	if len(snap.Basket) > 0 {
		fmt.Fprintln(s.out, "basket:")
		for _, it := range snap.Basket {
			fmt.Fprintf(s.out, "  %-24s x%g\n", it.Item, it.Quantity)
		}
	}
	if snap.QuickCheck {
		fmt.Fprintln(s.out, "quick check: on")
	}
	if res := snap.Result; res != nil {
		a := res.Aggregate
		fmt.Fprintf(s.out, "total: %.0f kcal, protein %.1fg, fat %.1fg, carbs %.1fg\n",
			a.TotalCalories, a.TotalProtein, a.TotalFat, a.TotalCarbs)
		if a.Advice != "" {
			fmt.Fprintln(s.out, a.Advice)
		}
		if res.Meal != nil {
			s.printProgress(snap.Progress)
		}
	}
	return err
}

func (s *shell) printProgress(p budget.Progress) {
	fmt.Fprintf(s.out, "today %s: %.0f / %.0f kcal (%.0f%%)", p.Date, p.Current, p.Goal, p.Percent())
	if p.ProteinGoal > 0 {
		fmt.Fprintf(s.out, ", protein %.0f / %.0fg (%.0f%%)", p.CurrentProtein, p.ProteinGoal, p.ProteinPercent())
	}
	fmt.Fprintln(s.out)
}

func (s *shell) history(ctx context.Context) error {
	if s.writer == nil {
		return errors.New("no meal log configured")
	}
	meals, err := s.writer.History(ctx)
	if err != nil {
		return err
	}
	if len(meals) == 0 {
		fmt.Fprintln(s.out, "no meals logged")
		return nil
	}
	for _, m := range meals {
		fmt.Fprintf(s.out, "%s  %-24s %6.0f kcal\n", m.Timestamp, m.FoodName, m.TotalCalories)
	}
	return nil
}

func (s *shell) setGoal(ctx context.Context, arg string) error {
	if s.goals == nil {
		return errors.New("no goal store configured")
	}
	fields := strings.Fields(arg)
	if len(fields) == 0 || len(fields) > 2 {
		return errors.New("usage: goal <kcal> [protein]")
	}

	var goals nutriguide.Goals
	var err error
	if goals.Calories, err = strconv.ParseFloat(fields[0], 64); err != nil {
		return fmt.Errorf("invalid calorie goal: %w", err)
	}
	if len(fields) == 2 {
		if goals.Protein, err = strconv.ParseFloat(fields[1], 64); err != nil {
			return fmt.Errorf("invalid protein goal: %w", err)
		}
	}
	if err := s.goals.SetGoals(ctx, goals); err != nil {
		return err
	}

	p, err := s.rec.Refresh(ctx)
	if err != nil {
		return err
	}
	s.printProgress(p)
	return nil
}
