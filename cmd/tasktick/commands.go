package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/dnguyen/tasktick/internal/model"
	"github.com/dnguyen/tasktick/internal/query"
	syncengine "github.com/dnguyen/tasktick/internal/sync"
)

func listCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List tasks with the saved filters applied",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.close()

			all, _ := cmd.Flags().GetBool("all")
			now := time.Now()

			filters := a.store.Filters()
			if all {
				filters = model.DefaultFilterState()
			}

			tasks := query.Apply(a.store.Tasks(), filters, now)
			groups := query.GroupTasks(tasks, filters.GroupBy, now)
			for _, g := range groups {
				if g.Key != "" {
					fmt.Printf("— %s —\n", g.Key)
				}
				for _, t := range g.Tasks {
					printTask(t, now)
				}
			}
			return nil
		},
	}

	cmd.Flags().BoolP("all", "a", false, "Ignore saved filters")
	return cmd
}

func addCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "add [title]",
		Short: "Add a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.close()

			var patch model.TaskPatch
			if p, _ := cmd.Flags().GetString("priority"); p != "" {
				prio := model.Priority(p)
				patch.Priority = &prio
			}
			if due, _ := cmd.Flags().GetString("due"); due != "" {
				parsed, err := time.Parse("2006-01-02 15:04", due)
				if err != nil {
					parsed, err = time.Parse("2006-01-02", due)
				}
				if err != nil {
					return fmt.Errorf("parsing --due %q: %w", due, err)
				}
				p := &parsed
				patch.DueDate = &p
			}

			t, err := a.store.Add(args[0], patch)
			if err != nil {
				return err
			}
			fmt.Printf("added %s  %s\n", shortID(t.ID), t.Title)
			return nil
		},
	}

	cmd.Flags().StringP("priority", "p", "", "Priority (high, medium, low, none)")
	cmd.Flags().StringP("due", "d", "", "Due date (YYYY-MM-DD or \"YYYY-MM-DD HH:MM\")")
	return cmd
}

func doneCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "done [task-id]",
		Short: "Toggle a task's completion",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.close()

			id, err := resolveID(a, args[0])
			if err != nil {
				return err
			}
			return a.store.ToggleComplete(id)
		},
	}
}

func timerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "timer [start|stop|reset] [task-id]",
		Short: "Control a task's timer",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.close()

			id, err := resolveID(a, args[1])
			if err != nil {
				return err
			}

			switch args[0] {
			case "start":
				return a.store.StartTimer(id)
			case "stop":
				return a.store.PauseTimer(id)
			case "reset":
				return a.store.ResetTimer(id)
			default:
				return fmt.Errorf("unknown timer action %q", args[0])
			}
		},
	}
	return cmd
}

func syncCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Run one sync cycle against the remote backend",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.close()

			if err := a.store.Sync(cmd.Context()); err != nil {
				return err
			}
			fmt.Println("sync complete")
			return nil
		},
	}
}

func watchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Sync periodically in the background until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.close()

			poller := syncengine.NewPoller(
				func(ctx context.Context) error { return a.store.Sync(ctx) },
				time.Duration(a.cfg.Sync.IntervalSec)*time.Second,
				a.log,
			)
			poller.Start()
			defer poller.Stop()

			sig := make(chan os.Signal, 1)
			signal.Notify(sig, os.Interrupt, syscall.SIGTERM)

			for {
				select {
				case ev := <-poller.Events():
					if ev.Err != nil {
						fmt.Fprintf(os.Stderr, "sync: %v\n", ev.Err)
					} else {
						fmt.Printf("synced at %s\n", ev.When.Format(time.Kitchen))
					}
				case <-sig:
					return nil
				}
			}
		},
	}
}

func loginCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "login [token]",
		Short: "Store the remote access token in the system keyring",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := storeToken(args[0]); err != nil {
				return err
			}
			fmt.Println("token stored")
			return nil
		},
	}
}

// printTask renders one task line.
func printTask(t model.Task, now time.Time) {
	mark := " "
	if t.Completed {
		mark = "x"
	}
	line := fmt.Sprintf("[%s] %s  %s", mark, shortID(t.ID), t.Title)
	if t.IsRunning() {
		line += fmt.Sprintf("  ⏱ %s", formatMs(t.CurrentTimeMs(now)))
	} else if t.AccumulatedMs > 0 {
		line += fmt.Sprintf("  (%s)", formatMs(t.AccumulatedMs))
	}
	if t.DueDate != nil {
		line += "  due " + t.DueDate.Format("Jan 2 15:04")
	}
	fmt.Println(line)
}

// resolveID expands an ID prefix to a full task ID.
func resolveID(a *app, prefix string) (string, error) {
	var match string
	for _, t := range a.store.Tasks() {
		if t.ID == prefix {
			return t.ID, nil
		}
		if len(prefix) >= 4 && len(t.ID) >= len(prefix) && t.ID[:len(prefix)] == prefix {
			if match != "" {
				return "", fmt.Errorf("task id %q is ambiguous", prefix)
			}
			match = t.ID
		}
	}
	if match == "" {
		return "", fmt.Errorf("no task matches %q", prefix)
	}
	return match, nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func formatMs(ms int64) string {
	d := time.Duration(ms) * time.Millisecond
	return d.Round(time.Second).String()
}
