package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/GoCodeAlone/taskledger/internal/export"
	"github.com/GoCodeAlone/taskledger/task"
)

func (a *app) addCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "add <content>...",
		Short: "Create a task",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := a.client().CreateTask(cmd.Context(), strings.Join(args, " "))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created task %d\n", t.ID)
			return nil
		},
	}
}

func (a *app) toggleCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "toggle <id>",
		Short: "Flip a task between pending and done",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			t, err := a.client().ToggleTask(cmd.Context(), id)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "task %d %s\n", t.ID, plainStatus(t))
			return nil
		},
	}
}

func (a *app) editCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "edit <id> <content>...",
		Short: "Replace a task's content",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			t, err := a.client().UpdateTask(cmd.Context(), id, strings.Join(args[1:], " "))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "updated task %d\n", t.ID)
			return nil
		},
	}
}

func (a *app) rmCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "rm <id>",
		Aliases: []string{"delete"},
		Short:   "Delete a task",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			if err := a.client().DeleteTask(cmd.Context(), id); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted task %d\n", id)
			return nil
		},
	}
}

func (a *app) showCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show one task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			t, err := a.client().GetTask(cmd.Context(), id)
			if err != nil {
				return err
			}
			newRenderer(cmd.OutOrStdout()).task(t)
			return nil
		},
	}
}

func (a *app) lsCmd() *cobra.Command {
	var completed, pending bool
	cmd := &cobra.Command{
		Use:     "ls",
		Aliases: []string{"list"},
		Short:   "List tasks",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c := a.client()
			var (
				tasks []task.Task
				err   error
			)
			switch {
			case completed:
				tasks, err = c.GetCompletedTasks(cmd.Context())
			case pending:
				tasks, err = c.GetPendingTasks(cmd.Context())
			default:
				tasks, err = c.GetAllTasks(cmd.Context())
				tasks = task.Live(tasks)
			}
			if err != nil {
				return err
			}
			newRenderer(cmd.OutOrStdout()).tasks(tasks)
			return nil
		},
	}
	cmd.Flags().BoolVar(&completed, "completed", false, "Only completed tasks")
	cmd.Flags().BoolVar(&pending, "pending", false, "Only pending tasks")
	cmd.MarkFlagsMutuallyExclusive("completed", "pending")
	return cmd
}

func (a *app) countCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "count [owner]",
		Short: "Count live tasks, yours or another owner's",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c := a.client()
			var (
				n   uint64
				err error
			)
			if len(args) == 1 {
				n, err = c.GetTaskCountForUser(cmd.Context(), args[0])
			} else {
				n, err = c.GetActiveTaskCount(cmd.Context())
			}
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), n)
			return nil
		},
	}
}

func (a *app) eventsCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "events",
		Short: "Show your recent ledger events",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			events, err := a.client().Events(cmd.Context(), limit)
			if err != nil {
				return err
			}
			newRenderer(cmd.OutOrStdout()).events(events)
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of events")
	return cmd
}

func (a *app) exportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "export <file.xlsx>",
		Short: "Export your live tasks to a spreadsheet",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c := a.client()
			me, err := c.Me(cmd.Context())
			if err != nil {
				return err
			}
			tasks, err := c.GetAllTasks(cmd.Context())
			if err != nil {
				return err
			}
			if err := export.SaveXLSX(args[0], task.Owner(me), tasks); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "exported %d tasks to %s\n", len(task.Live(tasks)), args[0])
			return nil
		},
	}
}
