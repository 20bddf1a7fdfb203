package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/joescharf/pir/internal/client"
	"github.com/joescharf/pir/internal/models"
	"github.com/joescharf/pir/internal/output"
)

var (
	issueTitle  string
	issueDesc   string
	issueStatus string
)

var issueCmd = &cobra.Command{
	Use:   "issue",
	Short: "Manage issues on the backend",
	Long:  "List, create, re-status, and delete issues held by the backend at api_url.",
	RunE: func(cmd *cobra.Command, args []string) error {
		return issueListRun()
	},
}

var issueListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List issues",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return issueListRun()
	},
}

var issueAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Add a new issue",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return issueAddRun()
	},
}

var issueShowCmd = &cobra.Command{
	Use:   "show <issue-id>",
	Short: "Show one issue",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return issueShowRun(args[0])
	},
}

var issueStatusCmd = &cobra.Command{
	Use:   "status <issue-id> <status>",
	Short: "Change an issue's status (open, in-progress, closed)",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return issueStatusRun(args[0], args[1])
	},
}

var issueDeleteCmd = &cobra.Command{
	Use:     "delete <issue-id>",
	Aliases: []string{"rm"},
	Short:   "Delete an issue",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return issueDeleteRun(args[0])
	},
}

var issueHealthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check that the backend is up",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return issueHealthRun()
	},
}

func init() {
	issueAddCmd.Flags().StringVar(&issueTitle, "title", "", "Issue title (required)")
	issueAddCmd.Flags().StringVar(&issueDesc, "desc", "", "Issue description (required)")
	issueAddCmd.Flags().StringVar(&issueStatus, "status", string(models.DefaultStatus), "Status: open, in-progress, closed")
	_ = issueAddCmd.MarkFlagRequired("title")
	_ = issueAddCmd.MarkFlagRequired("desc")

	issueCmd.AddCommand(issueListCmd)
	issueCmd.AddCommand(issueAddCmd)
	issueCmd.AddCommand(issueShowCmd)
	issueCmd.AddCommand(issueStatusCmd)
	issueCmd.AddCommand(issueDeleteCmd)
	issueCmd.AddCommand(issueHealthCmd)
	rootCmd.AddCommand(issueCmd)
}

// trackerErr turns the tracker's banner message into a command error.
func trackerErr() error {
	if msg := getTracker().Snapshot().Error; msg != "" {
		return errors.New(msg)
	}
	return nil
}

func parseIssueID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid issue id: %q", s)
	}
	return id, nil
}

func issueListRun() error {
	t := getTracker()
	t.LoadIssues(context.Background())
	if err := trackerErr(); err != nil {
		return err
	}

	issues := t.Snapshot().Issues
	if len(issues) == 0 {
		ui.Info("No issues yet. Create one with 'pir issue add'.")
		return nil
	}
	if err := ui.IssueTable(issues); err != nil {
		return err
	}
	fmt.Fprintf(ui.Out, "\n%d issue(s)\n", len(issues))
	return nil
}

func issueAddRun() error {
	status, err := models.ParseStatus(issueStatus)
	if err != nil {
		return err
	}
	draft := models.Issue{Title: issueTitle, Description: issueDesc, Status: status}
	if err := draft.Validate(); err != nil {
		return err
	}

	t := getTracker()
	if !t.SubmitDraft(context.Background(), draft) {
		return errors.New("another issue is being created; try again")
	}
	if err := trackerErr(); err != nil {
		return err
	}

	// The reloaded list carries the new id; the latest match is ours.
	issues := t.Snapshot().Issues
	for i := len(issues) - 1; i >= 0; i-- {
		if issues[i].Title == draft.Title && issues[i].Description == draft.Description && issues[i].HasID() {
			ui.Success("Created issue %s: %s", output.Cyan(strconv.FormatInt(issues[i].IDValue(), 10)), draft.Title)
			return nil
		}
	}
	ui.Success("Created issue: %s", draft.Title)
	return nil
}

func issueShowRun(idArg string) error {
	id, err := parseIssueID(idArg)
	if err != nil {
		return err
	}

	c := client.New(viper.GetString("api_url"), nil)
	ui.VerboseLog("GET %s/api/issues/%d", c.BaseURL(), id)
	issue, err := c.GetIssue(context.Background(), id)
	if err != nil {
		var se *client.StatusError
		if errors.As(err, &se) && se.StatusCode == http.StatusNotFound {
			return fmt.Errorf("issue not found: %d", id)
		}
		return fmt.Errorf("fetching issue %d: %w", id, err)
	}

	fmt.Fprintf(ui.Out, "%s  %s\n", output.Cyan(fmt.Sprintf("#%d", issue.IDValue())), issue.Title)
	fmt.Fprintf(ui.Out, "Status: %s\n\n", output.StatusColor(issue.Status))
	fmt.Fprintln(ui.Out, issue.Description)
	return nil
}

func issueStatusRun(idArg, statusArg string) error {
	id, err := parseIssueID(idArg)
	if err != nil {
		return err
	}
	status, err := models.ParseStatus(statusArg)
	if err != nil {
		return err
	}

	// Status changes resolve the issue from the loaded list.
	t := getTracker()
	ctx := context.Background()
	t.LoadIssues(ctx)
	if err := trackerErr(); err != nil {
		return err
	}
	if _, ok := t.Snapshot().Find(id); !ok {
		return fmt.Errorf("issue not found: %d", id)
	}

	t.ChangeStatus(ctx, id, status)
	if err := trackerErr(); err != nil {
		return err
	}

	ui.Success("Issue %d is now %s", id, output.StatusColor(status))
	return nil
}

func issueDeleteRun(idArg string) error {
	id, err := parseIssueID(idArg)
	if err != nil {
		return err
	}

	t := getTracker()
	t.DeleteIssue(context.Background(), id)
	if err := trackerErr(); err != nil {
		return err
	}

	ui.Success("Deleted issue %d", id)
	return nil
}

func issueHealthRun() error {
	c := client.New(viper.GetString("api_url"), nil)
	hc, err := c.Health(context.Background())
	if err != nil {
		return fmt.Errorf("backend at %s is not reachable: %w", c.BaseURL(), err)
	}
	ui.Success("%s: %s (%s)", c.BaseURL(), hc.Status, hc.Message)
	return nil
}
