package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/and161185/carbon-tracker/internal/convert"
	"github.com/and161185/carbon-tracker/internal/emissions"
	"github.com/and161185/carbon-tracker/internal/model"
)

const tabPadding = 2

type authMode int

const (
	authNone authMode = iota
	authOptional
	authRequired
)

type app struct {
	server  string
	asJSON  bool
	timeout time.Duration
}

// call performs one request. With --json the raw body is printed and printed is true.
func (a *app) call(cmd *cobra.Command, mode authMode, method, path string, query url.Values, body, out any) (printed bool, err error) {
	var token string
	if mode != authNone {
		token, err = loadToken()
		if err != nil && mode == authRequired {
			return false, err
		}
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), a.timeout)
	defer cancel()

	var raw []byte
	if err := newClient(a.server, token).do(ctx, method, path, query, body, out, &raw); err != nil {
		return false, err
	}
	if a.asJSON {
		fmt.Fprintln(cmd.OutOrStdout(), pretty(raw))
		return true, nil
	}
	return false, nil
}

func pretty(b []byte) string {
	var buf bytes.Buffer
	if json.Indent(&buf, b, "", "  ") == nil {
		return buf.String()
	}
	return string(b)
}

func kg(v float64) string { return emissions.FormatKg(v) + " kg CO2e" }

func parseAmount(s string) (float64, error) {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("amount %q: %w", s, err)
	}
	return v, nil
}

func printFootprint(cmd *cobra.Command, fp convert.FootprintView) {
	last := "never"
	if fp.LastActivityDate != nil {
		last = *fp.LastActivityDate
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s: total %s, streak %d day(s), last activity %s\n",
		fp.Username, kg(fp.TotalEmissions), fp.Streak, last)
}

// ---- auth ----

func (a *app) saveAuth(cmd *cobra.Command, v convert.AuthView) error {
	if err := saveToken(tokenFile{AccessToken: v.Token, ExpiresAt: v.ExpiresAt, Username: v.User.Username}); err != nil {
		return fmt.Errorf("save token: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "logged in as %s (token valid until %s)\n", v.User.Username, v.ExpiresAt.Local().Format(time.RFC3339))
	return nil
}

func (a *app) registerCmd() *cobra.Command {
	var username, email, password string
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an account and store its token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var v convert.AuthView
			body := map[string]string{"username": username, "email": email, "password": password}
			if _, err := a.call(cmd, authNone, http.MethodPost, "/api/auth/register", nil, body, &v); err != nil {
				return err
			}
			return a.saveAuth(cmd, v)
		},
	}
	cmd.Flags().StringVarP(&username, "username", "u", "", "username (3-50 characters)")
	cmd.Flags().StringVarP(&email, "email", "e", "", "email address")
	cmd.Flags().StringVarP(&password, "password", "p", "", "password (at least 6 characters)")
	_ = cmd.MarkFlagRequired("username")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

func (a *app) loginCmd() *cobra.Command {
	var login, password string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in with username or email and store the token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var v convert.AuthView
			body := map[string]string{"login": login, "password": password}
			if _, err := a.call(cmd, authNone, http.MethodPost, "/api/auth/login", nil, body, &v); err != nil {
				return err
			}
			return a.saveAuth(cmd, v)
		},
	}
	cmd.Flags().StringVarP(&login, "user", "u", "", "username or email")
	cmd.Flags().StringVarP(&password, "password", "p", "", "password")
	_ = cmd.MarkFlagRequired("user")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

func (a *app) meCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "me",
		Short: "Show your running total and streak",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var fp convert.FootprintView
			printed, err := a.call(cmd, authRequired, http.MethodGet, "/api/auth/me", nil, nil, &fp)
			if err != nil || printed {
				return err
			}
			printFootprint(cmd, fp)
			return nil
		},
	}
}

// ---- activities ----

func (a *app) logCmd() *cobra.Command {
	var at string
	cmd := &cobra.Command{
		Use:     "log <category> <type> <amount>",
		Short:   "Record an activity",
		Example: "  ct log transport car-petrol 42\n  ct log food beef 0.5 --at 2025-06-10T19:00:00Z",
		Args:    cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			amount, err := parseAmount(args[2])
			if err != nil {
				return err
			}
			req := convert.SubmitRequest{Category: args[0], ActivityType: args[1], Amount: &amount}
			if at != "" {
				ts, err := time.Parse(time.RFC3339, at)
				if err != nil {
					return fmt.Errorf("--at: %w", err)
				}
				req.OccurredAt = &ts
			}

			var v convert.SubmitView
			printed, err := a.call(cmd, authRequired, http.MethodPost, "/api/activities", nil, req, &v)
			if err != nil || printed {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %s %s of %s = %s (id %s)\n", v.Message,
				strconv.FormatFloat(v.Activity.Amount, 'f', -1, 64), v.Activity.Unit,
				v.Activity.ActivityType, kg(v.Activity.Emissions), v.Activity.ID)
			printFootprint(cmd, v.Footprint)
			return nil
		},
	}
	cmd.Flags().StringVar(&at, "at", "", "when it happened (RFC3339, default now)")
	return cmd
}

func (a *app) listCmd() *cobra.Command {
	var category string
	var days int
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recent activities, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			q := url.Values{}
			if category != "" {
				q.Set("category", category)
			}
			if days > 0 {
				q.Set("days", strconv.Itoa(days))
			}
			var list []convert.ActivityView
			printed, err := a.call(cmd, authRequired, http.MethodGet, "/api/activities", q, nil, &list)
			if err != nil || printed {
				return err
			}
			if len(list) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no activities")
				return nil
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, tabPadding, ' ', 0)
			fmt.Fprintln(w, "ID\tWhen\tCategory\tType\tAmount\tCO2e (kg)")
			for _, v := range list {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s %s\t%s\n",
					v.ID, v.OccurredAt.Local().Format("2006-01-02 15:04"), v.Category, v.ActivityType,
					strconv.FormatFloat(v.Amount, 'f', -1, 64), v.Unit, emissions.FormatKg(v.Emissions))
			}
			return w.Flush()
		},
	}
	cmd.Flags().StringVar(&category, "category", "", "filter by category (all for none)")
	cmd.Flags().IntVar(&days, "days", 0, "look back this many days (server default 30)")
	return cmd
}

func (a *app) deleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete one of your activities",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var v convert.DeleteView
			path := "/api/activities/" + url.PathEscape(args[0])
			printed, err := a.call(cmd, authRequired, http.MethodDelete, path, nil, nil, &v)
			if err != nil || printed {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), v.Message)
			printFootprint(cmd, v.Footprint)
			return nil
		},
	}
}

func (a *app) summaryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "summary",
		Short: "Show this week's totals per category",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var v convert.WeeklySummaryView
			printed, err := a.call(cmd, authRequired, http.MethodGet, "/api/activities/weekly-summary", nil, nil, &v)
			if err != nil || printed {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "week of %s: %s across %d activities\n",
				v.WeekStart.Local().Format("2006-01-02"), kg(v.TotalEmissions), v.ActivitiesCount)
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, tabPadding, ' ', 0)
			for _, c := range emissions.Default.Categories() {
				if s, ok := v.Summary[string(c)]; ok {
					fmt.Fprintf(w, "  %s\t%d\t%s\n", c, s.Count, emissions.FormatKg(s.Emissions))
				}
			}
			return w.Flush()
		},
	}
}

func (a *app) reconcileCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reconcile",
		Short: "Recompute your running total from the ledger",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var fp convert.FootprintView
			printed, err := a.call(cmd, authRequired, http.MethodPost, "/api/activities/reconcile", nil, nil, &fp)
			if err != nil || printed {
				return err
			}
			printFootprint(cmd, fp)
			return nil
		},
	}
}

// ---- dashboard ----

func (a *app) statsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show totals for today, this week and overall",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var v convert.StatsView
			printed, err := a.call(cmd, authRequired, http.MethodGet, "/api/dashboard/stats", nil, nil, &v)
			if err != nil || printed {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s (streak %d)\n", v.User.Username, v.User.Streak)
			fmt.Fprintf(cmd.OutOrStdout(), "  today: %s in %d activities\n", kg(v.Today.Emissions), v.Today.ActivitiesCount)
			fmt.Fprintf(cmd.OutOrStdout(), "  week:  %s in %d activities\n", kg(v.Week.Emissions), v.Week.ActivitiesCount)
			fmt.Fprintf(cmd.OutOrStdout(), "  total: %s\n", kg(v.User.TotalEmissions))
			if !v.Equivalency.IsEmpty {
				fmt.Fprintf(cmd.OutOrStdout(), "  %s\n", v.Equivalency.DisplayText)
			}
			return nil
		},
	}
}

func (a *app) breakdownCmd() *cobra.Command {
	var days int
	cmd := &cobra.Command{
		Use:   "breakdown",
		Short: "Show emissions per category, largest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			q := url.Values{}
			if days > 0 {
				q.Set("days", strconv.Itoa(days))
			}
			var rows []convert.BreakdownRowView
			printed, err := a.call(cmd, authRequired, http.MethodGet, "/api/dashboard/category-breakdown", q, nil, &rows)
			if err != nil || printed {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, tabPadding, ' ', 0)
			fmt.Fprintln(w, "Category\tCount\tCO2e (kg)")
			for _, r := range rows {
				fmt.Fprintf(w, "%s\t%d\t%s\n", r.Category, r.Count, emissions.FormatKg(r.Emissions))
			}
			return w.Flush()
		},
	}
	cmd.Flags().IntVar(&days, "days", 0, "look back this many days (server default 30)")
	return cmd
}

func (a *app) leaderboardCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "leaderboard",
		Short: "Show the lowest emitters",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var rows []convert.LeaderboardRowView
			printed, err := a.call(cmd, authOptional, http.MethodGet, "/api/dashboard/leaderboard", nil, nil, &rows)
			if err != nil || printed {
				return err
			}
			if len(rows) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "leaderboard is empty")
				return nil
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, tabPadding, ' ', 0)
			fmt.Fprintln(w, "#\tUser\tCO2e (kg)\tStreak")
			for _, r := range rows {
				fmt.Fprintf(w, "%d\t%s\t%s\t%d\n", r.Rank, r.Username, emissions.FormatKg(r.TotalEmissions), r.Streak)
			}
			return w.Flush()
		},
	}
}

func (a *app) averageCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "average",
		Short: "Show the community average footprint",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var v convert.AverageView
			printed, err := a.call(cmd, authOptional, http.MethodGet, "/api/dashboard/community-average", nil, nil, &v)
			if err != nil || printed {
				return err
			}
			if v.UserCount == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no community data yet")
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "community average: %s over %d users\n", kg(v.Average), v.UserCount)
			return nil
		},
	}
}

// ---- offline ----

var errUnknownCategory = errors.New("unknown category")

func parseCategoryArg(s string) (model.Category, error) {
	c, ok := emissions.ParseCategory(strings.ToLower(s))
	if !ok {
		return "", fmt.Errorf("%w %q (want one of %s)", errUnknownCategory, s, categoryList())
	}
	return c, nil
}

func categoryList() string {
	cats := emissions.Default.Categories()
	names := make([]string, len(cats))
	for i, c := range cats {
		names[i] = string(c)
	}
	return strings.Join(names, ", ")
}

func factorsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "factors [category]",
		Short: "Print the emission factor table",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cats := emissions.Default.Categories()
			if len(args) == 1 {
				c, err := parseCategoryArg(args[0])
				if err != nil {
					return err
				}
				cats = []model.Category{c}
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, tabPadding, ' ', 0)
			fmt.Fprintln(w, "Category\tType\tLabel\tkg CO2e per unit")
			for _, c := range cats {
				for _, o := range emissions.Default.Options(c) {
					fmt.Fprintf(w, "%s\t%s\t%s\t%s / %s\n", c, o.Value, o.Label,
						strconv.FormatFloat(o.Factor, 'f', -1, 64), o.Unit)
				}
			}
			return w.Flush()
		},
	}
}

func calcCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "calc <category> <type> <amount>",
		Short:   "Compute emissions locally without recording anything",
		Example: "  ct calc energy electricity 120",
		Args:    cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			amount, err := parseAmount(args[2])
			if err != nil {
				return err
			}
			if err := emissions.CheckAmount(amount); err != nil {
				return err
			}
			c, err := parseCategoryArg(args[0])
			if err != nil {
				return err
			}
			res, err := emissions.Compute(c, args[1], amount)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s of %s = %s\n", args[2], res.Unit, args[1], kg(res.Emissions))
			if eq := emissions.Equivalent(res.Emissions); !eq.IsEmpty {
				fmt.Fprintln(cmd.OutOrStdout(), eq.DisplayText)
			}
			return nil
		},
	}
}
