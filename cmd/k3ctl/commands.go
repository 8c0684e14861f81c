package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pesio-ai/be-hse-inspections/internal/auth"
	"github.com/pesio-ai/be-hse-inspections/internal/client"
	"github.com/pesio-ai/be-hse-inspections/internal/config"
	"github.com/pesio-ai/be-hse-inspections/internal/workflow"
)

type rootOptions struct {
	catalogue string
	asJSON    bool
	v         *viper.Viper
}

// newRootCmd builds the command tree. Flag values fall back to K3_* env
// variables; the signing secret also honours AUTH_JWT_SECRET.
func newRootCmd() *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix("k3")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	_ = v.BindEnv("secret", "K3_SECRET", "AUTH_JWT_SECRET")

	opts := &rootOptions{v: v}
	root := &cobra.Command{
		Use:           "k3ctl",
		Short:         "HSE approval workflow tooling",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&opts.catalogue, "catalogue", "", "stage catalogue YAML (defaults to the built-in catalogue)")
	root.PersistentFlags().BoolVar(&opts.asJSON, "json", false, "print JSON instead of tables")

	root.AddCommand(
		newStagesCmd(opts),
		newRolesCmd(opts),
		newTimelineCmd(opts),
		newVerifyCmd(opts),
		newTokenCmd(opts),
	)
	return root
}

func (o *rootOptions) registry() (*workflow.Registry, error) {
	return config.LoadRegistry(o.catalogue)
}

func newStagesCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "stages",
		Short: "List the stage catalogue",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			reg, err := opts.registry()
			if err != nil {
				return err
			}
			if opts.asJSON {
				return writeJSON(cmd.OutOrStdout(), reg.Stages())
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "#\tSTAGE\tROLES")
			for _, s := range reg.Stages() {
				fmt.Fprintf(tw, "%d\t%s\t%s\n", s.Number, s.Name, strings.Join(s.Roles, ", "))
			}
			return tw.Flush()
		},
	}
}

func newRolesCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "roles",
		Short: "List the stages each role may verify",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			reg, err := opts.registry()
			if err != nil {
				return err
			}
			roles := reg.Roles()
			if opts.asJSON {
				return writeJSON(cmd.OutOrStdout(), roles)
			}
			names := make([]string, 0, len(roles))
			for r := range roles {
				names = append(names, r)
			}
			sort.Strings(names)

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ROLE\tSTAGES")
			for _, r := range names {
				fmt.Fprintf(tw, "%s\t%s\n", r, strings.Join(roles[r], ", "))
			}
			return tw.Flush()
		},
	}
}

func newTimelineCmd(opts *rootOptions) *cobra.Command {
	var file, role string
	cmd := &cobra.Command{
		Use:   "timeline",
		Short: "Evaluate a history snapshot offline",
		Long: `Reads a JSON array of approval history entries and prints the current
stage together with the reconciled, labelled timeline.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			reg, err := opts.registry()
			if err != nil {
				return err
			}
			history, err := readHistory(cmd.InOrStdin(), file)
			if err != nil {
				return err
			}

			tl := reg.BuildTimeline(history, role)
			if opts.asJSON {
				return writeJSON(cmd.OutOrStdout(), tl)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Current stage: %s\n", tl.CurrentStage)
			if role != "" {
				fmt.Fprintf(out, "%s can verify: %t\n", role, tl.CanVerify)
			}
			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "STAGE\tSTATUS\tASSIGNEE\tCREATED\tVERIFIED")
			for _, e := range tl.Entries {
				assignee, verified := "-", "-"
				if e.Entry.Assignment != nil {
					assignee = e.Entry.Assignment.UserName
				}
				if e.Entry.VerifiedAt != nil {
					verified = e.Entry.VerifiedAt.Format(time.RFC3339)
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", e.StageName, e.Badge.Label, assignee,
					e.Entry.CreatedAt.Format(time.RFC3339), verified)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "-", "history JSON file, - for stdin")
	cmd.Flags().StringVar(&role, "role", "", "evaluate verification rights for this role")
	return cmd
}

func newVerifyCmd(opts *rootOptions) *cobra.Command {
	var status, note string
	cmd := &cobra.Command{
		Use:   "verify TARGET_ID",
		Short: "Submit a decision for a target's blocking stage",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c := client.NewVerificationClient(opts.v.GetString("server"), opts.v.GetString("token"))
			res, err := c.Submit(cmd.Context(), args[0], workflow.Decision{
				ApprovalStatus: workflow.ApprovalStatus(strings.ToUpper(status)),
				Note:           note,
			})
			if err != nil {
				return err
			}
			if opts.asJSON {
				return writeJSON(cmd.OutOrStdout(), res)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Recorded. Current stage: %s\n", res.CurrentStage)
			return nil
		},
	}
	cmd.Flags().String("server", "http://localhost:8086", "service base URL (K3_SERVER)")
	cmd.Flags().String("token", "", "bearer token (K3_TOKEN)")
	cmd.Flags().StringVar(&status, "status", "", "decision status: "+joinStatuses())
	cmd.Flags().StringVar(&note, "note", "", "decision note, required for REJECTED")
	_ = opts.v.BindPFlag("server", cmd.Flags().Lookup("server"))
	_ = opts.v.BindPFlag("token", cmd.Flags().Lookup("token"))
	return cmd
}

func newTokenCmd(opts *rootOptions) *cobra.Command {
	var issuer string
	var p auth.Principal
	var ttl time.Duration
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Sign a development bearer token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			secret := opts.v.GetString("secret")
			if secret == "" {
				return fmt.Errorf("--secret or AUTH_JWT_SECRET is required")
			}
			signed, err := auth.IssueToken(secret, p, issuer, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), signed)
			return nil
		},
	}
	cmd.Flags().String("secret", "", "HS256 signing secret (AUTH_JWT_SECRET)")
	cmd.Flags().StringVar(&issuer, "issuer", "", "iss claim")
	cmd.Flags().StringVar(&p.UserID, "user", "", "subject user id")
	cmd.Flags().StringVar(&p.UserName, "name", "", "display name")
	cmd.Flags().StringVar(&p.Role, "role", "", "role claim")
	cmd.Flags().DurationVar(&ttl, "ttl", 8*time.Hour, "token lifetime")
	_ = cmd.MarkFlagRequired("user")
	_ = cmd.MarkFlagRequired("role")
	_ = opts.v.BindPFlag("secret", cmd.Flags().Lookup("secret"))
	return cmd
}

func readHistory(stdin io.Reader, file string) ([]workflow.ApprovalHistoryEntry, error) {
	var r io.Reader = stdin
	if file != "-" {
		f, err := os.Open(file)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		r = f
	}
	var history []workflow.ApprovalHistoryEntry
	if err := json.NewDecoder(r).Decode(&history); err != nil {
		return nil, fmt.Errorf("decode history: %w", err)
	}
	return history, nil
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func joinStatuses() string {
	statuses := workflow.DecisionStatuses()
	parts := make([]string, len(statuses))
	for i, s := range statuses {
		parts[i] = string(s)
	}
	return strings.Join(parts, ", ")
}
