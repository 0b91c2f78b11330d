package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/samvad-hq/samvad-page-archiver/internal/archiver"
	"github.com/samvad-hq/samvad-page-archiver/pkg/spn"
)

func newUserCmd(opts *rootOptions, factory clientFactory) *cobra.Command {
	return &cobra.Command{
		Use:   "user",
		Short: "Show available and processing capture slots for the account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, err := factory(opts)
			if err != nil {
				return err
			}
			st, err := client.UserStatus(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), st)
		},
	}
}

func newSystemCmd(opts *rootOptions, factory clientFactory) *cobra.Command {
	return &cobra.Command{
		Use:   "system",
		Short: "Show the capture service health",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, err := factory(opts)
			if err != nil {
				return err
			}
			st, err := client.SystemStatus(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), map[string]string{
				"state":       st.State.String(),
				"description": st.Description,
			})
		},
	}
}

func newStatusCmd(opts *rootOptions, factory clientFactory) *cobra.Command {
	return &cobra.Command{
		Use:   "status <job_id>",
		Short: "Show the current status of a capture job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := factory(opts)
			if err != nil {
				return err
			}
			st, err := client.CaptureStatus(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), statusView(args[0], st))
		},
	}
}

// captureFlags mirrors spn.CaptureOptions on the command line.
type captureFlags struct {
	opts                spn.CaptureOptions
	ifNotArchivedWithin time.Duration
	jsBehaviorTimeout   time.Duration
	wait                bool
	interval            time.Duration
}

func newCaptureCmd(opts *rootOptions, factory clientFactory) *cobra.Command {
	cf := &captureFlags{}

	cmd := &cobra.Command{
		Use:   "capture <url>",
		Short: "Submit a URL for capture, optionally waiting for the result",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			capOpts := cf.opts
			if cmd.Flags().Changed("if-not-archived-within") {
				capOpts.IfNotArchivedWithin = spn.Duration(cf.ifNotArchivedWithin)
			}
			if cmd.Flags().Changed("js-behavior-timeout") {
				capOpts.JSBehaviorTimeout = spn.Duration(cf.jsBehaviorTimeout)
			}

			client, err := factory(opts)
			if err != nil {
				return err
			}
			resp, err := client.RequestCapture(cmd.Context(), args[0], capOpts)
			if err != nil {
				return err
			}
			if !cf.wait {
				return printJSON(cmd.OutOrStdout(), map[string]string{
					"url":    resp.URL,
					"job_id": resp.JobID,
				})
			}

			st, err := archiver.Watch(cmd.Context(), client, resp.JobID, cf.interval, func(p spn.CapturePending) {
				fmt.Fprintf(cmd.ErrOrStderr(), "pending %s: %d resources\n", resp.JobID, len(p.Resources))
			})
			if err != nil {
				return err
			}
			if err := printJSON(cmd.OutOrStdout(), statusView(resp.JobID, st)); err != nil {
				return err
			}
			if e, ok := st.(spn.CaptureError); ok {
				return fmt.Errorf("capture failed: %s", e.StatusExt)
			}
			return nil
		},
	}

	f := cmd.Flags()
	f.BoolVar(&cf.wait, "wait", false, "poll until the job finishes")
	f.DurationVar(&cf.interval, "interval", archiver.DefaultPollInterval, "poll interval with --wait")
	f.BoolVar(&cf.opts.CaptureAll, "capture-all", false, "capture error pages (4xx/5xx) too")
	f.BoolVar(&cf.opts.CaptureOutlinks, "capture-outlinks", false, "also capture the page's outlinks")
	f.BoolVar(&cf.opts.CaptureScreenshot, "capture-screenshot", false, "store a PNG screenshot")
	f.BoolVar(&cf.opts.DelayWBAvailability, "delay-wb-availability", false, "make the capture available after about 12 hours")
	f.BoolVar(&cf.opts.ForceGet, "force-get", false, "skip the headless browser")
	f.BoolVar(&cf.opts.SkipFirstArchive, "skip-first-archive", false, "skip the first-archive check")
	f.BoolVar(&cf.opts.OutlinksAvailability, "outlinks-availability", false, "report outlink availability")
	f.BoolVar(&cf.opts.EmailResult, "email-result", false, "email the result to the account owner")
	f.DurationVar(&cf.ifNotArchivedWithin, "if-not-archived-within", 0, "skip if archived within this window")
	f.DurationVar(&cf.jsBehaviorTimeout, "js-behavior-timeout", 0, "JS behavior run time (0 disables)")
	f.StringVar(&cf.opts.CaptureCookie, "capture-cookie", "", "cookie sent with the capture")
	f.StringVar(&cf.opts.UseUserAgent, "user-agent", "", "user agent used for the capture")
	f.StringVar(&cf.opts.TargetUsername, "target-username", "", "login username for the target site")
	f.StringVar(&cf.opts.TargetPassword, "target-password", "", "login password for the target site")
	return cmd
}

// statusView flattens a capture status for printing.
func statusView(jobID string, st spn.CaptureStatus) map[string]any {
	out := map[string]any{
		"job_id": jobID,
		"status": st.Status(),
	}
	switch s := st.(type) {
	case spn.CapturePending:
		out["resources"] = s.Resources
	case spn.CaptureError:
		out["status_ext"] = s.StatusExt
		out["message"] = s.Message
		if s.Exception != nil {
			out["exception"] = *s.Exception
		}
		out["resources"] = s.Resources
	case spn.CaptureSuccess:
		out["original_url"] = s.OriginalURL
		out["timestamp"] = s.Timestamp
		out["archive_url"] = s.ArchiveURL()
		out["duration_sec"] = s.DurationSec
		if s.Screenshot != nil {
			out["screenshot"] = *s.Screenshot
		}
		out["resources"] = s.Resources
		out["outlinks"] = s.Outlinks
	}
	return out
}
