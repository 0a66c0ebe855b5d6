package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dmitrymomot/warden/pkg/csrf"
)

var errTokenRejected = errors.New("token rejected")

func newRouteCmd(f *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "route <path> [dir]",
		Short: "Resolve a virtual path to its location on disk",
		Long: `Resolve a virtual path the way the runtime does. A leading "~" uses the
rest of the path as-is, "_plugin/..." points into the plugin's directory and
anything else is placed under dir (default root).`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := f.open(cmd)
			if err != nil {
				return err
			}
			defer rt.Close()

			dir := "root"
			if len(args) == 2 {
				dir = args[1]
			}
			target := rt.Paths.Route(args[0], dir)
			st := rt.Paths.Exists(cmd.Context(), target)

			out := struct {
				Path   string `json:"path"`
				Dir    string `json:"dir"`
				Target string `json:"target"`
				Exists bool   `json:"exists"`
				Size   int64  `json:"size"`
			}{args[0], dir, target, st.Exists, st.Size}

			return f.print(cmd.OutOrStdout(), out, func(w io.Writer) error {
				_, err := fmt.Fprintln(w, target)
				return err
			})
		},
	}
}

type fingerprintFlags struct {
	ip        string
	userAgent string
}

func (ff *fingerprintFlags) bind(cmd *cobra.Command) {
	cmd.Flags().StringVar(&ff.ip, "ip", "127.0.0.1", "client IP the token is bound to")
	cmd.Flags().StringVar(&ff.userAgent, "ua", "", "client user agent the token is bound to")
}

func (ff *fingerprintFlags) fingerprint() csrf.Fingerprint {
	return csrf.NewFingerprint(ff.ip, ff.userAgent)
}

func newCSRFCmd(f *rootFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "csrf",
		Short: "Issue and verify CSRF tokens with the configured secret",
	}

	issueFP := &fingerprintFlags{}
	issue := &cobra.Command{
		Use:   "issue",
		Short: "Issue a token for a client",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := f.open(cmd)
			if err != nil {
				return err
			}
			defer rt.Close()

			tok, err := rt.CSRF.Issue(issueFP.fingerprint())
			if err != nil {
				return err
			}
			return f.print(cmd.OutOrStdout(), map[string]string{"token": tok.String()}, func(w io.Writer) error {
				_, err := fmt.Fprintln(w, tok)
				return err
			})
		},
	}
	issueFP.bind(issue)

	verifyFP := &fingerprintFlags{}
	verify := &cobra.Command{
		Use:   "verify <token>",
		Short: "Verify a token for a client; exits non-zero when it is invalid",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := f.open(cmd)
			if err != nil {
				return err
			}
			defer rt.Close()

			status := rt.CSRF.Verify(cmd.Context(), verifyFP.fingerprint(), csrf.Token(args[0]))
			err = f.print(cmd.OutOrStdout(), map[string]string{"status": status.String()}, func(w io.Writer) error {
				_, err := fmt.Fprintln(w, status)
				return err
			})
			if err != nil {
				return err
			}
			if !status.OK() {
				return errTokenRejected
			}
			return nil
		},
	}
	verifyFP.bind(verify)

	cmd.AddCommand(issue, verify)
	return cmd
}

func newAuditCmd(f *rootFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Read and write audit logs",
	}

	var n int
	tail := &cobra.Command{
		Use:   "tail [name]",
		Short: "Print the last records of an audit log",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := f.open(cmd)
			if err != nil {
				return err
			}
			defer rt.Close()

			name := ""
			if len(args) == 1 {
				name = args[0]
			}
			recs, err := rt.Audit.Tail(name, n)
			if err != nil {
				return err
			}
			if recs == nil {
				recs = []map[string]any{}
			}
			return f.print(cmd.OutOrStdout(), recs, func(w io.Writer) error {
				enc := json.NewEncoder(w)
				for _, rec := range recs {
					if err := enc.Encode(rec); err != nil {
						return err
					}
				}
				return nil
			})
		},
	}
	tail.Flags().IntVarP(&n, "lines", "n", 10, "number of records, 0 for all")

	write := &cobra.Command{
		Use:   "write <name> <json-object>",
		Short: "Append a record to an audit log",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var payload map[string]any
			dec := json.NewDecoder(strings.NewReader(args[1]))
			dec.UseNumber()
			if err := dec.Decode(&payload); err != nil {
				return fmt.Errorf("parse payload: %w", err)
			}

			rt, err := f.open(cmd)
			if err != nil {
				return err
			}
			defer rt.Close()

			return rt.Audit.Append(cmd.Context(), args[0], payload)
		},
	}

	cmd.AddCommand(tail, write)
	return cmd
}
