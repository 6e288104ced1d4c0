package main

import (
	"encoding/json"
	"os"
	"time"

	"sparkboard/internal/discovery"

	"github.com/spf13/cobra"
)

func infoCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "info <session-id>",
		Short: "Show a session's participants and elements",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, _, _, err := newClient()
			if err != nil {
				return err
			}
			defer c.Close()

			session, err := c.GetSession(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			if asJSON {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(session)
			}

			success("Session %s", session.SessionID)
			info("Participants: %d", session.ParticipantCount)
			info("Elements:     %d", len(session.Elements))
			if bounds, ok := session.Elements.Bounds(); ok {
				info("Extent:       %.0f×%.0f", bounds.Width(), bounds.Height())
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the raw session JSON")

	return cmd
}

func discoverCmd() *cobra.Command {
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "discover",
		Short: "List relays advertising on the local network",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			info("Browsing %s for %s...", discovery.ServiceType, timeout)

			relays, err := discovery.Browse(timeout)
			if err != nil {
				return err
			}
			if len(relays) == 0 {
				warn("No relays found")
				return nil
			}

			for _, r := range relays {
				success("%s  http://%s", r.Instance, r.Addr)
			}
			return nil
		},
	}

	cmd.Flags().DurationVarP(&timeout, "timeout", "t", 2*time.Second, "How long to listen for answers")

	return cmd
}
