package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/wolfman30/ayurwell-scheduler/internal/directory"
)

func doctorsCmd(open openDirectory) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "doctors",
		Short: "Review and approve doctor registrations",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "pending",
		Short: "List doctors awaiting approval",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			svc, cleanup, err := open(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			doctors, err := svc.ListDoctors(ctx, directory.DoctorFilter{UnverifiedOnly: true})
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(doctors) == 0 {
				fmt.Fprintln(out, "no doctors awaiting approval")
				return nil
			}
			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tNAME\tSPECIALIZATION\tEXPERIENCE\tFEE\tREGISTERED")
			for _, d := range doctors {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%d yrs\t%d\t%s\n",
					d.ID, d.Name, d.Specialization, d.ExperienceYears, d.ConsultationFee, d.CreatedAt.Format("2006-01-02"))
			}
			return tw.Flush()
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "approve <doctor-id>",
		Short: "Mark a doctor as verified so patients can book them",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			svc, cleanup, err := open(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			doc, err := svc.ApproveDoctor(ctx, args[0])
			if err != nil {
				return fmt.Errorf("approve %s: %w", args[0], err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "approved %s (%s)\n", doc.Name, doc.ID)
			return nil
		},
	})
	return cmd
}
