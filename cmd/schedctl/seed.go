package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/wolfman30/ayurwell-scheduler/internal/calendar"
	"github.com/wolfman30/ayurwell-scheduler/internal/directory"
)

func weekly(start, end string, days ...time.Weekday) []directory.WeeklyWindow {
	windows := make([]directory.WeeklyWindow, 0, len(days))
	for _, day := range days {
		windows = append(windows, directory.WeeklyWindow{
			Day:   directory.Weekday(day),
			Start: calendar.MustClock(start),
			End:   calendar.MustClock(end),
		})
	}
	return windows
}

var demoDoctors = []directory.RegisterDoctorRequest{
	{
		Name:            "Dr. Anjali Sharma",
		Email:           "anjali.sharma@ayurwell.com",
		Phone:           "+91 98765 43210",
		Specialization:  "Ayurvedic Medicine",
		ExperienceYears: 15,
		Qualifications:  []string{"BAMS", "MD (Ayurveda)"},
		About:           "Specialist in Panchakarma therapy and chronic disease management through Ayurveda.",
		ConsultationFee: 800,
		Availability:    weekly("09:00", "17:00", time.Monday, time.Wednesday, time.Friday),
	},
	{
		Name:            "Dr. Rajesh Patel",
		Email:           "rajesh.patel@ayurwell.com",
		Phone:           "+91 98765 43211",
		Specialization:  "Panchakarma Specialist",
		ExperienceYears: 20,
		Qualifications:  []string{"BAMS", "PhD (Panchakarma)"},
		About:           "Expert in detoxification therapies and rejuvenation treatments.",
		ConsultationFee: 1000,
		Availability: append(
			weekly("10:00", "18:00", time.Tuesday, time.Thursday),
			weekly("10:00", "14:00", time.Saturday)...,
		),
	},
	{
		Name:            "Dr. Priya Gupta",
		Email:           "priya.gupta@ayurwell.com",
		Phone:           "+91 98765 43212",
		Specialization:  "Women's Health",
		ExperienceYears: 12,
		Qualifications:  []string{"BAMS", "Diploma in Gynecology"},
		About:           "Focused on women's health issues, hormonal balance, and prenatal care through Ayurveda.",
		ConsultationFee: 700,
		Availability:    weekly("10:00", "16:00", time.Monday, time.Wednesday, time.Friday),
	},
}

func seedCmd(open openDirectory) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Register the demo doctors",
		Long:  "Registers the demo doctor roster. Doctors whose email already exists are skipped, so the command can be re-run.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			approve, _ := cmd.Flags().GetBool("approve")
			ctx := cmd.Context()
			svc, cleanup, err := open(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			existing, err := svc.ListDoctors(ctx, directory.DoctorFilter{IncludeUnverified: true})
			if err != nil {
				return err
			}
			known := make(map[string]bool, len(existing))
			for _, d := range existing {
				known[strings.ToLower(d.Email)] = true
			}

			out := cmd.OutOrStdout()
			for _, req := range demoDoctors {
				if known[strings.ToLower(req.Email)] {
					fmt.Fprintf(out, "skipped %s (already registered)\n", req.Name)
					continue
				}
				doc, err := svc.RegisterDoctor(ctx, req)
				if err != nil {
					return fmt.Errorf("register %s: %w", req.Name, err)
				}
				if approve {
					if doc, err = svc.ApproveDoctor(ctx, doc.ID); err != nil {
						return fmt.Errorf("approve %s: %w", req.Name, err)
					}
				}
				fmt.Fprintf(out, "seeded %s (%s) verified=%v\n", doc.Name, doc.ID, doc.Verified)
			}
			return nil
		},
	}
	cmd.Flags().Bool("approve", true, "Approve seeded doctors immediately")
	return cmd
}
