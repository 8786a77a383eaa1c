package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"closelink/internal/app"
	"closelink/internal/domain"
)

func profileCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "profile",
		Short: "Manage the local profile",
	}
	cmd.AddCommand(profileInitCmd(), profileShowCmd())
	return cmd
}

func profileInitCmd() *cobra.Command {
	var (
		name      string
		age       int
		sex       string
		interests []string
		bio       string
		handle    string
		prefSexes []string
		ageMin    int
		ageMax    int
	)
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create the local profile and device identity",
		RunE: func(cmd *cobra.Command, args []string) error {
			if passphrase == "" {
				return fmt.Errorf("passphrase required (-p)")
			}
			if name == "" || age == 0 {
				return fmt.Errorf("--name and --age are required")
			}

			genders := make([]domain.Sex, 0, len(prefSexes))
			for _, g := range prefSexes {
				genders = append(genders, domain.Sex(strings.ToLower(g)))
			}
			p := domain.Profile{
				IDLocal: "local-" + strings.ToLower(name),
				Name:    name,
				Age:     age,
				Sex:     domain.Sex(strings.ToLower(sex)),
				Preference: domain.Preference{
					Genders: genders,
					AgeMin:  ageMin,
					AgeMax:  ageMax,
				},
				Interests: interests,
				Bio:       bio,
				Handle:    handle,
			}
			st := appCtx.Open(passphrase)
			if err := st.SaveProfile(p); err != nil {
				return err
			}
			d, err := app.EnsureDevice(st)
			if err != nil {
				return err
			}
			fmt.Printf("Profile created for %s.\nDevice id: %s\n", p.Name, d.StableID)
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "display name (local only)")
	cmd.Flags().IntVar(&age, "age", 0, "age in years")
	cmd.Flags().StringVar(&sex, "sex", "other", "male, female or other")
	cmd.Flags().StringSliceVar(&interests, "interests", nil, "interest tags, comma separated")
	cmd.Flags().StringVar(&bio, "bio", "", "short free-text bio")
	cmd.Flags().StringVar(&handle, "handle", "", "contact handle revealed only on mutual consent")
	cmd.Flags().StringSliceVar(&prefSexes, "prefer", nil, "preferred partner sexes; empty means no preference")
	cmd.Flags().IntVar(&ageMin, "age-min", 0, "preferred minimum partner age")
	cmd.Flags().IntVar(&ageMax, "age-max", 0, "preferred maximum partner age")
	return cmd
}

func profileShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the decrypted local profile",
		RunE: func(cmd *cobra.Command, args []string) error {
			if passphrase == "" {
				return fmt.Errorf("passphrase required (-p)")
			}
			p, ok, err := appCtx.Open(passphrase).LoadProfile()
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("no profile yet; run `closelink profile init` first")
			}
			fmt.Printf("%s, %d (%s)\n", p.Name, p.Age, p.Sex)
			if len(p.Interests) > 0 {
				fmt.Printf("interests: %s\n", strings.Join(p.Interests, ", "))
			}
			if p.Bio != "" {
				fmt.Printf("bio: %s\n", p.Bio)
			}
			if p.Handle != "" {
				fmt.Printf("handle: %s\n", p.Handle)
			}
			return nil
		},
	}
}
