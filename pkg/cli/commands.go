package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/platinummonkey/communityhub/pkg/auth"
	"github.com/platinummonkey/communityhub/pkg/identity"
	"github.com/platinummonkey/communityhub/pkg/landing"
	"github.com/platinummonkey/communityhub/pkg/orgs"
)

func newMigrateCommand(b *Backend) *Command {
	cmd := &Command{
		Name:        "migrate",
		Description: "Apply pending database migrations",
		Flags:       newFlagSet("migrate", b.Out),
	}
	cmd.Run = func(args []string) error {
		if err := parseFlags(cmd.Flags, args); err != nil {
			return err
		}
		if b.Migrate == nil {
			return fmt.Errorf("migrations are not configured")
		}
		if err := b.Migrate(context.Background()); err != nil {
			return err
		}
		fmt.Fprintln(b.Out, "Migrations applied")
		return nil
	}
	return cmd
}

func newOrgCreateCommand(b *Backend) *Command {
	cmd := &Command{
		Name:        "org-create",
		Description: "Create an organization",
		Flags:       newFlagSet("org-create", b.Out),
	}
	name := cmd.Flags.String("name", "", "Organization name")
	slug := cmd.Flags.String("slug", "", "URL slug (derived from the name when empty)")
	approve := cmd.Flags.Bool("approve", false, "Create the organization already approved")

	cmd.Run = func(args []string) error {
		if err := parseFlags(cmd.Flags, args); err != nil {
			return err
		}
		if strings.TrimSpace(*name) == "" {
			return fmt.Errorf("name is required")
		}

		org := &orgs.Organization{Name: *name, Slug: *slug}
		if *approve {
			org.Status = orgs.OrgStatusApproved
		}
		if err := b.Orgs.CreateOrganization(context.Background(), org); err != nil {
			return err
		}
		fmt.Fprintf(b.Out, "Created organization %s (%s) status=%s\n", org.Slug, org.ID, org.Status)
		return nil
	}
	return cmd
}

func newOrgStatusCommand(b *Backend) *Command {
	cmd := &Command{
		Name:        "org-status",
		Description: "Set an organization's approval status",
		Flags:       newFlagSet("org-status", b.Out),
	}
	slug := cmd.Flags.String("org", "", "Organization slug")
	status := cmd.Flags.String("status", "", "pending, approved or rejected")

	cmd.Run = func(args []string) error {
		if err := parseFlags(cmd.Flags, args); err != nil {
			return err
		}
		st := orgs.OrgStatus(*status)
		if !st.Valid() {
			return fmt.Errorf("invalid status: %q", *status)
		}

		ctx := context.Background()
		org, err := lookupOrg(ctx, b, *slug)
		if err != nil {
			return err
		}
		if err := b.Orgs.SetStatus(ctx, org.ID, st); err != nil {
			return err
		}
		fmt.Fprintf(b.Out, "Organization %s status=%s\n", org.Slug, st)
		return nil
	}
	return cmd
}

func newOrgActiveCommand(b *Backend) *Command {
	cmd := &Command{
		Name:        "org-active",
		Description: "Activate or deactivate an organization",
		Flags:       newFlagSet("org-active", b.Out),
	}
	slug := cmd.Flags.String("org", "", "Organization slug")
	active := cmd.Flags.Bool("active", true, "Whether the organization is active")

	cmd.Run = func(args []string) error {
		if err := parseFlags(cmd.Flags, args); err != nil {
			return err
		}

		ctx := context.Background()
		org, err := lookupOrg(ctx, b, *slug)
		if err != nil {
			return err
		}
		if err := b.Orgs.SetActive(ctx, org.ID, *active); err != nil {
			return err
		}
		fmt.Fprintf(b.Out, "Organization %s active=%t\n", org.Slug, *active)
		return nil
	}
	return cmd
}

func newMemberAddCommand(b *Backend) *Command {
	cmd := &Command{
		Name:        "member-add",
		Description: "Grant a user a relation in an organization",
		Flags:       newFlagSet("member-add", b.Out),
	}
	slug := cmd.Flags.String("org", "", "Organization slug")
	user := cmd.Flags.String("user", "", "User ID")
	role := cmd.Flags.String("role", string(orgs.RelationMember), "owner, delegate or member")

	cmd.Run = func(args []string) error {
		if err := parseFlags(cmd.Flags, args); err != nil {
			return err
		}
		if *user == "" {
			return fmt.Errorf("user is required")
		}

		ctx := context.Background()
		org, err := lookupOrg(ctx, b, *slug)
		if err != nil {
			return err
		}
		if err := b.Orgs.AddRelation(ctx, org.ID, *user, orgs.Relation(*role)); err != nil {
			return err
		}
		fmt.Fprintf(b.Out, "User %s is now %s of %s\n", *user, *role, org.Slug)
		return nil
	}
	return cmd
}

func newMemberRemoveCommand(b *Backend) *Command {
	cmd := &Command{
		Name:        "member-remove",
		Description: "Remove a user from an organization",
		Flags:       newFlagSet("member-remove", b.Out),
	}
	slug := cmd.Flags.String("org", "", "Organization slug")
	user := cmd.Flags.String("user", "", "User ID")

	cmd.Run = func(args []string) error {
		if err := parseFlags(cmd.Flags, args); err != nil {
			return err
		}
		if *user == "" {
			return fmt.Errorf("user is required")
		}

		ctx := context.Background()
		org, err := lookupOrg(ctx, b, *slug)
		if err != nil {
			return err
		}
		if err := b.Orgs.RemoveRelation(ctx, org.ID, *user); err != nil {
			return err
		}
		fmt.Fprintf(b.Out, "User %s removed from %s\n", *user, org.Slug)
		return nil
	}
	return cmd
}

func newSeedGroupsCommand(b *Backend) *Command {
	cmd := &Command{
		Name:        "seed-groups",
		Description: "Install the system permission groups in an organization",
		Flags:       newFlagSet("seed-groups", b.Out),
	}
	slug := cmd.Flags.String("org", "", "Organization slug")

	cmd.Run = func(args []string) error {
		if err := parseFlags(cmd.Flags, args); err != nil {
			return err
		}

		ctx := context.Background()
		org, err := lookupOrg(ctx, b, *slug)
		if err != nil {
			return err
		}
		if err := b.Groups.SeedSystemGroups(ctx, org.ID); err != nil {
			return err
		}
		fmt.Fprintf(b.Out, "System groups seeded in %s\n", org.Slug)
		return nil
	}
	return cmd
}

// whoisOutput is printed by the whois command
type whoisOutput struct {
	*identity.ResolvedIdentity
	LandingPath string `json:"landing_path"`
}

func newWhoisCommand(b *Backend) *Command {
	cmd := &Command{
		Name:        "whois",
		Description: "Show a user's resolved identity and landing path",
		Flags:       newFlagSet("whois", b.Out),
	}
	user := cmd.Flags.String("user", "", "User ID")

	cmd.Run = func(args []string) error {
		if err := parseFlags(cmd.Flags, args); err != nil {
			return err
		}
		if *user == "" {
			return fmt.Errorf("user is required")
		}

		id, err := b.Identities.ResolveIdentity(context.Background(), &auth.Principal{ID: *user})
		if err != nil {
			return fmt.Errorf("failed to resolve identity: %w", err)
		}

		enc := json.NewEncoder(b.Out)
		enc.SetIndent("", "  ")
		return enc.Encode(whoisOutput{ResolvedIdentity: id, LandingPath: landing.Path(id)})
	}
	return cmd
}

func lookupOrg(ctx context.Context, b *Backend, slug string) (*orgs.Organization, error) {
	if slug == "" {
		return nil, fmt.Errorf("org is required")
	}
	org, err := b.Orgs.GetOrganizationBySlug(ctx, slug)
	if err != nil {
		return nil, fmt.Errorf("organization %q: %w", slug, err)
	}
	return org, nil
}
