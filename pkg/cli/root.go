package cli

import (
	"context"
	"flag"
	"fmt"
	"io"
	"sort"

	"github.com/platinummonkey/communityhub/pkg/identity"
	"github.com/platinummonkey/communityhub/pkg/orgs"
)

// Command represents a CLI command
type Command struct {
	Name        string
	Description string
	Run         func(args []string) error
	Subcommands map[string]*Command
	Flags       *flag.FlagSet
}

// GroupSeeder installs the system permission groups in an organization
type GroupSeeder interface {
	SeedSystemGroups(ctx context.Context, organizationID string) error
}

// Backend is what the admin commands operate on
type Backend struct {
	Orgs       orgs.Service
	Groups     GroupSeeder
	Identities identity.Provider
	Migrate    func(ctx context.Context) error
	Out        io.Writer
}

// NewRootCommand creates the root command
func NewRootCommand(b *Backend) *Command {
	root := &Command{
		Name:        "communityhub-admin",
		Description: "communityhub - tenant administration CLI",
		Subcommands: make(map[string]*Command),
		Flags:       flag.NewFlagSet("communityhub-admin", flag.ContinueOnError),
	}

	// Add subcommands
	for _, cmd := range []*Command{
		newMigrateCommand(b),
		newOrgCreateCommand(b),
		newOrgStatusCommand(b),
		newOrgActiveCommand(b),
		newMemberAddCommand(b),
		newMemberRemoveCommand(b),
		newSeedGroupsCommand(b),
		newWhoisCommand(b),
	} {
		root.Subcommands[cmd.Name] = cmd
	}

	return root
}

// Execute runs the subcommand named by the first argument
func (c *Command) Execute(out io.Writer, args []string) error {
	if len(args) == 0 {
		return c.usage(out)
	}

	// Check for help flag
	if args[0] == "-h" || args[0] == "--help" {
		return c.usage(out)
	}

	// Check for subcommand
	if subcmd, ok := c.Subcommands[args[0]]; ok {
		return subcmd.Run(args[1:])
	}

	return fmt.Errorf("unknown command: %s", args[0])
}

// usage prints the command usage
func (c *Command) usage(out io.Writer) error {
	fmt.Fprintf(out, "Usage: %s <command> [args]\n\n", c.Name)
	fmt.Fprintf(out, "Commands:\n")

	names := make([]string, 0, len(c.Subcommands))
	for name := range c.Subcommands {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(out, "  %-15s %s\n", name, c.Subcommands[name].Description)
	}
	return nil
}

// newFlagSet returns a flag set that reports errors instead of exiting
func newFlagSet(name string, out io.Writer) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	if out != nil {
		fs.SetOutput(out)
	}
	return fs
}

// parseFlags resets the flag set to its defaults before parsing, so a
// command can run more than once in one process
func parseFlags(fs *flag.FlagSet, args []string) error {
	fs.VisitAll(func(f *flag.Flag) {
		_ = f.Value.Set(f.DefValue)
	})
	return fs.Parse(args)
}
