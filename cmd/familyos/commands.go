package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/pflag"

	"github.com/dukerupert/familyos/internal/model"
	"github.com/dukerupert/familyos/internal/remote"
	"github.com/dukerupert/familyos/internal/shopping"
	"github.com/dukerupert/familyos/internal/store"
	"github.com/dukerupert/familyos/internal/tasks"
)

type command struct {
	Summary string
	Usage   string
	MinArgs int
	Flags   func(fs *pflag.FlagSet)
	Run     func(ctx context.Context, a *app, args []string) error
}

var commands = map[string]*command{
	"signup":         signupCommand(),
	"login":          loginCommand(),
	"logout":         logoutCommand(),
	"families":       familiesCommand(),
	"use":            useCommand(),
	"create-family":  createFamilyCommand(),
	"rename-family":  renameFamilyCommand(),
	"invite":         inviteCommand(),
	"invitations":    invitationsCommand(),
	"accept":         acceptCommand(),
	"decline":        declineCommand(),
	"members":        membersCommand(),
	"chat":           chatCommand(),
	"send":           sendCommand(),
	"delete-message": deleteMessageCommand(),
	"unread":         unreadCommand(),
	"shopping":       shoppingCommand(),
	"tasks":          tasksCommand(),
	"calendar":       calendarCommand(),
	"bills":          billsCommand(),
	"routines":       routinesCommand(),
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id %q", s)
	}
	return id, nil
}

// credentials reads email and password from flags, then the environment,
// then the terminal.
func (a *app) credentials(email, password string) (string, string, error) {
	var err error
	if email == "" {
		if email, err = a.prompt("Email: "); err != nil {
			return "", "", err
		}
	}
	if password == "" {
		password = os.Getenv("FAMILYOS_PASSWORD")
	}
	if password == "" {
		if password, err = a.prompt("Password: "); err != nil {
			return "", "", err
		}
	}
	if email == "" || password == "" {
		return "", "", errors.New("email and password are required")
	}
	return email, password, nil
}

func signupCommand() *command {
	var email, password, name string
	return &command{
		Summary: "Create an account and sign in",
		Usage:   "signup [--email addr] [--name name]",
		Flags: func(fs *pflag.FlagSet) {
			fs.StringVar(&email, "email", "", "account email")
			fs.StringVar(&password, "password", "", "account password (default: $FAMILYOS_PASSWORD or prompt)")
			fs.StringVar(&name, "name", "", "your name")
		},
		Run: func(ctx context.Context, a *app, args []string) error {
			email, password, err := a.credentials(email, password)
			if err != nil {
				return err
			}
			user, err := a.client.SignUp(ctx, email, password, name)
			if errors.Is(err, remote.ErrConflict) {
				return errors.New("that email is already registered; use 'familyos login'")
			}
			if err != nil {
				return err
			}
			if err := a.saveSession(ctx); err != nil {
				return err
			}
			if err := a.resolver.SetIdentity(ctx, user.ID); err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Signed up as %s.\n", user.Email)
			return nil
		},
	}
}

func loginCommand() *command {
	var email, password string
	return &command{
		Summary: "Sign in to the server",
		Usage:   "login [--email addr]",
		Flags: func(fs *pflag.FlagSet) {
			fs.StringVar(&email, "email", "", "account email")
			fs.StringVar(&password, "password", "", "account password (default: $FAMILYOS_PASSWORD or prompt)")
		},
		Run: func(ctx context.Context, a *app, args []string) error {
			email, password, err := a.credentials(email, password)
			if err != nil {
				return err
			}
			user, err := a.client.SignIn(ctx, email, password)
			if errors.Is(err, remote.ErrUnauthorized) {
				return errors.New("invalid email or password")
			}
			if err != nil {
				return err
			}
			if err := a.saveSession(ctx); err != nil {
				return err
			}
			// The saved selection survives only if this account belongs to it.
			if err := a.resolver.Load(ctx); err != nil {
				return err
			}
			if err := a.resolver.SetIdentity(ctx, user.ID); err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Signed in as %s.\n", user.Email)
			if m, ok := a.resolver.Active(); ok {
				fmt.Fprintf(a.out, "Active family: %s\n", m.FamilyName)
			}
			return nil
		},
	}
}

func logoutCommand() *command {
	return &command{
		Summary: "Sign out and forget the active family",
		Usage:   "logout",
		Run: func(ctx context.Context, a *app, args []string) error {
			if err := a.prefs.Delete(ctx, store.PrefSessionToken); err != nil {
				return err
			}
			a.client.SetToken("")
			if err := a.resolver.SetIdentity(ctx, 0); err != nil {
				return err
			}
			fmt.Fprintln(a.out, "Signed out.")
			return nil
		},
	}
}

func familiesCommand() *command {
	return &command{
		Summary: "List your families; * marks the active one",
		Usage:   "families",
		Run: func(ctx context.Context, a *app, args []string) error {
			if _, err := a.signedIn(ctx); err != nil {
				return err
			}
			list := a.resolver.Available()
			if len(list) == 0 {
				fmt.Fprintln(a.out, "You are not in any family yet.")
				return nil
			}
			current := a.resolver.Current()
			tw := tabwriter.NewWriter(a.out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "\tID\tNAME\tROLE\tAS")
			for _, m := range list {
				mark := ""
				if m.FamilyID == current {
					mark = "*"
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", mark, m.FamilyID, m.FamilyName, m.Role, m.DisplayName)
			}
			return tw.Flush()
		},
	}
}

func useCommand() *command {
	return &command{
		Summary: "Make a family the active one",
		Usage:   "use <family-id>",
		MinArgs: 1,
		Run: func(ctx context.Context, a *app, args []string) error {
			if _, err := a.signedIn(ctx); err != nil {
				return err
			}
			if !a.resolver.Select(ctx, args[0]) {
				return fmt.Errorf("you are not an active member of %q", args[0])
			}
			m, _ := a.resolver.Active()
			fmt.Fprintf(a.out, "Active family: %s\n", m.FamilyName)
			return nil
		},
	}
}

func createFamilyCommand() *command {
	var displayName string
	return &command{
		Summary: "Create a family you own",
		Usage:   "create-family <name> [--as display-name]",
		MinArgs: 1,
		Flags: func(fs *pflag.FlagSet) {
			fs.StringVar(&displayName, "as", "", "your display name in the family")
		},
		Run: func(ctx context.Context, a *app, args []string) error {
			if _, err := a.signedIn(ctx); err != nil {
				return err
			}
			fam, _, err := a.client.CreateFamily(ctx, strings.Join(args, " "), displayName)
			if err != nil {
				return err
			}
			if err := a.resolver.Refresh(ctx); err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Created %s (%s).\n", fam.Name, fam.ID)
			if a.resolver.Current() != fam.ID {
				fmt.Fprintf(a.out, "Run 'familyos use %s' to switch to it.\n", fam.ID)
			}
			return nil
		},
	}
}

func renameFamilyCommand() *command {
	return &command{
		Summary: "Rename the active family",
		Usage:   "rename-family <name>",
		MinArgs: 1,
		Run: func(ctx context.Context, a *app, args []string) error {
			m, err := a.activeMember(ctx)
			if err != nil {
				return err
			}
			fam, err := a.client.RenameFamily(ctx, m.FamilyID, strings.Join(args, " "))
			if errors.Is(err, remote.ErrForbidden) {
				return errors.New("only owners and admins can rename the family")
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Renamed %s to %s.\n", m.FamilyName, fam.Name)
			return nil
		},
	}
}

func inviteCommand() *command {
	var role string
	return &command{
		Summary: "Invite someone to the active family by email",
		Usage:   "invite <email> [--role admin|adult|child]",
		MinArgs: 1,
		Flags: func(fs *pflag.FlagSet) {
			fs.StringVar(&role, "role", string(model.RoleAdult), "role for the new member")
		},
		Run: func(ctx context.Context, a *app, args []string) error {
			m, err := a.activeMember(ctx)
			if err != nil {
				return err
			}
			inv, err := a.client.Invite(ctx, m.FamilyID, args[0], model.Role(role))
			if errors.Is(err, remote.ErrConflict) {
				return fmt.Errorf("%s is already a member or invited", args[0])
			}
			if errors.Is(err, remote.ErrForbidden) {
				return errors.New("only owners and admins can invite")
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Invited %s to %s as %s.\n", inv.Email, m.FamilyName, inv.Role)
			return nil
		},
	}
}

func invitationsCommand() *command {
	return &command{
		Summary: "List invitations waiting for you",
		Usage:   "invitations",
		Run: func(ctx context.Context, a *app, args []string) error {
			if _, err := a.signedIn(ctx); err != nil {
				return err
			}
			list, err := a.client.Invitations(ctx)
			if err != nil {
				return err
			}
			if len(list) == 0 {
				fmt.Fprintln(a.out, "No pending invitations.")
				return nil
			}
			tw := tabwriter.NewWriter(a.out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tFAMILY\tROLE")
			for _, inv := range list {
				fmt.Fprintf(tw, "%d\t%s\t%s\n", inv.ID, inv.FamilyName, inv.Role)
			}
			return tw.Flush()
		},
	}
}

func acceptCommand() *command {
	var displayName string
	return &command{
		Summary: "Accept an invitation",
		Usage:   "accept <invitation-id> [--as display-name]",
		MinArgs: 1,
		Flags: func(fs *pflag.FlagSet) {
			fs.StringVar(&displayName, "as", "", "your display name in the family")
		},
		Run: func(ctx context.Context, a *app, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			if _, err := a.signedIn(ctx); err != nil {
				return err
			}
			m, err := a.client.AcceptInvitation(ctx, id, displayName)
			if errors.Is(err, remote.ErrNotFound) {
				return errors.New("no such invitation")
			}
			if err != nil {
				return err
			}
			if err := a.resolver.Refresh(ctx); err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Joined %s.\n", m.FamilyName)
			return nil
		},
	}
}

func declineCommand() *command {
	return &command{
		Summary: "Decline an invitation",
		Usage:   "decline <invitation-id>",
		MinArgs: 1,
		Run: func(ctx context.Context, a *app, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			if _, err := a.signedIn(ctx); err != nil {
				return err
			}
			if err := a.client.DeclineInvitation(ctx, id); err != nil {
				return err
			}
			fmt.Fprintln(a.out, "Invitation declined.")
			return nil
		},
	}
}

func membersCommand() *command {
	return &command{
		Summary: "List the members of the active family",
		Usage:   "members",
		Run: func(ctx context.Context, a *app, args []string) error {
			m, err := a.activeMember(ctx)
			if err != nil {
				return err
			}
			list, err := a.client.Members(ctx, m.FamilyID)
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(a.out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tNAME\tROLE\tSTATUS")
			for _, mem := range list {
				name := mem.DisplayName
				if name == "" {
					name = mem.Email
				}
				fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", mem.ID, name, mem.Role, mem.Status)
			}
			return tw.Flush()
		},
	}
}

func deleteMessageCommand() *command {
	return &command{
		Summary: "Delete a chat message",
		Usage:   "delete-message <message-id>",
		MinArgs: 1,
		Run: func(ctx context.Context, a *app, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			m, err := a.activeMember(ctx)
			if err != nil {
				return err
			}
			if err := a.client.DeleteMessage(ctx, m.FamilyID, id); err != nil {
				return err
			}
			fmt.Fprintln(a.out, "Message deleted.")
			return nil
		},
	}
}

func unreadCommand() *command {
	return &command{
		Summary: "Count unread messages in the active family",
		Usage:   "unread",
		Run: func(ctx context.Context, a *app, args []string) error {
			m, err := a.activeMember(ctx)
			if err != nil {
				return err
			}
			n, err := a.client.Unread(ctx, m.FamilyID)
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "%d unread in %s\n", n, m.FamilyName)
			return nil
		},
	}
}

func shoppingCommand() *command {
	var quantity string
	return &command{
		Summary: "Show or change the shopping list",
		Usage:   "shopping [add <name> [--qty q] | check <id> | remove <id> | clear]",
		Flags: func(fs *pflag.FlagSet) {
			fs.StringVar(&quantity, "qty", "", "quantity for a new item")
		},
		Run: func(ctx context.Context, a *app, args []string) error {
			m, err := a.activeMember(ctx)
			if err != nil {
				return err
			}
			if len(args) > 0 {
				if err := shoppingAction(ctx, a, m.FamilyID, quantity, args); err != nil {
					return err
				}
			}
			items, err := a.client.ShoppingList(ctx, m.FamilyID)
			if err != nil {
				return err
			}
			printShopping(a, items)
			return nil
		},
	}
}

func shoppingAction(ctx context.Context, a *app, familyID, quantity string, args []string) error {
	switch args[0] {
	case "add":
		if len(args) < 2 {
			return errors.New("usage: shopping add <name>")
		}
		_, err := a.client.AddShoppingItem(ctx, familyID, strings.Join(args[1:], " "), quantity, "")
		return err
	case "check", "remove":
		if len(args) < 2 {
			return fmt.Errorf("usage: shopping %s <id>", args[0])
		}
		id, err := parseID(args[1])
		if err != nil {
			return err
		}
		if args[0] == "check" {
			_, err = a.client.ToggleShoppingItem(ctx, familyID, id)
			return err
		}
		return a.client.DeleteShoppingItem(ctx, familyID, id)
	case "clear":
		_, err := a.client.ClearChecked(ctx, familyID)
		return err
	}
	return fmt.Errorf("unknown shopping action %q", args[0])
}

func printShopping(a *app, items []model.ShoppingItem) {
	if len(items) == 0 {
		fmt.Fprintln(a.out, "The shopping list is empty.")
		return
	}
	for _, sec := range shopping.Group(items) {
		fmt.Fprintf(a.out, "%s (%d)\n", sec.Category, sec.Open)
		for _, it := range sec.Items {
			box := "[ ]"
			if it.Checked {
				box = "[x]"
			}
			line := fmt.Sprintf("  %s %4d  %s", box, it.ID, it.Name)
			if it.Quantity != "" {
				line += " (" + it.Quantity + ")"
			}
			fmt.Fprintln(a.out, line)
		}
	}
}

func tasksCommand() *command {
	var (
		notes    string
		due      string
		assignee int64
		open     bool
		mine     bool
	)
	return &command{
		Summary: "Show or change the family task list",
		Usage:   "tasks [add <title> [--due YYYY-MM-DD] [--assignee member-id] | done <id> | remove <id>] [--open] [--mine]",
		Flags: func(fs *pflag.FlagSet) {
			fs.StringVar(&notes, "notes", "", "notes for a new task")
			fs.StringVar(&due, "due", "", "due date for a new task (YYYY-MM-DD)")
			fs.Int64Var(&assignee, "assignee", 0, "member id to assign a new task to")
			fs.BoolVar(&open, "open", false, "only show open tasks")
			fs.BoolVar(&mine, "mine", false, "only show tasks assigned to you")
		},
		Run: func(ctx context.Context, a *app, args []string) error {
			m, err := a.activeMember(ctx)
			if err != nil {
				return err
			}

			if len(args) > 0 {
				switch args[0] {
				case "add":
					if len(args) < 2 {
						return errors.New("usage: tasks add <title>")
					}
					t := remote.NewTask{Title: strings.Join(args[1:], " "), Notes: notes}
					if assignee != 0 {
						t.AssigneeID = &assignee
					}
					if due != "" {
						d, err := time.ParseInLocation("2006-01-02", due, time.Local)
						if err != nil {
							return fmt.Errorf("invalid --due %q: want YYYY-MM-DD", due)
						}
						d = d.Add(24*time.Hour - time.Second)
						t.DueAt = &d
					}
					if _, err := a.client.AddTask(ctx, m.FamilyID, t); err != nil {
						return err
					}
				case "done", "remove":
					if len(args) < 2 {
						return fmt.Errorf("usage: tasks %s <id>", args[0])
					}
					id, err := parseID(args[1])
					if err != nil {
						return err
					}
					if args[0] == "done" {
						_, err = a.client.ToggleTask(ctx, m.FamilyID, id)
					} else {
						err = a.client.DeleteTask(ctx, m.FamilyID, id)
					}
					if err != nil {
						return err
					}
				default:
					return fmt.Errorf("unknown tasks action %q", args[0])
				}
			}

			list, err := a.client.Tasks(ctx, m.FamilyID)
			if err != nil {
				return err
			}
			members, err := a.client.Members(ctx, m.FamilyID)
			if err != nil {
				return err
			}

			var f tasks.Filter
			if open {
				f.Status = tasks.Open
			}
			if mine {
				f.Assignee = &m.ID
			}
			printTasks(a, tasks.GroupByAssignee(f.Apply(list), members), time.Now())
			return nil
		},
	}
}

func printTasks(a *app, groups []tasks.Group, now time.Time) {
	if len(groups) == 0 {
		fmt.Fprintln(a.out, "No tasks.")
		return
	}
	for _, g := range groups {
		fmt.Fprintln(a.out, g.Name)
		for _, t := range g.Tasks {
			box := "[ ]"
			if t.Done {
				box = "[x]"
			}
			line := fmt.Sprintf("  %s %4d  %s", box, t.ID, t.Title)
			if t.DueAt != nil {
				line += "  due " + t.DueAt.Local().Format("Mon Jan 2")
			}
			if tasks.Overdue(t, now) {
				line += "  (overdue)"
			}
			fmt.Fprintln(a.out, line)
		}
	}
}
