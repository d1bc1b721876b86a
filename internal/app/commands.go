package app

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/nhle/deadliner/internal/credential"
	"github.com/nhle/deadliner/internal/model"
	"github.com/nhle/deadliner/internal/store"
	dsync "github.com/nhle/deadliner/internal/sync"
	"github.com/nhle/deadliner/internal/temporal"
	"github.com/nhle/deadliner/internal/theme"
)

func listCommand() *cli.Command {
	return &cli.Command{
		Name:    "list",
		Aliases: []string{"ls"},
		Usage:   "List deadlines, soonest first.",
		Action: withEnv(func(c *cli.Context, e *env) error {
			tr, err := e.browseTracker(c.Context)
			if err != nil {
				return err
			}
			renderList(e.out, tr.Deadlines(), e.view())
			return nil
		}),
	}
}

func showCommand() *cli.Command {
	return &cli.Command{
		Name:      "show",
		Usage:     "Show one deadline in detail.",
		ArgsUsage: "ID",
		Action: withEnv(func(c *cli.Context, e *env) error {
			id := c.Args().First()
			if id == "" {
				return errors.New("show requires a deadline ID")
			}
			tr, err := e.openTracker(c.Context)
			if err != nil {
				return err
			}

			tr.Select(id)
			d, ok := tr.SelectedDeadline()
			if !ok {
				return &store.NotFoundError{ID: id}
			}
			renderDetail(e.out, d, e.view())
			return nil
		}),
	}
}

func scheduleFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "course", Usage: "course name"},
		&cli.StringFlag{Name: "assignment", Usage: "assignment name"},
		&cli.StringFlag{Name: "date", Usage: "due date, YYYY-MM-DD"},
		&cli.StringFlag{Name: "time", Usage: "due time, HH:MM (24-hour)"},
		&cli.StringFlag{Name: "tz", Usage: "IANA timezone of the due date and time (default local)"},
	}
}

func addCommand() *cli.Command {
	return &cli.Command{
		Name:  "add",
		Usage: "Add a deadline. Missing fields are asked for interactively.",
		Flags: scheduleFlags(),
		Action: withEnv(func(c *cli.Context, e *env) error {
			b := &addBindings{
				course:     c.String("course"),
				assignment: c.String("assignment"),
				date:       c.String("date"),
				time:       c.String("time"),
				timezone:   c.String("tz"),
			}
			if !b.complete() {
				if err := runAddForm(b); err != nil {
					return err
				}
			}

			tr, err := e.openTracker(c.Context)
			if err != nil {
				return err
			}

			op, err := tr.Add(c.Context, model.CreateInput{
				CourseName:     b.course,
				AssignmentName: b.assignment,
				DueDate:        b.date,
				DueTime:        b.time,
				Timezone:       b.timezone,
			})
			if err != nil {
				return err
			}
			if err := op.Wait(c.Context); err != nil {
				return err
			}

			d, _ := tr.Get(op.ID())
			e.log.Info().Str("id", op.ID()).Str("dueAt", d.DueAt).Msg("deadline added")
			fmt.Fprintf(e.out, "Added %s (%s, %s)\n",
				op.ID(), e.view().dueLabel(d.DueAt), theme.UrgencyStyle(d.ColorStatus).Render(string(d.ColorStatus)))
			return nil
		}),
	}
}

func editCommand() *cli.Command {
	return &cli.Command{
		Name:      "edit",
		Usage:     "Change fields of a deadline.",
		ArgsUsage: "ID",
		Flags:     scheduleFlags(),
		Action: withEnv(func(c *cli.Context, e *env) error {
			id := c.Args().First()
			if id == "" {
				return errors.New("edit requires a deadline ID")
			}

			var in model.UpdateInput
			for name, dst := range map[string]**string{
				"course":     &in.CourseName,
				"assignment": &in.AssignmentName,
				"date":       &in.DueDate,
				"time":       &in.DueTime,
			} {
				if c.IsSet(name) {
					v := c.String(name)
					*dst = &v
				}
			}
			in.Timezone = c.String("tz")

			tr, err := e.openTracker(c.Context)
			if err != nil {
				return err
			}

			op, err := tr.Update(c.Context, id, in)
			if err != nil {
				return err
			}
			if err := op.Wait(c.Context); err != nil {
				return err
			}

			d, _ := tr.Get(id)
			e.log.Info().Str("id", id).Msg("deadline updated")
			renderDetail(e.out, d, e.view())
			return nil
		}),
	}
}

func removeCommand() *cli.Command {
	return &cli.Command{
		Name:      "rm",
		Usage:     "Remove a deadline. Removing an unknown ID does nothing.",
		ArgsUsage: "ID",
		Action: withEnv(func(c *cli.Context, e *env) error {
			id := c.Args().First()
			if id == "" {
				return errors.New("rm requires a deadline ID")
			}
			tr, err := e.openTracker(c.Context)
			if err != nil {
				return err
			}
			if err := tr.Remove(c.Context, id).Wait(c.Context); err != nil {
				return err
			}
			e.log.Info().Str("id", id).Msg("deadline removed")
			fmt.Fprintf(e.out, "Removed %s\n", id)
			return nil
		}),
	}
}

func resolveCommand() *cli.Command {
	return &cli.Command{
		Name:      "resolve",
		Usage:     "Print the UTC instant for a wall-clock due date and time.",
		ArgsUsage: "DATE TIME",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "tz", Usage: "IANA timezone (default local)"},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() != 2 {
				return errors.New("resolve requires DATE and TIME")
			}
			dueAt, err := temporal.ResolveDueAt(c.Args().Get(0), c.Args().Get(1), c.String("tz"))
			if err != nil {
				return err
			}
			fmt.Fprintln(c.App.Writer, dueAt)
			return nil
		},
	}
}

func watchCommand() *cli.Command {
	return &cli.Command{
		Name:  "watch",
		Usage: "Reload and print deadlines periodically until interrupted.",
		Flags: []cli.Flag{
			&cli.DurationFlag{Name: "interval", Usage: "reload interval (default from config)"},
		},
		Action: withEnv(func(c *cli.Context, e *env) error {
			ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
			defer stop()

			tr, err := e.browseTracker(ctx)
			if err != nil {
				return err
			}

			interval := c.Duration("interval")
			if interval <= 0 {
				interval = time.Duration(e.cfg.Sync.ReloadIntervalSec) * time.Second
			}

			p := dsync.New(tr, interval, e.log.With().Str("component", "poller").Logger())
			p.Start()
			defer p.Stop()

			for {
				select {
				case <-ctx.Done():
					return nil
				case r := <-p.Results():
					fmt.Fprintln(e.out, theme.HelpStyle.Render("Updated "+r.At.Format("15:04:05")))
					if r.Err != nil {
						fmt.Fprintln(e.out, theme.ErrorStyle.Render(r.Err.Error()))
					}
					renderList(e.out, r.Deadlines, e.view())
				}
			}
		}),
	}
}

func loginCommand() *cli.Command {
	return &cli.Command{
		Name:  "login",
		Usage: "Store Firestore service-account credentials in the system keyring.",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "credentials-file", Required: true, Usage: "service-account JSON file"},
		},
		Action: withEnv(func(c *cli.Context, e *env) error {
			vault, err := credential.Open()
			if err != nil {
				return err
			}
			key := credentialsKey(e.cfg)
			if err := vault.ImportServiceAccount(key, c.String("credentials-file")); err != nil {
				return err
			}
			e.log.Info().Str("key", key).Msg("credentials stored")
			fmt.Fprintln(e.out, "Credentials stored.")
			return nil
		}),
	}
}

func logoutCommand() *cli.Command {
	return &cli.Command{
		Name:  "logout",
		Usage: "Remove stored Firestore credentials.",
		Action: withEnv(func(c *cli.Context, e *env) error {
			vault, err := credential.Open()
			if err != nil {
				return err
			}
			if err := vault.Delete(credentialsKey(e.cfg)); err != nil {
				return err
			}
			fmt.Fprintln(e.out, "Credentials removed.")
			return nil
		}),
	}
}

func credentialsKey(cfg *model.AppConfig) string {
	if cfg.Firestore.CredentialsKey != "" {
		return cfg.Firestore.CredentialsKey
	}
	return credential.FirestoreKey
}
