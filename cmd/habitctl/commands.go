package main

import (
	"context"
	"fmt"
	"io"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/fastygo/habits/domain"
	"github.com/fastygo/habits/internal/config"
	"github.com/fastygo/habits/internal/infrastructure/cache"
	"github.com/fastygo/habits/internal/keyring"
	habitUC "github.com/fastygo/habits/usecase/habit"
)

func init() {
	listCmd.Flags().Bool("offline", false, "show the last list fetched, without contacting the backend")
	logoutCmd.Flags().Bool("all", false, "sign out of every session of this user")
	registerCmd.Flags().String("email", "", "email address")
	registerCmd.Flags().String("name", "", "display name")
	addCmd.Flags().StringP("description", "d", "", "free text description")
	addCmd.Flags().StringP("frequency", "f", string(domain.FrequencyDaily), "daily, weekly or monthly")
	loginCmd.Flags().Duration("ttl", 0, "session lifetime (default SESSION_TTL)")

	rootCmd.AddCommand(registerCmd, loginCmd, logoutCmd, whoamiCmd, listCmd, addCmd, completeCmd, deleteCmd, historyCmd, watchCmd)
}

var registerCmd = &cobra.Command{
	Use:   "register <user-id>",
	Short: "Create a user that can sign in",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		email, _ := cmd.Flags().GetString("email")
		name, _ := cmd.Flags().GetString("name")
		return withClient(cmd, func(ctx context.Context, c *client) error {
			user, err := c.backend.Auth.Register(ctx, &domain.User{ID: args[0], Email: email, Name: name})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Registered %s\n", user.ID)
			return nil
		})
	},
}

var loginCmd = &cobra.Command{
	Use:   "login <user-id>",
	Short: "Sign in and remember the session in the OS keyring",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ttl, _ := cmd.Flags().GetDuration("ttl")
		return withClient(cmd, func(ctx context.Context, c *client) error {
			if ttl <= 0 {
				ttl = c.cfg.JWT.SessionTTL
			}
			session, err := c.backend.Auth.SignIn(ctx, args[0], ttl)
			if err != nil {
				return err
			}
			if err := keyring.Save(c.cfg.CLI.KeyringService, keyring.Credentials{
				SessionID: session.ID,
				UserID:    session.UserID,
			}); err != nil {
				_ = c.backend.Auth.RevokeSession(ctx, session.ID)
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Signed in as %s until %s\n", session.UserID, session.ExpiresAt.Local().Format(time.RFC1123))
			return nil
		})
	},
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Sign out and forget the stored session",
	RunE: func(cmd *cobra.Command, args []string) error {
		all, _ := cmd.Flags().GetBool("all")
		return withClient(cmd, func(ctx context.Context, c *client) error {
			store, creds, err := c.store()
			if err != nil {
				return err
			}
			if all {
				if _, err := c.backend.Auth.RevokeAll(ctx, creds.UserID); err != nil {
					return err
				}
			} else if err := store.SignOut(ctx); err != nil {
				return err
			}
			if err := c.backend.Cache.Forget(creds.UserID); err != nil {
				c.logger.Debug("cache forget failed")
			}
			if err := keyring.Delete(c.cfg.CLI.KeyringService); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Signed out")
			return nil
		})
	},
}

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the signed-in user",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withClient(cmd, func(ctx context.Context, c *client) error {
			creds, err := keyring.Load(c.cfg.CLI.KeyringService)
			if err != nil {
				return err
			}
			user, err := c.backend.Auth.ForSession(creds.SessionID).CurrentUser(ctx)
			if err != nil {
				return err
			}
			if user == nil {
				return domain.ErrUnauthenticated
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", user.ID, user.Email)
			return nil
		})
	},
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List today's habits",
	RunE: func(cmd *cobra.Command, args []string) error {
		offline, _ := cmd.Flags().GetBool("offline")
		if offline {
			return listOffline(cmd)
		}
		return withClient(cmd, func(ctx context.Context, c *client) error {
			store, _, err := c.store()
			if err != nil {
				return err
			}
			habits, err := store.LoadHabits(ctx, "")
			if err != nil {
				return err
			}
			return renderHabits(cmd.OutOrStdout(), habits, time.Now())
		})
	},
}

func listOffline(cmd *cobra.Command) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	creds, err := keyring.Load(cfg.CLI.KeyringService)
	if err != nil {
		return err
	}
	snapshots, err := cache.Open(cfg.Cache.Path, "habits")
	if err != nil {
		return err
	}
	defer snapshots.Close()

	snapshot, err := snapshots.LoadHabits(creds.UserID)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Cached at %s\n", snapshot.SavedAt.Local().Format(time.RFC1123))
	return renderHabits(cmd.OutOrStdout(), snapshot.Habits, time.Now())
}

var addCmd = &cobra.Command{
	Use:   "add <title>",
	Short: "Add a habit",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		description, _ := cmd.Flags().GetString("description")
		frequency, _ := cmd.Flags().GetString("frequency")
		return withClient(cmd, func(ctx context.Context, c *client) error {
			store, _, err := c.store()
			if err != nil {
				return err
			}
			habit, err := store.AddHabit(ctx, args[0], description, frequency)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Added %s (%s)\n", habit.ID, habit.Frequency.Label())
			return nil
		})
	},
}

var completeCmd = &cobra.Command{
	Use:   "complete <habit-id>",
	Short: "Mark a habit complete and extend its streak",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withLoadedStore(cmd, func(ctx context.Context, store *habitUC.Store) error {
			if err := store.CompleteHabit(ctx, args[0]); err != nil {
				return err
			}
			habits, err := store.LoadHabits(ctx, store.Owner())
			if err != nil {
				return err
			}
			for _, h := range habits {
				if h.ID == args[0] {
					fmt.Fprintf(cmd.OutOrStdout(), "%s: %d day streak\n", h.Title, h.StreakCount)
				}
			}
			return nil
		})
	},
}

var deleteCmd = &cobra.Command{
	Use:   "delete <habit-id>",
	Short: "Delete a habit; its completion history is kept",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withLoadedStore(cmd, func(ctx context.Context, store *habitUC.Store) error {
			if err := store.DeleteHabit(ctx, args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", args[0])
			return nil
		})
	},
}

var historyCmd = &cobra.Command{
	Use:   "history <habit-id>",
	Short: "Show when a habit was completed",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withClient(cmd, func(ctx context.Context, c *client) error {
			store, _, err := c.store()
			if err != nil {
				return err
			}
			completions, err := store.Completions(ctx, args[0])
			if err != nil {
				return err
			}
			for _, completion := range completions {
				fmt.Fprintln(cmd.OutOrStdout(), completion.CompletedAt.Local().Format(time.RFC1123))
			}
			return nil
		})
	},
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Print the habit list every time it changes",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		return withClient(cmd, func(_ context.Context, c *client) error {
			out := cmd.OutOrStdout()
			store, _, err := c.store(habitUC.WithListener(func(_ string, habits []domain.Habit) {
				fmt.Fprintf(out, "\n-- %s --\n", time.Now().Format(time.Kitchen))
				_ = renderHabits(out, habits, time.Now())
			}))
			if err != nil {
				return err
			}
			if err := store.Watch(ctx); err != nil {
				return err
			}
			defer store.Close()

			<-ctx.Done()
			return nil
		})
	},
}

// withLoadedStore loads the signed-in user's habits before fn so ids can be resolved.
func withLoadedStore(cmd *cobra.Command, fn func(ctx context.Context, store *habitUC.Store) error) error {
	return withClient(cmd, func(ctx context.Context, c *client) error {
		store, _, err := c.store()
		if err != nil {
			return err
		}
		if _, err := store.LoadHabits(ctx, ""); err != nil {
			return err
		}
		return fn(ctx, store)
	})
}

func renderHabits(w io.Writer, habits []domain.Habit, now time.Time) error {
	if len(habits) == 0 {
		_, err := fmt.Fprintln(w, "No habits yet. Add your first Habit!")
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTITLE\tFREQUENCY\tSTREAK\tTODAY")
	for _, h := range habits {
		today := ""
		if h.CompletedOn(now) {
			today = "done"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d day streak\t%s\n", h.ID, h.Title, h.Frequency.Label(), h.StreakCount, today)
	}
	return tw.Flush()
}
