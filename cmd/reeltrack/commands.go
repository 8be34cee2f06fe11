package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/five82/reeltrack/internal/app"
	"github.com/five82/reeltrack/internal/auth"
	"github.com/five82/reeltrack/internal/gateway"
	"github.com/five82/reeltrack/internal/ui"
)

type globalFlags struct {
	configPath string
	logLevel   string
	raw        bool
}

func newRootCommand() *cobra.Command {
	flags := &globalFlags{}
	root := &cobra.Command{
		Use:   "reeltrack",
		Short: "Rate-limited, cached client for the Trakt API",
		Long: `reeltrack looks up movies, shows and user lists through a paced request
queue with retries and a response cache, and signs in with a device code.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
	}
	root.PersistentFlags().StringVar(&flags.configPath, "config", "", "config file (default ~/.config/reeltrack/config.toml)")
	root.PersistentFlags().StringVar(&flags.logLevel, "log-level", "", "override log level (trace, debug, info, warn, error)")
	root.PersistentFlags().BoolVar(&flags.raw, "json", false, "print raw JSON payloads")

	root.AddCommand(
		newSearchCommand(flags),
		newItemCommand(flags),
		newListCommand(flags),
		newStatsCommand(flags),
		newSyncCommand(flags),
		newLoginCommand(flags),
		newLogoutCommand(flags),
		newRefreshCommand(flags),
		newWhoamiCommand(flags),
	)
	return root
}

// withSession opens a session for the duration of fn.
func withSession(cmd *cobra.Command, flags *globalFlags, fn func(ctx context.Context, s *app.Session) error) error {
	s, err := app.Open(app.Options{
		ConfigPath: flags.configPath,
		LogLevel:   flags.logLevel,
		Stderr:     cmd.ErrOrStderr(),
	})
	if err != nil {
		return err
	}
	defer func() {
		if cerr := s.Close(); cerr != nil {
			s.Logger().Warn("close session", "error", cerr)
		}
	}()
	return fn(cmd.Context(), s)
}

func newSearchCommand(flags *globalFlags) *cobra.Command {
	var types []string
	var limit int
	cmd := &cobra.Command{
		Use:     "search <query>",
		Short:   "Search movies, shows, episodes, people or lists",
		Example: `  reeltrack search --type movie,show "blade runner"`,
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			mediaTypes, err := gateway.ParseMediaTypes(types)
			if err != nil {
				return err
			}
			return withSession(cmd, flags, func(ctx context.Context, s *app.Session) error {
				payload, err := s.Gateway().Search(ctx, gateway.SearchQuery{
					Types: mediaTypes,
					Query: strings.Join(args, " "),
					Limit: limit,
				})
				if err != nil {
					return err
				}
				if flags.raw {
					return ui.WriteJSON(cmd.OutOrStdout(), payload)
				}
				results, err := gateway.DecodeSearch(payload)
				if err != nil {
					return err
				}
				return ui.WriteSearch(cmd.OutOrStdout(), results)
			})
		},
	}
	cmd.Flags().StringSliceVarP(&types, "type", "t", []string{"movie", "show"}, "media types to search")
	cmd.Flags().IntVarP(&limit, "limit", "n", 10, "maximum results")
	return cmd
}

func newItemCommand(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:     "item <movie|show> <id>",
		Short:   "Show full details for a movie or show",
		Example: `  reeltrack item movie tron-legacy-2010`,
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, flags, func(ctx context.Context, s *app.Session) error {
				payload, err := s.Gateway().GetItem(ctx, gateway.MediaType(args[0]), args[1])
				if err != nil {
					return err
				}
				return ui.WriteJSON(cmd.OutOrStdout(), payload)
			})
		},
	}
}

func newListCommand(flags *globalFlags) *cobra.Command {
	var mediaType string
	cmd := &cobra.Command{
		Use:     "list <user> <watchlist|watched|collection|ratings>",
		Short:   "Show a public user's list",
		Example: `  reeltrack list sean watched --type show`,
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, flags, func(ctx context.Context, s *app.Session) error {
				payload, err := s.Gateway().GetUserList(ctx, args[0], gateway.ListType(args[1]), gateway.MediaType(mediaType))
				if err != nil {
					return err
				}
				return ui.WriteJSON(cmd.OutOrStdout(), payload)
			})
		},
	}
	cmd.Flags().StringVarP(&mediaType, "type", "t", "movie", "movie or show")
	return cmd
}

func newStatsCommand(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "stats <user>",
		Short: "Show a public user's watch statistics",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, flags, func(ctx context.Context, s *app.Session) error {
				payload, err := s.Gateway().GetUserStats(ctx, args[0])
				if err != nil {
					return err
				}
				if flags.raw {
					return ui.WriteJSON(cmd.OutOrStdout(), payload)
				}
				stats, err := gateway.DecodeStats(payload)
				if err != nil {
					return err
				}
				return ui.WriteStats(cmd.OutOrStdout(), args[0], stats)
			})
		},
	}
}

func newSyncCommand(flags *globalFlags) *cobra.Command {
	var mediaType string
	cmd := &cobra.Command{
		Use:   "sync <watchlist|watched|collection|ratings>",
		Short: "Show your own list (requires login)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, flags, func(ctx context.Context, s *app.Session) error {
				payload, err := s.Gateway().GetSyncItems(ctx, gateway.ListType(args[0]), gateway.MediaType(mediaType))
				if err != nil {
					return err
				}
				return ui.WriteJSON(cmd.OutOrStdout(), payload)
			})
		},
	}
	cmd.Flags().StringVarP(&mediaType, "type", "t", "movie", "movie or show")
	return cmd
}

func newLoginCommand(flags *globalFlags) *cobra.Command {
	var plain bool
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in with a device code",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, flags, func(ctx context.Context, s *app.Session) error {
				var (
					res auth.Result
					err error
				)
				if plain {
					res, err = plainLogin(ctx, s, cmd.OutOrStdout())
				} else {
					res, err = ui.RunLogin(ctx, ui.LoginOptions{
						Theme:  s.Config().Theme,
						Input:  cmd.InOrStdin(),
						Output: cmd.OutOrStdout(),
						Start:  s.Login,
					})
				}
				if err != nil {
					return err
				}
				if !res.OK {
					if res.Err != nil {
						return fmt.Errorf("sign-in %s: %w", res.Status, res.Err)
					}
					return fmt.Errorf("sign-in %s", res.Status)
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&plain, "plain", false, "print the code instead of opening the interactive view")
	return cmd
}

func plainLogin(ctx context.Context, s *app.Session, out io.Writer) (auth.Result, error) {
	session, err := s.Login(ctx, ui.NewTextPresenter(out))
	if session == nil {
		return auth.Result{}, err
	}
	res, werr := session.Wait(ctx)
	if werr != nil {
		session.Cancel()
		return session.Wait(context.Background())
	}
	return res, nil
}

func newLogoutCommand(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Revoke and forget the stored token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, flags, func(ctx context.Context, s *app.Session) error {
				if err := s.Logout(ctx); err != nil {
					return err
				}
				_, err := fmt.Fprintln(cmd.OutOrStdout(), "Signed out.")
				return err
			})
		},
	}
}

func newRefreshCommand(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "refresh",
		Short: "Renew the access token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, flags, func(ctx context.Context, s *app.Session) error {
				tok, err := s.Refresh(ctx)
				if err != nil {
					return err
				}
				_, err = fmt.Fprintf(cmd.OutOrStdout(), "Token refreshed, expires %s.\n", formatExpiry(tok.ExpiresAt))
				return err
			})
		},
	}
}

func newWhoamiCommand(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show local sign-in state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, flags, func(ctx context.Context, s *app.Session) error {
				st := s.Status()
				if flags.raw {
					data, err := json.Marshal(st)
					if err != nil {
						return err
					}
					return ui.WriteJSON(cmd.OutOrStdout(), data)
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "client id:  %s\n", yesNo(st.ClientID))
				fmt.Fprintf(out, "signed in:  %s\n", yesNo(st.SignedIn))
				fmt.Fprintf(out, "refresh:    %s\n", yesNo(st.Refreshable))
				if st.SignedIn {
					fmt.Fprintf(out, "expires:    %s\n", formatExpiry(st.ExpiresAt))
				}
				return nil
			})
		},
	}
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

func formatExpiry(t time.Time) string {
	if t.IsZero() {
		return "never"
	}
	return t.Local().Format(time.RFC1123)
}
