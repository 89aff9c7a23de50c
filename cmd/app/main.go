package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"chatter-client/configs"
	"chatter-client/internal/api"
	"chatter-client/internal/message"
	"chatter-client/internal/notification"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", api.ErrorText(err, err.Error()))
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var app *App

	cmd := &cobra.Command{
		Use:           "chatter",
		Short:         "Client engine for the chatter social API",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := configs.LoadConfig()
			if err != nil {
				return err
			}
			app = newApp(cmd.Context(), cfg)
			return nil
		},
	}
	cobra.OnFinalize(func() {
		if app != nil {
			app.Close()
			app = nil
		}
	})
	get := func() *App { return app }

	cmd.AddCommand(
		loginCmd(get),
		logoutCmd(get),
		feedCmd(get),
		likeCmd(get),
		commentCmd(get),
		deletePostCmd(get),
		followCmd(get),
		profileCmd(get),
		editProfileCmd(get),
		recommendedCmd(get),
		chatsCmd(get),
		messagesCmd(get),
		sendCmd(get),
		notificationsCmd(get),
		watchCmd(get),
	)
	return cmd
}

func loginCmd(app func() *App) *cobra.Command {
	var name, username string
	cmd := &cobra.Command{
		Use:   "login TOKEN",
		Short: "Store a bearer token as the current session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := app()
			if err := a.sess.Login(cmd.Context(), args[0], api.Person{Name: name, Username: username}); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "logged in as %s\n", a.sess.ViewerID())
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "Display name")
	cmd.Flags().StringVar(&username, "username", "", "Handle")
	return cmd
}

func logoutCmd(app func() *App) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored session",
		RunE: func(cmd *cobra.Command, args []string) error {
			app().sess.Logout(cmd.Context())
			return nil
		},
	}
}

func feedCmd(app func() *App) *cobra.Command {
	var page int
	var user string
	cmd := &cobra.Command{
		Use:   "feed",
		Short: "List posts",
		RunE: func(cmd *cobra.Command, args []string) error {
			a := app()
			var posts []api.Post
			var err error
			if user != "" {
				posts, err = a.feed.FetchUserPosts(cmd.Context(), user, page, a.cfg.PageSize)
			} else {
				posts, err = a.feed.FetchFeed(cmd.Context(), page, a.cfg.PageSize)
			}
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, p := range posts {
				liked := " "
				if p.IsLiked {
					liked = "*"
				}
				fmt.Fprintf(out, "%s %-36s %-16s likes=%d comments=%d  %s\n",
					liked, p.ID, p.UserName, p.LikeCount, p.CommentCount, p.Content)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&page, "page", 1, "Page number")
	cmd.Flags().StringVar(&user, "user", "", "Only posts by this user id")
	return cmd
}

// loadPosts fills the feed so post ids given on the command line resolve.
func loadPosts(ctx context.Context, a *App) error {
	_, err := a.feed.FetchFeed(ctx, 1, a.cfg.PageSize)
	return err
}

func likeCmd(app func() *App) *cobra.Command {
	return &cobra.Command{
		Use:   "like POST_ID",
		Short: "Toggle a like",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := app()
			if err := loadPosts(cmd.Context(), a); err != nil {
				return err
			}
			st, err := a.feed.ToggleLike(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "liked=%t likes=%d\n", st.IsLiked, st.LikeCount)
			return nil
		},
	}
}

func commentCmd(app func() *App) *cobra.Command {
	var del string
	cmd := &cobra.Command{
		Use:   "comment POST_ID [TEXT]",
		Short: "Add a comment, or delete one with --delete",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := app()
			ctx := cmd.Context()
			if err := a.requireLogin(); err != nil {
				return err
			}
			if _, err := a.feed.LoadComments(ctx, args[0]); err != nil {
				return err
			}
			if del != "" {
				if err := a.feed.DeleteComment(ctx, args[0], del); err != nil {
					return err
				}
			} else {
				text := ""
				if len(args) == 2 {
					text = args[1]
				}
				if _, err := a.feed.CreateComment(ctx, args[0], text); err != nil {
					return err
				}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "comments=%d\n", a.feed.CommentCount(args[0]))
			return nil
		},
	}
	cmd.Flags().StringVar(&del, "delete", "", "Comment id to delete")
	return cmd
}

func deletePostCmd(app func() *App) *cobra.Command {
	return &cobra.Command{
		Use:   "delete-post POST_ID",
		Short: "Delete one of your posts",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := app()
			if err := loadPosts(cmd.Context(), a); err != nil {
				return err
			}
			return a.feed.DeletePost(cmd.Context(), args[0])
		},
	}
}

func followCmd(app func() *App) *cobra.Command {
	return &cobra.Command{
		Use:   "follow USER_ID",
		Short: "Toggle following a person",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := app()
			ctx := cmd.Context()
			if err := a.requireLogin(); err != nil {
				return err
			}
			if _, err := a.follow.LoadFollowingIDs(ctx); err != nil {
				return err
			}
			if _, err := a.follow.LoadFollowStats(ctx, args[0]); err != nil {
				return err
			}
			st, err := a.follow.ToggleFollow(ctx, args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "following=%t followers=%d\n", st.Following, st.FollowerCount)
			return nil
		},
	}
}

func profileCmd(app func() *App) *cobra.Command {
	return &cobra.Command{
		Use:   "profile USERNAME",
		Short: "Show a profile and who it follows",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := app()
			ctx := cmd.Context()
			p, err := a.follow.LoadProfile(ctx, args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s (@%s) followers=%d following=%d followed=%t\n",
				p.Name, p.Username, p.FollowerCount, p.FollowingCount, p.IsFollowed)
			following, err := a.follow.LoadFollowing(ctx, p.ID)
			if err != nil {
				return err
			}
			for _, f := range following {
				fmt.Fprintf(out, "  -> %s (@%s)\n", f.Name, f.Username)
			}
			return nil
		},
	}
}

func editProfileCmd(app func() *App) *cobra.Command {
	var u api.ProfileUpdate
	var picture string
	cmd := &cobra.Command{
		Use:   "edit-profile",
		Short: "Update your name, handle, password or picture",
		RunE: func(cmd *cobra.Command, args []string) error {
			a := app()
			if err := a.requireLogin(); err != nil {
				return err
			}
			if picture != "" {
				f, err := os.Open(picture)
				if err != nil {
					return err
				}
				defer f.Close()
				u.Picture = &api.Media{Name: filepath.Base(picture), Body: f}
			}
			p, err := a.client.UpdateProfile(cmd.Context(), u)
			if err != nil {
				return err
			}
			a.sess.People().Put(p)
			fmt.Fprintf(cmd.OutOrStdout(), "updated %s (@%s)\n", p.Name, p.Username)
			return nil
		},
	}
	cmd.Flags().StringVar(&u.Name, "name", "", "Display name")
	cmd.Flags().StringVar(&u.Username, "username", "", "Handle")
	cmd.Flags().StringVar(&u.Email, "email", "", "Email")
	cmd.Flags().StringVar(&u.Password, "password", "", "New password")
	cmd.Flags().StringVar(&picture, "picture", "", "Profile picture file")
	return cmd
}

func recommendedCmd(app func() *App) *cobra.Command {
	return &cobra.Command{
		Use:   "recommended",
		Short: "People you might follow",
		RunE: func(cmd *cobra.Command, args []string) error {
			a := app()
			ctx := cmd.Context()
			if _, err := a.follow.LoadFollowingIDs(ctx); err != nil {
				return err
			}
			list, err := a.follow.LoadRecommended(ctx)
			if err != nil {
				return err
			}
			for _, p := range list {
				fmt.Fprintf(cmd.OutOrStdout(), "%-36s %-20s @%s followers=%d\n", p.ID, p.Name, p.Username, p.FollowerCount)
			}
			return nil
		},
	}
}

func chatsCmd(app func() *App) *cobra.Command {
	return &cobra.Command{
		Use:   "chats",
		Short: "List conversations, most recent first",
		RunE: func(cmd *cobra.Command, args []string) error {
			convs, err := app().chat.FetchConversations(cmd.Context())
			if err != nil {
				return err
			}
			for _, c := range convs {
				fmt.Fprintf(cmd.OutOrStdout(), "%-36s %-20s %s  %s\n",
					c.ID, c.OtherUserName, c.LastActivity.Format(time.DateTime), c.LastMessage)
			}
			return nil
		},
	}
}

func messagesCmd(app func() *App) *cobra.Command {
	var pages int
	var follow time.Duration
	cmd := &cobra.Command{
		Use:   "messages CONVERSATION_ID",
		Short: "Show a conversation grouped by day",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := app()
			st := a.chat.Open(args[0])
			defer a.chat.CloseStream(args[0])
			for p := 1; p <= pages; p++ {
				if _, err := st.LoadMessages(cmd.Context(), p, a.cfg.MessagePage); err != nil {
					return err
				}
			}
			loc := a.cfg.Location()
			out := cmd.OutOrStdout()
			for _, day := range message.Group(st.Messages(), a.sess.ViewerID(), loc) {
				fmt.Fprintf(out, "--- %s ---\n", message.DayLabel(day.Date, time.Now(), loc))
				for _, it := range day.Items {
					who := "   "
					switch {
					case it.Own:
						who = "me "
					case it.ShowAvatar:
						who = it.SenderName
					}
					fmt.Fprintf(out, "%s %s %s\n", it.CreatedAt.In(loc).Format("15:04"), who, it.Content)
				}
			}
			if follow <= 0 {
				return nil
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			t := time.NewTicker(follow)
			defer t.Stop()
			for {
				select {
				case <-ctx.Done():
					return nil
				case <-t.C:
					added, err := st.Refresh(ctx, a.cfg.MessagePage)
					if err != nil {
						log.Printf("[messages] refresh failed: %v", err)
						continue
					}
					for _, m := range added {
						fmt.Fprintf(out, "%s %s %s\n", m.CreatedAt.In(loc).Format("15:04"), m.SenderName, m.Content)
					}
				}
			}
		},
	}
	cmd.Flags().IntVar(&pages, "pages", 1, "How many pages of history to load")
	cmd.Flags().DurationVar(&follow, "follow", 0, "Keep polling for new messages at this interval")
	return cmd
}

func sendCmd(app func() *App) *cobra.Command {
	var attach string
	cmd := &cobra.Command{
		Use:   "send USER_ID [TEXT]",
		Short: "Send a message, starting the conversation if needed",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := app()
			ctx := cmd.Context()
			if err := a.requireLogin(); err != nil {
				return err
			}
			if _, err := a.chat.FetchConversations(ctx); err != nil {
				return err
			}
			conv, err := a.chat.GetOrStartConversation(ctx, args[0])
			if err != nil {
				return err
			}
			var media *api.Media
			if attach != "" {
				f, err := os.Open(attach)
				if err != nil {
					return err
				}
				defer f.Close()
				media = &api.Media{Name: filepath.Base(attach), Body: f}
			}
			text := ""
			if len(args) == 2 {
				text = args[1]
			}
			st := a.chat.Open(conv.ID)
			defer a.chat.CloseStream(conv.ID)
			m, err := st.SendMessage(ctx, text, media)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "sent %s to %s\n", m.ID, conv.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&attach, "attach", "", "File to attach")
	return cmd
}

func notificationsCmd(app func() *App) *cobra.Command {
	var markAll bool
	var read string
	cmd := &cobra.Command{
		Use:   "notifications",
		Short: "List notifications",
		RunE: func(cmd *cobra.Command, args []string) error {
			a := app()
			ctx := cmd.Context()
			list, err := a.notify.Open(ctx)
			if err != nil {
				return err
			}
			switch {
			case markAll:
				a.notify.MarkAllRead(ctx)
			case read != "":
				a.notify.MarkRead(ctx, read)
			}
			out := cmd.OutOrStdout()
			for _, n := range list {
				dot := " "
				if !n.Read {
					dot = "•"
				}
				kind, ref := notification.Target(n)
				fmt.Fprintf(out, "%s %-8s %-20s %s:%s\n", dot, n.Type, n.ActorName, kind, ref)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&markAll, "mark-all", false, "Mark every notification read")
	cmd.Flags().StringVar(&read, "read", "", "Mark one notification read")
	return cmd
}

func watchCmd(app func() *App) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Poll the unread badge and serve /metrics until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			a := app()
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.HandlerFor(
				prometheus.Gatherers{prometheus.DefaultGatherer, a.registry},
				promhttp.HandlerOpts{},
			))
			srv := &http.Server{
				Addr:              a.cfg.MetricsAddr,
				Handler:           mux,
				ReadHeaderTimeout: 5 * time.Second,
			}
			go func() {
				log.Printf("[metrics] listening on %s", a.cfg.MetricsAddr)
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					log.Printf("[metrics] server: %v", err)
				}
			}()

			a.notify.Bind(a.sess)
			if !a.sess.Authenticated() {
				log.Printf("[poller] no session, waiting idle")
			}

			t := time.NewTicker(a.cfg.PollInterval)
			defer t.Stop()
			last := -1
			for {
				select {
				case <-ctx.Done():
					c, cancel := context.WithTimeout(context.Background(), 5*time.Second)
					defer cancel()
					return srv.Shutdown(c)
				case <-t.C:
					if n := a.notify.Unread(); n != last {
						fmt.Fprintf(cmd.OutOrStdout(), "unread=%d state=%s\n", n, a.notify.State())
						last = n
					}
				}
			}
		},
	}
}
