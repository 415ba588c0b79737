package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"slices"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/skip2/go-qrcode"
	"github.com/spf13/cobra"

	"github.com/matheus3301/pawchat/internal/api"
	"github.com/matheus3301/pawchat/internal/chat"
	"github.com/matheus3301/pawchat/internal/config"
	"github.com/matheus3301/pawchat/internal/profile"
	"github.com/matheus3301/pawchat/internal/store"
	"github.com/matheus3301/pawchat/internal/tui"
	"github.com/matheus3301/pawchat/internal/tui/client"
)

const callTimeout = 10 * time.Second

type cli struct {
	profileFlag string
	jsonOut     bool

	profile string
	cfg     *config.Config
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	a := &cli{}
	root := &cobra.Command{
		Use:           "pawctl",
		Short:         "Control a pawchat profile daemon",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			a.profile = profile.Resolve(a.profileFlag)
			if err := profile.ValidateName(a.profile); err != nil {
				return err
			}
			cfg, err := profile.LoadConfig(a.profile)
			if err != nil {
				return err
			}
			a.cfg = cfg
			return nil
		},
	}
	root.PersistentFlags().StringVar(&a.profileFlag, "profile", "", "profile name (overrides config default)")
	root.PersistentFlags().BoolVar(&a.jsonOut, "json", false, "output in JSON format")

	root.AddCommand(
		&cobra.Command{
			Use:   "init <email> [name]",
			Short: "Set the profile identity",
			Args:  cobra.MinimumNArgs(1),
			RunE:  func(cmd *cobra.Command, args []string) error { return a.runInit(args) },
		},
		&cobra.Command{
			Use:   "invite",
			Short: "Print a QR code others can scan to chat with you",
			Args:  cobra.NoArgs,
			RunE:  func(cmd *cobra.Command, args []string) error { return a.runInvite() },
		},
		a.daemonCmd(&cobra.Command{
			Use:   "status",
			Short: "Show daemon status",
			Args:  cobra.NoArgs,
		}, a.runStatus),
		a.daemonCmd(&cobra.Command{
			Use:   "inbox",
			Short: "List your conversations",
			Args:  cobra.NoArgs,
		}, a.runInbox),
		a.daemonCmd(&cobra.Command{
			Use:   "open <email|invite> [name]",
			Short: "Open (or create) a conversation and print its id",
			Args:  cobra.MinimumNArgs(1),
		}, a.runOpen),
		a.daemonCmd(&cobra.Command{
			Use:   "send <conversation-id> <text>",
			Short: "Send a message",
			Args:  cobra.MinimumNArgs(2),
		}, a.runSend),
		a.daemonCmd(&cobra.Command{
			Use:   "history <conversation-id> [n]",
			Short: "Show the latest n messages",
			Args:  cobra.RangeArgs(1, 2),
		}, a.runHistory),
		a.daemonCmd(&cobra.Command{
			Use:   "watch <conversation-id>",
			Short: "Print history, then new messages as they arrive",
			Args:  cobra.ExactArgs(1),
		}, a.runWatch),
	)
	return root
}

// daemonCmd sets cmd to connect to the profile daemon before calling run.
// Every command but watch gets a call timeout; watch runs until interrupted.
func (a *cli) daemonCmd(cmd *cobra.Command, run func(ctx context.Context, c *client.Client, args []string) error) *cobra.Command {
	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		c, err := client.New(profile.SocketPath(a.profile))
		if err != nil {
			return fmt.Errorf("cannot connect to daemon for profile %q: %w", a.profile, err)
		}
		defer func() { _ = c.Close() }()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		if cmd.Name() != "watch" {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, callTimeout)
			defer cancel()
		}
		return run(ctx, c, args)
	}
	return cmd
}

func (a *cli) self() (store.Participant, error) {
	p, err := a.cfg.CurrentIdentity()
	if err != nil {
		return p, fmt.Errorf("%w (run: pawctl --profile %s init <email>)", err, a.profile)
	}
	return p, nil
}

func (a *cli) runInit(args []string) error {
	if err := profile.EnsureDir(a.profile); err != nil {
		return err
	}
	// Rewrite the file alone so env overrides are not persisted.
	cfg, err := config.Load(profile.ConfigPath(a.profile))
	if err != nil {
		return err
	}
	cfg.Identity.Email = args[0]
	cfg.Identity.Name = strings.Join(args[1:], " ")
	if err := config.Save(profile.ConfigPath(a.profile), cfg); err != nil {
		return err
	}
	fmt.Printf("Profile %s now signs in as %s\n", a.profile, args[0])
	return nil
}

func (a *cli) runInvite() error {
	self, err := a.self()
	if err != nil {
		return err
	}
	link := tui.InviteURL(self)
	if a.jsonOut {
		return outputJSON(map[string]string{"url": link})
	}
	qr, err := qrcode.New(link, qrcode.Medium)
	if err != nil {
		return fmt.Errorf("encode invite: %w", err)
	}
	fmt.Print(qr.ToSmallString(false))
	fmt.Println(link)
	return nil
}

func (a *cli) runStatus(ctx context.Context, c *client.Client, _ []string) error {
	resp, err := c.GetStatus(ctx)
	if err != nil {
		return err
	}
	if a.jsonOut {
		return outputJSON(resp)
	}
	fmt.Printf("Profile:       %s\n", resp.Profile)
	if resp.Identity != "" {
		fmt.Printf("Identity:      %s\n", resp.Identity)
	}
	fmt.Printf("Uptime:        %s\n", (time.Duration(resp.UptimeMs) * time.Millisecond).Round(time.Second))
	fmt.Printf("Conversations: %d\n", resp.ConversationCount)
	fmt.Printf("Messages:      %d\n", resp.MessageCount)
	if resp.HTTPAddr != "" {
		fmt.Printf("HTTP gateway:  %s\n", resp.HTTPAddr)
	}
	return nil
}

func (a *cli) runInbox(ctx context.Context, c *client.Client, _ []string) error {
	self, err := a.self()
	if err != nil {
		return err
	}
	entries, err := c.ListConversations(ctx, self.Identity, 0)
	if err != nil {
		return err
	}
	if a.jsonOut {
		return outputJSON(api.InboxToWire(entries))
	}
	if len(entries) == 0 {
		fmt.Println("No conversations.")
		return nil
	}
	for _, e := range entries {
		name := e.Counterpart.Name
		if name == "" {
			name = e.Counterpart.Identity
		}
		fmt.Printf("%s  %-24s %s\n", e.ConversationID, name, e.Preview)
	}
	return nil
}

func (a *cli) runOpen(ctx context.Context, c *client.Client, args []string) error {
	self, err := a.self()
	if err != nil {
		return err
	}
	counterpart, err := tui.ParseInvite(args[0])
	if err != nil {
		return err
	}
	if len(args) > 1 {
		counterpart.Name = strings.Join(args[1:], " ")
	}
	id, err := c.OpenConversation(ctx, self, counterpart)
	if err != nil {
		return err
	}
	if a.jsonOut {
		return outputJSON(map[string]string{"conversation_id": id})
	}
	fmt.Println(id)
	return nil
}

func (a *cli) runSend(ctx context.Context, c *client.Client, args []string) error {
	self, err := a.self()
	if err != nil {
		return err
	}
	msg, err := c.SendMessage(ctx, chat.SendRequest{
		ConversationID: args[0],
		SenderID:       self.Identity,
		Body:           strings.Join(args[1:], " "),
	})
	if err != nil {
		return err
	}
	if a.jsonOut {
		return outputJSON(api.MessageToWire(msg))
	}
	fmt.Printf("sent %d\n", msg.ID)
	return nil
}

func (a *cli) runHistory(ctx context.Context, c *client.Client, args []string) error {
	limit := a.cfg.Chat.PageSize
	if len(args) > 1 {
		n, err := strconv.Atoi(args[1])
		if err != nil || n < 1 {
			return fmt.Errorf("invalid count %q", args[1])
		}
		limit = n
	}
	msgs, err := c.ListMessages(ctx, args[0], store.Page{Limit: limit})
	if err != nil {
		return err
	}
	// Pages are newest first; print oldest first.
	slices.Reverse(msgs)
	if a.jsonOut {
		return outputJSON(api.MessagesToWire(msgs))
	}
	for i := range msgs {
		printMessage(&msgs[i])
	}
	return nil
}

func (a *cli) runWatch(ctx context.Context, c *client.Client, args []string) error {
	self, err := a.self()
	if err != nil {
		return err
	}
	c.Viewer = self.Identity

	s, err := chat.StreamMessages(ctx, c, args[0], store.Page{Limit: a.cfg.Chat.PageSize})
	if err != nil {
		return err
	}
	defer s.Close()

	emit := func(m *store.Message) error {
		if a.jsonOut {
			return outputJSON(api.MessageToWire(m))
		}
		printMessage(m)
		return nil
	}
	for i := len(s.History) - 1; i >= 0; i-- {
		if err := emit(&s.History[i]); err != nil {
			return err
		}
	}
	for {
		select {
		case <-ctx.Done():
			return nil
		case m, ok := <-s.Live():
			if !ok {
				if err := s.Err(); err != nil && ctx.Err() == nil {
					return fmt.Errorf("watch ended: %w", err)
				}
				return nil
			}
			if err := emit(&m); err != nil {
				return err
			}
		}
	}
}

func printMessage(m *store.Message) {
	at := time.UnixMilli(m.CreatedAt).Format("2006-01-02 15:04")
	fmt.Printf("[%s] %s: %s\n", at, m.SenderID, m.Body)
}

func outputJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
