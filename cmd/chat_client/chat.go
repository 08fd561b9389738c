package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"direct_chat_service/internal/chat/domain"
	"direct_chat_service/internal/client/api"
	"direct_chat_service/internal/client/bridge"
	"direct_chat_service/internal/client/store"
	"direct_chat_service/pkg/logger"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const chatHelp = `Type a line and press enter to send it.
  /typing   tell the other side you are typing
  /who      show whether the other side is online
  /quit     leave`

func init() {
	rootCmd.AddCommand(chatCmd)
}

var chatCmd = &cobra.Command{
	Use:   "chat <member-id>",
	Short: "Open the conversation with a member and chat in realtime",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, client, err := authedClient()
		if err != nil {
			return err
		}
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return runChat(ctx, cfg, client, args[0], cmd.InOrStdin(), cmd.OutOrStdout())
	},
}

// chatSession everything one chat view needs
type chatSession struct {
	client *api.Client
	store  *store.ConversationStore
	bridge *bridge.ConnectionBridge
	typing *bridge.TypingDebouncer
	view   *terminal

	selfID string
	conv   domain.Conversation
	peerID string
}

func runChat(ctx context.Context, cfg *Config, client *api.Client, recipient string, in io.Reader, out io.Writer) error {
	selfID := cfg.Auth.MemberID

	conv, err := client.OpenConversation(ctx, recipient)
	if err != nil {
		return err
	}
	convs, err := client.Conversations(ctx)
	if err != nil {
		return err
	}

	st := store.New(selfID, client)
	st.SetConversations(convs)

	rec := bridge.NewReconciler(st, selfID)
	view := newTerminal(rec, st, selfID, *conv, out)
	br := bridge.New(client.BaseURL(), client.Token(), selfID, view)
	rec.Attach(br)

	dialCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	if err := br.Connect(dialCtx); err != nil {
		// 沒有 realtime 也能聊, 只是要重新整理才看得到對方
		view.println("* realtime unavailable: %v", err)
		logger.Log.Warn("realtime connect", zap.Error(err))
	}
	cancel()
	defer br.Close()

	s := &chatSession{
		client: client,
		store:  st,
		bridge: br,
		typing: bridge.NewTypingDebouncer(br, bridge.DefaultTypingQuiet),
		view:   view,
		selfID: selfID,
		conv:   *conv,
		peerID: conv.Peer(selfID),
	}
	defer s.typing.Close()

	<-st.SetActiveConversation(*conv)
	view.println("== conversation %s with %s ==", conv.ID, s.peerID)
	view.printHistory()
	view.println("%s", chatHelp)

	return s.loop(ctx, in)
}

func (s *chatSession) loop(ctx context.Context, in io.Reader) error {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-s.bridge.Done():
			s.view.println("* realtime connection closed")
			return nil
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			if quit := s.handleLine(ctx, strings.TrimSpace(line)); quit {
				return nil
			}
		}
	}
}

// handleLine true when the user asked to leave
func (s *chatSession) handleLine(ctx context.Context, line string) bool {
	switch line {
	case "":
		return false
	case "/quit":
		return true
	case "/typing":
		s.typing.Keystroke(s.conv.ID, s.peerID)
		return false
	case "/who":
		status := domain.PresenceOffline
		if s.store.IsOnline(s.peerID) {
			status = domain.PresenceOnline
		}
		s.view.println("* %s is %s", s.peerID, status)
		return false
	}

	s.typing.Sent()
	if err := s.send(ctx, line); err != nil {
		s.view.println("* send failed: %v", err)
	}
	return false
}

// send store through the REST api first, then relay through the bridge
func (s *chatSession) send(ctx context.Context, content string) error {
	msg, err := s.client.CreateMessage(ctx, s.conv.ID, content)
	if err != nil {
		return err
	}
	s.store.AddMessage(*msg)
	s.view.println("%s", formatMessage(*msg, s.selfID))

	if err := s.bridge.SendMessage(ctx, msg, s.peerID); err != nil {
		if errors.Is(err, bridge.ErrNotConnected) {
			s.view.println("* offline, message stored only")
			return nil
		}
		return fmt.Errorf("relay: %w", err)
	}
	return nil
}
