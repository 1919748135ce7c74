package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/spf13/pflag"

	"github.com/dukerupert/familyos/internal/feed"
	"github.com/dukerupert/familyos/internal/model"
)

// chatPrinter writes a running transcript of successive views: messages it
// has not shown before are printed once, and shown messages that leave the
// view are reported as deleted. After a loading or failed view the next view
// is a fresh window, and shown ids older than it have scrolled out rather
// than been deleted.
type chatPrinter struct {
	w io.Writer

	mu      sync.Mutex
	family  string
	shown   map[int64]bool
	rebase  bool
	lastErr string
}

func newChatPrinter(w io.Writer) *chatPrinter {
	return &chatPrinter{w: w, shown: make(map[int64]bool), rebase: true}
}

func (p *chatPrinter) render(v feed.View) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if v.FamilyID != p.family {
		if p.family != "" {
			if v.FamilyID == "" {
				fmt.Fprintln(p.w, "-- no active family")
			} else {
				fmt.Fprintf(p.w, "-- now following family %s\n", v.FamilyID)
			}
		}
		p.family = v.FamilyID
		p.shown = make(map[int64]bool)
		p.rebase = true
		p.lastErr = ""
	}
	if v.FamilyID == "" {
		return
	}

	if v.Err != nil {
		p.rebase = true
		if msg := v.Err.Error(); msg != p.lastErr {
			p.lastErr = msg
			fmt.Fprintf(p.w, "-- connection problem: %s (retrying)\n", msg)
		}
		return
	}
	p.lastErr = ""
	if v.Loading {
		p.rebase = true
		return
	}

	present := make(map[int64]bool, len(v.Messages))
	var oldest int64
	for _, m := range v.Messages {
		present[m.ID] = true
		if oldest == 0 || m.ID < oldest {
			oldest = m.ID
		}
	}
	for id := range p.shown {
		if present[id] {
			continue
		}
		if !p.rebase || id >= oldest {
			fmt.Fprintf(p.w, "[message %d deleted]\n", id)
		}
		delete(p.shown, id)
	}
	p.rebase = false

	for _, m := range v.Messages {
		if p.shown[m.ID] {
			continue
		}
		p.shown[m.ID] = true
		fmt.Fprintln(p.w, formatMessage(m))
	}
}

const membershipRefresh = time.Minute

func formatMessage(m model.Message) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s #%d %s: ", m.CreatedAt.Local().Format("15:04"), m.ID, m.SenderName)
	if m.ReplyTo != nil {
		quoted := m.ReplyTo.Text
		switch {
		case m.ReplyTo.IsDeleted:
			quoted = "deleted message"
		case quoted == "" && m.ReplyTo.MediaKind != "":
			quoted = string(m.ReplyTo.MediaKind)
		}
		fmt.Fprintf(&b, "(re %s: %s) ", m.ReplyTo.SenderName, quoted)
	}
	b.WriteString(m.Text)
	if m.MediaURL != "" {
		if m.Text != "" {
			b.WriteByte(' ')
		}
		fmt.Fprintf(&b, "[%s %s]", m.MediaKind, m.MediaURL)
	}
	return b.String()
}

func chatCommand() *command {
	return &command{
		Summary: "Follow the active family's chat until interrupted",
		Usage:   "chat",
		Run: func(ctx context.Context, a *app, args []string) error {
			m, err := a.activeMember(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "-- %s chat, Ctrl-C to leave\n", m.FamilyName)

			p := newChatPrinter(a.out)
			rec := feed.NewReconciler(a.client, a.logger.With("component", "feed"), feed.WithOnChange(p.render))
			stop := feed.Follow(ctx, a.resolver, rec)
			defer rec.Close()
			defer stop()

			// Losing membership moves the selection, and the feed with it.
			ticker := time.NewTicker(membershipRefresh)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return nil
				case <-ticker.C:
					if err := a.resolver.Refresh(ctx); err != nil {
						a.logger.Warn("refresh memberships", "error", err)
					}
				}
			}
		},
	}
}

func sendCommand() *command {
	var (
		replyTo int64
		file    string
	)
	return &command{
		Summary: "Send a message to the active family",
		Usage:   "send [--reply-to id] [--file path] [text...]",
		Flags: func(fs *pflag.FlagSet) {
			fs.Int64Var(&replyTo, "reply-to", 0, "id of the message to reply to")
			fs.StringVarP(&file, "file", "f", "", "attach a photo, video, audio or other file")
		},
		Run: func(ctx context.Context, a *app, args []string) error {
			text := strings.Join(args, " ")
			if text == "" && file == "" {
				return fmt.Errorf("nothing to send; usage: familyos send [--file path] [text...]")
			}
			m, err := a.activeMember(ctx)
			if err != nil {
				return err
			}
			var reply *int64
			if replyTo != 0 {
				reply = &replyTo
			}

			composer := feed.NewComposer(a.client)
			if file != "" {
				data, err := os.ReadFile(file)
				if err != nil {
					return fmt.Errorf("read attachment: %w", err)
				}
				if err := composer.SendMedia(ctx, m.FamilyID, m.ID, filepath.Base(file), data, reply); err != nil {
					return err
				}
				reply = nil
			}
			if text != "" {
				if err := composer.Send(ctx, m.FamilyID, m.ID, text, reply); err != nil {
					return err
				}
			}
			fmt.Fprintln(a.out, "Sent.")
			return nil
		},
	}
}
