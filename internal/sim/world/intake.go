package world

import (
	"context"
	"math"
	"regexp"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"

	"yogiworld.io/internal/protocol"
)

var walletRe = regexp.MustCompile(`^[A-Za-z0-9]{3,128}$`)

// ValidWallet reports whether s is an acceptable inventory wallet address.
func ValidWallet(s string) bool { return walletRe.MatchString(s) }

func (w *World) handleMessage(env Envelope) {
	p, ok := w.reg.Get(env.ID)
	if !ok {
		w.CountDrop(protocol.DropUnknownActor)
		return
	}
	switch m := env.Msg.(type) {
	case protocol.StateReport:
		w.applyState(p, m)
	case protocol.ProfileUpdate:
		w.applyProfile(p, m)
	case protocol.ChatSend:
		w.applyChat(p, m)
	case protocol.ActionPlay:
		w.applyAction(p, m)
	case protocol.ZoneClaim:
		if m.Zone == nil {
			w.CountDrop(protocol.DropMalformed)
			return
		}
		w.claimZone(p.ID, *m.Zone)
	default:
		w.CountDrop(protocol.DropUnrecognized)
	}
}

func (w *World) inBounds(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0) && math.Abs(v) <= w.cfg.WorldBound
}

func (w *World) applyState(p *Participant, m protocol.StateReport) {
	if m.X != nil && w.inBounds(*m.X) {
		p.X = *m.X
	}
	if m.Y != nil && w.inBounds(*m.Y) {
		p.Y = *m.Y
	}
	if m.Z != nil && w.inBounds(*m.Z) {
		p.Z = *m.Z
	}
	if m.Heading != nil && !math.IsNaN(*m.Heading) && !math.IsInf(*m.Heading, 0) {
		p.Heading = *m.Heading
	}
	if g, ok := p.Ledger.DailyBonus(w.now(), w.cfg.DailyBonus); ok {
		w.sendGrant(p, g, "")
	}
}

// cleanName normalizes a requested display name. An empty result means the
// request is ignored.
func cleanName(s string, max int) string {
	s = strings.TrimSpace(norm.NFC.String(s))
	return truncateRunes(s, max)
}

func truncateRunes(s string, max int) string {
	if max <= 0 || utf8.RuneCountInString(s) <= max {
		return s
	}
	n := 0
	for i := range s {
		if n == max {
			return strings.TrimSpace(s[:i])
		}
		n++
	}
	return s
}

func (w *World) applyProfile(p *Participant, m protocol.ProfileUpdate) {
	if m.Name != nil {
		if name := cleanName(*m.Name, w.cfg.NameMaxRunes); name != "" {
			p.Name = name
		}
	}
	if m.Rank != nil {
		rank := strings.TrimSpace(*m.Rank)
		for _, r := range w.cfg.Ranks {
			if r == rank {
				p.Rank = rank
				break
			}
		}
	}
	if m.Wallet != nil && ValidWallet(*m.Wallet) {
		w.requestProfile(p, *m.Wallet)
	}
}

// requestProfile starts an inventory lookup outside the world goroutine. The
// result comes back through the attach channel; synchronization never waits
// on it.
func (w *World) requestProfile(p *Participant, wallet string) {
	if w.profiles == nil || p.profilePending {
		return
	}
	p.profilePending = true
	src := w.profiles
	timeout := w.cfg.ProfileTimeout
	id := p.ID
	attach := w.attach
	stop := w.stop
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		doc, err := src.Profile(ctx, wallet)
		select {
		case attach <- ProfileAttachment{ID: id, Wallet: wallet, Profile: doc, Err: err}:
		case <-stop:
		}
	}()
}

func (w *World) applyChat(p *Participant, m protocol.ChatSend) {
	if m.Text == nil {
		w.CountDrop(protocol.DropMalformed)
		return
	}
	text := truncateRunes(strings.TrimSpace(*m.Text), w.cfg.ChatMaxRunes)
	if text == "" {
		w.CountDrop(protocol.DropEmptyText)
		return
	}
	now := w.now()
	if !p.chatLimiter.AllowN(now, 1) {
		w.CountDrop(protocol.DropRateLimit)
		return
	}
	p.LastChatAt = now
	w.counters.chatAccepted.Add(1)
	w.broadcast(protocol.ChatMessageMsg{
		Type:      protocol.TypeChatMessage,
		SenderID:  p.ID,
		Name:      p.Name,
		Rank:      p.Rank,
		Text:      text,
		Timestamp: now.UnixMilli(),
	})
	w.writeJournal(JournalEntry{Time: now.UTC(), Kind: EntryChat, ParticipantID: p.ID, Name: p.Name, Text: text})
}

func (w *World) applyAction(p *Participant, m protocol.ActionPlay) {
	if m.Action == nil {
		w.CountDrop(protocol.DropMalformed)
		return
	}
	a, ok := protocol.ParseAction(*m.Action)
	if !ok {
		w.CountDrop(protocol.DropUnknownAction)
		return
	}
	if !p.actionLimiter.AllowN(w.now(), 1) {
		w.CountDrop(protocol.DropRateLimit)
		return
	}
	w.performAction(p.ID, a)
}
