package command

import (
	"fmt"
	"io"
	"time"

	"chatsync/internal/chat"
)

// renderDirectory lists selectable threads, marking the active one
func renderDirectory(w io.Writer, snap chat.Snapshot) {
	fmt.Fprintln(w, "People")
	for _, u := range snap.Users {
		fmt.Fprintf(w, "%s %-20s %s\n", activeMark(snap, chat.KindDirect, u.ID), u.Name, u.Email)
	}
	fmt.Fprintln(w, "Groups")
	for _, g := range snap.Groups {
		joined := ""
		if g.HasMember(snap.Self.ID) {
			joined = " (joined)"
		}
		fmt.Fprintf(w, "%s %-20s %d members%s\n", activeMark(snap, chat.KindGroup, g.ID), g.Name, len(g.Members), joined)
	}
}

func activeMark(snap chat.Snapshot, kind chat.Kind, id string) string {
	if snap.Active && snap.Thread.Kind == kind && snap.Thread.ID == id {
		return "*"
	}
	return " "
}

// renderThread prints the active thread's messages with date separators
func renderThread(w io.Writer, snap chat.Snapshot, loc *time.Location) {
	if !snap.Active {
		fmt.Fprintln(w, "No conversation selected")
		return
	}
	fmt.Fprintf(w, "== %s [%s] ==\n", threadTitle(snap), snap.State)
	if len(snap.Messages) == 0 && snap.State == chat.StateReady && snap.Err == nil {
		fmt.Fprintln(w, "No messages yet")
	}
	for _, day := range chat.GroupByDay(snap.Messages, loc) {
		fmt.Fprintf(w, "--- %s ---\n", day.Date.Format("Mon, Jan 2 2006"))
		for _, m := range day.Messages {
			status := ""
			if m.Pending {
				status = " (sending)"
			}
			fmt.Fprintf(w, "%s  %s: %s%s\n", m.CreatedAt.In(loc).Format("15:04"), senderName(snap, m), m.Body, status)
		}
	}
	if snap.Err != nil {
		fmt.Fprintf(w, "! %v\n", snap.Err)
	}
}

func threadTitle(snap chat.Snapshot) string {
	if snap.Thread.IsGroup() {
		for _, g := range snap.Groups {
			if g.ID == snap.Thread.ID {
				return "#" + g.Name
			}
		}
		return "#" + snap.Thread.ID
	}
	for _, u := range snap.Users {
		if u.ID == snap.Thread.ID {
			return u.Name
		}
	}
	return snap.Thread.ID
}

func senderName(snap chat.Snapshot, m chat.Message) string {
	if m.SenderID == snap.Self.ID {
		return "You"
	}
	if m.SenderName != "" {
		return m.SenderName
	}
	for _, u := range snap.Users {
		if u.ID == m.SenderID {
			return u.Name
		}
	}
	return "Unknown User"
}
