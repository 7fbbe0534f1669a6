package command

import (
	"fmt"
	"strings"

	"chatsync/internal/chat"
)

// resolveThread finds a peer by ID, email or name, or a group by ID or name
func resolveThread(snap chat.Snapshot, ref string, group bool) (chat.Thread, error) {
	ref = strings.TrimSpace(ref)
	if group {
		for _, g := range snap.Groups {
			if g.ID == ref || strings.EqualFold(g.Name, ref) {
				return chat.Thread{Kind: chat.KindGroup, ID: g.ID}, nil
			}
		}
		return chat.Thread{}, fmt.Errorf("no group matches %q", ref)
	}

	var matches []chat.Thread
	for _, u := range snap.Users {
		switch {
		case u.ID == ref, strings.EqualFold(u.Email, ref):
			return chat.Thread{Kind: chat.KindDirect, ID: u.ID}, nil
		case strings.EqualFold(u.Name, ref):
			matches = append(matches, chat.Thread{Kind: chat.KindDirect, ID: u.ID})
		}
	}
	switch len(matches) {
	case 0:
		return chat.Thread{}, fmt.Errorf("no user matches %q", ref)
	case 1:
		return matches[0], nil
	}
	return chat.Thread{}, fmt.Errorf("%d users are named %q, use an email or ID", len(matches), ref)
}
