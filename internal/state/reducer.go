package state

import (
	"encoding/json"
	"fmt"
)

// Apply is the state reducer: it maps the current state and one action to
// the next state. It never mutates s or anything reachable from it; branches
// that change data allocate the path from the root to the changed node, and
// not-found guards return the input value untouched.
//
// Dispatching an action kind outside the closed set is a contract violation:
// Apply returns ErrUnknownAction carrying the serialized action, and no
// state.
func Apply(s State, a Action) (State, error) {
	switch act := a.(type) {
	case AppendChannels:
		items := cloneItems(s.Channels.Items)
		for _, ch := range act.Items {
			items = upsert(items, ch.ID, ch, atBack)
		}
		s.Channels = Paginated[Channel]{Items: items, NextToken: act.NextToken}
		return s, nil

	case PrependChannel:
		s.Channels.Items = upsert(cloneItems(s.Channels.Items), act.Channel.ID, act.Channel, atFront)
		return s, nil

	case SetChannels:
		if len(s.Channels.Items) == 0 {
			s.Channels = normalized(act.Channels)
			return s, nil
		}
		items := cloneItems(s.Channels.Items)
		for _, ch := range act.Channels.Items {
			items = upsert(items, ch.ID, ch, atBack)
		}
		s.Channels = Paginated[Channel]{Items: items, NextToken: act.Channels.NextToken}
		return s, nil

	case SetMessages:
		idx := findChannel(s.Channels.Items, act.ChannelID)
		items := cloneItems(s.Channels.Items)
		if idx == -1 {
			items = append(items, stubChannel(act.ChannelID, act.Messages))
		} else {
			ch := items[idx]
			ch.Messages = normalized(act.Messages)
			items[idx] = ch
		}
		s.Channels.Items = items
		return s, nil

	case PrependMessage:
		idx := findChannel(s.Channels.Items, act.Message.MessageChannelID)
		if idx == -1 {
			return s, nil
		}
		items := cloneItems(s.Channels.Items)
		ch := items[idx]
		ch.Messages.Items = upsert(cloneItems(ch.Messages.Items), act.Message.ID, act.Message, atFront)
		items[idx] = ch
		s.Channels.Items = items
		return s, nil

	case AppendMessages:
		idx := findChannel(s.Channels.Items, act.ChannelID)
		items := cloneItems(s.Channels.Items)
		if idx == -1 {
			items = append(items, stubChannel(act.ChannelID, act.Messages))
		} else {
			ch := items[idx]
			msgs := cloneItems(ch.Messages.Items)
			for _, m := range act.Messages.Items {
				msgs = upsert(msgs, m.ID, m, atBack)
			}
			ch.Messages = Paginated[Message]{Items: msgs, NextToken: act.Messages.NextToken}
			items[idx] = ch
		}
		s.Channels.Items = items
		return s, nil

	case SetMyInfo:
		s.Me = act.Profile
		return s, nil

	case UpdateChannel:
		idx := findChannel(s.Channels.Items, act.ID)
		if idx == -1 {
			return s, nil
		}
		items := cloneItems(s.Channels.Items)
		ch := items[idx]
		ch.UpdatedAt = act.UpdatedAt
		ch.Name = act.Name
		ch.CreatorID = act.CreatorID
		items[idx] = ch
		s.Channels.Items = items
		return s, nil

	case MoveToFront:
		idx := findChannel(s.Channels.Items, act.ChannelID)
		if idx == -1 {
			return s, nil
		}
		items := make([]Channel, 0, len(s.Channels.Items))
		items = append(items, s.Channels.Items[idx])
		items = append(items, s.Channels.Items[:idx]...)
		items = append(items, s.Channels.Items[idx+1:]...)
		s.Channels.Items = items
		return s, nil
	}

	return State{}, fmt.Errorf("%w: %s", ErrUnknownAction, describeAction(a))
}

// stubChannel is the placeholder appended when messages arrive for a channel
// the channel list does not hold yet. Everything but the id and the message
// window is empty.
func stubChannel(id string, msgs Paginated[Message]) Channel {
	return Channel{ID: id, Messages: normalized(msgs)}
}

// normalized keeps adopted payload pages from introducing nil item lists
// into the state tree.
func normalized[T any](p Paginated[T]) Paginated[T] {
	if p.Items == nil {
		p.Items = []T{}
	}
	return p
}

// describeAction renders an action for the unknown-kind diagnostic.
func describeAction(a Action) string {
	if a == nil {
		return "<nil>"
	}
	raw, err := json.Marshal(a)
	if err != nil {
		return fmt.Sprintf("%s %+v", a.Kind(), a)
	}
	return fmt.Sprintf("%s %s", a.Kind(), raw)
}
