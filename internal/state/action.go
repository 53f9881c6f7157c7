package state

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrUnknownAction signals a dispatch of an action kind outside the closed
// set. This is a programming error in the integration, not a recoverable
// condition: the dispatch that caused it must be aborted.
var ErrUnknownAction = errors.New("unknown action kind")

// ErrMissingField signals a protocol envelope without a required locator
// field.
var ErrMissingField = errors.New("missing required field")

// Wire kind strings for the closed action set.
const (
	KindAppendChannels = "append_channels"
	KindPrependChannel = "prepend_channel"
	KindSetChannels    = "set_channels"
	KindSetMessages    = "set_messages"
	KindPrependMessage = "prepend_message"
	KindAppendMessages = "append_messages"
	KindSetMyInfo      = "set_my_info"
	KindUpdateChannel  = "update_channel"
	KindMoveToFront    = "move_to_front"
)

// Action is one state transition command. The set of kinds is closed: Apply
// accepts exactly the nine variants defined here and fails on anything else.
type Action interface {
	Kind() string
}

// AppendChannels upserts a fetched page of channels at the back of the
// channel list and records the page cursor.
type AppendChannels struct {
	Items     []Channel `json:"items"`
	NextToken string    `json:"nextToken"`
}

// PrependChannel puts a single channel at the front of the channel list.
type PrependChannel struct {
	Channel Channel `json:"channel"`
}

// SetChannels seeds the channel list from a fetched page, or merges the page
// into a list that already has entries.
type SetChannels struct {
	Channels Paginated[Channel] `json:"channels"`
}

// SetMessages replaces a channel's message window wholesale.
type SetMessages struct {
	ChannelID string             `json:"channelId"`
	Messages  Paginated[Message] `json:"messages"`
}

// PrependMessage puts a single message at the front of its channel's
// message window.
type PrependMessage struct {
	Message Message `json:"message"`
}

// AppendMessages upserts a fetched page of messages at the back of a
// channel's message window and records that window's cursor.
type AppendMessages struct {
	ChannelID string             `json:"channelId"`
	Messages  Paginated[Message] `json:"messages"`
}

// SetMyInfo replaces the local user profile.
type SetMyInfo struct {
	Profile Profile `json:"profile"`
}

// UpdateChannel overwrites a channel's mutable metadata fields. CreatedAt
// and the message window are left untouched.
type UpdateChannel struct {
	ID        string `json:"id"`
	UpdatedAt string `json:"updatedAt"`
	Name      string `json:"name"`
	CreatorID string `json:"creatorId"`
}

// MoveToFront moves a channel to the front of the channel list, content
// unchanged.
type MoveToFront struct {
	ChannelID string `json:"channelId"`
}

func (AppendChannels) Kind() string { return KindAppendChannels }
func (PrependChannel) Kind() string { return KindPrependChannel }
func (SetChannels) Kind() string    { return KindSetChannels }
func (SetMessages) Kind() string    { return KindSetMessages }
func (PrependMessage) Kind() string { return KindPrependMessage }
func (AppendMessages) Kind() string { return KindAppendMessages }
func (SetMyInfo) Kind() string      { return KindSetMyInfo }
func (UpdateChannel) Kind() string  { return KindUpdateChannel }
func (MoveToFront) Kind() string    { return KindMoveToFront }

// DecodeAction builds an Action from a protocol envelope. The raw line is
// the full request object; payload fields sit beside the "action" key.
// Unknown kinds return ErrUnknownAction with the offending kind, envelopes
// without their locator field return ErrMissingField.
func DecodeAction(kind string, raw []byte) (Action, error) {
	switch kind {
	case KindAppendChannels:
		var a AppendChannels
		if err := json.Unmarshal(raw, &a); err != nil {
			return nil, fmt.Errorf("decode %s: %w", kind, err)
		}
		return a, nil

	case KindPrependChannel:
		var a PrependChannel
		if err := json.Unmarshal(raw, &a); err != nil {
			return nil, fmt.Errorf("decode %s: %w", kind, err)
		}
		if a.Channel.ID == "" {
			return nil, fmt.Errorf("%s: channel.id: %w", kind, ErrMissingField)
		}
		return a, nil

	case KindSetChannels:
		var a SetChannels
		if err := json.Unmarshal(raw, &a); err != nil {
			return nil, fmt.Errorf("decode %s: %w", kind, err)
		}
		return a, nil

	case KindSetMessages:
		var a SetMessages
		if err := json.Unmarshal(raw, &a); err != nil {
			return nil, fmt.Errorf("decode %s: %w", kind, err)
		}
		if a.ChannelID == "" {
			return nil, fmt.Errorf("%s: channelId: %w", kind, ErrMissingField)
		}
		return a, nil

	case KindPrependMessage:
		var a PrependMessage
		if err := json.Unmarshal(raw, &a); err != nil {
			return nil, fmt.Errorf("decode %s: %w", kind, err)
		}
		if a.Message.MessageChannelID == "" {
			return nil, fmt.Errorf("%s: message.messageChannelId: %w", kind, ErrMissingField)
		}
		return a, nil

	case KindAppendMessages:
		var a AppendMessages
		if err := json.Unmarshal(raw, &a); err != nil {
			return nil, fmt.Errorf("decode %s: %w", kind, err)
		}
		if a.ChannelID == "" {
			return nil, fmt.Errorf("%s: channelId: %w", kind, ErrMissingField)
		}
		return a, nil

	case KindSetMyInfo:
		var a SetMyInfo
		if err := json.Unmarshal(raw, &a); err != nil {
			return nil, fmt.Errorf("decode %s: %w", kind, err)
		}
		return a, nil

	case KindUpdateChannel:
		var a UpdateChannel
		if err := json.Unmarshal(raw, &a); err != nil {
			return nil, fmt.Errorf("decode %s: %w", kind, err)
		}
		if a.ID == "" {
			return nil, fmt.Errorf("%s: id: %w", kind, ErrMissingField)
		}
		return a, nil

	case KindMoveToFront:
		var a MoveToFront
		if err := json.Unmarshal(raw, &a); err != nil {
			return nil, fmt.Errorf("decode %s: %w", kind, err)
		}
		if a.ChannelID == "" {
			return nil, fmt.Errorf("%s: channelId: %w", kind, ErrMissingField)
		}
		return a, nil
	}

	return nil, fmt.Errorf("%w: %q", ErrUnknownAction, kind)
}
