package state

// Profile identifies the local user.
type Profile struct {
	ID string `json:"id"`
}

// Paginated is an ordered collection plus the continuation cursor for
// fetching further pages. An empty NextToken means no/unknown cursor.
type Paginated[T any] struct {
	Items     []T    `json:"items"`
	NextToken string `json:"nextToken"`
}

// Message is a single channel message. Only ID and MessageChannelID carry
// reducer semantics; the remaining fields are payload carried through
// untouched.
type Message struct {
	ID               string `json:"id"`
	MessageChannelID string `json:"messageChannelId"`
	Author           string `json:"author,omitempty"`
	Body             string `json:"body,omitempty"`
	CreatedAt        string `json:"createdAt,omitempty"`
}

// Channel is one chat channel with its paginated message window. Timestamps
// are opaque wire strings; a stub channel created for early-arriving
// messages has every field but ID and Messages empty.
type Channel struct {
	ID        string             `json:"id"`
	Name      string             `json:"name"`
	CreatedAt string             `json:"createdAt"`
	UpdatedAt string             `json:"updatedAt"`
	CreatorID string             `json:"creatorId"`
	Messages  Paginated[Message] `json:"messages"`
}

// State is the full application state tree.
//
// State values are persistent-functional data: Apply returns a value whose
// modified path is freshly allocated and never writes to anything reachable
// from its input. Unmodified subtrees may share backing arrays between
// states, so callers must treat every State they have been handed as
// read-only.
type State struct {
	Me       Profile            `json:"me"`
	Channels Paginated[Channel] `json:"channels"`
}

// Default returns the empty initial state.
func Default() State {
	return State{
		Me:       Profile{ID: ""},
		Channels: Paginated[Channel]{Items: []Channel{}, NextToken: ""},
	}
}

func (m Message) key() string { return m.ID }
func (c Channel) key() string { return c.ID }

// findChannel returns the index of the channel with the given id, or -1.
// Linear scan, first match wins.
func findChannel(items []Channel, id string) int {
	for i := range items {
		if items[i].ID == id {
			return i
		}
	}
	return -1
}
