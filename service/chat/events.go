package chat

// Event is everything the router loop consumes. Sessions produce
// MessageSent, HistoryRequested and RosterRequested; the websocket handler
// produces Connected; Disconnected comes from a closing session.
type Event interface{ event() }

type Connected struct{ Session *Session }

type Disconnected struct{ Session *Session }

// MessageSent carries a chat message. An empty To is the global channel.
type MessageSent struct {
	Session *Session
	To      string
	Text    string
}

// HistoryRequested asks for one channel's log. An empty Target is global.
type HistoryRequested struct {
	Session *Session
	Target  string
}

type RosterRequested struct{ Session *Session }

func (Connected) event()        {}
func (Disconnected) event()     {}
func (MessageSent) event()      {}
func (HistoryRequested) event() {}
func (RosterRequested) event()  {}
