package notify

import (
	"sync"

	"github.com/rs/zerolog/log"
)

// Type is the severity of a notification.
type Type string

const (
	TypeInfo    Type = "info"
	TypeWarning Type = "warning"
)

// Message keys used by the controllers.
const (
	MsgHTTPError       = "notification.http_error"
	MsgDeleted         = "notification.deleted"
	MsgUpdated         = "notification.updated"
	MsgCreated         = "notification.created"
	MsgItemDoesntExist = "notification.item_doesnt_exist"
)

// Notification is a message for the user. Message is usually a translation key.
type Notification struct {
	Message     string         `json:"message"`
	Type        Type           `json:"type"`
	MessageArgs map[string]any `json:"messageArgs,omitempty"`
	Undoable    bool           `json:"undoable,omitempty"`
	UndoToken   string         `json:"undoToken,omitempty"`
}

// Notifier is the notification sink.
type Notifier interface {
	Notify(n Notification)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(n Notification)

func (f NotifierFunc) Notify(n Notification) { f(n) }

// ErrorMessage extracts a displayable message from a failure value.
// It accepts a raw string or an error, and returns "" when neither carries text.
func ErrorMessage(failure any) string {
	switch e := failure.(type) {
	case nil:
		return ""
	case string:
		return e
	case error:
		return e.Error()
	default:
		return ""
	}
}

// FromError builds the warning notification for a failed fetch or mutation.
// The message falls back to the generic http error key.
func FromError(failure any) Notification {
	msg := ErrorMessage(failure)
	n := Notification{Message: msg, Type: TypeWarning}
	if msg == "" {
		n.Message = MsgHTTPError
		n.MessageArgs = map[string]any{"_": nil}
		return n
	}
	n.MessageArgs = map[string]any{"_": msg}
	return n
}

// Log writes notifications to the global zerolog logger.
type Log struct{}

func (Log) Notify(n Notification) {
	ev := log.Info()
	if n.Type == TypeWarning {
		ev = log.Warn()
	}
	ev.Str("type", string(n.Type)).
		Bool("undoable", n.Undoable).
		Interface("args", n.MessageArgs).
		Msg(n.Message)
}

// Recorder collects notifications, e.g. to return them with an HTTP response.
type Recorder struct {
	mu    sync.Mutex
	items []Notification
	next  Notifier
}

// NewRecorder creates a recorder that also forwards to next when non-nil.
func NewRecorder(next Notifier) *Recorder {
	return &Recorder{next: next}
}

func (r *Recorder) Notify(n Notification) {
	r.mu.Lock()
	r.items = append(r.items, n)
	r.mu.Unlock()
	if r.next != nil {
		r.next.Notify(n)
	}
}

// All returns a copy of the recorded notifications.
func (r *Recorder) All() []Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Notification, len(r.items))
	copy(out, r.items)
	return out
}

// Last returns the most recent notification.
func (r *Recorder) Last() (Notification, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.items) == 0 {
		return Notification{}, false
	}
	return r.items[len(r.items)-1], true
}

// Discard drops every notification.
var Discard Notifier = NotifierFunc(func(Notification) {})
