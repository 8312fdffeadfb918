package session

import (
	"encoding/json"
	"time"
)

// Operator is the identity attached to an operator session after a PIN matches.
type Operator struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// Session is the conversational state of one caller, keyed by the channel's
// session id. The owning Store hands it out under a per-key lock.
type Session struct {
	Key        string
	State      State
	Operator   *Operator
	LastActive time.Time
}

// Step returns the step tag of the current state; a fresh session is at 0.
func (s *Session) Step() Step {
	if s.State == nil {
		return 0
	}
	return s.State.Step()
}

// Logout drops the operator identity and returns to the PIN prompt.
func (s *Session) Logout() {
	s.Operator = nil
	s.State = AwaitPIN{}
}

type sessionJSON struct {
	Key        string          `json:"key"`
	Kind       Kind            `json:"kind,omitempty"`
	State      json.RawMessage `json:"state,omitempty"`
	Operator   *Operator       `json:"operator,omitempty"`
	LastActive time.Time       `json:"last_active"`
}

func (s Session) MarshalJSON() ([]byte, error) {
	out := sessionJSON{
		Key:        s.Key,
		Operator:   s.Operator,
		LastActive: s.LastActive,
	}
	if s.State != nil {
		raw, err := json.Marshal(s.State)
		if err != nil {
			return nil, err
		}
		out.Kind = s.State.Kind()
		out.State = raw
	}
	return json.Marshal(out)
}

func (s *Session) UnmarshalJSON(data []byte) error {
	var in sessionJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	st, err := decodeState(in.Kind, in.State)
	if err != nil {
		return err
	}
	s.Key = in.Key
	s.State = st
	s.Operator = in.Operator
	s.LastActive = in.LastActive
	return nil
}
