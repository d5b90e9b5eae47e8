package page

import "fmt"

// State is the lifecycle of one analysis page.
type State int

const (
	// Idle means there is no input, or nothing is displayed yet.
	Idle State = iota
	// Cached means the displayed text was served from the cache.
	Cached
	// Loading means a completion request is in flight.
	Loading
	// Ready means the displayed text came from the last completion.
	Ready
	// Failed means the last completion failed.
	Failed
)

var stateNames = [...]string{"idle", "cached", "loading", "ready", "failed"}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return fmt.Sprintf("State(%d)", int(s))
	}
	return stateNames[s]
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *State) UnmarshalText(b []byte) error {
	for i, name := range stateNames {
		if name == string(b) {
			*s = State(i)
			return nil
		}
	}
	return fmt.Errorf("unknown page state %q", b)
}

// Snapshot is a copy of a page's observable state.
type Snapshot struct {
	Kind  string `json:"kind"`
	State State  `json:"state"`
	// Input is the live business input last committed to the page.
	Input string `json:"input"`
	// DisplayedInput is the input the displayed text was generated for.
	DisplayedInput string `json:"displayed_input,omitempty"`
	Text           string `json:"text"`
	Error          string `json:"error,omitempty"`
	Hint           string `json:"hint,omitempty"`
	LastAnalyzed   string `json:"last_analyzed,omitempty"`
	FetchID        string `json:"fetch_id,omitempty"`
}

// HasDisplay reports whether the page shows a result that can be exported.
func (s Snapshot) HasDisplay() bool {
	return s.State == Cached || s.State == Ready
}
