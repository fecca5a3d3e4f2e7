package encounter

import "github.com/jwebster45206/boss-rush/pkg/api"

// Intent is a player action handed to Machine.Dispatch.
type Intent interface {
	intent() string
}

// Start begins a new session. Legal only while idle.
type Start struct {
	Player     string
	Difficulty api.Difficulty
}

// Choose submits one of the offered choices.
type Choose struct {
	ID string
}

// UseItem activates an inventory item during a turn.
type UseItem struct {
	Item api.ItemID
}

// ClaimReward picks one of the rewards offered after a boss falls.
type ClaimReward struct {
	ID string
}

// Restart throws the session away and returns to idle.
type Restart struct{}

// LoadFact asks for a fun fact about the current boss. It is informational:
// it never takes the turn gate and its failures are swallowed. An empty
// Topic means the boss category.
type LoadFact struct {
	Topic string
}

func (Start) intent() string       { return "start" }
func (Choose) intent() string      { return "choose" }
func (UseItem) intent() string     { return "use_item" }
func (ClaimReward) intent() string { return "claim_reward" }
func (Restart) intent() string     { return "restart" }
func (LoadFact) intent() string    { return "load_fact" }
