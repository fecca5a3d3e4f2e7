package api

type StartRequest struct {
	Username   string     `json:"username"`
	Difficulty Difficulty `json:"difficulty"`
}

type StartResponse struct {
	SessionID  string     `json:"session_id"`
	Message    string     `json:"message,omitempty"`
	Username   string     `json:"username"`
	Difficulty Difficulty `json:"difficulty"`
	Encounter
	Vitals
	PlayerStats
}

type SceneRequest struct {
	BossIndex int `json:"boss_index"`
}

type SceneResponse struct {
	Encounter
	Vitals
	PlayerStats
}

type ChoiceRequest struct {
	ChoiceID string `json:"choice_id"`
}

// TurnResponse is returned by /api/apply_choice.
type TurnResponse struct {
	Outcome        string   `json:"outcome"`
	Message        string   `json:"message"`
	WasSustainable bool     `json:"was_sustainable"`
	Rewards        []Reward `json:"rewards,omitempty"` // Only with boss_defeated_choose_reward
	Encounter
	Vitals
	PlayerStats
}

type ItemRequest struct {
	ItemID ItemID `json:"item_id"`
}

type ItemResponse struct {
	Outcome         string   `json:"outcome"`
	ItemID          ItemID   `json:"item_id"`
	Message         string   `json:"message"`
	RemovedChoiceID string   `json:"removed_choice_id,omitempty"`
	Scene           string   `json:"scene,omitempty"`
	Choices         []Choice `json:"choices,omitempty"`
	Vitals
	PlayerStats
}

type RewardRequest struct {
	RewardID string `json:"reward_id"`
}

type RewardResponse struct {
	Outcome       string `json:"outcome"`
	RewardID      string `json:"reward_id"`
	RewardMessage string `json:"reward_message"`
	Message       string `json:"message,omitempty"`
	Encounter
	Vitals
	PlayerStats
}

type FactResponse struct {
	Fact string `json:"fact"`
}

type PrefetchResponse struct {
	Status    string `json:"status"`
	QueueSize int    `json:"queue_size"`
	Target    int    `json:"target"`
}

type PrefetchStatus struct {
	QueueSize   int    `json:"prefetch_queue_size"`
	Target      int    `json:"prefetch_target"`
	Running     bool   `json:"prefetch_running"`
	QueueFull   bool   `json:"queue_full"`
	GameActive  bool   `json:"game_active"`
	CurrentBoss string `json:"current_boss"`
}

type BossInfo struct {
	Name     string `json:"name"`
	Category string `json:"category"`
}

type BossListResponse struct {
	Bosses []BossInfo `json:"bosses"`
}

// Stream frame types for /api/scene/stream.
const (
	StreamChunk    = "chunk"
	StreamComplete = "complete"
	StreamError    = "error"
)

// StreamEvent is the JSON payload of one "data: " line of a scene stream.
// A complete event carries the full scene response inline.
type StreamEvent struct {
	Type  string `json:"type"`
	Text  string `json:"text,omitempty"`
	Error string `json:"error,omitempty"`
	*SceneResponse
}
