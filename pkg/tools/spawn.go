package tools

// Spawner starts a background task worker and returns a user-facing
// acknowledgment string.
type Spawner interface {
	Spawn(task, label, originChannel, originChatID string) string
}

// SpawnTool hands a task to the subagent manager. The origin binding is
// set by the agent loop before each turn so the worker's result returns to
// the right conversation.
type SpawnTool struct {
	Manager Spawner

	originChannel string
	originChatID  string
}

// NewSpawnTool creates a SpawnTool bound to the CLI origin.
func NewSpawnTool(manager Spawner) *SpawnTool {
	return &SpawnTool{Manager: manager, originChannel: "cli", originChatID: "direct"}
}

// Bind sets the origin the spawned worker will report back to.
func (t *SpawnTool) Bind(channel, chatID string) {
	t.originChannel = channel
	t.originChatID = chatID
}

func (t *SpawnTool) Name() string { return "spawn" }
func (t *SpawnTool) Description() string {
	return "Spawn a background worker for a complex or long-running task. The worker completes the task independently and reports back when done."
}

func (t *SpawnTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"task":  map[string]any{"type": "string", "description": "The task for the worker to complete"},
			"label": map[string]any{"type": "string", "description": "Optional short label for the task"},
		},
		"required": []string{"task"},
	}
}

func (t *SpawnTool) Execute(args map[string]any) (string, error) {
	task, err := strArg(args, "task")
	if err != nil {
		return "", err
	}
	label, _ := args["label"].(string)
	return t.Manager.Spawn(task, label, t.originChannel, t.originChatID), nil
}
