package models

// Message представляет реплику из истории диалога, которую присылает клиент.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// AgentRequest представляет входящую команду агенту.
type AgentRequest struct {
	Utterance string    `json:"utterance"`
	ProjectID string    `json:"project_id,omitempty"`
	History   []Message `json:"history,omitempty"`
}

// AgentResponse представляет результат обработки команды.
type AgentResponse struct {
	Success bool   `json:"success"`
	Action  string `json:"action"`
	Message string `json:"message"`
	Data    any    `json:"result,omitempty"`
	Error   string `json:"error,omitempty"`
}
