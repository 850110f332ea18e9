package llm

import "context"

// Request - один запрос к модели: промпт целиком и температура.
// Модель и ключ задаются конфигурацией провайдера, а не вызовом.
type Request struct {
	Prompt      string
	System      string
	Temperature float64
	MaxTokens   int
}

// Provider выполняет ровно одну попытку обращения к модели.
type Provider interface {
	Name() string
	Model() string
	Generate(ctx context.Context, req Request) (string, error)
}
