package tokenizer

import (
	"strings"
	"sync"
	"unicode"

	tiktoken "github.com/pkoukk/tiktoken-go"
)

// Tokenizer считает токены через tiktoken, а без BPE-словаря (офлайн) переходит на оценку по символам.
type Tokenizer struct {
	encoder      *tiktoken.Tiktoken
	encodingName string
	fallback     bool
	mu           sync.Mutex
}

func New(encodingName string) *Tokenizer {
	t := &Tokenizer{encodingName: encodingName}
	enc, err := tiktoken.GetEncoding(encodingName)
	if err != nil {
		t.fallback = true
		return t
	}
	t.encoder = enc
	return t
}

// ForModel выбирает кодировку по имени модели.
func ForModel(model string) *Tokenizer {
	return New(encodingForModel(model))
}

// Heuristic возвращает счетчик без tiktoken.
func Heuristic() *Tokenizer {
	return &Tokenizer{encodingName: "heuristic", fallback: true}
}

func (t *Tokenizer) Count(text string) int {
	if text == "" {
		return 0
	}
	if t.fallback {
		return heuristicCount(text)
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.encoder.Encode(text, nil, nil))
}

func (t *Tokenizer) Precise() bool { return !t.fallback }

func (t *Tokenizer) EncodingName() string { return t.encodingName }

// heuristicCount: латиница около 4 символов на токен, кириллица и CJK дороже.
func heuristicCount(text string) int {
	var wide, narrow int
	for _, r := range text {
		if r > unicode.MaxASCII {
			wide++
		} else {
			narrow++
		}
	}
	n := int(float64(wide)*0.75 + float64(narrow)*0.25)
	if n < 1 {
		n = 1
	}
	return n
}

func encodingForModel(model string) string {
	m := strings.ToLower(strings.TrimSpace(model))
	// у OpenRouter модели идут с префиксом поставщика
	if i := strings.LastIndex(m, "/"); i >= 0 {
		m = m[i+1:]
	}
	switch {
	case strings.HasPrefix(m, "gpt-4o"), strings.HasPrefix(m, "chatgpt-4o"),
		strings.HasPrefix(m, "o1"), strings.HasPrefix(m, "o3"), strings.HasPrefix(m, "o4"):
		return "o200k_base"
	}
	return "cl100k_base"
}
