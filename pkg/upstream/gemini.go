package upstream

import (
	"context"
	"net/url"
	"strings"
)

// Gemini defaults.
const (
	GeminiBaseURL         = "https://generativelanguage.googleapis.com/v1beta"
	DefaultGeminiModel    = "gemini-1.5-flash"
	DefaultEmbeddingModel = "models/embedding-001"
)

// GeminiMatcher matches Gemini quota errors.
func GeminiMatcher() Matcher {
	m := DefaultMatcher()
	m.Substrings = append(m.Substrings, "RESOURCE_EXHAUSTED")
	return m
}

// GenerationConfig holds sampling parameters for text generation.
type GenerationConfig struct {
	Temperature     float64 `json:"temperature"`
	TopP            float64 `json:"topP"`
	TopK            int     `json:"topK"`
	MaxOutputTokens int     `json:"maxOutputTokens"`
}

// DefaultGenerationConfig returns the sampling parameters used for analysis and chat.
func DefaultGenerationConfig() GenerationConfig {
	return GenerationConfig{
		Temperature:     0.7,
		TopP:            0.95,
		TopK:            40,
		MaxOutputTokens: 2048,
	}
}

// Gemini is a client for the Google Generative Language REST API.
type Gemini struct {
	http       *HTTPClient
	apiKey     string
	model      string
	embedModel string
	generation GenerationConfig
}

// NewGemini creates a client for model (DefaultGeminiModel when empty).
func NewGemini(apiKey, model string, opts ...Option) *Gemini {
	if model == "" {
		model = DefaultGeminiModel
	}
	opts = append([]Option{WithMatcher(GeminiMatcher())}, opts...)
	return &Gemini{
		http:       NewHTTPClient("gemini", GeminiBaseURL, opts...),
		apiKey:     apiKey,
		model:      model,
		embedModel: DefaultEmbeddingModel,
		generation: DefaultGenerationConfig(),
	}
}

// Name returns the provider name.
func (g *Gemini) Name() string { return g.http.Provider() }

// Configured reports whether an API key is set.
func (g *Gemini) Configured() bool { return requireKey(g.Name(), g.apiKey) == nil }

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type generateRequest struct {
	Contents          []geminiContent  `json:"contents"`
	SystemInstruction *geminiContent   `json:"systemInstruction,omitempty"`
	GenerationConfig  GenerationConfig `json:"generationConfig"`
}

type generateResponse struct {
	Candidates []struct {
		Content      geminiContent `json:"content"`
		FinishReason string        `json:"finishReason"`
	} `json:"candidates"`
	PromptFeedback *struct {
		BlockReason string `json:"blockReason"`
	} `json:"promptFeedback"`
}

// GenerateText sends prompt, preceded by history, and returns the model's reply.
// system is sent as the system instruction when non-empty.
func (g *Gemini) GenerateText(ctx context.Context, prompt, system string, history []ChatMessage) (string, error) {
	if err := requireKey(g.Name(), g.apiKey); err != nil {
		return "", err
	}

	req := generateRequest{GenerationConfig: g.generation}
	if system != "" {
		req.SystemInstruction = &geminiContent{Parts: []geminiPart{{Text: system}}}
	}
	for _, msg := range history {
		role := "user"
		if msg.Role == RoleAssistant {
			role = "model"
		}
		req.Contents = append(req.Contents, geminiContent{Role: role, Parts: []geminiPart{{Text: msg.Content}}})
	}
	req.Contents = append(req.Contents, geminiContent{Role: "user", Parts: []geminiPart{{Text: prompt}}})

	var resp generateResponse
	path := "/models/" + url.PathEscape(g.model) + ":generateContent"
	if err := g.http.PostJSON(ctx, path, url.Values{"key": {g.apiKey}}, req, &resp); err != nil {
		return "", err
	}
	if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != "" {
		return "", g.http.PayloadError("prompt blocked: " + resp.PromptFeedback.BlockReason)
	}
	if len(resp.Candidates) == 0 {
		return "", g.http.Empty("no candidates")
	}

	var b strings.Builder
	for _, p := range resp.Candidates[0].Content.Parts {
		b.WriteString(p.Text)
	}
	text := strings.TrimSpace(b.String())
	if text == "" {
		return "", g.http.Empty("empty candidate")
	}
	return text, nil
}

type embedRequest struct {
	Model    string        `json:"model"`
	Content  geminiContent `json:"content"`
	TaskType string        `json:"taskType,omitempty"`
}

type embedResponse struct {
	Embedding struct {
		Values []float32 `json:"values"`
	} `json:"embedding"`
}

// Embed returns the embedding of text for retrieval.
func (g *Gemini) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := requireKey(g.Name(), g.apiKey); err != nil {
		return nil, err
	}
	req := embedRequest{
		Model:    g.embedModel,
		Content:  geminiContent{Parts: []geminiPart{{Text: text}}},
		TaskType: "RETRIEVAL_DOCUMENT",
	}
	var resp embedResponse
	path := "/" + g.embedModel + ":embedContent"
	if err := g.http.PostJSON(ctx, path, url.Values{"key": {g.apiKey}}, req, &resp); err != nil {
		return nil, err
	}
	if len(resp.Embedding.Values) == 0 {
		return nil, g.http.Empty("empty embedding")
	}
	return resp.Embedding.Values, nil
}
