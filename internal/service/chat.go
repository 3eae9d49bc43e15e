package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"unicode"

	"github.com/Sternrassler/finpath-api/pkg/logging"
	"github.com/Sternrassler/finpath-api/pkg/upstream"
)

const (
	maxHistory     = 20
	promptHistory  = 6
	contextMatches = 3

	chatFallback = "I'm sorry, I'm having trouble processing your request right now. " +
		"Please try again later or ask a different question about financial markets or investments."
)

const finGenieSystemPrompt = `You are FinGenie, a polite, helpful, and professional financial assistant. Always respond to user questions in a clean, structured format using markdown. If the user asks for financial news, company share price, investment insights, or definitions, use the following structure in your replies:

1. **Title** (bolded and relevant to the topic)
2. **Answer Summary:** A 2-3 sentence overview or definition
3. **Key Information:** A bullet list of key details or steps
4. **Additional Insights (if needed):** Brief explanations or tips
5. **Note/Disclaimer:** Always remind the user that financial data may change and to consult official sources or professionals for investment advice

Keep the tone friendly but professional. Respond only with relevant financial or investing information. If asked an unrelated question, politely redirect the user.`

// knownSymbols are NSE tickers recognised in chat messages.
var knownSymbols = map[string]bool{
	"RELIANCE": true, "TCS": true, "HDFCBANK": true, "INFY": true, "ICICIBANK": true,
	"HINDUNILVR": true, "HDFC": true, "SBIN": true, "BAJFINANCE": true, "BHARTIARTL": true,
	"ITC": true, "KOTAKBANK": true, "LT": true, "AXISBANK": true, "ASIANPAINT": true,
	"MARUTI": true, "WIPRO": true, "HCLTECH": true,
}

// chatStore keeps a bounded, per-user conversation history in memory.
type chatStore struct {
	mu    sync.Mutex
	users map[string][]upstream.ChatMessage
	max   int
}

func newChatStore(max int) *chatStore {
	return &chatStore{users: make(map[string][]upstream.ChatMessage), max: max}
}

func (c *chatStore) append(userID string, msgs ...upstream.ChatMessage) {
	c.mu.Lock()
	defer c.mu.Unlock()
	h := append(c.users[userID], msgs...)
	if len(h) > c.max {
		h = append([]upstream.ChatMessage(nil), h[len(h)-c.max:]...)
	}
	c.users[userID] = h
}

// recent returns a copy of the last n messages.
func (c *chatStore) recent(userID string, n int) []upstream.ChatMessage {
	c.mu.Lock()
	defer c.mu.Unlock()
	h := c.users[userID]
	if len(h) > n {
		h = h[len(h)-n:]
	}
	return append([]upstream.ChatMessage(nil), h...)
}

func (c *chatStore) clear(userID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.users, userID)
}

// History returns the stored conversation for userID, oldest first.
func (s *Service) History(userID string) []upstream.ChatMessage {
	return s.chats.recent(userID, maxHistory)
}

// ClearConversation forgets the history of userID.
func (s *Service) ClearConversation(userID string) {
	s.chats.clear(userID)
}

// Chat answers a FinGenie message. The model sees the last few turns, related
// knowledge-base excerpts and live quotes for tickers named in the message.
// Failures never surface to the caller; a fallback reply is returned instead.
func (s *Service) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	req.UserID = strings.TrimSpace(req.UserID)
	req.Message = strings.TrimSpace(req.Message)
	if req.UserID == "" || req.Message == "" {
		return nil, fmt.Errorf("%w: userId and message are required", ErrInvalidInput)
	}
	log := logging.FromContext(ctx)

	history := s.chats.recent(req.UserID, promptHistory)
	s.chats.append(req.UserID, upstream.ChatMessage{Role: upstream.RoleUser, Content: req.Message, Time: s.now().UTC()})

	reply := chatFallback
	if s.llm != nil && s.llm.Configured() {
		system := buildSystemPrompt(s.relevantContext(ctx, req.Message), s.liveQuotes(ctx, req.Message))
		text, err := s.llm.GenerateText(ctx, req.Message, system, history)
		switch {
		case err != nil:
			log.Error().Err(err).Str("component", "service").Str("user_id", req.UserID).Msg("Chat generation failed")
		case strings.TrimSpace(text) != "":
			reply = text
		}
	}

	now := s.now().UTC()
	s.chats.append(req.UserID, upstream.ChatMessage{Role: upstream.RoleAssistant, Content: reply, Time: now})
	return &ChatResponse{Message: reply, Timestamp: now}, nil
}

// relevantContext returns knowledge-base excerpts similar to message, or "".
func (s *Service) relevantContext(ctx context.Context, message string) string {
	if s.vectors == nil || !s.vectors.Configured() {
		return ""
	}
	log := logging.FromContext(ctx)

	vec, err := s.llm.Embed(ctx, message)
	if err != nil {
		log.Warn().Err(err).Str("component", "service").Msg("Embedding failed, answering without context")
		return ""
	}
	matches, err := s.vectors.Query(ctx, vec, contextMatches)
	if err != nil {
		log.Warn().Err(err).Str("component", "service").Msg("Vector query failed, answering without context")
		return ""
	}

	var b strings.Builder
	n := 0
	for _, m := range matches {
		text := m.Text()
		if text == "" {
			continue
		}
		n++
		fmt.Fprintf(&b, "[Document %d (Relevance: %.2f)]: %s\n\n", n, m.Score, text)
	}
	return b.String()
}

// liveQuotes returns one line per recognised ticker with its current price.
func (s *Service) liveQuotes(ctx context.Context, message string) string {
	var lines []string
	for _, sym := range extractSymbols(message) {
		q, err := s.Stock(ctx, sym+".NS")
		if err != nil {
			continue
		}
		lines = append(lines, fmt.Sprintf("%s: %s (%s)", sym, FormatRupees(q.Price), FormatPercent(q.ChangePercent)))
	}
	if len(lines) == 0 {
		return ""
	}
	return "Real-time stock data:\n" + strings.Join(lines, "\n")
}

// extractSymbols returns known tickers mentioned in message, in order and
// without duplicates.
func extractSymbols(message string) []string {
	var out []string
	seen := map[string]bool{}
	for _, word := range strings.Fields(strings.ToUpper(message)) {
		clean := strings.Map(func(r rune) rune {
			if unicode.IsLetter(r) || unicode.IsDigit(r) {
				return r
			}
			return -1
		}, word)
		if knownSymbols[clean] && !seen[clean] {
			seen[clean] = true
			out = append(out, clean)
		}
	}
	return out
}

func buildSystemPrompt(kbContext, quotes string) string {
	var b strings.Builder
	b.WriteString(finGenieSystemPrompt)
	if kbContext != "" {
		b.WriteString("\n\n--- RELEVANT DOCUMENT EXCERPTS ---\n\n")
		b.WriteString(kbContext)
	}
	if quotes != "" {
		b.WriteString("\n\n--- REAL-TIME FINANCIAL DATA ---\n\n")
		b.WriteString(quotes)
		b.WriteString("\n")
	}
	b.WriteString("\nUse the above information if relevant to the user's query. If it does not address the query completely, " +
		"provide general financial guidance based on your knowledge.")
	return b.String()
}
