package session

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	contractx "github.com/tanpawarit/recipe-basket-agent/agent/contract"
	memoryx "github.com/tanpawarit/recipe-basket-agent/agent/memory"
	promptx "github.com/tanpawarit/recipe-basket-agent/agent/prompt"
	toolx "github.com/tanpawarit/recipe-basket-agent/agent/tool"
	"github.com/tanpawarit/recipe-basket-agent/agent/vectorstore"
)

const (
	// DefaultMaxLoops bounds tool rounds per user message; hitting the cap
	// forces a tool-free final answer, it is not an error.
	DefaultMaxLoops = 5

	finishInstruction = "You cannot use any more tools. Finish answering."
	recentTurnWindow  = 15
	profileMaxTokens  = 120
)

// Retriever is the query side of a vector index.
type Retriever interface {
	QueryText(ctx context.Context, text string, k int) ([]vectorstore.Result, error)
}

// Indexes groups the three retrieval indexes a session grounds itself on.
type Indexes struct {
	Ingredients  Retriever
	Meals        Retriever
	Instructions Retriever
}

type Config struct {
	UserName string
	MaxLoops int
}

// Controller owns one user's conversation state: turn log, basket, vector
// indexes, and tool registry. One instance per user; calls on a single
// instance are strictly sequential.
type Controller struct {
	chat     contractx.ChatModel
	embedder contractx.Embedder
	catalog  contractx.CatalogStore
	profiles contractx.ProfileStore
	indexes  Indexes

	conversation *memoryx.Conversation
	registry     *toolx.Registry
	basket       *Basket

	customer       *contractx.CustomerProfile
	profileSummary string
	maxLoops       int
	now            func() time.Time
}

func New(
	ctx context.Context,
	chat contractx.ChatModel,
	embedder contractx.Embedder,
	catalog contractx.CatalogStore,
	profiles contractx.ProfileStore,
	indexes Indexes,
	cfg Config,
) (*Controller, error) {
	if chat == nil {
		return nil, fmt.Errorf("%w: chat model is required", contractx.ErrValidation)
	}
	if embedder == nil {
		return nil, fmt.Errorf("%w: embedder is required", contractx.ErrValidation)
	}
	if catalog == nil {
		return nil, fmt.Errorf("%w: catalog store is required", contractx.ErrValidation)
	}
	if profiles == nil {
		return nil, fmt.Errorf("%w: profile store is required", contractx.ErrValidation)
	}

	customer, err := profiles.EnsureCustomer(ctx, cfg.UserName)
	if err != nil {
		return nil, err
	}

	maxLoops := cfg.MaxLoops
	if maxLoops <= 0 {
		maxLoops = DefaultMaxLoops
	}

	s := &Controller{
		chat:           chat,
		embedder:       embedder,
		catalog:        catalog,
		profiles:       profiles,
		indexes:        indexes,
		conversation:   memoryx.NewConversation(),
		registry:       toolx.NewRegistry(),
		basket:         NewBasket(),
		customer:       customer,
		profileSummary: customer.Summary,
		maxLoops:       maxLoops,
		now:            time.Now,
	}
	s.registerTools()
	return s, nil
}

// AddUserMessage appends the user turn and runs the reasoning loop until the
// model answers without tool calls or the loop cap forces an answer.
func (s *Controller) AddUserMessage(ctx context.Context, text string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("%w: user message is empty", contractx.ErrValidation)
	}
	s.conversation.AddUser(text)
	return s.evaluate(ctx)
}

func (s *Controller) evaluate(ctx context.Context) (string, error) {
	for loops := 0; ; loops++ {
		if err := s.conversation.Condense(ctx, s.chat); err != nil {
			return "", err
		}

		messages := make([]contractx.Turn, 0, s.conversation.Len()+3)
		messages = append(messages, contractx.Turn{Role: contractx.RoleSystem, Content: s.systemPrompt()})
		messages = append(messages, s.conversation.SummaryTurn())
		messages = append(messages, s.conversation.Turns()...)

		req := contractx.CompletionRequest{Messages: messages}
		if loops >= s.maxLoops {
			req.Messages = append(req.Messages, contractx.Turn{
				Role:    contractx.RoleSystem,
				Content: finishInstruction,
			})
		} else {
			req.Tools = s.registry.Definitions()
			req.ToolChoice = "auto"
		}

		res, err := s.chat.Complete(ctx, req)
		if err != nil {
			return "", err
		}

		s.conversation.AddAssistant(res.Content, res.ToolCalls)
		if len(res.ToolCalls) == 0 {
			return res.Content, nil
		}

		for _, call := range res.ToolCalls {
			turn := s.registry.Dispatch(ctx, call)
			s.conversation.AddTool(turn.ToolCallID, turn.Content)
		}
		log.Debug().Int("loop", loops).Int("tool_calls", len(res.ToolCalls)).Msg("reasoning loop continues")
	}
}

// systemPrompt rebuilds the system message from the template and the current
// customer summary and basket state on every call.
func (s *Controller) systemPrompt() string {
	return promptx.RenderSystem(promptx.SystemData{
		CustomerSummary: s.profileSummary,
		BasketSynopsis:  s.basket.Synopsis(),
	})
}

// Basket exposes the session basket for the UI layer.
func (s *Controller) Basket() *Basket {
	return s.basket
}

// Customer returns the profile the session was opened for.
func (s *Controller) Customer() *contractx.CustomerProfile {
	return s.customer
}
