package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"os"
	"sync"
	"time"

	"github.com/agentswarm/swarm/pkg/agent"
	"github.com/agentswarm/swarm/pkg/claude"
	"github.com/agentswarm/swarm/pkg/state"
	"github.com/agentswarm/swarm/pkg/swarmerr"
	"github.com/agentswarm/swarm/pkg/topology"

	"github.com/google/uuid"
	"github.com/hashicorp/go-cleanhttp"
	"github.com/hashicorp/go-retryablehttp"
)

// chatMessage is one entry in a chat/completions conversation.
type chatMessage struct {
	Role       string        `json:"role"`
	Content    string        `json:"content,omitempty"`
	ToolCalls  []oaiToolCall `json:"tool_calls,omitempty"`
	ToolCallID string        `json:"tool_call_id,omitempty"`
}

type oaiToolCall struct {
	ID       string          `json:"id"`
	Type     string          `json:"type"`
	Function oaiToolCallFunc `json:"function"`
}

type oaiToolCallFunc struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Tools       []oaiTool     `json:"tools,omitempty"`
	Temperature float64       `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message      chatMessage `json:"message"`
		FinishReason string      `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
}

// responsesInputItem is one entry in a Responses-API `input` array: either a
// role/content message (the first turn) or a function_call_output tying a
// tool result back to the call_id that requested it (every turn after).
type responsesInputItem struct {
	Type    string `json:"type"`
	Role    string `json:"role,omitempty"`
	Content string `json:"content,omitempty"`
	CallID  string `json:"call_id,omitempty"`
	Output  string `json:"output,omitempty"`
}

type responsesRequest struct {
	Model              string               `json:"model"`
	Input              []responsesInputItem `json:"input"`
	PreviousResponseID string               `json:"previous_response_id,omitempty"`
	Tools              []oaiTool            `json:"tools,omitempty"`
	Temperature        float64              `json:"temperature"`
}

type responsesContentPart struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type responsesOutputItem struct {
	Type      string                 `json:"type"`
	Role      string                 `json:"role,omitempty"`
	Content   []responsesContentPart `json:"content,omitempty"`
	Name      string                 `json:"name,omitempty"`
	Arguments string                 `json:"arguments,omitempty"`
	CallID    string                 `json:"call_id,omitempty"`
}

type responsesResponse struct {
	ID     string                `json:"id"`
	Output []responsesOutputItem `json:"output"`
	Usage  struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

// Executor runs the OpenAI tool-calling loop, resolving tool calls against
// the instance's connected MCP peers. It speaks either the chat_completion
// wire protocol (a resent messages array) or the responses protocol (a
// previous_response_id chaining turns), per cfg.APIVersion.
type Executor struct {
	cfg    Config
	apiKey string
	http   *retryablehttp.Client

	mu        sync.Mutex
	sessionID string

	// chat_completion mode state.
	messages []chatMessage

	// responses mode state.
	previousResponseID string

	peers map[string]*peerConn
	tools []oaiTool
}

// New returns an Executor for one OpenAI-backed instance. Connecting to its
// MCP peers is deferred to the first Execute call.
func New(cfg Config) *Executor {
	httpClient := retryablehttp.NewClient()
	httpClient.HTTPClient = cleanhttp.DefaultPooledClient()
	httpClient.RetryMax = 3
	httpClient.Logger = nil

	return &Executor{
		cfg:    cfg,
		apiKey: os.Getenv(cfg.APIKeyEnv),
		http:   httpClient,
	}
}

// SessionID returns the currently captured conversation id, or "".
func (e *Executor) SessionID() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.sessionID
}

// WorkingDirectory returns the instance's primary directory.
func (e *Executor) WorkingDirectory() string {
	return e.cfg.WorkDir
}

// Reset clears the cached conversation; the next Execute starts fresh.
// Connected MCP peers are left open — the same peers serve the next
// conversation.
func (e *Executor) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.sessionID = ""
	e.messages = nil
	e.previousResponseID = ""
}

// Close disconnects every connected MCP peer. Safe to call even if Execute
// was never called (peers will be nil).
func (e *Executor) Close() {
	e.mu.Lock()
	peers := e.peers
	e.peers = nil
	e.tools = nil
	e.mu.Unlock()
	closeAll(peers)
}

// Execute sends prompt into the cached conversation, resolving any tool
// calls the model makes before returning its final plain-text reply.
func (e *Executor) Execute(ctx context.Context, prompt string, opts agent.RunOptions) (agent.Result, error) {
	if err := e.ensurePeers(ctx); err != nil {
		return agent.Result{}, &swarmerr.TransportError{Message: err.Error()}
	}

	responsesMode := e.cfg.APIVersion == topology.APIVersionResponses

	e.mu.Lock()
	if opts.NewSession {
		e.sessionID = ""
		e.messages = nil
		e.previousResponseID = ""
	}
	if e.sessionID == "" {
		e.sessionID = uuid.New().String()
		if e.cfg.StatePath != "" {
			_ = state.UpdateClaudeSessionID(e.cfg.StatePath, e.cfg.InstanceName, e.cfg.InstanceID, e.sessionID)
		}
	}

	systemPrompt := e.cfg.AppendSystemPrompt
	if opts.SystemPrompt != "" {
		if systemPrompt != "" {
			systemPrompt = systemPrompt + "\n" + opts.SystemPrompt
		} else {
			systemPrompt = opts.SystemPrompt
		}
	}

	var firstTurnInput []responsesInputItem
	if responsesMode {
		if e.previousResponseID == "" && systemPrompt != "" {
			firstTurnInput = append(firstTurnInput, responsesInputItem{Type: "message", Role: "system", Content: systemPrompt})
		}
		firstTurnInput = append(firstTurnInput, responsesInputItem{Type: "message", Role: "user", Content: prompt})
	} else {
		if len(e.messages) == 0 && systemPrompt != "" {
			e.messages = append(e.messages, chatMessage{Role: "system", Content: systemPrompt})
		}
		e.messages = append(e.messages, chatMessage{Role: "user", Content: prompt})
	}
	sessionID := e.sessionID
	e.mu.Unlock()

	start := time.Now()
	var text string
	var cost float64
	var err error
	if responsesMode {
		text, cost, err = e.runLoopResponses(ctx, firstTurnInput)
	} else {
		text, cost, err = e.runLoopChatCompletion(ctx)
	}
	durationMS := float64(time.Since(start).Milliseconds())

	if err != nil {
		if e.cfg.OnEvent != nil {
			e.cfg.OnEvent(claude.StreamMessage{Type: claude.MessageTypeResult, IsError: true, Result: err.Error()})
		}
		return agent.Result{}, err
	}

	result := agent.Result{
		Text:       text,
		CostUSD:    cost,
		DurationMS: durationMS,
		SessionID:  sessionID,
	}

	if e.cfg.OnEvent != nil {
		e.cfg.OnEvent(claude.StreamMessage{
			Type:      claude.MessageTypeResult,
			Result:    text,
			TotalCost: cost,
			Duration:  durationMS,
			SessionID: sessionID,
		})
	}

	return result, nil
}

func (e *Executor) ensurePeers(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.peers != nil {
		return nil
	}
	peers, err := connectPeers(ctx, e.cfg.MCPConfigPath)
	if err != nil {
		return err
	}
	e.peers = peers
	e.tools = buildToolSchemas(peers)
	return nil
}

// runLoopChatCompletion drives the chat_completion wire protocol: the full
// messages array is resent every turn, growing by one assistant/tool
// message per round trip.
func (e *Executor) runLoopChatCompletion(ctx context.Context) (string, float64, error) {
	maxTurns := e.cfg.MaxTurns
	if maxTurns <= 0 {
		maxTurns = 10
	}

	var totalCost float64

	for turn := 0; turn < maxTurns; turn++ {
		e.mu.Lock()
		req := chatRequest{
			Model:       e.cfg.Model,
			Messages:    append([]chatMessage(nil), e.messages...),
			Tools:       e.tools,
			Temperature: e.cfg.Temperature,
		}
		e.mu.Unlock()

		resp, err := e.callChatCompletion(ctx, req)
		if err != nil {
			return "", totalCost, err
		}
		totalCost += estimateCostUSD(e.cfg.Model, resp.Usage.PromptTokens, resp.Usage.CompletionTokens)

		if len(resp.Choices) == 0 {
			return "", totalCost, &swarmerr.ParseError{Message: "openai response had no choices"}
		}
		choice := resp.Choices[0]

		if len(choice.Message.ToolCalls) == 0 {
			e.mu.Lock()
			e.messages = append(e.messages, chatMessage{Role: "assistant", Content: choice.Message.Content})
			e.mu.Unlock()
			return choice.Message.Content, totalCost, nil
		}

		e.mu.Lock()
		e.messages = append(e.messages, chatMessage{
			Role:      "assistant",
			Content:   choice.Message.Content,
			ToolCalls: choice.Message.ToolCalls,
		})
		peers := e.peers
		e.mu.Unlock()

		for _, tc := range choice.Message.ToolCalls {
			if e.cfg.OnEvent != nil {
				e.cfg.OnEvent(claude.StreamMessage{
					Type:     claude.MessageTypeAssistant,
					Subtype:  claude.SubtypeToolUse,
					ToolName: tc.Function.Name,
					ToolID:   tc.ID,
				})
			}

			peer, bareName, found := findTool(peers, tc.Function.Name)
			var content string
			if !found {
				content = fmt.Sprintf("unknown tool: %s", tc.Function.Name)
			} else {
				content = callTool(ctx, peer, bareName, parseArguments(tc.Function.Arguments))
			}

			e.mu.Lock()
			e.messages = append(e.messages, chatMessage{
				Role:       "tool",
				Content:    content,
				ToolCallID: tc.ID,
			})
			e.mu.Unlock()
		}
	}

	return "", totalCost, &swarmerr.ParseError{Message: fmt.Sprintf("openai tool loop exceeded %d turns without a final answer", maxTurns)}
}

func (e *Executor) callChatCompletion(ctx context.Context, req chatRequest) (chatResponse, error) {
	var parsed chatResponse
	if err := e.post(ctx, "/chat/completions", req, &parsed); err != nil {
		return chatResponse{}, err
	}
	return parsed, nil
}

// runLoopResponses drives the responses wire protocol: each call chains off
// the previous one via previous_response_id, sending only the new input
// (the prompt on the first turn, a function_call_output per tool result on
// every turn after) instead of resending the whole conversation.
func (e *Executor) runLoopResponses(ctx context.Context, input []responsesInputItem) (string, float64, error) {
	maxTurns := e.cfg.MaxTurns
	if maxTurns <= 0 {
		maxTurns = 10
	}

	var totalCost float64
	nextInput := input

	for turn := 0; turn < maxTurns; turn++ {
		e.mu.Lock()
		req := responsesRequest{
			Model:               e.cfg.Model,
			Input:               nextInput,
			PreviousResponseID:  e.previousResponseID,
			Tools:               e.tools,
			Temperature:         e.cfg.Temperature,
		}
		e.mu.Unlock()

		resp, err := e.callResponses(ctx, req)
		if err != nil {
			return "", totalCost, err
		}
		totalCost += estimateCostUSD(e.cfg.Model, resp.Usage.InputTokens, resp.Usage.OutputTokens)

		e.mu.Lock()
		e.previousResponseID = resp.ID
		peers := e.peers
		e.mu.Unlock()

		var finalText string
		var toolCalls []responsesOutputItem
		for _, item := range resp.Output {
			switch item.Type {
			case "message":
				for _, part := range item.Content {
					finalText += part.Text
				}
			case "function_call":
				toolCalls = append(toolCalls, item)
			}
		}

		if len(toolCalls) == 0 {
			return finalText, totalCost, nil
		}

		toolOutputs := make([]responsesInputItem, 0, len(toolCalls))
		for _, tc := range toolCalls {
			if e.cfg.OnEvent != nil {
				e.cfg.OnEvent(claude.StreamMessage{
					Type:     claude.MessageTypeAssistant,
					Subtype:  claude.SubtypeToolUse,
					ToolName: tc.Name,
					ToolID:   tc.CallID,
				})
			}

			peer, bareName, found := findTool(peers, tc.Name)
			var content string
			if !found {
				content = fmt.Sprintf("unknown tool: %s", tc.Name)
			} else {
				content = callTool(ctx, peer, bareName, parseArguments(tc.Arguments))
			}

			toolOutputs = append(toolOutputs, responsesInputItem{
				Type:   "function_call_output",
				CallID: tc.CallID,
				Output: content,
			})
		}
		nextInput = toolOutputs
	}

	return "", totalCost, &swarmerr.ParseError{Message: fmt.Sprintf("openai responses tool loop exceeded %d turns without a final answer", maxTurns)}
}

func (e *Executor) callResponses(ctx context.Context, req responsesRequest) (responsesResponse, error) {
	var parsed responsesResponse
	if err := e.post(ctx, "/responses", req, &parsed); err != nil {
		return responsesResponse{}, err
	}
	return parsed, nil
}

// post marshals body, POSTs it to path under cfg.BaseURL, and unmarshals the
// response into out. Shared by both wire protocols so retry/auth/error
// handling is defined once.
func (e *Executor) post(ctx context.Context, path string, body, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshaling request: %w", err)
	}

	baseURL := e.cfg.BaseURL
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	endpoint, err := url.JoinPath(baseURL, path)
	if err != nil {
		return fmt.Errorf("building endpoint url: %w", err)
	}

	httpReq, err := retryablehttp.NewRequestWithContext(ctx, "POST", endpoint, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+e.apiKey)

	resp, err := e.http.Do(httpReq)
	if err != nil {
		return &swarmerr.TransportError{Message: err.Error()}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return &swarmerr.TransportError{Message: err.Error()}
	}

	if resp.StatusCode != 200 {
		return &swarmerr.TransportError{Message: fmt.Sprintf("openai API %d: %s", resp.StatusCode, string(respBody))}
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		return &swarmerr.ParseError{Message: fmt.Sprintf("parsing openai response: %v", err)}
	}
	return nil
}

var _ agent.Executor = (*Executor)(nil)
