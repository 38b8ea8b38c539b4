package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/invopop/jsonschema"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/responses"

	"github.com/theimaginaryfoundation/tone-probe/probe"
)

// ClientOptions configures the OpenAI client shared by both completers.
type ClientOptions struct {
	APIKey string
	// BaseURL points at any OpenAI-compatible endpoint (empty uses the SDK default).
	BaseURL string
}

// NewClient builds a client with SDK-level retries disabled; retrying, if any, is done by
// CallWithRetry so the attempt budget is explicit.
func NewClient(o ClientOptions) openai.Client {
	opts := []option.RequestOption{
		option.WithAPIKey(o.APIKey),
		option.WithMaxRetries(0),
	}
	if o.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(o.BaseURL))
	}
	return openai.NewClient(opts...)
}

// ChatCompleter answers prompts through Chat Completions and returns the first choice.
type ChatCompleter struct {
	client   *openai.Client
	attempts int
}

var _ probe.Completer = (*ChatCompleter)(nil)

func NewChatCompleter(client *openai.Client, attempts int) *ChatCompleter {
	return &ChatCompleter{client: client, attempts: attempts}
}

func (c *ChatCompleter) Complete(ctx context.Context, req probe.CompletionRequest) (string, error) {
	if c.client == nil {
		return "", errors.New("ChatCompleter: client is nil")
	}
	params := openai.ChatCompletionNewParams{
		Model:       openai.ChatModel(req.Model),
		Temperature: openai.Float(req.Temperature),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(req.Prompt),
		},
	}
	resp, err := CallWithRetry(ctx, c.attempts, func(ctx context.Context) (*openai.ChatCompletion, error) {
		return c.client.Chat.Completions.New(ctx, params)
	})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("no completion choices returned")
	}
	return resp.Choices[0].Message.Content, nil
}

// ResponsesCompleter answers prompts through the Responses API.
type ResponsesCompleter struct {
	client   *openai.Client
	attempts int
}

var _ probe.Completer = (*ResponsesCompleter)(nil)

func NewResponsesCompleter(client *openai.Client, attempts int) *ResponsesCompleter {
	return &ResponsesCompleter{client: client, attempts: attempts}
}

func (c *ResponsesCompleter) Complete(ctx context.Context, req probe.CompletionRequest) (string, error) {
	if c.client == nil {
		return "", errors.New("ResponsesCompleter: client is nil")
	}
	params := responses.ResponseNewParams{
		Model:       req.Model,
		Temperature: openai.Float(req.Temperature),
		Input: responses.ResponseNewParamsInputUnion{
			OfString: openai.String(req.Prompt),
		},
	}
	resp, err := CallWithRetry(ctx, c.attempts, func(ctx context.Context) (*responses.Response, error) {
		return c.client.Responses.New(ctx, params)
	})
	if err != nil {
		return "", err
	}
	return resp.OutputText(), nil
}

var (
	rateLimitWaitTimes   = []time.Duration{65 * time.Second, 100 * time.Second, 135 * time.Second}
	serverErrorWaitTimes = []time.Duration{5 * time.Second, 30 * time.Second, 60 * time.Second}
)

// CallWithRetry runs call up to attempts times (minimum 1), backing off only on rate-limit and
// server errors. Other errors return immediately.
func CallWithRetry[T any](ctx context.Context, attempts int, call func(context.Context) (T, error)) (T, error) {
	return callWithRetry(ctx, attempts, rateLimitWaitTimes, serverErrorWaitTimes, call)
}

func callWithRetry[T any](ctx context.Context, attempts int, rateWaits, serverWaits []time.Duration, call func(context.Context) (T, error)) (T, error) {
	if attempts < 1 {
		attempts = 1
	}
	var zero T
	for attempt := 0; attempt < attempts; attempt++ {
		resp, err := call(ctx)
		if err == nil {
			return resp, nil
		}
		last := attempt == attempts-1
		var wait time.Duration
		switch {
		case last:
			return zero, err
		case isRateLimitError(err):
			wait = waitAt(rateWaits, attempt)
		case isServerError(err):
			wait = waitAt(serverWaits, attempt)
		default:
			return zero, err
		}
		t := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			t.Stop()
			return zero, ctx.Err()
		case <-t.C:
		}
	}
	return zero, fmt.Errorf("failed after %d attempts due to OpenAI API issues", attempts)
}

func waitAt(waits []time.Duration, attempt int) time.Duration {
	if len(waits) == 0 {
		return 0
	}
	if attempt >= len(waits) {
		return waits[len(waits)-1]
	}
	return waits[attempt]
}

func isRateLimitError(err error) bool {
	if err == nil {
		return false
	}
	errStr := strings.ToLower(err.Error())
	return strings.Contains(errStr, "429") ||
		strings.Contains(errStr, "rate limit") ||
		strings.Contains(errStr, "too many requests")
}

func isServerError(err error) bool {
	if err == nil {
		return false
	}
	errStr := strings.ToLower(err.Error())
	return strings.Contains(errStr, "500") ||
		strings.Contains(errStr, "internal server error") ||
		strings.Contains(errStr, "server_error")
}

// GenerateSchema reflects T into a JSON Schema that rejects unknown properties. Required
// fields come from `jsonschema:"required"` tags.
func GenerateSchema[T any]() (map[string]interface{}, error) {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties:  false,
		DoNotReference:             true,
		RequiredFromJSONSchemaTags: true,
	}
	var v T
	schema := reflector.Reflect(v)
	schemaObj, err := schemaToMap(schema)
	if err != nil {
		return nil, err
	}
	tightenSchema(schemaObj)
	return schemaObj, nil
}

func schemaToMap(schema *jsonschema.Schema) (map[string]interface{}, error) {
	b, err := schema.MarshalJSON()
	if err != nil {
		return nil, err
	}
	var m map[string]interface{}
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, err
	}
	return m, nil
}

const (
	propertiesKey           = "properties"
	additionalPropertiesKey = "additionalProperties"
	typeKey                 = "type"
	requiredKey             = "required"
	itemsKey                = "items"
)

func tightenSchema(schema map[string]interface{}) {
	if schemaType, ok := schema[typeKey].(string); ok && schemaType == "object" {
		schema[additionalPropertiesKey] = false
		if req, ok := schema[requiredKey].([]interface{}); ok {
			names := make([]string, 0, len(req))
			for _, r := range req {
				if s, ok := r.(string); ok {
					names = append(names, s)
				}
			}
			sort.Strings(names)
			schema[requiredKey] = names
		}
	}

	if properties, ok := schema[propertiesKey].(map[string]interface{}); ok {
		for _, prop := range properties {
			if propMap, ok := prop.(map[string]interface{}); ok {
				tightenSchema(propMap)
			}
		}
	}

	if items, ok := schema[itemsKey].(map[string]interface{}); ok {
		tightenSchema(items)
	}
}
