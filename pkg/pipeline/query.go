package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/papercomputeco/docchat/pkg/embeddings"
	"github.com/papercomputeco/docchat/pkg/errs"
	"github.com/papercomputeco/docchat/pkg/llm"
	"github.com/papercomputeco/docchat/pkg/vector"
)

const systemPromptTemplate = `You are a professional research assistant. Use the following CONTEXT to provide a clear, concise, and factual answer to the user's question.
If the context does not contain the necessary information, state clearly that you cannot answer based on the provided documents.

CONTEXT:
%s
`

// SystemPrompt wraps retrieved context in the assistant instructions.
func SystemPrompt(context string) string {
	return fmt.Sprintf(systemPromptTemplate, context)
}

// Retrieve embeds question as a query and returns the k nearest chunks.
// k <= 0 selects the configured default.
func (p *Pipeline) Retrieve(ctx context.Context, question string, k int) ([]vector.Result, error) {
	if strings.TrimSpace(question) == "" {
		return nil, errs.Validation("question is empty")
	}
	if k <= 0 {
		k = p.topK
	}

	vec, err := p.embedder.Embed(ctx, question, embeddings.RoleQuery)
	if err != nil {
		return nil, fmt.Errorf("embedding question: %w", err)
	}

	results, err := p.index.Query(ctx, vec, k)
	if err != nil {
		return nil, fmt.Errorf("querying index: %w", err)
	}

	p.logger.Debug("retrieved chunks", "k", k, "results", len(results))
	return results, nil
}

// BuildContext joins the contents of the retrieved chunks in rank order.
// It returns ErrNoContext when nothing is retrieved.
func (p *Pipeline) BuildContext(ctx context.Context, question string, k int) (string, []vector.Result, error) {
	results, err := p.Retrieve(ctx, question, k)
	if err != nil {
		return "", nil, err
	}
	if len(results) == 0 {
		return "", nil, ErrNoContext
	}

	contents := make([]string, len(results))
	for i, r := range results {
		contents[i] = r.Content
	}
	return strings.Join(contents, ContextSeparator), results, nil
}

// Prompt is a question with its retrieved context, ready to send to the
// completer.
type Prompt struct {
	System  string
	History []llm.Message
	Sources []vector.Result
}

// Prepare retrieves context for question and builds the completion prompt.
// history is the conversation so far; when it is empty the question is
// sent as the only user message.
func (p *Pipeline) Prepare(ctx context.Context, question string, history []llm.Message) (*Prompt, error) {
	contextText, sources, err := p.BuildContext(ctx, question, 0)
	if err != nil {
		return nil, err
	}

	if len(history) == 0 {
		history = []llm.Message{llm.NewTextMessage(llm.RoleUser, question)}
	}

	return &Prompt{
		System:  SystemPrompt(contextText),
		History: history,
		Sources: sources,
	}, nil
}

// Stream sends prompt to the completer and writes each delta to w.
func (p *Pipeline) Stream(ctx context.Context, prompt *Prompt, w io.Writer) error {
	if p.completer == nil {
		return errors.New("pipeline has no completer")
	}

	return p.completer.Complete(ctx, prompt.System, prompt.History, func(delta string) error {
		_, err := io.WriteString(w, delta)
		return err
	})
}

// Answer retrieves context for question and streams the completion to w.
// Nothing is written to w when retrieval fails.
func (p *Pipeline) Answer(ctx context.Context, question string, history []llm.Message, w io.Writer) error {
	if p.completer == nil {
		return errors.New("pipeline has no completer")
	}

	prompt, err := p.Prepare(ctx, question, history)
	if err != nil {
		return err
	}
	return p.Stream(ctx, prompt, w)
}
