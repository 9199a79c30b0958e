package gemini

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"retouch-bot/api/internal/edit"
)

const (
	DefaultEditModel   = "gemini-2.5-flash-image-preview"
	DefaultDetectModel = "gemini-2.5-flash"
)

// Transport ходит в Gemini через официальный SDK. Один клиент на процесс.
type Transport struct {
	EditModel   string
	DetectModel string

	cl *genai.Client
}

func New(ctx context.Context, apiKey, editModel, detectModel string) (*Transport, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, errors.New("GEMINI_API_KEY is empty")
	}
	cl, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, err
	}
	t := &Transport{
		EditModel:   strings.TrimSpace(editModel),
		DetectModel: strings.TrimSpace(detectModel),
		cl:          cl,
	}
	if t.EditModel == "" {
		t.EditModel = DefaultEditModel
	}
	if t.DetectModel == "" {
		t.DetectModel = DefaultDetectModel
	}
	return t, nil
}

func (t *Transport) Name() string { return "gemini" }

func (t *Transport) Close() error {
	if t.cl == nil {
		return nil
	}
	return t.cl.Close()
}

var _ edit.Transport = (*Transport)(nil)

// Generate: картинка + инструкция → картинка (или текст, если модель отказалась).
func (t *Transport) Generate(ctx context.Context, req edit.GenerateRequest) (edit.GenerateResponse, error) {
	blob, err := toBlob(req.Image)
	if err != nil {
		return edit.GenerateResponse{}, err
	}
	m := t.cl.GenerativeModel(t.EditModel)
	if m == nil {
		return edit.GenerateResponse{}, fmt.Errorf("gemini: model is nil")
	}

	resp, err := m.GenerateContent(ctx, blob, genai.Text(req.Prompt))
	if err != nil {
		// SDK сам превращает блокировку промпта и SAFETY/RECITATION кандидата в ошибку.
		var be *genai.BlockedError
		if errors.As(err, &be) {
			return fromBlocked(be), nil
		}
		return edit.GenerateResponse{}, err
	}
	return fromResponse(resp), nil
}

// Extract: структурированный ответ по схеме, возвращаем сырой JSON-текст.
func (t *Transport) Extract(ctx context.Context, req edit.ExtractRequest) (string, error) {
	blob, err := toBlob(req.Image)
	if err != nil {
		return "", err
	}
	m := t.cl.GenerativeModel(t.DetectModel)
	if m == nil {
		return "", fmt.Errorf("gemini: model is nil")
	}
	m.GenerationConfig = genai.GenerationConfig{
		Temperature:      ptrFloat32(0),
		ResponseMIMEType: "application/json",
		ResponseSchema:   toSchema(req.Schema),
	}

	resp, err := m.GenerateContent(ctx, blob, genai.Text(req.Prompt))
	if err != nil {
		return "", err
	}
	return firstText(resp), nil
}

// --------------------------- helpers ---------------------------

func toBlob(img edit.InlineData) (genai.Blob, error) {
	a, err := img.Decode()
	if err != nil {
		return genai.Blob{}, err
	}
	return genai.Blob{MIMEType: a.MIME, Data: a.Data}, nil
}

func toSchema(n *edit.SchemaNode) *genai.Schema {
	if n == nil {
		return nil
	}
	s := &genai.Schema{
		Description: n.Description,
		Required:    append([]string(nil), n.Required...),
		Items:       toSchema(n.Items),
	}
	switch n.Type {
	case edit.SchemaString:
		s.Type = genai.TypeString
	case edit.SchemaNumber:
		s.Type = genai.TypeNumber
	case edit.SchemaObject:
		s.Type = genai.TypeObject
	case edit.SchemaArray:
		s.Type = genai.TypeArray
	}
	if len(n.Properties) > 0 {
		s.Properties = make(map[string]*genai.Schema, len(n.Properties))
		for k, v := range n.Properties {
			s.Properties[k] = toSchema(v)
		}
	}
	return s
}

func fromResponse(resp *genai.GenerateContentResponse) edit.GenerateResponse {
	var out edit.GenerateResponse
	if resp == nil {
		return out
	}
	if pf := resp.PromptFeedback; pf != nil && pf.BlockReason != genai.BlockReasonUnspecified {
		out.Block = fromFeedback(pf)
	}
	if len(resp.Candidates) > 0 {
		fillCandidate(&out, resp.Candidates[0])
	}
	return out
}

func fromBlocked(be *genai.BlockedError) edit.GenerateResponse {
	var out edit.GenerateResponse
	if be.PromptFeedback != nil {
		out.Block = fromFeedback(be.PromptFeedback)
	}
	if be.Candidate != nil {
		fillCandidate(&out, be.Candidate)
	}
	return out
}

func fillCandidate(out *edit.GenerateResponse, c *genai.Candidate) {
	if c == nil {
		return
	}
	out.FinishReason = finishReason(c.FinishReason)
	if c.Content == nil {
		return
	}
	var texts []string
	for _, p := range c.Content.Parts {
		switch v := p.(type) {
		case genai.Blob:
			out.Images = append(out.Images, edit.InlineData{MIME: v.MIMEType, Data: base64.StdEncoding.EncodeToString(v.Data)})
		case *genai.Blob:
			if v != nil {
				out.Images = append(out.Images, edit.InlineData{MIME: v.MIMEType, Data: base64.StdEncoding.EncodeToString(v.Data)})
			}
		case genai.Text:
			texts = append(texts, string(v))
		}
	}
	out.Text = strings.TrimSpace(strings.Join(texts, ""))
}

func fromFeedback(pf *genai.PromptFeedback) *edit.PromptBlock {
	b := &edit.PromptBlock{Reason: blockReason(pf.BlockReason)}
	var cats []string
	for _, r := range pf.SafetyRatings {
		if r != nil && r.Blocked {
			cats = append(cats, fmt.Sprint(r.Category))
		}
	}
	if len(cats) > 0 {
		b.Message = "Blocked categories: " + strings.Join(cats, ", ") + "."
	}
	return b
}

func finishReason(r genai.FinishReason) string {
	switch r {
	case genai.FinishReasonUnspecified:
		return ""
	case genai.FinishReasonStop:
		return edit.FinishReasonStop
	case genai.FinishReasonMaxTokens:
		return "MAX_TOKENS"
	case genai.FinishReasonSafety:
		return "SAFETY"
	case genai.FinishReasonRecitation:
		return "RECITATION"
	case genai.FinishReasonOther:
		return "OTHER"
	default:
		if name, ok := newerFinishReasons[int32(r)]; ok {
			return name
		}
		return fmt.Sprintf("FINISH_REASON_%d", int32(r))
	}
}

// Значения из proto Candidate.FinishReason, которых ещё нет в enum SDK.
// Приходят сырыми числами, image-модели отдают их регулярно.
var newerFinishReasons = map[int32]string{
	6:  "LANGUAGE",
	7:  "BLOCKLIST",
	8:  "PROHIBITED_CONTENT",
	9:  "SPII",
	10: "MALFORMED_FUNCTION_CALL",
	11: "IMAGE_SAFETY",
	12: "UNEXPECTED_TOOL_CALL",
}

// То же для PromptFeedback.BlockReason.
var newerBlockReasons = map[int32]string{
	3: "BLOCKLIST",
	4: "PROHIBITED_CONTENT",
	5: "IMAGE_SAFETY",
}

func blockReason(r genai.BlockReason) string {
	switch r {
	case genai.BlockReasonSafety:
		return "SAFETY"
	case genai.BlockReasonOther:
		return "OTHER"
	default:
		if name, ok := newerBlockReasons[int32(r)]; ok {
			return name
		}
		return fmt.Sprintf("BLOCK_REASON_%d", int32(r))
	}
}

func firstText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 {
		return ""
	}
	for _, c := range resp.Candidates {
		if c.Content == nil {
			continue
		}
		for _, p := range c.Content.Parts {
			if t, ok := p.(genai.Text); ok {
				return string(t)
			}
		}
	}
	return ""
}

func ptrFloat32(v float32) *float32 { return &v }
