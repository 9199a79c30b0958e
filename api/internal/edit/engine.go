package edit

import "context"

// Editor: всё, что хосты (HTTP, Telegram) умеют просить у модели.
type Editor interface {
	DetectObjects(ctx context.Context, asset ImageAsset) ([]DetectedObject, error)
	EditAtPoint(ctx context.Context, asset ImageAsset, instruction string, spot Hotspot) (EditResult, error)
	EditRegion(ctx context.Context, asset ImageAsset, instruction string, box BoundingBox) (EditResult, error)
	ApplyFilter(ctx context.Context, asset ImageAsset, filter string) (EditResult, error)
	ApplyAdjustment(ctx context.Context, asset ImageAsset, adjustment string) (EditResult, error)
}

// Transport: граница с удалённой моделью. Один метод на форму запроса.
type Transport interface {
	// Generate: картинка + текст → картинка или пояснительный текст.
	Generate(ctx context.Context, req GenerateRequest) (GenerateResponse, error)
	// Extract: картинка + текст + схема → JSON-текст по схеме.
	Extract(ctx context.Context, req ExtractRequest) (string, error)
	Name() string
}

type GenerateRequest struct {
	Image  InlineData
	Prompt string
}

type ExtractRequest struct {
	Image  InlineData
	Prompt string
	Schema *SchemaNode
}

// GenerateResponse: ответ модели без привязки к SDK.
type GenerateResponse struct {
	Block        *PromptBlock
	Images       []InlineData
	FinishReason string // FinishReasonStop: штатно; "": не указано
	Text         string
}

type PromptBlock struct {
	Reason  string
	Message string
}

const FinishReasonStop = "STOP"

// SchemaNode: минимальное описание схемы структурированного ответа.
type SchemaNode struct {
	Type        SchemaType
	Description string
	Items       *SchemaNode
	Properties  map[string]*SchemaNode
	Required    []string
}

type SchemaType string

const (
	SchemaString SchemaType = "string"
	SchemaNumber SchemaType = "number"
	SchemaObject SchemaType = "object"
	SchemaArray  SchemaType = "array"
)
