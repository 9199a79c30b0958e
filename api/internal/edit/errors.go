package edit

import (
	"errors"
	"fmt"
)

var ErrEmptyInstruction = errors.New("edit: instruction is empty")

// InvalidAssetError: картинку нельзя прочитать или не удалось определить её MIME.
type InvalidAssetError struct {
	Reason string
	Err    error
}

func (e *InvalidAssetError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("invalid image: %s: %v", e.Reason, e.Err)
	}
	return "invalid image: " + e.Reason
}

func (e *InvalidAssetError) Unwrap() error { return e.Err }

// RequestBlockedError: запрос отклонён политикой ещё до генерации.
type RequestBlockedError struct {
	Reason  string
	Message string
}

func (e *RequestBlockedError) Error() string {
	msg := "Request was blocked. Reason: " + e.Reason + "."
	if e.Message != "" {
		msg += " " + e.Message
	}
	return msg
}

// GenerationStoppedError: генерация началась, но остановилась не по STOP (обычно safety).
type GenerationStoppedError struct {
	Operation string
	Reason    string
}

func (e *GenerationStoppedError) Error() string {
	return fmt.Sprintf("Image generation for %s stopped unexpectedly. Reason: %s. This often relates to safety settings.",
		opName(e.Operation), e.Reason)
}

// NoImageReturnedError: модель ответила штатно, но без картинки. Text: что она написала взамен.
type NoImageReturnedError struct {
	Operation string
	Text      string
}

func (e *NoImageReturnedError) Error() string {
	msg := fmt.Sprintf("The AI model did not return an image for the %s. ", opName(e.Operation))
	if e.Text != "" {
		return msg + fmt.Sprintf("The model responded with text: %q", e.Text)
	}
	return msg + "This can happen due to safety filters or if the request is too complex. Please try rephrasing your prompt to be more direct."
}

// MalformedResponseError: ответ структурированного запроса не разбирается по схеме.
type MalformedResponseError struct {
	Body string
	Err  error
}

func (e *MalformedResponseError) Error() string {
	return fmt.Sprintf("The AI returned an invalid format for object detection: %v", e.Err)
}

func (e *MalformedResponseError) Unwrap() error { return e.Err }

func opName(op string) string {
	if op == "" {
		return "edit"
	}
	return op
}

// Kind: короткий код ошибки для логов и журнала правок.
func Kind(err error) string {
	var (
		invalid   *InvalidAssetError
		blocked   *RequestBlockedError
		stopped   *GenerationStoppedError
		noImage   *NoImageReturnedError
		malformed *MalformedResponseError
	)
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrEmptyInstruction):
		return "empty_instruction"
	case errors.As(err, &invalid):
		return "invalid_asset"
	case errors.As(err, &blocked):
		return "request_blocked"
	case errors.As(err, &stopped):
		return "generation_stopped"
	case errors.As(err, &noImage):
		return "no_image"
	case errors.As(err, &malformed):
		return "malformed_response"
	default:
		return "transport"
	}
}
