package edit

import (
	"encoding/base64"
	"strings"

	"retouch-bot/api/internal/util"
)

// InlineData: картинка в виде, готовом к передаче модели.
type InlineData struct {
	MIME string
	Data string // base64
}

// EncodeAsset кодирует байты в base64 и прикладывает MIME.
func EncodeAsset(a ImageAsset) (InlineData, error) {
	if len(a.Data) == 0 {
		return InlineData{}, &InvalidAssetError{Reason: "empty image data"}
	}
	mime := strings.TrimSpace(a.MIME)
	if mime == "" {
		return InlineData{}, &InvalidAssetError{Reason: "could not determine MIME type"}
	}
	return InlineData{MIME: mime, Data: base64.StdEncoding.EncodeToString(a.Data)}, nil
}

// Decode: обратная операция к EncodeAsset.
func (d InlineData) Decode() (ImageAsset, error) {
	if strings.TrimSpace(d.MIME) == "" {
		return ImageAsset{}, &InvalidAssetError{Reason: "could not determine MIME type"}
	}
	b, err := base64.StdEncoding.DecodeString(d.Data)
	if err != nil {
		return ImageAsset{}, &InvalidAssetError{Reason: "bad base64 payload", Err: err}
	}
	if len(b) == 0 {
		return ImageAsset{}, &InvalidAssetError{Reason: "empty image data"}
	}
	return ImageAsset{Data: b, MIME: d.MIME}, nil
}

func (d InlineData) DataURL() string {
	return util.MakeDataURL(d.MIME, d.Data)
}

// AssetFromDataURL разбирает data:<mime>;base64,<payload>.
func AssetFromDataURL(s string) (ImageAsset, error) {
	mime, payload, ok := util.SplitDataURL(s)
	if !ok {
		return ImageAsset{}, &InvalidAssetError{Reason: "invalid data URL"}
	}
	if mime == "" {
		return ImageAsset{}, &InvalidAssetError{Reason: "could not parse MIME type from data URL"}
	}
	return InlineData{MIME: mime, Data: payload}.Decode()
}
