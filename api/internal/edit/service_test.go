package edit

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
)

type stubTransport struct {
	resp        GenerateResponse
	body        string
	err         error
	genCalls    int
	extCalls    int
	lastGen     GenerateRequest
	lastExtract ExtractRequest
}

func (s *stubTransport) Generate(ctx context.Context, req GenerateRequest) (GenerateResponse, error) {
	s.genCalls++
	s.lastGen = req
	return s.resp, s.err
}

func (s *stubTransport) Extract(ctx context.Context, req ExtractRequest) (string, error) {
	s.extCalls++
	s.lastExtract = req
	return s.body, s.err
}

func (s *stubTransport) Name() string { return "stub" }

var pngAsset = ImageAsset{Data: []byte{0x89, 'P', 'N', 'G', 0x0D, 0x0A, 0x1A, 0x0A, 1, 2, 3}, MIME: "image/png"}

func TestEncodeAssetRoundTrip(t *testing.T) {
	inputs := []ImageAsset{
		pngAsset,
		{Data: []byte{0xFF, 0xD8, 0xFF, 0x00, 0xFF}, MIME: "image/jpeg"},
		{Data: bytes.Repeat([]byte{0xAB}, 4097), MIME: "image/webp"},
	}
	for _, in := range inputs {
		enc, err := EncodeAsset(in)
		if err != nil {
			t.Fatalf("EncodeAsset(%s): %v", in.MIME, err)
		}
		out, err := AssetFromDataURL(enc.DataURL())
		if err != nil {
			t.Fatalf("AssetFromDataURL: %v", err)
		}
		if out.MIME != in.MIME || !bytes.Equal(out.Data, in.Data) {
			t.Fatalf("round trip mismatch for %s", in.MIME)
		}
	}
}

func TestEncodeAssetRejectsInvalid(t *testing.T) {
	for _, a := range []ImageAsset{{MIME: "image/png"}, {Data: []byte{1}}} {
		_, err := EncodeAsset(a)
		var invalid *InvalidAssetError
		if !errors.As(err, &invalid) {
			t.Fatalf("EncodeAsset(%+v) err = %v, want InvalidAssetError", a, err)
		}
	}
}

func TestAssetFromDataURLErrors(t *testing.T) {
	for _, s := range []string{"not a data url", "data:;base64,AAAA", "data:image/png;base64,@@@", "data:image/png;base64"} {
		_, err := AssetFromDataURL(s)
		var invalid *InvalidAssetError
		if !errors.As(err, &invalid) {
			t.Fatalf("AssetFromDataURL(%q) err = %v, want InvalidAssetError", s, err)
		}
	}
}

func TestDecodeBlockedWinsOverImage(t *testing.T) {
	resp := GenerateResponse{
		Block:  &PromptBlock{Reason: "SAFETY", Message: "nope"},
		Images: []InlineData{{MIME: "image/png", Data: "AAEC"}},
	}
	_, err := DecodeImageResponse(resp, "edit")
	var blocked *RequestBlockedError
	if !errors.As(err, &blocked) {
		t.Fatalf("err = %v, want RequestBlockedError", err)
	}
	if blocked.Reason != "SAFETY" || blocked.Message != "nope" {
		t.Fatalf("unexpected block: %+v", blocked)
	}
}

func TestDecodeImageIgnoresFinishReason(t *testing.T) {
	for _, reason := range []string{"", FinishReasonStop, "SAFETY", "MAX_TOKENS"} {
		resp := GenerateResponse{
			Images:       []InlineData{{MIME: "image/jpeg", Data: "/9j/AA=="}},
			FinishReason: reason,
		}
		res, err := DecodeImageResponse(resp, "filter")
		if err != nil {
			t.Fatalf("reason %q: unexpected error: %v", reason, err)
		}
		if res.DataURL != "data:image/jpeg;base64,/9j/AA==" {
			t.Fatalf("reason %q: DataURL = %q", reason, res.DataURL)
		}
	}
}

func TestDecodeStoppedCarriesReason(t *testing.T) {
	_, err := DecodeImageResponse(GenerateResponse{FinishReason: "IMAGE_SAFETY", Text: "ignored"}, "adjustment")
	var stopped *GenerationStoppedError
	if !errors.As(err, &stopped) {
		t.Fatalf("err = %v, want GenerationStoppedError", err)
	}
	if stopped.Reason != "IMAGE_SAFETY" {
		t.Fatalf("reason = %q", stopped.Reason)
	}
	if !strings.Contains(err.Error(), "IMAGE_SAFETY") {
		t.Fatalf("message %q must contain reason", err.Error())
	}
}

func TestDecodeNoImageIncludesText(t *testing.T) {
	for _, reason := range []string{FinishReasonStop, ""} {
		_, err := DecodeImageResponse(GenerateResponse{FinishReason: reason, Text: "  I can't do that "}, "edit")
		var noImage *NoImageReturnedError
		if !errors.As(err, &noImage) {
			t.Fatalf("err = %v, want NoImageReturnedError", err)
		}
		if !strings.Contains(err.Error(), "I can't do that") {
			t.Fatalf("message %q must include model text", err.Error())
		}
	}
}

func TestDecodeNoImageWithoutText(t *testing.T) {
	_, err := DecodeImageResponse(GenerateResponse{FinishReason: FinishReasonStop}, "edit")
	var noImage *NoImageReturnedError
	if !errors.As(err, &noImage) || noImage.Text != "" {
		t.Fatalf("err = %v, want empty NoImageReturnedError", err)
	}
}

func TestDetectObjectsParsesSchema(t *testing.T) {
	tr := &stubTransport{body: `[{"name":"car","boundingBox":{"x1":0.1,"y1":0.2,"x2":0.5,"y2":0.6}}]`}
	svc := NewService(tr)
	objs, err := svc.DetectObjects(context.Background(), pngAsset)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := DetectedObject{Name: "car", BoundingBox: BoundingBox{X1: 0.1, Y1: 0.2, X2: 0.5, Y2: 0.6}}
	if len(objs) != 1 || objs[0] != want {
		t.Fatalf("objects = %#v", objs)
	}
	if tr.lastExtract.Schema == nil || tr.lastExtract.Schema.Type != SchemaArray {
		t.Fatalf("detection must declare an array schema")
	}
	if tr.lastExtract.Image.MIME != "image/png" {
		t.Fatalf("image MIME = %q", tr.lastExtract.Image.MIME)
	}
}

func TestDetectObjectsKeepsOrderAndFences(t *testing.T) {
	tr := &stubTransport{body: "```json\n[{\"name\":\"b\",\"boundingBox\":{\"x1\":0,\"y1\":0,\"x2\":1,\"y2\":1}},{\"name\":\"a\",\"boundingBox\":{\"x1\":0,\"y1\":0,\"x2\":0.5,\"y2\":0.5}}]\n```"}
	objs, err := NewService(tr).DetectObjects(context.Background(), pngAsset)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(objs) != 2 || objs[0].Name != "b" || objs[1].Name != "a" {
		t.Fatalf("objects = %#v", objs)
	}
}

func TestDetectObjectsMalformed(t *testing.T) {
	for _, body := range []string{"not json", "", "null", `{"name":"car"}`, `[{"name":"car"}]`, `[{"name":"car","boundingBox":{"x1":0}}]`} {
		_, err := NewService(&stubTransport{body: body}).DetectObjects(context.Background(), pngAsset)
		var malformed *MalformedResponseError
		if !errors.As(err, &malformed) {
			t.Fatalf("body %q: err = %v, want MalformedResponseError", body, err)
		}
	}
}

func TestDetectObjectsTransportErrorIsNotMalformed(t *testing.T) {
	boom := errors.New("connection reset")
	_, err := NewService(&stubTransport{err: boom}).DetectObjects(context.Background(), pngAsset)
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want wrapped transport error", err)
	}
	var malformed *MalformedResponseError
	if errors.As(err, &malformed) {
		t.Fatalf("transport failure must not be reported as malformed")
	}
	if Kind(err) != "transport" {
		t.Fatalf("Kind = %q", Kind(err))
	}
}

func TestGenerationOperationsBuildPrompts(t *testing.T) {
	ctx := context.Background()
	ok := GenerateResponse{Images: []InlineData{{MIME: "image/png", Data: "AAEC"}}}

	cases := []struct {
		name     string
		call     func(*Service) (EditResult, error)
		contains []string
	}{
		{"point", func(s *Service) (EditResult, error) {
			return s.EditAtPoint(ctx, pngAsset, "remove the cup", Hotspot{X: 12, Y: 34})
		}, []string{`"remove the cup"`, "(x: 12, y: 34)", "skin tone", "REFUSE"}},
		{"region", func(s *Service) (EditResult, error) {
			return s.EditRegion(ctx, pngAsset, "make it red", BoundingBox{X1: 10, Y1: 20, X2: 110, Y2: 220})
		}, []string{"(x1: 10, y1: 20)", "(x2: 110, y2: 220)", "outside the bounding box", "identical"}},
		{"filter", func(s *Service) (EditResult, error) {
			return s.ApplyFilter(ctx, pngAsset, "vintage film")
		}, []string{"stylistic filter", `"vintage film"`, "race or ethnicity"}},
		{"adjustment", func(s *Service) (EditResult, error) {
			return s.ApplyAdjustment(ctx, pngAsset, "warmer light")
		}, []string{"global adjustment", "photorealistic", "skin tone"}},
	}
	for _, tc := range cases {
		tr := &stubTransport{resp: ok}
		res, err := tc.call(NewService(tr))
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", tc.name, err)
		}
		if res.DataURL != "data:image/png;base64,AAEC" {
			t.Fatalf("%s: DataURL = %q", tc.name, res.DataURL)
		}
		for _, want := range tc.contains {
			if !strings.Contains(tr.lastGen.Prompt, want) {
				t.Errorf("%s: prompt missing %q", tc.name, want)
			}
		}
		if !strings.Contains(tr.lastGen.Prompt, "Do not return text.") {
			t.Errorf("%s: prompt missing output contract", tc.name)
		}
	}
}

func TestGenerationRejectsBlankInstruction(t *testing.T) {
	tr := &stubTransport{}
	_, err := NewService(tr).ApplyFilter(context.Background(), pngAsset, "   ")
	if !errors.Is(err, ErrEmptyInstruction) {
		t.Fatalf("err = %v, want ErrEmptyInstruction", err)
	}
	if tr.genCalls != 0 {
		t.Fatalf("transport must not be called for blank instruction")
	}
}

func TestGenerationInvalidAssetSkipsTransport(t *testing.T) {
	tr := &stubTransport{}
	_, err := NewService(tr).EditAtPoint(context.Background(), ImageAsset{Data: []byte{1}}, "x", Hotspot{})
	var invalid *InvalidAssetError
	if !errors.As(err, &invalid) {
		t.Fatalf("err = %v, want InvalidAssetError", err)
	}
	if tr.genCalls != 0 {
		t.Fatalf("transport must not be called for invalid asset")
	}
}

func TestEditResultAsset(t *testing.T) {
	a, err := EditResult{DataURL: "data:image/png;base64,AAEC"}.Asset()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a.MIME != "image/png" || !bytes.Equal(a.Data, []byte{0, 1, 2}) {
		t.Fatalf("asset = %#v", a)
	}
}

func TestScaleBox(t *testing.T) {
	got := ScaleBox(BoundingBox{X1: 0.5, Y1: 0.6, X2: 0.1, Y2: -0.2}, 200, 100)
	want := BoundingBox{X1: 20, Y1: 0, X2: 100, Y2: 60}
	if got != want {
		t.Fatalf("ScaleBox = %+v, want %+v", got, want)
	}
	if got := ScaleBox(BoundingBox{X1: 0, Y1: 0, X2: 2, Y2: 1}, 10, 10); got.X2 != 10 {
		t.Fatalf("ScaleBox must clamp, got %+v", got)
	}
}

func TestKind(t *testing.T) {
	cases := map[string]error{
		"request_blocked":    &RequestBlockedError{Reason: "SAFETY"},
		"generation_stopped": &GenerationStoppedError{Reason: "SAFETY"},
		"no_image":           &NoImageReturnedError{},
		"invalid_asset":      &InvalidAssetError{Reason: "x"},
		"malformed_response": &MalformedResponseError{Err: errors.New("x")},
		"empty_instruction":  ErrEmptyInstruction,
	}
	for want, err := range cases {
		if got := Kind(err); got != want {
			t.Errorf("Kind(%T) = %q, want %q", err, got, want)
		}
	}
	if Kind(nil) != "" {
		t.Errorf("Kind(nil) must be empty")
	}
}
