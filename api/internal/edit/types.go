package edit

import "fmt"

// ImageAsset: исходная картинка пользователя. Не мутируется, только кодируется для отправки.
type ImageAsset struct {
	Data []byte
	MIME string
}

func (a ImageAsset) Clone() ImageAsset {
	return ImageAsset{Data: append([]byte(nil), a.Data...), MIME: a.MIME}
}

// Hotspot: точка фокуса локальной правки в пикселях.
type Hotspot struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// BoundingBox: прямоугольник (x1,y1) верхний левый, (x2,y2) нижний правый.
// Детекция отдаёт нормализованные [0,1], EditRegion ждёт пиксели.
type BoundingBox struct {
	X1 float64 `json:"x1"`
	Y1 float64 `json:"y1"`
	X2 float64 `json:"x2"`
	Y2 float64 `json:"y2"`
}

func (b BoundingBox) String() string {
	return fmt.Sprintf("(%g,%g)-(%g,%g)", b.X1, b.Y1, b.X2, b.Y2)
}

type DetectedObject struct {
	Name        string      `json:"name"`
	BoundingBox BoundingBox `json:"boundingBox"`
}

// EditResult: готовая картинка от модели в виде data URL.
type EditResult struct {
	DataURL string `json:"dataUrl"`
}

// Asset декодирует результат обратно в байты для дальнейшей склейки/сохранения.
func (r EditResult) Asset() (ImageAsset, error) {
	return AssetFromDataURL(r.DataURL)
}

// Models: какие модели обслуживают операции (для журнала правок).
type Models struct {
	Edit   string
	Detect string
}

func (m Models) For(op string) string {
	if op == "detect" {
		return m.Detect
	}
	return m.Edit
}
