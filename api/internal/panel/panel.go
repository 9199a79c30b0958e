// Package panel: панель выбора объектов: жизненный цикл детекции, выбор/наведение и текст правки.
// Хост (HTTP-клиент, Telegram) передаёт внешние флаги и результаты, панель зовёт колбэки.
// Панель не потокобезопасна: хост держит её под своим мьютексом.
package panel

import (
	"fmt"
	"strings"

	"retouch-bot/api/internal/edit"
)

type Phase int

const (
	NoDetectionYet Phase = iota
	Detecting
	Results
)

func (p Phase) String() string {
	switch p {
	case NoDetectionYet:
		return "no_detection_yet"
	case Detecting:
		return "detecting"
	case Results:
		return "results"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

func (p Phase) MarshalText() ([]byte, error) { return []byte(p.String()), nil }

// Callbacks: то, что панель просит у хоста. Любой колбэк может быть nil.
type Callbacks struct {
	TriggerDetection  func()
	TriggerGeneration func(prompt string)
	OnHoverChange     func(obj *edit.DetectedObject)
	OnSelectionChange func(obj *edit.DetectedObject)
}

// result: один набор детекции. Выбор и текст правки живут только внутри него,
// поэтому «выбрано, но детекции нет» непредставимо.
type result struct {
	objects  []edit.DetectedObject
	selected *selection
	hovered  int // -1: ни на чём
}

type selection struct {
	index  int
	prompt string
}

type Panel struct {
	cb         Callbacks
	res        *result // nil: детекция ещё не запускалась
	detecting  bool
	generating bool
}

func New(cb Callbacks) *Panel {
	return &Panel{cb: cb}
}

func (p *Panel) Phase() Phase {
	switch {
	case p.detecting:
		return Detecting
	case p.res == nil:
		return NoDetectionYet
	default:
		return Results
	}
}

// ---------------- входы от хоста ----------------

func (p *Panel) SetDetecting(v bool) { p.detecting = v }

func (p *Panel) SetGenerating(v bool) { p.generating = v }

func (p *Panel) Generating() bool { return p.generating }

// SetObjects: новый результат детекции (пустой срез: «ничего не нашли»).
// Выбор и наведение сбрасываются.
func (p *Panel) SetObjects(objs []edit.DetectedObject) {
	p.dropHover()
	p.res = &result{objects: append([]edit.DetectedObject{}, objs...), hovered: -1}
}

// ResetDetection возвращает панель в состояние «детекция не запускалась» (например, сменилась картинка).
func (p *Panel) ResetDetection() {
	p.dropHover()
	p.res = nil
}

// SetSelection: выбор, заданный снаружи. Объект ищется по значению в текущем наборе;
// смена выбора всегда очищает текст правки. Колбэк OnSelectionChange не вызывается.
func (p *Panel) SetSelection(obj *edit.DetectedObject) {
	if p.res == nil {
		return
	}
	idx := -1
	if obj != nil {
		idx = p.indexOf(*obj)
	}
	p.applySelection(idx)
}

// ---------------- события пользователя ----------------

// Detect: кнопка «Detect Objects». Работает только пока детекция не запускалась и не идёт.
func (p *Panel) Detect() bool {
	if p.Phase() != NoDetectionYet {
		return false
	}
	if p.cb.TriggerDetection != nil {
		p.cb.TriggerDetection()
	}
	return true
}

func (p *Panel) Hover(i int) {
	if p.Phase() != Results || !p.valid(i) {
		return
	}
	if p.res.hovered == i {
		return
	}
	p.res.hovered = i
	if p.cb.OnHoverChange != nil {
		obj := p.res.objects[i]
		p.cb.OnHoverChange(&obj)
	}
}

func (p *Panel) Unhover() {
	if p.res == nil || p.res.hovered < 0 {
		return
	}
	p.dropHover()
}

// Click: повторный клик по выбранному снимает выбор, клик по другому: переключает.
// Пока идёт генерация, чипы неактивны.
func (p *Panel) Click(i int) {
	if p.Phase() != Results || p.generating || !p.valid(i) {
		return
	}
	next := i
	if p.res.selected != nil && p.res.selected.index == i {
		next = -1
	}
	p.applySelection(next)
	if p.cb.OnSelectionChange != nil {
		p.cb.OnSelectionChange(p.Selected())
	}
}

// Type заменяет текст правки целиком (как value у input).
func (p *Panel) Type(text string) {
	if p.Phase() != Results || p.generating || p.res.selected == nil {
		return
	}
	p.res.selected.prompt = text
}

// Submit отдаёт текст хосту. Состояние не меняется: что дальше: решает хост.
func (p *Panel) Submit() bool {
	if !p.canSubmit() {
		return false
	}
	if p.cb.TriggerGeneration != nil {
		p.cb.TriggerGeneration(p.res.selected.prompt)
	}
	return true
}

// ---------------- чтение ----------------

func (p *Panel) Objects() []edit.DetectedObject {
	if p.res == nil {
		return nil
	}
	return append([]edit.DetectedObject{}, p.res.objects...)
}

func (p *Panel) Selected() *edit.DetectedObject {
	if p.res == nil || p.res.selected == nil {
		return nil
	}
	obj := p.res.objects[p.res.selected.index]
	return &obj
}

func (p *Panel) Hovered() *edit.DetectedObject {
	if p.res == nil || p.res.hovered < 0 {
		return nil
	}
	obj := p.res.objects[p.res.hovered]
	return &obj
}

func (p *Panel) Prompt() string {
	if p.res == nil || p.res.selected == nil {
		return ""
	}
	return p.res.selected.prompt
}

// ---------------- internal ----------------

func (p *Panel) canSubmit() bool {
	return p.Phase() == Results && !p.generating && p.res.selected != nil &&
		strings.TrimSpace(p.res.selected.prompt) != ""
}

func (p *Panel) applySelection(idx int) {
	cur := -1
	if p.res.selected != nil {
		cur = p.res.selected.index
	}
	if cur == idx {
		return
	}
	if idx < 0 {
		p.res.selected = nil
		return
	}
	p.res.selected = &selection{index: idx}
}

func (p *Panel) dropHover() {
	if p.res == nil || p.res.hovered < 0 {
		return
	}
	p.res.hovered = -1
	if p.cb.OnHoverChange != nil {
		p.cb.OnHoverChange(nil)
	}
}

func (p *Panel) valid(i int) bool {
	return p.res != nil && i >= 0 && i < len(p.res.objects)
}

func (p *Panel) indexOf(obj edit.DetectedObject) int {
	for i, o := range p.res.objects {
		if o == obj {
			return i
		}
	}
	return -1
}
