package panel

import "strings"

// View: снимок панели для отрисовки (кнопки Telegram, JSON для фронта).
type View struct {
	Phase         Phase  `json:"phase"`
	Headline      string `json:"headline"`
	Message       string `json:"message,omitempty"`
	DetectEnabled bool   `json:"detectEnabled"`
	Busy          bool   `json:"busy"`
	Chips         []Chip `json:"chips,omitempty"`

	ShowPrompt    bool   `json:"showPrompt"`
	Prompt        string `json:"prompt"`
	Placeholder   string `json:"placeholder,omitempty"`
	InputEnabled  bool   `json:"inputEnabled"`
	SubmitEnabled bool   `json:"submitEnabled"`
}

type Chip struct {
	Index    int    `json:"index"`
	Name     string `json:"name"`
	Selected bool   `json:"selected"`
	Hovered  bool   `json:"hovered"`
	Disabled bool   `json:"disabled"`
}

func (p *Panel) View() View {
	v := View{Phase: p.Phase()}
	switch v.Phase {
	case Detecting:
		v.Busy = true
		v.Headline = "Detecting objects..."
	case NoDetectionYet:
		v.Headline = "Detect Objects in Your Image"
		v.Message = "Let AI automatically find and outline objects, making it easy to select and edit them with precision."
		v.DetectEnabled = true
	case Results:
		if len(p.res.objects) == 0 {
			v.Headline = "No distinct objects were detected in this image."
			break
		}
		if p.res.selected != nil {
			v.Headline = "Great! Now describe your edit below."
		} else {
			v.Headline = "Hover to see, or click to select an object to edit."
		}
		v.Chips = make([]Chip, len(p.res.objects))
		for i, o := range p.res.objects {
			v.Chips[i] = Chip{
				Index:    i,
				Name:     o.Name,
				Selected: p.res.selected != nil && p.res.selected.index == i,
				Hovered:  p.res.hovered == i,
				Disabled: p.generating,
			}
		}
	}

	// форма ввода видна при любом выбранном объекте, даже пока идёт повторная детекция
	if sel := p.Selected(); sel != nil {
		v.ShowPrompt = true
		v.Prompt = p.res.selected.prompt
		v.Placeholder = "e.g., 'remove this " + strings.ToLower(sel.Name) + "'"
		v.InputEnabled = !p.generating
		v.SubmitEnabled = p.canSubmit()
	}
	return v
}
