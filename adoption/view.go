package adoption

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
)

// Button labels.
const (
	LabelAdopt   = "Adopt"
	LabelSuccess = "Success"
)

// Pet is an entry of the pet catalog. Its ID is the pet id in the contract and the index of its panel in the page.
type Pet struct {
	ID       int    `json:"id"`
	Name     string `json:"name"`
	Picture  string `json:"picture"`
	Age      int    `json:"age"`
	Breed    string `json:"breed"`
	Location string `json:"location"`
}

// LoadPets reads the pet catalog from a JSON file.
func LoadPets(file string) ([]Pet, error) {
	data, err := os.ReadFile(file)
	if err != nil {
		return nil, err
	}

	var pets []Pet
	if err = json.Unmarshal(data, &pets); err != nil {
		return nil, fmt.Errorf("invalid pet catalog %s: %w", file, err)
	}

	return pets, nil
}

// Button is the adopt button of a panel.
type Button struct {
	Label    string `json:"label"`
	Disabled bool   `json:"disabled"`
}

// Panel shows a pet and its adopt button.
type Panel struct {
	Pet    Pet    `json:"pet"`
	Button Button `json:"button"`
}

// Page is the page model: one panel per pet, in catalog order. It is safe for concurrent use.
type Page struct {
	l      sync.RWMutex
	panels []Panel
}

// NewPage returns a page with every pet available for adoption.
func NewPage(pets []Pet) *Page {
	p := &Page{panels: make([]Panel, len(pets))}

	for i, pet := range pets {
		p.panels[i] = Panel{Pet: pet, Button: Button{Label: LabelAdopt}}
	}

	return p
}

// MarkAdopted shows panel i as adopted. There is no way back. Indexes out of the page are ignored and false is
// returned.
func (p *Page) MarkAdopted(i int) bool {
	p.l.Lock()
	defer p.l.Unlock()

	if i < 0 || i >= len(p.panels) {
		return false
	}

	p.panels[i].Button = Button{Label: LabelSuccess, Disabled: true}

	return true
}

// Panels returns a copy of the panels.
func (p *Page) Panels() []Panel {
	p.l.RLock()
	defer p.l.RUnlock()

	panels := make([]Panel, len(p.panels))
	copy(panels, p.panels)

	return panels
}

// Adopted returns how many panels are shown as adopted.
func (p *Page) Adopted() int {
	p.l.RLock()
	defer p.l.RUnlock()

	n := 0

	for _, panel := range p.panels {
		if panel.Button.Disabled {
			n++
		}
	}

	return n
}
