package models

// Style is one layer of presentation values. Empty strings mean "not set at this layer".
type Style struct {
	PrimaryColor    string `json:"color_primario,omitempty"`
	SecondaryColor  string `json:"color_secundario,omitempty"`
	TextColor       string `json:"color_texto,omitempty"`
	BackgroundColor string `json:"color_fondo,omitempty"`
	Font            string `json:"tipografia,omitempty"`
}

type AgencyConfig struct {
	ID       Identifier        `json:"id"`
	Name     string            `json:"nombre"`
	Logo     string            `json:"logo,omitempty"`
	Favicon  string            `json:"favicon,omitempty"`
	Timezone string            `json:"zona_horaria,omitempty"`
	Theme    Style             `json:"tema"`
	Sections map[string]Style  `json:"secciones,omitempty"`
	Copy     map[string]string `json:"textos,omitempty"`
}

type AgencyEnvelope struct {
	Data *AgencyConfig `json:"data"`
}

type ContactMessage struct {
	Name    string `json:"name" validate:"required,max=120"`
	Email   string `json:"email" validate:"required,email"`
	Phone   string `json:"phone,omitempty" validate:"omitempty,max=40"`
	Subject string `json:"subject" validate:"max=120"`
	Message string `json:"message" validate:"required,max=4000"`
}
