package model

// Registrant is the typed view of the notes a registrant fills in at checkout.
// Name and WhatsApp are required; the rest are carried through as given.
type Registrant struct {
	Name     string `json:"name"`
	WhatsApp string `json:"whatsapp_number"`
	DOB      string `json:"dob,omitempty"`
	Guardian string `json:"guardian_name,omitempty"`
	Address  string `json:"address,omitempty"`
}
