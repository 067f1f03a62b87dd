package content

import "time"

// LegalCode is one statute in the Vade-Mecum reference (e.g. the civil code).
type LegalCode struct {
	ID        uint   `gorm:"primaryKey" json:"id"`
	Slug      string `gorm:"not null;uniqueIndex:idx_legal_codes_slug" json:"slug"`
	Title     string `gorm:"not null" json:"title"`
	Shorthand string `json:"shorthand"`

	Articles []Article `json:"articles,omitempty"`

	CreatedAt time.Time `json:"-"`
	UpdatedAt time.Time `json:"-"`
}

// Article is a single numbered article inside a legal code. Full text is
// served to subscribers only; headings are free.
type Article struct {
	ID          uint   `gorm:"primaryKey" json:"id"`
	LegalCodeID uint   `gorm:"not null;index" json:"-"`
	Number      string `gorm:"not null" json:"number"`
	Heading     string `json:"heading"`
	Text        string `gorm:"type:text" json:"text,omitempty"`

	CreatedAt time.Time `json:"-"`
	UpdatedAt time.Time `json:"-"`
}
