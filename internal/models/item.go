package models

// Item types shared by repositories that need to reason about page layout.
const (
	ItemTypePagebreak = "pagebreak"
	ItemTypeLabel     = "label"
)

// Item is a single question, label or pagebreak belonging to a feedback or a template.
type Item struct {
	ID           uint   `gorm:"primaryKey" json:"id"`
	FeedbackID   uint   `gorm:"not null;default:0;index" json:"feedback_id"`
	TemplateID   uint   `gorm:"not null;default:0;index" json:"template_id"`
	Name         string `gorm:"type:text" json:"name"`
	Label        string `gorm:"size:255" json:"label"`
	Presentation string `gorm:"type:text" json:"presentation"`
	Typ          string `gorm:"size:32;not null" json:"typ"`
	HasValue     bool   `gorm:"column:hasvalue;not null;default:false" json:"hasvalue"`
	Position     int    `gorm:"not null;default:0" json:"position"`
	Required     bool   `gorm:"not null;default:false" json:"required"`
	DependItem   uint   `gorm:"column:dependitem;not null;default:0;index" json:"dependitem"`
	DependValue  string `gorm:"column:dependvalue;size:255" json:"dependvalue"`
	Options      string `gorm:"size:255" json:"options"`
	IsGraded     bool   `gorm:"not null;default:false" json:"is_graded"`
	ItemNumber   int    `gorm:"-" json:"itemnumber,omitempty"`
}

// IsPagebreak reports whether the item separates pages.
func (i Item) IsPagebreak() bool {
	return i.Typ == ItemTypePagebreak
}

// GradedQuestion stores the expected answer and weight of a graded item.
type GradedQuestion struct {
	ID     uint    `gorm:"primaryKey" json:"id"`
	ItemID uint    `gorm:"not null;uniqueIndex" json:"item_id"`
	Answer string  `gorm:"size:255;not null" json:"answer"`
	Grade  float64 `gorm:"not null;default:0" json:"grade"`
}

// Template is a named, reusable item set.
type Template struct {
	ID       uint   `gorm:"primaryKey" json:"id"`
	CourseID uint   `gorm:"not null;default:0;index" json:"course_id"`
	Name     string `gorm:"size:255;not null" json:"name"`
	IsPublic bool   `gorm:"column:ispublic;not null;default:false" json:"ispublic"`
}

// ItemFile is an uploaded attachment shown with an item.
type ItemFile struct {
	ID        uint   `gorm:"primaryKey" json:"id"`
	ItemID    uint   `gorm:"not null;index" json:"item_id"`
	URL       string `gorm:"size:512;not null" json:"url"`
	PublicID  string `gorm:"size:255" json:"public_id"`
	Filename  string `gorm:"size:255" json:"filename"`
	MimeType  string `gorm:"size:128" json:"mime_type"`
	SizeBytes int64  `json:"size_bytes"`
}
