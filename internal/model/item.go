package model

import "time"

// Item is a lendable object listed by its owner.
// Available is false exactly while one approved, unreturned request references it.
type Item struct {
	ID          string     `json:"id" db:"id"`
	OwnerID     string     `json:"owner_id" db:"owner_id"`
	Title       string     `json:"title" db:"title"`
	Description string     `json:"description,omitempty" db:"description"`
	Category    string     `json:"category" db:"category"`
	Condition   string     `json:"condition" db:"item_condition"`
	Available   bool       `json:"available" db:"available"`
	ImageMime   string     `json:"image_mime,omitempty" db:"image_mime"`
	HasImage    bool       `json:"has_image" db:"has_image"`
	CreatedAt   time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at" db:"updated_at"`
	DeletedAt   *time.Time `json:"deleted_at,omitempty" db:"deleted_at"`

	// Joined fields (not always populated).
	OwnerName string `json:"owner_name,omitempty" db:"owner_name"`
}

// Item categories.
const (
	CategoryBooks       = "books"
	CategoryElectronics = "electronics"
	CategoryTools       = "tools"
	CategorySports      = "sports"
	CategoryClothing    = "clothing"
	CategorySupplies    = "supplies"
	CategoryOther       = "other"
)

// Item conditions.
const (
	ConditionNew  = "new"
	ConditionGood = "good"
	ConditionFair = "fair"
	ConditionPoor = "poor"
)

// ValidCategory reports whether c is a known category.
func ValidCategory(c string) bool {
	switch c {
	case CategoryBooks, CategoryElectronics, CategoryTools, CategorySports,
		CategoryClothing, CategorySupplies, CategoryOther:
		return true
	}
	return false
}

// ValidCondition reports whether c is a known condition.
func ValidCondition(c string) bool {
	switch c {
	case ConditionNew, ConditionGood, ConditionFair, ConditionPoor:
		return true
	}
	return false
}
