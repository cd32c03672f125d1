package models

type Category struct {
	ID   uint   `gorm:"primaryKey" json:"-"`
	Name string `gorm:"type:varchar(256);not null" json:"name"`
	Slug string `gorm:"type:varchar(50);uniqueIndex;not null" json:"slug"`
}

type Genre struct {
	ID   uint   `gorm:"primaryKey" json:"-"`
	Name string `gorm:"type:varchar(256);not null" json:"name"`
	Slug string `gorm:"type:varchar(50);uniqueIndex;not null" json:"slug"`
}

// Title is a reviewable work. (Name, Year, CategoryID) is unique; rows with a
// NULL category are additionally guarded in the service layer.
type Title struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Name        string    `gorm:"type:varchar(256);not null;uniqueIndex:idx_title_identity" json:"name"`
	Year        int       `gorm:"not null;index;uniqueIndex:idx_title_identity" json:"year"`
	Description *string   `gorm:"type:text" json:"description"`
	CategoryID  *uint     `gorm:"index;uniqueIndex:idx_title_identity" json:"-"`
	Category    *Category `gorm:"foreignKey:CategoryID;constraint:OnDelete:SET NULL" json:"category"`
	Genres      []Genre   `gorm:"many2many:genre_titles;constraint:OnDelete:CASCADE" json:"genre"`

	// Rating is filled by the aggregator on read paths and never stored.
	Rating *float64 `gorm:"-" json:"rating"`
}

// GenreTitle is the join row between titles and genres.
type GenreTitle struct {
	TitleID uint `gorm:"primaryKey"`
	GenreID uint `gorm:"primaryKey;index"`
}
