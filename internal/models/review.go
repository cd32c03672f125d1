package models

import (
	"time"

	"github.com/google/uuid"
)

type Review struct {
	ID       uint      `gorm:"primaryKey"`
	TitleID  uint      `gorm:"not null;uniqueIndex:idx_review_author_title,priority:2"`
	AuthorID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_review_author_title,priority:1"`
	Text     string    `gorm:"type:text;not null"`
	Score    int       `gorm:"not null"`
	PubDate  time.Time `gorm:"not null;index;autoCreateTime"`

	Title  Title `gorm:"foreignKey:TitleID;constraint:OnDelete:CASCADE"`
	Author User  `gorm:"foreignKey:AuthorID;constraint:OnDelete:CASCADE"`
}

type Comment struct {
	ID       uint      `gorm:"primaryKey"`
	ReviewID uint      `gorm:"not null;index"`
	AuthorID uuid.UUID `gorm:"type:uuid;not null;index"`
	Text     string    `gorm:"type:text;not null"`
	PubDate  time.Time `gorm:"not null;index;autoCreateTime"`

	Review Review `gorm:"foreignKey:ReviewID;constraint:OnDelete:CASCADE"`
	Author User   `gorm:"foreignKey:AuthorID;constraint:OnDelete:CASCADE"`
}
