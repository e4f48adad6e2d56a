package entities

import "time"

type Student struct {
	ID               string `gorm:"primaryKey"`
	Name             string
	Skills           []string `gorm:"serializer:json"`
	CGPA             *float64
	ReadinessScore   int
	LeetcodeStreak   int
	GithubStreak     int
	Projects         []Project         `gorm:"foreignKey:StudentID;constraint:OnDelete:CASCADE"`
	Certifications   []Certification   `gorm:"foreignKey:StudentID;constraint:OnDelete:CASCADE"`
	ReadinessHistory []ReadinessRecord `gorm:"foreignKey:StudentID;constraint:OnDelete:CASCADE"`
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

type Project struct {
	ID        int
	StudentID string `gorm:"index"`
	Title     string
	Tags      []string `gorm:"serializer:json"`
	Verified  bool
}

type Certification struct {
	ID        int
	StudentID string `gorm:"index"`
	Name      string
	Verified  bool
}

type ReadinessRecord struct {
	ID         int
	StudentID  string `gorm:"index"`
	Score      int
	RecordedAt time.Time
}
