package db

import (
	"time"

	"gorm.io/datatypes"
)

const (
	EpisodeStatusActive    = "active"
	EpisodeStatusCompleted = "completed"
	EpisodeStatusArchived  = "archived"
)

const (
	LevelEasy   = "easy"
	LevelMedium = "medium"
	LevelHard   = "hard"
)

type Episode struct {
	ID        uint      `gorm:"primaryKey"`
	Name      string    `gorm:"size:128;not null"`
	Status    string    `gorm:"size:32;not null;default:'active'"`
	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
	Teams     []Team
}

func (Episode) TableName() string { return "quiz_episodes" }

type Team struct {
	ID        uint      `gorm:"primaryKey"`
	EpisodeID uint      `gorm:"index;not null;uniqueIndex:idx_teams_episode_name"`
	Name      string    `gorm:"size:64;not null;uniqueIndex:idx_teams_episode_name"`
	Points    int       `gorm:"not null;default:0"`
	Position  int       `gorm:"not null;default:0"`
	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

type Question struct {
	ID        uint      `gorm:"primaryKey"`
	Question  string    `gorm:"size:500;not null"`
	Answer    string    `gorm:"size:500;not null"`
	Theme     string    `gorm:"size:64"`
	Level     string    `gorm:"size:16;not null"`
	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

type PointsConfig struct {
	ID     uint   `gorm:"primaryKey"`
	Level  string `gorm:"size:16;not null;uniqueIndex"`
	Points int    `gorm:"not null"`
}

func (PointsConfig) TableName() string { return "points_config" }

type Buzz struct {
	ID         uint           `gorm:"primaryKey"`
	EpisodeID  uint           `gorm:"index;not null;uniqueIndex:idx_buzzes_episode_team_question"`
	TeamID     uint           `gorm:"not null;uniqueIndex:idx_buzzes_episode_team_question"`
	QuestionID uint           `gorm:"not null;uniqueIndex:idx_buzzes_episode_team_question"`
	Payload    datatypes.JSON `gorm:"type:jsonb;not null"`
	BuzzedAt   time.Time      `gorm:"not null"`
}

func (Buzz) TableName() string { return "buzzes" }
