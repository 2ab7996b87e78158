package db

import (
	"errors"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrEpisodeNotFound  = errors.New("episode not found")
	ErrTeamNotFound     = errors.New("team not found")
	ErrQuestionNotFound = errors.New("question not found")
)

// Store is the persistence boundary the hub talks to. Episode, team and
// question records are shared with the admin CRUD layer, so every read goes
// to the database rather than a cache.
type Store struct {
	conn *gorm.DB
}

func NewStore(conn *gorm.DB) *Store {
	return &Store{conn: conn}
}

func (s *Store) GetEpisode(id uint) (Episode, error) {
	var episode Episode
	if err := s.conn.First(&episode, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return Episode{}, ErrEpisodeNotFound
		}
		return Episode{}, err
	}
	return episode, nil
}

func (s *Store) UpdateEpisodeStatus(id uint, status string) error {
	result := s.conn.Model(&Episode{}).Where("id = ?", id).Update("status", status)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrEpisodeNotFound
	}
	return nil
}

func (s *Store) GetTeams(episodeID uint) ([]Team, error) {
	var teams []Team
	err := s.conn.
		Where("episode_id = ?", episodeID).
		Order("points DESC").
		Order("name ASC").
		Find(&teams).Error
	if err != nil {
		return nil, err
	}
	return teams, nil
}

func (s *Store) GetTeam(id uint) (Team, error) {
	var team Team
	if err := s.conn.First(&team, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return Team{}, ErrTeamNotFound
		}
		return Team{}, err
	}
	return team, nil
}

func (s *Store) CreateTeam(episodeID uint, name string) (Team, error) {
	var position int64
	if err := s.conn.Model(&Team{}).Where("episode_id = ?", episodeID).Count(&position).Error; err != nil {
		return Team{}, err
	}
	team := Team{
		EpisodeID: episodeID,
		Name:      name,
		Points:    0,
		Position:  int(position) + 1,
	}
	if err := s.conn.Create(&team).Error; err != nil {
		return Team{}, err
	}
	return team, nil
}

func (s *Store) UpdateTeamPoints(id uint, points int) error {
	result := s.conn.Model(&Team{}).Where("id = ?", id).Update("points", points)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrTeamNotFound
	}
	return nil
}

func (s *Store) UpdateTeamPosition(id uint, position int) error {
	result := s.conn.Model(&Team{}).Where("id = ?", id).Update("position", position)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrTeamNotFound
	}
	return nil
}

func (s *Store) GetQuestion(id uint) (Question, error) {
	var question Question
	if err := s.conn.First(&question, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return Question{}, ErrQuestionNotFound
		}
		return Question{}, err
	}
	return question, nil
}

// GetPointsForLevel resolves the points value for a difficulty level from the
// points_config table. An unconfigured level is worth a single point.
func (s *Store) GetPointsForLevel(level string) (int, error) {
	var entry PointsConfig
	if err := s.conn.Where("level = ?", level).First(&entry).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 1, nil
		}
		return 0, err
	}
	return entry.Points, nil
}

func (s *Store) HasAnyRecordedAnswer(episodeID uint) (bool, error) {
	var count int64
	if err := s.conn.Model(&Buzz{}).Where("episode_id = ?", episodeID).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// RecordBuzz stores a team's answer submission. A repeat buzz for the same
// question replaces the earlier payload, matching the one-answer-per-question
// rule of the admin scoring screen.
func (s *Store) RecordBuzz(episodeID, teamID, questionID uint, payload datatypes.JSON) error {
	buzz := Buzz{
		EpisodeID:  episodeID,
		TeamID:     teamID,
		QuestionID: questionID,
		Payload:    payload,
		BuzzedAt:   time.Now().UTC(),
	}
	return s.conn.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "episode_id"}, {Name: "team_id"}, {Name: "question_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"payload", "buzzed_at"}),
	}).Create(&buzz).Error
}

func (s *Store) ListBuzzes(episodeID, questionID uint) ([]Buzz, error) {
	var buzzes []Buzz
	query := s.conn.Where("episode_id = ?", episodeID)
	if questionID != 0 {
		query = query.Where("question_id = ?", questionID)
	}
	if err := query.Order("buzzed_at ASC").Find(&buzzes).Error; err != nil {
		return nil, err
	}
	return buzzes, nil
}
