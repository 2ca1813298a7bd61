package domain

import (
	"time"

	"github.com/google/uuid"
)

type Visibility string

const (
	VisibilityPublish   Visibility = "publish"
	VisibilityUnpublish Visibility = "unpublish"
)

type ChapterVisibility string

const (
	ChapterPublish ChapterVisibility = "publish"
	ChapterDraft   ChapterVisibility = "draft"
)

type VideoState string

const (
	VideoFree    VideoState = "free"
	VideoPremium VideoState = "premium"
)

type Course struct {
	ID          uuid.UUID  `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	TeacherID   uuid.UUID  `gorm:"type:uuid;index" json:"teacherId"`
	Title       string     `gorm:"index" json:"title"`
	Description string     `json:"description"`
	Price       int        `json:"price"` // Цена в долларах, центы не храним
	Image       string     `json:"image"`
	Visibility  Visibility `gorm:"type:varchar(16);default:'unpublish'" json:"visibility"`

	Tags     []Tag           `gorm:"foreignKey:CourseID;constraint:OnDelete:CASCADE;" json:"tags,omitempty"`
	Benefits []CourseBenefit `gorm:"foreignKey:CourseID;constraint:OnDelete:CASCADE;" json:"benefits,omitempty"`
	Chapters []Chapter       `gorm:"foreignKey:CourseID;constraint:OnDelete:CASCADE;" json:"chapters,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type Chapter struct {
	ID         uuid.UUID         `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	CourseID   uuid.UUID         `gorm:"type:uuid;index" json:"courseId"`
	Title      string            `json:"title"`
	Order      int               `gorm:"column:position" json:"position"` // Для сортировки (1, 2, 3...)
	Visibility ChapterVisibility `gorm:"type:varchar(16);default:'publish'" json:"visibility"`

	Videos []Video `gorm:"foreignKey:ChapterID;constraint:OnDelete:CASCADE;" json:"videos,omitempty"`
}

type Video struct {
	ID        uuid.UUID  `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	ChapterID uuid.UUID  `gorm:"type:uuid;index" json:"chapterId"`
	Title     string     `json:"title"`
	Thumbnail string     `json:"thumbnail"`
	URL       string     `json:"url"`
	Duration  int        `json:"duration"` // Секунды
	State     VideoState `gorm:"type:varchar(16);default:'premium'" json:"state"`
}

type Tag struct {
	ID       uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	CourseID uuid.UUID `gorm:"type:uuid;index" json:"courseId"`
	Text     string    `gorm:"column:tag;index" json:"text"`
}

type CourseBenefit struct {
	ID       uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	CourseID uuid.UUID `gorm:"type:uuid;index" json:"courseId"`
	Title    string    `json:"title"`
	Details  string    `json:"details"`
}

type Comment struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	AuthorID  uuid.UUID `gorm:"type:uuid;index" json:"authorId"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Связка курс-комментарий, вставляется в одной транзакции с комментарием.
type CourseComment struct {
	CourseID  uuid.UUID `gorm:"type:uuid;primaryKey" json:"courseId"`
	CommentID uuid.UUID `gorm:"type:uuid;primaryKey" json:"commentId"`
}

// Ответ на комментарий. Тред одноуровневый: ответ на ответ не вкладывается.
type CommentReply struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	CommentID uuid.UUID `gorm:"type:uuid;index" json:"commentId"`
	AuthorID  uuid.UUID `gorm:"type:uuid;index" json:"authorId"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"createdAt"`
}

type Rating struct {
	CourseID  uuid.UUID `gorm:"type:uuid;primaryKey" json:"courseId"`
	StudentID uuid.UUID `gorm:"type:uuid;primaryKey" json:"studentId"`
	Rate      int       `json:"rate"`
}
