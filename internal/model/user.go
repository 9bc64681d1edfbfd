package model

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ロードマップの状態
const (
	RoadmapStatusActive    = "ACTIVE"
	RoadmapStatusCompleted = "COMPLETED"
	RoadmapStatusArchived  = "ARCHIVED"
)

// User はサービス利用ユーザーを表す。
// Firebase UIDで一意に識別され、初回認証時に作成される。
type User struct {
	ID                  string    `gorm:"primaryKey;size:36" json:"id"`
	FirebaseUID         string    `gorm:"column:firebase_uid;uniqueIndex;not null" json:"firebaseUid"`
	Email               string    `gorm:"not null;default:''" json:"email"`
	FirstName           *string   `json:"firstName"`
	LastName            *string   `json:"lastName"`
	University          *string   `json:"university"`
	Major               *string   `json:"major"`
	CareerGoals         *string   `json:"careerGoals"`
	ProfileImage        *string   `json:"profileImage"`
	OnboardingCompleted bool      `gorm:"not null;default:false" json:"onboardingCompleted"`
	CreatedAt           time.Time `json:"createdAt"`
	UpdatedAt           time.Time `json:"updatedAt"`
}

// Skill はスキルのマスタデータ。
type Skill struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id"`
	Name      string    `gorm:"uniqueIndex;not null" json:"name"`
	Category  *string   `json:"category"`
	CreatedAt time.Time `json:"createdAt"`
}

// UserSkill はユーザーが保有するスキルを表す。
type UserSkill struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id"`
	UserID    string    `gorm:"index;not null" json:"userId"`
	SkillID   string    `gorm:"index;not null" json:"skillId"`
	Level     *string   `json:"level"`
	CreatedAt time.Time `json:"createdAt"`
	Skill     Skill     `gorm:"foreignKey:SkillID" json:"skill"`
}

// Roadmap はユーザーのキャリアロードマップを表す。
type Roadmap struct {
	ID          string    `gorm:"primaryKey;size:36" json:"id"`
	UserID      string    `gorm:"index;not null" json:"userId"`
	Title       string    `gorm:"not null" json:"title"`
	Description *string   `json:"description"`
	Status      string    `gorm:"not null;default:ACTIVE" json:"status"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// CV はユーザーがアップロードした履歴書ファイルを表す。
type CV struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id"`
	UserID    string    `gorm:"index;not null" json:"userId"`
	FileName  string    `gorm:"not null" json:"fileName"`
	FileURL   string    `gorm:"column:file_url;not null" json:"fileUrl"`
	FileSize  int64     `gorm:"not null;default:0" json:"fileSize"`
	MimeType  string    `gorm:"not null" json:"mimeType"`
	CreatedAt time.Time `json:"createdAt"`
}

// TableName はCVのテーブル名を返す。
func (CV) TableName() string { return "cvs" }

// BeforeCreate はIDが未設定の場合にUUIDを割り当てる。Skill等も同様。
func (u *User) BeforeCreate(*gorm.DB) error      { assignID(&u.ID); return nil }
func (s *Skill) BeforeCreate(*gorm.DB) error     { assignID(&s.ID); return nil }
func (s *UserSkill) BeforeCreate(*gorm.DB) error { assignID(&s.ID); return nil }
func (r *Roadmap) BeforeCreate(*gorm.DB) error   { assignID(&r.ID); return nil }
func (c *CV) BeforeCreate(*gorm.DB) error        { assignID(&c.ID); return nil }

func assignID(id *string) {
	if *id == "" {
		*id = uuid.NewString()
	}
}

// ProfileCounts はプロフィールに付随する関連エンティティの件数。
type ProfileCounts struct {
	CVs      int64 `json:"cvs"`
	Roadmaps int64 `json:"roadmaps"`
	Skills   int64 `json:"skills"`
}

// Profile はプロフィール取得APIのレスポンスを表す。
// ユーザー本体に保有スキル、最新のアクティブなロードマップ、件数集計を付加する。
type Profile struct {
	User
	Skills   []UserSkill   `json:"skills"`
	Roadmaps []Roadmap     `json:"roadmaps"`
	Count    ProfileCounts `json:"_count"`
}

// ProfileUpdate はプロフィール更新で変更可能なフィールド。
// nilのフィールドは更新しない。
type ProfileUpdate struct {
	FirstName    *string `json:"firstName"`
	LastName     *string `json:"lastName"`
	University   *string `json:"university"`
	Major        *string `json:"major"`
	CareerGoals  *string `json:"careerGoals"`
	ProfileImage *string `json:"profileImage"`
}

// IsEmpty は更新対象のフィールドが1つもないかを返す。
func (u ProfileUpdate) IsEmpty() bool {
	return u.FirstName == nil && u.LastName == nil && u.University == nil &&
		u.Major == nil && u.CareerGoals == nil && u.ProfileImage == nil
}

// OnboardingSteps はオンボーディングの各ステップの達成状況。
type OnboardingSteps struct {
	ProfileCompleted      bool `json:"profileCompleted"`
	AcademicInfoCompleted bool `json:"academicInfoCompleted"`
	CareerGoalsSet        bool `json:"careerGoalsSet"`
	CVUploaded            bool `json:"cvUploaded"`
}

// AllCompleted はすべてのステップが達成済みかを返す。
func (s OnboardingSteps) AllCompleted() bool {
	return s.ProfileCompleted && s.AcademicInfoCompleted && s.CareerGoalsSet && s.CVUploaded
}

// OnboardingStatus はオンボーディング状況APIのレスポンス。
type OnboardingStatus struct {
	Completed bool            `json:"completed"`
	Steps     OnboardingSteps `json:"steps"`
}

// UserStats はユーザーの利用統計。
type UserStats struct {
	CVs              int64     `json:"cvs"`
	Skills           int64     `json:"skills"`
	Roadmaps         int64     `json:"roadmaps"`
	DaysSinceJoining int       `json:"daysSinceJoining"`
	LastUpdated      time.Time `json:"lastUpdated"`
}

// HasText は文字列ポインタが空白以外の値を持つかを返す。
func HasText(s *string) bool {
	return s != nil && strings.TrimSpace(*s) != ""
}
