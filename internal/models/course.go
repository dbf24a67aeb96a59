package models

import "time"

// Enrolment roles mirrored from the host platform.
const (
	RoleStudent = "student"
	RoleTeacher = "teacher"
	RoleAdmin   = "admin"
)

// Course mirrors the host course record.
type Course struct {
	ID        uint   `gorm:"primaryKey" json:"id"`
	ShortName string `gorm:"size:255" json:"shortname"`
	FullName  string `gorm:"size:255" json:"fullname"`
	Visible   bool   `gorm:"not null;default:true" json:"visible"`
	SortOrder int    `gorm:"not null;default:0" json:"sortorder"`
}

// User mirrors the host user record.
type User struct {
	ID        uint   `gorm:"primaryKey" json:"id"`
	FirstName string `gorm:"size:100" json:"firstname"`
	LastName  string `gorm:"size:100" json:"lastname"`
	Email     string `gorm:"size:255" json:"email"`
}

// FullName joins first and last name.
func (u User) FullName() string {
	switch {
	case u.FirstName == "":
		return u.LastName
	case u.LastName == "":
		return u.FirstName
	default:
		return u.FirstName + " " + u.LastName
	}
}

// Enrolment links a user to a course with a role.
type Enrolment struct {
	ID         uint       `gorm:"primaryKey" json:"id"`
	CourseID   uint       `gorm:"not null;uniqueIndex:idx_enrolment_course_user" json:"course_id"`
	UserID     uint       `gorm:"not null;uniqueIndex:idx_enrolment_course_user" json:"user_id"`
	Role       string     `gorm:"size:32;not null;default:student" json:"role"`
	LastAccess *time.Time `json:"last_access"`
	User       User       `gorm:"foreignKey:UserID" json:"-"`
}

// GroupMember mirrors host group membership.
type GroupMember struct {
	ID      uint `gorm:"primaryKey" json:"id"`
	GroupID uint `gorm:"not null;uniqueIndex:idx_group_member" json:"group_id"`
	UserID  uint `gorm:"not null;uniqueIndex:idx_group_member" json:"user_id"`
}
