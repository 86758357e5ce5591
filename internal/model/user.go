package model

type User struct {
	Model
	Name         string `json:"name"`
	Email        string `json:"email" gorm:"uniqueIndex;not null"`
	PasswordHash string `json:"-"`
	IsAdmin      bool   `json:"is_admin" gorm:"default:false"`
	IsActive     bool   `json:"is_active" gorm:"default:true"`
}
