package models

import (
	"encoding/json"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type User struct {
	gorm.Model
	Name       string         `json:"name"`
	Email      string         `json:"email" gorm:"uniqueIndex;size:256"`
	Password   string         `json:"-"`
	Role       string         `json:"role" gorm:"type:varchar(20);default:user;index"` // user, admin
	SavedUnits datatypes.JSON `json:"savedUnits"`
}

// Custom JSON marshaling so SavedUnits comes out as a plain array
func (u *User) MarshalJSON() ([]byte, error) {
	type Alias User
	aux := &struct {
		SavedUnits []uint `json:"savedUnits"`
		*Alias
	}{
		SavedUnits: []uint{},
		Alias:      (*Alias)(u),
	}

	if u.SavedUnits != nil {
		var saved []uint
		if err := json.Unmarshal(u.SavedUnits, &saved); err == nil {
			aux.SavedUnits = saved
		}
	}

	return json.Marshal(aux)
}
