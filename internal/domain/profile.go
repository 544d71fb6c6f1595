package domain

import "time"

// UserProfileEmbedding — закэшированный долгосрочный вектор пользователя.
type UserProfileEmbedding struct {
	UserID      string
	Vector      []float32
	LastEventTS time.Time
}

func NewUserProfileEmbedding(userID string, vector []float32, lastEventTS time.Time) *UserProfileEmbedding {
	return &UserProfileEmbedding{
		UserID:      userID,
		Vector:      vector,
		LastEventTS: lastEventTS,
	}
}

// IsFresh сообщает, что профиль построен не раньше последнего события и
// совпадает по размерности с текущим индексом.
func (p *UserProfileEmbedding) IsFresh(maxEventTS time.Time, dim int) bool {
	return p != nil && !p.LastEventTS.Before(maxEventTS) && len(p.Vector) == dim
}
