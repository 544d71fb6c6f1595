package domain

// QdrantPoint описывает запись эмбеддинга товара в Qdrant
type QdrantPoint struct {
	ID      string // UUIDv5 от идентификатора товара
	Vector  []float32
	Payload map[string]any
}

func NewQdrantPoint(id string, vector []float32, payload map[string]any) *QdrantPoint {
	return &QdrantPoint{
		ID:      id,
		Vector:  vector,
		Payload: payload,
	}
}
