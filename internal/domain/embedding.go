package domain

// ProductMeta — метаданные строки датасета эмбеддингов
type ProductMeta struct {
	ProductName string
	Category    string
	Text        string
}

// ProductEmbedding — строка датасета: товар и его исходный (ненормализованный) вектор
type ProductEmbedding struct {
	ProductID string
	Vector    []float32
	ProductMeta
}

// EmbeddingDataset — неизменяемый снапшот датасета эмбеддингов.
// Порядок строк задаёт порядок разрешения равных оценок в индексе.
type EmbeddingDataset struct {
	Version string
	Dim     int
	Rows    []ProductEmbedding
}

func NewEmbeddingDataset(version string, dim int, rows []ProductEmbedding) *EmbeddingDataset {
	return &EmbeddingDataset{
		Version: version,
		Dim:     dim,
		Rows:    rows,
	}
}

func (d *EmbeddingDataset) Len() int {
	return len(d.Rows)
}
