package index

import "math"

// Normalize возвращает L2-нормализованную копию вектора.
// Для нулевого вектора возвращается nil.
func Normalize(v []float32) []float32 {
	n := Norm(v)
	if n == 0 {
		return nil
	}

	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(float64(x) / n)
	}
	return out
}

// Norm — евклидова норма вектора.
func Norm(v []float32) float64 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return math.Sqrt(sum)
}

// Dot — скалярное произведение векторов одинаковой длины.
func Dot(a, b []float32) float64 {
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}
