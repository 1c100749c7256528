package models

// Weights are the grading component percentages. They are expected to
// total 100.
type Weights struct {
	Asistencia         float64 `json:"asistencia" zog:"asistencia"`
	Actividades        float64 `json:"actividades" zog:"actividades"`
	Evidencias         float64 `json:"evidencias" zog:"evidencias"`
	ProductoIntegrador float64 `json:"productoIntegrador" zog:"productoIntegrador"`
	Examen             float64 `json:"examen" zog:"examen"`
}

// Percentages returns the weights in sheet column order.
func (w Weights) Percentages() [5]float64 {
	return [5]float64{w.Asistencia, w.Actividades, w.Evidencias, w.ProductoIntegrador, w.Examen}
}

// Fractions returns the weights divided by 100, in sheet column order.
func (w Weights) Fractions() [5]float64 {
	var out [5]float64
	for i, p := range w.Percentages() {
		out[i] = p / 100
	}
	return out
}

// Total returns the sum of all percentages.
func (w Weights) Total() float64 {
	var sum float64
	for _, p := range w.Percentages() {
		sum += p
	}
	return sum
}
