// Package models defines the grading data written into evaluation workbooks.
package models

// Evaluation is the grading sheet descriptor read from the input JSON.
type Evaluation struct {
	// Grupo is the group name.
	Grupo string `json:"grupo" zog:"grupo"`
	// Asignatura is the subject name.
	Asignatura string `json:"asignatura" zog:"asignatura"`
	// Maestro is the teacher name.
	Maestro string `json:"maestro" zog:"maestro"`
	// Safis is the grading period label. Only the HTTP surface requires it.
	Safis string `json:"safis,omitempty" zog:"safis"`
	// Ponderaciones holds the five weighting percentages.
	Ponderaciones Weights `json:"ponderaciones" zog:"ponderaciones"`
	// Alumnos is the roster in output order.
	Alumnos []Student `json:"alumnos" zog:"alumnos"`
}

// Student is a single roster entry.
type Student struct {
	// Matricula is the registration id.
	Matricula string `json:"matricula" zog:"matricula"`
	// Nombre is the full name.
	Nombre string `json:"nombre" zog:"nombre"`
}
