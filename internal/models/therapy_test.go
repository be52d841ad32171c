package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAccuracy(t *testing.T) {
	tests := []struct {
		name           string
		correct, total int
		want           float64
	}{
		{name: "no questions", correct: 0, total: 0, want: 0},
		{name: "three of four", correct: 3, total: 4, want: 75},
		{name: "all correct", correct: 5, total: 5, want: 100},
		{name: "none correct", correct: 0, total: 3, want: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Accuracy(tt.correct, tt.total))
		})
	}
}

func TestRound2(t *testing.T) {
	assert.Equal(t, 66.67, Round2(Accuracy(2, 3)))
	assert.Equal(t, 33.33, Round2(Accuracy(1, 3)))
	assert.Equal(t, 12.5, Round2(12.5))
}

func TestParseTherapyType(t *testing.T) {
	tests := map[string]TherapyType{
		"words":    TherapyWords,
		" Words ":  TherapyWords,
		"palabras": TherapyWords,
		"numbers":  TherapyNumbers,
		"números":  TherapyNumbers,
		"numeros":  TherapyNumbers,
	}
	for in, want := range tests {
		got, ok := ParseTherapyType(in)
		assert.True(t, ok, in)
		assert.Equal(t, want, got, in)
	}

	_, ok := ParseTherapyType("letters")
	assert.False(t, ok)
}
