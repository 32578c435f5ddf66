package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatusForScoreBoundaries(t *testing.T) {
	tests := []struct {
		score int
		want  Status
	}{
		{0, StatusCurious},
		{39, StatusCurious},
		{40, StatusWarming},
		{69, StatusWarming},
		{70, StatusQualified},
		{100, StatusQualified},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, StatusForScore(tt.score), "score %d", tt.score)
	}
}
