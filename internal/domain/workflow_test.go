package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDeriveTriggerType(t *testing.T) {
	tests := []struct {
		targets int
		want    TriggerType
	}{
		{0, TriggerFull},
		{1, TriggerSingle},
		{2, TriggerPartial},
		{5, TriggerPartial},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, DeriveTriggerType(tt.targets))
	}
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{0, "0.0s"},
		{1400 * time.Millisecond, "1.4s"},
		{time.Minute, "60.0s"},
		{-time.Second, "0.0s"},
		{time.Millisecond * 49, "0.0s"},
		{time.Millisecond * 51, "0.1s"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatDuration(tt.d))
	}
}
